package dataset

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Options controls how a tabular file is loaded.
type Options struct {
	// Delimiter for CSV. If 0, ',' is used.
	Delimiter rune
	// MaxRows limits rows kept after load; 0 means unlimited.
	MaxRows int
}

// Dataset wraps a loaded dataframe together with its display name.
// It is the single handle the pipeline and the sandbox share.
type Dataset struct {
	Name string
	df   dataframe.DataFrame
}

// Load reads a CSV/TSV file from disk.
func Load(path string, opt Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	if opt.Delimiter == 0 && strings.HasSuffix(strings.ToLower(path), ".tsv") {
		opt.Delimiter = '\t'
	}
	return FromCSV(filepath.Base(path), f, opt)
}

// FromCSV reads CSV content from r. Types are auto-detected by gota.
func FromCSV(name string, r io.Reader, opt Options) (*Dataset, error) {
	loadOpts := []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
	}
	if opt.Delimiter != 0 {
		loadOpts = append(loadOpts, dataframe.WithDelimiter(opt.Delimiter))
	}
	df := dataframe.ReadCSV(r, loadOpts...)
	if df.Err != nil {
		return nil, fmt.Errorf("read csv: %w", df.Err)
	}
	if opt.MaxRows > 0 && df.Nrow() > opt.MaxRows {
		idx := make([]int, opt.MaxRows)
		for i := range idx {
			idx[i] = i
		}
		df = df.Subset(idx)
		if df.Err != nil {
			return nil, fmt.Errorf("limit rows: %w", df.Err)
		}
	}
	return &Dataset{Name: name, df: df}, nil
}

func (d *Dataset) Columns() []string { return d.df.Names() }
func (d *Dataset) NumRows() int      { return d.df.Nrow() }
func (d *Dataset) NumCols() int      { return d.df.Ncol() }

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.df.Names() {
		if c == name {
			return true
		}
	}
	return false
}

// Col returns the named column series.
func (d *Dataset) Col(name string) (series.Series, error) {
	if !d.HasColumn(name) {
		return series.Series{}, fmt.Errorf("unknown column %q (have: %s)", name, strings.Join(d.df.Names(), ", "))
	}
	s := d.df.Col(name)
	if s.Err != nil {
		return series.Series{}, fmt.Errorf("column %q: %w", name, s.Err)
	}
	return s, nil
}

// Floats returns the numeric values of a column with non-numeric and missing
// entries dropped.
func (d *Dataset) Floats(name string) ([]float64, error) {
	s, err := d.Col(name)
	if err != nil {
		return nil, err
	}
	raw := s.Float()
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Strings returns the column values as their string representations.
func (d *Dataset) Strings(name string) ([]string, error) {
	s, err := d.Col(name)
	if err != nil {
		return nil, err
	}
	return s.Records(), nil
}

// Records returns all rows including the header row.
func (d *Dataset) Records() [][]string { return d.df.Records() }

// Head returns the header row plus up to n data rows.
func (d *Dataset) Head(n int) [][]string {
	recs := d.df.Records()
	if n < 0 {
		n = 0
	}
	if len(recs) > n+1 {
		recs = recs[:n+1]
	}
	return recs
}

var comparators = map[string]series.Comparator{
	"==": series.Eq,
	"!=": series.Neq,
	">":  series.Greater,
	">=": series.GreaterEq,
	"<":  series.Less,
	"<=": series.LessEq,
}

// Filter returns a new Dataset containing rows where column op value holds.
// Supported ops: == != > >= < <=.
func (d *Dataset) Filter(col, op string, value interface{}) (*Dataset, error) {
	comp, ok := comparators[op]
	if !ok {
		return nil, fmt.Errorf("unsupported comparator %q (use == != > >= < <=)", op)
	}
	if !d.HasColumn(col) {
		return nil, fmt.Errorf("unknown column %q", col)
	}
	out := d.df.Filter(dataframe.F{Colname: col, Comparator: comp, Comparando: value})
	if out.Err != nil {
		return nil, fmt.Errorf("filter %s %s: %w", col, op, out.Err)
	}
	return &Dataset{Name: d.Name, df: out}, nil
}

// GroupMean computes the mean of col per distinct value of the by column.
func (d *Dataset) GroupMean(by, col string) (map[string]float64, error) {
	if !d.HasColumn(by) {
		return nil, fmt.Errorf("unknown column %q", by)
	}
	if !d.HasColumn(col) {
		return nil, fmt.Errorf("unknown column %q", col)
	}
	groups := d.df.GroupBy(by)
	if groups.Err != nil {
		return nil, fmt.Errorf("group by %s: %w", by, groups.Err)
	}
	out := make(map[string]float64)
	for key, g := range groups.GetGroups() {
		s := g.Col(col)
		if s.Err != nil {
			return nil, fmt.Errorf("group %q column %q: %w", key, col, s.Err)
		}
		out[trimGroupKey(key)] = s.Mean()
	}
	return out, nil
}

// gota encodes group keys as "value_"; strip the trailing separator so callers
// see the plain group value.
func trimGroupKey(key string) string {
	return strings.TrimSuffix(key, "_")
}
