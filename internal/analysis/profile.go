package analysis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

// Options controls profiling behavior.
type Options struct {
	// SampleRows determines how many example rows the preview includes.
	SampleRows int
	// TopValues limits how many categorical top values are reported per column.
	TopValues int
}

// DefaultOptions returns reasonable defaults for dataset profiling.
func DefaultOptions() Options {
	return Options{SampleRows: 5, TopValues: 3}
}

// Report is a prompt-friendly profile of a tabular dataset.
type Report struct {
	Name    string
	Rows    int
	Cols    []ColumnSummary
	Samples [][]string // header row first
}

// ColumnSummary captures inferred kind and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string // numeric|datetime|categorical|text|unknown
	NonNull int
	Missing int
	Unique  int
	// Numeric stats
	Min  float64
	Max  float64
	Mean float64
	Std  float64
	// Categorical top values
	TopValues []CategoryCount
	// Text examples
	ExampleTexts []string
}

type CategoryCount struct {
	Value string
	Count int
}

// Profile inspects every column of the dataset and builds a Report.
func Profile(ds *dataset.Dataset, opt Options) (*Report, error) {
	if ds == nil {
		return nil, fmt.Errorf("nil dataset")
	}
	if opt.SampleRows <= 0 {
		opt.SampleRows = 5
	}
	if opt.TopValues <= 0 {
		opt.TopValues = 3
	}
	rep := &Report{
		Name:    ds.Name,
		Rows:    ds.NumRows(),
		Samples: ds.Head(opt.SampleRows),
	}
	for _, name := range ds.Columns() {
		values, err := ds.Strings(name)
		if err != nil {
			return nil, err
		}
		rep.Cols = append(rep.Cols, summarizeColumn(name, values, opt))
	}
	return rep, nil
}

func summarizeColumn(name string, values []string, opt Options) ColumnSummary {
	c := ColumnSummary{Name: name}
	var nums []float64
	numOK, dateOK := 0, 0
	uniq := map[string]int{}
	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" || strings.EqualFold(v, "na") || strings.EqualFold(v, "nan") || strings.EqualFold(v, "null") {
			c.Missing++
			continue
		}
		c.NonNull++
		uniq[v]++
		if f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64); err == nil {
			numOK++
			nums = append(nums, f)
		} else if isDatetime(v) {
			dateOK++
		}
	}
	c.Unique = len(uniq)

	switch {
	case c.NonNull > 0 && numOK == c.NonNull:
		c.Kind = "numeric"
		c.Min = floats.Min(nums)
		c.Max = floats.Max(nums)
		c.Mean = stat.Mean(nums, nil)
		if len(nums) > 1 {
			c.Std = stat.StdDev(nums, nil)
		}
	case c.NonNull > 0 && dateOK == c.NonNull:
		c.Kind = "datetime"
	case c.NonNull > 0 && (c.Unique <= 20 || c.Unique*5 <= c.NonNull):
		c.Kind = "categorical"
		c.TopValues = topValues(uniq, opt.TopValues)
	case c.NonNull > 0:
		c.Kind = "text"
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			c.ExampleTexts = append(c.ExampleTexts, utilsShorten(v, 40))
			if len(c.ExampleTexts) >= 2 {
				break
			}
		}
	default:
		c.Kind = "unknown"
	}
	return c
}

var datetimeLayouts = []string{
	"2006-01-02", "2006/01/02", "01/02/2006", "02.01.2006",
	time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05",
}

func isDatetime(v string) bool {
	for _, layout := range datetimeLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

func topValues(counts map[string]int, limit int) []CategoryCount {
	out := make([]CategoryCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, CategoryCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func utilsShorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// Markdown renders a compact profile suitable for prompts or standalone output.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(r.Cols)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%, unique %d)", c.Name, c.Kind, c.NonNull, missPct, c.Unique))
		switch c.Kind {
		case "numeric":
			b.WriteString(fmt.Sprintf(" — min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std))
		case "categorical":
			if len(c.TopValues) > 0 {
				b.WriteString(" — top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", kv.Value, kv.Count))
				}
			}
		case "text":
			if len(c.ExampleTexts) > 0 {
				b.WriteString(" — e.g., " + strings.Join(c.ExampleTexts, " | "))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// SamplePreview renders the sample rows as a markdown pipe table.
func (r *Report) SamplePreview() string {
	if len(r.Samples) == 0 {
		return ""
	}
	var b strings.Builder
	header := r.Samples[0]
	b.WriteString("| " + strings.Join(header, " | ") + " |\n")
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")
	for _, row := range r.Samples[1:] {
		b.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// ColumnTypes maps column name to its inferred kind label.
func (r *Report) ColumnTypes() map[string]string {
	out := make(map[string]string, len(r.Cols))
	for _, c := range r.Cols {
		out[c.Name] = c.Kind
	}
	return out
}
