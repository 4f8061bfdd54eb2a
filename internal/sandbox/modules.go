package sandbox

import (
	"fmt"
	"sort"

	"github.com/go-gota/gota/series"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

// dataValue exposes a Dataset to scripts. Filtering returns a new dataValue,
// so handles chain: data.filter("churn", "==", "Yes").mean("age").
type dataValue struct {
	ds *dataset.Dataset
}

func newDataValue(ds *dataset.Dataset) *dataValue { return &dataValue{ds: ds} }

func (d *dataValue) String() string {
	return fmt.Sprintf("<dataframe %q %dx%d>", d.ds.Name, d.ds.NumRows(), d.ds.NumCols())
}
func (d *dataValue) Type() string          { return "dataframe" }
func (d *dataValue) Freeze()               {}
func (d *dataValue) Truth() starlark.Bool  { return starlark.Bool(d.ds.NumRows() > 0) }
func (d *dataValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: dataframe") }

var dataMethods = map[string]func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error){
	"columns":    dataColumns,
	"n_rows":     dataNumRows,
	"n_cols":     dataNumCols,
	"col":        dataCol,
	"mean":       dataStat,
	"median":     dataStat,
	"min":        dataStat,
	"max":        dataStat,
	"std":        dataStat,
	"count":      dataCount,
	"unique":     dataUnique,
	"filter":     dataFilter,
	"group_mean": dataGroupMean,
	"head":       dataHead,
}

func (d *dataValue) Attr(name string) (starlark.Value, error) {
	impl, ok := dataMethods[name]
	if !ok {
		return nil, nil
	}
	return starlark.NewBuiltin(name, impl).BindReceiver(d), nil
}

func (d *dataValue) AttrNames() []string {
	names := make([]string, 0, len(dataMethods))
	for n := range dataMethods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func recvDataset(b *starlark.Builtin) *dataset.Dataset {
	return b.Receiver().(*dataValue).ds
}

func dataColumns(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return stringList(recvDataset(b).Columns()), nil
}

func dataNumRows(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.MakeInt(recvDataset(b).NumRows()), nil
}

func dataNumCols(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return starlark.MakeInt(recvDataset(b).NumCols()), nil
}

func dataCol(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
		return nil, err
	}
	ds := recvDataset(b)
	s, err := ds.Col(name)
	if err != nil {
		return nil, err
	}
	switch s.Type() {
	case series.Int, series.Float:
		vals, err := ds.Floats(name)
		if err != nil {
			return nil, err
		}
		return floatList(vals), nil
	default:
		recs, err := ds.Strings(name)
		if err != nil {
			return nil, err
		}
		return stringList(recs), nil
	}
}

// dataStat serves mean/median/min/max/std; the builtin name selects the stat.
func dataStat(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
		return nil, err
	}
	vals, err := recvDataset(b).Floats(name)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%s: column %q has no numeric values", b.Name(), name)
	}
	f, err := applyStat(b.Name(), vals)
	if err != nil {
		return nil, err
	}
	return starlark.Float(f), nil
}

func applyStat(op string, vals []float64) (float64, error) {
	switch op {
	case "mean":
		return stat.Mean(vals, nil), nil
	case "median":
		return median(vals), nil
	case "min":
		return floats.Min(vals), nil
	case "max":
		return floats.Max(vals), nil
	case "std":
		if len(vals) < 2 {
			return 0, nil
		}
		return stat.StdDev(vals, nil), nil
	default:
		return 0, fmt.Errorf("unknown stat %q", op)
	}
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func dataCount(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
		return nil, err
	}
	recs, err := recvDataset(b).Strings(name)
	if err != nil {
		return nil, err
	}
	n := 0
	for _, r := range recs {
		if r != "" && r != "NaN" {
			n++
		}
	}
	return starlark.MakeInt(n), nil
}

func dataUnique(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
		return nil, err
	}
	recs, err := recvDataset(b).Strings(name)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, r := range recs {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return stringList(out), nil
}

func dataFilter(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var column, op string
	var value starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "column", &column, "op", &op, "value", &value); err != nil {
		return nil, err
	}
	comparando, err := goScalar(value)
	if err != nil {
		return nil, fmt.Errorf("filter value: %w", err)
	}
	filtered, err := recvDataset(b).Filter(column, op, comparando)
	if err != nil {
		return nil, err
	}
	return newDataValue(filtered), nil
}

func dataGroupMean(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var by, column string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "by", &by, "column", &column); err != nil {
		return nil, err
	}
	means, err := recvDataset(b).GroupMean(by, column)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(means))
	for k := range means {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d := starlark.NewDict(len(keys))
	for _, k := range keys {
		if err := d.SetKey(starlark.String(k), starlark.Float(means[k])); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func dataHead(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	n := 5
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "n?", &n); err != nil {
		return nil, err
	}
	rows := recvDataset(b).Head(n)
	out := make([]starlark.Value, 0, len(rows))
	for _, row := range rows {
		out = append(out, stringList(row))
	}
	return starlark.NewList(out), nil
}

// numModule exposes list-based numeric helpers.
func numModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "num",
		Members: starlark.StringDict{
			"mean":     starlark.NewBuiltin("mean", numStat),
			"median":   starlark.NewBuiltin("median", numStat),
			"std":      starlark.NewBuiltin("std", numStat),
			"min":      starlark.NewBuiltin("min", numStat),
			"max":      starlark.NewBuiltin("max", numStat),
			"sum":      starlark.NewBuiltin("sum", numSum),
			"corr":     starlark.NewBuiltin("corr", numCorr),
			"quantile": starlark.NewBuiltin("quantile", numQuantile),
		},
	}
}

func numStat(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var list *starlark.List
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "xs", &list); err != nil {
		return nil, err
	}
	vals, err := floatsArg(b.Name(), list)
	if err != nil {
		return nil, err
	}
	f, err := applyStat(b.Name(), vals)
	if err != nil {
		return nil, err
	}
	return starlark.Float(f), nil
}

func numSum(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var list *starlark.List
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "xs", &list); err != nil {
		return nil, err
	}
	vals, err := floatsArg(b.Name(), list)
	if err != nil {
		return nil, err
	}
	return starlark.Float(floats.Sum(vals)), nil
}

func numCorr(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var xs, ys *starlark.List
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "xs", &xs, "ys", &ys); err != nil {
		return nil, err
	}
	xv, err := floatsArg(b.Name(), xs)
	if err != nil {
		return nil, err
	}
	yv, err := floatsArg(b.Name(), ys)
	if err != nil {
		return nil, err
	}
	if len(xv) != len(yv) {
		return nil, fmt.Errorf("corr: length mismatch (%d vs %d)", len(xv), len(yv))
	}
	if len(xv) < 2 {
		return nil, fmt.Errorf("corr: need at least 2 values")
	}
	return starlark.Float(stat.Correlation(xv, yv, nil)), nil
}

func numQuantile(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var list *starlark.List
	var q float64
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "xs", &list, "q", &q); err != nil {
		return nil, err
	}
	if q < 0 || q > 1 {
		return nil, fmt.Errorf("quantile: q must be in [0, 1], got %v", q)
	}
	vals, err := floatsArg(b.Name(), list)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("quantile: empty list")
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	return starlark.Float(stat.Quantile(q, stat.Empirical, sorted, nil)), nil
}

func floatsArg(op string, list *starlark.List) ([]float64, error) {
	if list == nil {
		return nil, fmt.Errorf("%s: expected a list", op)
	}
	out := make([]float64, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		f, ok := starlark.AsFloat(list.Index(i))
		if !ok {
			return nil, fmt.Errorf("%s: element %d is not a number (%s)", op, i, list.Index(i).Type())
		}
		out = append(out, f)
	}
	return out, nil
}

func stringList(vals []string) *starlark.List {
	out := make([]starlark.Value, len(vals))
	for i, v := range vals {
		out[i] = starlark.String(v)
	}
	return starlark.NewList(out)
}

func floatList(vals []float64) *starlark.List {
	out := make([]starlark.Value, len(vals))
	for i, v := range vals {
		out[i] = starlark.Float(v)
	}
	return starlark.NewList(out)
}

// goScalar converts a Starlark scalar into the Go value gota filters expect.
func goScalar(v starlark.Value) (interface{}, error) {
	switch x := v.(type) {
	case starlark.String:
		return string(x), nil
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return int(i), nil
		}
		return nil, fmt.Errorf("integer too large")
	case starlark.Float:
		return float64(x), nil
	case starlark.Bool:
		return bool(x), nil
	default:
		return nil, fmt.Errorf("unsupported scalar type %s", v.Type())
	}
}
