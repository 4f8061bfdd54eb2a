package sandbox

import (
	"encoding/json"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/opts"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// chartValue is the handle a chart.* builder returns. A script makes its
// chart visible to the caller by assigning the handle to the fig global;
// the runner serializes it into the artifact.
type chartValue struct {
	kind   string
	option echartsOption
}

// echartsOption is the subset of an ECharts option document we emit. Series
// data reuses the go-echarts opts item types so the artifact loads directly
// into an ECharts instance.
type echartsOption struct {
	Title  opts.Title   `json:"title"`
	XAxis  *chartAxis   `json:"xAxis,omitempty"`
	YAxis  *chartAxis   `json:"yAxis,omitempty"`
	Series []chartSerie `json:"series"`
}

type chartAxis struct {
	Type string   `json:"type"`
	Data []string `json:"data,omitempty"`
}

type chartSerie struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func (c *chartValue) String() string        { return fmt.Sprintf("<chart %s>", c.kind) }
func (c *chartValue) Type() string          { return "chart" }
func (c *chartValue) Freeze()               {}
func (c *chartValue) Truth() starlark.Bool  { return starlark.True }
func (c *chartValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: chart") }

// JSON serializes the chart to its ECharts option document.
func (c *chartValue) JSON() (string, error) {
	b, err := json.Marshal(c.option)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func chartModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "chart",
		Members: starlark.StringDict{
			"bar":     starlark.NewBuiltin("bar", chartBar),
			"line":    starlark.NewBuiltin("line", chartLine),
			"scatter": starlark.NewBuiltin("scatter", chartScatter),
			"pie":     starlark.NewBuiltin("pie", chartPie),
		},
	}
}

func chartBar(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	labels, values, title, err := unpackXY(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	items := make([]opts.BarData, len(values))
	for i, v := range values {
		items[i] = opts.BarData{Value: v}
	}
	return &chartValue{
		kind: "bar",
		option: echartsOption{
			Title:  opts.Title{Title: title},
			XAxis:  &chartAxis{Type: "category", Data: labels},
			YAxis:  &chartAxis{Type: "value"},
			Series: []chartSerie{{Type: "bar", Data: items}},
		},
	}, nil
}

func chartLine(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	labels, values, title, err := unpackXY(b, args, kwargs)
	if err != nil {
		return nil, err
	}
	items := make([]opts.LineData, len(values))
	for i, v := range values {
		items[i] = opts.LineData{Value: v}
	}
	return &chartValue{
		kind: "line",
		option: echartsOption{
			Title:  opts.Title{Title: title},
			XAxis:  &chartAxis{Type: "category", Data: labels},
			YAxis:  &chartAxis{Type: "value"},
			Series: []chartSerie{{Type: "line", Data: items}},
		},
	}, nil
}

func chartScatter(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var xs, ys *starlark.List
	var title string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x", &xs, "y", &ys, "title?", &title); err != nil {
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
		return nil, fmt.Errorf("scatter: length mismatch (%d vs %d)", len(xv), len(yv))
	}
	items := make([]opts.ScatterData, len(xv))
	for i := range xv {
		items[i] = opts.ScatterData{Value: []float64{xv[i], yv[i]}}
	}
	return &chartValue{
		kind: "scatter",
		option: echartsOption{
			Title:  opts.Title{Title: title},
			XAxis:  &chartAxis{Type: "value"},
			YAxis:  &chartAxis{Type: "value"},
			Series: []chartSerie{{Type: "scatter", Data: items}},
		},
	}, nil
}

func chartPie(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var labelsList, valuesList *starlark.List
	var title string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "labels", &labelsList, "values", &valuesList, "title?", &title); err != nil {
		return nil, err
	}
	labels, err := stringsArg(b.Name(), labelsList)
	if err != nil {
		return nil, err
	}
	values, err := floatsArg(b.Name(), valuesList)
	if err != nil {
		return nil, err
	}
	if len(labels) != len(values) {
		return nil, fmt.Errorf("pie: length mismatch (%d labels vs %d values)", len(labels), len(values))
	}
	items := make([]opts.PieData, len(values))
	for i, v := range values {
		items[i] = opts.PieData{Name: labels[i], Value: v}
	}
	return &chartValue{
		kind: "pie",
		option: echartsOption{
			Title:  opts.Title{Title: title},
			Series: []chartSerie{{Type: "pie", Data: items}},
		},
	}, nil
}

// unpackXY handles the common bar/line signature: string labels plus numbers.
func unpackXY(b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) ([]string, []float64, string, error) {
	var xs, ys *starlark.List
	var title string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x", &xs, "y", &ys, "title?", &title); err != nil {
		return nil, nil, "", err
	}
	labels, err := stringsArg(b.Name(), xs)
	if err != nil {
		return nil, nil, "", err
	}
	values, err := floatsArg(b.Name(), ys)
	if err != nil {
		return nil, nil, "", err
	}
	if len(labels) != len(values) {
		return nil, nil, "", fmt.Errorf("%s: length mismatch (%d labels vs %d values)", b.Name(), len(labels), len(values))
	}
	return labels, values, title, nil
}

// stringsArg renders any scalar list as labels.
func stringsArg(op string, list *starlark.List) ([]string, error) {
	if list == nil {
		return nil, fmt.Errorf("%s: expected a list", op)
	}
	out := make([]string, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		switch v := list.Index(i).(type) {
		case starlark.String:
			out = append(out, string(v))
		default:
			out = append(out, v.String())
		}
	}
	return out, nil
}
