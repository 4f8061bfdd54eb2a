// Package sandbox executes untrusted, generated analysis scripts.
//
// Scripts are Starlark: they cannot import anything, touch the filesystem,
// or open sockets. The only capabilities reachable are the names pre-bound
// by this package (data, num, chart) plus the language built-ins. print
// output is intercepted per run and never reaches the host streams.
package sandbox

import (
	"errors"
	"fmt"
	"strings"

	"go.starlark.net/starlark"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

// FigureName is the conventional global a script assigns its chart to.
const FigureName = "fig"

// Options controls runner limits.
type Options struct {
	// MaxSteps bounds Starlark execution steps; 0 uses a generous default.
	MaxSteps uint64
}

// Result is the outcome triple of one script run.
type Result struct {
	// Output holds everything the script printed, captured in order.
	Output string
	// Fault is empty on success; otherwise the error with its backtrace.
	Fault string
	// Artifact is the serialized chart bound to fig, empty when absent.
	Artifact string
	// Warnings lists suspicious patterns found before execution. They do
	// not block the run; Starlark cannot reach the host regardless.
	Warnings []string
}

// Runner executes candidate scripts against a fixed capability namespace.
// It keeps no memory between runs: the same script against the same dataset
// yields the same result.
type Runner struct {
	predeclared starlark.StringDict
	maxSteps    uint64
}

// New builds a Runner whose data capability is bound to ds.
func New(ds *dataset.Dataset, opt Options) *Runner {
	steps := opt.MaxSteps
	if steps == 0 {
		steps = 5_000_000
	}
	return &Runner{
		predeclared: starlark.StringDict{
			"data":  newDataValue(ds),
			"num":   numModule(),
			"chart": chartModule(),
		},
		maxSteps: steps,
	}
}

// Run executes one script to completion or first fault.
func (r *Runner) Run(script string) Result {
	res := Result{Warnings: scanScript(script)}

	var out strings.Builder
	thread := &starlark.Thread{
		Name: "analysis",
		Print: func(_ *starlark.Thread, msg string) {
			out.WriteString(msg)
			out.WriteByte('\n')
		},
	}
	thread.SetMaxExecutionSteps(r.maxSteps)

	globals, err := starlark.ExecFile(thread, "analysis.star", script, r.predeclared)
	res.Output = out.String()
	if err != nil {
		res.Fault = faultText(err)
		return res
	}
	if fig, ok := globals[FigureName]; ok {
		if cv, ok := fig.(*chartValue); ok {
			j, jerr := cv.JSON()
			if jerr != nil {
				res.Fault = fmt.Sprintf("serialize %s: %v", FigureName, jerr)
				return res
			}
			res.Artifact = j
		}
	}
	return res
}

// faultText renders an execution error with type, message, and script location.
func faultText(err error) string {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Backtrace()
	}
	return err.Error()
}

// suspiciousPatterns would matter in a host-language sandbox; in Starlark they
// are inert, but we still surface them so a reviewer sees what the model tried.
var suspiciousPatterns = []string{
	"import ",
	"open(",
	"exec(",
	"eval(",
	"subprocess",
	"__",
}

func scanScript(script string) []string {
	var warns []string
	for _, p := range suspiciousPatterns {
		if strings.Contains(script, p) {
			warns = append(warns, fmt.Sprintf("script contains suspicious pattern %q", p))
		}
	}
	return warns
}
