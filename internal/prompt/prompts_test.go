package prompt

import (
	"strings"
	"testing"
)

func TestPlannerIncludesInputs(t *testing.T) {
	p := Planner("SCHEMA-HERE", "SAMPLE-HERE", "why churn?")
	for _, want := range []string{"SCHEMA-HERE", "SAMPLE-HERE", "why churn?", "numbered analysis plan"} {
		if !strings.Contains(p, want) {
			t.Fatalf("planner prompt missing %q", want)
		}
	}
}

func TestCoderDescribesSandbox(t *testing.T) {
	p := Coder("s", "r", "plan", "q")
	for _, want := range []string{"data.group_mean", "num.corr", "chart.bar", "named fig", "no markdown fences"} {
		if !strings.Contains(p, want) {
			t.Fatalf("coder prompt missing %q", want)
		}
	}
}

func TestDebuggerIncludesFailure(t *testing.T) {
	p := Debugger("bad script", "the fault text", "schema")
	for _, want := range []string{"bad script", "the fault text", "schema", "COMPLETE corrected script"} {
		if !strings.Contains(p, want) {
			t.Fatalf("debugger prompt missing %q", want)
		}
	}
}

func TestReporterIncludesResults(t *testing.T) {
	p := Reporter("what drives sales?", "OUTPUT-HERE")
	if !strings.Contains(p, "what drives sales?") || !strings.Contains(p, "OUTPUT-HERE") {
		t.Fatalf("reporter prompt missing inputs:\n%s", p)
	}
}
