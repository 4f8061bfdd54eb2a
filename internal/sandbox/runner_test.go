package sandbox

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/datalens-cli/internal/dataset"
)

const churnCSV = `customer_id,age,gender,tenure_months,monthly_charges,churn
1,34,Male,12,65.5,No
2,56,Female,45,89.2,No
3,23,Male,3,45.0,Yes
4,67,Female,67,112.5,No
5,45,Male,8,78.3,Yes
`

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	ds, err := dataset.FromCSV("churn.csv", strings.NewReader(churnCSV), dataset.Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return New(ds, Options{})
}

func TestRunCapturesPrint(t *testing.T) {
	r := newTestRunner(t)
	res := r.Run(`print("hi")`)
	if res.Fault != "" {
		t.Fatalf("unexpected fault: %s", res.Fault)
	}
	if res.Output != "hi\n" {
		t.Fatalf("output: got %q, want %q", res.Output, "hi\n")
	}
	if res.Artifact != "" {
		t.Fatalf("unexpected artifact: %q", res.Artifact)
	}
}

func TestRunUndefinedName(t *testing.T) {
	r := newTestRunner(t)
	res := r.Run(`print(undefined_variable)`)
	if res.Fault == "" {
		t.Fatal("expected fault")
	}
	if !strings.Contains(res.Fault, "undefined") {
		t.Fatalf("fault should describe undefined name, got: %s", res.Fault)
	}
	if res.Output != "" {
		t.Fatalf("no output expected, got %q", res.Output)
	}
}

func TestRunOutputBeforeFault(t *testing.T) {
	r := newTestRunner(t)
	res := r.Run("print(\"before\")\nx = [1, 2, 3]\nprint(x[10])\n")
	if res.Fault == "" {
		t.Fatal("expected fault")
	}
	if res.Output != "before\n" {
		t.Fatalf("output: got %q, want only the pre-fault write", res.Output)
	}
	if !strings.Contains(res.Fault, "analysis.star") {
		t.Fatalf("fault should name the script location, got: %s", res.Fault)
	}
	if res.Artifact != "" {
		t.Fatal("failing run must not produce an artifact")
	}
}

func TestRunChartArtifact(t *testing.T) {
	r := newTestRunner(t)
	res := r.Run(`fig = chart.bar(["a", "b"], [1.0, 2.0], title="Totals")`)
	if res.Fault != "" {
		t.Fatalf("unexpected fault: %s", res.Fault)
	}
	if res.Artifact == "" {
		t.Fatal("expected artifact")
	}
	for _, want := range []string{`"bar"`, "Totals", `"category"`} {
		if !strings.Contains(res.Artifact, want) {
			t.Fatalf("artifact missing %q:\n%s", want, res.Artifact)
		}
	}
}

func TestRunNonChartFigIgnored(t *testing.T) {
	r := newTestRunner(t)
	res := r.Run(`fig = 5`)
	if res.Fault != "" || res.Artifact != "" {
		t.Fatalf("got fault %q artifact %q, want neither", res.Fault, res.Artifact)
	}
}

func TestRunIdempotent(t *testing.T) {
	r := newTestRunner(t)
	script := "print(data.mean(\"age\"))\nfig = chart.pie([\"x\"], [1.0])\n"
	a := r.Run(script)
	b := r.Run(script)
	if a.Output != b.Output || a.Fault != b.Fault || a.Artifact != b.Artifact {
		t.Fatalf("results differ between runs:\n%+v\n%+v", a, b)
	}
}

func TestRunDataModule(t *testing.T) {
	r := newTestRunner(t)
	script := `print(data.n_rows())
print(data.mean("age"))
cols = data.columns()
print(cols[0])
churned = data.filter("churn", "==", "Yes")
print(churned.n_rows())
print(len(data.unique("gender")))
`
	res := r.Run(script)
	if res.Fault != "" {
		t.Fatalf("unexpected fault: %s", res.Fault)
	}
	want := "5\n45.0\ncustomer_id\n2\n2\n"
	if res.Output != want {
		t.Fatalf("output:\n%q\nwant:\n%q", res.Output, want)
	}
}

func TestRunGroupMean(t *testing.T) {
	r := newTestRunner(t)
	res := r.Run(`m = data.group_mean("churn", "monthly_charges")
print(len(m))
`)
	if res.Fault != "" {
		t.Fatalf("unexpected fault: %s", res.Fault)
	}
	if res.Output != "2\n" {
		t.Fatalf("output: got %q", res.Output)
	}
}

func TestRunNumModule(t *testing.T) {
	r := newTestRunner(t)
	script := `print(num.sum([1.0, 2.0, 3.0]))
print(num.corr([1.0, 2.0, 3.0], [2.0, 4.0, 6.0]) > 0.999)
print(num.median([3.0, 1.0, 2.0]))
`
	res := r.Run(script)
	if res.Fault != "" {
		t.Fatalf("unexpected fault: %s", res.Fault)
	}
	if res.Output != "6.0\nTrue\n2.0\n" {
		t.Fatalf("output: got %q", res.Output)
	}
}

func TestRunUnknownColumnFault(t *testing.T) {
	r := newTestRunner(t)
	res := r.Run(`print(data.mean("no_such_column"))`)
	if res.Fault == "" {
		t.Fatal("expected fault")
	}
	if !strings.Contains(res.Fault, "no_such_column") {
		t.Fatalf("fault should name the column, got: %s", res.Fault)
	}
}

func TestRunStepLimit(t *testing.T) {
	ds, err := dataset.FromCSV("churn.csv", strings.NewReader(churnCSV), dataset.Options{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r := New(ds, Options{MaxSteps: 100})
	res := r.Run("x = 0\nfor i in range(100000):\n    x += 1\n")
	if res.Fault == "" {
		t.Fatal("expected fault from step limit")
	}
}

func TestScanScriptWarnings(t *testing.T) {
	r := newTestRunner(t)
	res := r.Run(`print("import os would be scary elsewhere")`)
	if len(res.Warnings) == 0 {
		t.Fatal("expected a warning for the import pattern")
	}
	if res.Fault != "" {
		t.Fatalf("warnings must not block execution, got fault: %s", res.Fault)
	}
}
