package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/KaramelBytes/datalens-cli/internal/ai"
	"github.com/KaramelBytes/datalens-cli/internal/sandbox"
)

// fakeRuntime replays canned responses in call order and records prompts.
type fakeRuntime struct {
	responses []string
	prompts   []string
	err       error
}

func (f *fakeRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.prompts = append(f.prompts, req.Messages[0].Content)
	if f.err != nil {
		return nil, f.err
	}
	i := len(f.prompts) - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return &ai.GenerateResponse{
		Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: f.responses[i]}}},
	}, nil
}

// fakeRunner maps script text to a fixed result.
type fakeRunner struct {
	results  map[string]sandbox.Result
	fallback sandbox.Result
	calls    int
}

func (f *fakeRunner) Run(script string) sandbox.Result {
	f.calls++
	if r, ok := f.results[script]; ok {
		return r
	}
	return f.fallback
}

type fakeAnalyzer struct{ err error }

func (f fakeAnalyzer) Analyze() (string, map[string]string, string, error) {
	if f.err != nil {
		return "", nil, "", f.err
	}
	return "[DATASET SUMMARY]\ncols: age", map[string]string{"age": "numeric"}, "| age |", nil
}

func newTestPipeline(t *testing.T, rt *fakeRuntime, runner *fakeRunner) *Pipeline {
	t.Helper()
	p, err := New(Config{
		Runtime:  rt,
		Model:    "test-model",
		Analyzer: fakeAnalyzer{},
		Runner:   runner,
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func TestRouteAfterExecution(t *testing.T) {
	cases := []struct {
		fault    bool
		attempts int
		want     stage
	}{
		{false, 0, stageReporting},
		{true, 0, stageRepair},
		{true, 1, stageRepair},
		{true, 2, stageRepair},
		{true, 3, stageReporting},
		{false, 3, stageReporting},
	}
	for _, c := range cases {
		if got := routeAfterExecution(c.fault, c.attempts, DefaultMaxRepairs); got != c.want {
			t.Errorf("route(%v, %d): got %v, want %v", c.fault, c.attempts, got, c.want)
		}
	}
}

func TestRunHappyPath(t *testing.T) {
	rt := &fakeRuntime{responses: []string{
		"1. compute the mean",
		"print(data.mean(\"age\"))",
		"The mean age is 45.",
	}}
	runner := &fakeRunner{fallback: sandbox.Result{Output: "45.0\n"}}
	p := newTestPipeline(t, rt, runner)

	st, err := p.Run(context.Background(), "people.csv", "what is the mean age?")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.RepairAttempts != 0 {
		t.Fatalf("repairs: got %d, want 0", st.RepairAttempts)
	}
	if st.RunFault != "" || st.RunOutput != "45.0\n" {
		t.Fatalf("outcome: fault %q output %q", st.RunFault, st.RunOutput)
	}
	if st.FinalReport != "The mean age is 45." {
		t.Fatalf("report: got %q", st.FinalReport)
	}
	if st.Plan != "1. compute the mean" {
		t.Fatalf("plan: got %q", st.Plan)
	}
	if runner.calls != 1 {
		t.Fatalf("runner calls: got %d, want 1", runner.calls)
	}
}

// One failing script repaired into a succeeding one.
func TestRunRepairedOnce(t *testing.T) {
	rt := &fakeRuntime{responses: []string{
		"1. plan",
		"bad_script",
		"```python\ngood_script\n```",
		"It worked.",
	}}
	runner := &fakeRunner{
		results: map[string]sandbox.Result{
			"bad_script":  {Fault: "Error: undefined: colum"},
			"good_script": {Output: "answer: 42\n"},
		},
	}
	p := newTestPipeline(t, rt, runner)

	st, err := p.Run(context.Background(), "d.csv", "q")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.RepairAttempts != 1 {
		t.Fatalf("repairs: got %d, want 1", st.RepairAttempts)
	}
	if st.RunFault != "" {
		t.Fatalf("fault should be cleared, got %q", st.RunFault)
	}
	if st.RunOutput != "answer: 42\n" {
		t.Fatalf("output: got %q", st.RunOutput)
	}
	// The fence was stripped and the script matches the recorded outcome.
	if st.Script != "good_script" {
		t.Fatalf("script: got %q", st.Script)
	}
	if st.FinalReport != "It worked." {
		t.Fatalf("report: got %q", st.FinalReport)
	}
}

// Every repair keeps faulting: the ceiling caps attempts at 3 and the
// pipeline still terminates with a structured failure report.
func TestRunExhaustsRepairCeiling(t *testing.T) {
	rt := &fakeRuntime{responses: []string{
		"1. plan",
		"s0", "s1", "s2", "s3",
	}}
	runner := &fakeRunner{fallback: sandbox.Result{Fault: "Error: always broken"}}
	p := newTestPipeline(t, rt, runner)

	st, err := p.Run(context.Background(), "d.csv", "why is it broken?")
	if err != nil {
		t.Fatalf("run must not abort on script faults: %v", err)
	}
	if st.RepairAttempts != 3 {
		t.Fatalf("repairs: got %d, want 3", st.RepairAttempts)
	}
	if st.RunFault == "" {
		t.Fatal("fault should remain set after exhaustion")
	}
	if runner.calls != 4 {
		t.Fatalf("runner calls: got %d, want 4 (initial + 3 repairs)", runner.calls)
	}
	// plan + code + 3 repairs and NO narrative call: the failure report is
	// built locally.
	if len(rt.prompts) != 5 {
		t.Fatalf("model calls: got %d, want 5", len(rt.prompts))
	}
	for _, want := range []string{"Analysis Failed", "3 repair attempt", "why is it broken?", "always broken", "1. plan"} {
		if !strings.Contains(st.FinalReport, want) {
			t.Fatalf("failure report missing %q:\n%s", want, st.FinalReport)
		}
	}
}

// Code generation yields an empty script: treated as an immediate fault,
// consumes no attempt by itself, and is still repairable.
func TestRunEmptyScript(t *testing.T) {
	rt := &fakeRuntime{responses: []string{
		"1. plan",
		"",
		"recovered_script",
		"Recovered fine.",
	}}
	runner := &fakeRunner{
		results: map[string]sandbox.Result{
			"recovered_script": {Output: "ok\n"},
		},
	}
	p := newTestPipeline(t, rt, runner)

	st, err := p.Run(context.Background(), "d.csv", "q")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.RepairAttempts != 1 {
		t.Fatalf("repairs: got %d, want 1", st.RepairAttempts)
	}
	if runner.calls != 1 {
		t.Fatalf("runner calls: got %d, want 1 (empty script never reaches the runner)", runner.calls)
	}
	if st.FinalReport != "Recovered fine." {
		t.Fatalf("report: got %q", st.FinalReport)
	}
}

// The empty-script fault routes through the same ceiling accounting.
func TestRunEmptyScriptExhaustion(t *testing.T) {
	rt := &fakeRuntime{responses: []string{"1. plan", "", "", "", ""}}
	runner := &fakeRunner{}
	p := newTestPipeline(t, rt, runner)

	st, err := p.Run(context.Background(), "d.csv", "q")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.RepairAttempts != 3 {
		t.Fatalf("repairs: got %d, want 3", st.RepairAttempts)
	}
	if runner.calls != 0 {
		t.Fatalf("runner calls: got %d, want 0", runner.calls)
	}
	if !strings.Contains(st.FinalReport, "no script to execute") {
		t.Fatalf("failure report should carry the fault, got:\n%s", st.FinalReport)
	}
}

// A fault with partial output still gets the narrative branch: there is
// something to summarize.
func TestRunFaultWithPartialOutput(t *testing.T) {
	rt := &fakeRuntime{responses: []string{
		"1. plan",
		"s0", "s1", "s2", "s3",
		"Partial results summarized.",
	}}
	runner := &fakeRunner{fallback: sandbox.Result{Output: "partial line\n", Fault: "Error: died midway"}}
	p := newTestPipeline(t, rt, runner)

	st, err := p.Run(context.Background(), "d.csv", "q")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.RepairAttempts != 3 {
		t.Fatalf("repairs: got %d", st.RepairAttempts)
	}
	if st.FinalReport != "Partial results summarized." {
		t.Fatalf("expected narrative report, got %q", st.FinalReport)
	}
	last := rt.prompts[len(rt.prompts)-1]
	if !strings.Contains(last, "partial line") {
		t.Fatalf("reporter prompt should include captured output:\n%s", last)
	}
}

// A collaborator failure during repair is fatal: no fallback script exists.
func TestRunCollaboratorFailureIsFatal(t *testing.T) {
	rt := &fakeRuntime{responses: []string{"1. plan", "bad"}}
	runner := &fakeRunner{fallback: sandbox.Result{Fault: "Error: x"}}

	// Fail on the third call (the repair).
	calls := 0
	wrapped := &failAfterRuntime{inner: rt, failAt: 3, calls: &calls}
	p, err := New(Config{Runtime: wrapped, Model: "m", Analyzer: fakeAnalyzer{}, Runner: runner})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_, err = p.Run(context.Background(), "d.csv", "q")
	if err == nil {
		t.Fatal("expected fatal error from repair collaborator failure")
	}
	if !strings.Contains(err.Error(), "repair attempt 1") {
		t.Fatalf("error should name the repair attempt, got: %v", err)
	}
}

type failAfterRuntime struct {
	inner  *fakeRuntime
	failAt int
	calls  *int
}

func (f *failAfterRuntime) Generate(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	*f.calls++
	if *f.calls >= f.failAt {
		return nil, errors.New("provider is down")
	}
	return f.inner.Generate(ctx, req)
}

func TestRunSchemaAnalysisFailureIsFatal(t *testing.T) {
	p, err := New(Config{
		Runtime:  &fakeRuntime{responses: []string{"x"}},
		Model:    "m",
		Analyzer: fakeAnalyzer{err: errors.New("bad csv")},
		Runner:   &fakeRunner{},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := p.Run(context.Background(), "d.csv", "q"); err == nil {
		t.Fatal("expected schema analysis error to propagate")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing runtime")
	}
	if _, err := New(Config{Runtime: &fakeRuntime{}, Analyzer: fakeAnalyzer{}, Runner: &fakeRunner{}}); err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestPlanOnly(t *testing.T) {
	rt := &fakeRuntime{responses: []string{"1. look at the data"}}
	runner := &fakeRunner{}
	p := newTestPipeline(t, rt, runner)

	st, err := p.Plan(context.Background(), "d.csv", "q")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if st.Plan != "1. look at the data" {
		t.Fatalf("plan: got %q", st.Plan)
	}
	if st.Script != "" || runner.calls != 0 {
		t.Fatal("planning must not generate or execute a script")
	}
}

func TestCustomRepairCeiling(t *testing.T) {
	rt := &fakeRuntime{responses: []string{"1. plan", "s0", "s1"}}
	runner := &fakeRunner{fallback: sandbox.Result{Fault: "Error: x"}}
	p, err := New(Config{Runtime: rt, Model: "m", Analyzer: fakeAnalyzer{}, Runner: runner, MaxRepairs: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	st, err := p.Run(context.Background(), "d.csv", "q")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.RepairAttempts != 1 {
		t.Fatalf("repairs: got %d, want 1", st.RepairAttempts)
	}
}
