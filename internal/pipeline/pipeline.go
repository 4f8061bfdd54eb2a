// Package pipeline drives the self-correcting analysis loop: schema
// analysis, planning, code generation, sandboxed execution, bounded
// error-triggered repair, and reporting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/ai"
	"github.com/KaramelBytes/datalens-cli/internal/analysis"
	"github.com/KaramelBytes/datalens-cli/internal/dataset"
	"github.com/KaramelBytes/datalens-cli/internal/prompt"
	"github.com/KaramelBytes/datalens-cli/internal/sandbox"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
)

const (
	// DefaultMaxRepairs bounds how many automated corrections a single
	// request may consume before the pipeline reports whatever it has.
	DefaultMaxRepairs = 3
	// DefaultReportCharLimit caps how much captured output is handed to
	// the reporting model.
	DefaultReportCharLimit = 8000

	emptyScriptFault = "no script to execute"
)

// ScriptRunner executes one candidate script. Implementations must be safe
// to call repeatedly with different scripts.
type ScriptRunner interface {
	Run(script string) sandbox.Result
}

// SchemaAnalyzer produces the textual dataset description the prompts need.
type SchemaAnalyzer interface {
	Analyze() (summary string, columnTypes map[string]string, preview string, err error)
}

// ProfileAnalyzer adapts the analysis package to the SchemaAnalyzer contract.
type ProfileAnalyzer struct {
	Dataset *dataset.Dataset
	Options analysis.Options
}

func (a ProfileAnalyzer) Analyze() (string, map[string]string, string, error) {
	opt := a.Options
	if opt.SampleRows == 0 {
		opt = analysis.DefaultOptions()
	}
	rep, err := analysis.Profile(a.Dataset, opt)
	if err != nil {
		return "", nil, "", err
	}
	return rep.Markdown(), rep.ColumnTypes(), rep.SamplePreview(), nil
}

// Config wires the pipeline's collaborators.
type Config struct {
	Runtime  ai.Runtime
	Model    string
	Analyzer SchemaAnalyzer
	Runner   ScriptRunner

	MaxTokens   int
	Temperature float64
	// MaxRepairs is the repair ceiling; 0 means DefaultMaxRepairs.
	MaxRepairs int
	// ReportCharLimit truncates output before narrative reporting; 0 means
	// DefaultReportCharLimit.
	ReportCharLimit int
	// Log receives progress lines; nil discards them.
	Log io.Writer
}

// Pipeline is the orchestrator. One instance may serve many requests; each
// request gets its own State and the stages never run concurrently.
type Pipeline struct {
	cfg Config
}

// New validates collaborators and returns a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Runtime == nil {
		return nil, errors.New("pipeline: Runtime is required")
	}
	if cfg.Analyzer == nil {
		return nil, errors.New("pipeline: Analyzer is required")
	}
	if cfg.Runner == nil {
		return nil, errors.New("pipeline: Runner is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("pipeline: Model is required")
	}
	return &Pipeline{cfg: cfg}, nil
}

func (p *Pipeline) maxRepairs() int {
	if p.cfg.MaxRepairs > 0 {
		return p.cfg.MaxRepairs
	}
	return DefaultMaxRepairs
}

func (p *Pipeline) reportCharLimit() int {
	if p.cfg.ReportCharLimit > 0 {
		return p.cfg.ReportCharLimit
	}
	return DefaultReportCharLimit
}

// Run executes the full pipeline for one question and returns the terminal
// state. Script-level faults never surface as an error here; they end up in
// the final report. A returned error means a collaborator failed and no
// report exists.
func (p *Pipeline) Run(ctx context.Context, datasetName, question string) (*State, error) {
	st := NewState(datasetName, question)
	p.logf("[%s] analyzing schema of %s", st.RequestID, datasetName)
	if err := p.analyzeSchema(st); err != nil {
		return nil, fmt.Errorf("schema analysis: %w", err)
	}
	p.logf("[%s] planning", st.RequestID)
	if err := p.plan(ctx, st); err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}
	p.logf("[%s] generating script", st.RequestID)
	if err := p.generateScript(ctx, st); err != nil {
		return nil, fmt.Errorf("code generation: %w", err)
	}

	p.execute(st)
	for routeAfterExecution(st.RunFault != "", st.RepairAttempts, p.maxRepairs()) == stageRepair {
		if err := p.repair(ctx, st); err != nil {
			return nil, err
		}
		p.execute(st)
	}

	if err := p.report(ctx, st); err != nil {
		return nil, err
	}
	p.logf("[%s] done (repairs: %d, ok: %v)", st.RequestID, st.RepairAttempts, st.Succeeded())
	return st, nil
}

// Plan runs only the schema-analysis and planning stages and returns the
// state with the plan filled in. No script is generated or executed.
func (p *Pipeline) Plan(ctx context.Context, datasetName, question string) (*State, error) {
	st := NewState(datasetName, question)
	if err := p.analyzeSchema(st); err != nil {
		return nil, fmt.Errorf("schema analysis: %w", err)
	}
	if err := p.plan(ctx, st); err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}
	return st, nil
}

type stage int

const (
	stageRepair stage = iota
	stageReporting
)

// routeAfterExecution is the single branching decision of the pipeline,
// evaluated after every execution attempt. Once the ceiling is reached it
// always routes to reporting, fault or not: exhaustion is a reporting
// concern, never a pipeline abort.
func routeAfterExecution(faultPresent bool, attempts, ceiling int) stage {
	if faultPresent && attempts < ceiling {
		return stageRepair
	}
	return stageReporting
}

func (p *Pipeline) analyzeSchema(st *State) error {
	summary, types, preview, err := p.cfg.Analyzer.Analyze()
	if err != nil {
		return err
	}
	st.SchemaSummary = summary
	st.ColumnTypes = types
	st.SamplePreview = preview
	return nil
}

func (p *Pipeline) plan(ctx context.Context, st *State) error {
	text, err := p.generateText(ctx, prompt.Planner(st.SchemaSummary, st.SamplePreview, st.Question))
	if err != nil {
		return err
	}
	st.Plan = strings.TrimSpace(text)
	return nil
}

func (p *Pipeline) generateScript(ctx context.Context, st *State) error {
	text, err := p.generateText(ctx, prompt.Coder(st.SchemaSummary, st.SamplePreview, st.Plan, st.Question))
	if err != nil {
		return err
	}
	st.Script = CleanScript(text)
	return nil
}

// execute runs the current candidate script and records the outcome triple.
// An empty script is an immediate fault; it consumes no repair attempt by
// itself and goes through the same routing as any other fault.
func (p *Pipeline) execute(st *State) {
	if strings.TrimSpace(st.Script) == "" {
		st.RunOutput = ""
		st.RunFault = emptyScriptFault
		st.Artifact = ""
		st.RunWarnings = nil
		p.logf("[%s] execution skipped: %s", st.RequestID, emptyScriptFault)
		return
	}
	res := p.cfg.Runner.Run(st.Script)
	st.RunOutput = res.Output
	st.RunFault = res.Fault
	st.Artifact = res.Artifact
	st.RunWarnings = res.Warnings
	for _, w := range res.Warnings {
		p.logf("[%s] warning: %s", st.RequestID, w)
	}
	if res.Fault != "" {
		p.logf("[%s] execution failed: %s", st.RequestID, utils.Excerpt(res.Fault, 300))
	} else {
		p.logf("[%s] execution ok (%d bytes of output)", st.RequestID, len(res.Output))
	}
}

// repair asks the model for a corrected script. The attempt counter moves
// before the call so a collaborator failure still accounts for the attempt,
// and the fault is cleared so the next execution reports on the new script,
// not the old one.
func (p *Pipeline) repair(ctx context.Context, st *State) error {
	st.RepairAttempts++
	p.logf("[%s] repairing (attempt %d/%d)", st.RequestID, st.RepairAttempts, p.maxRepairs())
	text, err := p.generateText(ctx, prompt.Debugger(st.Script, st.RunFault, st.SchemaSummary))
	if err != nil {
		return fmt.Errorf("repair attempt %d: %w", st.RepairAttempts, err)
	}
	st.Script = CleanScript(text)
	st.RunFault = ""
	return nil
}

func (p *Pipeline) generateText(ctx context.Context, promptText string) (string, error) {
	req := ai.GenerateRequest{
		Model:       p.cfg.Model,
		Messages:    []ai.Message{{Role: "user", Content: promptText}},
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}
	resp, err := p.cfg.Runtime.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.cfg.Log == nil {
		return
	}
	fmt.Fprintf(p.cfg.Log, format+"\n", args...)
}
