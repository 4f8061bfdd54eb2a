package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/KaramelBytes/datalens-cli/internal/prompt"
	"github.com/KaramelBytes/datalens-cli/internal/utils"
)

// faultExcerptLimit bounds how much of a backtrace the failure report quotes.
const faultExcerptLimit = 1200

// report writes the terminal FinalReport. When the last attempt faulted and
// produced no output at all there is nothing to narrate, so a structured
// failure report is built locally without calling the model.
func (p *Pipeline) report(ctx context.Context, st *State) error {
	if st.RunFault != "" && st.RunOutput == "" {
		st.FinalReport = failureReport(st)
		return nil
	}
	results := utils.TruncateChars(st.RunOutput, p.reportCharLimit())
	text, err := p.generateText(ctx, prompt.Reporter(st.Question, results))
	if err != nil {
		return fmt.Errorf("reporting: %w", err)
	}
	st.FinalReport = strings.TrimSpace(text)
	return nil
}

// failureReport is a pure function of the terminal state.
func failureReport(st *State) string {
	var b strings.Builder
	b.WriteString("## Analysis Failed\n\n")
	fmt.Fprintf(&b, "**Question:** %s\n\n", st.Question)
	fmt.Fprintf(&b, "The analysis could not be completed after %d repair attempt(s).\n\n", st.RepairAttempts)
	b.WriteString("**Last error:**\n\n```\n")
	b.WriteString(utils.Excerpt(st.RunFault, faultExcerptLimit))
	b.WriteString("\n```\n")
	if st.Plan != "" {
		b.WriteString("\n**Plan that was attempted:**\n\n")
		b.WriteString(st.Plan)
		b.WriteString("\n")
	}
	b.WriteString("\nTry rephrasing the question or checking that it matches the dataset's columns.\n")
	return b.String()
}
