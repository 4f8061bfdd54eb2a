// Package prompt holds the templates sent to the text-generation runtime.
// Centralizing them keeps wording consistent and lets tests pin the contract
// between the pipeline and the model.
package prompt

import "fmt"

// capabilityReference describes the sandbox namespace to the model. Every
// prompt that asks for code embeds it, so the model never invents imports.
const capabilityReference = `The script runs in a restricted Starlark sandbox. There are NO imports.
Only these names are pre-bound:

data  - the loaded dataset:
    data.columns() -> list of column names
    data.n_rows() / data.n_cols() -> int
    data.col(name) -> list of values (numbers for numeric columns, else strings)
    data.mean(name) / data.median(name) / data.min(name) / data.max(name) / data.std(name) -> float
    data.count(name) -> non-null count
    data.unique(name) -> list of distinct values
    data.filter(column, op, value) -> filtered dataset handle (op: "==", "!=", ">", ">=", "<", "<=")
    data.group_mean(by_column, value_column) -> dict of group -> mean
    data.head(n) -> list of rows (each a list of strings)

num   - numeric helpers over lists of numbers:
    num.mean(xs), num.median(xs), num.std(xs), num.min(xs), num.max(xs), num.sum(xs)
    num.corr(xs, ys) -> Pearson correlation
    num.quantile(xs, q) -> q in [0, 1]

chart - visualization builders; assign the result to a global named fig:
    chart.bar(x, y, title="...")      # x: labels, y: numbers
    chart.line(x, y, title="...")
    chart.scatter(x, y, title="...")
    chart.pie(labels, values, title="...")

print(...) output is captured and shown to the user.`

// Planner asks for a short numbered analysis plan.
func Planner(schemaSummary, samplePreview, question string) string {
	return fmt.Sprintf(`You are a data analysis expert. Your job is to create a clear, step-by-step analysis plan.

## Dataset Information
%s

## Sample Data
%s

## User's Question
%s

## Your Task
Create a numbered analysis plan (3-6 steps) that will answer the user's question.

Rules:
1. Each step should be specific and actionable
2. Reference actual column names from the dataset
3. Include what visualizations would help (if any)
4. Consider edge cases (missing data, outliers)
5. Keep it practical - the analysis runs in a small scripting sandbox

Respond with ONLY the numbered plan, no other text.`, schemaSummary, samplePreview, question)
}

// Coder asks for a complete Starlark analysis script.
func Coder(schemaSummary, samplePreview, plan, question string) string {
	return fmt.Sprintf(`You are a data analyst writing a short analysis script.

## Dataset Information
%s

## Sample Data
%s

## Analysis Plan
%s

## User's Question
%s

## Sandbox Reference
%s

## Rules
- Follow the analysis plan step by step
- Print intermediate results with clear labels
- Create a chart with the chart module if a visualization helps, and assign it to a global named fig
- Handle missing values (data.col drops nothing; data.mean and friends ignore non-numeric entries)
- Return ONLY the script, no explanations, no markdown fences.`, schemaSummary, samplePreview, plan, question, capabilityReference)
}

// Debugger asks for a complete corrected script given a failing one.
func Debugger(script, fault, schemaSummary string) string {
	return fmt.Sprintf(`You are a debugging expert. A sandboxed analysis script failed.

## Original Script
%s

## Error
%s

## Dataset Information
%s

## Sandbox Reference
%s

## Your Task
1. Identify why the script failed
2. Fix the issue
3. Return the COMPLETE corrected script, not a diff

Common issues to check:
- Column names must match the dataset exactly (case and spacing)
- Only the pre-bound names exist; there are no imports
- data.col returns strings for non-numeric columns

Return ONLY the fixed script, no explanations, no markdown fences.`, script, fault, schemaSummary, capabilityReference)
}

// Reporter asks for a narrative summary of successful results.
func Reporter(question, results string) string {
	return fmt.Sprintf(`You are a data analyst presenting findings to a non-technical audience.

## User's Question
%s

## Analysis Results
%s

## Your Task
Write a clear, professional report that:
1. Directly answers the user's question
2. Highlights key findings with specific numbers
3. Explains what the data shows in plain English
4. Mentions any limitations or caveats
5. Suggests follow-up questions if relevant

Keep it concise but informative. Use bullet points for key findings.`, question, results)
}
