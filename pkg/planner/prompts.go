package planner

import (
	"strings"
	"text/template"
)

const planPromptTemplate = `You are a planning assistant. Break down the following task into 3-5 specific, actionable steps.

Task: {{.Query}}

{{- if .Feedback}}

Previous attempt summary:
{{.Feedback}}

Please create an improved plan based on the previous attempt.
{{- end}}

Return ONLY the numbered steps, one per line, starting with '1.', '2.', etc.
Do not include any explanation or preamble. Just the steps.`

const executePromptTemplate = `You are an execution assistant working on the following query:

Original Query: {{.Query}}

Current Step to Execute: {{.Step}}
{{- if .History}}

Previous steps completed:
{{- range .History}}
{{.StepNumber}}. {{.Description}}
   Result: {{.Result}}
{{- end}}
{{- end}}

Execute the current step and provide a detailed result. Be thorough and specific in your execution.`

const synthesisPromptTemplate = `You are a synthesis assistant. Create a comprehensive answer to the following query based on the execution results.

Original Query: {{.Query}}

Execution Steps and Results:
{{- range .History}}
{{.StepNumber}}. {{.Description}}
   Result: {{.Result}}
{{- end}}

Synthesize the above results into a clear, comprehensive answer to the original query. Be thorough and well-structured.`

const scorePromptTemplate = `You are a quality evaluator. Evaluate the quality and completeness of the following answer.

Original Query: {{.Query}}

Answer: {{.Synthesis}}

Evaluate on a scale from 0.0 to 1.0 where:
- 0.9-1.0 = Excellent, complete, accurate answer
- 0.7-0.9 = Good answer with minor gaps
- 0.5-0.7 = Acceptable but incomplete
- Below 0.5 = Poor or significantly incomplete

Return ONLY a number between 0.0 and 1.0, nothing else.`

var (
	tmplPlan      = template.Must(template.New("plan").Parse(planPromptTemplate))
	tmplExecute   = template.Must(template.New("execute").Parse(executePromptTemplate))
	tmplSynthesis = template.Must(template.New("synthesis").Parse(synthesisPromptTemplate))
	tmplScore     = template.Must(template.New("score").Parse(scorePromptTemplate))
)

type planPromptData struct {
	Query    string
	Feedback string
}

type executePromptData struct {
	Query   string
	Step    string
	History []ExecutionStep
}

type synthesisPromptData struct {
	Query   string
	History []ExecutionStep
}

type scorePromptData struct {
	Query     string
	Synthesis string
}

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
