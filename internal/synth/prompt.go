package synth

import "strings"

// promptTemplate is the fixed analyst instruction wrapped around the
// evidence payload. The five mandated section headings must appear in the
// response for parsing to succeed.
const promptTemplate = `You are a data analyst specialized in marketing and sales data.
Analyze the following investigation evidence and provide a clear, concise
root-cause report. Focus on identifying anomalies, trends, and plausible
explanations, and support every conclusion with the data provided.

Format your response as markdown with exactly these sections:

## Summary
A brief overview of what you found.

## Key Metrics
Important numbers and their significance.

## Anomalies
Any unusual patterns or outliers, with magnitude and timing.

## Possible Causes
Plausible explanations for the findings.

## Recommendations
Suggested next steps or areas to investigate further.

EVIDENCE:
`

// BuildPrompt wraps the serialized investigation evidence in the fixed
// analytical template. Pure function: no side effects, no network.
func BuildPrompt(evidence string) string {
	var b strings.Builder
	b.WriteString(promptTemplate)
	b.WriteString(strings.TrimRight(evidence, "\n"))
	b.WriteString("\n")
	return b.String()
}
