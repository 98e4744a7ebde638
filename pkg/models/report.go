package models

import (
	"fmt"
	"strings"
)

// Report section headings, in mandated order. The narrative synthesizer
// requires all five to be present in the backend response.
var ReportSections = []string{
	"Summary",
	"Key Metrics",
	"Anomalies",
	"Possible Causes",
	"Recommendations",
}

// Report is the terminal artifact of an investigation: five fixed prose
// sections. Degraded is true when the report was assembled locally from raw
// metrics because language-model synthesis failed.
type Report struct {
	Summary         string `json:"summary"`
	KeyMetrics      string `json:"key_metrics"`
	Anomalies       string `json:"anomalies"`
	PossibleCauses  string `json:"possible_causes"`
	Recommendations string `json:"recommendations"`
	Degraded        bool   `json:"degraded"`
}

// Section returns the text of the named section.
func (r *Report) Section(name string) string {
	switch name {
	case "Summary":
		return r.Summary
	case "Key Metrics":
		return r.KeyMetrics
	case "Anomalies":
		return r.Anomalies
	case "Possible Causes":
		return r.PossibleCauses
	case "Recommendations":
		return r.Recommendations
	default:
		return ""
	}
}

// SetSection stores text into the named section. Unknown names are ignored.
func (r *Report) SetSection(name, text string) {
	switch name {
	case "Summary":
		r.Summary = text
	case "Key Metrics":
		r.KeyMetrics = text
	case "Anomalies":
		r.Anomalies = text
	case "Possible Causes":
		r.PossibleCauses = text
	case "Recommendations":
		r.Recommendations = text
	}
}

// Markdown renders the report as a markdown document.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("# Investigation Report\n")
	if r.Degraded {
		b.WriteString("\n_Degraded report: generated from raw metrics without language-model synthesis._\n")
	}
	for _, name := range ReportSections {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", name, strings.TrimSpace(r.Section(name)))
	}
	return b.String()
}
