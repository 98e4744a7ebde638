package investigate

import (
	"fmt"
	"strings"

	"github.com/salesiq/salesiq-agent/pkg/models"
)

// BuildDegradedReport assembles a report directly from computed metrics
// when synthesis is unavailable. It keeps the mandated five-section shape
// and states the anomaly magnitude and the window boundary so the reader
// still gets the core finding.
func BuildDegradedReport(question string, sets []models.MetricSet) *models.Report {
	report := &models.Report{Degraded: true}

	var anomalous []models.MetricSet
	for _, s := range sets {
		if s.IsAnomalous {
			anomalous = append(anomalous, s)
		}
	}

	var summary strings.Builder
	fmt.Fprintf(&summary, "Investigation of %q completed without language-model synthesis.\n", question)
	if len(anomalous) == 0 {
		summary.WriteString("No metric deviated beyond its anomaly threshold between the baseline and recent windows.")
	} else {
		for _, s := range anomalous {
			fmt.Fprintf(&summary, "%s moved %s versus baseline starting %s.\n",
				s.Metric, deltaPhrase(s), s.RecentStart.Format("2006-01-02"))
		}
	}
	report.Summary = strings.TrimSpace(summary.String())

	var km strings.Builder
	for _, s := range sets {
		km.WriteString(s.Render())
		km.WriteString("\n")
	}
	report.KeyMetrics = strings.TrimSpace(km.String())

	if len(anomalous) == 0 {
		report.Anomalies = "None detected."
	} else {
		var an strings.Builder
		for _, s := range anomalous {
			fmt.Fprintf(&an, "%s: %s change from the recent window beginning %s (threshold %.0f%%).\n",
				s.Metric, deltaPhrase(s), s.RecentStart.Format("2006-01-02"), s.Threshold*100)
		}
		report.Anomalies = strings.TrimSpace(an.String())
	}

	report.PossibleCauses = "Not assessed: cause analysis requires the language-model backend, which was unavailable for this run."
	report.Recommendations = "Re-run the investigation once the language-model backend is reachable, and review the flagged metrics above against recent campaign changes."

	return report
}

func deltaPhrase(s models.MetricSet) string {
	if s.DeltaPct == nil {
		return "an unmeasurable amount"
	}
	return fmt.Sprintf("%+.1f%%", *s.DeltaPct*100)
}
