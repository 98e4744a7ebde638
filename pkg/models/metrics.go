package models

import (
	"fmt"
	"strings"
	"time"
)

// MetricSet holds the computed current/baseline values, the derived delta
// and the anomaly flag for one named metric.
type MetricSet struct {
	Metric        string    `json:"metric"`
	Current       *float64  `json:"current"`
	Baseline      *float64  `json:"baseline"`
	DeltaPct      *float64  `json:"delta_pct"`
	IsAnomalous   bool      `json:"is_anomalous"`
	Threshold     float64   `json:"threshold"`
	BaselineStart time.Time `json:"baseline_start,omitempty"`
	BaselineEnd   time.Time `json:"baseline_end,omitempty"`
	RecentStart   time.Time `json:"recent_start,omitempty"`
	RecentEnd     time.Time `json:"recent_end,omitempty"`
}

// Render returns a deterministic one-line summary of the metric set,
// used in scratchpad entries and the degraded report.
func (m MetricSet) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: current=%s baseline=%s delta=%s", m.Metric,
		fmtVal(m.Current), fmtVal(m.Baseline), fmtPct(m.DeltaPct))
	if m.IsAnomalous {
		fmt.Fprintf(&b, " ANOMALOUS (threshold %.0f%%)", m.Threshold*100)
	}
	return b.String()
}

func fmtVal(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", *v)
}

func fmtPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", *v*100)
}
