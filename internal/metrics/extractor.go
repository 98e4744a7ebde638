// Package metrics computes derived campaign metrics and flags notable
// deviations between a recent window and a baseline window.
//
// Anomaly detection here is a plain threshold comparison on the relative
// delta, not a statistical model. That is a deliberate simplicity
// trade-off: the orchestrator needs a cheap, explainable signal to decide
// whether to broaden the investigation, and the threshold is configurable.
package metrics

import (
	"math"
	"strings"

	"github.com/salesiq/salesiq-agent/pkg/models"
)

// DefaultThreshold is the |delta_pct| at or above which a metric is flagged
// anomalous. Provisional configuration, overridable per Extractor.
const DefaultThreshold = 0.20

// KnownMetrics is the vocabulary of metrics the agent understands, in the
// order the broadening pass walks them.
var KnownMetrics = []string{"ctr", "clicks", "impressions", "conversions", "cvr", "spend", "cpc", "roas"}

// rateMetrics maps each derived metric to its numerator and denominator
// counting columns. Non-rate metrics are plain sums of their own column.
var rateMetrics = map[string][2]string{
	"ctr":  {"clicks", "impressions"},
	"cvr":  {"conversions", "clicks"},
	"cpc":  {"spend", "clicks"},
	"roas": {"revenue", "spend"},
}

// IsKnownMetric reports whether name is in the metric vocabulary.
func IsKnownMetric(name string) bool {
	name = strings.ToLower(name)
	for _, m := range KnownMetrics {
		if m == name {
			return true
		}
	}
	return false
}

// BaseColumns returns the counting columns a metric is derived from. Plain
// metrics return themselves.
func BaseColumns(metric string) []string {
	if nd, ok := rateMetrics[strings.ToLower(metric)]; ok {
		return []string{nd[0], nd[1]}
	}
	return []string{strings.ToLower(metric)}
}

// Extractor computes MetricSets from raw query rows.
type Extractor struct {
	threshold float64
}

// NewExtractor returns an Extractor with the given anomaly threshold.
// A non-positive threshold falls back to DefaultThreshold.
func NewExtractor(threshold float64) *Extractor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Extractor{threshold: threshold}
}

// Threshold returns the configured anomaly threshold.
func (e *Extractor) Threshold() float64 {
	return e.threshold
}

// Compute derives the named metric for the current and baseline windows.
// Rate metrics are ratios of summed counting columns; a zero denominator
// yields a nil value, never a division fault. DeltaPct is nil whenever the
// baseline is nil or zero. IsAnomalous is |DeltaPct| >= threshold.
func (e *Extractor) Compute(current, baseline []models.Row, metric string) models.MetricSet {
	metric = strings.ToLower(metric)

	set := models.MetricSet{
		Metric:    metric,
		Threshold: e.threshold,
		Current:   metricValue(current, metric),
		Baseline:  metricValue(baseline, metric),
	}

	if set.Current != nil && set.Baseline != nil && *set.Baseline != 0 {
		delta := (*set.Current - *set.Baseline) / *set.Baseline
		set.DeltaPct = &delta
		set.IsAnomalous = math.Abs(delta) >= e.threshold
	}

	return set
}

// metricValue aggregates the rows into a single value for the metric:
// a ratio of column sums for rate metrics, a plain sum otherwise. Returns
// nil when the rows carry no usable values or a denominator sums to zero.
func metricValue(rows []models.Row, metric string) *float64 {
	if nd, ok := rateMetrics[metric]; ok {
		num, numOK := sumColumn(rows, nd[0])
		den, denOK := sumColumn(rows, nd[1])
		if !numOK || !denOK || den == 0 {
			return nil
		}
		v := num / den
		return &v
	}

	sum, ok := sumColumn(rows, metric)
	if !ok {
		return nil
	}
	return &sum
}

func sumColumn(rows []models.Row, column string) (float64, bool) {
	var sum float64
	found := false
	for _, row := range rows {
		if v, ok := row.Float64(column); ok {
			sum += v
			found = true
		}
	}
	return sum, found
}
