// Package investigate runs the end-to-end anomaly investigation loop:
// question parsing, schema lookup, query drafting with retry and repair,
// metric computation, and narrative synthesis. Every action is recorded in
// the scratchpad before control returns to the caller.
package investigate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/salesiq/salesiq-agent/internal/cache"
	"github.com/salesiq/salesiq-agent/internal/config"
	"github.com/salesiq/salesiq-agent/internal/metrics"
	"github.com/salesiq/salesiq-agent/internal/scratchpad"
	"github.com/salesiq/salesiq-agent/internal/store"
	"github.com/salesiq/salesiq-agent/internal/synth"
	"github.com/salesiq/salesiq-agent/pkg/models"
)

// Cache TTLs. Schema snapshots outlive reports: table layout changes far
// less often than the data under it.
const (
	schemaCacheTTL = 24 * time.Hour
	reportCacheTTL = 15 * time.Minute
)

// Result is what an investigation run hands back: the investigation record
// with its report, plus the full scratchpad in append order.
type Result struct {
	Investigation models.Investigation
	Entries       []models.ScratchpadEntry
}

// Orchestrator drives one investigation at a time. It is safe to reuse
// across runs; each Run gets its own scratchpad and investigation record.
type Orchestrator struct {
	store     store.Store
	synth     *synth.Synthesizer
	extractor *metrics.Extractor
	cache     cache.Cache
	executor  *Executor
	cfg       config.InvestigationConfig
	log       *slog.Logger

	// cacheNS scopes cache keys to one database so schema snapshots from
	// different deployments never collide.
	cacheNS string

	// now is injectable for tests that pin the comparison windows.
	now func() time.Time
}

// New wires an Orchestrator from its collaborators.
func New(st store.Store, sy *synth.Synthesizer, ex *metrics.Extractor, ca cache.Cache, cfg config.InvestigationConfig, cacheNS string, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	if ca == nil {
		ca = cache.Noop{}
	}
	return &Orchestrator{
		store:     st,
		synth:     sy,
		extractor: ex,
		cache:     ca,
		executor:  NewExecutor(st, cfg.QueryRetries, cfg.RetryDelay, log),
		cfg:       cfg,
		log:       log,
		cacheNS:   cacheNS,
		now:       time.Now,
	}
}

// WithClock overrides the time source. Used by tests that pin the
// comparison windows.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Run executes a full investigation of the question. The returned Result
// always carries the scratchpad accumulated so far, including on failure.
func (o *Orchestrator) Run(ctx context.Context, question string, qctx map[string]string) (*Result, error) {
	inv := models.Investigation{
		ID:        uuid.New(),
		Question:  question,
		Context:   qctx,
		StartedAt: o.now().UTC(),
		Status:    models.StatusInProgress,
	}
	pad := scratchpad.New()
	log := o.log.With("investigation_id", inv.ID)

	fail := func(kind string, err error) (*Result, error) {
		inv.Status = models.StatusFailed
		last, _ := pad.Last()
		return &Result{Investigation: inv, Entries: pad.Entries()}, &InvestigationError{
			Kind:    kind,
			LastSeq: last.Seq,
			Err:     err,
		}
	}

	// Question parsing happens before any store access; an ambiguous
	// question fails fast with an empty scratchpad.
	target, err := ParseQuestion(question, qctx)
	if err != nil {
		log.Warn("question rejected", "error", err)
		return fail("ambiguous_question", err)
	}
	log.Info("investigation started", "campaign", target.CampaignID, "metric", target.Metric)

	baselineDays, recentDays := o.cfg.BaselineDays, o.cfg.RecentDays
	if tf, ok := qctx["timeframe"]; ok {
		if b, r, ok := ParseTimeframe(tf); ok {
			baselineDays, recentDays = b, r
		}
	}

	// The cache key carries the parsed target and window split, so the same
	// question under different context overrides never shares a report.
	reportKey := cache.ReportKey(fmt.Sprintf("%s|%s|campaign=%d|metric=%s|window=%d/%d",
		o.cacheNS, question, target.CampaignID, target.Metric, baselineDays, recentDays))

	// A recent identical investigation may already have a report.
	if report := o.cachedReport(ctx, reportKey); report != nil {
		log.Info("report served from cache")
		inv.Status = models.StatusCompleted
		inv.Report = report
		return &Result{Investigation: inv, Entries: pad.Entries()}, nil
	}

	// Schema lookup: exactly one per investigation, cache-backed.
	schema, fromCache, err := o.fetchSchema(ctx)
	if err != nil {
		pad.Append(models.ActionError, "schema fetch failed", "", err.Error())
		return fail("store_unavailable", fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}
	src := "store"
	if fromCache {
		src = "cache"
	}
	pad.Append(models.ActionSchemaLookup,
		fmt.Sprintf("schema fetched from %s (%d tables)", src, len(schema.Tables)),
		"", schema.Render())

	if err := validateSchema(schema, target.Metric); err != nil {
		pad.Append(models.ActionError, "schema validation failed", "", err.Error())
		return fail("query_failed", err)
	}

	if err := ctx.Err(); err != nil {
		return fail("canceled", err)
	}

	baselineWin, recentWin := SplitWindows(o.now(), baselineDays, recentDays)

	// Primary metric: both windows must succeed or the investigation fails.
	recentRows, err := o.runWindowQuery(ctx, pad, target.Metric, target.CampaignID, recentWin, "recent")
	if err != nil {
		return fail("query_failed", err)
	}
	baselineRows, err := o.runWindowQuery(ctx, pad, target.Metric, target.CampaignID, baselineWin, "baseline")
	if err != nil {
		return fail("query_failed", err)
	}

	primary := o.computeMetric(pad, target.Metric, recentRows, baselineRows, baselineWin, recentWin)
	sets := []models.MetricSet{primary}

	if err := ctx.Err(); err != nil {
		return fail("canceled", err)
	}

	// Broadening pass: when the asked metric shows no deviation, walk the
	// rest of the vocabulary to surface correlated signals. Failures here
	// are recorded and skipped, never fatal.
	if !primary.IsAnomalous {
		for _, m := range metrics.KnownMetrics {
			if m == target.Metric {
				continue
			}
			if err := ctx.Err(); err != nil {
				return fail("canceled", err)
			}
			rRows, err := o.runWindowQuery(ctx, pad, m, target.CampaignID, recentWin, "recent")
			if err != nil {
				log.Warn("broadening query skipped", "metric", m, "error", err)
				continue
			}
			bRows, err := o.runWindowQuery(ctx, pad, m, target.CampaignID, baselineWin, "baseline")
			if err != nil {
				log.Warn("broadening query skipped", "metric", m, "error", err)
				continue
			}
			sets = append(sets, o.computeMetric(pad, m, rRows, bRows, baselineWin, recentWin))
		}
	}

	if err := ctx.Err(); err != nil {
		return fail("canceled", err)
	}

	// Synthesis. A failed or malformed backend response degrades the
	// report instead of failing the investigation.
	evidence := buildEvidence(question, target, schema, pad)
	report, err := o.synth.Synthesize(ctx, evidence)
	if err != nil {
		log.Warn("synthesis failed, building degraded report", "error", err)
		pad.Append(models.ActionError, "synthesis failed", "", err.Error())
		report = BuildDegradedReport(question, sets)
		pad.Append(models.ActionSynthesis, "degraded report assembled from raw metrics", "", report.Summary)
	} else {
		pad.Append(models.ActionSynthesis,
			fmt.Sprintf("report synthesized via %s", o.synth.Provider()),
			"", report.Summary)
	}

	inv.Status = models.StatusCompleted
	inv.Report = report
	o.storeReport(ctx, reportKey, report)

	log.Info("investigation completed", "degraded", report.Degraded, "actions", pad.Len())
	return &Result{Investigation: inv, Entries: pad.Entries()}, nil
}

// runWindowQuery drafts, executes and logs one aggregate query. Retryable
// failures are retried by the executor; a non-retryable failure gets exactly
// one repair attempt with the most recent filter clause dropped.
func (o *Orchestrator) runWindowQuery(ctx context.Context, pad *scratchpad.Scratchpad, metric string, campaignID int, w Window, label string) ([]models.Row, error) {
	query := NewMetricQuery(metric, campaignID, w)
	summary := fmt.Sprintf("%s window query for %s", label, metric)

	res, attempts, err := o.executor.Execute(ctx, query.SQL())
	if err == nil {
		pad.Append(models.ActionQuery, summary, query.SQL(), res.Summary())
		return res.Rows, nil
	}

	var qerr *QueryError
	if errors.As(err, &qerr) && !qerr.Retryable && query.DropLastFilter() {
		pad.Append(models.ActionError,
			fmt.Sprintf("%s failed after %d attempts, repairing query", summary, attempts),
			query.SQL(), err.Error())
		res, _, rerr := o.executor.Execute(ctx, query.SQL())
		if rerr == nil {
			pad.Append(models.ActionQuery, summary+" (repaired)", query.SQL(), res.Summary())
			return res.Rows, nil
		}
		err = rerr
	}

	pad.Append(models.ActionError,
		fmt.Sprintf("%s failed", summary), query.SQL(), err.Error())
	return nil, err
}

func (o *Orchestrator) computeMetric(pad *scratchpad.Scratchpad, metric string, recent, baseline []models.Row, baselineWin, recentWin Window) models.MetricSet {
	set := o.extractor.Compute(recent, baseline, metric)
	set.BaselineStart = baselineWin.Start
	set.BaselineEnd = baselineWin.End
	set.RecentStart = recentWin.Start
	set.RecentEnd = recentWin.End
	pad.Append(models.ActionMetricComputation,
		fmt.Sprintf("computed %s", metric), "", set.Render())
	return set
}

// fetchSchema returns the schema snapshot, preferring the cache. Cache
// failures fall through to the store silently.
func (o *Orchestrator) fetchSchema(ctx context.Context) (*models.SchemaDescriptor, bool, error) {
	key := cache.SchemaKey(o.cacheNS)
	if raw, ok, err := o.cache.Get(ctx, key); err == nil && ok {
		var schema models.SchemaDescriptor
		if json.Unmarshal(raw, &schema) == nil && len(schema.Tables) > 0 {
			return &schema, true, nil
		}
	}

	schema, err := o.store.FetchSchema(ctx)
	if err != nil {
		return nil, false, err
	}

	if raw, err := json.Marshal(schema); err == nil {
		if err := o.cache.Set(ctx, key, raw, schemaCacheTTL); err != nil {
			o.log.Debug("schema cache write failed", "error", err)
		}
	}
	return schema, false, nil
}

func (o *Orchestrator) cachedReport(ctx context.Context, key string) *models.Report {
	raw, ok, err := o.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil
	}
	var report models.Report
	if json.Unmarshal(raw, &report) != nil {
		return nil
	}
	return &report
}

func (o *Orchestrator) storeReport(ctx context.Context, key string, report *models.Report) {
	if report.Degraded {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := o.cache.Set(ctx, key, raw, reportCacheTTL); err != nil {
		o.log.Debug("report cache write failed", "error", err)
	}
}

// validateSchema checks that the snapshot carries the table and counting
// columns the drafted queries will reference.
func validateSchema(schema *models.SchemaDescriptor, metric string) error {
	if schema.Table("daily_metrics") == nil {
		return fmt.Errorf("%w: table daily_metrics not found", store.ErrBadQuery)
	}
	for _, col := range metrics.BaseColumns(metric) {
		if !schema.HasColumn("daily_metrics", col) {
			return fmt.Errorf("%w: column daily_metrics.%s not found", store.ErrBadQuery, col)
		}
	}
	return nil
}

// buildEvidence assembles the synthesis payload: the question, the parsed
// target, the schema snapshot and the full scratchpad rendering.
func buildEvidence(question string, target Target, schema *models.SchemaDescriptor, pad *scratchpad.Scratchpad) string {
	return fmt.Sprintf("Question: %s\nTarget: campaign %d, metric %s\n\nSchema:\n%s\nInvestigation log:\n%s",
		question, target.CampaignID, target.Metric, schema.Render(), pad.RenderForPrompt())
}
