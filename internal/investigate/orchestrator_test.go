package investigate_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/salesiq/salesiq-agent/internal/cache"
	"github.com/salesiq/salesiq-agent/internal/config"
	"github.com/salesiq/salesiq-agent/internal/investigate"
	"github.com/salesiq/salesiq-agent/internal/llm"
	"github.com/salesiq/salesiq-agent/internal/metrics"
	"github.com/salesiq/salesiq-agent/internal/store"
	"github.com/salesiq/salesiq-agent/internal/synth"
	"github.com/salesiq/salesiq-agent/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testQuestion = "Why did the CTR drop for Campaign 5?"
	testCacheNS  = "test-db"
)

// refTime pins the comparison windows: recent [2025-06-06, 2025-06-16),
// baseline [2025-05-17, 2025-06-06).
var refTime = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testConfig() config.InvestigationConfig {
	return config.InvestigationConfig{
		AnomalyThreshold: 0.20,
		BaselineDays:     20,
		RecentDays:       10,
		QueryRetries:     2,
		RetryDelay:       time.Millisecond,
	}
}

func newOrchestrator(st *mockStore, client llm.Client, ca cache.Cache) *investigate.Orchestrator {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sy := synth.New(client, time.Second, log)
	return investigate.New(st, sy, metrics.NewExtractor(0.20), ca, testConfig(), testCacheNS, log).
		WithClock(func() time.Time { return refTime })
}

// droppedCTRStore returns a store whose recent window shows half the CTR
// of the baseline: 80/8000 vs 200/8000.
func droppedCTRStore() *mockStore {
	return &mockStore{
		ExecuteFunc: func(_ context.Context, query string) (*models.QueryResult, error) {
			row := models.Row{
				"impressions": int64(8000), "clicks": int64(200),
				"conversions": int64(20), "spend": 400.0, "revenue": 800.0,
			}
			if strings.Contains(query, "date >= '2025-06-06'") {
				row["clicks"] = int64(80)
				row["conversions"] = int64(8)
			}
			return singleRow(row), nil
		},
	}
}

func countKind(entries []models.ScratchpadEntry, kind string) int {
	n := 0
	for _, e := range entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func findEntry(entries []models.ScratchpadEntry, kind, summaryPart string) (models.ScratchpadEntry, bool) {
	for _, e := range entries {
		if e.Kind == kind && strings.Contains(e.Summary, summaryPart) {
			return e, true
		}
	}
	return models.ScratchpadEntry{}, false
}

func TestRun_CTRDropEndToEnd(t *testing.T) {
	st := droppedCTRStore()
	orch := newOrchestrator(st, llm.NewMockClient(), cache.Noop{})

	result, err := orch.Run(context.Background(), testQuestion, nil)
	require.NoError(t, err)

	inv := result.Investigation
	assert.Equal(t, models.StatusCompleted, inv.Status)
	require.NotNil(t, inv.Report)
	assert.False(t, inv.Report.Degraded)
	assert.NotEmpty(t, inv.Report.Summary)

	// Exactly one schema lookup per investigation.
	assert.Equal(t, 1, countKind(result.Entries, models.ActionSchemaLookup))

	// The CTR drop is flagged with its magnitude.
	entry, ok := findEntry(result.Entries, models.ActionMetricComputation, "computed ctr")
	require.True(t, ok)
	assert.Contains(t, entry.Output, "-60.0%")
	assert.Contains(t, entry.Output, "ANOMALOUS")

	// An anomalous primary metric answers the question directly; no
	// broadening pass runs.
	assert.Equal(t, 2, countKind(result.Entries, models.ActionQuery))
	assert.Equal(t, 1, countKind(result.Entries, models.ActionMetricComputation))

	// Sequence numbers are gapless across the whole run.
	for i, e := range result.Entries {
		assert.Equal(t, i+1, e.Seq)
	}

	_, ok = findEntry(result.Entries, models.ActionSynthesis, "report synthesized")
	assert.True(t, ok)
}

func TestRun_NoAnomalyTriggersBroadening(t *testing.T) {
	st := &mockStore{
		ExecuteFunc: func(_ context.Context, _ string) (*models.QueryResult, error) {
			return singleRow(models.Row{
				"impressions": int64(4000), "clicks": int64(100),
				"conversions": int64(10), "spend": 200.0, "revenue": 400.0,
			}), nil
		},
	}
	orch := newOrchestrator(st, llm.NewMockClient(), cache.Noop{})

	result, err := orch.Run(context.Background(), testQuestion, nil)
	require.NoError(t, err)

	// A quiet primary metric broadens to the full vocabulary: two queries
	// for the primary plus two per remaining metric.
	assert.Equal(t, 2*len(metrics.KnownMetrics), countKind(result.Entries, models.ActionQuery))
	assert.Equal(t, len(metrics.KnownMetrics), countKind(result.Entries, models.ActionMetricComputation))
}

func TestRun_BroadeningFailureIsSkippedNotFatal(t *testing.T) {
	st := &mockStore{
		ExecuteFunc: func(_ context.Context, query string) (*models.QueryResult, error) {
			// The revenue column (needed by roas only) is rejected; every
			// other query succeeds with flat values.
			if strings.Contains(query, "revenue") {
				return nil, store.ErrBadQuery
			}
			return singleRow(models.Row{
				"impressions": int64(4000), "clicks": int64(100),
				"conversions": int64(10), "spend": 200.0,
			}), nil
		},
	}
	orch := newOrchestrator(st, llm.NewMockClient(), cache.Noop{})

	result, err := orch.Run(context.Background(), testQuestion, nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, result.Investigation.Status)
	// roas is skipped after its failure; the other metrics still compute.
	assert.Equal(t, len(metrics.KnownMetrics)-1, countKind(result.Entries, models.ActionMetricComputation))
	assert.Greater(t, countKind(result.Entries, models.ActionError), 0)
}

func TestRun_AmbiguousQuestionFailsBeforeStoreAccess(t *testing.T) {
	schemaCalls := 0
	st := &mockStore{
		SchemaFunc: func(_ context.Context) (*models.SchemaDescriptor, error) {
			schemaCalls++
			return demoSchema(), nil
		},
	}
	orch := newOrchestrator(st, llm.NewMockClient(), cache.Noop{})

	result, err := orch.Run(context.Background(), "Why did things go wrong?", nil)
	require.ErrorIs(t, err, investigate.ErrAmbiguousQuestion)

	var ierr *investigate.InvestigationError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "ambiguous_question", ierr.Kind)

	assert.Equal(t, models.StatusFailed, result.Investigation.Status)
	assert.Empty(t, result.Entries)
	assert.Empty(t, st.executed())
	assert.Zero(t, schemaCalls)
}

func TestRun_SchemaFetchFailure(t *testing.T) {
	st := &mockStore{
		SchemaFunc: func(_ context.Context) (*models.SchemaDescriptor, error) {
			return nil, store.ErrUnreachable
		},
	}
	orch := newOrchestrator(st, llm.NewMockClient(), cache.Noop{})

	result, err := orch.Run(context.Background(), testQuestion, nil)
	require.ErrorIs(t, err, investigate.ErrStoreUnavailable)

	assert.Equal(t, models.StatusFailed, result.Investigation.Status)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, models.ActionError, result.Entries[0].Kind)
}

func TestRun_RetryableFailureExhaustsAttempts(t *testing.T) {
	st := &mockStore{
		ExecuteFunc: func(_ context.Context, _ string) (*models.QueryResult, error) {
			return nil, store.ErrTimeout
		},
	}
	orch := newOrchestrator(st, llm.NewMockClient(), cache.Noop{})

	result, err := orch.Run(context.Background(), testQuestion, nil)
	require.Error(t, err)

	var ierr *investigate.InvestigationError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "query_failed", ierr.Kind)

	var qerr *investigate.QueryError
	require.ErrorAs(t, err, &qerr)
	assert.True(t, qerr.Retryable)
	assert.Equal(t, 3, qerr.Attempts)

	// Same query text on every attempt, no repair for retryable failures.
	executed := st.executed()
	require.Len(t, executed, 3)
	assert.Equal(t, executed[0], executed[1])
	assert.Equal(t, executed[1], executed[2])

	assert.Equal(t, models.StatusFailed, result.Investigation.Status)
	assert.Equal(t, 1, countKind(result.Entries, models.ActionError))
}

func TestRun_NonRetryableFailureGetsOneRepair(t *testing.T) {
	st := &mockStore{
		ExecuteFunc: func(_ context.Context, query string) (*models.QueryResult, error) {
			// The upper date bound clause is rejected until the repair
			// drops it.
			if strings.Contains(query, "date < '") {
				return nil, store.ErrBadQuery
			}
			row := models.Row{"clicks": int64(200), "impressions": int64(8000)}
			if strings.Contains(query, "date >= '2025-06-06'") {
				row["clicks"] = int64(80)
			}
			return singleRow(row), nil
		},
	}
	orch := newOrchestrator(st, llm.NewMockClient(), cache.Noop{})

	result, err := orch.Run(context.Background(), testQuestion, nil)
	require.NoError(t, err)

	// Each window query: one failed attempt, one repaired success.
	executed := st.executed()
	require.Len(t, executed, 4)
	assert.Contains(t, executed[0], "date < '")
	assert.NotContains(t, executed[1], "date < '")

	_, ok := findEntry(result.Entries, models.ActionError, "repairing query")
	assert.True(t, ok)
	_, ok = findEntry(result.Entries, models.ActionQuery, "(repaired)")
	assert.True(t, ok)
	assert.Equal(t, models.StatusCompleted, result.Investigation.Status)
}

func TestRun_SynthesisFailureDegradesReport(t *testing.T) {
	st := droppedCTRStore()
	ca := newMapCache()
	orch := newOrchestrator(st, llm.NewFailingClient(llm.ErrUnavailable), ca)

	result, err := orch.Run(context.Background(), testQuestion, nil)
	require.NoError(t, err)

	inv := result.Investigation
	assert.Equal(t, models.StatusCompleted, inv.Status)
	require.NotNil(t, inv.Report)
	assert.True(t, inv.Report.Degraded)

	// The degraded report still names the finding: metric, magnitude and
	// the recent window boundary.
	assert.Contains(t, inv.Report.Summary, "ctr")
	assert.Contains(t, inv.Report.Summary, "-60.0%")
	assert.Contains(t, inv.Report.Summary, "2025-06-06")
	assert.NotEmpty(t, inv.Report.KeyMetrics)

	_, ok := findEntry(result.Entries, models.ActionError, "synthesis failed")
	assert.True(t, ok)
	_, ok = findEntry(result.Entries, models.ActionSynthesis, "degraded report")
	assert.True(t, ok)

	// Degraded reports are never cached.
	for key := range ca.data {
		assert.NotContains(t, key, "salesiq:v1:report:")
	}
}

func TestRun_MalformedSynthesisDegradesReport(t *testing.T) {
	client := &llm.MockClient{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, _ string) (string, error) {
			return "## Summary\nonly one section", nil
		},
	}
	orch := newOrchestrator(droppedCTRStore(), client, cache.Noop{})

	result, err := orch.Run(context.Background(), testQuestion, nil)
	require.NoError(t, err)
	assert.True(t, result.Investigation.Report.Degraded)
}

func TestRun_ReportServedFromCache(t *testing.T) {
	ca := newMapCache()
	first, err := newOrchestrator(droppedCTRStore(), llm.NewMockClient(), ca).
		Run(context.Background(), testQuestion, nil)
	require.NoError(t, err)

	// The second run's store rejects everything; only a cache hit can
	// complete it.
	st := &mockStore{
		SchemaFunc: func(_ context.Context) (*models.SchemaDescriptor, error) {
			return nil, store.ErrUnreachable
		},
		ExecuteFunc: func(_ context.Context, _ string) (*models.QueryResult, error) {
			return nil, store.ErrUnreachable
		},
	}
	orch := newOrchestrator(st, llm.NewMockClient(), ca)

	result, err := orch.Run(context.Background(), testQuestion, nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, result.Investigation.Status)
	assert.Equal(t, first.Investigation.Report.Summary, result.Investigation.Report.Summary)
	assert.Empty(t, result.Entries)
	assert.Empty(t, st.executed())
}

func TestRun_ContextOverrideBypassesReportCache(t *testing.T) {
	question := "Why did performance change?"
	ca := newMapCache()

	first, err := newOrchestrator(droppedCTRStore(), llm.NewMockClient(), ca).
		Run(context.Background(), question, map[string]string{"campaign": "6", "metric": "cpc"})
	require.NoError(t, err)
	require.NotEmpty(t, first.Entries)

	// Same question text, different target: the cached cpc report must not
	// be served for the ctr investigation.
	st := droppedCTRStore()
	second, err := newOrchestrator(st, llm.NewMockClient(), ca).
		Run(context.Background(), question, map[string]string{"campaign": "5", "metric": "ctr"})
	require.NoError(t, err)

	require.NotEmpty(t, second.Entries)
	assert.NotEmpty(t, st.executed())
	_, ok := findEntry(second.Entries, models.ActionMetricComputation, "computed ctr")
	assert.True(t, ok)
}

func TestRun_TimeframeOverrideBypassesReportCache(t *testing.T) {
	ca := newMapCache()
	_, err := newOrchestrator(droppedCTRStore(), llm.NewMockClient(), ca).
		Run(context.Background(), testQuestion, nil)
	require.NoError(t, err)

	st := droppedCTRStore()
	second, err := newOrchestrator(st, llm.NewMockClient(), ca).
		Run(context.Background(), testQuestion, map[string]string{"timeframe": "9d"})
	require.NoError(t, err)

	require.NotEmpty(t, second.Entries)
	assert.NotEmpty(t, st.executed())
}

func TestRun_SchemaServedFromCacheOnSecondRun(t *testing.T) {
	schemaCalls := 0
	st := droppedCTRStore()
	st.SchemaFunc = func(_ context.Context) (*models.SchemaDescriptor, error) {
		schemaCalls++
		return demoSchema(), nil
	}
	ca := newMapCache()
	orch := newOrchestrator(st, llm.NewMockClient(), ca)

	_, err := orch.Run(context.Background(), testQuestion, nil)
	require.NoError(t, err)
	require.Equal(t, 1, schemaCalls)

	// A different question misses the report cache but hits the schema
	// cache.
	result, err := orch.Run(context.Background(), "How is the cpc for campaign 5?", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, schemaCalls)

	entry, ok := findEntry(result.Entries, models.ActionSchemaLookup, "from cache")
	require.True(t, ok)
	assert.Contains(t, entry.Output, "daily_metrics")
}

func TestRun_TimeframeOverride(t *testing.T) {
	st := &mockStore{
		ExecuteFunc: func(_ context.Context, _ string) (*models.QueryResult, error) {
			return singleRow(models.Row{"clicks": int64(100), "impressions": int64(4000)}), nil
		},
	}
	orch := newOrchestrator(st, llm.NewMockClient(), cache.Noop{})

	_, err := orch.Run(context.Background(), testQuestion, map[string]string{"timeframe": "9d"})
	require.NoError(t, err)

	// 9d splits into 6 baseline + 3 recent days; recent window is
	// [2025-06-13, 2025-06-16).
	executed := st.executed()
	require.Len(t, executed, 2)
	assert.Contains(t, executed[0], "date >= '2025-06-13'")
	assert.Contains(t, executed[1], "date >= '2025-06-07'")
	assert.Contains(t, executed[1], "date < '2025-06-13'")
}

func TestRun_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := newOrchestrator(droppedCTRStore(), llm.NewMockClient(), cache.Noop{})

	result, err := orch.Run(ctx, testQuestion, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, models.StatusFailed, result.Investigation.Status)
}

func TestRun_SchemaMissingColumnFails(t *testing.T) {
	st := &mockStore{
		SchemaFunc: func(_ context.Context) (*models.SchemaDescriptor, error) {
			return &models.SchemaDescriptor{Tables: []models.Table{
				{Name: "daily_metrics", Columns: []models.Column{
					{Name: "date", DataType: "date"},
				}},
			}}, nil
		},
	}
	orch := newOrchestrator(st, llm.NewMockClient(), cache.Noop{})

	result, err := orch.Run(context.Background(), testQuestion, nil)
	require.ErrorIs(t, err, store.ErrBadQuery)
	assert.Equal(t, models.StatusFailed, result.Investigation.Status)
	assert.Empty(t, st.executed())
}
