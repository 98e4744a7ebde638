package investigate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/salesiq/salesiq-agent/internal/metrics"
)

// Window is a half-open date range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// SplitWindows derives the baseline and recent comparison windows ending
// at ref: recent covers the last recentDays days, baseline the
// baselineDays before them.
func SplitWindows(ref time.Time, baselineDays, recentDays int) (baseline, recent Window) {
	end := truncateDay(ref).AddDate(0, 0, 1)
	recent = Window{Start: end.AddDate(0, 0, -recentDays), End: end}
	baseline = Window{Start: recent.Start.AddDate(0, 0, -baselineDays), End: recent.Start}
	return baseline, recent
}

var reTimeframe = regexp.MustCompile(`^(\d+)d$`)

// ParseTimeframe interprets a context timeframe override of the form "30d"
// as the total lookback, split between baseline and recent in the same
// 2:1 proportion as the defaults. Returns false for anything else.
func ParseTimeframe(s string) (baselineDays, recentDays int, ok bool) {
	m := reTimeframe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, false
	}
	total, err := strconv.Atoi(m[1])
	if err != nil || total < 3 {
		return 0, 0, false
	}
	recentDays = total / 3
	baselineDays = total - recentDays
	return baselineDays, recentDays, true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Query is one drafted aggregate query over daily_metrics. Filters are
// kept in draft order so the repair path can drop the most recently added
// clause.
type Query struct {
	columns []string
	filters []string
}

// NewMetricQuery drafts the aggregate query for one metric, campaign and
// window. The metric's counting columns are summed; rate metrics are
// derived later by the extractor, never in SQL, so a zero denominator can
// be handled without a database error.
func NewMetricQuery(metric string, campaignID int, w Window) *Query {
	cols := metrics.BaseColumns(metric)
	q := &Query{}
	for _, c := range cols {
		q.columns = append(q.columns, fmt.Sprintf("SUM(%s) AS %s", c, c))
	}
	q.filters = append(q.filters,
		fmt.Sprintf("campaign_id = %d", campaignID),
		fmt.Sprintf("date >= '%s'", w.Start.Format("2006-01-02")),
		fmt.Sprintf("date < '%s'", w.End.Format("2006-01-02")),
	)
	return q
}

// SQL renders the query text.
func (q *Query) SQL() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.columns, ", "))
	b.WriteString(" FROM daily_metrics")
	if len(q.filters) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.filters, " AND "))
	}
	return b.String()
}

// DropLastFilter removes the most recently added filter clause, the
// single repair move allowed after a non-retryable failure. Reports
// whether a clause was removed.
func (q *Query) DropLastFilter() bool {
	if len(q.filters) == 0 {
		return false
	}
	q.filters = q.filters[:len(q.filters)-1]
	return true
}
