package investigate

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/salesiq/salesiq-agent/internal/metrics"
)

// Target is the entity and metric extracted from a question.
type Target struct {
	CampaignID int
	Metric     string
}

// metricPhrases maps multi-word phrasings onto canonical metric names.
// Checked before single-token matching so "click-through rate" does not
// stop at "clicks".
var metricPhrases = []struct {
	phrase string
	metric string
}{
	{"click-through rate", "ctr"},
	{"click through rate", "ctr"},
	{"clickthrough rate", "ctr"},
	{"conversion rate", "cvr"},
	{"cost per click", "cpc"},
	{"return on ad spend", "roas"},
}

var reCampaign = regexp.MustCompile(`(?i)campaign\s*#?\s*(\d+)`)

// ParseQuestion extracts the campaign and metric from free text, with
// context overrides taking precedence ("campaign" and "metric" keys).
// Returns ErrAmbiguousQuestion when either is unrecognizable.
func ParseQuestion(question string, context map[string]string) (Target, error) {
	t := Target{}

	if v, ok := context["metric"]; ok && metrics.IsKnownMetric(v) {
		t.Metric = strings.ToLower(v)
	}
	if v, ok := context["campaign"]; ok {
		if id, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && id > 0 {
			t.CampaignID = id
		}
	}

	lower := strings.ToLower(question)

	if t.Metric == "" {
		for _, p := range metricPhrases {
			if strings.Contains(lower, p.phrase) {
				t.Metric = p.metric
				break
			}
		}
	}
	if t.Metric == "" {
		for _, tok := range tokenize(lower) {
			if metrics.IsKnownMetric(tok) {
				t.Metric = tok
				break
			}
		}
	}

	if t.CampaignID == 0 {
		if m := reCampaign.FindStringSubmatch(question); m != nil {
			id, err := strconv.Atoi(m[1])
			if err == nil {
				t.CampaignID = id
			}
		}
	}

	if t.Metric == "" || t.CampaignID == 0 {
		return Target{}, ErrAmbiguousQuestion
	}
	return t, nil
}

func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}
