package investigate_test

import (
	"testing"

	"github.com/salesiq/salesiq-agent/internal/investigate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuestion(t *testing.T) {
	tests := []struct {
		name     string
		question string
		context  map[string]string
		want     investigate.Target
		wantErr  bool
	}{
		{
			name:     "canonical ctr question",
			question: "Why did the CTR drop for Campaign 5?",
			want:     investigate.Target{CampaignID: 5, Metric: "ctr"},
		},
		{
			name:     "phrase beats token",
			question: "What happened to the click-through rate on campaign 3?",
			want:     investigate.Target{CampaignID: 3, Metric: "ctr"},
		},
		{
			name:     "spelled out conversion rate",
			question: "Did the conversion rate change for Campaign #7?",
			want:     investigate.Target{CampaignID: 7, Metric: "cvr"},
		},
		{
			name:     "return on ad spend phrase",
			question: "Is the return on ad spend still healthy for campaign 2?",
			want:     investigate.Target{CampaignID: 2, Metric: "roas"},
		},
		{
			name:     "plain metric token",
			question: "Show me the spend trend for Campaign 9",
			want:     investigate.Target{CampaignID: 9, Metric: "spend"},
		},
		{
			name:     "punctuation around the metric",
			question: "campaign 4: impressions?",
			want:     investigate.Target{CampaignID: 4, Metric: "impressions"},
		},
		{
			name:     "context overrides question text",
			question: "Why did performance change?",
			context:  map[string]string{"campaign": "6", "metric": "cpc"},
			want:     investigate.Target{CampaignID: 6, Metric: "cpc"},
		},
		{
			name:     "context fills missing campaign",
			question: "Why did the CTR drop?",
			context:  map[string]string{"campaign": "5"},
			want:     investigate.Target{CampaignID: 5, Metric: "ctr"},
		},
		{
			name:     "unknown metric in context is ignored",
			question: "Why did the CTR drop for Campaign 5?",
			context:  map[string]string{"metric": "bounce_rate"},
			want:     investigate.Target{CampaignID: 5, Metric: "ctr"},
		},
		{
			name:     "no metric",
			question: "Why did things go wrong for Campaign 5?",
			wantErr:  true,
		},
		{
			name:     "no campaign",
			question: "Why did the CTR drop?",
			wantErr:  true,
		},
		{
			name:     "empty question",
			question: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := investigate.ParseQuestion(tt.question, tt.context)
			if tt.wantErr {
				require.ErrorIs(t, err, investigate.ErrAmbiguousQuestion)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
