// Package seed populates the database with deterministic demo campaign
// data, including a known CTR anomaly for the agent to find: Campaign 5's
// click-through rate is halved from day 20 of the 30-day range onward.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	CampaignCount   = 10
	AdsPerCampaign  = 5
	DaysOfData      = 30
	AnomalyCampaign = 5
	AnomalyStartDay = 20
	ctrDropFactor   = 0.5
)

var (
	adTypes         = []string{"banner", "video", "text", "carousel", "native"}
	statuses        = []string{"active", "paused", "completed"}
	targetAudiences = []string{"young adults", "seniors", "professionals", "students"}
)

// Campaign mirrors one row of the campaigns table.
type Campaign struct {
	ID             int
	Name           string
	Description    string
	StartDate      time.Time
	EndDate        time.Time
	Budget         float64
	Status         string
	TargetAudience string
}

// Ad mirrors one row of the ads table.
type Ad struct {
	ID         int
	CampaignID int
	Name       string
	AdType     string
}

// DailyMetric mirrors one row of the daily_metrics table.
type DailyMetric struct {
	Date        time.Time
	CampaignID  int
	AdID        int
	Impressions int
	Clicks      int
	Conversions int
	Spend       float64
	Revenue     float64
}

// Dataset is a fully generated demo dataset.
type Dataset struct {
	Campaigns []Campaign
	Ads       []Ad
	Metrics   []DailyMetric
}

// Generate builds the demo dataset ending at endDate. The same seed always
// produces the same data, so tests can assert on the anomaly shape.
func Generate(endDate time.Time, rngSeed int64) *Dataset {
	rng := rand.New(rand.NewSource(rngSeed))
	base := endDate.AddDate(0, 0, -(DaysOfData - 1))

	ds := &Dataset{}
	adID := 0
	for c := 1; c <= CampaignCount; c++ {
		ds.Campaigns = append(ds.Campaigns, Campaign{
			ID:             c,
			Name:           fmt.Sprintf("Campaign %d", c),
			Description:    fmt.Sprintf("Demo campaign %d for sales analytics", c),
			StartDate:      base,
			EndDate:        endDate.AddDate(0, 0, 10+rng.Intn(20)),
			Budget:         5000 + rng.Float64()*45000,
			Status:         statuses[rng.Intn(len(statuses))],
			TargetAudience: targetAudiences[rng.Intn(len(targetAudiences))],
		})
		for a := 1; a <= AdsPerCampaign; a++ {
			adID++
			ds.Ads = append(ds.Ads, Ad{
				ID:         adID,
				CampaignID: c,
				Name:       fmt.Sprintf("Ad %d for Campaign %d", a, c),
				AdType:     adTypes[rng.Intn(len(adTypes))],
			})
		}
	}

	for day := 0; day < DaysOfData; day++ {
		date := base.AddDate(0, 0, day)
		for _, ad := range ds.Ads {
			impressions := 500 + rng.Intn(1500)
			ctr := 0.01 + rng.Float64()*0.04
			cvr := 0.01 + rng.Float64()*0.09

			if ad.CampaignID == AnomalyCampaign && day >= AnomalyStartDay {
				ctr *= ctrDropFactor
			}

			clicks := int(float64(impressions) * ctr)
			conversions := int(float64(clicks) * cvr)
			spend := 50 + rng.Float64()*150
			revenue := float64(conversions) * (20 + rng.Float64()*80)

			ds.Metrics = append(ds.Metrics, DailyMetric{
				Date:        date,
				CampaignID:  ad.CampaignID,
				AdID:        ad.ID,
				Impressions: impressions,
				Clicks:      clicks,
				Conversions: conversions,
				Spend:       spend,
				Revenue:     revenue,
			})
		}
	}

	return ds
}

// Apply clears existing data and inserts the dataset in one transaction.
// Daily metric rows go in via COPY since there are ~15k of them.
func Apply(ctx context.Context, pool *pgxpool.Pool, ds *Dataset) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"daily_metrics", "ads", "campaigns"} {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, c := range ds.Campaigns {
		_, err := tx.Exec(ctx,
			`INSERT INTO campaigns (campaign_id, name, description, start_date, end_date, budget, status, target_audience)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, c.Name, c.Description, c.StartDate, c.EndDate, c.Budget, c.Status, c.TargetAudience)
		if err != nil {
			return fmt.Errorf("insert campaign %d: %w", c.ID, err)
		}
	}

	for _, a := range ds.Ads {
		_, err := tx.Exec(ctx,
			`INSERT INTO ads (ad_id, campaign_id, name, ad_type) VALUES ($1, $2, $3, $4)`,
			a.ID, a.CampaignID, a.Name, a.AdType)
		if err != nil {
			return fmt.Errorf("insert ad %d: %w", a.ID, err)
		}
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"daily_metrics"},
		[]string{"date", "campaign_id", "ad_id", "impressions", "clicks", "conversions", "spend", "revenue", "ctr", "cpc", "cvr", "roas"},
		pgx.CopyFromSlice(len(ds.Metrics), func(i int) ([]any, error) {
			m := ds.Metrics[i]
			return []any{
				m.Date, m.CampaignID, m.AdID,
				m.Impressions, m.Clicks, m.Conversions,
				m.Spend, m.Revenue,
				ratio(m.Clicks, m.Impressions),
				div(m.Spend, float64(m.Clicks)),
				ratio(m.Conversions, m.Clicks),
				div(m.Revenue, m.Spend),
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy daily_metrics: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit seed transaction: %w", err)
	}
	return nil
}

func ratio(num, den int) *float64 {
	if den == 0 {
		return nil
	}
	v := float64(num) / float64(den)
	return &v
}

func div(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	v := num / den
	return &v
}
