package investigate_test

import (
	"context"
	"sync"
	"time"

	"github.com/salesiq/salesiq-agent/pkg/models"
)

// mockStore satisfies store.Store with injectable behavior, recording every
// executed query in order.
type mockStore struct {
	mu          sync.Mutex
	queries     []string
	PingFunc    func(ctx context.Context) error
	SchemaFunc  func(ctx context.Context) (*models.SchemaDescriptor, error)
	ExecuteFunc func(ctx context.Context, query string) (*models.QueryResult, error)
}

func (s *mockStore) Ping(ctx context.Context) error {
	if s.PingFunc != nil {
		return s.PingFunc(ctx)
	}
	return nil
}

func (s *mockStore) FetchSchema(ctx context.Context) (*models.SchemaDescriptor, error) {
	if s.SchemaFunc != nil {
		return s.SchemaFunc(ctx)
	}
	return demoSchema(), nil
}

func (s *mockStore) Execute(ctx context.Context, query string) (*models.QueryResult, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if s.ExecuteFunc != nil {
		return s.ExecuteFunc(ctx, query)
	}
	return singleRow(models.Row{}), nil
}

func (s *mockStore) executed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queries))
	copy(out, s.queries)
	return out
}

func singleRow(row models.Row) *models.QueryResult {
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	return &models.QueryResult{Columns: cols, Rows: []models.Row{row}, RowCount: 1}
}

func demoSchema() *models.SchemaDescriptor {
	return &models.SchemaDescriptor{Tables: []models.Table{
		{Name: "campaigns", Columns: []models.Column{
			{Name: "campaign_id", DataType: "integer"},
			{Name: "name", DataType: "character varying"},
		}},
		{Name: "daily_metrics", Columns: []models.Column{
			{Name: "date", DataType: "date"},
			{Name: "campaign_id", DataType: "integer", References: "campaigns.campaign_id"},
			{Name: "impressions", DataType: "integer"},
			{Name: "clicks", DataType: "integer"},
			{Name: "conversions", DataType: "integer"},
			{Name: "spend", DataType: "double precision"},
			{Name: "revenue", DataType: "double precision"},
		}},
	}}
}

// mapCache is an in-memory cache.Cache for asserting on cached values.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *mapCache) Ping(context.Context) error { return nil }
func (c *mapCache) Close() error               { return nil }
