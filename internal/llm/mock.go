package llm

import "context"

// MockClient satisfies Client for testing and offline runs.
type MockClient struct {
	Name_        string
	CompleteFunc func(ctx context.Context, prompt string) (string, error)
}

func (m *MockClient) Name() string { return m.Name_ }

func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	return "", nil
}

// NewMockClient returns a MockClient whose completion contains all five
// report sections, so end-to-end runs succeed without a real backend.
func NewMockClient() *MockClient {
	return &MockClient{
		Name_: "mock",
		CompleteFunc: func(_ context.Context, _ string) (string, error) {
			return `## Summary
Mock synthesis of the investigation evidence.

## Key Metrics
Metrics as computed by the extractor.

## Anomalies
Any threshold breaches recorded in the evidence.

## Possible Causes
Simulated causes from the mock backend.

## Recommendations
Review the real backend output for production use.
`, nil
		},
	}
}

// NewFailingClient returns a MockClient that always returns err.
func NewFailingClient(err error) *MockClient {
	return &MockClient{
		Name_: "mock-failing",
		CompleteFunc: func(_ context.Context, _ string) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutClient returns a MockClient that blocks until the context is
// cancelled, then reports ErrTimeout.
func NewTimeoutClient() *MockClient {
	return &MockClient{
		Name_: "mock-timeout",
		CompleteFunc: func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ErrTimeout
		},
	}
}

// Compile-time check that MockClient implements Client.
var _ Client = (*MockClient)(nil)
