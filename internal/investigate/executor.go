package investigate

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/salesiq/salesiq-agent/internal/store"
	"github.com/salesiq/salesiq-agent/pkg/models"
)

// Executor runs drafted queries against the store, retrying transient
// failures with the same query text. Non-retryable failures are returned
// immediately; the repair decision belongs to the orchestrator.
//
// The store is treated as read-only by discipline: the executor only ever
// receives SELECT statements drafted by the query builder.
type Executor struct {
	store   store.Store
	retries uint64
	delay   time.Duration
	log     *slog.Logger
}

// NewExecutor creates an Executor. retries is the number of additional
// attempts after the first (2 retries means 3 total attempts).
func NewExecutor(st store.Store, retries int, delay time.Duration, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	if retries < 0 {
		retries = 0
	}
	return &Executor{store: st, retries: uint64(retries), delay: delay, log: log}
}

// Execute runs the query, retrying retryable failures up to the configured
// count. It returns the result, the number of attempts made, and a
// *QueryError on failure.
func (e *Executor) Execute(ctx context.Context, query string) (*models.QueryResult, int, error) {
	var result *models.QueryResult
	attempts := 0

	op := func() error {
		attempts++
		if attempts > 1 {
			e.log.Warn("retrying query", "attempt", attempts)
		}
		res, err := e.store.Execute(ctx, query)
		if err != nil {
			if store.IsRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.delay), e.retries), ctx)

	if err := backoff.Retry(op, bo); err != nil {
		return nil, attempts, &QueryError{
			Retryable: store.IsRetryable(err),
			Attempts:  attempts,
			Err:       err,
		}
	}

	return result, attempts, nil
}
