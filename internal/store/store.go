// Package store is the data access layer for the marketing performance
// database. It exposes the schema catalog and raw query execution used by
// the investigation orchestrator.
package store

import (
	"context"
	"errors"

	"github.com/salesiq/salesiq-agent/pkg/models"
)

// Sentinel errors for store failures. Execute callers distinguish retryable
// transport failures (ErrUnreachable, ErrTimeout) from non-retryable query
// defects (ErrBadQuery) via errors.Is.
var (
	ErrUnreachable = errors.New("store unreachable")
	ErrTimeout     = errors.New("store query timeout")
	ErrBadQuery    = errors.New("bad query")
)

// Store is the data access interface. All database operations go through
// here.
//
// Execute runs arbitrary SELECT statements drafted by the orchestrator.
// Read-only use is a caller discipline, not a sandboxed guarantee: the
// connection role should be restricted to SELECT in deployments where that
// boundary matters.
type Store interface {
	Ping(ctx context.Context) error
	FetchSchema(ctx context.Context) (*models.SchemaDescriptor, error)
	Execute(ctx context.Context, query string) (*models.QueryResult, error)
}

// IsRetryable reports whether err is a transient store failure worth
// retrying with the same query text.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrTimeout)
}
