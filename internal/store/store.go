package store

import (
	"context"

	"clipforge/internal/models"
)

// Store is the durable mapping from job id to job record, the single source
// of truth shared by the worker, the sweep, and the reconciler.
//
// Put is a full-record upsert: callers read, modify, and write the whole
// record. The one exception is Claim, an atomic conditional status swap used
// for the pending -> processing edge so concurrent worker activations cannot
// both pick up the same job. A failed Claim means "skip", never an error.
type Store interface {
	Put(ctx context.Context, job models.Job) error
	Get(ctx context.Context, id string) (models.Job, bool, error)
	ListAll(ctx context.Context) ([]models.Job, error)
	Claim(ctx context.Context, id, fromStatus, toStatus string) (models.Job, bool, error)
	Close()
}
