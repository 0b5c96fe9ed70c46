package repository

import (
	"context"

	"adept/internal/domain/model"
)

type JobRepository interface {
	// Create inserts the initial pending record. Safe to retry for the same
	// ID: an existing row is left untouched.
	Create(ctx context.Context, job *model.Job) error

	// SaveResult writes the terminal state for a job. It upserts, so the
	// execution path may run before the accepting path has materialized the
	// record, and redelivered events may write the same result twice. A row
	// that already reached a terminal state is never modified.
	SaveResult(ctx context.Context, job *model.Job) error

	// FindByID returns the record for id. When ownerID is non-nil the lookup
	// is scoped to that principal and a job owned by anyone else reports
	// domain.ErrNotFound, never an authorization error.
	FindByID(ctx context.Context, id string, ownerID *string) (*model.Job, error)
}
