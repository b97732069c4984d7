// Package storage persists the history of embedding job runs. Embeddings themselves
// are never persisted.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/ruiji/internal/models"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// RunStore records job runs.
type RunStore interface {
	// CreateRun inserts run; StartedAt is set when zero.
	CreateRun(ctx context.Context, run *models.JobRun) error
	// UpdateRun stores the counters, status and finish time of an existing run.
	UpdateRun(ctx context.Context, run *models.JobRun) error
	GetRun(ctx context.Context, id string) (*models.JobRun, error)
	// ListRuns returns at most limit runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]*models.JobRun, error)
	CountRuns(ctx context.Context) (int64, error)

	Close() error
}
