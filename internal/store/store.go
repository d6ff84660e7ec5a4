// Package store persists reconciliation check runs.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/familycheck/internal/family"
	"github.com/sells-group/familycheck/internal/model"
)

// ErrNotFound is returned when a run ID does not exist.
var ErrNotFound = eris.New("run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Verdict   family.Verdict `json:"verdict,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Limit     int            `json:"limit,omitempty"`
	Offset    int            `json:"offset,omitempty"`
}

// Store defines the persistence interface for check runs.
type Store interface {
	// SaveRun inserts a run, assigning ID and CreatedAt when unset.
	SaveRun(ctx context.Context, run *model.CheckRun) error
	GetRun(ctx context.Context, id string) (*model.CheckRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.CheckRun, error)
	DeleteRun(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}
