// Package runs tracks server-side import runs: their persisted status and
// the background execution of each upload.
package runs

import (
	"context"
	"errors"
	"time"

	"github.com/clinica/import-service/internal/types"
)

// ErrNotFound is returned when a run ID is unknown
var ErrNotFound = errors.New("import run not found")

// ListOptions filters run listings
type ListOptions struct {
	Entity string
	Status types.RunStatus
	Limit  int
	Offset int
}

// Store persists import runs
type Store interface {
	Create(ctx context.Context, run *types.ImportRun) error
	Start(ctx context.Context, id string, totalRows int) error
	UpdateProgress(ctx context.Context, id string, progress int) error
	Complete(ctx context.Context, id string, result *types.BatchResult) error
	Fail(ctx context.Context, id string, message string, result *types.BatchResult) error
	Get(ctx context.Context, id string) (*types.ImportRun, error)
	List(ctx context.Context, opts ListOptions) ([]types.ImportRun, error)
	// MarkInterrupted flags pending or running runs created before cutoff
	MarkInterrupted(ctx context.Context, cutoff time.Time) (int64, error)
	// DeleteFinishedBefore removes finished runs created before cutoff and
	// returns their IDs
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

// DefaultListLimit applies when ListOptions.Limit is zero
const DefaultListLimit = 50

// IsFinished reports whether a run reached a terminal status
func IsFinished(status types.RunStatus) bool {
	switch status {
	case types.RunStatusCompleted, types.RunStatusFailed, types.RunStatusInterrupted:
		return true
	}
	return false
}
