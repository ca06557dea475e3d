package state

import (
	"io"
	"time"

	"github.com/ShayCichocki/sitepipe/pkg/models"
)

// RunStore handles run persistence operations.
type RunStore interface {
	CreateRun(r *models.Run, tasks []string) error
	FinishRun(id string, status models.RunStatus, errMsg string, finishedAt time.Time) error
	GetRun(id string) (*RunWithTasks, error)
	ListRuns(limit int) ([]RunWithTasks, error)
}

// TaskRunStore handles per-task outcome persistence.
type TaskRunStore interface {
	RecordTaskRun(rec *models.TaskRecord) error
	ListTaskRuns(runID string) ([]models.TaskRecord, error)
}

// Migrator handles database schema migrations.
// Separating this allows clients to depend only on migration functionality.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore defines the interface for build history persistence.
// It composes focused sub-interfaces for better modularity.
type StateStore interface {
	io.Closer
	Migrator
	RunStore
	TaskRunStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore   = (*DB)(nil)
	_ Migrator     = (*DB)(nil)
	_ RunStore     = (*DB)(nil)
	_ TaskRunStore = (*DB)(nil)
)
