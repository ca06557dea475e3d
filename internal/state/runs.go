package state

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/sitepipe/pkg/models"
)

// RunWithTasks is a run together with the names it was asked to run.
type RunWithTasks struct {
	models.Run
	Tasks []string
}

// CreateRun records the start of a run.
func (db *DB) CreateRun(r *models.Run, tasks []string) error {
	_, err := db.Exec(`
		INSERT INTO runs (id, command, tasks, mode, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.Command, strings.Join(tasks, ","), string(r.Mode), string(r.Status), formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun sets the final status of a run.
func (db *DB) FinishRun(id string, status models.RunStatus, errMsg string, finishedAt time.Time) error {
	res, err := db.Exec(`
		UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?
	`, string(status), nullString(errMsg), formatTime(finishedAt), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: %s not found", id)
	}
	return nil
}

// GetRun retrieves a run by ID. It returns nil if there is none.
func (db *DB) GetRun(id string) (*RunWithTasks, error) {
	rows, err := db.Query(`
		SELECT id, command, tasks, mode, status, error, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

// ListRuns returns the most recent runs first, at most limit of them.
func (db *DB) ListRuns(limit int) ([]RunWithTasks, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, command, tasks, mode, status, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// RecordTaskRun stores the outcome of one task execution.
func (db *DB) RecordTaskRun(rec *models.TaskRecord) error {
	_, err := db.Exec(`
		INSERT INTO task_runs (run_id, task, status, error, duration_ms, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.Task, string(rec.Status), nullString(rec.Error), rec.Duration.Milliseconds(), formatTime(rec.FinishedAt))
	if err != nil {
		return fmt.Errorf("record task run: %w", err)
	}
	return nil
}

// ListTaskRuns returns the task executions of a run in completion order.
func (db *DB) ListTaskRuns(runID string) ([]models.TaskRecord, error) {
	rows, err := db.Query(`
		SELECT run_id, task, status, error, duration_ms, finished_at
		FROM task_runs WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list task runs: %w", err)
	}
	defer rows.Close()

	var out []models.TaskRecord
	for rows.Next() {
		var rec models.TaskRecord
		var errMsg sql.NullString
		var durationMs int64
		var finishedAt string
		if err := rows.Scan(&rec.RunID, &rec.Task, &rec.Status, &errMsg, &durationMs, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan task run: %w", err)
		}
		rec.Error = errMsg.String
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.FinishedAt, _ = parseTime(finishedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkInterrupted closes every run still marked active, as left behind by
// a process that was killed. Returns the number of runs updated.
func (db *DB) MarkInterrupted(at time.Time) (int64, error) {
	res, err := db.Exec(`
		UPDATE runs SET status = ?, finished_at = ? WHERE status = ?
	`, string(models.RunInterrupted), formatTime(at), string(models.RunActive))
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRuns(rows *sql.Rows) ([]RunWithTasks, error) {
	defer rows.Close()

	var out []RunWithTasks
	for rows.Next() {
		var r RunWithTasks
		var tasks, startedAt string
		var errMsg, finishedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.Command, &tasks, &r.Mode, &r.Status, &errMsg, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if tasks != "" {
			r.Tasks = strings.Split(tasks, ",")
		}
		r.Error = errMsg.String
		r.StartedAt, _ = parseTime(startedAt)
		r.FinishedAt = parseNullableTime(finishedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
