package state

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/ShayCichocki/sitepipe/internal/orchestrator"
	"github.com/ShayCichocki/sitepipe/pkg/models"
)

// HistoryStore is what the Recorder writes to.
type HistoryStore interface {
	RunStore
	TaskRunStore
}

// Recorder persists orchestrator events as build history.
type Recorder struct {
	store HistoryStore
	mode  models.Mode

	mu  sync.Mutex
	err error
}

// NewRecorder creates a Recorder tagging runs with mode.
func NewRecorder(store HistoryStore, mode models.Mode) *Recorder {
	return &Recorder{store: store, mode: mode}
}

// Consume records events until the channel is closed.
func (r *Recorder) Consume(events <-chan orchestrator.Event) {
	for ev := range events {
		if err := r.Handle(ev); err != nil {
			log.Printf("[state] WARNING: record %s: %v", ev.Type, err)
			r.mu.Lock()
			if r.err == nil {
				r.err = err
			}
			r.mu.Unlock()
		}
	}
}

// Err returns the first error Consume hit.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Handle records a single event. Events without a run ID are ignored.
func (r *Recorder) Handle(ev orchestrator.Event) error {
	if ev.RunID == "" {
		return nil
	}
	switch ev.Type {
	case orchestrator.EventRunStarted:
		return r.store.CreateRun(&models.Run{
			ID:        ev.RunID,
			Command:   ev.Command,
			Mode:      r.mode,
			Status:    models.RunActive,
			StartedAt: ev.Timestamp,
		}, ev.Tasks)

	case orchestrator.EventRunFinished:
		status := models.RunSucceeded
		msg := ""
		switch {
		case ev.Error == nil:
		case errors.Is(ev.Error, context.Canceled):
			status = models.RunInterrupted
			msg = ev.Error.Error()
		default:
			status = models.RunFailed
			msg = ev.Error.Error()
		}
		return r.store.FinishRun(ev.RunID, status, msg, ev.Timestamp)

	case orchestrator.EventTaskCompleted, orchestrator.EventTaskFailed:
		rec := &models.TaskRecord{
			RunID:      ev.RunID,
			Task:       ev.Task,
			Status:     models.TaskStatusDone,
			Duration:   ev.Duration,
			FinishedAt: ev.Timestamp,
		}
		if ev.Type == orchestrator.EventTaskFailed {
			rec.Status = models.TaskStatusFailed
			if ev.Error != nil {
				rec.Error = ev.Error.Error()
			}
		}
		return r.store.RecordTaskRun(rec)
	}
	return nil
}
