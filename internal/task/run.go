package task

import (
	"context"
	"sync"
	"time"
)

// Observer is notified when named tasks start and finish. Anonymous
// composites are not reported. Implementations must be safe for
// concurrent use.
type Observer interface {
	TaskStarted(name string)
	TaskFinished(name string, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) TaskStarted(string)                        {}
func (nopObserver) TaskFinished(string, time.Duration, error) {}

// Handle is the completion signal of a started task.
type Handle struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// complete records the outcome. Only the first call has an effect.
func (h *Handle) complete(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// Done is closed when the task has completed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the task's failure. It is only meaningful after Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Wait blocks until the task completes and returns its failure.
func (h *Handle) Wait() error {
	<-h.done
	return h.err
}

// Run executes t and waits for it.
func Run(ctx context.Context, t *Task, obs Observer) error {
	return Start(ctx, t, obs).Wait()
}

// Start begins executing t in a new goroutine and returns its handle.
//
// A sequence starts each child after the previous one succeeded and
// completes with the first child failure unchanged. A parallel group
// starts every child at once; it completes successfully when all children
// have, or with the first failure as soon as it is observed. Siblings of a
// failed child are not cancelled and run to their own completion. Empty
// composites complete immediately with success.
func Start(ctx context.Context, t *Task, obs Observer) *Handle {
	if obs == nil {
		obs = nopObserver{}
	}
	h := newHandle()
	go func() {
		h.complete(execute(ctx, t, obs))
	}()
	return h
}

func execute(ctx context.Context, t *Task, obs Observer) error {
	if t.name != "" {
		obs.TaskStarted(t.name)
	}
	start := time.Now()

	var err error
	switch t.mode {
	case ModeSequence:
		err = runSequence(ctx, t.children, obs)
	case ModeParallel:
		err = runParallel(ctx, t.children, obs)
	default:
		err = runPrimitive(ctx, t)
	}

	if t.name != "" {
		obs.TaskFinished(t.name, time.Since(start), err)
	}
	return err
}

func runPrimitive(ctx context.Context, t *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Task: t.Label(), Err: &PanicError{Value: r}}
		}
	}()
	if t.fn == nil {
		return nil
	}
	if ferr := t.fn(ctx); ferr != nil {
		return &Error{Task: t.Label(), Err: ferr}
	}
	return nil
}

func runSequence(ctx context.Context, children []*Task, obs Observer) error {
	for _, c := range children {
		if err := Start(ctx, c, obs).Wait(); err != nil {
			return err
		}
	}
	return nil
}

func runParallel(ctx context.Context, children []*Task, obs Observer) error {
	if len(children) == 0 {
		return nil
	}

	handles := make([]*Handle, len(children))
	for i, c := range children {
		handles[i] = Start(ctx, c, obs)
	}

	// Buffered so that late finishers never block once we have returned.
	results := make(chan error, len(handles))
	for _, h := range handles {
		go func(h *Handle) {
			results <- h.Wait()
		}(h)
	}

	for range handles {
		if err := <-results; err != nil {
			return err
		}
	}
	return nil
}
