package supervisor

import (
	"context"
	"fmt"
	"sync/atomic"
)

// TaskFunc is the body of an in-process worker. It must return once ctx is
// cancelled.
type TaskFunc func(ctx context.Context, accountID string, reporter Reporter) error

// TaskLauncher runs workers as goroutines, each isolated by its own context.
type TaskLauncher struct {
	run  TaskFunc
	next atomic.Int64
}

func NewTaskLauncher(run TaskFunc) *TaskLauncher {
	return &TaskLauncher{run: run}
}

func (l *TaskLauncher) Launch(_ context.Context, spec WorkerSpec) (Handle, error) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &taskHandle{signals: newSignals(), cancel: cancel, id: int(l.next.Add(1))}
	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("worker panic: %v", r)
			}
			cancel()
			h.finish(err)
		}()
		err = l.run(ctx, spec.AccountID, taskReporter{h.signals})
	}()
	return h, nil
}

type taskHandle struct {
	*signals
	cancel context.CancelFunc
	id     int
}

// PID is a per-launcher sequence number; in-process workers have no OS pid.
func (h *taskHandle) PID() int { return h.id }

func (h *taskHandle) Stop() error {
	h.cancel()
	return nil
}

func (h *taskHandle) Kill() error {
	h.cancel()
	return nil
}

type taskReporter struct{ s *signals }

func (r taskReporter) Ready()     { r.s.markReady() }
func (r taskReporter) Heartbeat() { r.s.beat() }
