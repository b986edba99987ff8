package supervisor

import (
	"sync"
	"time"

	"github.com/fastygo/botfleet/domain"
)

const maxErrorHistory = 10

var errRestartLimit = domain.NewError(domain.ErrCodeUnavailable, "automatic restart limit reached")

// worker is the supervisor-side record of one account's worker. Fields are
// guarded by mu; state-changing commands additionally hold the account's key
// lock so they never interleave.
type worker struct {
	id string

	mu         sync.Mutex
	state      domain.WorkerState
	handle     Handle
	exited     chan struct{}
	gen        uint64
	expectStop bool
	failure    error
	startedAt  time.Time
	stoppedAt  time.Time
	restarts   int
	lastErr    string
	errs       []domain.WorkerErrorEntry
	tracker    *restartTracker
	pending    *time.Timer
}

func newWorker(id string, policy RestartPolicy) *worker {
	return &worker{
		id:      id,
		state:   domain.WorkerStopped,
		tracker: newRestartTracker(policy),
	}
}

func (w *worker) recordError(err error) {
	if err == nil {
		return
	}
	w.lastErr = err.Error()
	w.errs = append(w.errs, domain.WorkerErrorEntry{Timestamp: time.Now().UTC(), Error: w.lastErr})
	if len(w.errs) > maxErrorHistory {
		w.errs = append([]domain.WorkerErrorEntry(nil), w.errs[len(w.errs)-maxErrorHistory:]...)
	}
}

func (w *worker) cancelPending() {
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
}

// snapshot must be called with mu held.
func (w *worker) snapshot(now time.Time, heartbeatTimeout time.Duration) domain.WorkerStatus {
	st := domain.WorkerStatus{
		AccountID: w.id,
		State:     w.state,
		Status:    w.state.RunState(),
		Restarts:  w.restarts,
		Error:     w.lastErr,
	}
	if w.state == domain.WorkerStopping && w.failure != nil {
		// killed after a failed start; it never ran
		st.Status = domain.RunStateError
	}
	if !w.startedAt.IsZero() {
		t := w.startedAt.UTC()
		st.StartedAt = &t
	}
	if !w.stoppedAt.IsZero() && !w.state.Live() {
		t := w.stoppedAt.UTC()
		st.StoppedAt = &t
	}
	if w.handle != nil && w.state.Live() {
		st.PID = w.handle.PID()
		if hb := w.handle.LastHeartbeat(); !hb.IsZero() {
			t := hb.UTC()
			st.LastHeartbeat = &t
			if w.state == domain.WorkerRunning && heartbeatTimeout > 0 && now.Sub(hb) > heartbeatTimeout {
				st.Status = domain.RunStateError
				st.Error = domain.ErrWorkerUnavailable.Message
			}
		}
	}
	return st
}

func (w *worker) history() []domain.WorkerErrorEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]domain.WorkerErrorEntry, len(w.errs))
	copy(out, w.errs)
	return out
}
