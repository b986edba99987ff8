// Package supervisor runs at most one worker per account and tracks the
// lifecycle of every worker in the fleet.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/botfleet/domain"
)

// Worker protocol lines written on stdout by process workers.
const (
	LineReady     = "fleet:ready"
	LineHeartbeat = "fleet:heartbeat"

	// ExitConfig is the worker exit code for a misconfigured account.
	ExitConfig = 78
)

// WorkerSpec describes the worker to launch.
type WorkerSpec struct {
	AccountID string
	Logger    *zap.Logger
}

// Handle is a launched worker. Implementations must be safe for concurrent use.
type Handle interface {
	PID() int
	// Ready is closed once the worker reports it is serving.
	Ready() <-chan struct{}
	// Done is closed once the worker has exited.
	Done() <-chan struct{}
	// Err is the exit cause; only meaningful after Done.
	Err() error
	LastHeartbeat() time.Time
	// Stop asks the worker to exit gracefully.
	Stop() error
	// Kill terminates the worker without waiting for cleanup.
	Kill() error
}

// Launcher starts workers.
type Launcher interface {
	Launch(ctx context.Context, spec WorkerSpec) (Handle, error)
}

// Reporter is how a worker signals liveness to its supervisor.
type Reporter interface {
	Ready()
	Heartbeat()
}

// LineReporter writes protocol lines, used by workers running as child processes.
type LineReporter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLineReporter(w io.Writer) *LineReporter {
	return &LineReporter{w: w}
}

func (r *LineReporter) Ready()     { r.write(LineReady) }
func (r *LineReporter) Heartbeat() { r.write(LineHeartbeat) }

func (r *LineReporter) write(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, line)
}

// signals is the shared liveness state behind both handle implementations.
type signals struct {
	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	heartbeat atomic.Int64

	mu  sync.Mutex
	err error
}

func newSignals() *signals {
	return &signals{ready: make(chan struct{}), done: make(chan struct{})}
}

func (s *signals) markReady() {
	s.beat()
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *signals) beat() {
	s.heartbeat.Store(time.Now().UnixNano())
}

func (s *signals) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

func (s *signals) Ready() <-chan struct{} { return s.ready }
func (s *signals) Done() <-chan struct{}  { return s.done }

func (s *signals) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *signals) LastHeartbeat() time.Time {
	ns := s.heartbeat.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// exitCause maps a worker exit error onto the domain taxonomy.
func exitCause(err error) error {
	if err == nil {
		return domain.NewError(domain.ErrCodeUnavailable, "worker exited")
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == ExitConfig {
		return domain.WrapError(domain.ErrCodeInvalid, "worker rejected its configuration", err)
	}
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		return err
	}
	return domain.WrapError(domain.ErrCodeUnavailable, "worker exited", err)
}
