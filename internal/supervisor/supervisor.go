package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/pkg/keylock"
	appLogger "github.com/fastygo/botfleet/pkg/logger"
	"github.com/fastygo/botfleet/repository"
)

// Options tunes worker lifecycle timing and the restart policy.
type Options struct {
	StartTimeout     time.Duration
	StopTimeout      time.Duration
	RestartGrace     time.Duration
	HeartbeatTimeout time.Duration
	MaxConcurrent    int
	AutoRestart      bool
	Policy           RestartPolicy
	// CronRestart restarts every running worker on this schedule; empty disables it.
	CronRestart string
	Location    *time.Location
}

func (o Options) normalized() Options {
	if o.StartTimeout <= 0 {
		o.StartTimeout = 10 * time.Second
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 5 * time.Second
	}
	if o.RestartGrace <= 0 {
		o.RestartGrace = o.StopTimeout
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 3
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	o.Policy = o.Policy.normalized()
	return o
}

// Option customizes a Supervisor.
type Option func(*Supervisor)

// WithStatusMirror publishes every status transition to m.
func WithStatusMirror(m repository.StatusMirror) Option {
	return func(s *Supervisor) { s.mirror = m }
}

// Supervisor owns the worker of every account. Commands for one account are
// serialized by a per-account lock; different accounts proceed in parallel.
type Supervisor struct {
	accounts repository.AccountReader
	launcher Launcher
	mirror   repository.StatusMirror
	logger   *zap.Logger
	opts     Options

	locks *keylock.Map

	mu      sync.RWMutex
	workers map[string]*worker

	changeMu sync.Mutex
	version  uint64
	changed  chan struct{}

	cron    *cron.Cron
	closing atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(accounts repository.AccountReader, launcher Launcher, opts Options, logger *zap.Logger, options ...Option) (*Supervisor, error) {
	if accounts == nil || launcher == nil {
		return nil, errors.New("supervisor needs an account reader and a launcher")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.normalized()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		accounts: accounts,
		launcher: launcher,
		logger:   logger,
		opts:     opts,
		locks:    keylock.New(),
		workers:  make(map[string]*worker),
		changed:  make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, o := range options {
		o(s)
	}
	if opts.CronRestart != "" {
		s.cron = cron.New(cron.WithLocation(opts.Location))
		if _, err := s.cron.AddFunc(opts.CronRestart, s.restartRunning); err != nil {
			cancel()
			return nil, err
		}
	}
	return s, nil
}

// StartScheduler starts the daily restart schedule, if configured.
func (s *Supervisor) StartScheduler() {
	if s.cron == nil {
		return
	}
	s.cron.Start()
	s.logger.Info("scheduled restarts enabled", zap.String("spec", s.opts.CronRestart))
}

// Start launches the account's worker and waits until it reports ready.
// Starting a running worker is a no-op.
func (s *Supervisor) Start(ctx context.Context, accountID string) error {
	unlock := s.locks.Lock(accountID)
	defer unlock()
	return s.startLocked(ctx, accountID, "start")
}

// Stop asks the worker to exit and waits up to StopTimeout. Stopping a
// stopped worker is a no-op.
func (s *Supervisor) Stop(ctx context.Context, accountID string) error {
	unlock := s.locks.Lock(accountID)
	defer unlock()
	return s.stopLocked(ctx, accountID, "stop", s.opts.StopTimeout)
}

// Restart stops the worker, waiting at most RestartGrace, then starts it.
// If the old worker does not exit in time no new worker is launched.
func (s *Supervisor) Restart(ctx context.Context, accountID string) error {
	unlock := s.locks.Lock(accountID)
	defer unlock()

	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return domain.OpError("restart", accountID, err)
	}
	if !acc.Enabled {
		return domain.OpError("restart", accountID, domain.ErrAccountDisabled)
	}
	if err := s.stopLocked(ctx, accountID, "restart", s.opts.RestartGrace); err != nil {
		return err
	}
	return s.startLocked(ctx, accountID, "restart")
}

// Forget stops the worker if needed and drops every trace of the account.
func (s *Supervisor) Forget(ctx context.Context, accountID string) error {
	unlock := s.locks.Lock(accountID)
	defer unlock()

	w := s.lookup(accountID)
	if w == nil {
		return nil
	}
	w.mu.Lock()
	live := w.state.Live()
	w.mu.Unlock()
	if live {
		if err := s.stopLocked(ctx, accountID, "forget", s.opts.StopTimeout); err != nil {
			return err
		}
	}

	w.mu.Lock()
	w.cancelPending()
	w.gen++
	w.mu.Unlock()

	s.mu.Lock()
	delete(s.workers, accountID)
	s.mu.Unlock()

	s.bump()
	if s.mirror != nil {
		mctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.mirror.Remove(mctx, accountID); err != nil {
			s.logger.Warn("status mirror remove failed", zap.String("account_id", accountID), zap.Error(err))
		}
	}
	return nil
}

// Shutdown stops the scheduler, cancels pending restarts and stops every
// live worker.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.closing.Store(true)
	if s.cron != nil {
		select {
		case <-s.cron.Stop().Done():
		case <-ctx.Done():
		}
	}
	var ids []string
	s.mu.RLock()
	for id, w := range s.workers {
		w.mu.Lock()
		w.cancelPending()
		if w.state.Live() {
			ids = append(ids, id)
		}
		w.mu.Unlock()
	}
	s.mu.RUnlock()

	results := s.batch(ctx, ids, s.Stop)
	s.cancel()

	var result error
	for id, r := range results {
		if !r.Success {
			result = errors.Join(result, domain.OpError("shutdown", id, errors.New(r.Error)))
		}
	}
	return result
}

func (s *Supervisor) startLocked(ctx context.Context, accountID, op string) error {
	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return domain.OpError(op, accountID, err)
	}
	if !acc.Enabled {
		return domain.OpError(op, accountID, domain.ErrAccountDisabled)
	}
	if s.closing.Load() {
		return domain.OpError(op, accountID, domain.NewError(domain.ErrCodeUnavailable, "supervisor is shutting down"))
	}
	w := s.worker(accountID)

	w.mu.Lock()
	switch w.state {
	case domain.WorkerRunning, domain.WorkerStarting:
		w.mu.Unlock()
		return nil
	case domain.WorkerStopping:
		w.mu.Unlock()
		return domain.OpError(op, accountID, domain.ErrWorkerStopping)
	}
	w.cancelPending()
	w.gen++
	gen := w.gen
	w.state = domain.WorkerStarting
	w.expectStop = false
	w.failure = nil
	w.lastErr = ""
	w.mu.Unlock()
	s.notify(w)

	log := appLogger.ForAccount(s.logger, accountID)
	h, err := s.launcher.Launch(s.ctx, WorkerSpec{AccountID: accountID, Logger: log})
	if err != nil {
		cause := exitCause(err)
		w.mu.Lock()
		if w.gen == gen {
			w.state = domain.WorkerError
			w.stoppedAt = time.Now()
			w.recordError(cause)
		}
		w.mu.Unlock()
		s.notify(w)
		log.Error("worker launch failed", zap.Error(err))
		return domain.OpError(op, accountID, cause)
	}

	exited := make(chan struct{})
	w.mu.Lock()
	w.handle = h
	w.exited = exited
	w.startedAt = time.Now()
	w.mu.Unlock()
	go s.watch(w, h, gen, exited)

	timer := time.NewTimer(s.opts.StartTimeout)
	defer timer.Stop()

	select {
	case <-h.Ready():
		w.mu.Lock()
		if w.gen == gen && w.state == domain.WorkerStarting {
			w.state = domain.WorkerRunning
		}
		w.mu.Unlock()
		s.notify(w)
		log.Info("worker running", zap.Int("pid", h.PID()), zap.String("op", op))
		return nil
	case <-exited:
		return domain.OpError(op, accountID, exitCause(h.Err()))
	case <-timer.C:
	case <-ctx.Done():
	}

	// the unready worker is on its way out; until it exits it blocks new
	// starts like any other stopping worker
	w.mu.Lock()
	timedOut := w.gen == gen && w.state == domain.WorkerStarting
	if timedOut {
		w.failure = domain.ErrStartTimeout
		w.state = domain.WorkerStopping
		w.recordError(domain.ErrStartTimeout)
	}
	w.mu.Unlock()
	if timedOut {
		s.notify(w)
	}
	if err := h.Kill(); err != nil {
		log.Warn("kill after start timeout failed", zap.Error(err))
	}
	select {
	case <-exited:
	case <-time.After(s.opts.StopTimeout):
	}
	return domain.OpError(op, accountID, domain.ErrStartTimeout)
}

func (s *Supervisor) stopLocked(ctx context.Context, accountID, op string, grace time.Duration) error {
	w := s.lookup(accountID)
	if w == nil {
		if _, err := s.accounts.Get(ctx, accountID); err != nil {
			return domain.OpError(op, accountID, err)
		}
		return nil
	}

	w.mu.Lock()
	w.cancelPending()
	w.tracker.reset()
	if !w.state.Live() || w.handle == nil {
		acknowledged := w.state == domain.WorkerError
		if acknowledged {
			w.state = domain.WorkerStopped
		}
		w.mu.Unlock()
		if acknowledged {
			s.notify(w)
		}
		return nil
	}
	h, exited := w.handle, w.exited
	first := w.state != domain.WorkerStopping
	w.expectStop = true
	w.state = domain.WorkerStopping
	w.mu.Unlock()
	if first {
		s.notify(w)
	}

	log := appLogger.ForAccount(s.logger, accountID)
	if err := h.Stop(); err != nil {
		log.Warn("worker stop signal failed", zap.Error(err))
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-exited:
		log.Info("worker stopped", zap.String("op", op))
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	// the stop request stays pending; escalate so the old worker cannot linger
	if err := h.Kill(); err != nil {
		log.Warn("worker kill failed", zap.Error(err))
	}
	log.Warn("worker did not stop in time", zap.Duration("grace", grace), zap.String("op", op))
	return domain.OpError(op, accountID, domain.ErrStopTimeout)
}

// watch turns the exit of one launch into a state transition.
func (s *Supervisor) watch(w *worker, h Handle, gen uint64, exited chan struct{}) {
	<-h.Done()
	now := time.Now()

	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		close(exited)
		return
	}
	prev := w.state
	uptime := now.Sub(w.startedAt)
	w.handle = nil
	w.stoppedAt = now

	restart := false
	var cause error
	if w.expectStop {
		w.state = domain.WorkerStopped
	} else {
		cause = w.failure
		if cause == nil {
			cause = exitCause(h.Err())
			w.recordError(cause)
		}
		w.state = domain.WorkerError
		if prev == domain.WorkerRunning && s.opts.AutoRestart && !s.closing.Load() {
			if w.tracker.allow(now, uptime) {
				restart = true
				w.pending = time.AfterFunc(w.tracker.delay(), func() { s.autoRestart(w.id, gen) })
			} else {
				w.recordError(errRestartLimit)
			}
		}
	}
	w.mu.Unlock()
	// publish before releasing waiters so a returned Stop implies a mirrored stop
	s.notify(w)
	close(exited)

	if cause != nil {
		s.logger.Warn("worker exited unexpectedly",
			zap.String("account_id", w.id),
			zap.Duration("uptime", uptime),
			zap.Bool("auto_restart", restart),
			zap.Error(cause))
	}
}

func (s *Supervisor) autoRestart(accountID string, gen uint64) {
	unlock := s.locks.Lock(accountID)
	defer unlock()

	w := s.lookup(accountID)
	if w == nil || s.closing.Load() {
		return
	}
	w.mu.Lock()
	if w.gen != gen || w.state != domain.WorkerError || w.pending == nil {
		w.mu.Unlock()
		return
	}
	w.pending = nil
	w.mu.Unlock()

	err := s.startLocked(s.ctx, accountID, "auto-restart")
	if err == nil {
		w.mu.Lock()
		w.restarts++
		w.mu.Unlock()
		s.notify(w)
		return
	}
	if domain.IsDomainError(err, domain.ErrCodeNotFound) || errors.Is(err, domain.ErrAccountDisabled) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != domain.WorkerError || s.closing.Load() {
		return
	}
	if !w.tracker.allow(time.Now(), 0) {
		w.recordError(errRestartLimit)
		return
	}
	next := w.gen
	w.pending = time.AfterFunc(w.tracker.delay(), func() { s.autoRestart(accountID, next) })
}

// restartRunning is the scheduled restart of every running worker.
func (s *Supervisor) restartRunning() {
	var ids []string
	s.mu.RLock()
	for id, w := range s.workers {
		w.mu.Lock()
		if w.state == domain.WorkerRunning {
			ids = append(ids, id)
		}
		w.mu.Unlock()
	}
	s.mu.RUnlock()
	if len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, time.Duration(len(ids))*(s.opts.RestartGrace+s.opts.StartTimeout))
	defer cancel()
	results := s.batch(ctx, ids, s.Restart)
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	s.logger.Info("scheduled restart finished", zap.Int("workers", len(ids)), zap.Int("failed", failed))
}

func (s *Supervisor) worker(accountID string) *worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workers[accountID]
	if !ok {
		w = newWorker(accountID, s.opts.Policy)
		s.workers[accountID] = w
	}
	return w
}

func (s *Supervisor) lookup(accountID string) *worker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workers[accountID]
}
