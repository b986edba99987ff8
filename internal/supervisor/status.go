package supervisor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fastygo/botfleet/domain"
)

// Status returns the status of every registered account. Accounts without a
// worker report idle.
func (s *Supervisor) Status(ctx context.Context) (domain.FleetSummary, error) {
	// read the version first so a concurrent change is never missed by WaitForChange
	version := s.currentVersion()

	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return domain.FleetSummary{}, domain.OpError("status", "", err)
	}
	now := time.Now()
	summary := domain.FleetSummary{
		Statuses:      make(map[string]domain.WorkerStatus, len(accounts)),
		TotalAccounts: len(accounts),
		Version:       version,
	}
	for i := range accounts {
		st := s.statusOf(&accounts[i], now)
		summary.Statuses[st.AccountID] = st
		if accounts[i].Enabled {
			summary.EnabledAccounts++
		}
		if st.Status == domain.RunStateRunning {
			summary.RunningAccounts++
		}
	}
	return summary, nil
}

// AccountStatus returns the status of a single account.
func (s *Supervisor) AccountStatus(ctx context.Context, accountID string) (domain.WorkerStatus, error) {
	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return domain.WorkerStatus{}, domain.OpError("status", accountID, err)
	}
	return s.statusOf(acc, time.Now()), nil
}

// Errors returns the recent error history of an account's worker, oldest first.
func (s *Supervisor) Errors(ctx context.Context, accountID string) ([]domain.WorkerErrorEntry, error) {
	w := s.lookup(accountID)
	if w == nil {
		if _, err := s.accounts.Get(ctx, accountID); err != nil {
			return nil, domain.OpError("errors", accountID, err)
		}
		return []domain.WorkerErrorEntry{}, nil
	}
	return w.history(), nil
}

// WaitForChange blocks until the fleet status version moves past since, or
// ctx is done, and returns the current summary either way.
func (s *Supervisor) WaitForChange(ctx context.Context, since uint64) (domain.FleetSummary, error) {
	for {
		s.changeMu.Lock()
		version, ch := s.version, s.changed
		s.changeMu.Unlock()
		if version != since {
			break
		}
		select {
		case <-ch:
			continue
		case <-ctx.Done():
		}
		break
	}
	// the caller's context may be spent; the snapshot itself is local
	return s.Status(context.WithoutCancel(ctx))
}

// StartAll starts every enabled account, at most MaxConcurrent at a time.
// One account failing does not prevent the others from starting.
func (s *Supervisor) StartAll(ctx context.Context) (map[string]domain.BatchResult, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, domain.OpError("start-all", "", err)
	}
	ids := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		if acc.Enabled {
			ids = append(ids, acc.ID)
		}
	}
	return s.batch(ctx, ids, s.Start), nil
}

// StopAll stops every enabled account and any other live worker.
func (s *Supervisor) StopAll(ctx context.Context) (map[string]domain.BatchResult, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, domain.OpError("stop-all", "", err)
	}
	seen := make(map[string]struct{}, len(accounts))
	ids := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		if acc.Enabled {
			seen[acc.ID] = struct{}{}
			ids = append(ids, acc.ID)
		}
	}
	s.mu.RLock()
	for id, w := range s.workers {
		if _, ok := seen[id]; ok {
			continue
		}
		w.mu.Lock()
		if w.state.Live() {
			ids = append(ids, id)
		}
		w.mu.Unlock()
	}
	s.mu.RUnlock()
	return s.batch(ctx, ids, s.Stop), nil
}

func (s *Supervisor) batch(ctx context.Context, ids []string, op func(context.Context, string) error) map[string]domain.BatchResult {
	results := make(map[string]domain.BatchResult, len(ids))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.opts.MaxConcurrent)
	for _, id := range ids {
		g.Go(func() error {
			res := domain.BatchResult{Success: true}
			if err := op(ctx, id); err != nil {
				res = domain.BatchResult{Error: err.Error(), Code: domain.CodeOf(err)}
			}
			mu.Lock()
			results[id] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Supervisor) statusOf(acc *domain.Account, now time.Time) domain.WorkerStatus {
	var st domain.WorkerStatus
	if w := s.lookup(acc.ID); w != nil {
		w.mu.Lock()
		st = w.snapshot(now, s.opts.HeartbeatTimeout)
		w.mu.Unlock()
	} else {
		st = domain.WorkerStatus{AccountID: acc.ID, State: domain.WorkerStopped, Status: domain.RunStateIdle}
	}
	st.Name = acc.Name
	st.Username = acc.Username
	st.Enabled = acc.Enabled
	return st
}

func (s *Supervisor) currentVersion() uint64 {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()
	return s.version
}

func (s *Supervisor) bump() {
	s.changeMu.Lock()
	s.version++
	close(s.changed)
	s.changed = make(chan struct{})
	s.changeMu.Unlock()
}

// notify records a transition of w and mirrors it, outside any worker lock.
func (s *Supervisor) notify(w *worker) {
	s.bump()
	if s.mirror == nil {
		return
	}
	w.mu.Lock()
	st := w.snapshot(time.Now(), s.opts.HeartbeatTimeout)
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.mirror.Publish(ctx, st); err != nil {
		s.logger.Warn("status mirror publish failed", zap.String("account_id", w.id), zap.Error(err))
	}
}
