package supervisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fastygo/botfleet/domain"
)

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
	order    []string
}

func newFakeAccounts(accounts ...domain.Account) *fakeAccounts {
	f := &fakeAccounts{accounts: make(map[string]domain.Account)}
	for _, acc := range accounts {
		f.put(acc)
	}
	return f
}

func (f *fakeAccounts) put(acc domain.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[acc.ID]; !ok {
		f.order = append(f.order, acc.ID)
	}
	f.accounts[acc.ID] = acc
}

func (f *fakeAccounts) Get(_ context.Context, id string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &acc, nil
}

func (f *fakeAccounts) List(context.Context) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Account, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.accounts[id])
	}
	return out, nil
}

type behavior struct {
	launchErr  error
	noReady    bool
	ignoreStop bool
	ignoreKill bool
	crashAfter time.Duration
}

type fakeLauncher struct {
	mu       sync.Mutex
	behave   map[string]behavior
	handles  map[string][]*fakeHandle
	launches atomic.Int32
	pids     atomic.Int64
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{behave: make(map[string]behavior), handles: make(map[string][]*fakeHandle)}
}

func (l *fakeLauncher) set(id string, b behavior) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.behave[id] = b
}

func (l *fakeLauncher) Launch(_ context.Context, spec WorkerSpec) (Handle, error) {
	l.launches.Add(1)
	l.mu.Lock()
	b := l.behave[spec.AccountID]
	l.mu.Unlock()
	if b.launchErr != nil {
		return nil, b.launchErr
	}

	h := &fakeHandle{signals: newSignals(), pid: int(l.pids.Add(1)), b: b}
	l.mu.Lock()
	l.handles[spec.AccountID] = append(l.handles[spec.AccountID], h)
	l.mu.Unlock()

	if !b.noReady {
		h.markReady()
	}
	if b.crashAfter > 0 {
		time.AfterFunc(b.crashAfter, func() { h.exit(errors.New("crashed")) })
	}
	return h, nil
}

func (l *fakeLauncher) last(id string) *fakeHandle {
	l.mu.Lock()
	defer l.mu.Unlock()
	hs := l.handles[id]
	if len(hs) == 0 {
		return nil
	}
	return hs[len(hs)-1]
}

func (l *fakeLauncher) count(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.handles[id])
}

type fakeHandle struct {
	*signals
	pid  int
	b    behavior
	once sync.Once
}

func (h *fakeHandle) PID() int { return h.pid }

func (h *fakeHandle) exit(err error) {
	h.once.Do(func() { h.finish(err) })
}

func (h *fakeHandle) Stop() error {
	if !h.b.ignoreStop {
		h.exit(nil)
	}
	return nil
}

func (h *fakeHandle) Kill() error {
	if !h.b.ignoreKill {
		h.exit(errors.New("killed"))
	}
	return nil
}

func (h *fakeHandle) exited() bool {
	select {
	case <-h.Done():
		return true
	default:
		return false
	}
}

type recordingMirror struct {
	mu        sync.Mutex
	published []domain.WorkerStatus
	removed   []string
}

func (m *recordingMirror) Publish(_ context.Context, st domain.WorkerStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, st)
	return nil
}

func (m *recordingMirror) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, id)
	return nil
}

func (m *recordingMirror) states(id string) []domain.WorkerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.WorkerState
	for _, st := range m.published {
		if st.AccountID == id {
			out = append(out, st.State)
		}
	}
	return out
}
