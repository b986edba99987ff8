package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts clients whose ping does not return a bare error, such as
// go-redis.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// BufferSizer is satisfied by *buffer.Store.
type BufferSizer interface {
	Size() (int, error)
}

// Monitor periodically probes the optional backends. A nil dependency is
// reported as disabled rather than down.
type Monitor struct {
	pg     Pinger
	redis  Pinger
	buffer BufferSizer

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(pg Pinger, redis Pinger, buf BufferSizer, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Monitor{
		pg:       pg,
		redis:    redis,
		buffer:   buf,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
	m.refresh()
	return m
}

func (m *Monitor) Start() {
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// IsOnline reports whether the audit database is reachable.
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.PostgreSQL == StateUp
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.refresh()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) refresh() {
	bufferState, bufferSize := m.checkBuffer()
	status := Status{
		PostgreSQL: m.check(m.pg, 3*time.Second),
		Redis:      m.check(m.redis, 2*time.Second),
		Buffer:     bufferState,
		BufferSize: bufferSize,
		LastCheck:  time.Now(),
	}

	m.mu.Lock()
	prev := m.status
	m.status = status
	m.mu.Unlock()

	if prev.PostgreSQL != status.PostgreSQL && !prev.LastCheck.IsZero() {
		m.logger.Info("postgres state changed", zap.String("from", prev.PostgreSQL), zap.String("to", status.PostgreSQL))
	}
}

func (m *Monitor) check(p Pinger, timeout time.Duration) string {
	if p == nil {
		return StateDisabled
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return StateDown
	}
	return StateUp
}

func (m *Monitor) checkBuffer() (string, int) {
	if m.buffer == nil {
		return StateDisabled, 0
	}
	size, err := m.buffer.Size()
	if err != nil {
		m.logger.Warn("buffer size check failed", zap.Error(err))
		return StateDown, size
	}
	return StateUp, size
}
