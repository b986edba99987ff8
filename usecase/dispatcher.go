package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/botfleet/domain"
)

// AccountCommand is a state-changing operation addressed to one account.
type AccountCommand func(ctx context.Context, accountID string) error

type registeredCommand struct {
	action string
	run    AccountCommand
}

// Dispatcher routes named account commands and records every execution in
// the audit trail.
type Dispatcher struct {
	mu       sync.RWMutex
	commands map[string]registeredCommand
	audit    AuditSink
	logger   *zap.Logger
}

func NewDispatcher(audit AuditSink, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		commands: make(map[string]registeredCommand),
		audit:    audit,
		logger:   logger,
	}
}

// Register binds name to run; auditAction labels its audit events.
func (d *Dispatcher) Register(name, auditAction string, run AccountCommand) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands[name] = registeredCommand{action: auditAction, run: run}
}

func (d *Dispatcher) Execute(ctx context.Context, name, accountID string) error {
	d.mu.RLock()
	cmd, ok := d.commands[name]
	d.mu.RUnlock()
	if !ok {
		return domain.OpError(name, accountID, fmt.Errorf("%w: unknown command %q", domain.ErrInvalidPayload, name))
	}
	err := cmd.run(ctx, accountID)
	if err != nil {
		d.logger.Warn("command failed", zap.String("command", name), zap.String("account_id", accountID), zap.Error(err))
	}
	Audit(ctx, d.audit, d.logger, accountID, cmd.action, nil, err)
	return err
}

// Commands lists the registered command names.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
