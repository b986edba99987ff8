// Package fleet exposes the process supervisor to the control API.
package fleet

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/usecase"
)

// Command names accepted by Execute.
const (
	CommandStart   = "start"
	CommandStop    = "stop"
	CommandRestart = "restart"
)

// MaxWait caps a status long-poll.
const MaxWait = 60 * time.Second

type Supervisor interface {
	Start(ctx context.Context, accountID string) error
	Stop(ctx context.Context, accountID string) error
	Restart(ctx context.Context, accountID string) error
	Status(ctx context.Context) (domain.FleetSummary, error)
	WaitForChange(ctx context.Context, since uint64) (domain.FleetSummary, error)
	Errors(ctx context.Context, accountID string) ([]domain.WorkerErrorEntry, error)
	StartAll(ctx context.Context) (map[string]domain.BatchResult, error)
	StopAll(ctx context.Context) (map[string]domain.BatchResult, error)
}

// BatchReport is the outcome of a start-all or stop-all. The batch itself
// succeeds even when individual accounts fail.
type BatchReport struct {
	Results   map[string]domain.BatchResult `json:"results"`
	Succeeded int                           `json:"succeeded"`
	Failed    int                           `json:"failed"`
}

type UseCase struct {
	supervisor Supervisor
	dispatcher *usecase.Dispatcher
	audit      usecase.AuditSink
	logger     *zap.Logger
}

func New(supervisor Supervisor, audit usecase.AuditSink, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := usecase.NewDispatcher(audit, logger)
	d.Register(CommandStart, domain.AuditWorkerStart, supervisor.Start)
	d.Register(CommandStop, domain.AuditWorkerStop, supervisor.Stop)
	d.Register(CommandRestart, domain.AuditWorkerRestart, supervisor.Restart)
	return &UseCase{supervisor: supervisor, dispatcher: d, audit: audit, logger: logger}
}

// Execute runs a named worker command for one account.
func (uc *UseCase) Execute(ctx context.Context, command, accountID string) error {
	return uc.dispatcher.Execute(ctx, command, accountID)
}

// Status returns the fleet summary. With wait > 0 it long-polls until the
// status version moves past since.
func (uc *UseCase) Status(ctx context.Context, since uint64, wait time.Duration) (domain.FleetSummary, error) {
	if wait <= 0 {
		return uc.supervisor.Status(ctx)
	}
	if wait > MaxWait {
		wait = MaxWait
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return uc.supervisor.WaitForChange(waitCtx, since)
}

func (uc *UseCase) Errors(ctx context.Context, accountID string) ([]domain.WorkerErrorEntry, error) {
	return uc.supervisor.Errors(ctx, accountID)
}

func (uc *UseCase) StartAll(ctx context.Context) (BatchReport, error) {
	results, err := uc.supervisor.StartAll(ctx)
	if err != nil {
		return BatchReport{}, err
	}
	return uc.report(ctx, domain.AuditWorkerStart, results), nil
}

func (uc *UseCase) StopAll(ctx context.Context) (BatchReport, error) {
	results, err := uc.supervisor.StopAll(ctx)
	if err != nil {
		return BatchReport{}, err
	}
	return uc.report(ctx, domain.AuditWorkerStop, results), nil
}

func (uc *UseCase) report(ctx context.Context, action string, results map[string]domain.BatchResult) BatchReport {
	rep := BatchReport{Results: results}
	for id, r := range results {
		var err error
		if r.Success {
			rep.Succeeded++
		} else {
			rep.Failed++
			err = domain.NewError(r.Code, r.Error)
		}
		usecase.Audit(ctx, uc.audit, uc.logger, id, action, map[string]bool{"batch": true}, err)
	}
	if rep.Failed > 0 {
		uc.logger.Warn("batch finished with failures", zap.String("action", action), zap.Int("failed", rep.Failed), zap.Int("succeeded", rep.Succeeded))
	}
	return rep
}
