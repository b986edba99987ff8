package usecase

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/fastygo/botfleet/domain"
	appLogger "github.com/fastygo/botfleet/pkg/logger"
)

// AuditSink abstracts the audit write path so use cases stay storage-agnostic.
type AuditSink interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}

// Audit records the outcome of a mutation. A nil sink disables the trail;
// sink failures are logged and never fail the mutation itself.
func Audit(ctx context.Context, sink AuditSink, logger *zap.Logger, accountID, action string, payload any, err error) {
	if sink == nil {
		return
	}
	event := domain.AuditEvent{
		AccountID: accountID,
		Action:    action,
		Actor:     appLogger.ActorFromContext(ctx),
		RequestID: appLogger.RequestIDFromContext(ctx),
		Success:   err == nil,
	}
	if err != nil {
		event.Error = err.Error()
	}
	if payload != nil {
		if raw, mErr := json.Marshal(payload); mErr == nil {
			event.Payload = raw
		}
	}
	if rErr := sink.Record(context.WithoutCancel(ctx), event); rErr != nil && logger != nil {
		logger.Warn("failed to record audit event",
			zap.String("account_id", accountID),
			zap.String("action", action),
			zap.Error(rErr))
	}
}
