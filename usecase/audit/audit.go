// Package audit lists the config history recorded for control-plane mutations.
package audit

import (
	"context"

	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/repository"
)

type UseCase struct {
	events repository.AuditRepository
}

// New accepts a nil repository; List then reports the trail as disabled.
func New(events repository.AuditRepository) *UseCase {
	return &UseCase{events: events}
}

func (uc *UseCase) List(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditEvent, error) {
	if uc.events == nil {
		return nil, domain.ErrAuditDisabled
	}
	if filter.AccountID != "" {
		if err := domain.ValidateAccountID(filter.AccountID); err != nil {
			return nil, domain.OpError("audit", filter.AccountID, err)
		}
	}
	events, err := uc.events.List(ctx, filter)
	if err != nil {
		return nil, domain.OpError("audit", filter.AccountID, domain.WrapError(domain.ErrCodeUnavailable, "audit trail unavailable", err))
	}
	if events == nil {
		events = []domain.AuditEvent{}
	}
	return events, nil
}
