package repository

import (
	"context"

	"github.com/fastygo/botfleet/domain"
)

type AuditFilter struct {
	AccountID string
	Action    string
	Limit     int
}

type AuditRepository interface {
	Save(ctx context.Context, event *domain.AuditEvent) error
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditEvent, error)
}
