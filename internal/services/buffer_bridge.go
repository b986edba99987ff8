package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/internal/infrastructure/buffer"
	"github.com/fastygo/botfleet/usecase"
)

// AuditBridge feeds audit events into the buffer processor.
type AuditBridge struct {
	processor *BufferProcessor
}

func NewAuditBridge(processor *BufferProcessor) *AuditBridge {
	return &AuditBridge{processor: processor}
}

func (b *AuditBridge) Record(ctx context.Context, event domain.AuditEvent) error {
	if b.processor == nil || event.Action == "" {
		return domain.ErrInvalidPayload
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	item := buffer.Item{
		ID:        event.ID,
		AccountID: event.AccountID,
		Entity:    buffer.EntityAudit,
		Operation: buffer.OperationAppend,
		Data:      payload,
		Timestamp: event.CreatedAt,
	}
	return b.processor.BufferOperation(ctx, item)
}

var _ usecase.AuditSink = (*AuditBridge)(nil)
