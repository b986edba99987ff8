package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/repository"
)

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository returns a Postgres-backed implementation of AuditRepository.
func NewAuditRepository(pool *pgxpool.Pool) repository.AuditRepository {
	return &auditRepository{pool: pool}
}

// Save inserts the event. Saving the same id twice is a no-op so buffered
// events can be replayed safely.
func (r *auditRepository) Save(ctx context.Context, event *domain.AuditEvent) error {
	if event == nil || event.Action == "" {
		return domain.ErrInvalidPayload
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO audit_events (id, account_id, action, actor, request_id, success, error, payload, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))
	ON CONFLICT (id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query,
		event.ID,
		event.AccountID,
		event.Action,
		event.Actor,
		event.RequestID,
		event.Success,
		event.Error,
		nullJSON(event.Payload),
		nullTime(event.CreatedAt),
	)
	return err
}

func (r *auditRepository) List(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditEvent, error) {
	const query = `
	SELECT id::text, account_id, action, actor, request_id, success, error, payload, created_at
	FROM audit_events
	WHERE ($1 = '' OR account_id = $1)
	  AND ($2 = '' OR action = $2)
	ORDER BY created_at DESC
	LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, filter.AccountID, filter.Action, clampLimit(filter.Limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]domain.AuditEvent, 0)
	for rows.Next() {
		event, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

func scanAuditEvent(row interface {
	Scan(dest ...interface{}) error
}) (*domain.AuditEvent, error) {
	var (
		event   domain.AuditEvent
		payload []byte
	)
	if err := row.Scan(
		&event.ID,
		&event.AccountID,
		&event.Action,
		&event.Actor,
		&event.RequestID,
		&event.Success,
		&event.Error,
		&payload,
		&event.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuditEventNotFound
		}
		return nil, err
	}
	if len(payload) > 0 {
		event.Payload = payload
	}
	return &event, nil
}
