package redis

import (
	"context"
	"encoding/json"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/repository"
)

const (
	statusKey     = "fleet:status"
	eventsChannel = "fleet:events"
)

type statusMirror struct {
	client *redislib.Client
	prefix string
}

// NewStatusMirror keeps a hash of the latest status per account and
// publishes every transition on a pub/sub channel.
func NewStatusMirror(client *redislib.Client, prefix string) repository.StatusMirror {
	return &statusMirror{client: client, prefix: prefix}
}

func (m *statusMirror) Publish(ctx context.Context, status domain.WorkerStatus) error {
	if status.AccountID == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	pipe := m.client.TxPipeline()
	pipe.HSet(ctx, m.key(statusKey), status.AccountID, payload)
	pipe.Publish(ctx, m.key(eventsChannel), payload)
	_, err = pipe.Exec(ctx)
	return err
}

func (m *statusMirror) Remove(ctx context.Context, accountID string) error {
	payload, err := json.Marshal(map[string]string{"account_id": accountID, "state": "removed"})
	if err != nil {
		return err
	}
	pipe := m.client.TxPipeline()
	pipe.HDel(ctx, m.key(statusKey), accountID)
	pipe.Publish(ctx, m.key(eventsChannel), payload)
	_, err = pipe.Exec(ctx)
	return err
}

func (m *statusMirror) key(name string) string {
	return m.prefix + name
}
