package repository

import (
	"context"

	"github.com/fastygo/botfleet/domain"
)

// StatusMirror publishes worker status transitions to an external store so
// other processes can observe the fleet without polling the control API.
type StatusMirror interface {
	Publish(ctx context.Context, status domain.WorkerStatus) error
	Remove(ctx context.Context, accountID string) error
}
