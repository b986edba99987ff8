package repository

import (
	"context"

	"github.com/fastygo/botfleet/domain"
)

// AccountReader is the read side of the account registry.
type AccountReader interface {
	Get(ctx context.Context, id string) (*domain.Account, error)
	List(ctx context.Context) ([]domain.Account, error)
}

// AccountRepository persists account identity records. Update runs fn inside
// a single write transaction so concurrent patches never lose updates.
type AccountRepository interface {
	AccountReader
	Create(ctx context.Context, account *domain.Account) error
	Update(ctx context.Context, id string, fn func(*domain.Account) error) (*domain.Account, error)
	Delete(ctx context.Context, id string) error
}
