package history

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/botfleet/repository"
)

// PathFunc resolves the history file of an account.
type PathFunc func(accountID string) (string, error)

// Registry opens account history databases lazily and keeps them open until
// the account is removed or the process shuts down.
type Registry struct {
	path   PathFunc
	logger *zap.Logger

	mu  sync.Mutex
	dbs map[string]*DB
}

func NewRegistry(path PathFunc, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{path: path, logger: logger, dbs: make(map[string]*DB)}
}

// For returns the history store of accountID.
func (r *Registry) For(ctx context.Context, accountID string) (repository.HistoryRepository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if db, ok := r.dbs[accountID]; ok {
		return db, nil
	}
	p, err := r.path(accountID)
	if err != nil {
		return nil, err
	}
	db, err := Open(ctx, p)
	if err != nil {
		return nil, err
	}
	r.dbs[accountID] = db
	return db, nil
}

// Close releases the database of one account. It must be called before the
// workspace directory is removed.
func (r *Registry) Close(accountID string) error {
	r.mu.Lock()
	db, ok := r.dbs[accountID]
	delete(r.dbs, accountID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return db.Close()
}

// CloseAll releases every open database.
func (r *Registry) CloseAll(context.Context) error {
	r.mu.Lock()
	dbs := r.dbs
	r.dbs = make(map[string]*DB)
	r.mu.Unlock()

	var result error
	for id, db := range dbs {
		if err := db.Close(); err != nil {
			r.logger.Warn("history close failed", zap.String("account_id", id), zap.Error(err))
			result = errors.Join(result, err)
		}
	}
	return result
}
