package registry

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fastygo/botfleet/domain"
	"github.com/fastygo/botfleet/repository"
)

const accountsBucket = "accounts"

// Store persists the account registry in a single BoltDB file. Every write
// runs inside one bolt transaction, so a crash leaves either the old or the
// new record and never a partial one.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open initializes the BoltDB file and ensures the bucket exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(accountsBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		bucket: []byte(accountsBucket),
	}, nil
}

// Get returns the account with the given id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Account, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var acc *domain.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		acc, err = decode(tx.Bucket(s.bucket).Get([]byte(id)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// List returns all accounts in creation order.
func (s *Store) List(ctx context.Context) ([]domain.Account, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	accounts := make([]domain.Account, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).ForEach(func(_, v []byte) error {
			acc, err := decode(v)
			if err != nil {
				return err
			}
			accounts = append(accounts, *acc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].Seq < accounts[j].Seq
	})
	return accounts, nil
}

// Create inserts a new account. The id must be unused.
func (s *Store) Create(ctx context.Context, acc *domain.Account) error {
	if acc == nil {
		return domain.ErrInvalidPayload
	}
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := domain.ValidateAccountID(acc.ID); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b.Get([]byte(acc.ID)) != nil {
			return domain.ErrDuplicateID
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		acc.Seq = seq
		acc.Touch()
		return put(b, acc)
	})
}

// Update applies fn to the stored record and persists the result atomically.
// Changing the id inside fn is rejected.
func (s *Store) Update(ctx context.Context, id string, fn func(*domain.Account) error) (*domain.Account, error) {
	if fn == nil {
		return nil, domain.ErrInvalidPayload
	}
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var updated *domain.Account
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		acc, err := decode(b.Get([]byte(id)))
		if err != nil {
			return err
		}
		seq := acc.Seq
		if err := fn(acc); err != nil {
			return err
		}
		if acc.ID != id {
			return domain.ErrImmutableID
		}
		acc.Seq = seq
		acc.Touch()
		updated = acc
		return put(b, acc)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the account record.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b.Get([]byte(id)) == nil {
			return domain.ErrAccountNotFound
		}
		return b.Delete([]byte(id))
	})
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Stats exposes Bolt statistics for monitoring endpoints.
func (s *Store) Stats() bolt.Stats {
	if s == nil || s.db == nil {
		return bolt.Stats{}
	}
	return s.db.Stats()
}

func (s *Store) ready(ctx context.Context) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if ctx != nil {
		return ctx.Err()
	}
	return nil
}

func decode(raw []byte) (*domain.Account, error) {
	if raw == nil {
		return nil, domain.ErrAccountNotFound
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.Join(domain.ErrInvalidDocument, err)
	}
	acc := rec.Account
	acc.Seq = rec.Seq
	return &acc, nil
}

func put(b *bolt.Bucket, acc *domain.Account) error {
	payload, err := json.Marshal(record{Account: *acc, Seq: acc.Seq})
	if err != nil {
		return err
	}
	return b.Put([]byte(acc.ID), payload)
}

// record keeps Seq on disk even though the API representation hides it.
type record struct {
	domain.Account
	Seq uint64 `json:"seq"`
}

var _ repository.AccountRepository = (*Store)(nil)
