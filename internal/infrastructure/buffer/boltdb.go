// Package buffer parks audit events in a local bbolt file while the audit
// database is unreachable.
package buffer

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var indexSuffix = []byte(":index")

// Store is a FIFO queue of items. Keys are the bucket sequence so events
// replay in the order they were recorded; a second bucket maps item ids to
// their queue key.
type Store struct {
	db    *bolt.DB
	queue []byte
	index []byte
}

// Open creates the file and buckets if needed.
func Open(path string, bucket string) (*Store, error) {
	if bucket == "" {
		bucket = "buffer"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:    db,
		queue: []byte(bucket),
		index: append([]byte(bucket), indexSuffix...),
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{s.queue, s.index} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Enqueue appends item to the tail of the queue. Enqueueing an id that is
// already buffered replaces the earlier entry.
func (s *Store) Enqueue(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	item.normalize()
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := s.delete(tx, item.ID); err != nil {
			return err
		}
		return s.put(tx, item)
	})
}

// GetBatch returns up to limit items from the head without removing them.
func (s *Store) GetBatch(limit int) ([]Item, error) {
	if s == nil || s.db == nil {
		return nil, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	var items []Item
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.queue).Cursor()
		for k, v := c.First(); k != nil && len(items) < limit; k, v = c.Next() {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

// Remove deletes the item with the same id. Unknown ids are ignored.
func (s *Store) Remove(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return s.delete(tx, item.ID)
	})
}

// Requeue moves item to the tail with its retry count, in one transaction.
func (s *Store) Requeue(item Item) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	if item.ID == "" {
		return errors.New("buffer: requeue needs an item id")
	}
	item.Timestamp = time.Now()
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := s.delete(tx, item.ID); err != nil {
			return err
		}
		return s.put(tx, item)
	})
}

// Size returns the number of buffered items.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(s.queue).Stats().KeyN
		return nil
	})
	return count, err
}

// Cleanup drops items last queued before olderThan and returns how many
// were removed.
func (s *Store) Cleanup(olderThan time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		queue, index := tx.Bucket(s.queue), tx.Bucket(s.index)
		var stale [][]byte
		var ids []string
		err := queue.ForEach(func(k, v []byte) error {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil || item.Timestamp.Before(olderThan) {
				stale = append(stale, append([]byte(nil), k...))
				ids = append(ids, item.ID)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for i, k := range stale {
			if err := queue.Delete(k); err != nil {
				return err
			}
			if ids[i] != "" {
				if err := index.Delete([]byte(ids[i])); err != nil {
					return err
				}
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) put(tx *bolt.Tx, item Item) error {
	queue := tx.Bucket(s.queue)
	seq, err := queue.NextSequence()
	if err != nil {
		return err
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)

	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	if err := queue.Put(key, payload); err != nil {
		return err
	}
	return tx.Bucket(s.index).Put([]byte(item.ID), key)
}

func (s *Store) delete(tx *bolt.Tx, id string) error {
	if id == "" {
		return nil
	}
	index := tx.Bucket(s.index)
	key := index.Get([]byte(id))
	if key == nil {
		return nil
	}
	if err := tx.Bucket(s.queue).Delete(key); err != nil {
		return err
	}
	return index.Delete([]byte(id))
}
