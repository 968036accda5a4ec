// Package bolt is a persist.Storage backed by a bbolt file.
package bolt

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/roach88/modeltree/internal/persist"
)

// DefaultBucket holds values when no bucket is configured.
const DefaultBucket = "modeltree"

type Storage struct {
	filename string
	bucket   []byte
	logger   *slog.Logger
	db       *bolt.DB
}

// NewStorage returns an unopened storage for filename. An empty bucket
// selects DefaultBucket.
func NewStorage(filename, bucket string, logger *slog.Logger) *Storage {
	if bucket == "" {
		bucket = DefaultBucket
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		filename: filename,
		bucket:   []byte(bucket),
		logger:   logger.With("storage", "bolt", "bucket", bucket),
	}
}

// Open opens the database file, waiting up to a second for its lock.
func (s *Storage) Open() error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(s.filename, 0644, opts)
	if err != nil {
		return err
	}
	s.db = db
	return nil
}

func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

var errNotOpen = errors.New("bolt storage is not open")

// Get implements persist.Storage.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	if s.db == nil {
		return nil, errNotOpen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return persist.ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return persist.ErrNotFound
		}
		// v is only valid for the life of the transaction.
		out = slices.Clone(v)
		return nil
	})
	s.logger.Debug("get", "key", key, "bytes", len(out), "error", err)
	return out, err
}

// Set implements persist.Storage.
func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	if s.db == nil {
		return errNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Debug("set", "key", key, "bytes", len(value))
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if s.db == nil {
		return errNotOpen
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

// Keys implements persist.Lister. Keys come back in byte order.
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, errNotOpen
	}
	keys := make([]string, 0, 32)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
