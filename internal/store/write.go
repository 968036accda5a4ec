package store

import (
	"context"
	"fmt"
)

// Set stores value under key and appends it to the key's history.
// Both writes happen in one transaction.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set %s: begin tx: %w", key, err)
	}
	defer tx.Rollback() // No-op if committed

	var version int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO kv (key, value, version) VALUES (?, ?, 1)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = kv.version + 1
		RETURNING version
	`, key, value).Scan(&version)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO kv_history (key, value, version) VALUES (?, ?, ?)
	`, key, value, version); err != nil {
		return fmt.Errorf("set %s: history: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set %s: commit: %w", key, err)
	}
	return nil
}

// Delete removes key from the live table. History is kept.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// ActionRecord is one journaled action.
type ActionRecord struct {
	Cascade string
	Seq     int64
	Depth   int
	Type    string
	Payload any
	Result  any
	Error   string
	Changed bool
}

// WriteAction appends rec to the journal.
// Uses ON CONFLICT DO NOTHING for idempotency - a (cascade, seq) pair
// written twice is silently ignored.
func (s *Store) WriteAction(ctx context.Context, rec ActionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (cascade, seq, depth, type, payload, result, error, changed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cascade, seq) DO NOTHING
	`,
		rec.Cascade,
		rec.Seq,
		rec.Depth,
		rec.Type,
		marshalValue(rec.Payload),
		marshalValue(rec.Result),
		rec.Error,
		rec.Changed,
	)
	if err != nil {
		return fmt.Errorf("write action: %w", err)
	}
	return nil
}
