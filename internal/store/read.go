package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/modeltree/internal/persist"
)

// Get returns the live value of key, or persist.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persist.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

// Keys returns every live key in binary order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv ORDER BY key COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

// Revision is one historical value of a key.
type Revision struct {
	Key     string
	Version int64
	Value   []byte
}

// History returns every value key has had, oldest first.
// Returns an empty slice (not nil) for unknown keys.
func (s *Store) History(ctx context.Context, key string) ([]Revision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, version, value
		FROM kv_history
		WHERE key = ?
		ORDER BY version ASC
	`, key)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	revs := []Revision{}
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.Key, &r.Version, &r.Value); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		revs = append(revs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return revs, nil
}

// ReadCascade returns the journaled actions of one cascade in processing
// order. Returns an empty slice (not nil) if nothing was journaled.
func (s *Store) ReadCascade(ctx context.Context, cascade string) ([]ActionRecord, error) {
	return s.readActions(ctx, `
		SELECT cascade, seq, depth, type, payload, result, error, changed
		FROM actions
		WHERE cascade = ?
		ORDER BY seq ASC
	`, cascade)
}

// ReadActions returns the journaled actions of the given type, or all
// actions when actionType is empty, in processing order.
func (s *Store) ReadActions(ctx context.Context, actionType string) ([]ActionRecord, error) {
	if actionType == "" {
		return s.readActions(ctx, `
			SELECT cascade, seq, depth, type, payload, result, error, changed
			FROM actions
			ORDER BY seq ASC, cascade COLLATE BINARY ASC
		`)
	}
	return s.readActions(ctx, `
		SELECT cascade, seq, depth, type, payload, result, error, changed
		FROM actions
		WHERE type = ?
		ORDER BY seq ASC, cascade COLLATE BINARY ASC
	`, actionType)
}

// Cascades returns every journaled cascade token, ordered by the first
// action each one processed.
func (s *Store) Cascades(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cascade FROM actions
		GROUP BY cascade
		ORDER BY MIN(seq) ASC, cascade COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query cascades: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan cascade: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cascades: %w", err)
	}
	return out, nil
}

func (s *Store) readActions(ctx context.Context, query string, args ...any) ([]ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	recs := []ActionRecord{}
	for rows.Next() {
		rec, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return recs, nil
}

func scanAction(rows *sql.Rows) (ActionRecord, error) {
	var (
		rec             ActionRecord
		payload, result string
	)
	if err := rows.Scan(&rec.Cascade, &rec.Seq, &rec.Depth, &rec.Type, &payload, &result, &rec.Error, &rec.Changed); err != nil {
		return ActionRecord{}, fmt.Errorf("scan action: %w", err)
	}
	var err error
	if rec.Payload, err = unmarshalValue(payload); err != nil {
		return ActionRecord{}, fmt.Errorf("action %s/%d payload: %w", rec.Cascade, rec.Seq, err)
	}
	if rec.Result, err = unmarshalValue(result); err != nil {
		return ActionRecord{}, fmt.Errorf("action %s/%d result: %w", rec.Cascade, rec.Seq, err)
	}
	return rec, nil
}
