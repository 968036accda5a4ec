package engine

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/modeltree/internal/model"
	"github.com/roach88/modeltree/internal/state"
)

func newStore(t *testing.T, m model.Model, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{
		WithLogger(slog.New(slog.DiscardHandler)),
		WithCascadeGenerator(NewSequenceGenerator("c")),
	}, opts...)
	s, err := New(context.Background(), m, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}

func call(t *testing.T, s *Store, path string, payload any) any {
	t.Helper()
	res, err := s.MustCommand(path).Call(context.Background(), payload)
	require.NoError(t, err)
	return res
}

func waitEffects(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.WaitEffects(ctx))
}

func inc(key string) *model.MutatorNode {
	return model.Mutator(func(d *state.Draft, _ any) error {
		d.Set(key, state.Int(d.Get(key))+1)
		return nil
	})
}

func push(key string) *model.MutatorNode {
	return model.Mutator(func(d *state.Draft, payload any) error {
		d.Append(key, payload)
		return nil
	})
}

// logBuffer is a goroutine-safe sink for slog output.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *logBuffer) logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(b, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// recorder collects observer records.
type recorder struct {
	mu   sync.Mutex
	recs []Record
}

func (r *recorder) observe(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.recs))
	for i, rec := range r.recs {
		out[i] = rec.Type
	}
	return out
}
