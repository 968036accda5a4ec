package engine

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// CascadeTokenGenerator produces the token that correlates every action of
// one top-level dispatch, including the dispatches its effects make later.
type CascadeTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 cascade tokens.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator returns predetermined tokens for deterministic traces,
// then falls back to "<prefix>-<n>" once they run out.
type SequenceGenerator struct {
	mu     sync.Mutex
	tokens []string
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator returning tokens in order.
func NewSequenceGenerator(prefix string, tokens ...string) *SequenceGenerator {
	if prefix == "" {
		prefix = "cascade"
	}
	return &SequenceGenerator{tokens: tokens, prefix: prefix}
}

// Generate returns the next token.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	if g.n <= len(g.tokens) {
		return g.tokens[g.n-1]
	}
	return g.prefix + "-" + strconv.Itoa(g.n)
}

// cascade is carried on the context of effects so that their dispatches
// keep the originating token and listener chain.
type cascade struct {
	token string
	// chain is the listener paths that led here, outermost first.
	chain []string
}

type cascadeKey struct{}

func withCascade(ctx context.Context, c cascade) context.Context {
	return context.WithValue(ctx, cascadeKey{}, c)
}

func cascadeFrom(ctx context.Context) (cascade, bool) {
	c, ok := ctx.Value(cascadeKey{}).(cascade)
	return c, ok
}

// CascadeToken returns the cascade token carried by ctx, if any. Effects
// can use it to correlate their own logs.
func CascadeToken(ctx context.Context) string {
	c, _ := cascadeFrom(ctx)
	return c.token
}

func (c cascade) extend(listener string) cascade {
	return cascade{token: c.token, chain: append(slices.Clip(c.chain), listener)}
}
