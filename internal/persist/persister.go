package persist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/modeltree/internal/state"
)

// Persister hydrates and snapshots one subtree.
type Persister struct {
	storage Storage
	cfg     Config
	path    state.Path
	schema  *schema
	logger  *slog.Logger

	mu      sync.Mutex
	pending state.Object // latest root snapshot not yet written
	hashes  map[string]string
	lastErr error

	writeMu sync.Mutex // serializes flushes from the loop and Flush
	signal  chan struct{}
	stop    chan struct{}
	done    chan struct{}
	started bool
	closed  bool
}

// New validates cfg and returns an idle Persister.
func New(s Storage, cfg Config, logger *slog.Logger) (*Persister, error) {
	if s == nil {
		return nil, errors.New("persist: nil storage")
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Persister{
		storage: s,
		cfg:     cfg,
		path:    state.ParsePath(cfg.Path),
		logger:  logger.With("persist", cfg.StorageKey("*")),
		hashes:  make(map[string]string),
		signal:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cfg.Schema != "" {
		sc, err := compileSchema(cfg.Schema)
		if err != nil {
			return nil, &Error{Op: "schema", Err: err}
		}
		p.schema = sc
	}
	return p, nil
}

// Config returns the persister's configuration.
func (p *Persister) Config() Config { return p.cfg }

// keys returns the persisted keys of the subtree in root, in lexical order.
func (p *Persister) keys(root state.Object) []string {
	var keys []string
	for _, k := range state.SortedKeys(state.ObjectAt(root, p.path)) {
		if p.cfg.allowed(k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Hydrate reads every persisted key and merges it into initial.
//
// Keys missing from storage keep their defaults. Any other failure (read,
// decode, transform, schema) aborts hydration: initial is returned
// unchanged together with the error, so the store starts from defaults.
func (p *Persister) Hydrate(ctx context.Context, initial state.Object) (state.Object, error) {
	defaults := state.ObjectAt(initial, p.path)
	loaded := make(state.Object)

	for _, key := range p.keys(initial) {
		skey := p.cfg.StorageKey(key)
		raw, err := p.storage.Get(ctx, skey)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return initial, &Error{Op: "hydrate", Key: skey, Err: err}
		}

		v, err := decode(raw)
		if err != nil {
			return initial, &Error{Op: "hydrate", Key: skey, Err: fmt.Errorf("decode: %w", err)}
		}
		if t, ok := p.cfg.transform(key); ok && t.In != nil {
			if v, err = t.In(v); err != nil {
				return initial, &Error{Op: "hydrate", Key: skey, Err: fmt.Errorf("transform: %w", err)}
			}
		}
		loaded[key] = merge(p.cfg.Merge, defaults[key], v)
	}

	if len(loaded) == 0 {
		return initial, nil
	}
	if p.schema != nil {
		candidate := make(state.Object, len(defaults))
		for k, v := range defaults {
			candidate[k] = v
		}
		for k, v := range loaded {
			candidate[k] = v
		}
		if err := p.schema.validate(candidate); err != nil {
			return initial, &Error{Op: "validate", Key: p.cfg.StorageKey("*"), Err: err}
		}
	}

	patches := make([]state.Patch, 0, len(loaded))
	for _, k := range state.SortedKeys(loaded) {
		patches = append(patches, state.Patch{Path: p.path.Child(k), Value: loaded[k]})
	}
	p.logger.Debug("hydrated", "keys", state.SortedKeys(loaded))
	return state.Apply(initial, patches), nil
}

func decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func merge(strategy MergeStrategy, def, stored any) any {
	if strategy != MergeShallow {
		return stored
	}
	defObj, ok1 := def.(state.Object)
	storedObj, ok2 := stored.(state.Object)
	if !ok1 || !ok2 {
		return stored
	}
	out := make(state.Object, len(defObj)+len(storedObj))
	for k, v := range defObj {
		out[k] = v
	}
	for k, v := range storedObj {
		out[k] = v
	}
	return out
}

// Prime records root as already persisted so the first flush only writes
// keys that changed since.
func (p *Persister) Prime(root state.Object) {
	sub := state.ObjectAt(root, p.path)
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, key := range p.keys(root) {
		if h, err := state.Hash(state.DomainSnapshot, sub[key]); err == nil {
			p.hashes[key] = h
		}
	}
}

// Start launches the flush loop. Calling Start twice is a no-op.
func (p *Persister) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	go p.run()
}

// Enqueue records root as the latest snapshot and wakes the flush loop.
// Thread-safe: may be called from any goroutine.
func (p *Persister) Enqueue(root state.Object) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.pending = root
	p.mu.Unlock()

	// Non-blocking: a buffer of 1 coalesces signals.
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// run is the flush loop. With a debounce, each new signal pushes the write
// back; the newest snapshot is written once the signals go quiet.
func (p *Persister) run() {
	defer close(p.done)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-p.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-p.signal:
			if p.cfg.Debounce <= 0 {
				p.flushLogged()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(p.cfg.Debounce)
			} else {
				timer.Reset(p.cfg.Debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			p.flushLogged()
		}
	}
}

func (p *Persister) flushLogged() {
	if err := p.Flush(context.Background()); err != nil {
		p.logger.Error("flush failed", "error", err)
	}
}

// Flush writes the pending snapshot now. Keys whose canonical hash did not
// change since the last successful write are skipped.
func (p *Persister) Flush(ctx context.Context) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	root := p.pending
	p.pending = nil
	p.mu.Unlock()
	if root == nil {
		return nil
	}

	sub := state.ObjectAt(root, p.path)
	var errs []error
	failed := false
	for _, key := range p.keys(root) {
		if err := p.write(ctx, key, sub[key]); err != nil {
			errs = append(errs, err)
			failed = true
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if failed {
		p.lastErr = errors.Join(errs...)
		// Keep the snapshot for the next attempt unless a newer one arrived.
		if p.pending == nil {
			p.pending = root
		}
		return p.lastErr
	}
	p.lastErr = nil
	return nil
}

func (p *Persister) write(ctx context.Context, key string, v any) error {
	skey := p.cfg.StorageKey(key)
	hash, err := state.Hash(state.DomainSnapshot, v)
	if err != nil {
		return &Error{Op: "flush", Key: skey, Err: err}
	}
	p.mu.Lock()
	unchanged := p.hashes[key] == hash
	p.mu.Unlock()
	if unchanged {
		return nil
	}

	out := v
	if t, ok := p.cfg.transform(key); ok && t.Out != nil {
		if out, err = t.Out(v); err != nil {
			return &Error{Op: "flush", Key: skey, Err: fmt.Errorf("transform: %w", err)}
		}
	}
	data, err := state.MarshalCanonical(out)
	if err != nil {
		return &Error{Op: "flush", Key: skey, Err: err}
	}
	if err := p.storage.Set(ctx, skey, data); err != nil {
		return &Error{Op: "flush", Key: skey, Err: err}
	}

	p.mu.Lock()
	p.hashes[key] = hash
	p.mu.Unlock()
	p.logger.Debug("persisted", "key", skey, "bytes", len(data))
	return nil
}

// LastErr returns the error of the most recent flush, or nil.
func (p *Persister) LastErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Close stops the loop and writes any pending snapshot.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	started := p.started
	p.mu.Unlock()

	if started {
		close(p.stop)
		select {
		case <-p.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.Flush(ctx)
}
