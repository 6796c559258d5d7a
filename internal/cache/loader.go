// Package cache provides a TTL cache that coalesces concurrent fetches.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// FetchFunc loads the value for a key from upstream.
type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Loader memoizes an expensive fetch per key. A committed value is served
// while younger than the TTL; otherwise callers join the single in-flight
// fetch for the key, so at most one upstream call per key is outstanding at
// any time. A failed fetch never discards a previously committed value.
type Loader[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]
	ttl     time.Duration
	now     func() time.Time

	// Statistics
	hits      atomic.Uint64
	misses    atomic.Uint64
	coalesced atomic.Uint64
}

type entry[V any] struct {
	value     V
	hasValue  bool
	fetchedAt time.Time
	flight    *flight[V]
}

// flight is a single in-progress fetch. val and err are written exactly once
// before done is closed; joiners read them only after done.
type flight[V any] struct {
	done chan struct{}
	val  V
	err  error
}

// LoaderOption configures a Loader.
type LoaderOption[K comparable, V any] func(*Loader[K, V])

// WithClock overrides the clock for tests.
func WithClock[K comparable, V any](now func() time.Time) LoaderOption[K, V] {
	return func(l *Loader[K, V]) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLoader creates a loader whose committed values stay fresh for ttl.
func NewLoader[K comparable, V any](ttl time.Duration, opts ...LoaderOption[K, V]) *Loader[K, V] {
	l := &Loader[K, V]{
		entries: make(map[K]*entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Get returns the committed value for key if it is younger than the TTL,
// otherwise fetches it, coalescing with any fetch already in flight.
func (l *Loader[K, V]) Get(ctx context.Context, key K, fetch FetchFunc[K, V]) (V, error) {
	return l.load(ctx, key, fetch, false)
}

// Refresh always goes upstream even when a fresh value is committed. A
// concurrently in-flight fetch for the same key is still joined rather than
// duplicated.
func (l *Loader[K, V]) Refresh(ctx context.Context, key K, fetch FetchFunc[K, V]) (V, error) {
	return l.load(ctx, key, fetch, true)
}

// Peek returns the committed value regardless of age, without fetching.
func (l *Loader[K, V]) Peek(key K) (V, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok || !e.hasValue {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Invalidate drops the committed value for key. An in-flight fetch is left
// to complete and commit as usual.
func (l *Loader[K, V]) Invalidate(key K) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return
	}
	if e.flight == nil {
		delete(l.entries, key)
		return
	}
	var zero V
	e.value = zero
	e.hasValue = false
	e.fetchedAt = time.Time{}
}

func (l *Loader[K, V]) load(ctx context.Context, key K, fetch FetchFunc[K, V], force bool) (V, error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry[V]{}
		l.entries[key] = e
	}

	if !force && e.hasValue && l.now().Sub(e.fetchedAt) < l.ttl {
		v := e.value
		l.mu.Unlock()
		l.hits.Add(1)
		return v, nil
	}

	if f := e.flight; f != nil {
		l.mu.Unlock()
		l.coalesced.Add(1)
		return l.wait(ctx, f)
	}

	f := &flight[V]{done: make(chan struct{})}
	e.flight = f
	l.mu.Unlock()
	l.misses.Add(1)

	go l.run(key, e, f, fetch)
	return l.wait(ctx, f)
}

func (l *Loader[K, V]) run(key K, e *entry[V], f *flight[V], fetch FetchFunc[K, V]) {
	// The fetch runs to completion on its own context so that a caller
	// abandoning the wait does not fail the joiners.
	v, err := fetch(context.Background(), key)

	l.mu.Lock()
	if err == nil {
		e.value = v
		e.hasValue = true
		e.fetchedAt = l.now()
	} else if !e.hasValue {
		delete(l.entries, key)
	}
	e.flight = nil
	l.mu.Unlock()

	f.val, f.err = v, err
	close(f.done)
}

func (l *Loader[K, V]) wait(ctx context.Context, f *flight[V]) (V, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

// Stats returns cumulative loader statistics.
func (l *Loader[K, V]) Stats() LoaderStats {
	return LoaderStats{
		Hits:      l.hits.Load(),
		Misses:    l.misses.Load(),
		Coalesced: l.coalesced.Load(),
	}
}

// LoaderStats counts loader outcomes.
type LoaderStats struct {
	Hits      uint64 // Served from a fresh committed value
	Misses    uint64 // Started an upstream fetch
	Coalesced uint64 // Joined a fetch already in flight
}
