// Package cache provides keyed storage for expiring values with per-key
// single-flight creation and refresh.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrUnavailable wraps every failure reported by a Backend.
var ErrUnavailable = errors.New("cache unavailable")

// Entry is the stored form of a value plus the bookkeeping needed to decide
// whether it is stale.
type Entry[V any] struct {
	Value     V         `json:"value"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateFunc produces the first entry for an empty key.
type CreateFunc[V any] func(ctx context.Context) (Entry[V], error)

// RefreshFunc produces a replacement for a stale entry.
type RefreshFunc[V any] func(ctx context.Context, stale Entry[V]) (Entry[V], error)

// StaleFunc reports whether a stored entry must be replaced.
type StaleFunc[V any] func(Entry[V]) bool

// Store is the cache contract the token coordinator depends on.
//
// GetOrCreate must coalesce concurrent calls for the same key: while a
// create or refresh is in flight for a key, other callers for that key wait
// for it and receive its result or its error. A failed create or refresh
// must leave the stored entry untouched.
type Store[V any] interface {
	Get(ctx context.Context, key string) (Entry[V], bool, error)
	GetOrCreate(ctx context.Context, key string, create CreateFunc[V], refresh RefreshFunc[V], stale StaleFunc[V]) (Entry[V], error)
	Remove(ctx context.Context, key string) error
}

// Backend persists entries. Backends need not be safe against concurrent
// writers of the same key; Cache serialises them.
type Backend[V any] interface {
	Load(ctx context.Context, key string) (Entry[V], bool, error)
	Save(ctx context.Context, key string, entry Entry[V]) error
	Delete(ctx context.Context, key string) error
}

// Cache implements Store on top of a Backend.
type Cache[V any] struct {
	backend Backend[V]
	group   singleflight.Group
}

// New creates a Cache over the given backend.
func New[V any](backend Backend[V]) *Cache[V] {
	return &Cache[V]{backend: backend}
}

// NewMemory creates a Cache that keeps entries in process memory.
func NewMemory[V any]() *Cache[V] {
	return New[V](NewMemoryBackend[V]())
}

// Get returns the stored entry verbatim, stale or not.
func (c *Cache[V]) Get(ctx context.Context, key string) (Entry[V], bool, error) {
	entry, ok, err := c.backend.Load(ctx, key)
	if err != nil {
		return Entry[V]{}, false, unavailable("load", key, err)
	}
	return entry, ok, nil
}

// GetOrCreate returns a fresh entry for key, calling create when the key is
// empty and refresh when the stored entry is stale. Concurrent callers for
// the same key share one call.
func (c *Cache[V]) GetOrCreate(ctx context.Context, key string, create CreateFunc[V], refresh RefreshFunc[V], stale StaleFunc[V]) (Entry[V], error) {
	entry, ok, err := c.Get(ctx, key)
	if err != nil {
		return Entry[V]{}, err
	}
	if ok && !stale(entry) {
		return entry, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Another flight may have finished between the read above and now.
		current, ok, err := c.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok && !stale(current) {
			return current, nil
		}

		var next Entry[V]
		if ok {
			next, err = refresh(ctx, current)
		} else {
			next, err = create(ctx)
		}
		if err != nil {
			return nil, err
		}

		if err := c.backend.Save(ctx, key, next); err != nil {
			return nil, unavailable("save", key, err)
		}
		return next, nil
	})
	if err != nil {
		return Entry[V]{}, err
	}
	return v.(Entry[V]), nil
}

// Remove deletes the entry for key. Removing an absent key is not an error.
func (c *Cache[V]) Remove(ctx context.Context, key string) error {
	if err := c.backend.Delete(ctx, key); err != nil {
		return unavailable("delete", key, err)
	}
	return nil
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %w", ErrUnavailable, op, key, err)
}
