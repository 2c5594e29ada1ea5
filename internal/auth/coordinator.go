package auth

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonandersen/tokenctl/internal/cache"
)

const (
	// DefaultCacheKey identifies the refresh-token credential slot.
	DefaultCacheKey = "tokenctl:RefreshTokenStrategy:token"

	// DefaultStaleMargin is how long before expiry a credential is renewed.
	DefaultStaleMargin = 60 * time.Second
)

// Coordinator hands out access tokens from a cache, renewing them through
// fetch when they are absent or stale. One Coordinator owns one cache key.
//
// At most one renewal per key is in flight at a time; that guarantee comes
// from the cache.Store contract.
type Coordinator struct {
	key    string
	store  cache.Store[Credential]
	fetch  FetchFunc
	margin time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCacheKey overrides DefaultCacheKey.
func WithCacheKey(key string) Option {
	return func(c *Coordinator) {
		c.key = key
	}
}

// WithStaleMargin sets how long before expiry a cached credential counts as
// stale. Negative values are treated as zero.
func WithStaleMargin(d time.Duration) Option {
	return func(c *Coordinator) {
		if d < 0 {
			d = 0
		}
		c.margin = d
	}
}

// WithClock sets the time source for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates a coordinator over store that mints credentials
// with fetch.
func NewCoordinator(store cache.Store[Credential], fetch FetchFunc, opts ...Option) *Coordinator {
	c := &Coordinator{
		key:    DefaultCacheKey,
		store:  store,
		fetch:  fetch,
		margin: DefaultStaleMargin,
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CacheKey returns the key this coordinator manages.
func (c *Coordinator) CacheKey() string {
	return c.key
}

// StaleMargin returns the configured staleness margin.
func (c *Coordinator) StaleMargin() time.Duration {
	return c.margin
}

// IsStale reports whether entry is expired or within the staleness margin.
func (c *Coordinator) IsStale(entry cache.Entry[Credential]) bool {
	return !c.now().Before(entry.ExpiresAt.Add(-c.margin))
}

// GetOrCreateAccessToken returns the cached credential if it is fresh and
// otherwise fetches, stores and returns a new one. A failed fetch fails the
// call and leaves the cache untouched.
func (c *Coordinator) GetOrCreateAccessToken(ctx context.Context) (*Credential, error) {
	entry, err := c.store.GetOrCreate(ctx, c.key, c.create, c.refresh, c.IsStale)
	if err != nil {
		return nil, err
	}
	return detach(entry), nil
}

// GetAccessToken returns the cached credential without any network I/O,
// even if it is stale. The boolean is false when nothing is cached.
func (c *Coordinator) GetAccessToken(ctx context.Context) (*Credential, bool, error) {
	entry, ok, err := c.store.Get(ctx, c.key)
	if err != nil || !ok {
		return nil, false, err
	}
	return detach(entry), true, nil
}

// detach copies the cached credential so callers cannot alias the stored
// Scope slice.
func detach(entry cache.Entry[Credential]) *Credential {
	cred := entry.Value
	cred.Scope = slices.Clone(cred.Scope)
	return &cred
}

// RemoveAccessToken deletes the cached credential, forcing the next
// GetOrCreateAccessToken to fetch. It is a no-op when nothing is cached.
func (c *Coordinator) RemoveAccessToken(ctx context.Context) error {
	if err := c.store.Remove(ctx, c.key); err != nil {
		return err
	}
	c.logger.Debug().Str("cache_key", c.key).Msg("Removed cached access token")
	return nil
}

// Token returns a valid access token string.
func (c *Coordinator) Token(ctx context.Context) (string, error) {
	cred, err := c.GetOrCreateAccessToken(ctx)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// Invalidate drops the cached credential after the server rejected it.
func (c *Coordinator) Invalidate(ctx context.Context) error {
	return c.RemoveAccessToken(ctx)
}

func (c *Coordinator) create(ctx context.Context) (cache.Entry[Credential], error) {
	c.logger.Info().Str("cache_key", c.key).Msg("No cached access token, fetching")
	return c.mint(ctx)
}

func (c *Coordinator) refresh(ctx context.Context, stale cache.Entry[Credential]) (cache.Entry[Credential], error) {
	c.logger.Info().
		Str("cache_key", c.key).
		Time("expires_at", stale.ExpiresAt).
		Msg("Cached access token is stale, refreshing")
	return c.mint(ctx)
}

func (c *Coordinator) mint(ctx context.Context) (cache.Entry[Credential], error) {
	cred, err := c.fetch(ctx)
	if err != nil {
		c.logger.Error().Err(err).Str("cache_key", c.key).Msg("Failed to fetch access token")
		return cache.Entry[Credential]{}, err
	}
	c.logger.Info().
		Str("cache_key", c.key).
		Int64("expires_in", cred.ExpiresIn).
		Msg("Access token refreshed")
	return ToCacheable(cred), nil
}
