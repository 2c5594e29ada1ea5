// Package app assembles the coordinator and API client from configuration
// and stored client credentials.
package app

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/jonandersen/tokenctl/internal/auth"
	"github.com/jonandersen/tokenctl/internal/cache"
	"github.com/jonandersen/tokenctl/internal/config"
	"github.com/jonandersen/tokenctl/internal/keyring"
	"github.com/jonandersen/tokenctl/pkg/apiclient"
)

// App holds the wired components a command needs.
type App struct {
	Config      *config.Config
	Fetcher     *auth.Fetcher
	Coordinator *auth.Coordinator
	Logger      zerolog.Logger
}

// New loads client credentials from store and wires a coordinator for them.
func New(cfg *config.Config, store keyring.Store, logger zerolog.Logger) (*App, error) {
	creds, err := keyring.LoadClientCredentials(store)
	if err != nil {
		return nil, err
	}
	return NewWithCredentials(cfg, creds, logger)
}

// NewWithCredentials wires a coordinator for creds without touching the
// keyring.
func NewWithCredentials(cfg *config.Config, creds auth.ClientCredentials, logger zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if !creds.Complete() {
		return nil, fmt.Errorf("client credentials are incomplete")
	}

	store, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}

	fetcher := auth.NewFetcher(cfg.TokenURL,
		auth.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
		auth.WithFetcherLogger(logger),
	)
	coordinator := auth.NewCoordinator(store, fetcher.FetchFunc(creds),
		auth.WithStaleMargin(cfg.StaleMargin()),
		auth.WithLogger(logger),
	)

	logger.Debug().
		Str("token_url", cfg.TokenURL).
		Str("cache", cfg.Cache).
		Dur("stale_margin", cfg.StaleMargin()).
		Object("credentials", creds).
		Msg("Coordinator ready")

	return &App{
		Config:      cfg,
		Fetcher:     fetcher,
		Coordinator: coordinator,
		Logger:      logger,
	}, nil
}

// NewStore returns the credential cache selected by cfg.Cache.
func NewStore(cfg *config.Config) (cache.Store[auth.Credential], error) {
	switch cfg.Cache {
	case config.CacheMemory:
		return cache.NewMemory[auth.Credential](), nil
	case config.CacheFile:
		return cache.NewFile[auth.Credential](cfg.ResolvedCacheDir()), nil
	default:
		return nil, fmt.Errorf("unknown cache %q", cfg.Cache)
	}
}

// APIClient returns a client for cfg.APIBaseURL authorized by the
// coordinator.
func (a *App) APIClient() *apiclient.Client {
	client := apiclient.NewClient(a.Config.APIBaseURL, a.Coordinator)
	client.HTTPClient = &http.Client{Timeout: a.Config.RequestTimeout()}
	return client
}
