package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonandersen/tokenctl/internal/auth"
	"github.com/jonandersen/tokenctl/internal/cache"
	"github.com/jonandersen/tokenctl/internal/config"
	"github.com/jonandersen/tokenctl/internal/keyring"
)

// newTokenServer serves the token endpoint at /token and a protected
// resource at /v1/me that only accepts the most recently issued token.
func newTokenServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var issued atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			user, pass, ok := r.BasicAuth()
			if !ok || user != "id" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
				return
			}
			issued.Add(1)
			_, _ = w.Write([]byte(`{"access_token":"access-1","token_type":"Bearer","expires_in":3600}`))
		case "/v1/me":
			assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"id":"u1","display_name":"User One"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server, &issued
}

func testConfig(t *testing.T, serverURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.TokenURL = serverURL + "/token"
	cfg.APIBaseURL = serverURL + "/v1"
	cfg.CacheDir = t.TempDir()
	return cfg
}

func TestNew_FromKeyring(t *testing.T) {
	server, issued := newTokenServer(t)
	store := keyring.NewMockStore().WithClientCredentials("id", "secret", "refresh")

	a, err := New(testConfig(t, server.URL), store, zerolog.Nop())
	require.NoError(t, err)

	cred, err := a.Coordinator.GetOrCreateAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", cred.AccessToken)

	// Second call is served from the file cache
	_, err = a.Coordinator.GetOrCreateAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), issued.Load())
}

func TestNew_MissingCredentials(t *testing.T) {
	server, _ := newTokenServer(t)
	store := keyring.NewMockStore().WithData(keyring.ServiceName, keyring.KeyClientID, "id")

	_, err := New(testConfig(t, server.URL), store, zerolog.Nop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "client_secret not configured")
}

func TestNewWithCredentials_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cache = "redis"

	_, err := NewWithCredentials(cfg, auth.ClientCredentials{ClientID: "id", ClientSecret: "s", RefreshToken: "r"}, zerolog.Nop())

	assert.ErrorContains(t, err, "invalid configuration")
}

func TestNewWithCredentials_Incomplete(t *testing.T) {
	_, err := NewWithCredentials(config.DefaultConfig(), auth.ClientCredentials{ClientID: "id"}, zerolog.Nop())

	assert.ErrorContains(t, err, "incomplete")
}

func TestNewStore(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CacheDir = t.TempDir()

	store, err := NewStore(cfg)
	require.NoError(t, err)
	ctx := context.Background()
	_, err = store.GetOrCreate(ctx, "k",
		func(ctx context.Context) (cache.Entry[auth.Credential], error) {
			return cache.Entry[auth.Credential]{Value: auth.Credential{AccessToken: "x"}}, nil
		}, nil, func(cache.Entry[auth.Credential]) bool { return false })
	require.NoError(t, err)

	// The file backend wrote into CacheDir
	entries, err := os.ReadDir(cfg.CacheDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	cfg.Cache = config.CacheMemory
	store, err = NewStore(cfg)
	require.NoError(t, err)
	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "memory store starts empty")

	cfg.Cache = "bogus"
	_, err = NewStore(cfg)
	assert.Error(t, err)
}

func TestApp_APIClient(t *testing.T) {
	server, issued := newTokenServer(t)
	cfg := testConfig(t, server.URL)
	cfg.Cache = config.CacheMemory

	a, err := NewWithCredentials(cfg, auth.ClientCredentials{ClientID: "id", ClientSecret: "secret", RefreshToken: "r"}, zerolog.Nop())
	require.NoError(t, err)

	user, err := a.APIClient().CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, int32(1), issued.Load())
}
