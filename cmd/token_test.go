package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonandersen/tokenctl/internal/auth"
	"github.com/jonandersen/tokenctl/internal/cache"
)

var tokenTestTime = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

// newTestTokenOptions wires a coordinator over a memory cache to the
// newTokenEndpoint server, with the clock fixed at tokenTestTime.
func newTestTokenOptions(t *testing.T, jsonMode bool) (*tokenOptions, *cache.Cache[auth.Credential]) {
	t.Helper()
	server, _ := newTokenEndpoint(t)
	clock := func() time.Time { return tokenTestTime }

	store := cache.NewMemory[auth.Credential]()
	fetcher := auth.NewFetcher(server.URL, auth.WithFetcherClock(clock))
	creds := auth.ClientCredentials{ClientID: "id", ClientSecret: "secret", RefreshToken: "refresh"}
	coordinator := auth.NewCoordinator(store, fetcher.FetchFunc(creds), auth.WithClock(clock))

	return &tokenOptions{coordinator: coordinator, jsonMode: jsonMode, now: clock}, store
}

func seedToken(t *testing.T, store *cache.Cache[auth.Credential], cred auth.Credential) {
	t.Helper()
	_, err := store.GetOrCreate(context.Background(), auth.DefaultCacheKey,
		func(ctx context.Context) (cache.Entry[auth.Credential], error) {
			return auth.ToCacheable(&cred), nil
		}, nil, func(cache.Entry[auth.Credential]) bool { return false })
	require.NoError(t, err)
}

func executeToken(t *testing.T, opts *tokenOptions, args ...string) (string, error) {
	t.Helper()
	cmd := newTokenCmd(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTokenCmd_PrintsAccessToken(t *testing.T) {
	opts, _ := newTestTokenOptions(t, false)

	out, err := executeToken(t, opts)

	require.NoError(t, err)
	assert.Equal(t, "access-1\n", out)
}

func TestTokenCmd_JSON(t *testing.T) {
	opts, _ := newTestTokenOptions(t, true)

	out, err := executeToken(t, opts)
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "access-1", result["access_token"])
	assert.Equal(t, "Bearer", result["token_type"])
	assert.Equal(t, "fresh", result["status"])
	assert.Equal(t, "2026-05-04T13:00:00Z", result["expires_at"])
	assert.Equal(t, float64(3600), result["expires_in"])
	assert.Equal(t, "user-read-private", result["scope"])
}

func TestTokenCmd_UsesCache(t *testing.T) {
	opts, store := newTestTokenOptions(t, false)
	seedToken(t, store, auth.Credential{
		AccessToken: "cached-token",
		TokenType:   "Bearer",
		ExpiresIn:   3600,
		ExpiresAt:   tokenTestTime.Add(30 * time.Minute),
	})

	out, err := executeToken(t, opts)

	require.NoError(t, err)
	assert.Equal(t, "cached-token\n", out)
}

func TestTokenCmd_FetchError(t *testing.T) {
	opts, _ := newTestTokenOptions(t, false)
	server, _ := newTokenEndpoint(t)
	fetcher := auth.NewFetcher(server.URL)
	bad := auth.ClientCredentials{ClientID: "id", ClientSecret: "secret", RefreshToken: "revoked"}
	opts.coordinator = auth.NewCoordinator(cache.NewMemory[auth.Credential](), fetcher.FetchFunc(bad))

	_, err := executeToken(t, opts)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get access token")
	var endpointErr *auth.TokenEndpointError
	assert.ErrorAs(t, err, &endpointErr)
}

func TestTokenShowCmd_NoToken(t *testing.T) {
	opts, _ := newTestTokenOptions(t, false)

	out, err := executeToken(t, opts, "show")

	require.NoError(t, err)
	assert.Contains(t, out, "No cached token")
}

func TestTokenShowCmd_Stale(t *testing.T) {
	opts, store := newTestTokenOptions(t, false)
	seedToken(t, store, auth.Credential{
		AccessToken: "abcdefghijklmnop",
		TokenType:   "Bearer",
		ExpiresIn:   3600,
		ExpiresAt:   tokenTestTime.Add(30 * time.Second), // inside the 60s margin
		Scope:       []string{"a", "b"},
	})

	out, err := executeToken(t, opts, "show")

	require.NoError(t, err)
	assert.Contains(t, out, "stale")
	assert.Contains(t, out, "abcdef******")
	assert.NotContains(t, out, "abcdefghijklmnop")
	assert.Contains(t, out, "a b")
	assert.Contains(t, out, "30")
}

func TestTokenShowCmd_DoesNotFetch(t *testing.T) {
	opts, store := newTestTokenOptions(t, true)
	seedToken(t, store, auth.Credential{
		AccessToken: "expired-token",
		TokenType:   "Bearer",
		ExpiresIn:   60,
		ExpiresAt:   tokenTestTime.Add(-time.Hour),
	})

	out, err := executeToken(t, opts, "show")
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "stale", result["status"])
	assert.Equal(t, float64(0), result["expires_in"])

	entry, ok, err := store.Get(context.Background(), auth.DefaultCacheKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "expired-token", entry.Value.AccessToken, "show must not renew")
}

func TestTokenClearCmd(t *testing.T) {
	opts, store := newTestTokenOptions(t, false)
	seedToken(t, store, auth.Credential{AccessToken: "x", TokenType: "Bearer", ExpiresIn: 60, ExpiresAt: tokenTestTime.Add(time.Hour)})

	out, err := executeToken(t, opts, "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cached token cleared")

	_, ok, err := store.Get(context.Background(), auth.DefaultCacheKey)
	require.NoError(t, err)
	assert.False(t, ok)

	// Clearing again is fine
	_, err = executeToken(t, opts, "clear")
	assert.NoError(t, err)
}

func TestTokenRefreshCmd(t *testing.T) {
	opts, store := newTestTokenOptions(t, false)
	seedToken(t, store, auth.Credential{AccessToken: "old-token", TokenType: "Bearer", ExpiresIn: 3600, ExpiresAt: tokenTestTime.Add(time.Hour)})

	out, err := executeToken(t, opts, "refresh")

	require.NoError(t, err)
	assert.Equal(t, "access-1\n", out)

	entry, ok, err := store.Get(context.Background(), auth.DefaultCacheKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "access-1", entry.Value.AccessToken)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "", maskToken(""))
	assert.Equal(t, "****", maskToken("abcd"))
	assert.Equal(t, "abcdef******", maskToken("abcdefg"))
	assert.False(t, strings.Contains(maskToken("BQDxyz-very-long-token"), "very"))
}
