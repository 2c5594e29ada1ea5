package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// maxBody bounds how much of a token endpoint response is read.
const maxBody = 1 << 20

// HTTPClient is an interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchFunc mints a new credential.
type FetchFunc func(ctx context.Context) (*Credential, error)

// tokenResponse is the success body of the token endpoint. Required fields
// are pointers so that absence can be told apart from zero values.
type tokenResponse struct {
	AccessToken *string `json:"access_token"`
	TokenType   *string `json:"token_type"`
	ExpiresIn   *int64  `json:"expires_in"`
	Scope       string  `json:"scope,omitempty"`
}

// Fetcher performs refresh_token grant exchanges against one token endpoint.
type Fetcher struct {
	tokenURL   string
	httpClient HTTPClient
	now        func() time.Time
	logger     zerolog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the client used for token requests.
func WithHTTPClient(client HTTPClient) FetcherOption {
	return func(f *Fetcher) {
		f.httpClient = client
	}
}

// WithFetcherClock sets the time source used to compute expiry instants.
func WithFetcherClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) {
		f.now = now
	}
}

// WithFetcherLogger sets the logger.
func WithFetcherLogger(logger zerolog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a fetcher for tokenURL.
func NewFetcher(tokenURL string, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		tokenURL:   tokenURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchFunc binds creds to the fetcher.
func (f *Fetcher) FetchFunc(creds ClientCredentials) FetchFunc {
	return func(ctx context.Context) (*Credential, error) {
		return f.Fetch(ctx, creds)
	}
}

// Fetch exchanges the refresh token for a new access token.
func (f *Fetcher) Fetch(ctx context.Context, creds ClientCredentials) (*Credential, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {creds.ClientID},
		"refresh_token": {creds.RefreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+basicAuth(creds.ClientID, creds.ClientSecret))

	start := f.now()
	f.logger.Debug().Str("token_url", f.tokenURL).Msg("Requesting access token")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.logger.Error().Err(err).Dur("duration", f.now().Sub(start)).Msg("Token request failed")
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		f.logger.Error().Err(err).Int("status", resp.StatusCode).Msg("Reading token response failed")
		return nil, fmt.Errorf("%w: reading response: %w", ErrFetchFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn().
			Int("status", resp.StatusCode).
			Dur("duration", f.now().Sub(start)).
			Msg("Token endpoint rejected request")
		return nil, newTokenEndpointError(resp.StatusCode, body)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	completed := f.now()

	cred, err := tr.credential(completed)
	if err != nil {
		return nil, err
	}

	f.logger.Debug().
		Int64("expires_in", cred.ExpiresIn).
		Dur("duration", completed.Sub(start)).
		Msg("Access token issued")
	return cred, nil
}

func (tr *tokenResponse) credential(completed time.Time) (*Credential, error) {
	switch {
	case tr.AccessToken == nil || *tr.AccessToken == "":
		return nil, fmt.Errorf("%w: missing access_token", ErrMalformedResponse)
	case tr.TokenType == nil || *tr.TokenType == "":
		return nil, fmt.Errorf("%w: missing token_type", ErrMalformedResponse)
	case tr.ExpiresIn == nil:
		return nil, fmt.Errorf("%w: missing expires_in", ErrMalformedResponse)
	case *tr.ExpiresIn <= 0:
		return nil, fmt.Errorf("%w: expires_in must be positive, got %d", ErrMalformedResponse, *tr.ExpiresIn)
	}

	return &Credential{
		AccessToken: *tr.AccessToken,
		TokenType:   *tr.TokenType,
		ExpiresIn:   *tr.ExpiresIn,
		ExpiresAt:   completed.Add(time.Duration(*tr.ExpiresIn) * time.Second),
		Scope:       strings.Fields(tr.Scope),
	}, nil
}

// basicAuth encodes id:secret for the Authorization header.
func basicAuth(clientID, clientSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
}
