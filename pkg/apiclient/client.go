// Package apiclient provides an HTTP client for bearer-token protected APIs.
//
// Tokens come from a TokenProvider, so a caching coordinator can be plugged
// in and the client stays unaware of how credentials are renewed.
package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenProvider is an interface for obtaining authentication tokens.
// Implementations should handle token caching and refresh logic internally.
type TokenProvider interface {
	// Token returns a valid access token.
	Token(ctx context.Context) (string, error)
	// Invalidate discards the current token so the next Token call
	// obtains a new one.
	Invalidate(ctx context.Context) error
}

// Client handles HTTP requests to the API.
type Client struct {
	BaseURL       string
	TokenProvider TokenProvider
	HTTPClient    *http.Client

	// staticToken is used when a fixed token is provided (no refresh capability)
	staticToken string
}

// NewClient creates a new API client with the given base URL and token provider.
func NewClient(baseURL string, tokenProvider TokenProvider) *Client {
	return &Client{
		BaseURL:       strings.TrimSuffix(baseURL, "/"),
		TokenProvider: tokenProvider,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithToken creates a new API client with a static token.
// The client will not retry on 401 responses.
func NewClientWithToken(baseURL, token string) *Client {
	return &Client{
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		staticToken: token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Get performs a GET request to the specified path.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// GetWithParams performs a GET request with query parameters.
func (c *Client) GetWithParams(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request to the specified path with the given body.
func (c *Client) Post(ctx context.Context, path string, body io.Reader) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Delete performs a DELETE request to the specified path.
func (c *Client) Delete(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil)
}

// Do performs a request with the Authorization header set. On 401, when a
// TokenProvider is configured, the token is invalidated and the request is
// retried once with a fresh one.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	// Buffer body if present so we can retry
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
	}

	token, err := c.getToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	resp, err := c.doOnce(ctx, method, path, bodyBytes, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || c.TokenProvider == nil {
		return resp, nil
	}
	_ = resp.Body.Close()

	if err := c.TokenProvider.Invalidate(ctx); err != nil {
		return nil, fmt.Errorf("failed to invalidate token: %w", err)
	}
	newToken, err := c.TokenProvider.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return c.doOnce(ctx, method, path, bodyBytes, newToken)
}

func (c *Client) getToken(ctx context.Context) (string, error) {
	if c.TokenProvider != nil {
		return c.TokenProvider.Token(ctx)
	}
	return c.staticToken, nil
}

// doOnce performs a single HTTP request.
func (c *Client) doOnce(ctx context.Context, method, path string, bodyBytes []byte, token string) (*http.Response, error) {
	var body io.Reader
	if bodyBytes != nil {
		body = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if bodyBytes != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}
