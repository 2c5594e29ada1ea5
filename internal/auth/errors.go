package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jonandersen/tokenctl/internal/cache"
)

var (
	// ErrFetchFailed is returned when the token endpoint could not be
	// reached: connection errors, timeouts and cancellation.
	ErrFetchFailed = errors.New("token fetch failed")

	// ErrMalformedResponse is returned when a 200 response lacks a required
	// field or carries one of the wrong type.
	ErrMalformedResponse = errors.New("malformed token response")

	// ErrCacheUnavailable is returned when the cache backend fails.
	ErrCacheUnavailable = cache.ErrUnavailable
)

// TokenEndpointError is returned when the token endpoint answers with a
// status other than 200. Body holds the raw response text.
type TokenEndpointError struct {
	StatusCode int
	Body       string

	// Code and Description are filled when Body is an OAuth2 error object.
	Code        string
	Description string
}

// Error implements the error interface.
func (e *TokenEndpointError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("token endpoint error (%d): %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("token endpoint error (%d): %s", e.StatusCode, e.Body)
}

// IsUnauthorized returns true if the endpoint rejected the client
// credentials with 401.
func (e *TokenEndpointError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsInvalidGrant returns true if the refresh token was rejected.
func (e *TokenEndpointError) IsInvalidGrant() bool {
	if e.Code == "invalid_grant" {
		return true
	}
	return strings.Contains(e.Body, "invalid_grant")
}

// oauthError is the RFC 6749 section 5.2 error body.
type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func newTokenEndpointError(status int, body []byte) *TokenEndpointError {
	e := &TokenEndpointError{
		StatusCode: status,
		Body:       string(body),
	}

	var parsed oauthError
	if err := json.Unmarshal(body, &parsed); err == nil {
		e.Code = parsed.Error
		e.Description = parsed.ErrorDescription
	}
	return e
}
