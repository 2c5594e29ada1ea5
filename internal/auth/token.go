package auth

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/jonandersen/tokenctl/internal/cache"
)

// Credential is an access token issued by the authorization server.
// Values are immutable once returned; callers must not modify Scope.
type Credential struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	Scope       []string  `json:"scope,omitempty"`
}

// ExpiresWithin reports whether the credential expires before now+d.
func (c *Credential) ExpiresWithin(now time.Time, d time.Duration) bool {
	return !now.Add(d).Before(c.ExpiresAt)
}

// ToCacheable wraps a credential in its stored form. The entry carries the
// absolute expiry so staleness never depends on re-reading ExpiresIn.
func ToCacheable(cred *Credential) cache.Entry[Credential] {
	return cache.Entry[Credential]{
		Value:     *cred,
		IssuedAt:  cred.ExpiresAt.Add(-time.Duration(cred.ExpiresIn) * time.Second),
		ExpiresAt: cred.ExpiresAt,
	}
}

// ClientCredentials authenticate renewal requests. They are never cached
// and every formatting path redacts them.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

const redacted = "[redacted]"

// String implements fmt.Stringer.
func (c ClientCredentials) String() string {
	return "ClientCredentials{" + redacted + "}"
}

// GoString implements fmt.GoStringer so %#v does not print secrets.
func (c ClientCredentials) GoString() string {
	return c.String()
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (c ClientCredentials) MarshalZerologObject(e *zerolog.Event) {
	e.Bool("client_id_set", c.ClientID != "").
		Bool("client_secret_set", c.ClientSecret != "").
		Bool("refresh_token_set", c.RefreshToken != "")
}

// Complete reports whether every field is set.
func (c ClientCredentials) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}
