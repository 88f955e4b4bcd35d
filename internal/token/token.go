// Package token models OAuth2 access tokens issued through the device flow
package token

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/oauth2"
)

// DefaultTokenType is assumed when a token response omits token_type
const DefaultTokenType = "Bearer"

var (
	// ErrMalformed indicates the token document is not a JSON object
	ErrMalformed = errors.New("malformed token document")

	// ErrMissingAccessToken indicates the token document has no access_token
	ErrMissingAccessToken = errors.New("missing access_token")

	// ErrNilToken is returned when encoding or saving a nil token
	ErrNilToken = errors.New("token is nil")
)

// AccessToken is an issued credential per RFC 6749 section 5.1.
// IssuedAt is recorded locally so expiry can be checked without a round trip.
type AccessToken struct {
	TokenType    string
	AccessToken  string
	RefreshToken string
	Scope        string
	ExpiresIn    int
	IssuedAt     time.Time
}

// Expiry returns the absolute time the token stops being valid
func (t *AccessToken) Expiry() time.Time {
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// IsExpired reports whether now is past IssuedAt + ExpiresIn
func (t *AccessToken) IsExpired(now time.Time) bool {
	return now.After(t.Expiry())
}

// Scopes returns the granted scope set
func (t *AccessToken) Scopes() ScopeSet {
	return ParseScopes(t.Scope)
}

// Headers returns the Authorization header for this token
func (t *AccessToken) Headers() AuthHeaders {
	return AuthHeaders{"Authorization": t.TokenType + " " + t.AccessToken}
}

// OAuth2Token converts the token for use with golang.org/x/oauth2 clients
func (t *AccessToken) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry(),
	}
	return tok.WithExtra(map[string]any{"scope": t.Scope})
}

// AuthHeaders are the headers a caller attaches to resource requests
type AuthHeaders map[string]string

// Apply sets the headers on an outbound request
func (h AuthHeaders) Apply(req *http.Request) {
	for k, v := range h {
		req.Header.Set(k, v)
	}
}

// Decode builds an AccessToken from a token endpoint response or a stored record.
// Missing optional fields take defaults; issued_at falls back to now.
func Decode(data []byte, now time.Time) (*AccessToken, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrMalformed
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, ErrMalformed
	}

	access := doc.Get("access_token")
	if !access.Exists() || access.String() == "" {
		return nil, ErrMissingAccessToken
	}

	tok := &AccessToken{
		TokenType:    DefaultTokenType,
		AccessToken:  access.String(),
		RefreshToken: doc.Get("refresh_token").String(),
		Scope:        doc.Get("scope").String(),
		ExpiresIn:    int(doc.Get("expires_in").Int()),
		IssuedAt:     now,
	}
	if tt := doc.Get("token_type").String(); tt != "" {
		tok.TokenType = tt
	}

	if issued := doc.Get("issued_at"); issued.Exists() && issued.String() != "" {
		ts, err := time.Parse(time.RFC3339Nano, issued.String())
		if err != nil {
			return nil, fmt.Errorf("parsing issued_at: %w", err)
		}
		tok.IssuedAt = ts
	}

	return tok, nil
}

// Encode serializes the token with issued_at as an RFC 3339 timestamp
func Encode(t *AccessToken) ([]byte, error) {
	if t == nil {
		return nil, ErrNilToken
	}

	fields := []struct {
		path  string
		value any
	}{
		{"token_type", t.TokenType},
		{"access_token", t.AccessToken},
		{"refresh_token", t.RefreshToken},
		{"scope", t.Scope},
		{"expires_in", t.ExpiresIn},
		{"issued_at", t.IssuedAt.UTC().Format(time.RFC3339Nano)},
	}

	data := []byte("{}")
	for _, f := range fields {
		var err error
		if data, err = sjson.SetBytes(data, f.path, f.value); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", f.path, err)
		}
	}
	return data, nil
}
