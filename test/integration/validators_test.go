package integration

import (
	"strings"
	"testing"
	"time"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/token"
)

// validateAuthorization checks a device authorization response against RFC 8628 section 3.2
func validateAuthorization(t *testing.T, auth *deviceflow.AuthorizationResponse) {
	t.Helper()

	var issues []string
	if auth.DeviceCode == "" {
		issues = append(issues, "device_code is required")
	}
	if auth.UserCode == "" {
		issues = append(issues, "user_code is required")
	}
	if auth.VerificationURI == "" {
		issues = append(issues, "verification_uri is required")
	}
	if auth.ExpiresIn <= 0 {
		issues = append(issues, "expires_in must be positive")
	}
	if auth.VerificationURIComplete != "" && !strings.Contains(auth.VerificationURIComplete, auth.UserCode) {
		issues = append(issues, "verification_uri_complete must include the user code")
	}
	if auth.BrowserURI() != auth.VerificationURIComplete && auth.VerificationURIComplete != "" {
		issues = append(issues, "browser should open verification_uri_complete when present")
	}

	if len(issues) > 0 {
		t.Errorf("device authorization response:\n%s", strings.Join(issues, "\n"))
	}
}

// validateToken checks a stored token against RFC 6749 section 5.1
func validateToken(t *testing.T, tok *token.AccessToken, now time.Time) {
	t.Helper()

	if tok == nil {
		t.Fatal("no token")
	}
	var issues []string
	if tok.AccessToken == "" {
		issues = append(issues, "access_token is required")
	}
	if !strings.EqualFold(tok.TokenType, "Bearer") {
		issues = append(issues, "token_type must be Bearer, got "+tok.TokenType)
	}
	if tok.IsExpired(now) {
		issues = append(issues, "fresh token is already expired")
	}
	if !tok.IssuedAt.Equal(now) {
		issues = append(issues, "issued_at must be the local receive time")
	}

	if len(issues) > 0 {
		t.Errorf("token response:\n%s", strings.Join(issues, "\n"))
	}
}
