// Package token serves the current authorization headers to local callers
package token

import (
	"context"
	"net/http"
	"time"

	"github.com/wrale/oauth2-device-client/cmd/device-login/handlers/common"
	authtoken "github.com/wrale/oauth2-device-client/internal/token"
)

// Source yields the headers of a usable session, restoring it if needed.
// Nil headers mean nobody is logged in.
type Source interface {
	Headers(ctx context.Context) (authtoken.AuthHeaders, *authtoken.AccessToken, error)
}

// Handler returns the session's authorization headers
type Handler struct {
	source Source
}

// Response carries the headers callers attach to resource requests
type Response struct {
	Headers   map[string]string `json:"headers"`
	TokenType string            `json:"token_type"`
	Scope     string            `json:"scope,omitempty"`
	ExpiresAt string            `json:"expires_at,omitempty"`
}

// New creates a new token handler
func New(source Source) *Handler {
	return &Handler{source: source}
}

// ServeHTTP handles token requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	headers, tok, err := h.source.Headers(r.Context())
	if err != nil {
		common.WriteError(w, http.StatusBadGateway, common.ErrorCodeServerError, err.Error())
		return
	}
	if headers == nil || tok == nil {
		common.WriteError(w, http.StatusUnauthorized, common.ErrorCodeNotLoggedIn,
			"No usable session; run the login command")
		return
	}

	common.WriteJSON(w, http.StatusOK, Response{
		Headers:   headers,
		TokenType: tok.TokenType,
		Scope:     tok.Scope,
		ExpiresAt: tok.Expiry().UTC().Format(time.RFC3339),
	})
}
