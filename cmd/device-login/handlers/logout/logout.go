// Package logout ends the agent's session on request
package logout

import (
	"context"
	"net/http"

	"github.com/wrale/oauth2-device-client/cmd/device-login/handlers/common"
)

// Logouter revokes and clears the session, reporting whether revocation succeeded
type Logouter interface {
	Logout(ctx context.Context) bool
}

// Handler processes logout requests
type Handler struct {
	session Logouter
}

// Response reports the logout result; local state is always cleared
type Response struct {
	Revoked bool `json:"revoked"`
}

// New creates a new logout handler
func New(session Logouter) *Handler {
	return &Handler{session: session}
}

// ServeHTTP handles logout requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		common.WriteError(w, http.StatusMethodNotAllowed, common.ErrorCodeMethod, "POST method required")
		return
	}
	common.WriteJSON(w, http.StatusOK, Response{Revoked: h.session.Logout(r.Context())})
}
