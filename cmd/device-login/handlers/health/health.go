// Package health reports whether the agent can reach its provider and token store
package health

import (
	"context"
	"net/http"

	"github.com/wrale/oauth2-device-client/cmd/device-login/handlers/common"
)

// Checker is implemented by the session the agent serves
type Checker interface {
	CheckHealth(ctx context.Context) error
}

// Handler processes health check requests
type Handler struct {
	checker Checker
	version string
}

// Response represents the health check response
type Response struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// New creates a new health check handler
func New(checker Checker) *Handler {
	return &Handler{
		checker: checker,
		version: "unknown",
	}
}

// WithVersion sets the version for health check responses
func (h *Handler) WithVersion(version string) *Handler {
	h.version = version
	return h
}

// ServeHTTP handles health check requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	response := Response{
		Status:  "healthy",
		Version: h.version,
		Details: make(map[string]any),
	}

	status := http.StatusOK
	if err := h.checker.CheckHealth(r.Context()); err != nil {
		response.Status = "unhealthy"
		response.Details["session"] = map[string]any{
			"status":  "unhealthy",
			"message": err.Error(),
		}
		status = http.StatusServiceUnavailable
	} else {
		response.Details["session"] = map[string]any{
			"status": "healthy",
		}
	}

	common.WriteJSON(w, status, response)
}
