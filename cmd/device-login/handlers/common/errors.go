// Package common holds response helpers shared by the agent handlers
package common

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Error codes returned by the agent
const (
	ErrorCodeNotLoggedIn = "not_logged_in"
	ErrorCodeServerError = "server_error"
	ErrorCodeMethod      = "method_not_allowed"
)

// ErrorResponse follows the OAuth 2.0 error response shape
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// SetJSONHeaders sets headers for responses that may carry credentials
func SetJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
}

// WriteJSON sends v with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	SetJSONHeaders(w)
	data, err := json.Marshal(v)
	if err != nil {
		WriteJSONError(w, err)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

// WriteError sends a standardized error response
func WriteError(w http.ResponseWriter, status int, code string, description string) {
	WriteJSON(w, status, ErrorResponse{
		Error:            code,
		ErrorDescription: strings.TrimSpace(description),
	})
}

// WriteJSONError handles JSON encoding failures with a standardized response
func WriteJSONError(w http.ResponseWriter, _ error) {
	SetJSONHeaders(w)
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"error":"server_error","error_description":"Failed to encode response"}`))
}
