// Package validation checks client-side inputs for the OAuth2 device flow
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents an invalid client input
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// ValidateBaseURL checks that an OAuth base URL is absolute and uses http or https
func ValidateBaseURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return &ValidationError{Field: "oauth url", Value: raw, Message: "must not be empty"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: "oauth url", Value: raw, Message: err.Error()}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{
			Field:   "oauth url",
			Value:   raw,
			Message: fmt.Sprintf("scheme must be http or https, got %q", u.Scheme),
		}
	}

	if u.Hostname() == "" {
		return &ValidationError{Field: "oauth url", Value: raw, Message: "must include a host"}
	}

	return nil
}

// ValidateClientID checks that a client identifier is usable as a storage path segment
func ValidateClientID(clientID string) error {
	if clientID == "" {
		return &ValidationError{Field: "client id", Value: clientID, Message: "must not be empty"}
	}
	if strings.ContainsAny(clientID, `/\`) || clientID == "." || clientID == ".." {
		return &ValidationError{Field: "client id", Value: clientID, Message: "must not contain path separators"}
	}
	return nil
}

// ValidateScope checks a single scope token against RFC 6749 section 3.3:
// scope-token = 1*( %x21 / %x23-5B / %x5D-7E )
func ValidateScope(scope string) error {
	if scope == "" {
		return &ValidationError{Field: "scope", Value: scope, Message: "must not be empty"}
	}
	for _, c := range scope {
		if c == 0x21 || (c >= 0x23 && c <= 0x5B) || (c >= 0x5D && c <= 0x7E) {
			continue
		}
		return &ValidationError{
			Field:   "scope",
			Value:   scope,
			Message: fmt.Sprintf("character %q is not allowed", c),
		}
	}
	return nil
}

// HostFromURL returns the lowercase hostname of an OAuth base URL
func HostFromURL(raw string) (string, error) {
	if err := ValidateBaseURL(raw); err != nil {
		return "", err
	}
	u, _ := url.Parse(raw)
	return strings.ToLower(u.Hostname()), nil
}
