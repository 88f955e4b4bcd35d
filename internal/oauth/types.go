// Package oauth resolves provider endpoints and talks HTTP to the authorization server
package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by resolvers
var (
	ErrEndpointUnavailable = errors.New("endpoint not available from provider")
	ErrUnknownPurpose      = errors.New("unknown endpoint purpose")
)

// Purpose names one of the provider endpoints the client needs
type Purpose string

const (
	PurposeDeviceAuthorization Purpose = "device_authorization"
	PurposeToken               Purpose = "token"
	PurposeUserinfo            Purpose = "userinfo"
	PurposeRevocation          Purpose = "revocation"
)

// Resolver produces absolute endpoint URLs for a provider
type Resolver interface {
	// Resolve returns the endpoint URL for the given purpose
	Resolve(ctx context.Context, purpose Purpose) (string, error)
}

// OpenIDConfig holds the endpoint subset of an OpenID Provider Metadata document
type OpenIDConfig struct {
	DeviceAuthorizationEndpoint string
	TokenEndpoint               string
	UserinfoEndpoint            string
	RevocationEndpoint          string
}

// Endpoint returns the URL for a purpose, or ErrEndpointUnavailable when unset
func (c *OpenIDConfig) Endpoint(purpose Purpose) (string, error) {
	var endpoint string
	switch purpose {
	case PurposeDeviceAuthorization:
		endpoint = c.DeviceAuthorizationEndpoint
	case PurposeToken:
		endpoint = c.TokenEndpoint
	case PurposeUserinfo:
		endpoint = c.UserinfoEndpoint
	case PurposeRevocation:
		endpoint = c.RevocationEndpoint
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPurpose, purpose)
	}
	if endpoint == "" {
		return "", fmt.Errorf("%w: %s", ErrEndpointUnavailable, purpose)
	}
	return endpoint, nil
}

// DiscoveryError reports a failed or unusable discovery document fetch
type DiscoveryError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DiscoveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("discovery at %s failed with status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("discovery at %s failed: %v", e.URL, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// NormalizeBaseURL strips trailing slashes from an OAuth base URL
func NormalizeBaseURL(baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/")
}
