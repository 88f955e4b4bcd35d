package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/tidwall/gjson"
)

const discoveryPath = "/.well-known/openid-configuration"

// DiscoveryResolver fetches the provider's discovery document once and keeps it
// for the lifetime of the resolver. Failed fetches are not kept.
type DiscoveryResolver struct {
	discoveryURL string
	client       *Client

	mu     sync.Mutex
	config *OpenIDConfig
}

// NewDiscoveryResolver creates a resolver backed by {baseURL}/.well-known/openid-configuration
func NewDiscoveryResolver(baseURL string, client *Client) *DiscoveryResolver {
	return &DiscoveryResolver{
		discoveryURL: NormalizeBaseURL(baseURL) + discoveryPath,
		client:       client,
	}
}

// Resolve implements Resolver
func (r *DiscoveryResolver) Resolve(ctx context.Context, purpose Purpose) (string, error) {
	cfg, err := r.Config(ctx)
	if err != nil {
		return "", err
	}
	return cfg.Endpoint(purpose)
}

// Config returns the memoized discovery document, fetching it on first use
func (r *DiscoveryResolver) Config(ctx context.Context) (*OpenIDConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config != nil {
		return r.config, nil
	}

	cfg, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}
	r.config = cfg
	return cfg, nil
}

func (r *DiscoveryResolver) fetch(ctx context.Context) (*OpenIDConfig, error) {
	resp, err := r.client.Get(ctx, r.discoveryURL, nil)
	if err != nil {
		return nil, &DiscoveryError{URL: r.discoveryURL, Err: err}
	}
	if !resp.OK() {
		return nil, &DiscoveryError{URL: r.discoveryURL, StatusCode: resp.StatusCode}
	}

	cfg, err := DecodeOpenIDConfig(resp.Body)
	if err != nil {
		return nil, &DiscoveryError{URL: r.discoveryURL, Err: err}
	}
	return cfg, nil
}

// DecodeOpenIDConfig reads the endpoint fields of a discovery document.
// The device authorization and token endpoints are required; the rest may be absent.
func DecodeOpenIDConfig(data []byte) (*OpenIDConfig, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("discovery document is not valid JSON")
	}
	doc := gjson.ParseBytes(data)

	cfg := &OpenIDConfig{
		DeviceAuthorizationEndpoint: doc.Get("device_authorization_endpoint").String(),
		TokenEndpoint:               doc.Get("token_endpoint").String(),
		UserinfoEndpoint:            doc.Get("userinfo_endpoint").String(),
		RevocationEndpoint:          doc.Get("revocation_endpoint").String(),
	}

	required := map[string]string{
		"device_authorization_endpoint": cfg.DeviceAuthorizationEndpoint,
		"token_endpoint":                cfg.TokenEndpoint,
	}
	for field, value := range required {
		if value == "" {
			return nil, fmt.Errorf("discovery document missing %s", field)
		}
	}

	for _, endpoint := range []string{
		cfg.DeviceAuthorizationEndpoint,
		cfg.TokenEndpoint,
		cfg.UserinfoEndpoint,
		cfg.RevocationEndpoint,
	} {
		if endpoint == "" {
			continue
		}
		if u, err := url.Parse(endpoint); err != nil || !u.IsAbs() {
			return nil, fmt.Errorf("discovery endpoint %q is not an absolute URL", endpoint)
		}
	}

	return cfg, nil
}
