package oauth

import "context"

// Static endpoint paths relative to the OAuth base URL
const (
	deviceAuthorizationPath = "/device-authorization/"
	tokenPath               = "/token/"
	revocationPath          = "/revoke_token/"
)

// StaticResolver derives endpoints from fixed paths under the base URL
type StaticResolver struct {
	config OpenIDConfig
}

// StaticOption configures a StaticResolver
type StaticOption func(*StaticResolver)

// WithUserinfoURL sets the userinfo endpoint, which the static layout does not define
func WithUserinfoURL(u string) StaticOption {
	return func(r *StaticResolver) {
		r.config.UserinfoEndpoint = u
	}
}

// NewStaticResolver creates a resolver without discovery
func NewStaticResolver(baseURL string, opts ...StaticOption) *StaticResolver {
	base := NormalizeBaseURL(baseURL)
	r := &StaticResolver{
		config: OpenIDConfig{
			DeviceAuthorizationEndpoint: base + deviceAuthorizationPath,
			TokenEndpoint:               base + tokenPath,
			RevocationEndpoint:          base + revocationPath,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve implements Resolver
func (r *StaticResolver) Resolve(_ context.Context, purpose Purpose) (string, error) {
	return r.config.Endpoint(purpose)
}
