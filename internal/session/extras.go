package session

import (
	"context"
	"fmt"

	"github.com/wrale/oauth2-device-client/internal/oauth"
	"golang.org/x/oauth2"
)

// Userinfo fetches the OpenID userinfo document for the held token.
// An expired token is refreshed first.
func (c *Controller) Userinfo(ctx context.Context) ([]byte, error) {
	if c.current == nil {
		return nil, ErrNotLoggedIn
	}

	endpoint, err := c.resolver.Resolve(ctx, oauth.PurposeUserinfo)
	if err != nil {
		return nil, fmt.Errorf("resolving userinfo endpoint: %w", err)
	}
	resp, err := c.client.WithTokenSource(c.TokenSource(ctx)).Get(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching userinfo: %w", err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("fetching userinfo: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// TokenSource adapts the session for golang.org/x/oauth2 clients.
// Expired tokens are refreshed through the controller so the store stays current.
func (c *Controller) TokenSource(ctx context.Context) oauth2.TokenSource {
	var initial *oauth2.Token
	if c.current != nil {
		initial = c.current.OAuth2Token()
	}
	return oauth2.ReuseTokenSource(initial, &refreshingSource{ctx: ctx, c: c})
}

type refreshingSource struct {
	ctx context.Context
	c   *Controller
}

func (s *refreshingSource) Token() (*oauth2.Token, error) {
	if s.c.current == nil {
		return nil, ErrNotLoggedIn
	}
	if s.c.current.IsExpired(s.c.now()) {
		if err := s.c.Refresh(s.ctx); err != nil {
			return nil, err
		}
	}
	return s.c.current.OAuth2Token(), nil
}

// healthChecker is implemented by stores with a remote backend
type healthChecker interface {
	CheckHealth(ctx context.Context) error
}

// CheckHealth verifies the provider endpoints resolve and the store backend is reachable
func (c *Controller) CheckHealth(ctx context.Context) error {
	if _, err := c.resolver.Resolve(ctx, oauth.PurposeToken); err != nil {
		return fmt.Errorf("resolving token endpoint: %w", err)
	}
	if hc, ok := c.store.(healthChecker); ok {
		if err := hc.CheckHealth(ctx); err != nil {
			return err
		}
	}
	return nil
}
