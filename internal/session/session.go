// Package session restores, obtains, refreshes and revokes the access token for one client
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/oauth"
	"github.com/wrale/oauth2-device-client/internal/token"
	"github.com/wrale/oauth2-device-client/internal/tokenstore"
	"github.com/wrale/oauth2-device-client/internal/validation"
)

// Config wires a controller to its provider and token store
type Config struct {
	BaseURL  string
	ClientID string
	Scopes   []string

	Client   *oauth.Client
	Resolver oauth.Resolver
	Store    tokenstore.Store
}

// Option configures a Controller
type Option func(*Controller)

// WithClock replaces time.Now for expiry checks
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithLogger sets the controller logger
func WithLogger(l log.FieldLogger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithEngineOptions passes options through to the device flow engine
func WithEngineOptions(opts ...deviceflow.Option) Option {
	return func(c *Controller) {
		c.engineOpts = append(c.engineOpts, opts...)
	}
}

// Controller owns the current token for one (provider, client id) pair.
// It is not safe for concurrent use.
type Controller struct {
	baseURL   string
	clientID  string
	scopes    []string
	requested token.ScopeSet

	client   *oauth.Client
	resolver oauth.Resolver
	store    tokenstore.Store
	engine   *deviceflow.Engine

	now        func() time.Time
	logger     log.FieldLogger
	engineOpts []deviceflow.Option

	current *token.AccessToken
}

// LoginResult carries either the new auth headers or the user-caused outcome
type LoginResult struct {
	Headers token.AuthHeaders
	Outcome *deviceflow.TokenResponseError
}

// Prompt shows the user where to authorize the device
type Prompt func(auth *deviceflow.AuthorizationResponse) error

// New creates a controller with no token loaded
func New(cfg Config, opts ...Option) (*Controller, error) {
	if err := validation.ValidateClientID(cfg.ClientID); err != nil {
		return nil, err
	}
	if cfg.Client == nil || cfg.Resolver == nil || cfg.Store == nil {
		return nil, errors.New("session requires a client, resolver and store")
	}

	c := &Controller{
		baseURL:   oauth.NormalizeBaseURL(cfg.BaseURL),
		clientID:  cfg.ClientID,
		scopes:    cfg.Scopes,
		requested: token.NewScopeSet(cfg.Scopes...),
		client:    cfg.Client,
		resolver:  cfg.Resolver,
		store:     cfg.Store,
		now:       time.Now,
		logger:    log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithField("client_id", c.clientID)

	engineOpts := append([]deviceflow.Option{
		deviceflow.WithClock(c.now),
		deviceflow.WithLogger(c.logger),
	}, c.engineOpts...)
	c.engine = deviceflow.NewEngine(c.client, c.resolver, c.store, c.clientID, c.scopes, engineOpts...)
	return c, nil
}

// RestoreSession loads the cached token and returns its headers when it is still usable.
// An expired token is refreshed; a token that cannot be refreshed, or that lacks
// requested scopes, is invalidated. Nil headers mean the caller must log in.
func (c *Controller) RestoreSession(ctx context.Context) (token.AuthHeaders, error) {
	tok, err := c.store.Load(ctx)
	if err != nil {
		var corrupt *tokenstore.CorruptTokenError
		if !errors.As(err, &corrupt) {
			return nil, fmt.Errorf("loading cached token: %w", err)
		}
		c.logger.WithError(err).Warn("discarding unreadable cached token")
		if err := c.store.Delete(ctx); err != nil {
			return nil, fmt.Errorf("removing unreadable token: %w", err)
		}
		tok = nil
	}

	c.current = tok
	if c.current == nil {
		return nil, nil
	}

	if c.current.IsExpired(c.now()) {
		if err := c.Refresh(ctx); err != nil {
			c.invalidateAndClear(ctx, err.Error())
			return nil, nil
		}
	}

	// Strict subset: providers often grant more scopes than requested
	if c.current.Scopes().StrictSubsetOf(c.requested) {
		c.invalidateAndClear(ctx, "cached token lacks requested scopes")
		return nil, nil
	}

	return c.current.Headers(), nil
}

// invalidateAndClear drops a cached token that can no longer serve this client
func (c *Controller) invalidateAndClear(ctx context.Context, reason string) {
	c.logger.WithField("reason", reason).Info("invalidating cached session")
	c.Logout(ctx)
}

// Login runs the device flow unless a valid token is held or cached.
// prompt is called once the user code is available.
func (c *Controller) Login(ctx context.Context, prompt Prompt) (*LoginResult, error) {
	if c.current != nil && !c.current.IsExpired(c.now()) {
		return &LoginResult{Headers: c.current.Headers()}, nil
	}
	headers, err := c.RestoreSession(ctx)
	if err != nil {
		return nil, err
	}
	if headers != nil {
		return &LoginResult{Headers: headers}, nil
	}

	auth, err := c.engine.Initiate(ctx)
	if err != nil {
		return nil, err
	}
	if prompt != nil {
		if err := prompt(auth); err != nil {
			return nil, fmt.Errorf("prompting user: %w", err)
		}
	}

	result, err := c.engine.Poll(ctx, auth)
	if err != nil {
		return nil, err
	}
	if !result.Completed() {
		c.logger.WithField("outcome", result.Outcome.String()).Info("device authorization ended")
		return &LoginResult{Outcome: result.Outcome}, nil
	}

	c.current = result.Token
	c.logger.WithField("scope", c.current.Scope).Info("logged in")
	return &LoginResult{Headers: c.current.Headers()}, nil
}

// Refresh exchanges the refresh token for a new access token and persists it
func (c *Controller) Refresh(ctx context.Context) error {
	if c.current == nil {
		return &RefreshError{Err: ErrNotLoggedIn}
	}
	if c.current.RefreshToken == "" {
		return &RefreshError{Err: ErrNoRefreshToken}
	}

	endpoint, err := c.resolver.Resolve(ctx, oauth.PurposeToken)
	if err != nil {
		return &RefreshError{Err: err}
	}

	resp, err := c.client.PostForm(ctx, endpoint, url.Values{
		"client_id":     {c.clientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {c.current.RefreshToken},
	})
	if err != nil {
		return &RefreshError{Err: err}
	}
	if !resp.OK() {
		return &RefreshError{
			StatusCode: resp.StatusCode,
			Code:       gjson.GetBytes(resp.Body, "error").String(),
		}
	}

	tok, err := token.Decode(resp.Body, c.now())
	if err != nil {
		return &RefreshError{StatusCode: resp.StatusCode, Err: err}
	}
	// Providers that do not rotate refresh tokens omit them, per RFC 6749 section 6
	if tok.RefreshToken == "" {
		tok.RefreshToken = c.current.RefreshToken
	}
	if err := c.store.Save(ctx, tok); err != nil {
		return &RefreshError{Err: fmt.Errorf("saving token: %w", err)}
	}

	c.current = tok
	c.logger.Debug("token refreshed")
	return nil
}

// Logout revokes the held token and clears the cache. Local state is cleared
// even when revocation fails; the result reports whether everything succeeded.
func (c *Controller) Logout(ctx context.Context) bool {
	ok := true
	if c.current != nil {
		if err := c.revoke(ctx, c.current.AccessToken); err != nil {
			c.logger.WithError(err).Warn("token revocation failed")
			ok = false
		}
	}

	if err := c.store.Delete(ctx); err != nil {
		c.logger.WithError(err).Error("removing cached token")
		ok = false
	}
	c.current = nil
	return ok
}

func (c *Controller) revoke(ctx context.Context, accessToken string) error {
	endpoint, err := c.resolver.Resolve(ctx, oauth.PurposeRevocation)
	if err != nil {
		return fmt.Errorf("resolving revocation endpoint: %w", err)
	}
	resp, err := c.client.PostForm(ctx, endpoint, url.Values{
		"token":     {accessToken},
		"client_id": {c.clientID},
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return &RevocationError{StatusCode: resp.StatusCode}
	}
	return nil
}

// AuthHeaders returns the headers for the held token, or nil when logged out
func (c *Controller) AuthHeaders() token.AuthHeaders {
	if c.current == nil {
		return nil
	}
	return c.current.Headers()
}

// Token returns the held token, or nil when logged out
func (c *Controller) Token() *token.AccessToken {
	return c.current
}

// BaseURL returns the provider base URL the controller was configured with
func (c *Controller) BaseURL() string {
	return c.baseURL
}

// ClientID returns the OAuth client identifier
func (c *Controller) ClientID() string {
	return c.clientID
}

// RequestedScopes returns the scopes this client asks for
func (c *Controller) RequestedScopes() token.ScopeSet {
	return c.requested
}

// Now returns the controller's current time
func (c *Controller) Now() time.Time {
	return c.now()
}
