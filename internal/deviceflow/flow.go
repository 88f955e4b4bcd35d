// Package deviceflow implements the client side of the OAuth 2.0 Device Authorization Grant (RFC 8628)
package deviceflow

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/wrale/oauth2-device-client/internal/oauth"
	"github.com/wrale/oauth2-device-client/internal/token"
	"github.com/wrale/oauth2-device-client/internal/tokenstore"
)

const (
	// GrantTypeDeviceCode is the grant type for device access token requests
	GrantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"

	// DefaultMaxWait bounds polling when no other limit is configured
	DefaultMaxWait = 300 * time.Second

	// SlowDownIncrement is added to the interval for each slow_down received
	SlowDownIncrement = 5 * time.Second
)

// State is the engine's position in the device flow
type State int

const (
	StateIdle State = iota
	StateInitiated
	StatePolling
	StateCompleted
	StateExpired
	StateDenied
	StateTimedOut
	StateFatal
)

var stateNames = map[State]string{
	StateIdle:      "idle",
	StateInitiated: "initiated",
	StatePolling:   "polling",
	StateCompleted: "completed",
	StateExpired:   "expired",
	StateDenied:    "denied",
	StateTimedOut:  "timed_out",
	StateFatal:     "fatal",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Engine drives one device authorization at a time. It is not safe for concurrent use.
type Engine struct {
	client   *oauth.Client
	resolver oauth.Resolver
	store    tokenstore.Store
	clientID string
	scope    string

	maxWait time.Duration
	now     func() time.Time
	sleep   Sleeper
	logger  log.FieldLogger

	state State
}

// NewEngine creates a device flow engine for a client and its requested scopes
func NewEngine(client *oauth.Client, resolver oauth.Resolver, store tokenstore.Store, clientID string, scopes []string, opts ...Option) *Engine {
	e := &Engine{
		client:   client,
		resolver: resolver,
		store:    store,
		clientID: clientID,
		scope:    strings.Join(scopes, " "),
		maxWait:  DefaultMaxWait,
		now:      time.Now,
		sleep:    sleepContext,
		logger:   log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxWait <= 0 {
		e.maxWait = DefaultMaxWait
	}
	return e
}

// State returns the current flow state
func (e *Engine) State() State {
	return e.state
}

// Initiate requests a device code and user code from the provider
func (e *Engine) Initiate(ctx context.Context) (*AuthorizationResponse, error) {
	e.state = StateIdle

	endpoint, err := e.resolver.Resolve(ctx, oauth.PurposeDeviceAuthorization)
	if err != nil {
		return nil, fmt.Errorf("resolving device authorization endpoint: %w", err)
	}

	resp, err := e.client.PostForm(ctx, endpoint, url.Values{
		"client_id": {e.clientID},
		"scope":     {e.scope},
	})
	if err != nil {
		return nil, fmt.Errorf("requesting device code: %w", err)
	}
	if !resp.OK() {
		return nil, &InitiationError{
			StatusCode: resp.StatusCode,
			Code:       gjson.GetBytes(resp.Body, "error").String(),
			Body:       resp.Body,
		}
	}

	auth, err := DecodeAuthorizationResponse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding device authorization response: %w", err)
	}

	e.state = StateInitiated
	e.logger.WithFields(log.Fields{
		"verification_uri": auth.VerificationURI,
		"expires_in":       auth.ExpiresIn,
		"interval":         auth.Interval,
	}).Debug("device authorization started")
	return auth, nil
}

type attemptKind int

const (
	attemptPending attemptKind = iota
	attemptTerminal
	attemptFatal
)

// attemptResult is the outcome of one token request
type attemptResult struct {
	kind     attemptKind
	slowDown bool
	result   *Result
	err      error
}

// Poll requests the token until the user completes, abandons or times out the authorization.
// A returned Result carries either the persisted token or a TokenResponseError outcome.
func (e *Engine) Poll(ctx context.Context, auth *AuthorizationResponse) (*Result, error) {
	tokenURL, err := e.resolver.Resolve(ctx, oauth.PurposeToken)
	if err != nil {
		e.state = StateFatal
		return nil, fmt.Errorf("resolving token endpoint: %w", err)
	}

	e.state = StatePolling
	start := e.now()
	interval := time.Duration(auth.Interval) * time.Second
	slowDownFactor := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if elapsed := e.now().Sub(start); elapsed >= e.maxWait {
			e.state = StateTimedOut
			return nil, &TimeoutError{MaxWait: e.maxWait, Elapsed: elapsed}
		}

		out := e.attempt(ctx, tokenURL, auth)
		switch out.kind {
		case attemptTerminal:
			return out.result, nil
		case attemptFatal:
			e.state = StateFatal
			return nil, out.err
		}

		if out.slowDown {
			slowDownFactor++
		}
		delay := interval + time.Duration(slowDownFactor)*SlowDownIncrement
		e.logger.WithFields(log.Fields{
			"delay":     delay,
			"slow_down": out.slowDown,
		}).Debug("authorization pending")

		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// attempt performs one token request and classifies the response
func (e *Engine) attempt(ctx context.Context, tokenURL string, auth *AuthorizationResponse) attemptResult {
	resp, err := e.client.PostForm(ctx, tokenURL, url.Values{
		"client_id":   {e.clientID},
		"device_code": {auth.DeviceCode},
		"grant_type":  {GrantTypeDeviceCode},
		"scope":       {e.scope},
	})
	if err != nil {
		return attemptResult{kind: attemptFatal, err: fmt.Errorf("polling token endpoint: %w", err)}
	}

	if resp.StatusCode == http.StatusOK {
		tok, err := token.Decode(resp.Body, e.now())
		if err != nil {
			return attemptResult{kind: attemptFatal, err: fmt.Errorf("decoding token response: %w", err)}
		}
		if err := e.store.Save(ctx, tok); err != nil {
			return attemptResult{kind: attemptFatal, err: fmt.Errorf("saving token: %w", err)}
		}
		e.state = StateCompleted
		return attemptResult{kind: attemptTerminal, result: &Result{Token: tok}}
	}

	if resp.StatusCode != http.StatusBadRequest {
		return attemptResult{kind: attemptFatal, err: &ProtocolError{StatusCode: resp.StatusCode}}
	}

	code := ErrorCode(gjson.GetBytes(resp.Body, "error").String())
	description := gjson.GetBytes(resp.Body, "error_description").String()
	switch code {
	case ErrorCodeAuthorizationPending:
		return attemptResult{kind: attemptPending}
	case ErrorCodeSlowDown:
		return attemptResult{kind: attemptPending, slowDown: true}
	case ErrorCodeExpiredToken:
		e.state = StateExpired
	case ErrorCodeAccessDenied:
		e.state = StateDenied
	default:
		return attemptResult{kind: attemptFatal, err: &ProtocolError{
			StatusCode:  resp.StatusCode,
			Code:        string(code),
			Description: description,
		}}
	}
	return attemptResult{
		kind:   attemptTerminal,
		result: &Result{Outcome: &TokenResponseError{Code: code, Description: description}},
	}
}
