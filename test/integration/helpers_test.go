package integration

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/oauth"
	"github.com/wrale/oauth2-device-client/internal/session"
	"github.com/wrale/oauth2-device-client/internal/tokenstore"
)

// device is one client installation: a token file plus the flags it runs with
type device struct {
	provider  *Provider
	tokenPath string
	scopes    []string
	now       time.Time
}

func newDevice(t *testing.T, p *Provider, scopes ...string) *device {
	t.Helper()
	return &device{
		provider:  p,
		tokenPath: filepath.Join(t.TempDir(), "token.json"),
		scopes:    scopes,
		now:       time.Now(),
	}
}

// user simulates the person approving the device from another screen.
// It acts on the sleep numbered actOnSleep, counting from one.
type user struct {
	mu         sync.Mutex
	provider   *Provider
	auth       *deviceflow.AuthorizationResponse
	userCode   string
	actOnSleep int
	deny       bool
	sleeps     []time.Duration
}

func (u *user) prompt(auth *deviceflow.AuthorizationResponse) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.auth = auth
	u.userCode = auth.UserCode
	return nil
}

func (u *user) sleep(ctx context.Context, d time.Duration) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	u.sleeps = append(u.sleeps, d)
	if len(u.sleeps) == u.actOnSleep {
		if u.deny {
			u.provider.Deny(u.userCode)
		} else {
			u.provider.Approve(u.userCode)
		}
	}
	return nil
}

// controller builds a fresh session as a new process would, using discovery
func (d *device) controller(t *testing.T, u *user, opts ...session.Option) *session.Controller {
	t.Helper()

	logger := log.New()
	logger.SetOutput(io.Discard)

	client, err := oauth.NewClient(oauth.ClientConfig{
		HTTPClient: d.provider.Server.Client(),
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}

	engineOpts := []deviceflow.Option{deviceflow.WithMaxWait(time.Minute)}
	if u != nil {
		engineOpts = append(engineOpts, deviceflow.WithSleeper(u.sleep))
	}

	ctrl, err := session.New(session.Config{
		BaseURL:  d.provider.BaseURL(),
		ClientID: d.provider.ClientID(),
		Scopes:   d.scopes,
		Client:   client,
		Resolver: oauth.NewDiscoveryResolver(d.provider.BaseURL(), client),
		Store:    tokenstore.NewFileStore(d.tokenPath),
	}, append([]session.Option{
		session.WithLogger(logger),
		session.WithClock(func() time.Time { return d.now }),
		session.WithEngineOptions(engineOpts...),
	}, opts...)...)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	return ctrl
}

// login runs a full device login and fails the test unless it completes
func (d *device) login(t *testing.T) *session.Controller {
	t.Helper()
	u := &user{provider: d.provider, actOnSleep: 1}
	ctrl := d.controller(t, u)
	result, err := ctrl.Login(context.Background(), u.prompt)
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if result.Outcome != nil {
		t.Fatalf("Login() outcome = %s", result.Outcome)
	}
	return ctrl
}
