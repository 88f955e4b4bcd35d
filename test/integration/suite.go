// Package integration runs the device login client end to end against an
// in-process authorization server that follows RFC 8628, RFC 6749 and RFC 7009.
package integration

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// ProviderConfig shapes the simulated authorization server
type ProviderConfig struct {
	ClientID string

	// Interval is the polling interval advertised to the device, in seconds
	Interval int

	// AccessTokenTTL is expires_in for issued access tokens, in seconds
	AccessTokenTTL int

	// SlowDownOnPoll answers that poll of a pending grant with slow_down; zero disables it
	SlowDownOnPoll int

	// ExpireAfterPolls expires a pending grant once it was polled this often; zero disables it
	ExpireAfterPolls int

	// RotateRefreshTokens returns a new refresh token on each refresh
	RotateRefreshTokens bool
}

type grantStatus int

const (
	grantPending grantStatus = iota
	grantApproved
	grantDenied
)

type grant struct {
	userCode string
	scope    string
	status   grantStatus
	polls    int
}

// Provider is an authorization server for tests. The user side of the flow
// is driven through Approve and Deny.
type Provider struct {
	Server *httptest.Server
	cfg    ProviderConfig

	mu       sync.Mutex
	grants   map[string]*grant
	access   map[string]string
	refresh  map[string]string
	requests map[string]int
	revoked  []string
}

// NewProvider starts a provider; the caller closes Server
func NewProvider(cfg ProviderConfig) *Provider {
	if cfg.ClientID == "" {
		cfg.ClientID = "integration-client"
	}
	if cfg.Interval == 0 {
		cfg.Interval = 5
	}
	if cfg.AccessTokenTTL == 0 {
		cfg.AccessTokenTTL = 3600
	}

	p := &Provider{
		cfg:      cfg,
		grants:   make(map[string]*grant),
		access:   make(map[string]string),
		refresh:  make(map[string]string),
		requests: make(map[string]int),
	}

	r := chi.NewRouter()
	r.Route("/oauth", func(r chi.Router) {
		r.Get("/.well-known/openid-configuration", p.handleDiscovery)
		r.Post("/device", p.handleDeviceAuthorization)
		r.Post("/token", p.handleToken)
		r.Post("/revoke", p.handleRevoke)
		r.Get("/userinfo", p.handleUserinfo)
	})
	p.Server = httptest.NewServer(r)
	return p
}

// BaseURL is the OAuth base URL clients are configured with
func (p *Provider) BaseURL() string {
	return p.Server.URL + "/oauth"
}

// ClientID is the only client the provider accepts
func (p *Provider) ClientID() string {
	return p.cfg.ClientID
}

// Close shuts the server down
func (p *Provider) Close() {
	p.Server.Close()
}

// Approve completes the user's side of the grant for userCode
func (p *Provider) Approve(userCode string) bool {
	return p.setStatus(userCode, grantApproved)
}

// Deny rejects the grant for userCode
func (p *Provider) Deny(userCode string) bool {
	return p.setStatus(userCode, grantDenied)
}

func (p *Provider) setStatus(userCode string, status grantStatus) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, g := range p.grants {
		if g.userCode == userCode && g.status == grantPending {
			g.status = status
			return true
		}
	}
	return false
}

// Requests returns how many requests reached the named endpoint
// ("discovery", "device", "token", "revoke", "userinfo")
func (p *Provider) Requests(endpoint string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[endpoint]
}

// Revoked lists the tokens revoked so far
func (p *Provider) Revoked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.revoked...)
}

// Active reports whether accessToken is currently accepted
func (p *Provider) Active(accessToken string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.access[accessToken]
	return ok
}

func (p *Provider) count(endpoint string) {
	p.mu.Lock()
	p.requests[endpoint]++
	p.mu.Unlock()
}

func (p *Provider) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	p.count("discovery")
	base := p.BaseURL()
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                        base,
		"device_authorization_endpoint": base + "/device",
		"token_endpoint":                base + "/token",
		"revocation_endpoint":           base + "/revoke",
		"userinfo_endpoint":             base + "/userinfo",
		"grant_types_supported": []string{
			"urn:ietf:params:oauth:grant-type:device_code",
			"refresh_token",
		},
	})
}

func (p *Provider) handleDeviceAuthorization(w http.ResponseWriter, r *http.Request) {
	p.count("device")
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if r.PostForm.Get("client_id") != p.cfg.ClientID {
		writeError(w, http.StatusBadRequest, "invalid_client")
		return
	}

	deviceCode := randomCode(16)
	userCode := strings.ToUpper(randomCode(4))
	p.mu.Lock()
	p.grants[deviceCode] = &grant{userCode: userCode, scope: r.PostForm.Get("scope")}
	p.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"device_code":               deviceCode,
		"user_code":                 userCode,
		"verification_uri":          p.Server.URL + "/activate",
		"verification_uri_complete": p.Server.URL + "/activate?user_code=" + userCode,
		"expires_in":                600,
		"interval":                  p.cfg.Interval,
	})
}

func (p *Provider) handleToken(w http.ResponseWriter, r *http.Request) {
	p.count("token")
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if r.PostForm.Get("client_id") != p.cfg.ClientID {
		writeError(w, http.StatusBadRequest, "invalid_client")
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "urn:ietf:params:oauth:grant-type:device_code":
		p.exchangeDeviceCode(w, r.PostForm.Get("device_code"))
	case "refresh_token":
		p.exchangeRefreshToken(w, r.PostForm.Get("refresh_token"))
	default:
		writeError(w, http.StatusBadRequest, "unsupported_grant_type")
	}
}

func (p *Provider) exchangeDeviceCode(w http.ResponseWriter, deviceCode string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.grants[deviceCode]
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_grant")
		return
	}

	switch g.status {
	case grantApproved:
		delete(p.grants, deviceCode)
		writeJSON(w, http.StatusOK, p.issueLocked(g.scope, ""))
	case grantDenied:
		delete(p.grants, deviceCode)
		writeError(w, http.StatusBadRequest, "access_denied")
	default:
		g.polls++
		switch {
		case p.cfg.ExpireAfterPolls > 0 && g.polls >= p.cfg.ExpireAfterPolls:
			delete(p.grants, deviceCode)
			writeError(w, http.StatusBadRequest, "expired_token")
		case g.polls == p.cfg.SlowDownOnPoll:
			writeError(w, http.StatusBadRequest, "slow_down")
		default:
			writeError(w, http.StatusBadRequest, "authorization_pending")
		}
	}
}

func (p *Provider) exchangeRefreshToken(w http.ResponseWriter, refreshToken string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	scope, ok := p.refresh[refreshToken]
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_grant")
		return
	}

	keep := refreshToken
	if p.cfg.RotateRefreshTokens {
		delete(p.refresh, refreshToken)
		keep = ""
	}
	resp := p.issueLocked(scope, keep)
	if keep != "" {
		delete(resp, "refresh_token")
	}
	writeJSON(w, http.StatusOK, resp)
}

// issueLocked mints an access token, and a refresh token unless one is reused
func (p *Provider) issueLocked(scope, refreshToken string) map[string]any {
	accessToken := "at-" + randomCode(12)
	p.access[accessToken] = scope
	if refreshToken == "" {
		refreshToken = "rt-" + randomCode(12)
		p.refresh[refreshToken] = scope
	}
	return map[string]any{
		"access_token":  accessToken,
		"token_type":    "Bearer",
		"expires_in":    p.cfg.AccessTokenTTL,
		"refresh_token": refreshToken,
		"scope":         scope,
	}
}

// handleRevoke answers 200 for unknown tokens too, per RFC 7009 section 2.2
func (p *Provider) handleRevoke(w http.ResponseWriter, r *http.Request) {
	p.count("revoke")
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	tok := r.PostForm.Get("token")
	p.mu.Lock()
	delete(p.access, tok)
	p.revoked = append(p.revoked, tok)
	p.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (p *Provider) handleUserinfo(w http.ResponseWriter, r *http.Request) {
	p.count("userinfo")
	accessToken, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || !p.Active(accessToken) {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"sub":   "user-1",
		"email": "user@example.com",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": fmt.Sprintf("simulated %s", code),
	})
}

func randomCode(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
