package deviceflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/wrale/oauth2-device-client/internal/oauth"
	"github.com/wrale/oauth2-device-client/internal/token"
	"github.com/wrale/oauth2-device-client/internal/tokenstore"
)

// scriptedResponse is one canned provider reply
type scriptedResponse struct {
	status int
	body   string
}

// fakeProvider replays scripted responses per endpoint and records request forms
type fakeProvider struct {
	mu       sync.Mutex
	server   *httptest.Server
	device   []scriptedResponse
	token    []scriptedResponse
	requests map[string][]url.Values
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{requests: make(map[string][]url.Values)}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/device-authorization/", p.handle(&p.device))
	mux.HandleFunc("/oauth/token/", p.handle(&p.token))
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) handle(script *[]scriptedResponse) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()

		p.mu.Lock()
		p.requests[r.URL.Path] = append(p.requests[r.URL.Path], r.PostForm)
		var resp scriptedResponse
		if len(*script) == 0 {
			resp = scriptedResponse{status: http.StatusInternalServerError, body: `{"error":"script exhausted"}`}
		} else {
			resp = (*script)[0]
			*script = (*script)[1:]
		}
		p.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		_, _ = w.Write([]byte(resp.body))
	}
}

func (p *fakeProvider) tokenRequests() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests["/oauth/token/"]
}

// fakeClock advances only when the recorded sleeper sleeps
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// countingStore records writes on top of a memory store
type countingStore struct {
	*tokenstore.MemoryStore
	saves int
}

func (s *countingStore) Save(ctx context.Context, tok *token.AccessToken) error {
	s.saves++
	return s.MemoryStore.Save(ctx, tok)
}

func newTestEngine(t *testing.T, p *fakeProvider, store tokenstore.Store, clock *fakeClock, opts ...Option) *Engine {
	t.Helper()
	client, err := oauth.NewClient(oauth.ClientConfig{HTTPClient: p.server.Client()})
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	opts = append([]Option{WithClock(clock.Now), WithSleeper(clock.Sleep)}, opts...)
	return NewEngine(client, oauth.NewStaticResolver(p.server.URL+"/oauth"), store,
		"test-client", []string{"identity", "read"}, opts...)
}
