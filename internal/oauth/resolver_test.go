package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return c
}

func TestStaticResolver(t *testing.T) {
	r := NewStaticResolver("http://127.0.0.1:8000/oauth/")

	tests := []struct {
		purpose Purpose
		want    string
		wantErr error
	}{
		{PurposeDeviceAuthorization, "http://127.0.0.1:8000/oauth/device-authorization/", nil},
		{PurposeToken, "http://127.0.0.1:8000/oauth/token/", nil},
		{PurposeRevocation, "http://127.0.0.1:8000/oauth/revoke_token/", nil},
		{PurposeUserinfo, "", ErrEndpointUnavailable},
		{Purpose("bogus"), "", ErrUnknownPurpose},
	}

	for _, tt := range tests {
		t.Run(string(tt.purpose), func(t *testing.T) {
			got, err := r.Resolve(context.Background(), tt.purpose)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve(%s) error = %v, want %v", tt.purpose, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Resolve(%s) = %q, want %q", tt.purpose, got, tt.want)
			}
		})
	}
}

func TestStaticResolverUserinfo(t *testing.T) {
	r := NewStaticResolver("https://example.com/oauth", WithUserinfoURL("https://example.com/me/"))
	got, err := r.Resolve(context.Background(), PurposeUserinfo)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got != "https://example.com/me/" {
		t.Errorf("Resolve() = %q", got)
	}
}

func discoveryHandler(base string) string {
	return fmt.Sprintf(`{
		"issuer": %[1]q,
		"device_authorization_endpoint": "%[1]s/device",
		"token_endpoint": "%[1]s/token",
		"userinfo_endpoint": "%[1]s/userinfo",
		"revocation_endpoint": "%[1]s/revoke",
		"grant_types_supported": ["urn:ietf:params:oauth:grant-type:device_code"]
	}`, base)
}

func TestDiscoveryResolverMemoizes(t *testing.T) {
	var hits atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, discoveryHandler(srv.URL+"/oauth"))
	}))
	defer srv.Close()

	r := NewDiscoveryResolver(srv.URL+"/oauth/", newTestClient(t, srv))

	want := map[Purpose]string{
		PurposeDeviceAuthorization: srv.URL + "/oauth/device",
		PurposeToken:               srv.URL + "/oauth/token",
		PurposeUserinfo:            srv.URL + "/oauth/userinfo",
		PurposeRevocation:          srv.URL + "/oauth/revoke",
	}
	got := make(map[Purpose]string)
	for purpose := range want {
		u, err := r.Resolve(context.Background(), purpose)
		if err != nil {
			t.Fatalf("Resolve(%s) error: %v", purpose, err)
		}
		got[purpose] = u
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resolved endpoints mismatch (-want +got):\n%s", diff)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("discovery fetched %d times, want 1", n)
	}
}

func TestDiscoveryResolverFailureNotMemoized(t *testing.T) {
	var hits atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, discoveryHandler(srv.URL))
	}))
	defer srv.Close()

	r := NewDiscoveryResolver(srv.URL, newTestClient(t, srv))

	_, err := r.Resolve(context.Background(), PurposeToken)
	var derr *DiscoveryError
	if !errors.As(err, &derr) {
		t.Fatalf("expected *DiscoveryError, got %v", err)
	}
	if derr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want %d", derr.StatusCode, http.StatusServiceUnavailable)
	}

	got, err := r.Resolve(context.Background(), PurposeToken)
	if err != nil {
		t.Fatalf("second Resolve() error: %v", err)
	}
	if got != srv.URL+"/token" {
		t.Errorf("Resolve() = %q, want %q", got, srv.URL+"/token")
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("discovery fetched %d times, want 2", n)
	}
}

func TestDecodeOpenIDConfig(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    *OpenIDConfig
		wantErr bool
	}{
		{
			name: "all endpoints",
			body: discoveryHandler("https://idp.example.com"),
			want: &OpenIDConfig{
				DeviceAuthorizationEndpoint: "https://idp.example.com/device",
				TokenEndpoint:               "https://idp.example.com/token",
				UserinfoEndpoint:            "https://idp.example.com/userinfo",
				RevocationEndpoint:          "https://idp.example.com/revoke",
			},
		},
		{
			name: "optional endpoints absent",
			body: `{"device_authorization_endpoint":"https://idp/device","token_endpoint":"https://idp/token"}`,
			want: &OpenIDConfig{
				DeviceAuthorizationEndpoint: "https://idp/device",
				TokenEndpoint:               "https://idp/token",
			},
		},
		{
			name:    "missing token endpoint",
			body:    `{"device_authorization_endpoint":"https://idp/device"}`,
			wantErr: true,
		},
		{
			name:    "relative endpoint",
			body:    `{"device_authorization_endpoint":"/device","token_endpoint":"https://idp/token"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `<html>`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeOpenIDConfig([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeOpenIDConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeOpenIDConfig() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
