package token

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestIsExpired(t *testing.T) {
	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tok := &AccessToken{AccessToken: "abc", TokenType: "Bearer", ExpiresIn: 3600, IssuedAt: issued}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"at issue", issued, false},
		{"one second before expiry", issued.Add(3599 * time.Second), false},
		{"exactly at expiry", issued.Add(3600 * time.Second), false},
		{"one second after expiry", issued.Add(3601 * time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tok.IsExpired(tt.now); got != tt.want {
				t.Errorf("IsExpired(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestHeaders(t *testing.T) {
	tok := &AccessToken{TokenType: "Bearer", AccessToken: "abc123"}

	want := AuthHeaders{"Authorization": "Bearer abc123"}
	if diff := cmp.Diff(want, tok.Headers()); diff != "" {
		t.Errorf("Headers() mismatch (-want +got):\n%s", diff)
	}

	req, _ := http.NewRequest(http.MethodGet, "http://example.com/me/", nil)
	tok.Headers().Apply(req)
	if got := req.Header.Get("Authorization"); got != "Bearer abc123" {
		t.Errorf("Apply() Authorization = %q, want %q", got, "Bearer abc123")
	}
}

func TestDecode(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		body    string
		want    *AccessToken
		wantErr error
	}{
		{
			name: "token endpoint response",
			body: `{"access_token":"abc","token_type":"Bearer","expires_in":36000,"refresh_token":"def","scope":"identity read"}`,
			want: &AccessToken{
				TokenType:    "Bearer",
				AccessToken:  "abc",
				RefreshToken: "def",
				Scope:        "identity read",
				ExpiresIn:    36000,
				IssuedAt:     now,
			},
		},
		{
			name: "missing optional fields take defaults",
			body: `{"access_token":"abc"}`,
			want: &AccessToken{
				TokenType:   DefaultTokenType,
				AccessToken: "abc",
				IssuedAt:    now,
			},
		},
		{
			name: "unknown fields ignored",
			body: `{"access_token":"abc","token_type":"bearer","expires_in":60,"id_token":"x.y.z"}`,
			want: &AccessToken{
				TokenType:   "bearer",
				AccessToken: "abc",
				ExpiresIn:   60,
				IssuedAt:    now,
			},
		},
		{
			name: "stored record keeps issued_at",
			body: `{"access_token":"abc","token_type":"Bearer","expires_in":60,"issued_at":"2024-04-30T08:15:00.5Z"}`,
			want: &AccessToken{
				TokenType:   "Bearer",
				AccessToken: "abc",
				ExpiresIn:   60,
				IssuedAt:    time.Date(2024, 4, 30, 8, 15, 0, 500000000, time.UTC),
			},
		},
		{
			name:    "not json",
			body:    `{not json`,
			wantErr: ErrMalformed,
		},
		{
			name:    "json array",
			body:    `["access_token"]`,
			wantErr: ErrMalformed,
		},
		{
			name:    "missing access token",
			body:    `{"token_type":"Bearer"}`,
			wantErr: ErrMissingAccessToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.body), now)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeBadIssuedAt(t *testing.T) {
	_, err := Decode([]byte(`{"access_token":"abc","issued_at":"yesterday"}`), time.Now())
	if err == nil {
		t.Fatal("expected error for unparseable issued_at")
	}
}

func TestEncodeDecode(t *testing.T) {
	issued := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.Local)
	tok := &AccessToken{
		TokenType:    "Bearer",
		AccessToken:  "abc",
		RefreshToken: "def",
		Scope:        "identity",
		ExpiresIn:    3600,
		IssuedAt:     issued,
	}

	data, err := Encode(tok)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	got, err := Decode(data, time.Time{})
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	if !got.IssuedAt.Equal(issued) {
		t.Errorf("IssuedAt = %v, want %v", got.IssuedAt, issued)
	}
	got.IssuedAt = tok.IssuedAt
	if diff := cmp.Diff(tok, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeNil(t *testing.T) {
	if _, err := Encode(nil); !errors.Is(err, ErrNilToken) {
		t.Fatalf("Encode(nil) error = %v, want ErrNilToken", err)
	}
}

func TestOAuth2Token(t *testing.T) {
	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tok := &AccessToken{
		TokenType:    "Bearer",
		AccessToken:  "abc",
		RefreshToken: "def",
		Scope:        "identity",
		ExpiresIn:    60,
		IssuedAt:     issued,
	}

	got := tok.OAuth2Token()
	if got.AccessToken != "abc" || got.RefreshToken != "def" || got.TokenType != "Bearer" {
		t.Errorf("unexpected oauth2 token: %+v", got)
	}
	if !got.Expiry.Equal(issued.Add(time.Minute)) {
		t.Errorf("Expiry = %v, want %v", got.Expiry, issued.Add(time.Minute))
	}
	if scope, _ := got.Extra("scope").(string); scope != "identity" {
		t.Errorf("Extra(scope) = %q, want %q", scope, "identity")
	}
}
