package deviceflow

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/wrale/oauth2-device-client/internal/token"
)

// DefaultInterval applies when the provider omits interval, per RFC 8628 section 3.2
const DefaultInterval = 5

// AuthorizationResponse is the device authorization response per RFC 8628 section 3.2.
// It lives only for the duration of one login attempt.
type AuthorizationResponse struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string

	// VerificationURIComplete embeds the user code, per RFC 8628 section 3.3.1
	VerificationURIComplete string

	ExpiresIn int
	Interval  int
}

// BrowserURI prefers the complete verification URI when the provider sent one
func (a *AuthorizationResponse) BrowserURI() string {
	if a.VerificationURIComplete != "" {
		return a.VerificationURIComplete
	}
	return a.VerificationURI
}

// DecodeAuthorizationResponse reads a device authorization response.
// Optional fields take defaults; device_code, user_code and a verification URI are required.
func DecodeAuthorizationResponse(data []byte) (*AuthorizationResponse, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("device authorization response is not valid JSON")
	}
	doc := gjson.ParseBytes(data)

	resp := &AuthorizationResponse{
		DeviceCode:              doc.Get("device_code").String(),
		UserCode:                doc.Get("user_code").String(),
		VerificationURI:         doc.Get("verification_uri").String(),
		VerificationURIComplete: doc.Get("verification_uri_complete").String(),
		ExpiresIn:               int(doc.Get("expires_in").Int()),
		Interval:                int(doc.Get("interval").Int()),
	}
	// Some providers predate the RFC and send verification_url
	if resp.VerificationURI == "" {
		resp.VerificationURI = doc.Get("verification_url").String()
	}
	if resp.Interval <= 0 {
		resp.Interval = DefaultInterval
	}

	switch {
	case resp.DeviceCode == "":
		return nil, fmt.Errorf("device authorization response missing device_code")
	case resp.UserCode == "":
		return nil, fmt.Errorf("device authorization response missing user_code")
	case resp.VerificationURI == "":
		return nil, fmt.Errorf("device authorization response missing verification_uri")
	}
	return resp, nil
}

// Result is the terminal outcome of a completed poll: either a token or a
// user-caused outcome such as expiry or denial.
type Result struct {
	Token   *token.AccessToken
	Outcome *TokenResponseError
}

// Completed reports whether the poll produced a token
func (r *Result) Completed() bool {
	return r.Token != nil
}
