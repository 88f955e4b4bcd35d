package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoggedIn indicates the operation needs a cached token
	ErrNotLoggedIn = errors.New("not logged in")

	// ErrNoRefreshToken indicates the cached token cannot be refreshed
	ErrNoRefreshToken = errors.New("token has no refresh token")
)

// RefreshError indicates the provider did not issue a new token
type RefreshError struct {
	StatusCode int
	Code       string
	Err        error
}

func (e *RefreshError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("refreshing token: %v", e.Err)
	case e.Code != "":
		return fmt.Sprintf("refreshing token: status %d: %s", e.StatusCode, e.Code)
	default:
		return fmt.Sprintf("refreshing token: status %d", e.StatusCode)
	}
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// RevocationError indicates the provider did not confirm revocation
type RevocationError struct {
	StatusCode int
}

func (e *RevocationError) Error() string {
	return fmt.Sprintf("revoking token: status %d", e.StatusCode)
}
