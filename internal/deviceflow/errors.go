package deviceflow

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode is an RFC 8628 section 3.5 token endpoint error code
type ErrorCode string

const (
	ErrorCodeAuthorizationPending ErrorCode = "authorization_pending"
	ErrorCodeSlowDown             ErrorCode = "slow_down"
	ErrorCodeExpiredToken         ErrorCode = "expired_token"
	ErrorCodeAccessDenied         ErrorCode = "access_denied"
)

// ErrTimeout indicates polling gave up after the maximum wait
var ErrTimeout = errors.New("device authorization timed out")

// TimeoutError reports how long polling ran before giving up
type TimeoutError struct {
	MaxWait time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%v: waited %s (max %s)", ErrTimeout, e.Elapsed.Round(time.Second), e.MaxWait)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// InitiationError indicates the device authorization request was rejected
type InitiationError struct {
	StatusCode int
	Code       string
	Body       []byte
}

func (e *InitiationError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("device authorization failed with status %d: %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("device authorization failed with status %d", e.StatusCode)
}

// ProtocolError indicates a token endpoint response outside the device grant protocol
type ProtocolError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *ProtocolError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("unexpected token response: status %d", e.StatusCode)
	}
	if e.Description != "" {
		return fmt.Sprintf("unexpected token response: %s (%s)", e.Code, e.Description)
	}
	return fmt.Sprintf("unexpected token response: %s", e.Code)
}

// TokenResponseError is a terminal outcome of polling that the user caused.
// It is returned as a value, not as an error.
type TokenResponseError struct {
	Code        ErrorCode
	Description string
}

// Message returns a user-facing explanation of the outcome
func (e TokenResponseError) Message() string {
	switch e.Code {
	case ErrorCodeExpiredToken:
		return "The device code expired before authorization was completed."
	case ErrorCodeAccessDenied:
		return "Authorization was denied."
	default:
		return string(e.Code)
	}
}

func (e TokenResponseError) String() string {
	if e.Description != "" {
		return string(e.Code) + ": " + e.Description
	}
	return string(e.Code)
}
