// Package tokenstore persists the single cached access token for a provider host and client
package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/wrale/oauth2-device-client/internal/token"
)

// AppName namespaces every backend's records
const AppName = "oauth2-device-client"

// ErrNoKey indicates a store was created without a host or client id
var ErrNoKey = errors.New("token store key requires host and client id")

// Store defines durable storage for one access token.
// Load returns (nil, nil) when nothing is stored; Delete is idempotent.
type Store interface {
	// Load retrieves the cached token
	Load(ctx context.Context) (*token.AccessToken, error)

	// Save overwrites the cached token
	Save(ctx context.Context, tok *token.AccessToken) error

	// Delete removes the cached token if present
	Delete(ctx context.Context) error
}

// Key identifies the cached token record
type Key struct {
	Host     string
	ClientID string
}

// Validate checks both parts of the key are set
func (k Key) Validate() error {
	if k.Host == "" || k.ClientID == "" {
		return ErrNoKey
	}
	return nil
}

func (k Key) String() string {
	return k.Host + "/" + k.ClientID
}

// CorruptTokenError indicates a stored record exists but cannot be decoded
type CorruptTokenError struct {
	Location string
	Err      error
}

func (e *CorruptTokenError) Error() string {
	return fmt.Sprintf("corrupt token record at %s: %v", e.Location, e.Err)
}

func (e *CorruptTokenError) Unwrap() error {
	return e.Err
}

// decodeRecord turns stored bytes into a token, tagging failures as corrupt
func decodeRecord(location string, data []byte) (*token.AccessToken, error) {
	tok, err := token.Decode(data, timeNow())
	if err != nil {
		return nil, &CorruptTokenError{Location: location, Err: err}
	}
	return tok, nil
}
