package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/wrale/oauth2-device-client/internal/token"
	"github.com/zalando/go-keyring"
)

// KeyringStore keeps the token in the OS credential store
type KeyringStore struct {
	key Key
}

// NewKeyringStore creates a keyring-backed store
func NewKeyringStore(key Key) (*KeyringStore, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return &KeyringStore{key: key}, nil
}

// Load implements Store
func (s *KeyringStore) Load(_ context.Context) (*token.AccessToken, error) {
	secret, err := keyring.Get(AppName, s.key.String())
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading keyring: %w", err)
	}
	return decodeRecord("keyring:"+s.key.String(), []byte(secret))
}

// Save implements Store
func (s *KeyringStore) Save(_ context.Context, tok *token.AccessToken) error {
	data, err := token.Encode(tok)
	if err != nil {
		return err
	}
	if err := keyring.Set(AppName, s.key.String(), string(data)); err != nil {
		return fmt.Errorf("writing keyring: %w", err)
	}
	return nil
}

// Delete implements Store
func (s *KeyringStore) Delete(_ context.Context) error {
	if err := keyring.Delete(AppName, s.key.String()); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("removing keyring entry: %w", err)
	}
	return nil
}
