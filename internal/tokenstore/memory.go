package tokenstore

import (
	"context"
	"sync"

	"github.com/wrale/oauth2-device-client/internal/token"
)

// MemoryStore keeps the token for the life of the process
type MemoryStore struct {
	mu  sync.Mutex
	tok *token.AccessToken
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store
func (s *MemoryStore) Load(_ context.Context) (*token.AccessToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tok == nil {
		return nil, nil
	}
	cp := *s.tok
	return &cp, nil
}

// Save implements Store
func (s *MemoryStore) Save(_ context.Context, tok *token.AccessToken) error {
	if tok == nil {
		return token.ErrNilToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tok
	s.tok = &cp
	return nil
}

// Delete implements Store
func (s *MemoryStore) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = nil
	return nil
}
