package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/wrale/oauth2-device-client/internal/token"
)

const tokenPrefix = "token:"

// RedisStore keeps the token in Redis, for agents sharing one session across hosts
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a Redis-backed store
func NewRedisStore(client *redis.Client, key Key) (*RedisStore, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return &RedisStore{
		client: client,
		key:    tokenPrefix + key.Host + ":" + key.ClientID,
	}, nil
}

// CheckHealth verifies Redis connectivity
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Load implements Store
func (s *RedisStore) Load(ctx context.Context) (*token.AccessToken, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting token: %w", err)
	}
	return decodeRecord("redis:"+s.key, data)
}

// Save implements Store. The record carries no TTL; the refresh token may
// outlive the access token.
func (s *RedisStore) Save(ctx context.Context, tok *token.AccessToken) error {
	data, err := token.Encode(tok)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// Delete implements Store
func (s *RedisStore) Delete(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}
