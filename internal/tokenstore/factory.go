package tokenstore

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Type selects a store backend
type Type string

const (
	TypeFile    Type = "file"
	TypeKeyring Type = "keyring"
	TypeRedis   Type = "redis"
	TypeMemory  Type = "memory"
)

// ParseType parses a backend name, case-insensitively
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unsupported token store type: %q", s)
	}
	return t, nil
}

// IsValid reports whether t names a known backend
func (t Type) IsValid() bool {
	switch t {
	case TypeFile, TypeKeyring, TypeRedis, TypeMemory:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	return string(t)
}

// Config describes the store to create
type Config struct {
	Type Type
	Key  Key

	// Path overrides ComputeStoragePath for the file backend
	Path string

	// RedisURL is parsed with redis.ParseURL for the redis backend
	RedisURL string
}

// New creates the configured store
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeFile, "":
		if cfg.Path != "" {
			return NewFileStore(cfg.Path), nil
		}
		return NewDefaultFileStore(cfg.Key)
	case TypeKeyring:
		return NewKeyringStore(cfg.Key)
	case TypeRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		return NewRedisStore(redis.NewClient(opts), cfg.Key)
	case TypeMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported token store type: %s", cfg.Type)
	}
}
