package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/wrale/oauth2-device-client/internal/tokenstore"
	"github.com/wrale/oauth2-device-client/internal/validation"
)

// envPrefix namespaces environment overrides, e.g. DEVICE_LOGIN_CLIENT_ID
const envPrefix = "DEVICE_LOGIN"

// Config holds client configuration from the config file, environment and flags, in that order
type Config struct {
	OAuthURL    string   `yaml:"oauth_url" envconfig:"OAUTH_URL"`
	ClientID    string   `yaml:"client_id" envconfig:"CLIENT_ID"`
	Scopes      []string `yaml:"scopes" envconfig:"SCOPES"`
	Discovery   bool     `yaml:"discovery" envconfig:"DISCOVERY"`
	UserinfoURL string   `yaml:"userinfo_url" envconfig:"USERINFO_URL"`

	Store     string `yaml:"store" envconfig:"STORE"`
	TokenPath string `yaml:"token_path" envconfig:"TOKEN_PATH"`
	RedisURL  string `yaml:"redis_url" envconfig:"REDIS_URL"`

	MaxWait               time.Duration `yaml:"max_wait" envconfig:"MAX_WAIT"`
	HTTPTimeout           time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT"`
	CAFile                string        `yaml:"ca_file" envconfig:"CA_FILE"`
	InsecureSkipTLSVerify bool          `yaml:"insecure_skip_tls_verify" envconfig:"INSECURE_SKIP_TLS_VERIFY"`

	NoBrowser  bool   `yaml:"no_browser" envconfig:"NO_BROWSER"`
	ListenAddr string `yaml:"listen_addr" envconfig:"LISTEN_ADDR"`
	LogLevel   string `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

// defaultConfig returns the settings used when nothing overrides them
func defaultConfig() Config {
	return Config{
		Store:       string(tokenstore.TypeFile),
		MaxWait:     300 * time.Second,
		HTTPTimeout: 30 * time.Second,
		ListenAddr:  "127.0.0.1:8765",
		LogLevel:    "info",
	}
}

// defaultConfigPath is $XDG_CONFIG_HOME/oauth2-device-client/config.yaml
func defaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, tokenstore.AppName, "config.yaml")
}

// loadConfig reads the YAML file at path, then applies environment overrides.
// A missing file is an error only when required is set.
func loadConfig(path string, required bool) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings needed to talk to a provider
func (c *Config) Validate() error {
	if err := validation.ValidateBaseURL(c.OAuthURL); err != nil {
		return err
	}
	if err := validation.ValidateClientID(c.ClientID); err != nil {
		return err
	}
	for _, scope := range c.Scopes {
		if err := validation.ValidateScope(scope); err != nil {
			return err
		}
	}
	storeType, err := tokenstore.ParseType(c.Store)
	if err != nil {
		return err
	}
	if storeType == tokenstore.TypeRedis && c.RedisURL == "" {
		return errors.New("redis token store requires redis_url")
	}
	if c.MaxWait <= 0 {
		return errors.New("max_wait must be positive")
	}
	return nil
}
