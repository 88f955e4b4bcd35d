package main

import (
	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/oauth"
	"github.com/wrale/oauth2-device-client/internal/session"
	"github.com/wrale/oauth2-device-client/internal/tokenstore"
	"github.com/wrale/oauth2-device-client/internal/validation"
)

// newResolver picks discovery or the static endpoint layout
func newResolver(cfg Config, client *oauth.Client) oauth.Resolver {
	if cfg.Discovery {
		return oauth.NewDiscoveryResolver(cfg.OAuthURL, client)
	}
	var opts []oauth.StaticOption
	if cfg.UserinfoURL != "" {
		opts = append(opts, oauth.WithUserinfoURL(cfg.UserinfoURL))
	}
	return oauth.NewStaticResolver(cfg.OAuthURL, opts...)
}

// newStore creates the token store keyed by provider host and client id
func newStore(cfg Config) (tokenstore.Store, error) {
	host, err := validation.HostFromURL(cfg.OAuthURL)
	if err != nil {
		return nil, err
	}
	storeType, err := tokenstore.ParseType(cfg.Store)
	if err != nil {
		return nil, err
	}
	return tokenstore.New(tokenstore.Config{
		Type:     storeType,
		Key:      tokenstore.Key{Host: host, ClientID: cfg.ClientID},
		Path:     cfg.TokenPath,
		RedisURL: cfg.RedisURL,
	})
}

// newController wires the session from validated configuration
func (rt *runtimeState) newController() (*session.Controller, tokenstore.Store, error) {
	cfg := rt.cfg

	client, err := oauth.NewClient(oauth.ClientConfig{
		Timeout:         cfg.HTTPTimeout,
		CAFile:          cfg.CAFile,
		InsecureSkipTLS: cfg.InsecureSkipTLSVerify,
		Logger:          rt.logger,
	})
	if err != nil {
		return nil, nil, err
	}

	store, err := newStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	ctrl, err := session.New(session.Config{
		BaseURL:  cfg.OAuthURL,
		ClientID: cfg.ClientID,
		Scopes:   cfg.Scopes,
		Client:   client,
		Resolver: newResolver(cfg, client),
		Store:    store,
	},
		session.WithLogger(rt.logger),
		session.WithEngineOptions(deviceflow.WithMaxWait(cfg.MaxWait)),
	)
	if err != nil {
		return nil, nil, err
	}
	return ctrl, store, nil
}
