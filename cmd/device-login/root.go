package main

import (
	"context"
	"errors"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type runtimeKey struct{}

// runtimeState carries configuration and flag overrides to subcommands
type runtimeState struct {
	configPath string
	cfg        Config
	writer     io.Writer
	logger     *log.Logger

	// flag overrides, applied only when set on the command line
	oauthURL  string
	clientID  string
	scopes    []string
	discovery bool
	store     string
	logLevel  string
	noBrowser bool
}

func newRootCommand(out io.Writer) *cobra.Command {
	rt := &runtimeState{writer: out, logger: log.New()}
	rt.logger.SetOutput(os.Stderr)

	root := &cobra.Command{
		Use:           "device-login",
		Short:         "Sign in with the OAuth 2.0 device authorization grant",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch cmd.Name() {
			case "version", "help", "completion":
				return nil
			}
			return rt.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&rt.configPath, "config", defaultConfigPath(), "Path to config file")
	flags.StringVar(&rt.oauthURL, "oauth-url", "", "OAuth base URL of the provider")
	flags.StringVar(&rt.clientID, "client-id", "", "OAuth client identifier")
	flags.StringSliceVar(&rt.scopes, "scope", nil, "Scope to request (repeatable)")
	flags.BoolVar(&rt.discovery, "discovery", false, "Resolve endpoints from the OpenID discovery document")
	flags.StringVar(&rt.store, "store", "", "Token store: file, keyring, redis or memory")
	flags.StringVar(&rt.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&rt.noBrowser, "no-browser", false, "Do not open a browser during login")

	root.SetOut(out)
	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		newLoginCommand(),
		newLogoutCommand(),
		newStatusCommand(),
		newTokenCommand(),
		newMeCommand(),
		newServeCommand(),
		newVersionCommand(),
	)
	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

// load merges the config file, environment and changed flags, then validates
func (rt *runtimeState) load(cmd *cobra.Command) error {
	flags := cmd.Flags()
	cfg, err := loadConfig(rt.configPath, flags.Changed("config"))
	if err != nil {
		return err
	}

	if flags.Changed("oauth-url") {
		cfg.OAuthURL = rt.oauthURL
	}
	if flags.Changed("client-id") {
		cfg.ClientID = rt.clientID
	}
	if flags.Changed("scope") {
		cfg.Scopes = rt.scopes
	}
	if flags.Changed("discovery") {
		cfg.Discovery = rt.discovery
	}
	if flags.Changed("store") {
		cfg.Store = rt.store
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = rt.logLevel
	}
	if flags.Changed("no-browser") {
		cfg.NoBrowser = rt.noBrowser
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	rt.logger.SetLevel(level)

	if err := cfg.Validate(); err != nil {
		return err
	}
	rt.cfg = cfg
	return nil
}
