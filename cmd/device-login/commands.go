package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/wrale/oauth2-device-client/internal/session"
	"github.com/wrale/oauth2-device-client/internal/templates"
	"github.com/wrale/oauth2-device-client/internal/tokenstore"
)

// errRevocationFailed reports a logout whose server-side revocation failed
var errRevocationFailed = errors.New("logged out locally, but the provider did not confirm revocation")

func newLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the cached token and remove it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			ctrl, _, err := rt.newController()
			if err != nil {
				return err
			}
			if _, err := ctrl.RestoreSession(cmd.Context()); err != nil {
				return err
			}
			if !ctrl.Logout(cmd.Context()) {
				return errRevocationFailed
			}
			_, _ = fmt.Fprintln(rt.writer, "Logged out.")
			return nil
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the cached session without contacting the provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			ctrl, store, err := rt.newController()
			if err != nil {
				return err
			}
			tmpls, err := templates.LoadTemplates()
			if err != nil {
				return err
			}

			data := templates.StatusData{
				BaseURL:  ctrl.BaseURL(),
				ClientID: ctrl.ClientID(),
				Store:    rt.cfg.Store,
			}
			if fs, ok := store.(*tokenstore.FileStore); ok {
				data.Store += " (" + fs.Path() + ")"
			}

			tok, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			if tok != nil {
				data.LoggedIn = true
				data.Scope = tok.Scope
				data.Expiry = tok.Expiry()
				data.Expired = tok.IsExpired(ctrl.Now())
			}
			return tmpls.RenderStatus(rt.writer, data)
		},
	}
}

func newTokenCommand() *cobra.Command {
	var header bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print the access token of a usable session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			ctrl, _, err := rt.newController()
			if err != nil {
				return err
			}
			headers, err := ctrl.RestoreSession(cmd.Context())
			if err != nil {
				return err
			}
			if headers == nil {
				return session.ErrNotLoggedIn
			}
			if header {
				for k, v := range headers {
					_, _ = fmt.Fprintf(rt.writer, "%s: %s\n", k, v)
				}
				return nil
			}
			_, _ = fmt.Fprintln(rt.writer, ctrl.Token().AccessToken)
			return nil
		},
	}

	cmd.Flags().BoolVar(&header, "header", false, "Print the full Authorization header")
	return cmd
}

func newMeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in user from the userinfo endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			ctrl, _, err := rt.newController()
			if err != nil {
				return err
			}
			if _, err := ctrl.RestoreSession(cmd.Context()); err != nil {
				return err
			}
			body, err := ctrl.Userinfo(cmd.Context())
			if err != nil {
				return err
			}
			if gjson.ValidBytes(body) {
				body = []byte(gjson.GetBytes(body, "@pretty").Raw)
			}
			_, _ = fmt.Fprint(rt.writer, string(body))
			return nil
		},
	}
}

// buildInfo describes this binary
type buildInfo struct {
	Version   string `json:"version" yaml:"version"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
}

func newVersionCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show device-login version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := buildInfo{Version: Version, GoVersion: runtime.Version()}
			writer := cmd.OutOrStdout()

			switch outputFormat {
			case "json":
				encoder := json.NewEncoder(writer)
				encoder.SetIndent("", "  ")
				return encoder.Encode(info)
			case "yaml":
				data, err := yaml.Marshal(info)
				if err != nil {
					return fmt.Errorf("marshaling to YAML: %w", err)
				}
				_, _ = fmt.Fprint(writer, string(data))
				return nil
			default:
				_, _ = fmt.Fprintf(writer, "device-login %s (%s)\n", info.Version, info.GoVersion)
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: json, yaml")
	return cmd
}
