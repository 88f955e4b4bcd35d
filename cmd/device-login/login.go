package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"

	"github.com/wrale/oauth2-device-client/internal/deviceflow"
	"github.com/wrale/oauth2-device-client/internal/session"
	"github.com/wrale/oauth2-device-client/internal/templates"
)

// errLoginIncomplete is returned when the user let the code expire or denied access
var errLoginIncomplete = errors.New("login did not complete")

// openBrowser launches the system browser
var openBrowser = open.Run

func newLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in, reusing a cached session when possible",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			ctrl, _, err := rt.newController()
			if err != nil {
				return err
			}
			tmpls, err := templates.LoadTemplates()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			headers, err := ctrl.RestoreSession(ctx)
			if err != nil {
				return err
			}
			if headers != nil {
				_, _ = fmt.Fprintln(rt.writer, "Already logged in.")
				return nil
			}

			result, err := ctrl.Login(ctx, rt.prompt(tmpls))
			if err != nil {
				return err
			}
			if result.Outcome != nil {
				if err := tmpls.RenderOutcome(rt.writer, templates.OutcomeData{
					Message:     result.Outcome.Message(),
					Description: result.Outcome.Description,
				}); err != nil {
					return err
				}
				return fmt.Errorf("%w: %s", errLoginIncomplete, result.Outcome.Code)
			}

			_, _ = fmt.Fprintf(rt.writer, "Logged in. Token expires at %s\n",
				ctrl.Token().Expiry().UTC().Format(time.RFC3339))
			return nil
		},
	}
}

// prompt shows the user code and, unless disabled, opens the verification page
func (rt *runtimeState) prompt(tmpls *templates.Templates) session.Prompt {
	return func(auth *deviceflow.AuthorizationResponse) error {
		opened := false
		if !rt.cfg.NoBrowser {
			if err := openBrowser(auth.BrowserURI()); err != nil {
				rt.logger.WithError(err).Debug("could not open browser")
			} else {
				opened = true
			}
		}
		return tmpls.RenderLogin(rt.writer, templates.LoginData{
			VerificationURI:         auth.VerificationURI,
			VerificationURIComplete: auth.VerificationURIComplete,
			UserCode:                auth.UserCode,
			ExpiresIn:               auth.ExpiresIn,
			BrowserOpened:           opened,
		})
	}
}
