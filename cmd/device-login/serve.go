package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wrale/oauth2-device-client/cmd/device-login/handlers/health"
	"github.com/wrale/oauth2-device-client/cmd/device-login/handlers/logout"
	tokenhandler "github.com/wrale/oauth2-device-client/cmd/device-login/handlers/token"
	"github.com/wrale/oauth2-device-client/internal/session"
	"github.com/wrale/oauth2-device-client/internal/token"
)

// agent serializes access to a session controller shared by request handlers
type agent struct {
	mu     sync.Mutex
	ctrl   *session.Controller
	logger log.FieldLogger
}

// CheckHealth implements health.Checker
func (a *agent) CheckHealth(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ctrl.CheckHealth(ctx)
}

// Headers implements token.Source. The cached session is restored when no
// unexpired token is held, which also picks up logins made by the CLI.
func (a *agent) Headers(ctx context.Context) (token.AuthHeaders, *token.AccessToken, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if tok := a.ctrl.Token(); tok != nil && !tok.IsExpired(a.ctrl.Now()) {
		return a.ctrl.AuthHeaders(), tok, nil
	}
	headers, err := a.ctrl.RestoreSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	return headers, a.ctrl.Token(), nil
}

// Logout implements logout.Logouter
func (a *agent) Logout(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctrl.Token() == nil {
		if _, err := a.ctrl.RestoreSession(ctx); err != nil {
			a.logger.WithError(err).Warn("restoring session before logout")
		}
	}
	return a.ctrl.Logout(ctx)
}

type server struct {
	router *chi.Mux
	agent  *agent
}

func newServer(ctrl *session.Controller, logger *log.Logger) *server {
	srv := &server{
		router: chi.NewRouter(),
		agent:  &agent{ctrl: ctrl, logger: logger},
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true}))
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(middleware.Timeout(30 * time.Second))

	srv.routes()
	return srv
}

func (s *server) routes() {
	s.router.Method(http.MethodGet, "/health", health.New(s.agent).WithVersion(Version))
	s.router.Method(http.MethodGet, "/token", tokenhandler.New(s.agent))
	s.router.Method(http.MethodPost, "/logout", logout.New(s.agent))
}

func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session's authorization headers to local processes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				rt.cfg.ListenAddr = addr
			}
			ctrl, _, err := rt.newController()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), rt.cfg.ListenAddr, newServer(ctrl, rt.logger), rt.logger)
		},
	}

	cmd.Flags().StringVar(&addr, "listen", "", "Listen address (default from config, 127.0.0.1:8765)")
	return cmd
}

// serve runs the HTTP server until ctx is done or a termination signal arrives
func serve(ctx context.Context, addr string, srv *server, logger *log.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("agent listening")
		serverErrors <- httpServer.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("starting server: %w", err)

	case <-ctx.Done():
		logger.Info("starting shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("shutting down server")
			if err := httpServer.Close(); err != nil {
				return fmt.Errorf("closing server: %w", err)
			}
		}
		return nil
	}
}
