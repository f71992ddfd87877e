package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Bouza1/cloned-it/internal/config"
	"github.com/Bouza1/cloned-it/internal/http/handler"
	"github.com/Bouza1/cloned-it/internal/http/router"
	"github.com/Bouza1/cloned-it/internal/observability"
	"github.com/Bouza1/cloned-it/internal/repository"
	"github.com/Bouza1/cloned-it/internal/security"
	"github.com/Bouza1/cloned-it/internal/service"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Sessions      *service.Manager
	Observability *observability.Runtime
}

// New wires the full application: store, session manager, OAuth service,
// handlers, router, and HTTP server. Dependencies are constructed once here
// and injected; nothing is lazily initialized at request time.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	runtime, err := observability.InitRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	client, err := repository.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	store := repository.NewRedisSessionStore(client, "")

	audit := observability.NewAuditLogger(logger)
	sessions := service.NewManager(store, service.NewSystemClock(), audit, logger, service.ManagerConfig{
		TTL:            cfg.SessionTTL,
		Retention:      cfg.SessionRetention,
		SweepBatchSize: cfg.SweepBatchSize,
	})

	stateSigner := security.NewStateSigner(cfg.StateSecret, cfg.StateTTL)
	oauth := service.NewOAuthService(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL, stateSigner, sessions, audit, logger)

	authHandler := handler.NewAuthHandler(oauth, sessions, audit, logger, cfg.SessionTTL, cfg.CookieSecure, cfg.PostLoginRedirect)
	sessionHandler := handler.NewSessionHandler(sessions)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:    authHandler,
		SessionHandler: sessionHandler,
		SessionManager: sessions,
		Store:          store,
		EnableOTelHTTP: cfg.EnableOTelHTTP,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		Sessions:      sessions,
		Observability: runtime,
	}, nil
}

// Run serves HTTP until the context is cancelled or a termination signal
// arrives, then drains connections and shuts down observability.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("http shutdown", "error", err)
		}
		return a.Observability.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
