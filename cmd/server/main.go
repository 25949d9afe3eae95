package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"treebio-api/internal/auth"
	"treebio-api/internal/cache"
	"treebio-api/internal/config"
	"treebio-api/internal/database"
	"treebio-api/internal/handlers"
	"treebio-api/internal/logging"
	"treebio-api/internal/models"
	"treebio-api/internal/realtime"
	"treebio-api/internal/routes"
	"treebio-api/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "treebio-api",
		Short:         "Link-in-bio API server with realtime profile sync",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	v := config.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and websocket push endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			logger := logging.Init(logging.Options{Dir: cfg.Log.Dir, Level: cfg.Log.Level})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := run(ctx, cfg); err != nil {
				logger.Error("server stopped", "err", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "optional config file (yaml, toml or json)")
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		panic(err)
	}
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.Sub("server")

	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	hub := realtime.NewHub()
	backend, err := pushBackend(ctx, cfg, hub)
	if err != nil {
		return err
	}

	profiles := cache.New[string, *models.Profile](cache.Options{DefaultTTL: cfg.Cache.ProfileTTL, Capacity: 10_000})
	views := cache.New[string, struct{}](cache.Options{DefaultTTL: cfg.Cache.ViewWindow, Capacity: 100_000})
	defer profiles.Stop()
	defer views.Stop()

	router := routes.SetupRoutes(handlers.Deps{
		Config:    cfg,
		Store:     store.New(db),
		Publisher: realtime.NewPublisher(backend),
		Hub:       hub,
		Tokens:    auth.NewTokenManager(cfg.JWT),
		Profiles:  profiles,
		Views:     views,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("server starting",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"database", cfg.Database.Driver,
		"push", pushName(cfg))
	logEndpoints(logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// pushBackend builds the configured push backend. A nil Backend leaves the
// publisher unconfigured and clients fall back to local sync.
func pushBackend(ctx context.Context, cfg *config.Config, hub *realtime.Hub) (realtime.Backend, error) {
	switch cfg.Push.Backend {
	case config.PushWebsocket:
		return realtime.NewHubBackend(hub), nil
	case config.PushRedis:
		rdb, err := realtime.NewRedisClient(cfg.Push.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		b := realtime.NewRedisBackend(rdb, hub)
		go func() {
			defer rdb.Close()
			b.Run(ctx)
		}()
		select {
		case <-b.Ready():
		case <-time.After(5 * time.Second):
			logging.Sub("server").Warn("redis relay not subscribed yet, push reported unhealthy")
		case <-ctx.Done():
		}
		return b, nil
	default:
		return nil, nil
	}
}

func pushName(cfg *config.Config) string {
	if !cfg.PushConfigured() {
		return "disabled"
	}
	return cfg.Push.Backend
}

func logEndpoints(logger *slog.Logger) {
	for _, ep := range []string{
		"POST   /api/register",
		"POST   /api/login",
		"GET    /api/profile",
		"PUT    /api/profile",
		"POST   /api/links",
		"PUT    /api/links",
		"DELETE /api/links?id=",
		"POST   /api/social-links",
		"PUT    /api/social-links",
		"DELETE /api/social-links?id=",
		"GET    /api/analytics",
		"GET    /api/public/:username",
		"POST   /api/public/links/:id/click",
		"GET    /api/realtime/config",
		"GET    /api/ws",
		"GET    /l/:id",
		"GET    /health",
	} {
		logger.Debug("endpoint", "route", ep)
	}
}
