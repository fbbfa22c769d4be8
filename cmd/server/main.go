package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	specpkg "github.com/daap14/affconsole/api"
	"github.com/daap14/affconsole/internal/api"
	"github.com/daap14/affconsole/internal/config"
	"github.com/daap14/affconsole/internal/logging"
	"github.com/daap14/affconsole/internal/organization"
	"github.com/daap14/affconsole/internal/permission"
	"github.com/daap14/affconsole/internal/profile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(os.Stdout, cfg.LogLevel)

	policy, err := permission.LoadFile(cfg.PermissionsFile)
	if err != nil {
		slog.Error("failed to load permission policy", "error", err, "path", cfg.PermissionsFile)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Warn("database not reachable at startup; health will report degraded", "error", err)
	}

	router := api.NewRouter(api.RouterDeps{
		DBPinger:      pool,
		Version:       cfg.Version,
		OpenAPISpec:   specpkg.OpenAPISpec,
		JWTSecret:     []byte(cfg.JWTSecret),
		Profiles:      profile.NewService(profile.NewRepository(pool), policy),
		Organizations: organization.NewRepository(pool),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting profile service", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		pool.Close()
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		return
	}

	slog.Info("server stopped gracefully")
}
