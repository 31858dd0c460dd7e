// Command grocer runs the marketplace API and the recurring order scheduler.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/bissquit/grocer/internal/app"
	"github.com/bissquit/grocer/internal/config"
	"github.com/bissquit/grocer/internal/pkg/postgres"
	"github.com/bissquit/grocer/internal/version"
)

func main() {
	configPath := flag.String("config", os.Getenv("GROCER_CONFIG"), "path to YAML config file")
	migrate := flag.Bool("migrate", false, "apply database migrations before starting")
	migrateOnly := flag.Bool("migrate-only", false, "apply database migrations and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if *migrate || *migrateOnly {
		if err := postgres.Migrate(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		if *migrateOnly {
			return
		}
	}

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to create app", "error", err)
		os.Exit(1)
	}

	build := version.Get()
	slog.Info("grocer starting", "version", build.Version, "commit", build.Commit, "go", build.GoVersion)

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		slog.Info("received signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			slog.Error("server failed", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("grocer stopped")
}
