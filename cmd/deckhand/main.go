package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deckhand/deckhand/internal/artifact"
	"github.com/deckhand/deckhand/internal/builder"
	"github.com/deckhand/deckhand/internal/config"
	"github.com/deckhand/deckhand/internal/deployment"
	"github.com/deckhand/deckhand/internal/history"
	"github.com/deckhand/deckhand/internal/httpapi"
	"github.com/deckhand/deckhand/internal/source"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file")
	appsFlag := flag.String("app", "", "Colon-separated startup deployment order, e.g. app1:app2")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *appsFlag != "" {
		cfg.StartupApps = deployment.ParseStartupOrder(*appsFlag)
	}

	store, err := artifact.NewStore(cfg.AppsDir)
	if err != nil {
		logger.Error("Failed to open apps directory", "error", err)
		os.Exit(1)
	}

	service := deployment.NewService(store, builder.New(logger), logger, deployment.Config{
		PollInterval: cfg.PollInterval,
		StartupApps:  cfg.StartupApps,
	})

	var journal history.Store
	switch cfg.Store.Backend {
	case "postgres":
		journal, err = history.NewPostgresStore(context.Background(), cfg.Store.PostgresDSN)
		if err != nil {
			logger.Error("Failed to initialize postgres store", "error", err)
			os.Exit(1)
		}
		logger.Info("Using PostgreSQL event journal")
	case "sqlite":
		journal, err = history.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			logger.Error("Failed to initialize sqlite store", "error", err)
			os.Exit(1)
		}
		logger.Info("Using SQLite event journal")
	default:
		logger.Info("Event journal disabled")
	}
	if journal != nil {
		defer journal.Close()
		service.AddListener(history.NewRecorder(journal, logger))
	}

	if err := service.Start(); err != nil {
		logger.Error("Failed to start deployment service", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Source.RepoURL != "" {
		gitSource := source.NewGitSource(store, logger, cfg.Source.RepoURL, cfg.Source.Branch, cfg.Source.Path, cfg.Source.Interval)
		go gitSource.Run(ctx)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	apiHandler := httpapi.NewHandler(service, journal, logger)
	r.Route("/api/v1", apiHandler.Routes)

	server := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	go func() {
		logger.Info("Starting control API", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
	service.Stop()
}
