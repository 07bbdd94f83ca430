// Package config loads daemon configuration from an optional TOML file
// with DECKHAND_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/deckhand/deckhand/internal/deployment"
)

// StoreConfig selects the event journal backend.
type StoreConfig struct {
	Backend     string // "sqlite" (default), "postgres", or "none"
	SQLitePath  string
	PostgresDSN string
}

// SourceConfig configures the optional git artifact source.
type SourceConfig struct {
	RepoURL  string
	Branch   string
	Path     string
	Interval time.Duration
}

// Config is the daemon configuration.
type Config struct {
	AppsDir      string
	PollInterval time.Duration
	StartupApps  []string
	ListenAddr   string
	Store        StoreConfig
	Source       SourceConfig
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		AppsDir:      "./apps",
		PollInterval: deployment.DefaultPollInterval,
		ListenAddr:   ":8080",
		Store: StoreConfig{
			Backend:    "sqlite",
			SQLitePath: "./deckhand.db",
		},
	}
}

type fileConfig struct {
	AppsDir      string `toml:"apps_dir"`
	PollInterval string `toml:"poll_interval"`
	StartupApps  string `toml:"startup_apps"`
	ListenAddr   string `toml:"listen_addr"`

	Store struct {
		Backend     string `toml:"backend"`
		SQLitePath  string `toml:"sqlite_path"`
		PostgresDSN string `toml:"postgres_dsn"`
	} `toml:"store"`

	Source struct {
		RepoURL  string `toml:"repo_url"`
		Branch   string `toml:"branch"`
		Path     string `toml:"path"`
		Interval string `toml:"interval"`
	} `toml:"source"`
}

// Load reads the TOML file at path (skipped when path is empty) and then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		var raw fileConfig
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}

		if meta.IsDefined("apps_dir") {
			cfg.AppsDir = strings.TrimSpace(raw.AppsDir)
		}
		if meta.IsDefined("poll_interval") {
			d, err := time.ParseDuration(strings.TrimSpace(raw.PollInterval))
			if err != nil {
				return Config{}, fmt.Errorf("parse poll_interval: %w", err)
			}
			cfg.PollInterval = d
		}
		if meta.IsDefined("startup_apps") {
			cfg.StartupApps = deployment.ParseStartupOrder(raw.StartupApps)
		}
		if meta.IsDefined("listen_addr") {
			cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
		}
		if meta.IsDefined("store", "backend") {
			cfg.Store.Backend = strings.TrimSpace(raw.Store.Backend)
		}
		if meta.IsDefined("store", "sqlite_path") {
			cfg.Store.SQLitePath = strings.TrimSpace(raw.Store.SQLitePath)
		}
		if meta.IsDefined("store", "postgres_dsn") {
			cfg.Store.PostgresDSN = strings.TrimSpace(raw.Store.PostgresDSN)
		}
		if meta.IsDefined("source", "repo_url") {
			cfg.Source.RepoURL = strings.TrimSpace(raw.Source.RepoURL)
		}
		if meta.IsDefined("source", "branch") {
			cfg.Source.Branch = strings.TrimSpace(raw.Source.Branch)
		}
		if meta.IsDefined("source", "path") {
			cfg.Source.Path = strings.TrimSpace(raw.Source.Path)
		}
		if meta.IsDefined("source", "interval") {
			d, err := time.ParseDuration(strings.TrimSpace(raw.Source.Interval))
			if err != nil {
				return Config{}, fmt.Errorf("parse source.interval: %w", err)
			}
			cfg.Source.Interval = d
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	switch cfg.Store.Backend {
	case "sqlite", "postgres", "none":
	default:
		return Config{}, fmt.Errorf("invalid store backend: %s", cfg.Store.Backend)
	}
	if cfg.Store.Backend == "postgres" && cfg.Store.PostgresDSN == "" {
		return Config{}, fmt.Errorf("postgres_dsn is required for the postgres backend")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if value := strings.TrimSpace(os.Getenv("DECKHAND_APPS_DIR")); value != "" {
		cfg.AppsDir = value
	}
	if value := strings.TrimSpace(os.Getenv("DECKHAND_POLL_INTERVAL")); value != "" {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid DECKHAND_POLL_INTERVAL: %s", value)
		}
		if parsed > 0 {
			cfg.PollInterval = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("DECKHAND_STARTUP_APPS")); value != "" {
		cfg.StartupApps = deployment.ParseStartupOrder(value)
	}
	if value := strings.TrimSpace(os.Getenv("DECKHAND_LISTEN_ADDR")); value != "" {
		cfg.ListenAddr = value
	}
	if value := strings.TrimSpace(os.Getenv("DECKHAND_DB_TYPE")); value != "" {
		cfg.Store.Backend = value
	}
	if value := strings.TrimSpace(os.Getenv("DECKHAND_DB_PATH")); value != "" {
		cfg.Store.SQLitePath = value
	}
	if value := strings.TrimSpace(os.Getenv("DECKHAND_DB_CONNECTION_STRING")); value != "" {
		cfg.Store.PostgresDSN = value
	}
	return nil
}
