// Package app provides the entry point shared by the almond commands:
// configuration loading, module wiring and the signal loop.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flemzord/almond/internal/config"
	"github.com/flemzord/almond/internal/core"
	"github.com/flemzord/almond/internal/security"
	"github.com/flemzord/almond/internal/telemetry"
)

const tracingShutdownTimeout = 5 * time.Second

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level
}

// LoadConfig resolves, loads and validates the configuration file. It
// returns the path actually read.
func LoadConfig(path string) (string, *config.Config, error) {
	if path == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return "", nil, err
		}
		path = resolved
	}

	cfg, err := config.Load(path)
	if err != nil {
		return "", nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return "", nil, err
	}
	return path, cfg, nil
}

// NewLogger returns the root text logger writing to stderr. Credentials
// from the environment and from cfg's module sections are redacted from
// every record.
func NewLogger(level slog.Level, cfg *config.Config) *slog.Logger {
	redactor := security.NewRedactor()
	redactor.AddLiteral(security.SecretsFromEnv(os.Environ())...)
	if cfg != nil {
		for _, node := range cfg.Modules {
			redactor.AddLiteral(security.SecretsFromYAML(&node)...)
		}
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(security.NewRedactingHandler(inner, redactor))
}

// Run loads configuration, starts all modules, and blocks until SIGINT or
// SIGTERM is received.
func Run(params RunParams) error {
	cfgPath, cfg, err := LoadConfig(params.ConfigPath)
	if err != nil {
		return err
	}
	logger := NewLogger(params.LogLevel, cfg)

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("app: creating data dir: %w", err)
	}

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), cfg.Telemetry.Tracing, params.Version)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), tracingShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("app: tracing shutdown failed", "error", err)
		}
	}()

	registry := telemetry.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(core.ServiceMetricsRegistry, registry)

	application := core.NewApp(appCtx)
	if _, err := assemble(application, appCtx, cfg, metrics); err != nil {
		return err
	}
	if err := application.Start(); err != nil {
		return err
	}
	logger.Info("almond started",
		"version", params.Version,
		"commit", params.Commit,
		"config", cfgPath,
		"data_dir", dataDir,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig.String())
	application.Stop()
	logger.Info("shutdown complete")
	return nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/almond/almond.yaml → ~/.config/almond/almond.yaml → ./almond.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "almond", "almond.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "almond", "almond.yaml"))
	}

	candidates = append(candidates, "almond.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/almond if set, otherwise ~/.local/share/almond.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "almond")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "almond")
}
