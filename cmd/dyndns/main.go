// dyndns is a dynamic DNS update server. Clients call GET /update with their
// credentials and current addresses, and dyndns points the A/AAAA records of
// the hosts they own at those addresses through the configured DNS provider.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"gitlab.bluewillows.net/root/dyndns/internal/auth"
	"gitlab.bluewillows.net/root/dyndns/internal/config"
	"gitlab.bluewillows.net/root/dyndns/internal/health"
	"gitlab.bluewillows.net/root/dyndns/internal/metrics"
	"gitlab.bluewillows.net/root/dyndns/internal/server"
	"gitlab.bluewillows.net/root/dyndns/internal/updater"
	"gitlab.bluewillows.net/root/dyndns/pkg/provider"
	"gitlab.bluewillows.net/root/dyndns/providers/cloudflare"
	"gitlab.bluewillows.net/root/dyndns/providers/dnsmasq"
	"gitlab.bluewillows.net/root/dyndns/providers/hetzner"
	"gitlab.bluewillows.net/root/dyndns/providers/mock"
	"gitlab.bluewillows.net/root/dyndns/providers/pihole"
	"gitlab.bluewillows.net/root/dyndns/providers/rfc2136"
	"gitlab.bluewillows.net/root/dyndns/providers/technitium"
	"gitlab.bluewillows.net/root/dyndns/providers/webhook"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-01-03"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("dyndns", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the config file (.yaml, .yml, .toml or legacy .json); defaults to $DYNDNS_CONFIG or config.yaml")
	check := fs.Bool("check", false, "validate the configuration and exit")
	hashPassword := fs.String("hash-password", "", "print a bcrypt hash of the given password and exit")
	showVersion := fs.Bool("version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Printf("dyndns %s (built %s, %s)\n", Version, BuildDate, runtime.Version())
		return nil
	}

	if *hashPassword != "" {
		hash, err := auth.HashPassword(*hashPassword)
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	}

	registry := provider.NewRegistry(slog.Default())
	registerProviderFactories(registry)

	// Load configuration first (fail fast)
	path := config.FilePath(*configPath)
	cfg, err := config.Load(path, registry.Types())
	if err != nil {
		return fmt.Errorf("loading configuration from %s: %w", path, err)
	}

	if *check {
		fmt.Printf("configuration OK: %d users, providers %v\n", len(cfg.Users), cfg.ProviderTypes())
		return nil
	}

	// Set up structured logging
	logger := setupLogger(cfg.Global.LogLevel, cfg.Global.LogFormat)
	slog.SetDefault(logger)

	metrics.SetBuildInfo(Version, runtime.Version())

	logger.Info("dyndns starting",
		slog.String("version", Version),
		slog.String("build_date", BuildDate),
		slog.String("go_version", runtime.Version()),
	)

	registry = provider.NewRegistry(logger)
	registerProviderFactories(registry)
	if err := createProviderInstances(registry, cfg, logger); err != nil {
		return fmt.Errorf("creating provider instances: %w", err)
	}

	dispatcher := updater.New(registry,
		updater.WithLogger(logger),
		updater.WithRequestTimeout(cfg.Global.RequestTimeout),
		updater.WithMaxConcurrentUpdates(cfg.Global.MaxConcurrentUpdates),
	)

	authenticator := auth.New(cfg.AuthUsers(), auth.WithLogger(logger))

	gin.SetMode(gin.ReleaseMode)
	updateServer := server.New(cfg.Global.Listen, authenticator, dispatcher, server.WithLogger(logger))
	if err := updateServer.Start(); err != nil {
		return fmt.Errorf("starting update server: %w", err)
	}

	var healthServer *health.Server
	if cfg.Global.HealthPort > 0 {
		healthServer = health.New(cfg.Global.HealthPort, health.WithLogger(logger))
		checks := healthServer.RegisterProviders(registry, cfg.Domains())
		if err := healthServer.Start(); err != nil {
			_ = updateServer.Shutdown(context.Background())
			return fmt.Errorf("starting health server: %w", err)
		}
		logger.Debug("registered provider readiness checks", slog.Int("checks", checks))
	}

	logger.Info("dyndns initialized, accepting updates",
		slog.String("listen", cfg.Global.Listen),
		slog.Int("users", len(cfg.Users)),
		slog.Any("providers", registry.Types()),
		slog.Int("health_port", cfg.Global.HealthPort),
	)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("received shutdown signal", slog.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := updateServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("update server shutdown: %w", err))
	}
	if healthServer != nil {
		if err := healthServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("health server shutdown: %w", err))
		}
	}

	logger.Info("dyndns shutdown complete")
	return errors.Join(errs...)
}

func setupLogger(level, format string) *slog.Logger {
	logLevel := parseLogLevel(level)

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func registerProviderFactories(registry *provider.Registry) {
	registry.RegisterFactory(hetzner.ProviderType, hetzner.Factory())
	registry.RegisterFactory(cloudflare.ProviderType, cloudflare.Factory())
	registry.RegisterFactory(technitium.ProviderType, technitium.Factory())
	registry.RegisterFactory(rfc2136.ProviderType, rfc2136.Factory())
	registry.RegisterFactory(dnsmasq.ProviderType, dnsmasq.Factory())
	registry.RegisterFactory(webhook.ProviderType, webhook.Factory())
	registry.RegisterFactory(pihole.ProviderType, pihole.Factory())
	registry.RegisterFactory(mock.ProviderType, mock.Factory())
}

// createProviderInstances builds one provider per type referenced by a domain.
func createProviderInstances(registry *provider.Registry, cfg *config.Config, logger *slog.Logger) error {
	for _, typeName := range cfg.ProviderTypes() {
		fc := cfg.FactoryConfig(typeName, logger)
		if fc.HTTP.UserAgent == "" {
			fc.HTTP.UserAgent = "dyndns/" + Version
		}
		if err := registry.CreateInstance(fc); err != nil {
			return fmt.Errorf("creating provider %s: %w", typeName, err)
		}
	}
	return nil
}
