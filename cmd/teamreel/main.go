// Package main is the entry point for the TeamReel access control
// service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teamreel/teamreel/internal/config"
	"github.com/teamreel/teamreel/internal/observability"
	"github.com/teamreel/teamreel/internal/server"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig(flags.configPath, logger)
	run(cfg, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("TEAMREEL_CONFIG_PATH", "configs/teamreel.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("TEAMREEL_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("TEAMREEL_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("teamreel version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadConfig loads and validates the configuration. The signing secret
// may come from the environment instead of the file.
func loadConfig(configPath string, logger observability.Logger) *config.Config {
	logger.Info("starting teamreel",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	applySecretOverride(cfg)

	return cfg
}

// applySecretOverride lets the environment supply the signing secret so
// it never has to live in the configuration file.
func applySecretOverride(cfg *config.Config) {
	if secret := os.Getenv("TEAMREEL_SIGNING_SECRET"); secret != "" {
		cfg.Session.SigningSecret = secret
	}
}

// run starts the server and blocks until a termination signal.
func run(cfg *config.Config, configPath string, logger observability.Logger) {
	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize server", observability.Error(err))
	}

	ctx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()

	watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
		applySecretOverride(next)
		if rerr := srv.Reload(next); rerr != nil {
			logger.Error("configuration reload rejected", observability.Error(rerr))
		}
	}, config.WithWatcherLogger(logger))
	if err != nil {
		logger.Fatal("failed to create config watcher", observability.Error(err))
	}
	if err := watcher.Start(ctx); err != nil {
		logger.Fatal("failed to start config watcher", observability.Error(err))
	}
	defer func() { _ = watcher.Stop() }()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", observability.Error(err))
		}
	case sig := <-sigCh:
		logger.Info("shutting down", observability.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown incomplete", observability.Error(err))
	}

	logger.Info("stopped")
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
