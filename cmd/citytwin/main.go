// Package main implements the entry point for the CityTwin aggregator.
// The aggregator consumes city telemetry streams from NATS, maintains the
// latest-state view of the city, and publishes periodic digital-twin
// snapshots to JetStream.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/c360/citytwin/config"
	"github.com/c360/citytwin/service"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "citytwin"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Local .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfiguration(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	slog.Info("Starting CityTwin aggregator",
		"version", Version,
		"config_path", cliCfg.ConfigPath,
		"city", cfg.City.CityID)

	aggregator, err := service.New(cfg, logger,
		service.WithStopTimeout(cliCfg.ShutdownTimeout))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return aggregator.Run(ctx)
}

func loadConfiguration(path string) (*config.Config, error) {
	loader := config.NewLoader()
	loader.EnableValidation(true)
	if path == "" {
		return loader.Load()
	}
	return loader.LoadFile(path)
}
