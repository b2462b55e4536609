// Package main implements the entry point for the blockstream application.
// Blockstream runs dataflow topologies of stream blocks: file sources and
// sinks, descriptor adapters, and test generators wired by element streams.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/mfkiwl/blockstream/block/file"
	"github.com/mfkiwl/blockstream/block/testers"
	"github.com/mfkiwl/blockstream/component"
	"github.com/mfkiwl/blockstream/config"
	"github.com/mfkiwl/blockstream/engine"
	"github.com/mfkiwl/blockstream/metric"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "blockstream"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// CLI settings take precedence over file settings.
	logLevel := cliCfg.LogLevel
	if logLevel == "info" && cfg.Logging.Level != "" {
		logLevel = cfg.Logging.Level
	}
	logFormat := cliCfg.LogFormat
	if logFormat == "json" && cfg.Logging.Format != "" {
		logFormat = cfg.Logging.Format
	}
	logger := setupLogger(logLevel, logFormat)
	slog.SetDefault(logger)

	slog.Info("Starting blockstream",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	metricsRegistry := metric.NewMetricsRegistry()

	registry := component.NewRegistry()
	if err := registerBlocks(registry); err != nil {
		return fmt.Errorf("registering blocks: %w", err)
	}

	deps := component.Dependencies{
		MetricsRegistry: metricsRegistry,
		Logger:          logger,
	}
	topo, err := cfg.BuildTopology(registry, deps)
	if err != nil {
		return fmt.Errorf("building topology: %w", err)
	}

	eng := engine.New(topo, cfg.EngineOptions(), logger, metricsRegistry)

	metricsPort := cliCfg.MetricsPort
	if metricsPort == 0 {
		metricsPort = cfg.MetricsPort
	}
	var metricsServer *metric.Server
	if metricsPort > 0 {
		metricsServer = metric.NewServer(metricsPort, "/metrics", metricsRegistry)
		go func() {
			slog.Info("Metrics server listening", "port", metricsPort)
			if serr := metricsServer.Start(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", serr)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}

	<-ctx.Done()
	slog.Info("Shutdown signal received", "timeout", cliCfg.ShutdownTimeout)

	done := make(chan error, 1)
	go func() { done <- eng.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("stopping engine: %w", err)
		}
	case <-time.After(cliCfg.ShutdownTimeout):
		return fmt.Errorf("shutdown timed out after %s", cliCfg.ShutdownTimeout)
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			slog.Warn("Metrics server shutdown failed", "error", err)
		}
	}

	slog.Info("Shutdown complete")
	return nil
}

// registerBlocks installs every built-in block type.
func registerBlocks(registry *component.Registry) error {
	if err := file.RegisterSource(registry); err != nil {
		return err
	}
	if err := file.RegisterSink(registry); err != nil {
		return err
	}
	if err := file.RegisterDescriptorBlocks(registry); err != nil {
		return err
	}
	return testers.Register(registry)
}
