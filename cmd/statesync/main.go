// Package main implements the entry point for the statesync service: a
// small server that hosts observable state stores, mirrors them to a NATS
// JetStream backed document, and exposes them over an HTTP API.
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

	"golang.org/x/sync/errgroup"

	"github.com/IEBH/statesync/engine"
	"github.com/IEBH/statesync/host/natshost"
	"github.com/IEBH/statesync/metric"
	"github.com/IEBH/statesync/store"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "statesync"
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
	cliCfg := parseFlags()

	if cliCfg.ShowVersion {
		fmt.Printf("%s %s (build %s)\n", appName, Version, BuildTime)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	if err := validateFlags(cliCfg); err != nil {
		return err
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.Validate {
		logger.Info("Configuration is valid")
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Observable stores declared in the config
	registry := store.NewRegistry()
	for _, spec := range cfg.Stores {
		if err := registry.Register(store.NewMapStore(spec.ID, spec.Initial)); err != nil {
			return fmt.Errorf("register store %s: %w", spec.ID, err)
		}
	}

	metrics := metric.NewRegistry()

	eng, err := syncengine.New(syncengine.Config{
		KeyPrefix:        cfg.Engine.KeyPrefix,
		PerUserState:     cfg.Engine.PerUserState,
		AutoSaveInterval: cfg.Engine.AutoSaveInterval,
	}, registry,
		syncengine.WithLogger(logger),
		syncengine.WithMetricsRegistry(metrics),
	)
	if err != nil {
		return err
	}
	defer eng.Shutdown()

	h, err := natshost.Connect(ctx, cfg.natsConfig(), logger)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	if err := eng.BindHost(h); err != nil {
		return err
	}
	eng.MarkHostReady()

	api := newAPIServer(engineHandle(eng), registry, metrics, logger)
	server := &http.Server{
		Addr:    cfg.HTTP.Listen,
		Handler: api.handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api server listening", "addr", cfg.HTTP.Listen)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer shutdownCancel()

		// Flush unsaved state before the listener closes
		eng.SaveNow(shutdownCtx)
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
