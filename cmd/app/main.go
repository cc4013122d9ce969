package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // For pprof profiling
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trade_core/internal/app"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config")
	flag.Parse()

	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap(*configPath)
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger := bootstrap.Logger
	cfg := bootstrap.Config

	// 2. Pprof Server (DefaultServeMux, localhost by default)
	go func() {
		logger.Info("Pprof server started", slog.String("addr", cfg.Server.PprofAddr))
		if err := http.ListenAndServe(cfg.Server.PprofAddr, nil); err != nil {
			logger.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 3. Metrics Server
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(bootstrap.Registry, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("Metrics server started", slog.String("addr", cfg.Server.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", slog.Any("error", err))
		}
	}()

	// 4. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Adapters
	bootstrap.ConnectAdapters(ctx)

	// 6. Strategies
	if err := bootstrap.StartStrategies(); err != nil {
		logger.Error("Failed to start strategies", slog.Any("error", err))
	}
	logger.InfoContext(ctx, "Trade core fully operational. Press Ctrl+C to exit.")

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Metrics server shutdown failed", slog.Any("error", err))
	}
	if err := bootstrap.Shutdown(); err != nil {
		logger.Error("Main engine shutdown failed", slog.Any("error", err))
	}
	if report := bootstrap.Engine.ShutdownReport(); !report.Clean() {
		logger.Warn("Event bus left goroutines running",
			slog.Bool("dispatch_stopped", report.DispatchStopped),
			slog.Bool("timer_stopped", report.TimerStopped))
		os.Exit(1)
	}
}
