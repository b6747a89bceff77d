package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"scpulse/internal/config"
	"scpulse/internal/infrastructure"
	"scpulse/internal/pipeline"
	transport "scpulse/internal/transport/http"
)

func main() {
	configFile := flag.String("config", "scpulse.yaml", "path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("configuration rejected, server not started", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	providers, err := infrastructure.InitializeOTel(nil, logger)
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer providers.Shutdown(context.Background())

	handler := transport.NewReportHandler(logger)
	telemetry, err := transport.NewTelemetry(providers)
	if err != nil {
		logger.Error("failed to initialize HTTP telemetry", "error", err)
		os.Exit(1)
	}

	// Run the pipeline once at startup; the dashboard serves that
	// snapshot. A failed run leaves the handler empty and readers
	// get a structured REPORT_NOT_READY response.
	runCtx := infrastructure.EnsureRunID(context.Background())
	runner := pipeline.NewRunner(cfg, logger).WithTelemetry(telemetry.Metrics())
	if result, err := runner.Run(runCtx); err != nil {
		logger.ErrorContext(runCtx, "initial pipeline run failed", "error", err)
	} else {
		handler.Publish(result)
	}

	root := chi.NewRouter()
	root.Use(telemetry.Handler)
	if providers.PrometheusHTTP != nil {
		root.Method(http.MethodGet, "/metrics", providers.PrometheusHTTP)
	}
	root.Mount("/", handler.Routes())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("dashboard server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
