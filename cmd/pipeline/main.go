package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"scpulse/internal/config"
	"scpulse/internal/exporter"
	"scpulse/internal/infrastructure"
	"scpulse/internal/pipeline"
)

func main() {
	configFile := flag.String("config", "scpulse.yaml", "path to YAML configuration file")
	workbook := flag.String("workbook", "", "override workbook path from config")
	outDir := flag.String("out", "", "override CSV output directory from config")
	noCatalog := flag.Bool("no-catalog", false, "skip the product catalog API fetch")
	traceRun := flag.Bool("trace", false, "emit OpenTelemetry spans for the run to stdout")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("configuration rejected, run not started", "error", err)
		os.Exit(1)
	}
	if *workbook != "" {
		cfg.Ingest.WorkbookPath = *workbook
	}
	if *outDir != "" {
		cfg.Pipeline.OutputDir = *outDir
	}
	if *noCatalog {
		cfg.Ingest.CatalogDisabled = true
	}

	if _, err := infrastructure.InitializeLogger(cfg.Logging); err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	ctx := infrastructure.EnsureRunID(context.Background())
	logger := infrastructure.LoggerWithContext(ctx)

	if *traceRun {
		otelCfg := infrastructure.DefaultOTelConfig()
		otelCfg.MetricExporter = "none"
		providers, err := infrastructure.InitializeOTel(otelCfg, logger)
		if err != nil {
			logger.Error("failed to initialize telemetry", "error", err)
			os.Exit(1)
		}
		defer providers.Shutdown(context.Background())
	}

	runner := pipeline.NewRunner(cfg, logger)
	result, err := runner.Run(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "pipeline run failed", "error", err)
		os.Exit(1)
	}

	writer := exporter.NewCSVWriter(logger)
	if err := writer.WriteReport(cfg.Pipeline.OutputDir, result); err != nil {
		logger.ErrorContext(ctx, "report export failed", "error", err)
		os.Exit(1)
	}

	logger.InfoContext(ctx, "report exported",
		"run_id", result.RunID,
		"output_dir", cfg.Pipeline.OutputDir,
	)
}
