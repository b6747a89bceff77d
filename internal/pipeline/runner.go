package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scpulse/internal/config"
	"scpulse/internal/infrastructure"
	"scpulse/internal/ingest"
	"scpulse/internal/metrics"
	"scpulse/internal/report"
	"scpulse/internal/validation"
	"scpulse/pkg/contracts/domain"
)

// Runner executes one batch pipeline run: ingest, validate, compute,
// assemble. Each run produces exactly one immutable Report or fails
// entirely; partial metrics are never published.
type Runner struct {
	cfg       *config.Config
	logger    *slog.Logger
	tracer    trace.Tracer
	telemetry *infrastructure.PipelineMetrics
	workbook  *ingest.WorkbookReader
	catalog   *ingest.CatalogClient
	validator *validation.Validator
	engine    *metrics.Engine
}

// NewRunner wires a pipeline runner from configuration.
func NewRunner(cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		cfg:       cfg,
		logger:    logger.With("component", "pipeline"),
		tracer:    otel.Tracer(infrastructure.TracerName),
		workbook:  ingest.NewWorkbookReader(logger),
		validator: validation.New(logger),
		engine:    metrics.NewEngine(logger),
	}
	if !cfg.Ingest.CatalogDisabled {
		r.catalog = ingest.NewCatalogClient(cfg.Ingest, logger)
	}
	return r
}

// WithTelemetry attaches run counters to the runner. The spans the
// runner emits do not need it; only the meter instruments do.
func (r *Runner) WithTelemetry(pm *infrastructure.PipelineMetrics) *Runner {
	r.telemetry = pm
	return r
}

// Run executes the pipeline once.
func (r *Runner) Run(ctx context.Context) (*report.Report, error) {
	ctx = infrastructure.EnsureRunID(ctx)
	runID := infrastructure.GetRunID(ctx)
	logger := r.logger.With("run_id", runID)
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	logger.InfoContext(ctx, "pipeline run started", "workbook", r.cfg.Ingest.WorkbookPath)

	wb, err := r.readWorkbook(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "workbook ingestion failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "workbook ingestion failed")
		r.telemetry.RecordRun(ctx, "failed", time.Since(start).Seconds())
		return nil, fmt.Errorf("ingest workbook: %w", err)
	}

	// Catalog fetch failure only degrades category breakdowns, so
	// the run continues with an empty product batch.
	var rawProducts []domain.RawRecord
	if r.catalog != nil {
		catalogData, err := r.loadCatalog(ctx)
		if err != nil {
			logger.WarnContext(ctx, "catalog fetch failed, continuing without products", "error", err)
		} else {
			rawProducts = catalogData.Products
		}
	}

	_, validateSpan := r.tracer.Start(ctx, "pipeline.validate")

	// Orders validate first so the returns batch can run its
	// referential check against the accepted order set.
	orderRes := r.validator.Validate(wb.Orders, domain.KindOrder, validation.Options{})
	returnRes := r.validator.Validate(wb.Returns, domain.KindReturn, validation.Options{
		KnownOrders: validation.BuildOrderLookup(orderRes.Orders),
	})
	peopleRes := r.validator.Validate(wb.People, domain.KindPerson, validation.Options{})
	inventoryRes := r.validator.Validate(wb.Inventory, domain.KindInventory, validation.Options{})
	productRes := r.validator.Validate(rawProducts, domain.KindProduct, validation.Options{})
	validateSpan.End()

	for _, batch := range []struct {
		kind string
		res  validation.Result
	}{
		{string(domain.KindOrder), orderRes},
		{string(domain.KindReturn), returnRes},
		{string(domain.KindPerson), peopleRes},
		{string(domain.KindInventory), inventoryRes},
		{string(domain.KindProduct), productRes},
	} {
		r.telemetry.RecordValidated(ctx, batch.kind, batch.res.Accepted(), len(batch.res.Rejected))
	}

	periodStart, periodEnd, err := r.cfg.Period()
	if err != nil {
		return nil, err
	}
	asOf, err := r.cfg.AsOf()
	if err != nil {
		return nil, err
	}

	computeCtx, computeSpan := r.tracer.Start(ctx, "pipeline.compute")
	metricsReport, err := r.engine.Compute(computeCtx, metrics.Inputs{
		Orders:    orderRes.Orders,
		Returns:   returnRes.Returns,
		Inventory: inventoryRes.Inventory,
		Products:  productRes.Products,
		Config: metrics.Config{
			AsOf:                asOf,
			PeriodStart:         periodStart,
			PeriodEnd:           periodEnd,
			DefaultLeadTimeDays: r.cfg.Pipeline.DefaultLeadTimeDays,
		},
	})
	computeSpan.End()
	if err != nil {
		logger.ErrorContext(ctx, "metrics computation failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "metrics computation failed")
		r.telemetry.RecordRun(ctx, "failed", time.Since(start).Seconds())
		return nil, fmt.Errorf("compute metrics: %w", err)
	}

	accepted := map[domain.RecordKind]int{
		domain.KindOrder:     len(orderRes.Orders),
		domain.KindReturn:    len(returnRes.Returns),
		domain.KindPerson:    len(peopleRes.People),
		domain.KindInventory: len(inventoryRes.Inventory),
		domain.KindProduct:   len(productRes.Products),
	}
	var rejected []validation.RejectedRecord
	for _, res := range []validation.Result{orderRes, returnRes, peopleRes, inventoryRes, productRes} {
		rejected = append(rejected, res.Rejected...)
	}

	result := report.Assemble(runID, metricsReport, accepted, rejected)
	r.telemetry.RecordRun(ctx, "completed", time.Since(start).Seconds())

	logger.InfoContext(ctx, "pipeline run completed",
		"accepted_orders", len(orderRes.Orders),
		"accepted_returns", len(returnRes.Returns),
		"rejected_total", len(rejected),
	)
	return result, nil
}

func (r *Runner) readWorkbook(ctx context.Context) (*ingest.WorkbookData, error) {
	_, span := r.tracer.Start(ctx, "pipeline.ingest.workbook",
		trace.WithAttributes(attribute.String("path", r.cfg.Ingest.WorkbookPath)))
	defer span.End()
	wb, err := r.workbook.Read(r.cfg.Ingest.WorkbookPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
	}
	return wb, err
}

func (r *Runner) loadCatalog(ctx context.Context) (*ingest.CatalogData, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.ingest.catalog")
	defer span.End()
	data, err := r.catalog.Load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog fetch failed")
	}
	return data, err
}
