package http

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apperrors "scpulse/internal/errors"
	"scpulse/internal/report"
)

// ReportHandler serves the most recently published run Report for
// dashboard reads. Reports are immutable, so publication is a single
// pointer swap and readers never need locks.
type ReportHandler struct {
	current atomic.Pointer[report.Report]
	logger  *slog.Logger
}

// NewReportHandler creates a new report handler.
func NewReportHandler(logger *slog.Logger) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportHandler{
		logger: logger.With(slog.String("handler", "report")),
	}
}

// Publish makes a completed run's Report visible to readers. A run
// that fails never reaches here, so readers only ever see full
// reports.
func (h *ReportHandler) Publish(r *report.Report) {
	h.current.Store(r)
	h.logger.Info("report published", slog.String("run_id", r.RunID))
}

// Routes returns the dashboard router.
func (h *ReportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Render(w, r, apperrors.ErrNotFound)
	})

	r.Get("/healthz", h.HealthCheck)
	r.Route("/api/report", func(r chi.Router) {
		r.Get("/", h.GetReport)
		r.Get("/metrics", h.GetMetrics)
		r.Get("/rejections", h.GetRejections)
	})
	return r
}

// HealthCheck handles GET /healthz
func (h *ReportHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// GetReport handles GET /api/report
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	current := h.current.Load()
	if current == nil {
		render.Render(w, r, apperrors.ErrNoReport)
		return
	}
	render.JSON(w, r, current)
}

// GetMetrics handles GET /api/report/metrics
func (h *ReportHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	current := h.current.Load()
	if current == nil {
		render.Render(w, r, apperrors.ErrNoReport)
		return
	}
	render.JSON(w, r, current.Metrics)
}

// GetRejections handles GET /api/report/rejections
func (h *ReportHandler) GetRejections(w http.ResponseWriter, r *http.Request) {
	current := h.current.Load()
	if current == nil {
		render.Render(w, r, apperrors.ErrNoReport)
		return
	}
	render.JSON(w, r, current.Validation)
}
