package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"scpulse/internal/config"
	"scpulse/internal/metrics"
	"scpulse/internal/validation"
	"scpulse/pkg/contracts/domain"
)

func writeWorkbook(t *testing.T) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheets := map[string][][]any{
		"Orders": {
			{"Order ID", "Order Date", "Ship Date", "Customer ID", "Product ID", "Quantity", "Unit Price", "Status"},
			{"O1", "2025-03-01", "2025-03-04", "C1", "1", "2", "10", "Shipped"},
			{"O2", "2025-03-02", "2025-03-07", "C2", "2", "1", "5", "Delivered"},
			{"O3", "2025-03-03", "", "C3", "1", "1", "10", "Pending"},
			{"O4", "2025-03-04", "2025-03-02", "C4", "2", "1", "5", "Shipped"}, // ship before order
		},
		"Returns": {
			{"Return ID", "Order ID", "Return Date", "Reason", "Quantity Returned"},
			{"R1", "O1", "2025-03-10", "damaged", "1"},
			{"R2", "GHOST", "2025-03-11", "lost", "1"}, // orphan
		},
		"People": {
			{"Person ID", "Role", "Region"},
			{"P1", "Customer", "West"},
		},
		"Inventory": {
			{"Product ID", "On Hand Quantity", "Period Start", "Period End", "Units Sold In Period", "Units Received In Period", "On Hand Start", "On Hand End"},
			{"1", "60", "2025-03-01", "2025-03-31", "100", "30", "40", "60"},
		},
	}
	for name, rows := range sheets {
		_, err := f.NewSheet(name)
		require.NoError(t, err)
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	require.NoError(t, f.DeleteSheet("Sheet1"))

	path := filepath.Join(t.TempDir(), "supply_chain.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func catalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": 1, "title": "Widget", "price": 10, "category": "electronics"},
			{"id": 2, "title": "Socks", "price": 5, "category": "apparel"}
		]`))
	})
	mux.HandleFunc("/products/categories", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["electronics", "apparel"]`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, workbook, catalogURL string) *config.Config {
	t.Helper()
	t.Setenv("SCP_PIPELINE_PERIOD_START", "2025-03-01")
	t.Setenv("SCP_PIPELINE_PERIOD_END", "2025-03-31")
	t.Setenv("SCP_INGEST_WORKBOOK_PATH", workbook)
	if catalogURL != "" {
		t.Setenv("SCP_INGEST_CATALOG_BASE_URL", catalogURL)
	} else {
		t.Setenv("SCP_INGEST_CATALOG_DISABLED", "true")
	}

	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t, writeWorkbook(t), catalogServer(t).URL)

	runner := NewRunner(cfg, nil)
	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.RunID)

	// O4 (ship before order) rejected, R2 (orphan) rejected.
	byKind := make(map[domain.RecordKind][2]int)
	for _, k := range result.Validation.Kinds {
		byKind[k.Kind] = [2]int{k.Accepted, k.Rejected}
	}
	assert.Equal(t, [2]int{3, 1}, byKind[domain.KindOrder])
	assert.Equal(t, [2]int{1, 1}, byKind[domain.KindReturn])
	assert.Equal(t, [2]int{1, 0}, byKind[domain.KindPerson])
	assert.Equal(t, [2]int{2, 0}, byKind[domain.KindProduct])
	assert.Equal(t, [2]int{1, 0}, byKind[domain.KindInventory])

	reasons := make(map[string]int)
	for _, rc := range result.Validation.TopReasons {
		reasons[rc.Reason] = rc.Count
	}
	assert.Equal(t, 1, reasons[validation.ReasonUnknownOrderRef])
	assert.Equal(t, 1, reasons[validation.ReasonShipBeforeOrder])

	m := result.Metrics
	require.NotNil(t, m)

	// Lead times 3 and 5 from the two shipped orders.
	avg, ok := m.LeadTime.Average.Float()
	require.True(t, ok)
	assert.InDelta(t, 4.0, avg, 1e-9)

	// One counted return over two qualifying orders.
	rate, ok := m.Returns.Rate.Float()
	require.True(t, ok)
	assert.InDelta(t, 0.5, rate, 1e-9)

	// Sales: O1 = 20, O2 = 5.
	total, ok := m.Sales.TotalSales.Float()
	require.True(t, ok)
	assert.InDelta(t, 25.0, total, 1e-9)

	// Category breakdown proves the catalog products were joined in.
	require.NotEmpty(t, m.Sales.ByCategory)
	assert.Equal(t, "apparel", m.Sales.ByCategory[0].Category)

	assert.Equal(t, metrics.StatusComputed, m.Turnover.Average.Status)

	// As-of comes from config, never the clock.
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), result.GeneratedAt)
}

func TestRunWithoutCatalog(t *testing.T) {
	cfg := testConfig(t, writeWorkbook(t), "")

	runner := NewRunner(cfg, nil)
	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	// No products: sales still compute, categories collapse to
	// uncategorized.
	total, ok := result.Metrics.Sales.TotalSales.Float()
	require.True(t, ok)
	assert.InDelta(t, 25.0, total, 1e-9)
	require.Len(t, result.Metrics.Sales.ByCategory, 1)
	assert.Equal(t, "uncategorized", result.Metrics.Sales.ByCategory[0].Category)
}

func TestRunFailsOnMissingWorkbook(t *testing.T) {
	cfg := testConfig(t, filepath.Join(t.TempDir(), "absent.xlsx"), "")

	runner := NewRunner(cfg, nil)
	_, err := runner.Run(context.Background())
	require.Error(t, err)
}

func TestRunEmitsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	cfg := testConfig(t, writeWorkbook(t), "")

	runner := NewRunner(cfg, nil)
	_, err := runner.Run(context.Background())
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, span := range recorder.Ended() {
		names[span.Name()] = true
	}
	assert.True(t, names["pipeline.run"])
	assert.True(t, names["pipeline.ingest.workbook"])
	assert.True(t, names["pipeline.validate"])
	assert.True(t, names["pipeline.compute"])
}

func TestRunSurvivesCatalogOutage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	cfg := testConfig(t, writeWorkbook(t), server.URL)

	runner := NewRunner(cfg, nil)
	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	// Only category enrichment degrades.
	total, ok := result.Metrics.Sales.TotalSales.Float()
	require.True(t, ok)
	assert.InDelta(t, 25.0, total, 1e-9)
}
