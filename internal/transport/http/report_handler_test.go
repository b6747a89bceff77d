package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scpulse/internal/metrics"
	"scpulse/internal/report"
)

func testReport(runID string) *report.Report {
	m := &metrics.MetricsReport{
		AsOf: time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		Sales: metrics.SalesStats{
			TotalSales: metrics.Computed(35),
		},
	}
	return report.Assemble(runID, m, nil, nil)
}

func TestReportEndpointsBeforePublish(t *testing.T) {
	handler := NewReportHandler(nil)
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)

	for _, path := range []string{"/api/report", "/api/report/metrics", "/api/report/rejections"} {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "path %s", path)
		assert.Equal(t, "REPORT_NOT_READY", body["error_code"], "path %s", path)
	}
}

func TestGetReportAfterPublish(t *testing.T) {
	handler := NewReportHandler(nil)
	handler.Publish(testReport("run-1"))

	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/api/report")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		RunID   string `json:"run_id"`
		Metrics struct {
			Sales struct {
				TotalSales metrics.Measure `json:"total_sales"`
			} `json:"sales"`
		} `json:"metrics"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "run-1", body.RunID)
	assert.Equal(t, metrics.StatusComputed, body.Metrics.Sales.TotalSales.Status)
	assert.Equal(t, 35.0, body.Metrics.Sales.TotalSales.Value)
}

func TestPublishSwapsReports(t *testing.T) {
	handler := NewReportHandler(nil)
	handler.Publish(testReport("run-1"))
	handler.Publish(testReport("run-2"))

	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/api/report")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "run-2", body["run_id"])
}

func TestUnknownRouteReturnsStructuredError(t *testing.T) {
	handler := NewReportHandler(nil)
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/api/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body["error_code"])
}

func TestHealthCheck(t *testing.T) {
	handler := NewReportHandler(nil)
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
