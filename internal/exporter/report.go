package exporter

import (
	"fmt"
	"path/filepath"
	"strconv"

	"scpulse/internal/metrics"
	"scpulse/internal/report"
)

// WriteReport flattens a run report into the warehouse CSV layout:
// one row per metric-name/value pair in metrics.csv, plus a
// validation summary table in validation_summary.csv.
func (w *CSVWriter) WriteReport(dir string, r *report.Report) error {
	metricsPath := filepath.Join(dir, "metrics.csv")
	if err := w.WriteCSV(metricsPath, WriteOptions{
		Headers:   []string{"run_id", "metric", "status", "value", "reason"},
		Records:   metricRows(r),
		BOMPrefix: true,
	}); err != nil {
		return fmt.Errorf("write metrics csv: %w", err)
	}

	summaryPath := filepath.Join(dir, "validation_summary.csv")
	if err := w.WriteCSV(summaryPath, WriteOptions{
		Headers:   []string{"run_id", "kind", "accepted", "rejected"},
		Records:   summaryRows(r),
		BOMPrefix: true,
	}); err != nil {
		return fmt.Errorf("write validation summary csv: %w", err)
	}
	return nil
}

func metricRows(r *report.Report) [][]string {
	m := r.Metrics
	var rows [][]string
	add := func(name string, measure metrics.Measure) {
		value := ""
		if measure.IsComputed() {
			value = strconv.FormatFloat(measure.Value, 'f', -1, 64)
		}
		rows = append(rows, []string{r.RunID, name, string(measure.Status), value, measure.Reason})
	}

	add("lead_time.average", m.LeadTime.Average)
	add("lead_time.median", m.LeadTime.Median)
	add("lead_time.min", m.LeadTime.Min)
	add("lead_time.max", m.LeadTime.Max)
	add("lead_time.std_dev", m.LeadTime.StdDev)
	add("lead_time.excellent_ratio", m.LeadTime.ExcellentRatio)
	add("lead_time.good_ratio", m.LeadTime.GoodRatio)
	add("lead_time.poor_ratio", m.LeadTime.PoorRatio)
	add("returns.rate", m.Returns.Rate)
	add("fill_rate.aggregate", m.FillRate.Aggregate)
	add("fill_rate.excellent_ratio", m.FillRate.ExcellentRatio)
	add("fill_rate.good_ratio", m.FillRate.GoodRatio)
	add("fill_rate.poor_ratio", m.FillRate.PoorRatio)
	add("turnover.average", m.Turnover.Average)
	add("turnover.average_days_on_hand", m.Turnover.AverageDaysOnHand)
	add("stockout.at_risk_count", m.Stockout.AtRiskCount)
	add("sales.total", m.Sales.TotalSales)
	add("sales.average", m.Sales.AverageSale)

	for _, p := range m.FillRate.PerProduct {
		add("fill_rate.product."+p.ProductID, metrics.Computed(p.FillRate))
	}
	for _, p := range m.Turnover.PerProduct {
		add("turnover.product."+p.ProductID, p.Turnover)
	}
	for _, p := range m.Stockout.Products {
		flag := 0.0
		if p.AtRisk {
			flag = 1.0
		}
		add("stockout.product."+p.ProductID, metrics.Computed(flag))
	}
	for _, c := range m.Sales.ByCategory {
		add("sales.category."+c.Category, metrics.Computed(c.Total))
	}
	for _, c := range m.Returns.ByCategory {
		add("returns.category."+c.Category, metrics.Computed(float64(c.Count)))
	}

	return rows
}

func summaryRows(r *report.Report) [][]string {
	rows := make([][]string, 0, len(r.Validation.Kinds))
	for _, k := range r.Validation.Kinds {
		rows = append(rows, []string{
			r.RunID,
			string(k.Kind),
			strconv.Itoa(k.Accepted),
			strconv.Itoa(k.Rejected),
		})
	}
	return rows
}
