package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	apperrors "scpulse/internal/errors"
	"scpulse/pkg/contracts/domain"
)

// Engine computes the KPI set from a validated record snapshot.
// Compute is a pure function of its inputs: no clock reads, no
// randomness, no mutation of the input batch.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a metrics engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger.With("component", "metrics_engine")}
}

// Compute derives all metrics for one run. Missing input kinds
// degrade the dependent metric groups to failed measures with the
// triggering reason; independent groups still compute. Only an
// invalid Config aborts the run.
func (e *Engine) Compute(ctx context.Context, in Inputs) (*MetricsReport, error) {
	start := time.Now()

	if err := in.Config.Validate(); err != nil {
		e.logger.ErrorContext(ctx, "metrics config rejected", "error", err)
		return nil, fmt.Errorf("validate metrics config: %w", err)
	}

	e.logger.InfoContext(ctx, "starting metrics computation",
		"orders", len(in.Orders),
		"returns", len(in.Returns),
		"inventory", len(in.Inventory),
		"products", len(in.Products),
		"period_days", in.Config.PeriodDays(),
	)

	// A missing input kind degrades its metric groups to failed
	// measures rather than aborting; each degradation is surfaced
	// here so operators see it without digging through the report.
	for _, pe := range preconditions(in) {
		e.logger.WarnContext(ctx, "metric group degraded", "error", pe)
	}

	categories := categoryIndex(in.Products)
	productOfOrder := make(map[string]string, len(in.Orders))
	for _, o := range in.Orders {
		productOfOrder[o.OrderID] = o.ProductID
	}

	report := &MetricsReport{
		AsOf:        in.Config.AsOf,
		PeriodStart: in.Config.PeriodStart,
		PeriodEnd:   in.Config.PeriodEnd,
	}

	leadTimes := productLeadTimes(in.Orders)
	report.LeadTime = e.computeLeadTime(in.Orders)
	report.Returns = e.computeReturns(in.Orders, in.Returns, productOfOrder, categories)
	report.FillRate = e.computeFillRate(in.Orders, in.Inventory, in.Config)
	report.Turnover = e.computeTurnover(in.Inventory)
	report.Stockout = e.computeStockout(in.Inventory, leadTimes, in.Config)
	report.Sales = e.computeSales(in.Orders, categories)

	e.logger.InfoContext(ctx, "metrics computation completed",
		"duration", time.Since(start),
		"at_risk_products", len(report.Stockout.Products),
	)
	return report, nil
}

// preconditions lists the metric groups that cannot compute because
// an entire input kind is absent.
func preconditions(in Inputs) []*apperrors.PreconditionError {
	var errs []*apperrors.PreconditionError
	if len(in.Orders) == 0 {
		for _, metric := range []string{"lead_time", "returns", "sales"} {
			errs = append(errs, &apperrors.PreconditionError{Metric: metric, Reason: ReasonNoOrders})
		}
	}
	if len(in.Inventory) == 0 {
		for _, metric := range []string{"turnover", "stockout"} {
			errs = append(errs, &apperrors.PreconditionError{Metric: metric, Reason: ReasonNoInventory})
		}
	}
	return errs
}

// categoryIndex maps product ID to category.
func categoryIndex(products []domain.Product) map[string]string {
	idx := make(map[string]string, len(products))
	for _, p := range products {
		idx[p.ProductID] = p.Category
	}
	return idx
}

// productLeadTimes averages shipped-order lead times per product, for
// use in stockout risk.
func productLeadTimes(orders []domain.Order) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, o := range orders {
		if days, ok := o.LeadTimeDays(); ok {
			sums[o.ProductID] += float64(days)
			counts[o.ProductID]++
		}
	}
	avgs := make(map[string]float64, len(sums))
	for id, sum := range sums {
		avgs[id] = sum / float64(counts[id])
	}
	return avgs
}

func (e *Engine) computeLeadTime(orders []domain.Order) LeadTimeStats {
	if len(orders) == 0 {
		failed := Failed(ReasonNoOrders)
		return LeadTimeStats{
			Average: failed, Median: failed, Min: failed, Max: failed, StdDev: failed,
			ExcellentRatio: failed, GoodRatio: failed, PoorRatio: failed,
		}
	}

	// Orders with no ship date are excluded, never treated as zero.
	var days []float64
	var excellent, good, poor int
	for _, o := range orders {
		d, ok := o.LeadTimeDays()
		if !ok {
			continue
		}
		days = append(days, float64(d))
		switch {
		case d <= leadTimeExcellentDays:
			excellent++
		case d <= leadTimeGoodDays:
			good++
		default:
			poor++
		}
	}

	if len(days) == 0 {
		noData := NoData(ReasonNoShippedOrders)
		return LeadTimeStats{
			Average: noData, Median: noData, Min: noData, Max: noData, StdDev: noData,
			ExcellentRatio: noData, GoodRatio: noData, PoorRatio: noData,
		}
	}

	lo, hi := minMax(days)
	n := float64(len(days))
	stats := LeadTimeStats{
		Average:        Computed(mean(days)),
		Median:         Computed(median(days)),
		Min:            Computed(lo),
		Max:            Computed(hi),
		EligibleOrders: len(days),
		ExcellentRatio: Computed(float64(excellent) / n),
		GoodRatio:      Computed(float64(good) / n),
		PoorRatio:      Computed(float64(poor) / n),
	}
	if len(days) < 2 {
		stats.StdDev = NoData(ReasonInsufficientSamples)
	} else {
		stats.StdDev = Computed(stdDev(days))
	}
	return stats
}

func (e *Engine) computeReturns(orders []domain.Order, returns []domain.Return, productOfOrder, categories map[string]string) ReturnStats {
	if len(orders) == 0 {
		return ReturnStats{Rate: Failed(ReasonNoOrders), ReturnCount: len(returns)}
	}

	qualifying := 0
	for _, o := range orders {
		if o.Qualifying() {
			qualifying++
		}
	}

	// Orphans are rejected at validation; anything referencing an
	// order outside this batch still stays out of the numerator.
	counted := 0
	byCategory := make(map[string]int)
	for _, r := range returns {
		productID, known := productOfOrder[r.OrderID]
		if !known {
			continue
		}
		counted++
		category, ok := categories[productID]
		if !ok {
			category = "uncategorized"
		}
		byCategory[category]++
	}

	stats := ReturnStats{
		ReturnCount:      counted,
		QualifyingOrders: qualifying,
		ByCategory:       sortedCategoryCounts(byCategory),
	}
	if qualifying == 0 {
		stats.Rate = NoData(ReasonNoQualifyingOrders)
	} else {
		stats.Rate = Computed(float64(counted) / float64(qualifying))
	}
	return stats
}

func (e *Engine) computeFillRate(orders []domain.Order, inventory []domain.InventorySnapshot, cfg Config) FillRateStats {
	if len(inventory) == 0 && len(orders) == 0 {
		failed := Failed(ReasonNoInventory)
		return FillRateStats{Aggregate: failed, ExcellentRatio: failed, GoodRatio: failed, PoorRatio: failed}
	}

	// Demand per product: ordered quantity within the reporting
	// period. Cancelled orders never generated a shipment so they
	// do not count as demand.
	demand := make(map[string]int)
	for _, o := range orders {
		if o.Status == domain.StatusCancelled {
			continue
		}
		if o.OrderDate.Before(cfg.PeriodStart) || o.OrderDate.After(cfg.PeriodEnd) {
			continue
		}
		demand[o.ProductID] += o.Quantity
	}

	if len(demand) == 0 {
		noData := NoData(ReasonNoDemand)
		return FillRateStats{Aggregate: noData, ExcellentRatio: noData, GoodRatio: noData, PoorRatio: noData}
	}

	supply := make(map[string]int, len(inventory))
	for _, s := range snapshotIndex(inventory) {
		supply[s.ProductID] = s.OnHandQuantity + s.UnitsReceivedInPeriod
	}

	ids := make([]string, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var perProduct []ProductFillRate
	var satisfied, totalDemand float64
	var excellent, good, poor int
	for _, id := range ids {
		d := demand[id]
		avail := supply[id]
		covered := avail
		if covered > d {
			covered = d
		}
		rate := float64(covered) / float64(d)
		perProduct = append(perProduct, ProductFillRate{
			ProductID: id, Demand: d, Supply: avail, FillRate: rate,
		})
		satisfied += float64(covered)
		totalDemand += float64(d)
		// Grade shares are cumulative: a product at or above the
		// excellent threshold also counts toward the good share.
		if rate >= fillRateExcellent {
			excellent++
		}
		if rate >= fillRateGood {
			good++
		}
		if rate < fillRatePoor {
			poor++
		}
	}

	n := float64(len(perProduct))
	return FillRateStats{
		// Demand-weighted: sum of satisfied units over sum of
		// demanded units, so small-volume products cannot skew it.
		Aggregate:      Computed(satisfied / totalDemand),
		PerProduct:     perProduct,
		ExcellentRatio: Computed(float64(excellent) / n),
		GoodRatio:      Computed(float64(good) / n),
		PoorRatio:      Computed(float64(poor) / n),
	}
}

func (e *Engine) computeTurnover(inventory []domain.InventorySnapshot) TurnoverStats {
	if len(inventory) == 0 {
		return TurnoverStats{Average: Failed(ReasonNoInventory), AverageDaysOnHand: Failed(ReasonNoInventory)}
	}

	snapshots := snapshotIndex(inventory)
	ids := make([]string, 0, len(snapshots))
	for id := range snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var perProduct []ProductTurnover
	var turnovers, daysOnHand []float64
	for _, id := range ids {
		s := snapshots[id]
		pt := ProductTurnover{ProductID: id}

		avgInv := s.AverageInventory()
		if avgInv == 0 {
			// Undefined, not infinite.
			pt.Turnover = NoData(ReasonZeroAvgInventory)
			pt.Annualized = NoData(ReasonZeroAvgInventory)
		} else {
			t := float64(s.UnitsSoldInPeriod) / avgInv
			pt.Turnover = Computed(t)
			pt.Annualized = Computed(t * daysPerYear / float64(s.PeriodDays()))
			turnovers = append(turnovers, t)
		}

		dailyDemand := float64(s.UnitsSoldInPeriod) / float64(s.PeriodDays())
		if dailyDemand == 0 {
			pt.DaysOnHand = NoData(ReasonNoDemand)
		} else {
			doh := float64(s.OnHandQuantity) / dailyDemand
			pt.DaysOnHand = Computed(doh)
			daysOnHand = append(daysOnHand, doh)
		}
		perProduct = append(perProduct, pt)
	}

	stats := TurnoverStats{PerProduct: perProduct}
	if len(turnovers) == 0 {
		stats.Average = NoData(ReasonZeroAvgInventory)
	} else {
		stats.Average = Computed(mean(turnovers))
	}
	if len(daysOnHand) == 0 {
		stats.AverageDaysOnHand = NoData(ReasonNoDemand)
	} else {
		stats.AverageDaysOnHand = Computed(mean(daysOnHand))
	}
	return stats
}

func (e *Engine) computeStockout(inventory []domain.InventorySnapshot, leadTimes map[string]float64, cfg Config) StockoutStats {
	if len(inventory) == 0 {
		return StockoutStats{AtRiskCount: Failed(ReasonNoInventory)}
	}

	snapshots := snapshotIndex(inventory)
	ids := make([]string, 0, len(snapshots))
	for id := range snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var products []ProductRisk
	atRisk := 0
	for _, id := range ids {
		s := snapshots[id]
		dailyDemand := float64(s.UnitsSoldInPeriod) / float64(s.PeriodDays())

		// Products with no observed shipping lead time fall back
		// to the configured default, never a silent zero.
		lt, ok := leadTimes[id]
		if !ok {
			lt = float64(cfg.DefaultLeadTimeDays)
		}

		required := dailyDemand * lt
		risk := ProductRisk{
			ProductID:      id,
			OnHand:         s.OnHandQuantity,
			AvgDailyDemand: dailyDemand,
			LeadTimeDays:   lt,
			RequiredUnits:  required,
			AtRisk:         float64(s.OnHandQuantity) < required,
		}
		if risk.AtRisk {
			atRisk++
		}
		products = append(products, risk)
	}

	return StockoutStats{
		AtRiskCount: Computed(float64(atRisk)),
		Products:    products,
	}
}

func (e *Engine) computeSales(orders []domain.Order, categories map[string]string) SalesStats {
	if len(orders) == 0 {
		return SalesStats{TotalSales: Failed(ReasonNoOrders), AverageSale: Failed(ReasonNoOrders)}
	}

	var total float64
	count := 0
	byCategory := make(map[string]float64)
	for _, o := range orders {
		if !o.Qualifying() {
			continue
		}
		total += o.Value()
		count++
		category, ok := categories[o.ProductID]
		if !ok {
			category = "uncategorized"
		}
		byCategory[category] += o.Value()
	}

	stats := SalesStats{QualifyingOrders: count, ByCategory: sortedCategorySales(byCategory)}
	if count == 0 {
		stats.TotalSales = NoData(ReasonNoQualifyingOrders)
		stats.AverageSale = NoData(ReasonNoQualifyingOrders)
		return stats
	}
	stats.TotalSales = Computed(total)
	stats.AverageSale = Computed(total / float64(count))
	return stats
}

// snapshotIndex keeps one snapshot per product. When a product has
// several, the one with the latest period end wins.
func snapshotIndex(inventory []domain.InventorySnapshot) map[string]domain.InventorySnapshot {
	idx := make(map[string]domain.InventorySnapshot, len(inventory))
	for _, s := range inventory {
		if prev, ok := idx[s.ProductID]; ok && s.PeriodEnd.Before(prev.PeriodEnd) {
			continue
		}
		idx[s.ProductID] = s
	}
	return idx
}

func sortedCategoryCounts(m map[string]int) []CategoryCount {
	if len(m) == 0 {
		return nil
	}
	out := make([]CategoryCount, 0, len(m))
	for category, count := range m {
		out = append(out, CategoryCount{Category: category, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

func sortedCategorySales(m map[string]float64) []CategorySales {
	if len(m) == 0 {
		return nil
	}
	out := make([]CategorySales, 0, len(m))
	for category, total := range m {
		out = append(out, CategorySales{Category: category, Total: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
