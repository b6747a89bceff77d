package metrics

import (
	"fmt"
	"time"

	"scpulse/pkg/contracts/domain"
)

// Config carries the run parameters the engine needs. The as-of
// timestamp is an explicit input so Compute never reads the clock.
type Config struct {
	AsOf                time.Time
	PeriodStart         time.Time
	PeriodEnd           time.Time
	DefaultLeadTimeDays int
}

// Validate checks the config before a run starts.
func (c Config) Validate() error {
	if c.PeriodStart.IsZero() || c.PeriodEnd.IsZero() {
		return fmt.Errorf("reporting period is required")
	}
	if c.PeriodEnd.Before(c.PeriodStart) {
		return fmt.Errorf("period end %s precedes period start %s",
			c.PeriodEnd.Format("2006-01-02"), c.PeriodStart.Format("2006-01-02"))
	}
	if c.DefaultLeadTimeDays < 1 {
		return fmt.Errorf("default lead time must be at least one day, got %d", c.DefaultLeadTimeDays)
	}
	return nil
}

// PeriodDays is the reporting period length in whole days, never less
// than one.
func (c Config) PeriodDays() int {
	days := int(c.PeriodEnd.Sub(c.PeriodStart).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

// Inputs is the fully materialized, validated record set for one run.
// The engine only reads it.
type Inputs struct {
	Orders    []domain.Order
	Returns   []domain.Return
	Inventory []domain.InventorySnapshot
	Products  []domain.Product
	Config    Config
}

// Lead time grade boundaries in days and fill rate grade boundaries,
// matching the operational thresholds the dashboards display.
const (
	leadTimeExcellentDays = 3
	leadTimeGoodDays      = 7

	fillRateExcellent = 0.95
	fillRateGood      = 0.85
	fillRatePoor      = 0.70

	daysPerYear = 365
)

// LeadTimeStats summarizes shipping lead times across eligible
// (shipped) orders.
type LeadTimeStats struct {
	Average        Measure `json:"average"`
	Median         Measure `json:"median"`
	Min            Measure `json:"min"`
	Max            Measure `json:"max"`
	StdDev         Measure `json:"std_dev"`
	EligibleOrders int     `json:"eligible_orders"`
	ExcellentRatio Measure `json:"excellent_ratio"`
	GoodRatio      Measure `json:"good_ratio"`
	PoorRatio      Measure `json:"poor_ratio"`
}

// CategoryCount is a per-category tally, sorted by category for
// deterministic output.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// ReturnStats summarizes product returns against qualifying orders.
type ReturnStats struct {
	Rate             Measure         `json:"rate"`
	ReturnCount      int             `json:"return_count"`
	QualifyingOrders int             `json:"qualifying_orders"`
	ByCategory       []CategoryCount `json:"by_category,omitempty"`
}

// ProductFillRate is the satisfiable share of one product's demand.
type ProductFillRate struct {
	ProductID string  `json:"product_id"`
	Demand    int     `json:"demand"`
	Supply    int     `json:"supply"`
	FillRate  float64 `json:"fill_rate"`
}

// FillRateStats summarizes demand coverage. Aggregate is the
// demand-weighted average, not a simple mean.
type FillRateStats struct {
	Aggregate      Measure           `json:"aggregate"`
	PerProduct     []ProductFillRate `json:"per_product,omitempty"`
	ExcellentRatio Measure           `json:"excellent_ratio"`
	GoodRatio      Measure           `json:"good_ratio"`
	PoorRatio      Measure           `json:"poor_ratio"`
}

// ProductTurnover is one product's inventory turnover for the period.
type ProductTurnover struct {
	ProductID  string  `json:"product_id"`
	Turnover   Measure `json:"turnover"`
	Annualized Measure `json:"annualized"`
	DaysOnHand Measure `json:"days_on_hand"`
}

// TurnoverStats summarizes inventory turnover across products.
type TurnoverStats struct {
	Average           Measure           `json:"average"`
	AverageDaysOnHand Measure           `json:"average_days_on_hand"`
	PerProduct        []ProductTurnover `json:"per_product,omitempty"`
}

// ProductRisk flags a product whose on-hand stock cannot cover
// expected demand during its replenishment lead time.
type ProductRisk struct {
	ProductID      string  `json:"product_id"`
	OnHand         int     `json:"on_hand"`
	AvgDailyDemand float64 `json:"avg_daily_demand"`
	LeadTimeDays   float64 `json:"lead_time_days"`
	RequiredUnits  float64 `json:"required_units"`
	AtRisk         bool    `json:"at_risk"`
}

// StockoutStats summarizes stockout risk flags.
type StockoutStats struct {
	AtRiskCount Measure       `json:"at_risk_count"`
	Products    []ProductRisk `json:"products,omitempty"`
}

// CategorySales is total sales attributed to one product category.
type CategorySales struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// SalesStats summarizes sales over qualifying orders.
type SalesStats struct {
	TotalSales       Measure         `json:"total_sales"`
	AverageSale      Measure         `json:"average_sale"`
	QualifyingOrders int             `json:"qualifying_orders"`
	ByCategory       []CategorySales `json:"by_category,omitempty"`
}

// MetricsReport is the full KPI set for one run. Every field is a
// value type; the report is never mutated after Compute returns.
type MetricsReport struct {
	AsOf        time.Time     `json:"as_of"`
	PeriodStart time.Time     `json:"period_start"`
	PeriodEnd   time.Time     `json:"period_end"`
	LeadTime    LeadTimeStats `json:"lead_time"`
	Returns     ReturnStats   `json:"returns"`
	FillRate    FillRateStats `json:"fill_rate"`
	Turnover    TurnoverStats `json:"turnover"`
	Stockout    StockoutStats `json:"stockout"`
	Sales       SalesStats    `json:"sales"`
}
