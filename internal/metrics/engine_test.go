package metrics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scpulse/pkg/contracts/domain"
)

func testConfig() Config {
	return Config{
		AsOf:                time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		PeriodStart:         time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:           time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		DefaultLeadTimeDays: 7,
	}
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func shipped(id, productID string, orderDay, shipDay, qty int, price float64) domain.Order {
	ship := day(shipDay)
	return domain.Order{
		OrderID:    id,
		OrderDate:  day(orderDay),
		ShipDate:   &ship,
		CustomerID: "C1",
		ProductID:  productID,
		Quantity:   qty,
		UnitPrice:  price,
		Status:     domain.StatusShipped,
	}
}

func unshipped(id, productID string, orderDay, qty int, price float64) domain.Order {
	return domain.Order{
		OrderID:    id,
		OrderDate:  day(orderDay),
		CustomerID: "C1",
		ProductID:  productID,
		Quantity:   qty,
		UnitPrice:  price,
		Status:     domain.StatusPending,
	}
}

func TestComputeLeadTimeExcludesUnshippedOrders(t *testing.T) {
	engine := NewEngine(nil)

	// Orders with lead times 3, none, 5: average must be 4, not 8/3.
	report, err := engine.Compute(context.Background(), Inputs{
		Orders: []domain.Order{
			shipped("O1", "P1", 1, 4, 1, 10),
			unshipped("O2", "P1", 1, 1, 10),
			shipped("O3", "P1", 1, 6, 1, 10),
		},
		Config: testConfig(),
	})
	require.NoError(t, err)

	avg, ok := report.LeadTime.Average.Float()
	require.True(t, ok)
	assert.InDelta(t, 4.0, avg, 1e-9)
	assert.Equal(t, 2, report.LeadTime.EligibleOrders)

	min, _ := report.LeadTime.Min.Float()
	max, _ := report.LeadTime.Max.Float()
	assert.Equal(t, 3.0, min)
	assert.Equal(t, 5.0, max)
}

func TestComputeLeadTimeNoShippedOrders(t *testing.T) {
	engine := NewEngine(nil)

	report, err := engine.Compute(context.Background(), Inputs{
		Orders: []domain.Order{unshipped("O1", "P1", 1, 1, 10)},
		Config: testConfig(),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusNoData, report.LeadTime.Average.Status)
	assert.Equal(t, ReasonNoShippedOrders, report.LeadTime.Average.Reason)
}

func TestComputeReturnRate(t *testing.T) {
	tests := []struct {
		name       string
		orders     []domain.Order
		returns    []domain.Return
		wantStatus Status
		wantRate   float64
	}{
		{
			name: "rate_over_qualifying_orders",
			orders: []domain.Order{
				shipped("O1", "P1", 1, 3, 2, 10),
				shipped("O2", "P1", 1, 3, 2, 10),
				unshipped("O3", "P1", 1, 2, 10), // Pending, not in denominator
			},
			returns: []domain.Return{
				{ReturnID: "R1", OrderID: "O1", ReturnDate: day(10), QuantityReturned: 1},
			},
			wantStatus: StatusComputed,
			wantRate:   0.5,
		},
		{
			name:       "zero_qualifying_orders_yields_no_data",
			orders:     []domain.Order{unshipped("O1", "P1", 1, 2, 10)},
			returns:    nil,
			wantStatus: StatusNoData,
		},
		{
			name: "unknown_order_reference_excluded_from_numerator",
			orders: []domain.Order{
				shipped("O1", "P1", 1, 3, 2, 10),
			},
			returns: []domain.Return{
				{ReturnID: "R1", OrderID: "GHOST", ReturnDate: day(10), QuantityReturned: 1},
			},
			wantStatus: StatusComputed,
			wantRate:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(nil)
			report, err := engine.Compute(context.Background(), Inputs{
				Orders:  tt.orders,
				Returns: tt.returns,
				Config:  testConfig(),
			})
			require.NoError(t, err)

			assert.Equal(t, tt.wantStatus, report.Returns.Rate.Status)
			if tt.wantStatus == StatusComputed {
				assert.InDelta(t, tt.wantRate, report.Returns.Rate.Value, 1e-9)
			}
		})
	}
}

func TestComputeFillRateIsDemandWeighted(t *testing.T) {
	engine := NewEngine(nil)

	// Product A: demand 100, fully covered. Product B: demand 1,
	// nothing on hand. Demand-weighted aggregate is 100/101, not 50%.
	report, err := engine.Compute(context.Background(), Inputs{
		Orders: []domain.Order{
			shipped("O1", "A", 5, 8, 100, 10),
			shipped("O2", "B", 5, 8, 1, 10),
		},
		Inventory: []domain.InventorySnapshot{
			{ProductID: "A", OnHandQuantity: 80, UnitsReceivedInPeriod: 40, PeriodStart: day(1), PeriodEnd: day(31), OnHandStart: 80, OnHandEnd: 120},
			{ProductID: "B", OnHandQuantity: 0, UnitsReceivedInPeriod: 0, PeriodStart: day(1), PeriodEnd: day(31)},
		},
		Config: testConfig(),
	})
	require.NoError(t, err)

	agg, ok := report.FillRate.Aggregate.Float()
	require.True(t, ok)
	assert.InDelta(t, 100.0/101.0, agg, 1e-9)

	require.Len(t, report.FillRate.PerProduct, 2)
	assert.Equal(t, "A", report.FillRate.PerProduct[0].ProductID)
	assert.InDelta(t, 1.0, report.FillRate.PerProduct[0].FillRate, 1e-9)
	assert.InDelta(t, 0.0, report.FillRate.PerProduct[1].FillRate, 1e-9)
}

func TestComputeFillRateGradeSharesAreCumulative(t *testing.T) {
	engine := NewEngine(nil)

	// Product A fills 100%, product B 90%. The good share counts
	// every product at or above 0.85, excellent included, so it is
	// 1.0 rather than the 0.5 an exclusive bucket would give.
	report, err := engine.Compute(context.Background(), Inputs{
		Orders: []domain.Order{
			shipped("O1", "A", 5, 8, 10, 10),
			shipped("O2", "B", 5, 8, 10, 10),
		},
		Inventory: []domain.InventorySnapshot{
			{ProductID: "A", OnHandQuantity: 10, PeriodStart: day(1), PeriodEnd: day(31), OnHandStart: 20, OnHandEnd: 10},
			{ProductID: "B", OnHandQuantity: 9, PeriodStart: day(1), PeriodEnd: day(31), OnHandStart: 20, OnHandEnd: 9},
		},
		Config: testConfig(),
	})
	require.NoError(t, err)

	excellent, ok := report.FillRate.ExcellentRatio.Float()
	require.True(t, ok)
	assert.InDelta(t, 0.5, excellent, 1e-9)

	good, ok := report.FillRate.GoodRatio.Float()
	require.True(t, ok)
	assert.InDelta(t, 1.0, good, 1e-9)

	poor, ok := report.FillRate.PoorRatio.Float()
	require.True(t, ok)
	assert.InDelta(t, 0.0, poor, 1e-9)
}

func TestComputeFillRateNoDemand(t *testing.T) {
	engine := NewEngine(nil)

	report, err := engine.Compute(context.Background(), Inputs{
		// Cancelled orders never generated demand.
		Orders: []domain.Order{{
			OrderID: "O1", OrderDate: day(5), CustomerID: "C1", ProductID: "A",
			Quantity: 3, UnitPrice: 10, Status: domain.StatusCancelled,
		}},
		Inventory: []domain.InventorySnapshot{
			{ProductID: "A", OnHandQuantity: 10, PeriodStart: day(1), PeriodEnd: day(31), OnHandStart: 10, OnHandEnd: 10},
		},
		Config: testConfig(),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusNoData, report.FillRate.Aggregate.Status)
	assert.Equal(t, ReasonNoDemand, report.FillRate.Aggregate.Reason)
}

func TestComputeTurnover(t *testing.T) {
	engine := NewEngine(nil)

	report, err := engine.Compute(context.Background(), Inputs{
		Orders: []domain.Order{shipped("O1", "A", 1, 4, 1, 10)},
		Inventory: []domain.InventorySnapshot{
			// (40+60)/2 = 50 average inventory, 100 sold: turnover 2.
			{ProductID: "A", OnHandQuantity: 60, UnitsSoldInPeriod: 100, PeriodStart: day(1), PeriodEnd: day(31), OnHandStart: 40, OnHandEnd: 60},
			// Zero average inventory: undefined, not infinite.
			{ProductID: "B", OnHandQuantity: 0, UnitsSoldInPeriod: 10, PeriodStart: day(1), PeriodEnd: day(31)},
		},
		Config: testConfig(),
	})
	require.NoError(t, err)

	require.Len(t, report.Turnover.PerProduct, 2)
	turnoverA, ok := report.Turnover.PerProduct[0].Turnover.Float()
	require.True(t, ok)
	assert.InDelta(t, 2.0, turnoverA, 1e-9)

	assert.Equal(t, StatusNoData, report.Turnover.PerProduct[1].Turnover.Status)
	assert.Equal(t, ReasonZeroAvgInventory, report.Turnover.PerProduct[1].Turnover.Reason)

	// The group average only spans products with a defined turnover.
	avg, ok := report.Turnover.Average.Float()
	require.True(t, ok)
	assert.InDelta(t, 2.0, avg, 1e-9)
}

func TestComputeStockoutRisk(t *testing.T) {
	tests := []struct {
		name   string
		onHand int
		atRisk bool
	}{
		{name: "insufficient_on_hand_flagged", onHand: 5, atRisk: true},
		{name: "sufficient_on_hand_not_flagged", onHand: 10, atRisk: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(nil)

			// Product lead time 3 days from its only shipped order;
			// 20 sold over 10 days gives avg daily demand 2, so the
			// reorder point is 6 units.
			report, err := engine.Compute(context.Background(), Inputs{
				Orders: []domain.Order{shipped("O1", "A", 1, 4, 1, 10)},
				Inventory: []domain.InventorySnapshot{{
					ProductID:         "A",
					OnHandQuantity:    tt.onHand,
					UnitsSoldInPeriod: 20,
					PeriodStart:       day(1),
					PeriodEnd:         day(11),
					OnHandStart:       30,
					OnHandEnd:         tt.onHand,
				}},
				Config: testConfig(),
			})
			require.NoError(t, err)

			require.Len(t, report.Stockout.Products, 1)
			risk := report.Stockout.Products[0]
			assert.InDelta(t, 2.0, risk.AvgDailyDemand, 1e-9)
			assert.InDelta(t, 3.0, risk.LeadTimeDays, 1e-9)
			assert.InDelta(t, 6.0, risk.RequiredUnits, 1e-9)
			assert.Equal(t, tt.atRisk, risk.AtRisk)
		})
	}
}

func TestComputeStockoutUsesDefaultLeadTime(t *testing.T) {
	engine := NewEngine(nil)

	// No shipped order for product A, so the configured default lead
	// time of 7 days applies: required = 2 * 7 = 14 > 5 on hand.
	report, err := engine.Compute(context.Background(), Inputs{
		Inventory: []domain.InventorySnapshot{{
			ProductID:         "A",
			OnHandQuantity:    5,
			UnitsSoldInPeriod: 20,
			PeriodStart:       day(1),
			PeriodEnd:         day(11),
		}},
		Config: testConfig(),
	})
	require.NoError(t, err)

	require.Len(t, report.Stockout.Products, 1)
	assert.InDelta(t, 7.0, report.Stockout.Products[0].LeadTimeDays, 1e-9)
	assert.True(t, report.Stockout.Products[0].AtRisk)
}

func TestComputeSales(t *testing.T) {
	engine := NewEngine(nil)

	delivered := shipped("O2", "B", 2, 5, 3, 5)
	delivered.Status = domain.StatusDelivered

	report, err := engine.Compute(context.Background(), Inputs{
		Orders: []domain.Order{
			shipped("O1", "A", 1, 4, 2, 10), // 20
			delivered,                       // 15
			unshipped("O3", "A", 1, 4, 10),  // Pending, excluded
		},
		Products: []domain.Product{
			{ProductID: "A", Category: "electronics", UnitPrice: 10},
			{ProductID: "B", Category: "apparel", UnitPrice: 5},
		},
		Config: testConfig(),
	})
	require.NoError(t, err)

	total, ok := report.Sales.TotalSales.Float()
	require.True(t, ok)
	assert.InDelta(t, 35.0, total, 1e-9)

	avg, ok := report.Sales.AverageSale.Float()
	require.True(t, ok)
	assert.InDelta(t, 17.5, avg, 1e-9)
	assert.Equal(t, 2, report.Sales.QualifyingOrders)

	require.Len(t, report.Sales.ByCategory, 2)
	assert.Equal(t, "apparel", report.Sales.ByCategory[0].Category)
	assert.InDelta(t, 15.0, report.Sales.ByCategory[0].Total, 1e-9)
	assert.Equal(t, "electronics", report.Sales.ByCategory[1].Category)
	assert.InDelta(t, 20.0, report.Sales.ByCategory[1].Total, 1e-9)
}

func TestComputeMissingKindsDegradeNotAbort(t *testing.T) {
	engine := NewEngine(nil)

	// No orders at all: order-dependent groups fail with a reason,
	// inventory-dependent groups still compute.
	report, err := engine.Compute(context.Background(), Inputs{
		Inventory: []domain.InventorySnapshot{{
			ProductID:         "A",
			OnHandQuantity:    60,
			UnitsSoldInPeriod: 100,
			PeriodStart:       day(1),
			PeriodEnd:         day(31),
			OnHandStart:       40,
			OnHandEnd:         60,
		}},
		Config: testConfig(),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, report.LeadTime.Average.Status)
	assert.Equal(t, ReasonNoOrders, report.LeadTime.Average.Reason)
	assert.Equal(t, StatusFailed, report.Returns.Rate.Status)
	assert.Equal(t, StatusFailed, report.Sales.TotalSales.Status)

	assert.Equal(t, StatusComputed, report.Turnover.Average.Status)
	assert.Equal(t, StatusComputed, report.Stockout.AtRiskCount.Status)
}

func TestComputeMissingInventoryDegradesNotAbort(t *testing.T) {
	engine := NewEngine(nil)

	report, err := engine.Compute(context.Background(), Inputs{
		Orders: []domain.Order{shipped("O1", "A", 1, 4, 2, 10)},
		Config: testConfig(),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, report.Turnover.Average.Status)
	assert.Equal(t, ReasonNoInventory, report.Turnover.Average.Reason)
	assert.Equal(t, StatusFailed, report.Stockout.AtRiskCount.Status)

	assert.Equal(t, StatusComputed, report.LeadTime.Average.Status)
	assert.Equal(t, StatusComputed, report.Sales.TotalSales.Status)
}

func TestComputeRejectsInvalidConfig(t *testing.T) {
	engine := NewEngine(nil)

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing_period", cfg: Config{DefaultLeadTimeDays: 7}},
		{
			name: "inverted_period",
			cfg: Config{
				PeriodStart:         day(20),
				PeriodEnd:           day(1),
				DefaultLeadTimeDays: 7,
			},
		},
		{
			name: "zero_default_lead_time",
			cfg: Config{
				PeriodStart: day(1),
				PeriodEnd:   day(31),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Compute(context.Background(), Inputs{Config: tt.cfg})
			require.Error(t, err)
		})
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	engine := NewEngine(nil)

	inputs := Inputs{
		Orders: []domain.Order{
			shipped("O1", "A", 1, 4, 2, 10),
			shipped("O2", "B", 2, 5, 3, 5),
			unshipped("O3", "A", 1, 4, 10),
		},
		Returns: []domain.Return{
			{ReturnID: "R1", OrderID: "O1", ReturnDate: day(10), QuantityReturned: 1},
		},
		Inventory: []domain.InventorySnapshot{
			{ProductID: "A", OnHandQuantity: 60, UnitsSoldInPeriod: 100, PeriodStart: day(1), PeriodEnd: day(31), OnHandStart: 40, OnHandEnd: 60},
			{ProductID: "B", OnHandQuantity: 5, UnitsSoldInPeriod: 20, PeriodStart: day(1), PeriodEnd: day(11), OnHandStart: 30, OnHandEnd: 5},
		},
		Products: []domain.Product{
			{ProductID: "A", Category: "electronics", UnitPrice: 10},
			{ProductID: "B", Category: "apparel", UnitPrice: 5},
		},
		Config: testConfig(),
	}

	first, err := engine.Compute(context.Background(), inputs)
	require.NoError(t, err)
	second, err := engine.Compute(context.Background(), inputs)
	require.NoError(t, err)

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, firstJSON, secondJSON)
}
