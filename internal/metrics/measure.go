package metrics

// Status tags a Measure so downstream consumers can tell a computed
// value from an absent or failed one without sniffing for zero or NaN.
type Status string

const (
	// StatusComputed means Value holds a real computed number.
	StatusComputed Status = "computed"
	// StatusNoData means the metric was attempted but had no
	// eligible inputs (for example a zero denominator).
	StatusNoData Status = "no_data"
	// StatusFailed means a precondition made the metric impossible
	// to even attempt (for example the entire order batch missing).
	StatusFailed Status = "failed"
)

// Stable reasons attached to no-data and failed measures.
const (
	ReasonNoOrders            = "no_orders"
	ReasonNoInventory         = "no_inventory"
	ReasonNoShippedOrders     = "no_shipped_orders"
	ReasonNoQualifyingOrders  = "no_qualifying_orders"
	ReasonNoDemand            = "no_demand"
	ReasonZeroAvgInventory    = "zero_average_inventory"
	ReasonInsufficientSamples = "insufficient_samples"
)

// Measure is the tagged result of a single metric. Value is only
// meaningful when Status is StatusComputed.
type Measure struct {
	Status Status  `json:"status"`
	Value  float64 `json:"value"`
	Reason string  `json:"reason,omitempty"`
}

// Computed wraps a successfully computed value.
func Computed(v float64) Measure {
	return Measure{Status: StatusComputed, Value: v}
}

// NoData marks a metric whose inputs yielded nothing to compute.
func NoData(reason string) Measure {
	return Measure{Status: StatusNoData, Reason: reason}
}

// Failed marks a metric whose precondition was not met.
func Failed(reason string) Measure {
	return Measure{Status: StatusFailed, Reason: reason}
}

// IsComputed reports whether the measure carries a real value.
func (m Measure) IsComputed() bool {
	return m.Status == StatusComputed
}

// Float returns the value and whether it is meaningful.
func (m Measure) Float() (float64, bool) {
	return m.Value, m.Status == StatusComputed
}
