package validation

import (
	"log/slog"

	"scpulse/pkg/contracts/domain"
)

// Stable rejection reason codes. Downstream summaries aggregate on
// these, so they must never change meaning between releases.
const (
	ReasonMissingField       = "missing_field"
	ReasonBadType            = "bad_type"
	ReasonOutOfRange         = "out_of_range"
	ReasonInvalidStatus      = "invalid_status"
	ReasonInvalidRole        = "invalid_role"
	ReasonShipBeforeOrder    = "ship_before_order"
	ReasonDuplicateID        = "duplicate_id"
	ReasonUnknownOrderRef    = "unknown_order_reference"
	ReasonReturnExceedsOrder = "return_exceeds_order_quantity"
	ReasonUnsupportedKind    = "unsupported_record_kind"
)

// RejectedRecord is a raw record that failed validation, with the
// first failing check's reason code recorded verbatim.
type RejectedRecord struct {
	Kind   domain.RecordKind `json:"kind"`
	Index  int               `json:"index"`
	Reason string            `json:"reason"`
	Detail string            `json:"detail,omitempty"`
	Raw    domain.RawRecord  `json:"-"`
}

// OrderLookup maps known order IDs to their ordered quantity. The
// returns batch is validated against it once the order batch exists.
type OrderLookup map[string]int

// BuildOrderLookup indexes validated orders for referential checks.
func BuildOrderLookup(orders []domain.Order) OrderLookup {
	lookup := make(OrderLookup, len(orders))
	for _, o := range orders {
		lookup[o.OrderID] = o.Quantity
	}
	return lookup
}

// Options carries batch-level context for validation.
type Options struct {
	// KnownOrders enables the Return -> Order referential check.
	// Nil defers the check (the batch is re-validated once orders
	// are available).
	KnownOrders OrderLookup
}

// Result is the outcome of validating one homogeneous batch. Only the
// slice matching the batch kind is populated.
type Result struct {
	Orders    []domain.Order
	Returns   []domain.Return
	People    []domain.Person
	Products  []domain.Product
	Inventory []domain.InventorySnapshot
	Rejected  []RejectedRecord
}

// Accepted returns how many records in the batch validated cleanly.
func (r Result) Accepted() int {
	return len(r.Orders) + len(r.Returns) + len(r.People) + len(r.Products) + len(r.Inventory)
}

// Validator converts raw ingested batches into typed records.
type Validator struct {
	logger *slog.Logger
}

// New creates a Validator.
func New(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger.With("component", "validator")}
}

// Validate validates one homogeneous batch of the given kind.
func (v *Validator) Validate(records []domain.RawRecord, kind domain.RecordKind, opts Options) Result {
	var res Result
	switch kind {
	case domain.KindOrder:
		res.Orders, res.Rejected = v.ValidateOrders(records)
	case domain.KindReturn:
		res.Returns, res.Rejected = v.ValidateReturns(records, opts.KnownOrders)
	case domain.KindPerson:
		res.People, res.Rejected = v.ValidatePeople(records)
	case domain.KindProduct:
		res.Products, res.Rejected = v.ValidateProducts(records)
	case domain.KindInventory:
		res.Inventory, res.Rejected = v.ValidateInventory(records)
	default:
		for i, r := range records {
			res.Rejected = append(res.Rejected, RejectedRecord{
				Kind: kind, Index: i, Reason: ReasonUnsupportedKind, Raw: r,
			})
		}
	}

	v.logger.Info("batch validated",
		"kind", string(kind),
		"input", len(records),
		"accepted", res.Accepted(),
		"rejected", len(res.Rejected),
	)
	return res
}

// ValidateOrders validates a raw order batch.
func (v *Validator) ValidateOrders(records []domain.RawRecord) ([]domain.Order, []RejectedRecord) {
	valid := make([]domain.Order, 0, len(records))
	var rejected []RejectedRecord
	seen := make(map[string]struct{}, len(records))

	for i, raw := range records {
		order, ferr := coerceOrder(raw)
		if ferr == nil {
			if _, dup := seen[order.OrderID]; dup {
				ferr = &fieldError{reason: ReasonDuplicateID, detail: "order_id " + order.OrderID + " already seen in batch"}
			}
		}
		if ferr != nil {
			rejected = append(rejected, RejectedRecord{
				Kind: domain.KindOrder, Index: i, Reason: ferr.reason, Detail: ferr.detail, Raw: raw,
			})
			continue
		}
		seen[order.OrderID] = struct{}{}
		valid = append(valid, order)
	}
	return valid, rejected
}

func coerceOrder(raw domain.RawRecord) (domain.Order, *fieldError) {
	var o domain.Order
	var ferr *fieldError

	if o.OrderID, ferr = stringField(raw, "order_id"); ferr != nil {
		return o, ferr
	}
	if o.CustomerID, ferr = stringField(raw, "customer_id"); ferr != nil {
		return o, ferr
	}
	if o.ProductID, ferr = stringField(raw, "product_id"); ferr != nil {
		return o, ferr
	}
	statusRaw, ferr := stringField(raw, "status")
	if ferr != nil {
		return o, ferr
	}
	if o.OrderDate, ferr = dateField(raw, "order_date"); ferr != nil {
		return o, ferr
	}
	shipDate, present, ferr := optionalDateField(raw, "ship_date")
	if ferr != nil {
		return o, ferr
	}
	if o.Quantity, ferr = intField(raw, "quantity"); ferr != nil {
		return o, ferr
	}
	if o.UnitPrice, ferr = floatField(raw, "unit_price"); ferr != nil {
		return o, ferr
	}

	// Value rules after all coercions succeed.
	if o.Quantity <= 0 {
		return o, outOfRange("quantity", "positive")
	}
	if o.UnitPrice < 0 {
		return o, outOfRange("unit_price", "non-negative")
	}
	status, ok := domain.ParseOrderStatus(statusRaw)
	if !ok {
		return o, &fieldError{reason: ReasonInvalidStatus, detail: "unknown order status " + statusRaw}
	}
	o.Status = status
	if present {
		if shipDate.Before(o.OrderDate) {
			return o, &fieldError{reason: ReasonShipBeforeOrder, detail: "ship_date precedes order_date"}
		}
		o.ShipDate = &shipDate
	}
	return o, nil
}

// ValidateReturns validates a raw returns batch. When knownOrders is
// non-nil, returns referencing unknown orders or exceeding the ordered
// quantity are rejected.
func (v *Validator) ValidateReturns(records []domain.RawRecord, knownOrders OrderLookup) ([]domain.Return, []RejectedRecord) {
	valid := make([]domain.Return, 0, len(records))
	var rejected []RejectedRecord
	seen := make(map[string]struct{}, len(records))

	for i, raw := range records {
		ret, ferr := coerceReturn(raw)
		if ferr == nil {
			if _, dup := seen[ret.ReturnID]; dup {
				ferr = &fieldError{reason: ReasonDuplicateID, detail: "return_id " + ret.ReturnID + " already seen in batch"}
			}
		}
		if ferr == nil && knownOrders != nil {
			orderQty, known := knownOrders[ret.OrderID]
			switch {
			case !known:
				ferr = &fieldError{reason: ReasonUnknownOrderRef, detail: "order " + ret.OrderID + " not found in validated order batch"}
			case ret.QuantityReturned > orderQty:
				ferr = &fieldError{reason: ReasonReturnExceedsOrder, detail: "quantity_returned exceeds ordered quantity"}
			}
		}
		if ferr != nil {
			rejected = append(rejected, RejectedRecord{
				Kind: domain.KindReturn, Index: i, Reason: ferr.reason, Detail: ferr.detail, Raw: raw,
			})
			continue
		}
		seen[ret.ReturnID] = struct{}{}
		valid = append(valid, ret)
	}
	return valid, rejected
}

func coerceReturn(raw domain.RawRecord) (domain.Return, *fieldError) {
	var r domain.Return
	var ferr *fieldError

	if r.ReturnID, ferr = stringField(raw, "return_id"); ferr != nil {
		return r, ferr
	}
	if r.OrderID, ferr = stringField(raw, "order_id"); ferr != nil {
		return r, ferr
	}
	if r.ReturnDate, ferr = dateField(raw, "return_date"); ferr != nil {
		return r, ferr
	}
	if r.QuantityReturned, ferr = intField(raw, "quantity_returned"); ferr != nil {
		return r, ferr
	}
	// Reason is free text and genuinely optional in the source data.
	if reason, rerr := stringField(raw, "reason"); rerr == nil {
		r.Reason = reason
	}

	if r.QuantityReturned <= 0 {
		return r, outOfRange("quantity_returned", "positive")
	}
	return r, nil
}

// ValidatePeople validates a raw people batch.
func (v *Validator) ValidatePeople(records []domain.RawRecord) ([]domain.Person, []RejectedRecord) {
	valid := make([]domain.Person, 0, len(records))
	var rejected []RejectedRecord
	seen := make(map[string]struct{}, len(records))

	for i, raw := range records {
		p, ferr := coercePerson(raw)
		if ferr == nil {
			if _, dup := seen[p.PersonID]; dup {
				ferr = &fieldError{reason: ReasonDuplicateID, detail: "person_id " + p.PersonID + " already seen in batch"}
			}
		}
		if ferr != nil {
			rejected = append(rejected, RejectedRecord{
				Kind: domain.KindPerson, Index: i, Reason: ferr.reason, Detail: ferr.detail, Raw: raw,
			})
			continue
		}
		seen[p.PersonID] = struct{}{}
		valid = append(valid, p)
	}
	return valid, rejected
}

func coercePerson(raw domain.RawRecord) (domain.Person, *fieldError) {
	var p domain.Person
	var ferr *fieldError

	if p.PersonID, ferr = stringField(raw, "person_id"); ferr != nil {
		return p, ferr
	}
	roleRaw, ferr := stringField(raw, "role")
	if ferr != nil {
		return p, ferr
	}
	if p.Region, ferr = stringField(raw, "region"); ferr != nil {
		return p, ferr
	}

	role, ok := domain.ParseRole(roleRaw)
	if !ok {
		return p, &fieldError{reason: ReasonInvalidRole, detail: "unknown role " + roleRaw}
	}
	p.Role = role
	return p, nil
}

// ValidateProducts validates a raw product batch as decoded from the
// catalog API.
func (v *Validator) ValidateProducts(records []domain.RawRecord) ([]domain.Product, []RejectedRecord) {
	valid := make([]domain.Product, 0, len(records))
	var rejected []RejectedRecord
	seen := make(map[string]struct{}, len(records))

	for i, raw := range records {
		p, ferr := coerceProduct(raw)
		if ferr == nil {
			if _, dup := seen[p.ProductID]; dup {
				ferr = &fieldError{reason: ReasonDuplicateID, detail: "product_id " + p.ProductID + " already seen in batch"}
			}
		}
		if ferr != nil {
			rejected = append(rejected, RejectedRecord{
				Kind: domain.KindProduct, Index: i, Reason: ferr.reason, Detail: ferr.detail, Raw: raw,
			})
			continue
		}
		seen[p.ProductID] = struct{}{}
		valid = append(valid, p)
	}
	return valid, rejected
}

func coerceProduct(raw domain.RawRecord) (domain.Product, *fieldError) {
	var p domain.Product
	var ferr *fieldError

	if p.ProductID, ferr = stringField(raw, "product_id"); ferr != nil {
		return p, ferr
	}
	if p.Category, ferr = stringField(raw, "category"); ferr != nil {
		return p, ferr
	}
	if p.UnitPrice, ferr = floatField(raw, "unit_price"); ferr != nil {
		return p, ferr
	}
	// unit_cost is absent from some catalog responses.
	if p.UnitCost, ferr = optionalFloatField(raw, "unit_cost", 0); ferr != nil {
		return p, ferr
	}
	if title, terr := stringField(raw, "title"); terr == nil {
		p.Title = title
	}

	if p.UnitPrice < 0 {
		return p, outOfRange("unit_price", "non-negative")
	}
	if p.UnitCost < 0 {
		return p, outOfRange("unit_cost", "non-negative")
	}
	return p, nil
}

// ValidateInventory validates a raw inventory snapshot batch.
func (v *Validator) ValidateInventory(records []domain.RawRecord) ([]domain.InventorySnapshot, []RejectedRecord) {
	valid := make([]domain.InventorySnapshot, 0, len(records))
	var rejected []RejectedRecord

	for i, raw := range records {
		s, ferr := coerceInventory(raw)
		if ferr != nil {
			rejected = append(rejected, RejectedRecord{
				Kind: domain.KindInventory, Index: i, Reason: ferr.reason, Detail: ferr.detail, Raw: raw,
			})
			continue
		}
		valid = append(valid, s)
	}
	return valid, rejected
}

func coerceInventory(raw domain.RawRecord) (domain.InventorySnapshot, *fieldError) {
	var s domain.InventorySnapshot
	var ferr *fieldError

	if s.ProductID, ferr = stringField(raw, "product_id"); ferr != nil {
		return s, ferr
	}
	if s.PeriodStart, ferr = dateField(raw, "period_start"); ferr != nil {
		return s, ferr
	}
	if s.PeriodEnd, ferr = dateField(raw, "period_end"); ferr != nil {
		return s, ferr
	}
	if s.OnHandQuantity, ferr = intField(raw, "on_hand_quantity"); ferr != nil {
		return s, ferr
	}
	if s.UnitsSoldInPeriod, ferr = intField(raw, "units_sold_in_period"); ferr != nil {
		return s, ferr
	}
	if s.UnitsReceivedInPeriod, ferr = intField(raw, "units_received_in_period"); ferr != nil {
		return s, ferr
	}
	if s.OnHandStart, ferr = intField(raw, "on_hand_start"); ferr != nil {
		return s, ferr
	}
	if s.OnHandEnd, ferr = intField(raw, "on_hand_end"); ferr != nil {
		return s, ferr
	}

	if s.OnHandQuantity < 0 {
		return s, outOfRange("on_hand_quantity", "non-negative")
	}
	if s.UnitsSoldInPeriod < 0 {
		return s, outOfRange("units_sold_in_period", "non-negative")
	}
	if s.UnitsReceivedInPeriod < 0 {
		return s, outOfRange("units_received_in_period", "non-negative")
	}
	if s.OnHandStart < 0 || s.OnHandEnd < 0 {
		return s, outOfRange("on_hand_start", "non-negative")
	}
	if s.PeriodEnd.Before(s.PeriodStart) {
		return s, outOfRange("period_end", "on or after period_start")
	}
	return s, nil
}
