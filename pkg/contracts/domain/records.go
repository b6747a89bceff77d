package domain

import (
	"time"
)

// RecordKind identifies which entity a raw batch belongs to.
type RecordKind string

const (
	KindOrder     RecordKind = "order"
	KindReturn    RecordKind = "return"
	KindPerson    RecordKind = "person"
	KindProduct   RecordKind = "product"
	KindInventory RecordKind = "inventory"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusShipped   OrderStatus = "Shipped"
	StatusDelivered OrderStatus = "Delivered"
	StatusCancelled OrderStatus = "Cancelled"
)

// ParseOrderStatus maps a raw status string to an OrderStatus.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case StatusPending, StatusShipped, StatusDelivered, StatusCancelled:
		return OrderStatus(s), true
	}
	return "", false
}

// Role classifies a person record.
type Role string

const (
	RoleCustomer Role = "Customer"
	RoleSupplier Role = "Supplier"
	RoleEmployee Role = "Employee"
)

// ParseRole maps a raw role string to a Role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleCustomer, RoleSupplier, RoleEmployee:
		return Role(s), true
	}
	return "", false
}

// Order represents a single validated order line.
type Order struct {
	OrderID    string      `json:"order_id"`
	OrderDate  time.Time   `json:"order_date"`
	ShipDate   *time.Time  `json:"ship_date,omitempty"` // nil means not yet shipped
	CustomerID string      `json:"customer_id"`
	ProductID  string      `json:"product_id"`
	Quantity   int         `json:"quantity"`
	UnitPrice  float64     `json:"unit_price"`
	Status     OrderStatus `json:"status"`
}

// LeadTimeDays returns the whole days between order and ship dates.
// The second return is false for orders that have not shipped.
func (o Order) LeadTimeDays() (int, bool) {
	if o.ShipDate == nil {
		return 0, false
	}
	return int(o.ShipDate.Sub(o.OrderDate).Hours() / 24), true
}

// Qualifying reports whether the order counts toward sales and
// return-rate denominators.
func (o Order) Qualifying() bool {
	return o.Status == StatusShipped || o.Status == StatusDelivered
}

// Value is the monetary value of the order line.
func (o Order) Value() float64 {
	return float64(o.Quantity) * o.UnitPrice
}

// Return represents a validated product return referencing an order.
type Return struct {
	ReturnID         string    `json:"return_id"`
	OrderID          string    `json:"order_id"`
	ReturnDate       time.Time `json:"return_date"`
	Reason           string    `json:"reason"`
	QuantityReturned int       `json:"quantity_returned"`
}

// Person represents a customer, supplier or employee record.
type Person struct {
	PersonID string `json:"person_id"`
	Role     Role   `json:"role"`
	Region   string `json:"region"`
}

// Product represents a catalog entry fetched from the store API.
type Product struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title,omitempty"`
	Category  string  `json:"category"`
	UnitCost  float64 `json:"unit_cost"`
	UnitPrice float64 `json:"unit_price"`
}

// InventorySnapshot captures one product's inventory position over a
// reporting period.
type InventorySnapshot struct {
	ProductID             string    `json:"product_id"`
	OnHandQuantity        int       `json:"on_hand_quantity"`
	PeriodStart           time.Time `json:"period_start"`
	PeriodEnd             time.Time `json:"period_end"`
	UnitsSoldInPeriod     int       `json:"units_sold_in_period"`
	UnitsReceivedInPeriod int       `json:"units_received_in_period"`
	OnHandStart           int       `json:"on_hand_start"`
	OnHandEnd             int       `json:"on_hand_end"`
}

// PeriodDays returns the snapshot period length in whole days, never
// less than one.
func (s InventorySnapshot) PeriodDays() int {
	days := int(s.PeriodEnd.Sub(s.PeriodStart).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

// AverageInventory is the mean of opening and closing stock.
func (s InventorySnapshot) AverageInventory() float64 {
	return float64(s.OnHandStart+s.OnHandEnd) / 2
}
