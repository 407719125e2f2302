package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Kind distinguishes the three order state machines.
type Kind string

const (
	KindSale     Kind = "SALE"
	KindPurchase Kind = "PURCHASE"
	KindReturn   Kind = "RETURN"
)

// RefKind maps the order kind to its ledger reference kind.
func (k Kind) RefKind() shared.RefKind {
	switch k {
	case KindSale:
		return shared.RefSaleOrder
	case KindPurchase:
		return shared.RefPurchaseOrder
	case KindReturn:
		return shared.RefReturnOrder
	}
	return shared.RefNone
}

// Status is an order lifecycle state.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusOrdered         Status = "ORDERED"
	StatusPartialReceived Status = "PARTIAL_RECEIVED"
	StatusReceived        Status = "RECEIVED"
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
	StatusRefunded        Status = "REFUNDED"
)

// Order is the header shared by sale, purchase and return orders.
// PartyID is the customer for sales and returns, the supplier for purchases,
// and zero for walk-in sales.
type Order struct {
	ID             int64                `json:"id"`
	Kind           Kind                 `json:"kind"`
	Number         string               `json:"number"`
	PartyID        int64                `json:"party_id,omitempty"`
	SourceOrderID  int64                `json:"source_order_id,omitempty"`
	WarehouseID    int64                `json:"warehouse_id,omitempty"`
	Lines          []Line               `json:"lines"`
	Subtotal       decimal.Decimal      `json:"subtotal"`
	DiscountSpec   DiscountSpec         `json:"discount_spec"`
	Discount       decimal.Decimal      `json:"discount"`
	Total          decimal.Decimal      `json:"total"`
	PaymentMethod  shared.PaymentMethod `json:"payment_method"`
	PaidAmount     decimal.Decimal      `json:"paid_amount"`
	RefundedAmount decimal.Decimal      `json:"refunded_amount"`
	DueDate        *time.Time           `json:"due_date,omitempty"`
	Status         Status               `json:"status"`
	Reason         string               `json:"reason,omitempty"`
	Notes          string               `json:"notes,omitempty"`
	Actor          string               `json:"actor"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
}

// Reference returns the ledger reference for the order.
func (o Order) Reference() shared.Reference {
	return shared.Ref(o.Kind.RefKind(), o.ID)
}

// Line returns the line with id.
func (o Order) Line(id int64) (Line, bool) {
	for _, l := range o.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return Line{}, false
}

// Outstanding returns what is still owed on the order.
func (o Order) Outstanding() decimal.Decimal {
	left := o.Total.Sub(o.PaidAmount).Sub(o.RefundedAmount)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// Line is an order line. ReceivedQuantity is tracked on purchase lines,
// RefundedQuantity on sale lines, SourceLineID on return lines.
type Line struct {
	ID               int64           `json:"id"`
	OrderID          int64           `json:"order_id"`
	ProductID        int64           `json:"product_id"`
	UnitID           int64           `json:"unit_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Discount         decimal.Decimal `json:"discount"`
	Total            decimal.Decimal `json:"total"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
	RefundedQuantity decimal.Decimal `json:"refunded_quantity"`
	SourceLineID     int64           `json:"source_line_id,omitempty"`
	ExpiryDate       *time.Time      `json:"expiry_date,omitempty"`
	Notes            string          `json:"notes,omitempty"`
}

// Remaining returns the quantity not yet received on a purchase line.
func (l Line) Remaining() decimal.Decimal {
	return l.Quantity.Sub(l.ReceivedQuantity)
}

// Refundable returns the quantity of a sale line not yet refunded or returned.
func (l Line) Refundable() decimal.Decimal {
	return l.Quantity.Sub(l.RefundedQuantity)
}

// LineInput describes a draft line.
type LineInput struct {
	ProductID int64
	UnitID    int64
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	Notes     string
}

// DraftInput describes a sale or purchase draft.
type DraftInput struct {
	Number        string
	PartyID       int64
	WarehouseID   int64
	Lines         []LineInput
	Discount      DiscountSpec
	PaymentMethod shared.PaymentMethod
	DueDate       *time.Time
	Notes         string
	Actor         string
}

// ReturnLineInput references a line of the source sale.
type ReturnLineInput struct {
	SaleLineID int64
	Quantity   decimal.Decimal
	Notes      string
}

// ReturnInput describes a return order against a completed sale.
type ReturnInput struct {
	SaleOrderID  int64
	WarehouseID  int64
	Lines        []ReturnLineInput
	RefundMethod shared.PaymentMethod
	Reason       string
	Notes        string
	Actor        string
}

// ListFilter filters order listings.
type ListFilter struct {
	Kind   Kind
	Status Status
	Limit  int
}

var (
	// ErrNotFound indicates a missing order.
	ErrNotFound = fmt.Errorf("%w: order", shared.ErrNotFound)
	// ErrInvalidState occurs when action violates status workflow.
	ErrInvalidState = fmt.Errorf("%w: order: invalid state transition", shared.ErrStateConflict)
	// ErrValidation indicates invalid order input.
	ErrValidation = fmt.Errorf("%w: order", shared.ErrValidation)
)
