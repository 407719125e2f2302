package settlement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/cashbook"
	"github.com/odyssey-erp/odyssey-retail/internal/debt"
	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
	"github.com/odyssey-erp/odyssey-retail/internal/orders"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Event names a settlement business event.
type Event string

const (
	EventPayDebt        Event = "PAY_DEBT"
	EventAdjustDebt     Event = "ADJUST_DEBT"
	EventPlacePurchase  Event = "PLACE_PURCHASE"
	EventReceiveGoods   Event = "RECEIVE_GOODS"
	EventPayPurchase    Event = "PAY_PURCHASE"
	EventCancelPurchase Event = "CANCEL_PURCHASE"
	EventCompleteSale   Event = "COMPLETE_SALE"
	EventPaySale        Event = "PAY_SALE"
	EventRefundSale     Event = "REFUND_SALE"
	EventCancelSale     Event = "CANCEL_SALE"
	EventCreateReturn   Event = "CREATE_RETURN"
	EventCompleteReturn Event = "COMPLETE_RETURN"
)

// Result is the outcome of one settlement: the updated order snapshot and
// every ledger row appended by the event.
type Result struct {
	ID               string               `json:"id"`
	Event            Event                `json:"event"`
	Order            *orders.Order        `json:"order,omitempty"`
	SourceOrder      *orders.Order        `json:"source_order,omitempty"`
	Movements        []inventory.Movement `json:"movements"`
	DebtTransactions []debt.Transaction   `json:"debt_transactions"`
	CashEntries      []cashbook.Entry     `json:"cash_entries"`
	CompletedAt      time.Time            `json:"completed_at"`
}

// Meta carries fields common to every request. Requests without an
// idempotency key are not safe to retry.
type Meta struct {
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=128"`
	Actor          string `json:"actor" validate:"max=128"`
}

// PayDebtRequest collects a receivable or pays a payable.
type PayDebtRequest struct {
	Meta
	Party           debt.Party           `json:"party" validate:"required,oneof=CUSTOMER SUPPLIER"`
	PartyID         int64                `json:"party_id" validate:"required,gt=0"`
	Amount          decimal.Decimal      `json:"amount"`
	PaymentMethod   shared.PaymentMethod `json:"payment_method" validate:"required,oneof=CASH TRANSFER CARD CREDIT"`
	Description     string               `json:"description" validate:"max=500"`
	TransactionDate time.Time            `json:"transaction_date"`
}

// AdjustDebtRequest applies a signed correction to an account.
type AdjustDebtRequest struct {
	Meta
	Party   debt.Party      `json:"party" validate:"required,oneof=CUSTOMER SUPPLIER"`
	PartyID int64           `json:"party_id" validate:"required,gt=0"`
	Amount  decimal.Decimal `json:"amount"`
	Reason  string          `json:"reason" validate:"required,max=500"`
}

// OrderRequest targets an order without further input.
type OrderRequest struct {
	Meta
	OrderID int64  `json:"order_id" validate:"required,gt=0"`
	Reason  string `json:"reason" validate:"max=500"`
}

// ReceiveItem receives quantity of a purchase line, in the line's unit.
type ReceiveItem struct {
	LineID     int64           `json:"line_id" validate:"required,gt=0"`
	Quantity   decimal.Decimal `json:"quantity"`
	ExpiryDate *time.Time      `json:"expiry_date"`
}

// ReceiveGoodsRequest books goods into an explicit warehouse.
type ReceiveGoodsRequest struct {
	Meta
	OrderID     int64         `json:"order_id" validate:"required,gt=0"`
	WarehouseID int64         `json:"warehouse_id" validate:"required,gt=0"`
	Items       []ReceiveItem `json:"items" validate:"required,min=1,dive"`
}

// PayOrderRequest pays part of a purchase or credit sale.
type PayOrderRequest struct {
	Meta
	OrderID       int64                `json:"order_id" validate:"required,gt=0"`
	Amount        decimal.Decimal      `json:"amount"`
	PaymentMethod shared.PaymentMethod `json:"payment_method" validate:"required,oneof=CASH TRANSFER CARD CREDIT"`
	Notes         string               `json:"notes" validate:"max=500"`
}

// CompleteSaleRequest moves a draft sale to Completed.
type CompleteSaleRequest struct {
	Meta
	OrderID     int64 `json:"order_id" validate:"required,gt=0"`
	WarehouseID int64 `json:"warehouse_id" validate:"gte=0"`
}

// RefundLine refunds quantity of a sale line.
type RefundLine struct {
	LineID   int64           `json:"line_id" validate:"required,gt=0"`
	Quantity decimal.Decimal `json:"quantity"`
}

// RefundSaleRequest partially refunds a completed sale.
type RefundSaleRequest struct {
	Meta
	OrderID      int64                `json:"order_id" validate:"required,gt=0"`
	Lines        []RefundLine         `json:"lines" validate:"required,min=1,dive"`
	Restock      bool                 `json:"restock"`
	WarehouseID  int64                `json:"warehouse_id" validate:"gte=0"`
	RefundMethod shared.PaymentMethod `json:"refund_method" validate:"omitempty,oneof=CASH TRANSFER CARD CREDIT"`
	Reason       string               `json:"reason" validate:"max=500"`
}

// ReturnLine returns quantity of a sale line.
type ReturnLine struct {
	SaleLineID int64           `json:"sale_order_item_id" validate:"required,gt=0"`
	Quantity   decimal.Decimal `json:"quantity"`
	Notes      string          `json:"notes" validate:"max=500"`
}

// ReturnOptions selects which ledgers a return touches beyond stock.
type ReturnOptions struct {
	WarehouseID         int64 `json:"warehouse_id" validate:"gte=0"`
	UpdateReceivables   bool  `json:"update_receivables"`
	CreateCashbookEntry bool  `json:"create_cashbook_entry"`
}

// CreateReturnRequest records and completes a return in one event.
type CreateReturnRequest struct {
	Meta
	ReturnOptions
	SaleOrderID  int64                `json:"sale_order_id" validate:"required,gt=0"`
	Items        []ReturnLine         `json:"items" validate:"required,min=1,dive"`
	RefundMethod shared.PaymentMethod `json:"refund_method" validate:"omitempty,oneof=CASH TRANSFER CARD CREDIT"`
	Reason       string               `json:"reason" validate:"max=500"`
	Notes        string               `json:"notes" validate:"max=1000"`
}

// CompleteReturnRequest completes a draft return.
type CompleteReturnRequest struct {
	Meta
	ReturnOptions
	ReturnOrderID int64 `json:"return_order_id" validate:"required,gt=0"`
}
