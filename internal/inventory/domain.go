package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Direction tells whether a movement adds or removes stock.
type Direction string

const (
	// DirectionIn represents an inbound movement.
	DirectionIn Direction = "IN"
	// DirectionOut represents an outbound movement.
	DirectionOut Direction = "OUT"
)

// Sign returns +1 for inbound and -1 for outbound movements.
func (d Direction) Sign() int32 {
	if d == DirectionOut {
		return -1
	}
	return 1
}

// StockRecord caches the current quantity of a product in a warehouse, in base units.
type StockRecord struct {
	ProductID        int64           `json:"product_id"`
	WarehouseID      int64           `json:"warehouse_id"`
	Quantity         decimal.Decimal `json:"quantity"`
	ReservedQuantity decimal.Decimal `json:"reserved_quantity"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Movement is an append-only stock log row. Quantity is positive and in base units.
type Movement struct {
	ID              int64            `json:"id"`
	ProductID       int64            `json:"product_id"`
	WarehouseID     int64            `json:"warehouse_id"`
	Direction       Direction        `json:"direction"`
	Quantity        decimal.Decimal  `json:"quantity"`
	CostPrice       decimal.Decimal  `json:"cost_price"`
	Reference       shared.Reference `json:"reference"`
	TransactionDate time.Time        `json:"transaction_date"`
	Actor           string           `json:"actor"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Signed returns the movement quantity with its direction applied.
func (m Movement) Signed() decimal.Decimal {
	return m.Quantity.Mul(decimal.NewFromInt32(m.Direction.Sign()))
}

// ProductUnits describes the single conversion a product supports.
// stocking quantity × ConversionRate = base quantity.
type ProductUnits struct {
	ProductID      int64
	UnitID         int64
	BaseUnitID     int64
	ConversionRate decimal.Decimal
}

// Warehouse is the subset of warehouse attributes the ledger needs.
type Warehouse struct {
	ID        int64
	Name      string
	IsDefault bool
	IsActive  bool
}

// MovementInput describes one stock change to post.
type MovementInput struct {
	ProductID       int64
	WarehouseID     int64
	Direction       Direction
	Quantity        decimal.Decimal
	CostPrice       decimal.Decimal
	Reference       shared.Reference
	TransactionDate time.Time
	Actor           string
}

// AdjustmentInput describes a manual stock correction. Quantity is signed and
// expressed in UnitID.
type AdjustmentInput struct {
	ProductID   int64
	WarehouseID int64
	UnitID      int64
	Quantity    decimal.Decimal
	CostPrice   decimal.Decimal
	Note        string
	Actor       string
}

// TransferInput moves stock between warehouses.
type TransferInput struct {
	ProductID    int64
	SrcWarehouse int64
	DstWarehouse int64
	UnitID       int64
	Quantity     decimal.Decimal
	Note         string
	Actor        string
}

// Adjustment is the document that stock adjustment movements reference.
type Adjustment struct {
	ID          int64
	ProductID   int64
	WarehouseID int64
	Quantity    decimal.Decimal
	Note        string
	Actor       string
	CreatedAt   time.Time
}

// MovementFilter filters stock card queries.
type MovementFilter struct {
	WarehouseID int64
	ProductID   int64
	From        time.Time
	To          time.Time
	Limit       int
}

// Drift reports a stock row whose cached quantity disagrees with its movements.
type Drift struct {
	ProductID   int64
	WarehouseID int64
	Cached      decimal.Decimal
	Movements   decimal.Decimal
}

var (
	// ErrNegativeStock triggered when movement would result negative qty.
	ErrNegativeStock = fmt.Errorf("%w: inventory: insufficient stock", shared.ErrValidation)
	// ErrInvalidQuantity indicates invalid qty.
	ErrInvalidQuantity = fmt.Errorf("%w: inventory: quantity must be positive", shared.ErrValidation)
	// ErrInvalidUnit indicates a unit the product cannot be converted from.
	ErrInvalidUnit = fmt.Errorf("%w: inventory: unit not convertible for product", shared.ErrValidation)
	// ErrRecordNotFound indicates missing stock row.
	ErrRecordNotFound = errors.New("inventory: stock record not found")
	// ErrProductNotFound indicates the product has no unit configuration.
	ErrProductNotFound = fmt.Errorf("%w: inventory: product", shared.ErrNotFound)
	// ErrWarehouseNotFound indicates the warehouse does not exist.
	ErrWarehouseNotFound = fmt.Errorf("%w: inventory: warehouse", shared.ErrNotFound)
	// ErrAdjustmentNotFound indicates a missing adjustment document.
	ErrAdjustmentNotFound = fmt.Errorf("%w: inventory: adjustment", shared.ErrNotFound)
	// ErrWarehouseInactive indicates the warehouse cannot take movements.
	ErrWarehouseInactive = fmt.Errorf("%w: inventory: warehouse inactive", shared.ErrValidation)
	// ErrNoDefaultWarehouse is a startup configuration error.
	ErrNoDefaultWarehouse = errors.New("inventory: no active default warehouse configured")
)
