package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TxRepository exposes transactional operations used by the ledger. The
// settlement coordinator composes it with the other ledgers in one transaction.
type TxRepository interface {
	GetRecordForUpdate(ctx context.Context, productID, warehouseID int64) (StockRecord, error)
	UpsertRecord(ctx context.Context, record StockRecord) error
	InsertMovement(ctx context.Context, movement Movement) (int64, error)
	InsertAdjustment(ctx context.Context, adj Adjustment) (int64, error)
	GetProductUnits(ctx context.Context, productID int64) (ProductUnits, error)
	GetWarehouse(ctx context.Context, id int64) (Warehouse, error)
}

// Ledger applies stock movements.
type Ledger struct {
	allowNeg bool
	now      func() time.Time
}

// NewLedger builds Ledger.
func NewLedger(allowNegative bool) *Ledger {
	return &Ledger{allowNeg: allowNegative, now: func() time.Time { return time.Now().UTC() }}
}

// Post locks the stock row, applies the movement and appends the log row.
// The record upsert and the movement always travel in the caller's transaction.
func (l *Ledger) Post(ctx context.Context, tx TxRepository, input MovementInput) (Movement, StockRecord, error) {
	if input.ProductID == 0 || input.WarehouseID == 0 {
		return Movement{}, StockRecord{}, fmt.Errorf("%w: warehouse and product required", ErrInvalidQuantity)
	}
	if !input.Quantity.IsPositive() {
		return Movement{}, StockRecord{}, ErrInvalidQuantity
	}
	if input.Direction != DirectionIn && input.Direction != DirectionOut {
		return Movement{}, StockRecord{}, fmt.Errorf("%w: direction %q", ErrInvalidQuantity, input.Direction)
	}
	if err := input.Reference.Validate(); err != nil {
		return Movement{}, StockRecord{}, err
	}
	wh, err := tx.GetWarehouse(ctx, input.WarehouseID)
	if err != nil {
		return Movement{}, StockRecord{}, err
	}
	if !wh.IsActive {
		return Movement{}, StockRecord{}, ErrWarehouseInactive
	}

	record, err := tx.GetRecordForUpdate(ctx, input.ProductID, input.WarehouseID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return Movement{}, StockRecord{}, err
	}
	if errors.Is(err, ErrRecordNotFound) {
		record = StockRecord{ProductID: input.ProductID, WarehouseID: input.WarehouseID}
	}

	now := l.now()
	movement := Movement{
		ProductID:       input.ProductID,
		WarehouseID:     input.WarehouseID,
		Direction:       input.Direction,
		Quantity:        input.Quantity,
		CostPrice:       input.CostPrice,
		Reference:       input.Reference,
		TransactionDate: input.TransactionDate,
		Actor:           input.Actor,
		CreatedAt:       now,
	}
	if movement.TransactionDate.IsZero() {
		movement.TransactionDate = now
	}
	newQty := record.Quantity.Add(movement.Signed())
	if !l.allowNeg && newQty.IsNegative() {
		return Movement{}, StockRecord{}, fmt.Errorf("%w: product %d in warehouse %d has %s, needs %s",
			ErrNegativeStock, input.ProductID, input.WarehouseID, record.Quantity, input.Quantity)
	}
	record.Quantity = newQty
	record.UpdatedAt = now
	if err := tx.UpsertRecord(ctx, record); err != nil {
		return Movement{}, StockRecord{}, err
	}
	id, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return Movement{}, StockRecord{}, err
	}
	movement.ID = id
	return movement, record, nil
}

// Convert resolves the product's unit setup and returns qty in base units.
func Convert(ctx context.Context, tx TxRepository, productID, unitID int64, qty decimal.Decimal) (decimal.Decimal, error) {
	units, err := tx.GetProductUnits(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return ToBaseQuantity(units, unitID, qty)
}
