package inventory

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ToBaseQuantity converts qty expressed in unitID into the product's base unit.
// Only the product's own stocking unit and base unit are accepted; multi-hop
// conversions are rejected rather than passed through.
func ToBaseQuantity(units ProductUnits, unitID int64, qty decimal.Decimal) (decimal.Decimal, error) {
	base := units.BaseUnitID
	if base == 0 {
		base = units.UnitID
	}
	switch {
	case unitID == 0 || unitID == base:
		return qty, nil
	case unitID == units.UnitID:
		if !units.ConversionRate.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: product %d has no conversion rate", ErrInvalidUnit, units.ProductID)
		}
		return qty.Mul(units.ConversionRate), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unit %d for product %d", ErrInvalidUnit, unitID, units.ProductID)
	}
}

// UnitCost converts the price of one transacted unit to the price of one base unit.
func UnitCost(price, qty, baseQty decimal.Decimal) decimal.Decimal {
	if !baseQty.IsPositive() {
		return decimal.Zero
	}
	return price.Mul(qty).Div(baseQty).Round(4)
}
