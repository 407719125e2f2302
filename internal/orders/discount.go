package orders

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountKind selects how a DiscountSpec value is read.
type DiscountKind string

const (
	DiscountPercent DiscountKind = "PERCENT"
	DiscountAmount  DiscountKind = "AMOUNT"
)

// DiscountSpec is the order-level discount shared by every order kind.
type DiscountSpec struct {
	Kind  DiscountKind    `json:"kind,omitempty"`
	Value decimal.Decimal `json:"value"`
}

var hundred = decimal.NewFromInt(100)

// ComputeDiscount returns the absolute discount that d grants on base.
func ComputeDiscount(base decimal.Decimal, d DiscountSpec) (decimal.Decimal, error) {
	if d.Value.IsZero() {
		return decimal.Zero, nil
	}
	if d.Value.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: discount must not be negative", ErrValidation)
	}
	switch d.Kind {
	case DiscountPercent:
		if d.Value.GreaterThan(hundred) {
			return decimal.Zero, fmt.Errorf("%w: discount percent above 100", ErrValidation)
		}
		return base.Mul(d.Value).Div(hundred).Round(2), nil
	case DiscountAmount, "":
		if d.Value.GreaterThan(base) {
			return decimal.Zero, fmt.Errorf("%w: discount %s exceeds subtotal %s", ErrValidation, d.Value, base)
		}
		return d.Value, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: unknown discount kind %q", ErrValidation, d.Kind)
	}
}

// LineTotal returns quantity × unit price − line discount.
func LineTotal(l Line) decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice).Sub(l.Discount)
}

// Totals holds the derived amounts of an order.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals derives subtotal, discount and total, and fills each line total.
func ComputeTotals(lines []Line, d DiscountSpec) (Totals, error) {
	var subtotal decimal.Decimal
	for i := range lines {
		l := &lines[i]
		if !l.Quantity.IsPositive() {
			return Totals{}, fmt.Errorf("%w: line %d quantity must be positive", ErrValidation, i+1)
		}
		if l.UnitPrice.IsNegative() {
			return Totals{}, fmt.Errorf("%w: line %d unit price must not be negative", ErrValidation, i+1)
		}
		gross := l.Quantity.Mul(l.UnitPrice)
		if l.Discount.IsNegative() || l.Discount.GreaterThan(gross) {
			return Totals{}, fmt.Errorf("%w: line %d discount out of range", ErrValidation, i+1)
		}
		l.Total = LineTotal(*l)
		subtotal = subtotal.Add(l.Total)
	}
	discount, err := ComputeDiscount(subtotal, d)
	if err != nil {
		return Totals{}, err
	}
	return Totals{Subtotal: subtotal, Discount: discount, Total: subtotal.Sub(discount)}, nil
}

// Apply stores totals on the order header.
func (t Totals) Apply(o *Order) {
	o.Subtotal = t.Subtotal
	o.Discount = t.Discount
	o.Total = t.Total
}
