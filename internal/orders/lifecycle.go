package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var transitions = map[Kind]map[Status][]Status{
	KindSale: {
		StatusDraft:     {StatusCompleted},
		StatusCompleted: {StatusCancelled, StatusRefunded},
	},
	KindPurchase: {
		StatusDraft:           {StatusOrdered},
		StatusOrdered:         {StatusPartialReceived, StatusReceived, StatusCancelled},
		StatusPartialReceived: {StatusPartialReceived, StatusReceived},
	},
	KindReturn: {
		StatusDraft: {StatusCompleted, StatusCancelled},
	},
}

// CanTransition reports whether kind allows moving from one status to another.
func CanTransition(kind Kind, from, to Status) bool {
	for _, next := range transitions[kind][from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves o to status to, stamping completion for terminal success states.
func Transition(o *Order, to Status, at time.Time) error {
	if !CanTransition(o.Kind, o.Status, to) {
		return fmt.Errorf("%w: %s order %d cannot move from %s to %s", ErrInvalidState, o.Kind, o.ID, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = at
	if to == StatusCompleted || to == StatusReceived {
		o.CompletedAt = &at
	}
	return nil
}

// RequireStatus fails with a state conflict unless o is in one of allowed.
func RequireStatus(o Order, action string, allowed ...Status) error {
	for _, s := range allowed {
		if o.Status == s {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s %s order %d in status %s", ErrInvalidState, action, o.Kind, o.ID, o.Status)
}

// ReceivingAllowed reports whether goods can be received or paid for on a purchase.
func ReceivingAllowed(o Order) bool {
	return o.Kind == KindPurchase && (o.Status == StatusOrdered || o.Status == StatusPartialReceived || o.Status == StatusReceived)
}

// DerivePurchaseStatus computes the status implied by cumulative received quantities.
func DerivePurchaseStatus(lines []Line) Status {
	if len(lines) == 0 {
		return StatusOrdered
	}
	full := true
	any := false
	for _, l := range lines {
		if l.ReceivedQuantity.IsPositive() {
			any = true
		}
		if l.ReceivedQuantity.LessThan(l.Quantity) {
			full = false
		}
	}
	switch {
	case full:
		return StatusReceived
	case any:
		return StatusPartialReceived
	default:
		return StatusOrdered
	}
}

// RefundAmount returns the proportional value of qty units of a sale line:
// lineTotal / lineQuantity × qty. Order-level discounts are not apportioned
// back onto lines.
func RefundAmount(line Line, qty decimal.Decimal) decimal.Decimal {
	if !line.Quantity.IsPositive() {
		return decimal.Zero
	}
	return line.Total.Mul(qty).Div(line.Quantity).Round(2)
}

// FullyRefunded reports whether every sale line has been refunded or returned.
func FullyRefunded(lines []Line) bool {
	for _, l := range lines {
		if l.RefundedQuantity.LessThan(l.Quantity) {
			return false
		}
	}
	return true
}
