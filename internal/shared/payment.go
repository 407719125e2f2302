package shared

// PaymentMethod identifies how an order or debt transaction was paid.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "CASH"
	PaymentTransfer PaymentMethod = "TRANSFER"
	PaymentCard     PaymentMethod = "CARD"
	PaymentCredit   PaymentMethod = "CREDIT"
)

// MovesCash reports whether settlements paid with m produce cashbook entries.
// Credit only moves the debt ledger.
func (m PaymentMethod) MovesCash() bool {
	return m != "" && m != PaymentCredit
}

// IsCredit reports whether m defers payment to the debt ledger.
func (m PaymentMethod) IsCredit() bool {
	return m == PaymentCredit
}

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentTransfer, PaymentCard, PaymentCredit:
		return true
	}
	return false
}
