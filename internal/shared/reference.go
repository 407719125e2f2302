package shared

import (
	"fmt"
	"strconv"
	"strings"
)

// RefKind enumerates the entities a ledger row may point back to.
type RefKind string

const (
	RefNone            RefKind = ""
	RefSaleOrder       RefKind = "SALE_ORDER"
	RefPurchaseOrder   RefKind = "PURCHASE_ORDER"
	RefReturnOrder     RefKind = "RETURN_ORDER"
	RefDebtTransaction RefKind = "DEBT_TRANSACTION"
	RefStockAdjustment RefKind = "STOCK_ADJUSTMENT"
)

// RefKinds lists every known reference kind.
func RefKinds() []RefKind {
	return []RefKind{RefSaleOrder, RefPurchaseOrder, RefReturnOrder, RefDebtTransaction, RefStockAdjustment}
}

// Valid reports whether k is a known kind.
func (k RefKind) Valid() bool {
	for _, known := range RefKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Reference links a ledger row to the order or transaction that caused it.
type Reference struct {
	Kind RefKind `json:"kind,omitempty"`
	ID   int64   `json:"id,omitempty"`
}

// Ref builds a Reference.
func Ref(kind RefKind, id int64) Reference {
	return Reference{Kind: kind, ID: id}
}

// IsZero reports whether the reference is unset.
func (r Reference) IsZero() bool {
	return r.Kind == RefNone && r.ID == 0
}

// Validate checks the reference is either unset or well formed.
func (r Reference) Validate() error {
	if r.IsZero() {
		return nil
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown reference kind %q", ErrValidation, r.Kind)
	}
	if r.ID <= 0 {
		return fmt.Errorf("%w: reference id required", ErrValidation)
	}
	return nil
}

func (r Reference) String() string {
	if r.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// ParseReference parses the KIND:ID form produced by String.
func ParseReference(raw string) (Reference, error) {
	if raw == "" {
		return Reference{}, nil
	}
	kind, id, ok := strings.Cut(raw, ":")
	if !ok {
		return Reference{}, fmt.Errorf("%w: malformed reference %q", ErrValidation, raw)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return Reference{}, fmt.Errorf("%w: malformed reference id %q", ErrValidation, id)
	}
	ref := Reference{Kind: RefKind(strings.ToUpper(kind)), ID: n}
	return ref, ref.Validate()
}
