package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceRoundTrip(t *testing.T) {
	ref := Ref(RefReturnOrder, 42)
	require.Equal(t, "RETURN_ORDER:42", ref.String())

	parsed, err := ParseReference("return_order:42")
	require.NoError(t, err)
	assert.Equal(t, ref, parsed)

	empty, err := ParseReference("")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
	assert.Empty(t, empty.String())
}

func TestReferenceValidation(t *testing.T) {
	cases := []string{"SALE_ORDER", "SALE_ORDER:x", "INVOICE:3", "DEBT_TRANSACTION:0"}
	for _, raw := range cases {
		_, err := ParseReference(raw)
		assert.ErrorIs(t, err, ErrValidation, raw)
	}
	for _, kind := range RefKinds() {
		assert.NoError(t, Ref(kind, 1).Validate())
	}
}

func TestPaymentMethod(t *testing.T) {
	assert.True(t, PaymentCash.MovesCash())
	assert.True(t, PaymentCard.MovesCash())
	assert.False(t, PaymentCredit.MovesCash())
	assert.False(t, PaymentMethod("").MovesCash())
	assert.True(t, PaymentCredit.IsCredit())
	assert.False(t, PaymentMethod("CHEQUE").Valid())
}

func TestLockKeys(t *testing.T) {
	assert.Equal(t, "stock:3:1", StockLockKey(3, 1))
	assert.Equal(t, "debt:SUPPLIER:9", DebtLockKey("SUPPLIER", 9))
	assert.Equal(t, "order:12", OrderLockKey(12))
}

func TestIsCallerError(t *testing.T) {
	assert.True(t, IsCallerError(ErrIdempotencyConflict))
	assert.True(t, IsCallerError(ErrNotFound))
	assert.False(t, IsCallerError(ErrInternal))
}
