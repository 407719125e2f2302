package shared

import "fmt"

// StockLockKey builds the lock key guarding a (product, warehouse) stock row.
func StockLockKey(productID, warehouseID int64) string {
	return fmt.Sprintf("stock:%d:%d", productID, warehouseID)
}

// DebtLockKey builds the lock key guarding a customer or supplier debt account.
func DebtLockKey(party string, partyID int64) string {
	return fmt.Sprintf("debt:%s:%d", party, partyID)
}

// OrderLockKey builds the lock key guarding an order and its lines.
func OrderLockKey(orderID int64) string {
	return fmt.Sprintf("order:%d", orderID)
}
