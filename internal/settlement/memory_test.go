package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/cashbook"
	"github.com/odyssey-erp/odyssey-retail/internal/debt"
	"github.com/odyssey-erp/odyssey-retail/internal/inventory"
	"github.com/odyssey-erp/odyssey-retail/internal/orders"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

var errInjected = errors.New("injected storage failure")

// memoryStore keeps every ledger in maps. Each transaction records undo
// closures for its own writes and replays them on failure, so concurrent
// transactions on disjoint keys do not clobber each other.
type memoryStore struct {
	mu          sync.Mutex
	orders      map[int64]orders.Order
	records     map[string]inventory.StockRecord
	movements   []inventory.Movement
	products    map[int64]inventory.ProductUnits
	warehouses  map[int64]inventory.Warehouse
	adjustments []inventory.Adjustment
	accounts    map[string]debt.Account
	debtTxns    []debt.Transaction
	cash        []cashbook.Entry
	keys        map[string]Event
	nextID      int64
	failOn      string
}

type memoryTx struct {
	s    *memoryStore
	undo []func()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		orders:  make(map[int64]orders.Order),
		records: make(map[string]inventory.StockRecord),
		products: map[int64]inventory.ProductUnits{
			1: {ProductID: 1, UnitID: 1},
			2: {ProductID: 2, UnitID: 2},
			// box of 12 pieces
			3: {ProductID: 3, UnitID: 30, BaseUnitID: 31, ConversionRate: decimal.NewFromInt(12)},
		},
		warehouses: map[int64]inventory.Warehouse{
			1: {ID: 1, Name: "Main", IsDefault: true, IsActive: true},
			2: {ID: 2, Name: "Store", IsActive: true},
			3: {ID: 3, Name: "Closed", IsActive: false},
		},
		accounts: make(map[string]debt.Account),
		keys:     make(map[string]Event),
		nextID:   100,
	}
}

func stockKey(productID, warehouseID int64) string {
	return fmt.Sprintf("%d:%d", productID, warehouseID)
}

func accountKey(party debt.Party, id int64) string {
	return fmt.Sprintf("%s:%d", party, id)
}

func cloneOrder(o orders.Order) orders.Order {
	o.Lines = append([]orders.Line(nil), o.Lines...)
	return o
}

func (s *memoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	tx := &memoryTx{s: s}
	if err := fn(ctx, tx); err != nil {
		s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memoryStore) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	return cloneOrder(o), nil
}

// seeding helpers used by tests

func (s *memoryStore) seedStock(productID, warehouseID int64, qty string) {
	q := decimal.RequireFromString(qty)
	s.records[stockKey(productID, warehouseID)] = inventory.StockRecord{ProductID: productID, WarehouseID: warehouseID, Quantity: q}
	s.movements = append(s.movements, inventory.Movement{ID: s.id(), ProductID: productID, WarehouseID: warehouseID, Direction: inventory.DirectionIn, Quantity: q})
}

func (s *memoryStore) seedAccount(party debt.Party, id int64, balance string) {
	s.accounts[accountKey(party, id)] = debt.Account{Party: party, PartyID: id, Balance: decimal.RequireFromString(balance)}
}

func (s *memoryStore) seedOrder(o orders.Order) orders.Order {
	o.ID = s.id()
	for i := range o.Lines {
		o.Lines[i].ID = s.id()
		o.Lines[i].OrderID = o.ID
	}
	s.orders[o.ID] = cloneOrder(o)
	return o
}

func (s *memoryStore) stock(productID, warehouseID int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[stockKey(productID, warehouseID)].Quantity
}

func (s *memoryStore) balance(party debt.Party, id int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[accountKey(party, id)].Balance
}

func (s *memoryStore) order(id int64) orders.Order {
	o, _ := s.GetOrder(context.Background(), id)
	return o
}

func (tx *memoryTx) fail(op string) error {
	if tx.s.failOn == op {
		return fmt.Errorf("%s: %w", op, errInjected)
	}
	return nil
}

func (tx *memoryTx) Orders() orders.TxRepository { return tx }
func (tx *memoryTx) Stock() inventory.TxRepository { return tx }
func (tx *memoryTx) Debt() debt.TxRepository { return tx }
func (tx *memoryTx) Cash() cashbook.TxRepository { return tx }

func (tx *memoryTx) ClaimKey(ctx context.Context, key string, event Event) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	if _, ok := tx.s.keys[key]; ok {
		return shared.ErrIdempotencyConflict
	}
	tx.s.keys[key] = event
	tx.undo = append(tx.undo, func() { delete(tx.s.keys, key) })
	return nil
}

// orders.TxRepository

func (tx *memoryTx) GetOrderForUpdate(ctx context.Context, id int64) (orders.Order, error) {
	return tx.s.GetOrder(ctx, id)
}

func (tx *memoryTx) InsertOrder(ctx context.Context, o orders.Order) (orders.Order, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	o.ID = tx.s.id()
	for i := range o.Lines {
		o.Lines[i].ID = tx.s.id()
		o.Lines[i].OrderID = o.ID
	}
	tx.s.orders[o.ID] = cloneOrder(o)
	id := o.ID
	tx.undo = append(tx.undo, func() { delete(tx.s.orders, id) })
	return o, nil
}

func (tx *memoryTx) UpdateOrder(ctx context.Context, o orders.Order) error {
	if err := tx.fail("UpdateOrder"); err != nil {
		return err
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	prev, ok := tx.s.orders[o.ID]
	if !ok {
		return orders.ErrNotFound
	}
	next := cloneOrder(o)
	// lines are persisted separately
	next.Lines = prev.Lines
	tx.s.orders[o.ID] = next
	tx.undo = append(tx.undo, func() {
		cur := tx.s.orders[o.ID]
		prev.Lines = cur.Lines
		tx.s.orders[o.ID] = prev
	})
	return nil
}

func (tx *memoryTx) ReplaceLines(ctx context.Context, orderID int64, lines []orders.Line) ([]orders.Line, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	o := tx.s.orders[orderID]
	prev := o.Lines
	out := make([]orders.Line, 0, len(lines))
	for _, l := range lines {
		l.ID = tx.s.id()
		l.OrderID = orderID
		out = append(out, l)
	}
	o.Lines = out
	tx.s.orders[orderID] = o
	tx.undo = append(tx.undo, func() {
		cur := tx.s.orders[orderID]
		cur.Lines = prev
		tx.s.orders[orderID] = cur
	})
	return out, nil
}

func (tx *memoryTx) UpdateLine(ctx context.Context, line orders.Line) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	o := tx.s.orders[line.OrderID]
	lines := append([]orders.Line(nil), o.Lines...)
	for i := range lines {
		if lines[i].ID == line.ID {
			prev := lines[i]
			lines[i] = line
			tx.undo = append(tx.undo, func() {
				cur := tx.s.orders[line.OrderID]
				restored := append([]orders.Line(nil), cur.Lines...)
				for j := range restored {
					if restored[j].ID == prev.ID {
						restored[j] = prev
					}
				}
				cur.Lines = restored
				tx.s.orders[line.OrderID] = cur
			})
		}
	}
	o.Lines = lines
	tx.s.orders[line.OrderID] = o
	return nil
}

func (tx *memoryTx) DeleteOrder(ctx context.Context, id int64) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	prev := tx.s.orders[id]
	delete(tx.s.orders, id)
	tx.undo = append(tx.undo, func() { tx.s.orders[id] = prev })
	return nil
}

func (tx *memoryTx) PendingReturnQuantities(ctx context.Context, saleOrderID, excludeReturnID int64) (map[int64]decimal.Decimal, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	pending := map[int64]decimal.Decimal{}
	for _, o := range tx.s.orders {
		if o.Kind != orders.KindReturn || o.Status != orders.StatusDraft || o.SourceOrderID != saleOrderID || o.ID == excludeReturnID {
			continue
		}
		for _, l := range o.Lines {
			pending[l.SourceLineID] = pending[l.SourceLineID].Add(l.Quantity)
		}
	}
	return pending, nil
}

// inventory.TxRepository

func (tx *memoryTx) GetRecordForUpdate(ctx context.Context, productID, warehouseID int64) (inventory.StockRecord, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	rec, ok := tx.s.records[stockKey(productID, warehouseID)]
	if !ok {
		return inventory.StockRecord{}, inventory.ErrRecordNotFound
	}
	return rec, nil
}

func (tx *memoryTx) UpsertRecord(ctx context.Context, record inventory.StockRecord) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	k := stockKey(record.ProductID, record.WarehouseID)
	prev, existed := tx.s.records[k]
	tx.s.records[k] = record
	tx.undo = append(tx.undo, func() {
		if existed {
			tx.s.records[k] = prev
		} else {
			delete(tx.s.records, k)
		}
	})
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m inventory.Movement) (int64, error) {
	if err := tx.fail("InsertMovement"); err != nil {
		return 0, err
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	m.ID = tx.s.id()
	tx.s.movements = append(tx.s.movements, m)
	id := m.ID
	tx.undo = append(tx.undo, func() {
		kept := tx.s.movements[:0]
		for _, mv := range tx.s.movements {
			if mv.ID != id {
				kept = append(kept, mv)
			}
		}
		tx.s.movements = kept
	})
	return m.ID, nil
}

func (tx *memoryTx) InsertAdjustment(ctx context.Context, adj inventory.Adjustment) (int64, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	adj.ID = tx.s.id()
	tx.s.adjustments = append(tx.s.adjustments, adj)
	return adj.ID, nil
}

func (tx *memoryTx) GetProductUnits(ctx context.Context, productID int64) (inventory.ProductUnits, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	units, ok := tx.s.products[productID]
	if !ok {
		return inventory.ProductUnits{}, inventory.ErrProductNotFound
	}
	return units, nil
}

func (tx *memoryTx) GetWarehouse(ctx context.Context, id int64) (inventory.Warehouse, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	wh, ok := tx.s.warehouses[id]
	if !ok {
		return inventory.Warehouse{}, inventory.ErrWarehouseNotFound
	}
	return wh, nil
}

// debt.TxRepository

func (tx *memoryTx) GetAccountForUpdate(ctx context.Context, party debt.Party, partyID int64) (debt.Account, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	acct, ok := tx.s.accounts[accountKey(party, partyID)]
	if !ok {
		return debt.Account{}, debt.ErrAccountNotFound
	}
	return acct, nil
}

func (tx *memoryTx) InsertAccount(ctx context.Context, acct debt.Account) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	k := accountKey(acct.Party, acct.PartyID)
	tx.s.accounts[k] = acct
	tx.undo = append(tx.undo, func() { delete(tx.s.accounts, k) })
	return nil
}

func (tx *memoryTx) UpdateAccount(ctx context.Context, acct debt.Account) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	k := accountKey(acct.Party, acct.PartyID)
	prev, ok := tx.s.accounts[k]
	if !ok {
		return debt.ErrAccountNotFound
	}
	tx.s.accounts[k] = acct
	tx.undo = append(tx.undo, func() { tx.s.accounts[k] = prev })
	return nil
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, t debt.Transaction) (int64, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	t.ID = tx.s.id()
	tx.s.debtTxns = append(tx.s.debtTxns, t)
	id := t.ID
	tx.undo = append(tx.undo, func() {
		kept := tx.s.debtTxns[:0]
		for _, d := range tx.s.debtTxns {
			if d.ID != id {
				kept = append(kept, d)
			}
		}
		tx.s.debtTxns = kept
	})
	return t.ID, nil
}

// cashbook.TxRepository

func (tx *memoryTx) InsertEntry(ctx context.Context, e cashbook.Entry) (int64, error) {
	if err := tx.fail("InsertEntry"); err != nil {
		return 0, err
	}
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	e.ID = tx.s.id()
	tx.s.cash = append(tx.s.cash, e)
	id := e.ID
	tx.undo = append(tx.undo, func() {
		kept := tx.s.cash[:0]
		for _, c := range tx.s.cash {
			if c.ID != id {
				kept = append(kept, c)
			}
		}
		tx.s.cash = kept
	})
	return e.ID, nil
}
