package settlement

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-retail/internal/debt"
	"github.com/odyssey-erp/odyssey-retail/internal/orders"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

func newTestRouter(f *fixture, refs *ReferenceRegistry) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), f.svc, refs)
	r := chi.NewRouter()
	r.Route("/api/settlements", h.MountRoutes)
	r.Route("/api/references", h.MountReferenceRoutes)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandlerPayDebtAndReplay(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.seedAccount(debt.PartyCustomer, 7, "100")
	router := newTestRouter(f, nil)
	body := `{"party":"CUSTOMER","party_id":7,"amount":"40","payment_method":"CASH"}`
	headers := map[string]string{"X-Actor": "kasir-1", IdempotencyHeader: "collect-7"}

	rr := doJSON(t, router, http.MethodPost, "/api/settlements/debts/payments", body, headers)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.Equal(t, EventPayDebt, res.Event)
	require.Len(t, res.DebtTransactions, 1)
	assert.Equal(t, "kasir-1", res.DebtTransactions[0].Actor)
	requireDec(t, "60", res.DebtTransactions[0].BalanceAfter)

	rr = doJSON(t, router, http.MethodPost, "/api/settlements/debts/payments", body, headers)
	assert.Equal(t, http.StatusConflict, rr.Code)
	requireDec(t, "60", f.store.balance(debt.PartyCustomer, 7))
}

func TestHandlerErrorMapping(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.seedAccount(debt.PartyCustomer, 7, "100")
	router := newTestRouter(f, nil)

	rr := doJSON(t, router, http.MethodPost, "/api/settlements/debts/payments", `{"party":"CUSTOMER","party_id":7,"amount":"400","payment_method":"CASH"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/settlements/debts/payments", `{"party":"CUSTOMER","party_id":8,"amount":"1","payment_method":"CASH"}`, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/settlements/debts/payments", `{"party":`, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/settlements/sales/abc/complete", ``, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	f.store.failOn = "InsertEntry"
	rr = doJSON(t, router, http.MethodPost, "/api/settlements/debts/payments", `{"party":"CUSTOMER","party_id":7,"amount":"1","payment_method":"CASH"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), errInjected.Error())
}

func TestHandlerCompleteSaleWithoutBody(t *testing.T) {
	f := newFixture(t, Config{})
	f.store.seedStock(1, 2, "10")
	f.store.seedStock(2, 2, "10")
	sale := f.draftSale(shared.PaymentCash, 0)
	router := newTestRouter(f, nil)

	rr := doJSON(t, router, http.MethodPost, "/api/settlements/sales/"+strconv.FormatInt(sale.ID, 10)+"/complete", ``, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, orders.StatusCompleted, f.store.order(sale.ID).Status)

	rr = doJSON(t, router, http.MethodPost, "/api/settlements/sales/"+strconv.FormatInt(sale.ID, 10)+"/complete", ``, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandlerReferenceLookup(t *testing.T) {
	f := newFixture(t, Config{})
	sale := f.draftSale(shared.PaymentCash, 0)
	refs := NewReferenceRegistry()
	refs.Register(shared.RefSaleOrder, func(ctx context.Context, id int64) (any, error) {
		return f.store.GetOrder(ctx, id)
	})
	router := newTestRouter(f, refs)

	rr := doJSON(t, router, http.MethodGet, "/api/references/sale_order/"+strconv.FormatInt(sale.ID, 10), ``, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"number":"SO-1"`)

	rr = doJSON(t, router, http.MethodGet, "/api/references/sale_order/999", ``, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = doJSON(t, router, http.MethodGet, "/api/references/debt_transaction/1", ``, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = doJSON(t, router, http.MethodGet, "/api/references/invoice/1", ``, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
