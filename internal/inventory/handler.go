package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{productID}/{warehouseID}", h.handleRecord)
	r.Get("/{productID}/{warehouseID}/movements", h.handleMovements)
	r.Post("/adjustments", h.handleAdjustment)
	r.Post("/transfers", h.handleTransfer)
}

type adjustmentRequest struct {
	ProductID   int64           `json:"product_id" validate:"required,gt=0"`
	WarehouseID int64           `json:"warehouse_id" validate:"required,gt=0"`
	UnitID      int64           `json:"unit_id" validate:"gte=0"`
	Quantity    decimal.Decimal `json:"quantity"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	Note        string          `json:"note" validate:"max=500"`
	Actor       string          `json:"actor"`
}

type transferRequest struct {
	ProductID    int64           `json:"product_id" validate:"required,gt=0"`
	SrcWarehouse int64           `json:"src_warehouse_id" validate:"required,gt=0"`
	DstWarehouse int64           `json:"dst_warehouse_id" validate:"required,gt=0,nefield=SrcWarehouse"`
	UnitID       int64           `json:"unit_id" validate:"gte=0"`
	Quantity     decimal.Decimal `json:"quantity"`
	Note         string          `json:"note" validate:"max=500"`
	Actor        string          `json:"actor"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	productID, warehouseID, ok := h.rowParams(w, r)
	if !ok {
		return
	}
	rec, err := h.service.GetRecord(r.Context(), productID, warehouseID)
	if err != nil {
		h.fail(w, "stock record", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	productID, warehouseID, ok := h.rowParams(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	from, _ := time.Parse("2006-01-02", q.Get("from"))
	to, _ := time.Parse("2006-01-02", q.Get("to"))
	if !to.IsZero() {
		to = to.Add(24*time.Hour - time.Nanosecond)
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	movements, err := h.service.ListMovements(r.Context(), MovementFilter{
		ProductID: productID, WarehouseID: warehouseID, From: from, To: to, Limit: limit,
	})
	if err != nil {
		h.fail(w, "stock movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	movement, err := h.service.PostAdjustment(r.Context(), AdjustmentInput{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		UnitID:      req.UnitID,
		Quantity:    req.Quantity,
		CostPrice:   req.CostPrice,
		Note:        req.Note,
		Actor:       httpx.Actor(r, req.Actor),
	})
	if err != nil {
		h.fail(w, "stock adjustment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	out, in, err := h.service.PostTransfer(r.Context(), TransferInput{
		ProductID:    req.ProductID,
		SrcWarehouse: req.SrcWarehouse,
		DstWarehouse: req.DstWarehouse,
		UnitID:       req.UnitID,
		Quantity:     req.Quantity,
		Note:         req.Note,
		Actor:        httpx.Actor(r, req.Actor),
	})
	if err != nil {
		h.fail(w, "stock transfer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]Movement{"out": out, "in": in})
}

func (h *Handler) rowParams(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	productID, err := httpx.IDParam(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	warehouseID, err := httpx.IDParam(r, "warehouseID")
	if err != nil {
		httpx.RespondError(w, err)
		return 0, 0, false
	}
	return productID, warehouseID, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
