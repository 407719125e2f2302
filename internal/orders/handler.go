package orders

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Handler wires HTTP endpoints for order documents.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs order handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/sales", h.createDraft(KindSale))
	r.Post("/purchases", h.createDraft(KindPurchase))
	r.Post("/returns", h.createReturn)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.updateDraft)
	r.Delete("/{id}", h.delete)
	r.Post("/returns/{id}/cancel", h.cancelReturn)
}

type lineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	UnitID    int64           `json:"unit_id" validate:"gte=0"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	Notes     string          `json:"notes" validate:"max=500"`
}

type draftRequest struct {
	Number        string               `json:"number" validate:"max=64"`
	PartyID       int64                `json:"party_id" validate:"gte=0"`
	WarehouseID   int64                `json:"warehouse_id" validate:"gte=0"`
	Lines         []lineRequest        `json:"lines" validate:"required,min=1,dive"`
	Discount      DiscountSpec         `json:"discount"`
	PaymentMethod shared.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=CASH TRANSFER CARD CREDIT"`
	DueDate       *time.Time           `json:"due_date"`
	Notes         string               `json:"notes" validate:"max=1000"`
	Actor         string               `json:"actor"`
}

func (req draftRequest) input(r *http.Request) DraftInput {
	in := DraftInput{
		Number:        req.Number,
		PartyID:       req.PartyID,
		WarehouseID:   req.WarehouseID,
		Discount:      req.Discount,
		PaymentMethod: req.PaymentMethod,
		DueDate:       req.DueDate,
		Notes:         req.Notes,
		Actor:         httpx.Actor(r, req.Actor),
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, LineInput{
			ProductID: l.ProductID, UnitID: l.UnitID, Quantity: l.Quantity,
			UnitPrice: l.UnitPrice, Discount: l.Discount, Notes: l.Notes,
		})
	}
	return in
}

type returnLineRequest struct {
	SaleLineID int64           `json:"sale_line_id" validate:"required,gt=0"`
	Quantity   decimal.Decimal `json:"quantity"`
	Notes      string          `json:"notes" validate:"max=500"`
}

type returnRequest struct {
	SaleOrderID  int64                `json:"sale_order_id" validate:"required,gt=0"`
	WarehouseID  int64                `json:"warehouse_id" validate:"gte=0"`
	Lines        []returnLineRequest  `json:"lines" validate:"required,min=1,dive"`
	RefundMethod shared.PaymentMethod `json:"refund_method" validate:"omitempty,oneof=CASH TRANSFER CARD CREDIT"`
	Reason       string               `json:"reason" validate:"max=500"`
	Notes        string               `json:"notes" validate:"max=1000"`
	Actor        string               `json:"actor"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
	Actor  string `json:"actor"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	orders, err := h.service.List(r.Context(), ListFilter{Kind: Kind(q.Get("kind")), Status: Status(q.Get("status")), Limit: limit})
	if err != nil {
		h.fail(w, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) createDraft(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req draftRequest
		if !httpx.Bind(w, r, h.validator, &req) {
			return
		}
		order, err := h.service.CreateDraft(r.Context(), kind, req.input(r))
		if err != nil {
			h.fail(w, "create draft", err)
			return
		}
		httpx.JSON(w, http.StatusCreated, order)
	}
}

func (h *Handler) updateDraft(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req draftRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	order, err := h.service.UpdateDraft(r.Context(), id, req.input(r))
	if err != nil {
		h.fail(w, "update draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) createReturn(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	in := ReturnInput{
		SaleOrderID:  req.SaleOrderID,
		WarehouseID:  req.WarehouseID,
		RefundMethod: req.RefundMethod,
		Reason:       req.Reason,
		Notes:        req.Notes,
		Actor:        httpx.Actor(r, req.Actor),
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, ReturnLineInput{SaleLineID: l.SaleLineID, Quantity: l.Quantity, Notes: l.Notes})
	}
	order, err := h.service.CreateReturnDraft(r.Context(), in)
	if err != nil {
		h.fail(w, "create return", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) cancelReturn(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req cancelRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	order, err := h.service.CancelReturn(r.Context(), id, req.Reason, httpx.Actor(r, req.Actor))
	if err != nil {
		h.fail(w, "cancel return", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id, httpx.Actor(r, "")); err != nil {
		h.fail(w, "delete order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
