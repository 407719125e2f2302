package settlement

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-retail/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// IdempotencyHeader may carry the idempotency key instead of the body.
const IdempotencyHeader = "Idempotency-Key"

// Handler wires HTTP endpoints for settlement events.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	references *ReferenceRegistry
}

// NewHandler constructs settlement handler. references may be nil.
func NewHandler(logger *slog.Logger, service *Service, references *ReferenceRegistry) *Handler {
	return &Handler{logger: logger, service: service, references: references}
}

// MountRoutes registers settlement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/debts/payments", handle(h, func(r *http.Request, req *PayDebtRequest) (Result, error) {
		return h.service.PayDebt(r.Context(), *req)
	}))
	r.Post("/debts/adjustments", handle(h, func(r *http.Request, req *AdjustDebtRequest) (Result, error) {
		return h.service.AdjustDebt(r.Context(), *req)
	}))

	r.Route("/purchases/{id}", func(r chi.Router) {
		r.Post("/place", h.orderEvent(h.service.PlacePurchase))
		r.Post("/cancel", h.orderEvent(h.service.CancelPurchase))
		r.Post("/receive", handle(h, func(r *http.Request, req *ReceiveGoodsRequest) (Result, error) {
			id, err := httpx.IDParam(r, "id")
			if err != nil {
				return Result{}, err
			}
			req.OrderID = id
			return h.service.ReceiveGoods(r.Context(), *req)
		}))
		r.Post("/payments", h.payment(h.service.PayPurchase))
	})

	r.Route("/sales/{id}", func(r chi.Router) {
		r.Post("/complete", handle(h, func(r *http.Request, req *CompleteSaleRequest) (Result, error) {
			id, err := httpx.IDParam(r, "id")
			if err != nil {
				return Result{}, err
			}
			req.OrderID = id
			return h.service.CompleteSale(r.Context(), *req)
		}))
		r.Post("/payments", h.payment(h.service.PaySale))
		r.Post("/refunds", handle(h, func(r *http.Request, req *RefundSaleRequest) (Result, error) {
			id, err := httpx.IDParam(r, "id")
			if err != nil {
				return Result{}, err
			}
			req.OrderID = id
			return h.service.RefundSale(r.Context(), *req)
		}))
		r.Post("/cancel", h.orderEvent(h.service.CancelSale))
	})

	r.Post("/returns", handle(h, func(r *http.Request, req *CreateReturnRequest) (Result, error) {
		return h.service.CreateReturn(r.Context(), *req)
	}))
	r.Post("/returns/{id}/complete", handle(h, func(r *http.Request, req *CompleteReturnRequest) (Result, error) {
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			return Result{}, err
		}
		req.ReturnOrderID = id
		return h.service.CompleteReturn(r.Context(), *req)
	}))
}

// MountReferenceRoutes registers the reference lookup endpoint.
func (h *Handler) MountReferenceRoutes(r chi.Router) {
	r.Get("/{kind}/{id}", h.resolveReference)
}

func (h *Handler) resolveReference(w http.ResponseWriter, r *http.Request) {
	if h.references == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "reference lookup not configured")
		return
	}
	ref, err := shared.ParseReference(chi.URLParam(r, "kind") + ":" + chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entity, err := h.references.Resolve(r.Context(), ref)
	if err != nil {
		h.fail(w, "resolve reference", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reference": ref, "entity": entity})
}

// metaCarrier is satisfied by every request through the embedded Meta.
type metaCarrier interface {
	meta() *Meta
}

func (m *Meta) meta() *Meta { return m }

// handle decodes the body into a fresh T, fills meta from headers and runs fn.
func handle[T any, PT interface {
	*T
	metaCarrier
}](h *Handler, fn func(*http.Request, PT) (Result, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := PT(new(T))
		if r.ContentLength != 0 {
			if err := httpx.DecodeJSON(r, req); err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
				return
			}
		}
		m := req.meta()
		m.Actor = httpx.Actor(r, m.Actor)
		if key := strings.TrimSpace(r.Header.Get(IdempotencyHeader)); key != "" {
			m.IdempotencyKey = key
		}
		res, err := fn(r, req)
		if err != nil {
			h.fail(w, "settlement", err)
			return
		}
		httpx.JSON(w, http.StatusOK, res)
	}
}

func (h *Handler) orderEvent(fn func(context.Context, OrderRequest) (Result, error)) http.HandlerFunc {
	return handle(h, func(r *http.Request, req *OrderRequest) (Result, error) {
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			return Result{}, err
		}
		req.OrderID = id
		return fn(r.Context(), *req)
	})
}

func (h *Handler) payment(fn func(context.Context, PayOrderRequest) (Result, error)) http.HandlerFunc {
	return handle(h, func(r *http.Request, req *PayOrderRequest) (Result, error) {
		id, err := httpx.IDParam(r, "id")
		if err != nil {
			return Result{}, err
		}
		req.OrderID = id
		return fn(r.Context(), *req)
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if shared.IsCallerError(err) {
		h.logger.Warn(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
