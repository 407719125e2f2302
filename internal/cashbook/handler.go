package cashbook

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-retail/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Handler exposes the cashbook over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers cashbook routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/summary", h.handleSummary)
	r.Get("/entries", h.handleList)
	r.Post("/entries", h.handleRecord)
}

type entryRequest struct {
	Type            string          `json:"type" validate:"required,oneof=INCOME EXPENSE"`
	Category        string          `json:"category" validate:"required,max=64"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description" validate:"max=500"`
	PaymentMethod   string          `json:"payment_method" validate:"required"`
	TransactionDate time.Time       `json:"transaction_date"`
	Actor           string          `json:"actor"`
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summary(r.Context(), from, to)
	if err != nil {
		h.logger.Error("cashbook summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.List(r.Context(), EntryFilter{
		From: from, To: to, Type: EntryType(strings.ToUpper(r.URL.Query().Get("type"))), Limit: limit,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	entry, err := h.service.Record(r.Context(), Entry{
		Type:            EntryType(req.Type),
		Category:        req.Category,
		Amount:          req.Amount,
		Description:     req.Description,
		PaymentMethod:   shared.PaymentMethod(strings.ToUpper(req.PaymentMethod)),
		TransactionDate: req.TransactionDate,
		Actor:           httpx.Actor(r, req.Actor),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

// parseRange reads from/to as dates; to is inclusive of the whole day.
func parseRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	q := r.URL.Query()
	from, err := time.Parse("2006-01-02", q.Get("from"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	to, err := time.Parse("2006-01-02", q.Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be YYYY-MM-DD")
		return time.Time{}, time.Time{}, false
	}
	return from, to.Add(24*time.Hour - time.Nanosecond), true
}
