package debt

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-retail/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Handler exposes debt account reads over HTTP.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers debt routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{party}/{partyID}", h.handleAccount)
	r.Post("/{party}/{partyID}", h.handleOpen)
	r.Get("/{party}/{partyID}/transactions", h.handleTransactions)
}

func (h *Handler) handleAccount(w http.ResponseWriter, r *http.Request) {
	party, partyID, err := accountParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	acct, err := h.service.GetAccount(r.Context(), party, partyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acct)
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	party, partyID, err := accountParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	acct, err := h.service.OpenAccount(r.Context(), party, partyID)
	if err != nil {
		h.logger.Error("open debt account", slog.Any("error", err), slog.String("party", string(party)), slog.Int64("party_id", partyID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, acct)
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	party, partyID, err := accountParams(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	txns, err := h.service.ListTransactions(r.Context(), TxFilter{Party: party, PartyID: partyID, Limit: limit})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txns)
}

func accountParams(r *http.Request) (Party, int64, error) {
	party := Party(strings.ToUpper(chi.URLParam(r, "party")))
	if !party.Valid() {
		return "", 0, fmt.Errorf("%w: unknown party %q", shared.ErrValidation, chi.URLParam(r, "party"))
	}
	id, err := httpx.IDParam(r, "partyID")
	return party, id, err
}
