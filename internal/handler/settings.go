package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"orphancare/internal/domain"
	"orphancare/internal/fees"
)

// SettingsStore reads and writes the system settings row.
type SettingsStore interface {
	Get(ctx context.Context) (*domain.Settings, error)
	UpdateFeePercent(ctx context.Context, percent decimal.Decimal) error
}

type SettingsHandler struct {
	settings SettingsStore
	logger   Logger
}

func NewSettingsHandler(settings SettingsStore, log Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, logger: log}
}

// Get returns the current settings, falling back to defaults when no row
// exists yet.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.Error("Failed to fetch settings", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to fetch settings")
		return
	}

	percent := fees.DefaultPercent
	if settings != nil {
		percent = settings.TransactionFeePercent
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transaction_fee_percent": percent,
	})
}

type updateSettingsRequest struct {
	TransactionFeePercent decimal.Decimal `json:"transaction_fee_percent"`
}

// Update sets the transaction fee percent (admin). Existing donations keep
// their frozen fee split; the new percent applies to donations created after
// this call.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TransactionFeePercent.IsNegative() || req.TransactionFeePercent.GreaterThan(decimal.NewFromInt(100)) {
		respondError(w, http.StatusBadRequest, "Fee percent must be between 0 and 100")
		return
	}

	if err := h.settings.UpdateFeePercent(r.Context(), req.TransactionFeePercent); err != nil {
		h.logger.Error("Failed to update settings", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to update settings")
		return
	}

	h.logger.Info("Transaction fee percent updated", map[string]interface{}{
		"percent": req.TransactionFeePercent.String(),
	})
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transaction_fee_percent": req.TransactionFeePercent,
	})
}
