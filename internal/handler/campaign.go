package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"orphancare/internal/campaign"
	"orphancare/internal/domain"
	pkgerrors "orphancare/pkg/errors"
	"orphancare/pkg/validator"
)

type CampaignHandler struct {
	service   *campaign.Service
	validator *validator.Validator
	logger    Logger
}

func NewCampaignHandler(service *campaign.Service, val *validator.Validator, log Logger) *CampaignHandler {
	return &CampaignHandler{service: service, validator: val, logger: log}
}

type createCampaignRequest struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	EndDate      time.Time       `json:"end_date"`
	OrphanageID  *uuid.UUID      `json:"orphanage_id,omitempty"`
}

// Create opens an emergency campaign (admin).
func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.TargetAmount.IsPositive() {
		respondError(w, http.StatusBadRequest, "Target amount must be positive")
		return
	}

	input := &campaign.CreateInput{
		Title:        req.Title,
		Description:  req.Description,
		TargetAmount: req.TargetAmount,
		EndDate:      req.EndDate,
		OrphanageID:  req.OrphanageID,
	}
	if errs := h.validator.ValidateStructured(input); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	created, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("Failed to create campaign", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to create campaign")
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// Get returns one campaign by id.
func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid campaign id")
		return
	}

	c, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrCampaignNotFound) {
			respondError(w, http.StatusNotFound, "Campaign not found")
			return
		}
		h.logger.Error("Failed to fetch campaign", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to fetch campaign")
		return
	}

	respondJSON(w, http.StatusOK, c)
}

// List returns campaigns, optionally filtered by status.
func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r)
	status := domain.CampaignStatus(r.URL.Query().Get("status"))

	campaigns, err := h.service.List(r.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list campaigns", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to fetch campaigns")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"campaigns": campaigns,
		"limit":     limit,
		"offset":    offset,
	})
}
