package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"orphancare/internal/domain"
	"orphancare/internal/middleware"
	"orphancare/internal/sponsorship"
	pkgerrors "orphancare/pkg/errors"
	"orphancare/pkg/validator"
)

type SponsorshipHandler struct {
	service   *sponsorship.Service
	validator *validator.Validator
	logger    Logger
}

func NewSponsorshipHandler(service *sponsorship.Service, val *validator.Validator, log Logger) *SponsorshipHandler {
	return &SponsorshipHandler{service: service, validator: val, logger: log}
}

type createSponsorshipRequest struct {
	OrphanID        uuid.UUID                   `json:"orphan_id"`
	Amount          decimal.Decimal             `json:"amount"`
	Currency        string                      `json:"currency"`
	Frequency       domain.SponsorshipFrequency `json:"frequency"`
	EndDate         time.Time                   `json:"end_date"`
	CustomerID      string                      `json:"customer_id"`
	PaymentMethodID string                      `json:"payment_method_id"`
	PriceID         string                      `json:"price_id"`
}

// Create opens a recurring sponsorship for the authenticated sponsor.
func (h *SponsorshipHandler) Create(w http.ResponseWriter, r *http.Request) {
	sponsorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req createSponsorshipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Currency == "" {
		req.Currency = "usd"
	}

	input := &sponsorship.CreateInput{
		SponsorID:       sponsorID,
		OrphanID:        req.OrphanID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Frequency:       req.Frequency,
		EndDate:         req.EndDate,
		CustomerID:      req.CustomerID,
		PaymentMethodID: req.PaymentMethodID,
		PriceID:         req.PriceID,
	}
	if errs := h.validator.ValidateStructured(input); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	result, err := h.service.Create(r.Context(), input)
	if err != nil {
		switch {
		case pkgerrors.Is(err, pkgerrors.ErrOrphanNotFound):
			respondError(w, http.StatusNotFound, "Orphan not found")
		case pkgerrors.Is(err, pkgerrors.ErrSponsorshipExists):
			respondError(w, http.StatusConflict, "You already have an open sponsorship for this orphan")
		default:
			h.logger.Error("Failed to create sponsorship", map[string]interface{}{
				"error":      err.Error(),
				"sponsor_id": sponsorID,
			})
			respondError(w, http.StatusInternalServerError, "Failed to create sponsorship")
		}
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// Cancel requests early termination of a sponsorship.
func (h *SponsorshipHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid sponsorship id")
		return
	}

	if err := h.service.Cancel(r.Context(), id); err != nil {
		switch {
		case pkgerrors.Is(err, pkgerrors.ErrSponsorshipNotFound):
			respondError(w, http.StatusNotFound, "Sponsorship not found")
		case pkgerrors.Is(err, pkgerrors.ErrInvalidTransition):
			respondError(w, http.StatusConflict, "Sponsorship is already resolved")
		default:
			h.logger.Error("Failed to cancel sponsorship", map[string]interface{}{"error": err.Error()})
			respondError(w, http.StatusInternalServerError, "Failed to cancel sponsorship")
		}
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancellation requested"})
}

// Get returns one sponsorship by id.
func (h *SponsorshipHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid sponsorship id")
		return
	}

	s, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrSponsorshipNotFound) {
			respondError(w, http.StatusNotFound, "Sponsorship not found")
			return
		}
		h.logger.Error("Failed to fetch sponsorship", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to fetch sponsorship")
		return
	}

	respondJSON(w, http.StatusOK, s)
}

// ListMine returns the authenticated sponsor's sponsorships.
func (h *SponsorshipHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	sponsorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit, offset := paginationParams(r)
	sponsorships, err := h.service.ListBySponsor(r.Context(), sponsorID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list sponsorships", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to fetch sponsorships")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sponsorships": sponsorships,
		"limit":        limit,
		"offset":       offset,
	})
}
