package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"orphancare/internal/domain"
	"orphancare/internal/donation"
	"orphancare/internal/middleware"
	pkgerrors "orphancare/pkg/errors"
	"orphancare/pkg/validator"
)

type DonationHandler struct {
	service   *donation.Service
	validator *validator.Validator
	logger    Logger
}

func NewDonationHandler(service *donation.Service, val *validator.Validator, log Logger) *DonationHandler {
	return &DonationHandler{service: service, validator: val, logger: log}
}

type createFinancialRequest struct {
	Category    domain.DonationCategory `json:"category"`
	Amount      decimal.Decimal         `json:"amount"`
	Currency    string                  `json:"currency"`
	OrphanageID *uuid.UUID              `json:"orphanage_id,omitempty"`
	CampaignID  *uuid.UUID              `json:"campaign_id,omitempty"`
}

// CreateFinancial opens a financial donation and returns the checkout URL.
func (h *DonationHandler) CreateFinancial(w http.ResponseWriter, r *http.Request) {
	donorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req createFinancialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Currency == "" {
		req.Currency = "usd"
	}
	if !req.Amount.IsPositive() {
		respondError(w, http.StatusBadRequest, "Amount must be positive")
		return
	}

	input := &donation.CreateFinancialInput{
		DonorID:     donorID,
		Category:    req.Category,
		Amount:      req.Amount,
		Currency:    req.Currency,
		OrphanageID: req.OrphanageID,
		CampaignID:  req.CampaignID,
	}
	if errs := h.validator.ValidateStructured(input); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	result, err := h.service.CreateFinancial(r.Context(), input)
	if err != nil {
		h.logger.Error("Failed to create financial donation", map[string]interface{}{
			"error":    err.Error(),
			"donor_id": donorID,
		})
		respondError(w, http.StatusInternalServerError, "Failed to create donation")
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

type createInKindRequest struct {
	Category     domain.DonationCategory `json:"category"`
	DonationType domain.DonationType     `json:"donation_type"`
	Items        domain.DonationItems    `json:"items"`
	OrphanageID  *uuid.UUID              `json:"orphanage_id,omitempty"`
}

// CreateInKind records an in-kind donation awaiting delivery.
func (h *DonationHandler) CreateInKind(w http.ResponseWriter, r *http.Request) {
	donorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req createInKindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DonationType == domain.DonationTypeFinancial {
		respondError(w, http.StatusBadRequest, "Financial donations go through the checkout endpoint")
		return
	}

	input := &donation.CreateInKindInput{
		DonorID:      donorID,
		Category:     req.Category,
		DonationType: req.DonationType,
		Items:        req.Items,
		OrphanageID:  req.OrphanageID,
	}
	if errs := h.validator.ValidateStructured(input); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	created, err := h.service.CreateInKind(r.Context(), input)
	if err != nil {
		h.logger.Error("Failed to create in-kind donation", map[string]interface{}{
			"error":    err.Error(),
			"donor_id": donorID,
		})
		respondError(w, http.StatusInternalServerError, "Failed to create donation")
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// GetDonation returns one donation by id.
func (h *DonationHandler) GetDonation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid donation id")
		return
	}

	d, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrDonationNotFound) {
			respondError(w, http.StatusNotFound, "Donation not found")
			return
		}
		h.logger.Error("Failed to fetch donation", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to fetch donation")
		return
	}

	respondJSON(w, http.StatusOK, d)
}

// ListMyDonations returns the authenticated donor's donations.
func (h *DonationHandler) ListMyDonations(w http.ResponseWriter, r *http.Request) {
	donorID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit, offset := paginationParams(r)
	donations, err := h.service.ListByDonor(r.Context(), donorID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list donations", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to fetch donations")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"donations": donations,
		"limit":     limit,
		"offset":    offset,
	})
}

// ListDonations returns all donations (admin).
func (h *DonationHandler) ListDonations(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r)
	donations, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list donations", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to fetch donations")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"donations": donations,
		"limit":     limit,
		"offset":    offset,
	})
}

type createControlRequest struct {
	DonationID      uuid.UUID `json:"donation_id"`
	UsageSummary    string    `json:"usage_summary"`
	OrphansImpacted []string  `json:"orphans_impacted,omitempty"`
	Photos          []string  `json:"photos,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

// CreateControl documents how a donation was used.
func (h *DonationHandler) CreateControl(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req createControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	input := &donation.CreateControlInput{
		DonationID:      req.DonationID,
		ControlledByID:  adminID,
		UsageSummary:    req.UsageSummary,
		OrphansImpacted: req.OrphansImpacted,
		Photos:          req.Photos,
		Notes:           req.Notes,
	}
	if errs := h.validator.ValidateStructured(input); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	record, err := h.service.CreateControl(r.Context(), input)
	if err != nil {
		switch {
		case pkgerrors.Is(err, pkgerrors.ErrDonationNotFound):
			respondError(w, http.StatusNotFound, "Donation not found")
		case pkgerrors.Is(err, pkgerrors.ErrDonationNotCompleted):
			respondError(w, http.StatusConflict, "Donation is not in a controllable state")
		case pkgerrors.Is(err, pkgerrors.ErrControlRecordExists):
			respondError(w, http.StatusConflict, "Control record already exists for this donation")
		default:
			h.logger.Error("Failed to create control record", map[string]interface{}{"error": err.Error()})
			respondError(w, http.StatusInternalServerError, "Failed to create control record")
		}
		return
	}

	respondJSON(w, http.StatusCreated, record)
}

// GetControlByDonation returns the control record for a donation.
func (h *DonationHandler) GetControlByDonation(w http.ResponseWriter, r *http.Request) {
	donationID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid donation id")
		return
	}

	record, err := h.service.GetControlByDonation(r.Context(), donationID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrControlRecordNotFound) {
			respondError(w, http.StatusNotFound, "Control record not found")
			return
		}
		h.logger.Error("Failed to fetch control record", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to fetch control record")
		return
	}

	respondJSON(w, http.StatusOK, record)
}

// UpdateControl rewrites the editable fields of a control record.
func (h *DonationHandler) UpdateControl(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid control record id")
		return
	}

	var req createControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	record, err := h.service.UpdateControl(r.Context(), id, &donation.CreateControlInput{
		UsageSummary:    req.UsageSummary,
		OrphansImpacted: req.OrphansImpacted,
		Photos:          req.Photos,
		Notes:           req.Notes,
	})
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrControlRecordNotFound) {
			respondError(w, http.StatusNotFound, "Control record not found")
			return
		}
		h.logger.Error("Failed to update control record", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to update control record")
		return
	}

	respondJSON(w, http.StatusOK, record)
}
