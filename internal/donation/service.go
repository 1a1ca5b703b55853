// Package donation implements the donation lifecycle: creation, gateway
// checkout, and post-completion usage control.
package donation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orphancare/internal/domain"
	"orphancare/internal/fees"
	"orphancare/internal/gateway"
	pkgerrors "orphancare/pkg/errors"
	"orphancare/pkg/logger"
)

// Repository is the donation storage the service needs.
type Repository interface {
	Create(ctx context.Context, d *domain.Donation) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Donation, error)
	SetTransactionID(ctx context.Context, id uuid.UUID, transactionID string) error
	MarkControlled(ctx context.Context, id uuid.UUID) (bool, error)
	FindByDonor(ctx context.Context, donorID uuid.UUID, limit, offset int) ([]*domain.Donation, error)
	FindAll(ctx context.Context, limit, offset int) ([]*domain.Donation, error)
}

// ControlRepository stores usage control records.
type ControlRepository interface {
	Create(ctx context.Context, c *domain.ControllingDonation) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ControllingDonation, error)
	FindByDonationID(ctx context.Context, donationID uuid.UUID) (*domain.ControllingDonation, error)
	Update(ctx context.Context, c *domain.ControllingDonation) error
}

// FeeCalculator resolves the current fee split for a gross amount.
type FeeCalculator interface {
	ForAmount(ctx context.Context, amount decimal.Decimal) (fees.Breakdown, error)
}

// CreateFinancialInput describes a new financial donation.
type CreateFinancialInput struct {
	DonorID     uuid.UUID        `validate:"required"`
	Category    domain.DonationCategory `validate:"required"`
	Amount      decimal.Decimal  `validate:"required"`
	Currency    string           `validate:"required,len=3"`
	OrphanageID *uuid.UUID
	CampaignID  *uuid.UUID
}

// CreateInKindInput describes a new in-kind donation.
type CreateInKindInput struct {
	DonorID      uuid.UUID           `validate:"required"`
	Category     domain.DonationCategory `validate:"required"`
	DonationType domain.DonationType `validate:"required"`
	Items        domain.DonationItems `validate:"required,min=1"`
	OrphanageID  *uuid.UUID
}

// CreateControlInput documents how a donation was spent.
type CreateControlInput struct {
	DonationID      uuid.UUID `validate:"required"`
	ControlledByID  uuid.UUID `validate:"required"`
	UsageSummary    string    `validate:"required"`
	OrphansImpacted []string
	Photos          []string
	Notes           string
}

// CheckoutResult is returned to the donor client so it can redirect to the
// gateway's payment page.
type CheckoutResult struct {
	Donation    *domain.Donation `json:"donation"`
	CheckoutURL string           `json:"checkout_url"`
}

type Service struct {
	donations Repository
	controls  ControlRepository
	fees      FeeCalculator
	gateway   gateway.Gateway
	logger    logger.Logger
	now       func() time.Time
}

func NewService(
	donations Repository,
	controls ControlRepository,
	feeCalc FeeCalculator,
	gw gateway.Gateway,
	log logger.Logger,
) *Service {
	return &Service{
		donations: donations,
		controls:  controls,
		fees:      feeCalc,
		gateway:   gw,
		logger:    log,
		now:       time.Now,
	}
}

// CreateFinancial records a Pending donation with its fee split frozen at
// creation time, then opens a gateway checkout session for it. The donation id
// rides in the session metadata; the completion webhook closes the loop.
func (s *Service) CreateFinancial(ctx context.Context, input *CreateFinancialInput) (*CheckoutResult, error) {
	breakdown, err := s.fees.ForAmount(ctx, input.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to compute donation fee")
	}

	now := s.now()
	donation := &domain.Donation{
		ID:            uuid.New(),
		DonorID:       input.DonorID,
		Category:      input.Category,
		DonationType:  domain.DonationTypeFinancial,
		Amount:        input.Amount,
		Fee:           breakdown.Fee,
		NetAmount:     breakdown.Net,
		TransactionID: domain.PlaceholderTransactionID,
		Status:        domain.DonationStatusPending,
		OrphanageID:   input.OrphanageID,
		CampaignID:    input.CampaignID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.donations.Create(ctx, donation); err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, &gateway.CheckoutSessionRequest{
		DonationID:  donation.ID,
		Amount:      donation.Amount,
		Currency:    input.Currency,
		Description: string(donation.Category) + " donation",
	})
	if err != nil {
		// The Pending row stays behind; it will never complete and is visible
		// for reconciliation.
		s.logger.Error("Failed to create checkout session", map[string]interface{}{
			"donation_id": donation.ID,
			"error":       err.Error(),
		})
		return nil, pkgerrors.Wrap(err, "failed to create checkout session")
	}

	if err := s.donations.SetTransactionID(ctx, donation.ID, session.ID); err != nil {
		return nil, err
	}
	donation.TransactionID = session.ID

	s.logger.Info("Financial donation created", map[string]interface{}{
		"donation_id": donation.ID,
		"amount":      donation.Amount.String(),
		"fee":         donation.Fee.String(),
		"session_id":  session.ID,
	})

	return &CheckoutResult{Donation: donation, CheckoutURL: session.URL}, nil
}

// CreateInKind records an in-kind donation. It carries no money, so the fee
// split is zero and the status starts at On Arrive awaiting delivery.
func (s *Service) CreateInKind(ctx context.Context, input *CreateInKindInput) (*domain.Donation, error) {
	now := s.now()
	donation := &domain.Donation{
		ID:            uuid.New(),
		DonorID:       input.DonorID,
		Category:      input.Category,
		DonationType:  input.DonationType,
		Amount:        decimal.Zero,
		Fee:           decimal.Zero,
		NetAmount:     decimal.Zero,
		TransactionID: domain.PlaceholderTransactionID,
		Status:        domain.DonationStatusOnArrive,
		OrphanageID:   input.OrphanageID,
		Items:         input.Items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.donations.Create(ctx, donation); err != nil {
		return nil, err
	}

	s.logger.Info("In-kind donation created", map[string]interface{}{
		"donation_id":   donation.ID,
		"donation_type": string(donation.DonationType),
		"items":         len(donation.Items),
	})

	return donation, nil
}

// CreateControl documents the usage of a donation and advances it to
// Controlled. The donation must be Completed (financial) or On Arrive
// (in-kind); at most one control record may exist per donation.
func (s *Service) CreateControl(ctx context.Context, input *CreateControlInput) (*domain.ControllingDonation, error) {
	donation, err := s.donations.FindByID(ctx, input.DonationID)
	if err != nil {
		return nil, err
	}

	if !donation.Status.CanTransitionTo(domain.DonationStatusControlled) {
		return nil, pkgerrors.ErrDonationNotCompleted
	}

	record := &domain.ControllingDonation{
		ID:              uuid.New(),
		DonationID:      donation.ID,
		OrphanageID:     donation.OrphanageID,
		ControlledByID:  input.ControlledByID,
		UsageSummary:    input.UsageSummary,
		OrphansImpacted: input.OrphansImpacted,
		Photos:          input.Photos,
		Notes:           input.Notes,
		ControlDate:     s.now(),
	}

	// The unique index on donation_id makes the duplicate check race-free;
	// Create surfaces it as ErrControlRecordExists.
	if err := s.controls.Create(ctx, record); err != nil {
		return nil, err
	}

	moved, err := s.donations.MarkControlled(ctx, donation.ID)
	if err != nil {
		return nil, err
	}
	if !moved {
		s.logger.Warn("Donation status changed during control record creation", map[string]interface{}{
			"donation_id": donation.ID,
		})
	}

	s.logger.Info("Control record created", map[string]interface{}{
		"control_id":  record.ID,
		"donation_id": donation.ID,
	})

	return record, nil
}

// UpdateControl rewrites the editable fields of an existing control record.
func (s *Service) UpdateControl(ctx context.Context, id uuid.UUID, input *CreateControlInput) (*domain.ControllingDonation, error) {
	record, err := s.controls.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	record.UsageSummary = input.UsageSummary
	record.OrphansImpacted = input.OrphansImpacted
	record.Photos = input.Photos
	record.Notes = input.Notes

	if err := s.controls.Update(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	return s.donations.FindByID(ctx, id)
}

func (s *Service) GetControlByDonation(ctx context.Context, donationID uuid.UUID) (*domain.ControllingDonation, error) {
	return s.controls.FindByDonationID(ctx, donationID)
}

func (s *Service) ListByDonor(ctx context.Context, donorID uuid.UUID, limit, offset int) ([]*domain.Donation, error) {
	return s.donations.FindByDonor(ctx, donorID, limit, offset)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*domain.Donation, error) {
	return s.donations.FindAll(ctx, limit, offset)
}
