// Package sponsorship implements recurring orphan sponsorships backed by
// gateway subscriptions.
package sponsorship

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orphancare/internal/domain"
	"orphancare/internal/gateway"
	pkgerrors "orphancare/pkg/errors"
	"orphancare/pkg/logger"
)

// Repository is the sponsorship storage the service needs.
type Repository interface {
	Create(ctx context.Context, s *domain.Sponsorship) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Sponsorship, error)
	ExistsOpen(ctx context.Context, sponsorID, orphanID uuid.UUID) (bool, error)
	FindBySponsor(ctx context.Context, sponsorID uuid.UUID, limit, offset int) ([]*domain.Sponsorship, error)
}

// OrphanRepository resolves the sponsored orphan.
type OrphanRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Orphan, error)
}

// CreateInput describes a new sponsorship commitment.
type CreateInput struct {
	SponsorID       uuid.UUID            `validate:"required"`
	OrphanID        uuid.UUID            `validate:"required"`
	Amount          decimal.Decimal      `validate:"required"`
	Currency        string               `validate:"required,len=3"`
	Frequency       domain.SponsorshipFrequency `validate:"required,oneof=monthly yearly"`
	EndDate         time.Time            `validate:"required"`
	CustomerID      string               `validate:"required"`
	PaymentMethodID string               `validate:"required"`
	PriceID         string               `validate:"required"`
}

// CreateResult carries the Pending sponsorship plus the gateway's next-action
// URL when the first invoice needs donor authentication.
type CreateResult struct {
	Sponsorship   *domain.Sponsorship `json:"sponsorship"`
	NextActionURL string              `json:"next_action_url,omitempty"`
}

type Service struct {
	sponsorships Repository
	orphans      OrphanRepository
	gateway      gateway.Gateway
	logger       logger.Logger
	now          func() time.Time
}

func NewService(
	sponsorships Repository,
	orphans OrphanRepository,
	gw gateway.Gateway,
	log logger.Logger,
) *Service {
	return &Service{
		sponsorships: sponsorships,
		orphans:      orphans,
		gateway:      gw,
		logger:       log,
		now:          time.Now,
	}
}

// Create opens a gateway subscription and records the sponsorship as Pending.
// The invoice.payment_succeeded webhook activates it once the first charge
// clears. A sponsor may hold at most one open sponsorship per orphan.
func (s *Service) Create(ctx context.Context, input *CreateInput) (*CreateResult, error) {
	orphan, err := s.orphans.FindByID(ctx, input.OrphanID)
	if err != nil {
		return nil, err
	}

	open, err := s.sponsorships.ExistsOpen(ctx, input.SponsorID, input.OrphanID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, pkgerrors.ErrSponsorshipExists
	}

	subscription, err := s.gateway.CreateSubscription(ctx, &gateway.SubscriptionRequest{
		CustomerID:      input.CustomerID,
		PaymentMethodID: input.PaymentMethodID,
		PriceID:         input.PriceID,
	})
	if err != nil {
		s.logger.Error("Failed to create gateway subscription", map[string]interface{}{
			"sponsor_id": input.SponsorID,
			"orphan_id":  input.OrphanID,
			"error":      err.Error(),
		})
		return nil, pkgerrors.Wrap(err, "failed to create subscription")
	}

	now := s.now()
	sponsorship := &domain.Sponsorship{
		ID:              uuid.New(),
		SponsorID:       input.SponsorID,
		OrphanID:        orphan.ID,
		OrphanageID:     orphan.OrphanageID,
		Amount:          input.Amount,
		Currency:        input.Currency,
		Frequency:       input.Frequency,
		StartDate:       now,
		EndDate:         input.EndDate,
		Status:          domain.SponsorshipStatusPending,
		SubscriptionID:  subscription.ID,
		LatestInvoiceID: subscription.LatestInvoiceID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.sponsorships.Create(ctx, sponsorship); err != nil {
		return nil, err
	}

	s.logger.Info("Sponsorship created", map[string]interface{}{
		"sponsorship_id":  sponsorship.ID,
		"sponsor_id":      sponsorship.SponsorID,
		"orphan_id":       sponsorship.OrphanID,
		"subscription_id": sponsorship.SubscriptionID,
	})

	return &CreateResult{
		Sponsorship:   sponsorship,
		NextActionURL: subscription.NextActionURL,
	}, nil
}

// Cancel asks the gateway to end the subscription early. The local status
// stays untouched; the customer.subscription.deleted webhook resolves it to
// Canceled, keeping the webhook the single writer of terminal state.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	sponsorship, err := s.sponsorships.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if sponsorship.Status.IsTerminal() {
		return pkgerrors.ErrInvalidTransition
	}

	if err := s.gateway.CancelSubscription(ctx, sponsorship.SubscriptionID); err != nil {
		return pkgerrors.Wrap(err, "failed to cancel subscription")
	}

	s.logger.Info("Sponsorship cancellation requested", map[string]interface{}{
		"sponsorship_id":  sponsorship.ID,
		"subscription_id": sponsorship.SubscriptionID,
	})
	return nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.Sponsorship, error) {
	return s.sponsorships.FindByID(ctx, id)
}

func (s *Service) ListBySponsor(ctx context.Context, sponsorID uuid.UUID, limit, offset int) ([]*domain.Sponsorship, error) {
	return s.sponsorships.FindBySponsor(ctx, sponsorID, limit, offset)
}
