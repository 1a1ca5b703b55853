// Package webhook applies gateway payment events to the donation ledger.
package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orphancare/internal/domain"
	pkgerrors "orphancare/pkg/errors"
	"orphancare/pkg/logger"
)

// DonationRepository is the slice of donation storage the processor needs.
type DonationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Donation, error)
	// MarkCompleted transitions Pending -> Completed as a single conditional
	// update. It returns the donation and whether this call performed the
	// transition; a redelivered event finds updated == false.
	MarkCompleted(ctx context.Context, id uuid.UUID) (*domain.Donation, bool, error)
}

// SponsorshipRepository is the slice of sponsorship storage the processor needs.
type SponsorshipRepository interface {
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Sponsorship, error)
	// UpdateStatusBySubscription sets status (and the latest invoice id when
	// non-empty) for the sponsorship with the given subscription id, unless
	// its current status is one of blocked. Returns the row and whether the
	// update was applied.
	UpdateStatusBySubscription(ctx context.Context, subscriptionID string, to domain.SponsorshipStatus, invoiceID string, blocked ...domain.SponsorshipStatus) (*domain.Sponsorship, bool, error)
}

// CampaignRepository is the slice of campaign storage the processor needs.
type CampaignRepository interface {
	// AddToRaised atomically increments raised_amount and promotes the
	// campaign to Completed when the target is reached. Returns the campaign
	// after the update.
	AddToRaised(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*domain.EmergencyCampaign, error)
}

// OrphanRepository maintains the denormalized sponsor set on orphans.
type OrphanRepository interface {
	AddSponsor(ctx context.Context, orphanID, sponsorID uuid.UUID) error
	RemoveSponsor(ctx context.Context, orphanID, sponsorID uuid.UUID) error
}

// Processor is the single entry point for externally delivered payment events.
// It authenticates each payload, maps the event type to a state transition and
// applies it idempotently. Safe for concurrent use; every transition is a
// single conditional update in the store.
type Processor struct {
	verifier     Verifier
	donations    DonationRepository
	sponsorships SponsorshipRepository
	campaigns    CampaignRepository
	orphans      OrphanRepository
	logger       logger.Logger
	now          func() time.Time
}

func NewProcessor(
	verifier Verifier,
	donations DonationRepository,
	sponsorships SponsorshipRepository,
	campaigns CampaignRepository,
	orphans OrphanRepository,
	log logger.Logger,
) *Processor {
	return &Processor{
		verifier:     verifier,
		donations:    donations,
		sponsorships: sponsorships,
		campaigns:    campaigns,
		orphans:      orphans,
		logger:       log,
		now:          time.Now,
	}
}

// Process verifies and applies one raw gateway event.
//
// A nil return acknowledges the event (including graceful no-ops for unknown
// types, missing references and already-applied transitions). ErrInvalidSignature
// means the payload is not authentic and must be rejected without retry. Any
// other error is a store failure; the caller surfaces it so the gateway
// redelivers.
func (p *Processor) Process(ctx context.Context, payload []byte, signature string) error {
	event, err := p.verifier.VerifyAndParse(payload, signature)
	if err != nil {
		p.logger.Error("Webhook signature verification failed", map[string]interface{}{
			"error": err.Error(),
		})
		return pkgerrors.ErrInvalidSignature
	}

	switch event.Type {
	case EventInvoicePaymentSucceeded:
		return p.handleInvoiceSucceeded(ctx, event)
	case EventInvoicePaymentFailed:
		return p.handleInvoiceFailed(ctx, event)
	case EventSubscriptionDeleted:
		return p.handleSubscriptionDeleted(ctx, event)
	case EventCheckoutCompleted:
		return p.handleCheckoutCompleted(ctx, event)
	default:
		// Forward compatibility: acknowledge events we don't understand so
		// the gateway doesn't retry them forever.
		p.logger.Info("Ignoring unhandled webhook event type", map[string]interface{}{
			"event_id":   event.ID,
			"event_type": string(event.Type),
		})
		return nil
	}
}

func (p *Processor) handleInvoiceSucceeded(ctx context.Context, event *Event) error {
	if event.SubscriptionID == "" {
		p.logger.Warn("Invoice event without subscription reference", map[string]interface{}{
			"event_id": event.ID,
		})
		return nil
	}

	// Completed/Canceled absorb; Failed may recover to Active when the
	// gateway retries the invoice successfully.
	sponsorship, updated, err := p.sponsorships.UpdateStatusBySubscription(
		ctx, event.SubscriptionID, domain.SponsorshipStatusActive, event.InvoiceID,
		domain.SponsorshipStatusCompleted, domain.SponsorshipStatusCanceled,
	)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrSponsorshipNotFound) {
			p.logger.Warn("No sponsorship found for subscription", map[string]interface{}{
				"event_id":        event.ID,
				"subscription_id": event.SubscriptionID,
			})
			return nil
		}
		return pkgerrors.Wrap(err, "failed to activate sponsorship")
	}
	if !updated {
		p.logger.Info("Sponsorship already in an absorbing state, skipping activation", map[string]interface{}{
			"sponsorship_id":  sponsorship.ID,
			"subscription_id": event.SubscriptionID,
			"status":          string(sponsorship.Status),
		})
		return nil
	}

	// Set semantics: re-adding an existing sponsor is a no-op.
	if err := p.orphans.AddSponsor(ctx, sponsorship.OrphanID, sponsorship.SponsorID); err != nil {
		return pkgerrors.Wrap(err, "failed to add sponsor to orphan")
	}

	p.logger.Info("Sponsorship activated", map[string]interface{}{
		"sponsorship_id":  sponsorship.ID,
		"subscription_id": event.SubscriptionID,
		"invoice_id":      event.InvoiceID,
	})
	return nil
}

func (p *Processor) handleInvoiceFailed(ctx context.Context, event *Event) error {
	if event.SubscriptionID == "" {
		p.logger.Warn("Invoice event without subscription reference", map[string]interface{}{
			"event_id": event.ID,
		})
		return nil
	}

	sponsorship, updated, err := p.sponsorships.UpdateStatusBySubscription(
		ctx, event.SubscriptionID, domain.SponsorshipStatusFailed, event.InvoiceID,
		domain.SponsorshipStatusCompleted, domain.SponsorshipStatusCanceled, domain.SponsorshipStatusFailed,
	)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrSponsorshipNotFound) {
			p.logger.Warn("No sponsorship found for subscription", map[string]interface{}{
				"event_id":        event.ID,
				"subscription_id": event.SubscriptionID,
			})
			return nil
		}
		return pkgerrors.Wrap(err, "failed to mark sponsorship failed")
	}
	if !updated {
		p.logger.Info("Sponsorship unchanged by failed invoice", map[string]interface{}{
			"sponsorship_id": sponsorship.ID,
			"status":         string(sponsorship.Status),
		})
		return nil
	}

	p.logger.Warn("Sponsorship payment failed", map[string]interface{}{
		"sponsorship_id":  sponsorship.ID,
		"subscription_id": event.SubscriptionID,
		"invoice_id":      event.InvoiceID,
	})
	return nil
}

func (p *Processor) handleSubscriptionDeleted(ctx context.Context, event *Event) error {
	sponsorship, err := p.sponsorships.FindBySubscriptionID(ctx, event.SubscriptionID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrSponsorshipNotFound) {
			p.logger.Warn("No sponsorship found for deleted subscription", map[string]interface{}{
				"event_id":        event.ID,
				"subscription_id": event.SubscriptionID,
			})
			return nil
		}
		return pkgerrors.Wrap(err, "failed to look up sponsorship")
	}

	if sponsorship.Status.IsTerminal() {
		p.logger.Info("Sponsorship already terminal, skipping deletion event", map[string]interface{}{
			"sponsorship_id": sponsorship.ID,
			"status":         string(sponsorship.Status),
		})
		return nil
	}

	// A subscription deleted on or after the planned end date ran its full
	// course; an earlier deletion is a cancellation.
	target := domain.SponsorshipStatusCanceled
	if !p.now().Before(sponsorship.EndDate) {
		target = domain.SponsorshipStatusCompleted
	}

	_, updated, err := p.sponsorships.UpdateStatusBySubscription(
		ctx, event.SubscriptionID, target, "",
		domain.SponsorshipStatusCompleted, domain.SponsorshipStatusCanceled, domain.SponsorshipStatusFailed,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to resolve sponsorship")
	}
	if !updated {
		// A concurrent delivery won the race; nothing left to do.
		p.logger.Info("Sponsorship resolved concurrently", map[string]interface{}{
			"sponsorship_id": sponsorship.ID,
		})
		return nil
	}

	if err := p.orphans.RemoveSponsor(ctx, sponsorship.OrphanID, sponsorship.SponsorID); err != nil {
		return pkgerrors.Wrap(err, "failed to remove sponsor from orphan")
	}

	p.logger.Info("Sponsorship resolved", map[string]interface{}{
		"sponsorship_id":  sponsorship.ID,
		"subscription_id": event.SubscriptionID,
		"status":          string(target),
	})
	return nil
}

func (p *Processor) handleCheckoutCompleted(ctx context.Context, event *Event) error {
	if event.DonationID == "" {
		p.logger.Warn("Checkout session without donation metadata", map[string]interface{}{
			"event_id": event.ID,
		})
		return nil
	}

	donationID, err := uuid.Parse(event.DonationID)
	if err != nil {
		p.logger.Warn("Checkout session with malformed donation id", map[string]interface{}{
			"event_id":    event.ID,
			"donation_id": event.DonationID,
		})
		return nil
	}

	donation, updated, err := p.donations.MarkCompleted(ctx, donationID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrDonationNotFound) {
			p.logger.Warn("Donation not found for checkout session", map[string]interface{}{
				"event_id":    event.ID,
				"donation_id": event.DonationID,
			})
			return nil
		}
		return pkgerrors.Wrap(err, "failed to complete donation")
	}
	if !updated {
		// Redelivery or an already-controlled donation. The campaign
		// increment below is gated on the actual transition, so a duplicate
		// event can never double count.
		p.logger.Info("Donation already completed, skipping", map[string]interface{}{
			"donation_id": donation.ID,
			"status":      string(donation.Status),
		})
		return nil
	}

	p.logger.Info("Donation completed", map[string]interface{}{
		"donation_id": donation.ID,
		"amount":      donation.Amount.String(),
	})

	if donation.CampaignID == nil {
		return nil
	}

	campaign, err := p.campaigns.AddToRaised(ctx, *donation.CampaignID, donation.Amount)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.ErrCampaignNotFound) {
			p.logger.Warn("Campaign not found for completed donation", map[string]interface{}{
				"donation_id": donation.ID,
				"campaign_id": donation.CampaignID,
			})
			return nil
		}
		return pkgerrors.Wrap(err, "failed to update campaign raised amount")
	}

	fields := map[string]interface{}{
		"campaign_id":   campaign.ID,
		"raised_amount": campaign.RaisedAmount.String(),
		"target_amount": campaign.TargetAmount.String(),
	}
	if campaign.Status == domain.CampaignStatusCompleted {
		p.logger.Info("Campaign reached its target", fields)
	} else {
		p.logger.Info("Campaign raised amount updated", fields)
	}
	return nil
}
