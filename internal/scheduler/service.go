// Package scheduler runs the recurring expiry and reconciliation sweeps.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"orphancare/internal/domain"
	"orphancare/pkg/logger"
)

// SponsorshipRepository is the slice of sponsorship storage the sweeps need.
type SponsorshipRepository interface {
	FindExpiredActive(ctx context.Context, now time.Time) ([]*domain.Sponsorship, error)
}

// CampaignRepository is the slice of campaign storage the sweeps need.
type CampaignRepository interface {
	CompleteFunded(ctx context.Context) ([]*domain.EmergencyCampaign, error)
	ExpireLapsed(ctx context.Context, now time.Time) ([]*domain.EmergencyCampaign, error)
}

// Gateway is the outbound cancellation surface of the payment processor.
type Gateway interface {
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

// Scheduler periodically sweeps the ledger for time-expired sponsorships and
// campaigns. It is serialized with itself: a tick that arrives while a run is
// still in flight is skipped, and an optional distributed lease extends that
// guarantee across instances.
type Scheduler struct {
	sponsorships  SponsorshipRepository
	campaigns     CampaignRepository
	gateway       Gateway
	lease         Lease
	logger        logger.Logger
	interval      time.Duration
	cancelTimeout time.Duration
	running       atomic.Bool
	stop          chan struct{}
	now           func() time.Time
}

type Option func(*Scheduler)

// WithLease adds a distributed run lease (e.g. Redis SET NX).
func WithLease(lease Lease) Option {
	return func(s *Scheduler) { s.lease = lease }
}

// WithInterval overrides the default hourly cadence.
func WithInterval(interval time.Duration) Option {
	return func(s *Scheduler) { s.interval = interval }
}

// WithCancelTimeout bounds each outbound cancellation call.
func WithCancelTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) { s.cancelTimeout = timeout }
}

func New(
	sponsorships SponsorshipRepository,
	campaigns CampaignRepository,
	gw Gateway,
	log logger.Logger,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		sponsorships:  sponsorships,
		campaigns:     campaigns,
		gateway:       gw,
		logger:        log,
		interval:      time.Hour,
		cancelTimeout: 30 * time.Second,
		stop:          make(chan struct{}),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the recurring sweep loop.
func (s *Scheduler) Start() {
	ticker := time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-ticker.C:
				s.RunOnce(context.Background())
			case <-s.stop:
				ticker.Stop()
				return
			}
		}
	}()
	s.logger.Info("Reconciliation scheduler started", map[string]interface{}{
		"interval": s.interval.String(),
	})
}

// Stop halts the sweep loop. A run already in flight finishes.
func (s *Scheduler) Stop() {
	close(s.stop)
}

// RunOnce executes both sweeps if no other run is active. It returns true
// when the sweeps actually ran. Each sweep is idempotent and resumable: a
// crashed run leaves no partial local state, and the next run re-discovers
// whatever still matches the filters.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("Previous sweep still running, skipping tick", nil)
		return false
	}
	defer s.running.Store(false)

	if s.lease != nil {
		acquired, err := s.lease.Acquire(ctx)
		if err != nil {
			s.logger.Error("Failed to acquire sweep lease", map[string]interface{}{
				"error": err.Error(),
			})
			return false
		}
		if !acquired {
			s.logger.Info("Sweep lease held elsewhere, skipping tick", nil)
			return false
		}
		defer func() {
			if err := s.lease.Release(ctx); err != nil {
				s.logger.Warn("Failed to release sweep lease", map[string]interface{}{
					"error": err.Error(),
				})
			}
		}()
	}

	s.sweepSponsorships(ctx)
	s.sweepCampaigns(ctx)
	return true
}

// sweepSponsorships cancels gateway subscriptions for Active sponsorships
// whose end date has passed. It never writes the terminal status itself: the
// customer.subscription.deleted webhook is the single writer of sponsorship
// terminal state, so local and gateway views cannot diverge.
func (s *Scheduler) sweepSponsorships(ctx context.Context) {
	now := s.now()

	expired, err := s.sponsorships.FindExpiredActive(ctx, now)
	if err != nil {
		s.logger.Error("Sponsorship sweep query failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if len(expired) == 0 {
		s.logger.Debug("No expired sponsorships found", nil)
		return
	}

	for _, sponsorship := range expired {
		if sponsorship.SubscriptionID == "" {
			s.logger.Warn("Expired sponsorship without subscription reference", map[string]interface{}{
				"sponsorship_id": sponsorship.ID,
			})
			continue
		}

		if err := s.cancelSubscription(ctx, sponsorship.SubscriptionID); err != nil {
			// Per-item isolation: leave the row untouched, the next sweep
			// picks it up again.
			s.logger.Error("Failed to cancel subscription", map[string]interface{}{
				"sponsorship_id":  sponsorship.ID,
				"subscription_id": sponsorship.SubscriptionID,
				"error":           err.Error(),
			})
			continue
		}

		s.logger.Info("Requested cancellation of expired sponsorship", map[string]interface{}{
			"sponsorship_id":  sponsorship.ID,
			"subscription_id": sponsorship.SubscriptionID,
			"end_date":        sponsorship.EndDate.Format(time.RFC3339),
		})
	}
}

func (s *Scheduler) cancelSubscription(ctx context.Context, subscriptionID string) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cancelTimeout)
	defer cancel()

	operation := func() (struct{}, error) {
		return struct{}{}, s.gateway.CancelSubscription(callCtx, subscriptionID)
	}
	_, err := backoff.Retry(callCtx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(3),
	)
	return err
}

// sweepCampaigns first promotes funded campaigns, then expires the lapsed
// ones. Order matters: a past-end-date campaign that met its target must end
// up Completed, never Expired.
func (s *Scheduler) sweepCampaigns(ctx context.Context) {
	funded, err := s.campaigns.CompleteFunded(ctx)
	if err != nil {
		s.logger.Error("Campaign completion sweep failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	for _, c := range funded {
		s.logger.Info("Campaign reached its target, marked completed", map[string]interface{}{
			"campaign_id":   c.ID,
			"title":         c.Title,
			"raised_amount": c.RaisedAmount.String(),
		})
	}

	expired, err := s.campaigns.ExpireLapsed(ctx, s.now())
	if err != nil {
		s.logger.Error("Campaign expiry sweep failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	for _, c := range expired {
		s.logger.Info("Campaign expired", map[string]interface{}{
			"campaign_id":   c.ID,
			"title":         c.Title,
			"raised_amount": c.RaisedAmount.String(),
			"target_amount": c.TargetAmount.String(),
		})
	}
	if len(funded) == 0 && len(expired) == 0 {
		s.logger.Debug("No campaigns to reconcile", nil)
	}
}
