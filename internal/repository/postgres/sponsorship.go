package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"orphancare/internal/domain"
	"orphancare/pkg/errors"
)

const sponsorshipColumns = `
	id, sponsor_id, orphan_id, orphanage_id, amount, currency, frequency,
	start_date, end_date, status, subscription_id, latest_invoice_id,
	created_at, updated_at`

type SponsorshipRepository struct {
	db *sqlx.DB
}

func NewSponsorshipRepository(db *sqlx.DB) *SponsorshipRepository {
	return &SponsorshipRepository{db: db}
}

func (r *SponsorshipRepository) Create(ctx context.Context, s *domain.Sponsorship) error {
	query := `
		INSERT INTO sponsorships (
			id, sponsor_id, orphan_id, orphanage_id, amount, currency, frequency,
			start_date, end_date, status, subscription_id, latest_invoice_id,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.SponsorID, s.OrphanID, s.OrphanageID, s.Amount, s.Currency, s.Frequency,
		s.StartDate, s.EndDate, s.Status, s.SubscriptionID, s.LatestInvoiceID,
		s.CreatedAt, s.UpdatedAt,
	)

	return errors.Wrap(err, "failed to create sponsorship")
}

func (r *SponsorshipRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sponsorship, error) {
	var s domain.Sponsorship
	query := `SELECT ` + sponsorshipColumns + ` FROM sponsorships WHERE id = $1`

	err := r.db.GetContext(ctx, &s, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrSponsorshipNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find sponsorship")
	}

	return &s, nil
}

func (r *SponsorshipRepository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Sponsorship, error) {
	var s domain.Sponsorship
	query := `SELECT ` + sponsorshipColumns + ` FROM sponsorships WHERE subscription_id = $1`

	err := r.db.GetContext(ctx, &s, query, subscriptionID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrSponsorshipNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find sponsorship by subscription")
	}

	return &s, nil
}

// UpdateStatusBySubscription sets the status (and latest invoice id, when
// non-empty) unless the current status is one of blocked. The guard and the
// write are one statement, so concurrent duplicate webhook deliveries cannot
// both apply a transition.
func (r *SponsorshipRepository) UpdateStatusBySubscription(
	ctx context.Context,
	subscriptionID string,
	to domain.SponsorshipStatus,
	invoiceID string,
	blocked ...domain.SponsorshipStatus,
) (*domain.Sponsorship, bool, error) {
	blockedList := make([]string, 0, len(blocked))
	for _, b := range blocked {
		blockedList = append(blockedList, string(b))
	}

	var s domain.Sponsorship
	query := `
		UPDATE sponsorships SET
			status = $2,
			latest_invoice_id = COALESCE(NULLIF($3, ''), latest_invoice_id),
			updated_at = NOW()
		WHERE subscription_id = $1 AND NOT (status = ANY($4))
		RETURNING ` + sponsorshipColumns

	err := r.db.GetContext(ctx, &s, query, subscriptionID, to, invoiceID, pq.Array(blockedList))
	if err == nil {
		return &s, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, errors.Wrap(err, "failed to update sponsorship status")
	}

	// Either the status was blocked or the subscription is unknown.
	existing, err := r.FindBySubscriptionID(ctx, subscriptionID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// FindExpiredActive returns Active sponsorships whose end date has passed.
// The scheduler sweeps these to trigger gateway cancellation.
func (r *SponsorshipRepository) FindExpiredActive(ctx context.Context, now time.Time) ([]*domain.Sponsorship, error) {
	var sponsorships []*domain.Sponsorship
	query := `
		SELECT ` + sponsorshipColumns + ` FROM sponsorships
		WHERE status = $1 AND end_date < $2
		ORDER BY end_date
	`

	if err := r.db.SelectContext(ctx, &sponsorships, query, domain.SponsorshipStatusActive, now); err != nil {
		return nil, errors.Wrap(err, "failed to list expired sponsorships")
	}
	return sponsorships, nil
}

// ExistsOpen reports whether the sponsor already has a non-terminal
// sponsorship for the orphan. Backed by a partial unique index as well; this
// check exists to give callers a friendly error before hitting it.
func (r *SponsorshipRepository) ExistsOpen(ctx context.Context, sponsorID, orphanID uuid.UUID) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sponsorships
			WHERE sponsor_id = $1 AND orphan_id = $2 AND status IN ($3, $4)
		)
	`

	err := r.db.GetContext(ctx, &exists, query, sponsorID, orphanID,
		domain.SponsorshipStatusPending, domain.SponsorshipStatusActive)
	if err != nil {
		return false, errors.Wrap(err, "failed to check open sponsorship")
	}
	return exists, nil
}

func (r *SponsorshipRepository) FindBySponsor(ctx context.Context, sponsorID uuid.UUID, limit, offset int) ([]*domain.Sponsorship, error) {
	var sponsorships []*domain.Sponsorship
	query := `
		SELECT ` + sponsorshipColumns + ` FROM sponsorships
		WHERE sponsor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	if err := r.db.SelectContext(ctx, &sponsorships, query, sponsorID, limit, offset); err != nil {
		return nil, errors.Wrap(err, "failed to list sponsor sponsorships")
	}
	return sponsorships, nil
}
