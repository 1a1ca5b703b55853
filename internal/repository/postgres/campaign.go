package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"orphancare/internal/domain"
	"orphancare/pkg/errors"
)

const campaignColumns = `
	id, title, description, target_amount, raised_amount, orphanage_id,
	status, end_date, created_at, updated_at`

type CampaignRepository struct {
	db *sqlx.DB
}

func NewCampaignRepository(db *sqlx.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

func (r *CampaignRepository) Create(ctx context.Context, c *domain.EmergencyCampaign) error {
	query := `
		INSERT INTO emergency_campaigns (
			id, title, description, target_amount, raised_amount, orphanage_id,
			status, end_date, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Title, c.Description, c.TargetAmount, c.RaisedAmount, c.OrphanageID,
		c.Status, c.EndDate, c.CreatedAt, c.UpdatedAt,
	)

	return errors.Wrap(err, "failed to create campaign")
}

func (r *CampaignRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.EmergencyCampaign, error) {
	var c domain.EmergencyCampaign
	query := `SELECT ` + campaignColumns + ` FROM emergency_campaigns WHERE id = $1`

	err := r.db.GetContext(ctx, &c, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrCampaignNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find campaign")
	}

	return &c, nil
}

// AddToRaised increments raised_amount and promotes an Active campaign to
// Completed the moment the target is reached, all in one statement. Expired
// and Completed campaigns keep their status but still record late money.
func (r *CampaignRepository) AddToRaised(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*domain.EmergencyCampaign, error) {
	var c domain.EmergencyCampaign
	query := `
		UPDATE emergency_campaigns SET
			raised_amount = raised_amount + $2,
			status = CASE
				WHEN status = $3 AND raised_amount + $2 >= target_amount THEN $4
				ELSE status
			END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + campaignColumns

	err := r.db.GetContext(ctx, &c, query, id, amount,
		domain.CampaignStatusActive, domain.CampaignStatusCompleted)
	if err == sql.ErrNoRows {
		return nil, errors.ErrCampaignNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to add to campaign raised amount")
	}

	return &c, nil
}

// CompleteFunded promotes Active campaigns that already raised their target.
// The scheduler runs this before expiry so a funded campaign can never lapse
// into Expired.
func (r *CampaignRepository) CompleteFunded(ctx context.Context) ([]*domain.EmergencyCampaign, error) {
	var campaigns []*domain.EmergencyCampaign
	query := `
		UPDATE emergency_campaigns SET status = $2, updated_at = NOW()
		WHERE status = $1 AND raised_amount >= target_amount
		RETURNING ` + campaignColumns

	if err := r.db.SelectContext(ctx, &campaigns, query,
		domain.CampaignStatusActive, domain.CampaignStatusCompleted); err != nil {
		return nil, errors.Wrap(err, "failed to complete funded campaigns")
	}
	return campaigns, nil
}

// ExpireLapsed marks Active, past-end-date, under-target campaigns Expired.
// Re-running it is harmless: already-Expired rows no longer match the filter.
func (r *CampaignRepository) ExpireLapsed(ctx context.Context, now time.Time) ([]*domain.EmergencyCampaign, error) {
	var campaigns []*domain.EmergencyCampaign
	query := `
		UPDATE emergency_campaigns SET status = $2, updated_at = NOW()
		WHERE status = $1 AND end_date < $3 AND raised_amount < target_amount
		RETURNING ` + campaignColumns

	if err := r.db.SelectContext(ctx, &campaigns, query,
		domain.CampaignStatusActive, domain.CampaignStatusExpired, now); err != nil {
		return nil, errors.Wrap(err, "failed to expire campaigns")
	}
	return campaigns, nil
}

func (r *CampaignRepository) FindAll(ctx context.Context, status domain.CampaignStatus, limit, offset int) ([]*domain.EmergencyCampaign, error) {
	var campaigns []*domain.EmergencyCampaign

	if status != "" {
		query := `
			SELECT ` + campaignColumns + ` FROM emergency_campaigns
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`
		if err := r.db.SelectContext(ctx, &campaigns, query, status, limit, offset); err != nil {
			return nil, errors.Wrap(err, "failed to list campaigns")
		}
		return campaigns, nil
	}

	query := `
		SELECT ` + campaignColumns + ` FROM emergency_campaigns
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	if err := r.db.SelectContext(ctx, &campaigns, query, limit, offset); err != nil {
		return nil, errors.Wrap(err, "failed to list campaigns")
	}
	return campaigns, nil
}
