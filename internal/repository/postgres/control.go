package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"orphancare/internal/domain"
	"orphancare/pkg/errors"
)

const controlColumns = `
	id, donation_id, orphanage_id, controlled_by_id, usage_summary,
	orphans_impacted, photos, notes, control_date`

type ControlRepository struct {
	db *sqlx.DB
}

func NewControlRepository(db *sqlx.DB) *ControlRepository {
	return &ControlRepository{db: db}
}

func (r *ControlRepository) Create(ctx context.Context, c *domain.ControllingDonation) error {
	query := `
		INSERT INTO controlling_donations (
			id, donation_id, orphanage_id, controlled_by_id, usage_summary,
			orphans_impacted, photos, notes, control_date
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.DonationID, c.OrphanageID, c.ControlledByID, c.UsageSummary,
		c.OrphansImpacted, c.Photos, c.Notes, c.ControlDate,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return errors.ErrControlRecordExists
		}
		return errors.Wrap(err, "failed to create control record")
	}

	return nil
}

func (r *ControlRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ControllingDonation, error) {
	var c domain.ControllingDonation
	query := `SELECT ` + controlColumns + ` FROM controlling_donations WHERE id = $1`

	err := r.db.GetContext(ctx, &c, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrControlRecordNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find control record")
	}

	return &c, nil
}

func (r *ControlRepository) FindByDonationID(ctx context.Context, donationID uuid.UUID) (*domain.ControllingDonation, error) {
	var c domain.ControllingDonation
	query := `SELECT ` + controlColumns + ` FROM controlling_donations WHERE donation_id = $1`

	err := r.db.GetContext(ctx, &c, query, donationID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrControlRecordNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find control record")
	}

	return &c, nil
}

// Update rewrites the bounded editable field set. The donation reference and
// controller identity are immutable once created.
func (r *ControlRepository) Update(ctx context.Context, c *domain.ControllingDonation) error {
	query := `
		UPDATE controlling_donations SET
			usage_summary = $2, orphans_impacted = $3, photos = $4, notes = $5
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query,
		c.ID, c.UsageSummary, c.OrphansImpacted, c.Photos, c.Notes,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update control record")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to update control record")
	}
	if rows == 0 {
		return errors.ErrControlRecordNotFound
	}
	return nil
}
