// Package postgres implements the ledger repositories on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"orphancare/internal/domain"
	"orphancare/pkg/errors"
)

const donationColumns = `
	id, donor_id, category, donation_type, amount, fee, net_amount,
	transaction_id, status, orphanage_id, campaign_id, support_program_id,
	items, created_at, updated_at`

type DonationRepository struct {
	db *sqlx.DB
}

func NewDonationRepository(db *sqlx.DB) *DonationRepository {
	return &DonationRepository{db: db}
}

func (r *DonationRepository) Create(ctx context.Context, d *domain.Donation) error {
	query := `
		INSERT INTO donations (
			id, donor_id, category, donation_type, amount, fee, net_amount,
			transaction_id, status, orphanage_id, campaign_id, support_program_id,
			items, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.DonorID, d.Category, d.DonationType, d.Amount, d.Fee, d.NetAmount,
		d.TransactionID, d.Status, d.OrphanageID, d.CampaignID, d.SupportProgramID,
		d.Items, d.CreatedAt, d.UpdatedAt,
	)

	return errors.Wrap(err, "failed to create donation")
}

func (r *DonationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	var d domain.Donation
	query := `SELECT ` + donationColumns + ` FROM donations WHERE id = $1`

	err := r.db.GetContext(ctx, &d, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrDonationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find donation")
	}

	return &d, nil
}

// SetTransactionID replaces the placeholder gateway reference once the
// checkout session exists.
func (r *DonationRepository) SetTransactionID(ctx context.Context, id uuid.UUID, transactionID string) error {
	query := `UPDATE donations SET transaction_id = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, transactionID)
	return errors.Wrap(err, "failed to set donation transaction id")
}

// MarkCompleted performs the Pending -> Completed transition as a single
// conditional update. It returns the donation and whether this call applied
// the transition; a redelivered webhook event gets updated == false and the
// row as it stands.
func (r *DonationRepository) MarkCompleted(ctx context.Context, id uuid.UUID) (*domain.Donation, bool, error) {
	var d domain.Donation
	query := `
		UPDATE donations SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING ` + donationColumns

	err := r.db.GetContext(ctx, &d, query, id, domain.DonationStatusCompleted, domain.DonationStatusPending)
	if err == nil {
		return &d, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, errors.Wrap(err, "failed to mark donation completed")
	}

	// Not Pending anymore, or the id is unknown.
	existing, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// MarkControlled advances a donation to Controlled. Only Completed financial
// donations and delivered (On Arrive) in-kind donations may be controlled.
func (r *DonationRepository) MarkControlled(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE donations SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ($3, $4)
	`

	res, err := r.db.ExecContext(ctx, query, id,
		domain.DonationStatusControlled,
		domain.DonationStatusCompleted,
		domain.DonationStatusOnArrive,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to mark donation controlled")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to mark donation controlled")
	}
	return rows > 0, nil
}

func (r *DonationRepository) FindByDonor(ctx context.Context, donorID uuid.UUID, limit, offset int) ([]*domain.Donation, error) {
	var donations []*domain.Donation
	query := `
		SELECT ` + donationColumns + ` FROM donations
		WHERE donor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	if err := r.db.SelectContext(ctx, &donations, query, donorID, limit, offset); err != nil {
		return nil, errors.Wrap(err, "failed to list donor donations")
	}
	return donations, nil
}

func (r *DonationRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.Donation, error) {
	var donations []*domain.Donation
	query := `
		SELECT ` + donationColumns + ` FROM donations
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	if err := r.db.SelectContext(ctx, &donations, query, limit, offset); err != nil {
		return nil, errors.Wrap(err, "failed to list donations")
	}
	return donations, nil
}
