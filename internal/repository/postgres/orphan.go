package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"orphancare/internal/domain"
	"orphancare/pkg/errors"
)

type OrphanRepository struct {
	db *sqlx.DB
}

func NewOrphanRepository(db *sqlx.DB) *OrphanRepository {
	return &OrphanRepository{db: db}
}

func (r *OrphanRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Orphan, error) {
	var o domain.Orphan
	query := `SELECT id, name, orphanage_id FROM orphans WHERE id = $1`

	err := r.db.GetContext(ctx, &o, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.ErrOrphanNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find orphan")
	}

	return &o, nil
}

// AddSponsor records the sponsor in the orphan's sponsor set. Inserting an
// existing pair is a no-op, which gives the webhook processor its
// set-semantics guarantee under redelivery.
func (r *OrphanRepository) AddSponsor(ctx context.Context, orphanID, sponsorID uuid.UUID) error {
	query := `
		INSERT INTO orphan_sponsors (orphan_id, sponsor_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, orphanID, sponsorID)
	return errors.Wrap(err, "failed to add sponsor to orphan")
}

func (r *OrphanRepository) RemoveSponsor(ctx context.Context, orphanID, sponsorID uuid.UUID) error {
	query := `DELETE FROM orphan_sponsors WHERE orphan_id = $1 AND sponsor_id = $2`
	_, err := r.db.ExecContext(ctx, query, orphanID, sponsorID)
	return errors.Wrap(err, "failed to remove sponsor from orphan")
}

// Sponsors returns the orphan's current sponsor set.
func (r *OrphanRepository) Sponsors(ctx context.Context, orphanID uuid.UUID) ([]uuid.UUID, error) {
	var sponsors []uuid.UUID
	query := `SELECT sponsor_id FROM orphan_sponsors WHERE orphan_id = $1`

	if err := r.db.SelectContext(ctx, &sponsors, query, orphanID); err != nil {
		return nil, errors.Wrap(err, "failed to list orphan sponsors")
	}
	return sponsors, nil
}
