package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"orphancare/internal/domain"
	"orphancare/pkg/errors"
)

// SettingsRepository reads and writes the single-row system settings.
type SettingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the settings row, or nil when none exists yet (callers fall
// back to defaults).
func (r *SettingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	var s domain.Settings
	query := `SELECT transaction_fee_percent, updated_at FROM system_settings WHERE id = 1`

	err := r.db.GetContext(ctx, &s, query)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read system settings")
	}

	return &s, nil
}

// UpdateFeePercent upserts the configured transaction fee percent.
func (r *SettingsRepository) UpdateFeePercent(ctx context.Context, percent decimal.Decimal) error {
	query := `
		INSERT INTO system_settings (id, transaction_fee_percent, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET
			transaction_fee_percent = EXCLUDED.transaction_fee_percent,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, percent)
	return errors.Wrap(err, "failed to update system settings")
}
