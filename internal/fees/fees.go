// Package fees computes the platform fee withheld from financial donations.
package fees

import (
	"context"

	"github.com/shopspring/decimal"

	"orphancare/internal/domain"
)

// DefaultPercent applies when no settings row exists yet.
var DefaultPercent = decimal.NewFromInt(5)

// Breakdown splits a gross donation amount into fee and net.
type Breakdown struct {
	Fee decimal.Decimal `json:"fee"`
	Net decimal.Decimal `json:"net"`
}

// Calculate splits amount using the given fee percent. The fee is rounded to
// whole currency units; Fee + Net always equals amount exactly.
func Calculate(amount, percent decimal.Decimal) Breakdown {
	fee := amount.Mul(percent).Div(decimal.NewFromInt(100)).Round(0)
	return Breakdown{
		Fee: fee,
		Net: amount.Sub(fee),
	}
}

// SettingsRepository reads the single-row system settings.
type SettingsRepository interface {
	Get(ctx context.Context) (*domain.Settings, error)
}

// Calculator resolves the configured fee percent at call time so that admin
// updates take effect without a restart.
type Calculator struct {
	settings SettingsRepository
}

func NewCalculator(settings SettingsRepository) *Calculator {
	return &Calculator{settings: settings}
}

// ForAmount reads the current fee percent and splits amount with it. A missing
// settings row falls back to DefaultPercent; a store error is returned so the
// caller never silently books a wrong fee.
func (c *Calculator) ForAmount(ctx context.Context, amount decimal.Decimal) (Breakdown, error) {
	settings, err := c.settings.Get(ctx)
	if err != nil {
		return Breakdown{}, err
	}
	percent := DefaultPercent
	if settings != nil {
		percent = settings.TransactionFeePercent
	}
	return Calculate(amount, percent), nil
}
