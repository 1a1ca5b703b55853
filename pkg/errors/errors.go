// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrDonationNotFound    = errors.New("donation not found")
	ErrSponsorshipNotFound = errors.New("sponsorship not found")
	ErrSponsorshipExists   = errors.New("sponsor already has an open sponsorship for this orphan")
	ErrCampaignNotFound    = errors.New("campaign not found")
	ErrOrphanNotFound      = errors.New("orphan not found")
	ErrOrphanageNotFound   = errors.New("orphanage not found")

	// Webhook errors
	ErrInvalidSignature = errors.New("webhook signature verification failed")

	// Control record errors
	ErrControlRecordNotFound = errors.New("control record not found")
	ErrControlRecordExists   = errors.New("control record already exists for donation")
	ErrDonationNotCompleted  = errors.New("donation must be completed before controlling")

	// State machine errors
	ErrInvalidTransition = errors.New("invalid status transition")

	// Gateway errors
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
