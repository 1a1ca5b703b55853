// Package domain defines the ledger entities and their status machines.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// DonationCategory classifies what a donation supports.
type DonationCategory string

const (
	CategoryGeneralFund      DonationCategory = "General Fund"
	CategoryEducationSupport DonationCategory = "Education Support"
	CategoryMedicalAid       DonationCategory = "Medical Aid"
	CategoryEmergencyRelief  DonationCategory = "Emergency Relief"
)

// DonationType distinguishes financial donations from in-kind ones.
type DonationType string

const (
	DonationTypeFinancial DonationType = "Financial"
	DonationTypeBooks     DonationType = "Books"
	DonationTypeClothes   DonationType = "Clothes"
	DonationTypeFood      DonationType = "Food"
	DonationTypeMaterial  DonationType = "Material"
)

// DonationStatus represents donation lifecycle states.
type DonationStatus string

const (
	DonationStatusPending    DonationStatus = "Pending"
	DonationStatusOnArrive   DonationStatus = "On Arrive"
	DonationStatusCompleted  DonationStatus = "Completed"
	DonationStatusControlled DonationStatus = "Controlled"
)

// donationTransitions is the full transition table. Pending donations complete
// through the webhook processor; Completed and On Arrive donations advance to
// Controlled when a control record is created. Controlled is absorbing.
var donationTransitions = map[DonationStatus][]DonationStatus{
	DonationStatusPending:   {DonationStatusCompleted},
	DonationStatusOnArrive:  {DonationStatusControlled},
	DonationStatusCompleted: {DonationStatusControlled},
}

// CanTransitionTo reports whether the status machine allows s -> target.
func (s DonationStatus) CanTransitionTo(target DonationStatus) bool {
	for _, allowed := range donationTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// PlaceholderTransactionID marks a donation whose gateway reference has not
// been assigned yet.
const PlaceholderTransactionID = "TEMP"

// DonationItem describes one line of an in-kind donation.
type DonationItem struct {
	Kind     string `json:"kind,omitempty"`
	Name     string `json:"name,omitempty"`
	Size     string `json:"size,omitempty"`
	Quantity int    `json:"quantity"`
}

// DonationItems is stored as a JSONB column.
type DonationItems []DonationItem

func (d DonationItems) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *DonationItems) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return errors.New("donation items: unsupported scan type")
	}
	return json.Unmarshal(b, d)
}

// Donation is a single gift from a donor, financial or in-kind.
type Donation struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	DonorID          uuid.UUID        `db:"donor_id" json:"donor_id"`
	Category         DonationCategory `db:"category" json:"category"`
	DonationType     DonationType     `db:"donation_type" json:"donation_type"`
	Amount           decimal.Decimal  `db:"amount" json:"amount"`
	Fee              decimal.Decimal  `db:"fee" json:"fee"`
	NetAmount        decimal.Decimal  `db:"net_amount" json:"net_amount"`
	TransactionID    string           `db:"transaction_id" json:"transaction_id"`
	Status           DonationStatus   `db:"status" json:"status"`
	OrphanageID      *uuid.UUID       `db:"orphanage_id" json:"orphanage_id,omitempty"`
	CampaignID       *uuid.UUID       `db:"campaign_id" json:"campaign_id,omitempty"`
	SupportProgramID *uuid.UUID       `db:"support_program_id" json:"support_program_id,omitempty"`
	Items            DonationItems    `db:"items" json:"items,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// SponsorshipFrequency is the recurring billing interval.
type SponsorshipFrequency string

const (
	FrequencyMonthly SponsorshipFrequency = "monthly"
	FrequencyYearly  SponsorshipFrequency = "yearly"
)

// SponsorshipStatus represents sponsorship lifecycle states.
type SponsorshipStatus string

const (
	SponsorshipStatusPending   SponsorshipStatus = "Pending"
	SponsorshipStatusActive    SponsorshipStatus = "Active"
	SponsorshipStatusCompleted SponsorshipStatus = "Completed"
	SponsorshipStatusCanceled  SponsorshipStatus = "Canceled"
	SponsorshipStatusFailed    SponsorshipStatus = "Failed"
)

// IsAbsorbing reports whether no further gateway event may change the status.
// Failed is deliberately not absorbing: the gateway retries failed invoices,
// and a later successful invoice reactivates the sponsorship.
func (s SponsorshipStatus) IsAbsorbing() bool {
	return s == SponsorshipStatusCompleted || s == SponsorshipStatusCanceled
}

// IsTerminal reports whether the sponsorship has reached a resting state that
// only an admin override may change.
func (s SponsorshipStatus) IsTerminal() bool {
	return s == SponsorshipStatusCompleted || s == SponsorshipStatusCanceled || s == SponsorshipStatusFailed
}

// Sponsorship is a recurring commitment from a sponsor to an orphan, backed by
// a gateway subscription.
type Sponsorship struct {
	ID              uuid.UUID            `db:"id" json:"id"`
	SponsorID       uuid.UUID            `db:"sponsor_id" json:"sponsor_id"`
	OrphanID        uuid.UUID            `db:"orphan_id" json:"orphan_id"`
	OrphanageID     uuid.UUID            `db:"orphanage_id" json:"orphanage_id"`
	Amount          decimal.Decimal      `db:"amount" json:"amount"`
	Currency        string               `db:"currency" json:"currency"`
	Frequency       SponsorshipFrequency `db:"frequency" json:"frequency"`
	StartDate       time.Time            `db:"start_date" json:"start_date"`
	EndDate         time.Time            `db:"end_date" json:"end_date"`
	Status          SponsorshipStatus    `db:"status" json:"status"`
	SubscriptionID  string               `db:"subscription_id" json:"subscription_id"`
	LatestInvoiceID string               `db:"latest_invoice_id" json:"latest_invoice_id"`
	CreatedAt       time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time            `db:"updated_at" json:"updated_at"`
}

// CampaignStatus represents emergency campaign lifecycle states.
type CampaignStatus string

const (
	CampaignStatusActive    CampaignStatus = "Active"
	CampaignStatusCompleted CampaignStatus = "Completed"
	CampaignStatusExpired   CampaignStatus = "Expired"
)

// EmergencyCampaign collects donations toward a target amount until endDate.
type EmergencyCampaign struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Title        string          `db:"title" json:"title"`
	Description  string          `db:"description" json:"description"`
	TargetAmount decimal.Decimal `db:"target_amount" json:"target_amount"`
	RaisedAmount decimal.Decimal `db:"raised_amount" json:"raised_amount"`
	OrphanageID  *uuid.UUID      `db:"orphanage_id" json:"orphanage_id,omitempty"`
	Status       CampaignStatus  `db:"status" json:"status"`
	EndDate      time.Time       `db:"end_date" json:"end_date"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// TargetReached reports whether the campaign has raised its target.
func (c *EmergencyCampaign) TargetReached() bool {
	return c.RaisedAmount.GreaterThanOrEqual(c.TargetAmount)
}

// ControllingDonation documents how a completed donation was spent. At most
// one control record exists per donation.
type ControllingDonation struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	DonationID      uuid.UUID      `db:"donation_id" json:"donation_id"`
	OrphanageID     *uuid.UUID     `db:"orphanage_id" json:"orphanage_id,omitempty"`
	ControlledByID  uuid.UUID      `db:"controlled_by_id" json:"controlled_by_id"`
	UsageSummary    string         `db:"usage_summary" json:"usage_summary"`
	OrphansImpacted pq.StringArray `db:"orphans_impacted" json:"orphans_impacted"`
	Photos          pq.StringArray `db:"photos" json:"photos"`
	Notes           string         `db:"notes" json:"notes"`
	ControlDate     time.Time      `db:"control_date" json:"control_date"`
}

// Orphan is referenced by sponsorships; its sponsor set is maintained by the
// webhook processor as a denormalized index.
type Orphan struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	OrphanageID uuid.UUID `db:"orphanage_id" json:"orphanage_id"`
}

// Settings is the single-row system configuration.
type Settings struct {
	TransactionFeePercent decimal.Decimal `db:"transaction_fee_percent" json:"transaction_fee_percent"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`
}
