// Package campaign manages emergency fundraising campaigns.
package campaign

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"orphancare/internal/domain"
	"orphancare/pkg/logger"
)

// Repository is the campaign storage the service needs.
type Repository interface {
	Create(ctx context.Context, c *domain.EmergencyCampaign) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.EmergencyCampaign, error)
	FindAll(ctx context.Context, status domain.CampaignStatus, limit, offset int) ([]*domain.EmergencyCampaign, error)
}

// CreateInput describes a new emergency campaign.
type CreateInput struct {
	Title        string          `validate:"required"`
	Description  string          `validate:"required"`
	TargetAmount decimal.Decimal `validate:"required"`
	EndDate      time.Time       `validate:"required"`
	OrphanageID  *uuid.UUID
}

type Service struct {
	campaigns Repository
	logger    logger.Logger
	now       func() time.Time
}

func NewService(campaigns Repository, log logger.Logger) *Service {
	return &Service{campaigns: campaigns, logger: log, now: time.Now}
}

// Create opens a new Active campaign with nothing raised yet. Raised amounts
// only ever grow through completed donations; they are never set directly.
func (s *Service) Create(ctx context.Context, input *CreateInput) (*domain.EmergencyCampaign, error) {
	now := s.now()
	campaign := &domain.EmergencyCampaign{
		ID:           uuid.New(),
		Title:        input.Title,
		Description:  input.Description,
		TargetAmount: input.TargetAmount,
		RaisedAmount: decimal.Zero,
		OrphanageID:  input.OrphanageID,
		Status:       domain.CampaignStatusActive,
		EndDate:      input.EndDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, err
	}

	s.logger.Info("Campaign created", map[string]interface{}{
		"campaign_id":   campaign.ID,
		"title":         campaign.Title,
		"target_amount": campaign.TargetAmount.String(),
		"end_date":      campaign.EndDate.Format(time.RFC3339),
	})

	return campaign, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.EmergencyCampaign, error) {
	return s.campaigns.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context, status domain.CampaignStatus, limit, offset int) ([]*domain.EmergencyCampaign, error) {
	return s.campaigns.FindAll(ctx, status, limit, offset)
}
