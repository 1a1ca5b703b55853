package sponsorship

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"orphancare/internal/domain"
	"orphancare/internal/gateway"
	pkgerrors "orphancare/pkg/errors"
	"orphancare/pkg/logger"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, s *domain.Sponsorship) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sponsorship, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Sponsorship), args.Error(1)
}

func (m *MockRepository) ExistsOpen(ctx context.Context, sponsorID, orphanID uuid.UUID) (bool, error) {
	args := m.Called(ctx, sponsorID, orphanID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) FindBySponsor(ctx context.Context, sponsorID uuid.UUID, limit, offset int) ([]*domain.Sponsorship, error) {
	args := m.Called(ctx, sponsorID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Sponsorship), args.Error(1)
}

type MockOrphanRepository struct {
	mock.Mock
}

func (m *MockOrphanRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Orphan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Orphan), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, req *gateway.CheckoutSessionRequest) (*gateway.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CheckoutSession), args.Error(1)
}

func (m *MockGateway) CreateSubscription(ctx context.Context, req *gateway.SubscriptionRequest) (*gateway.Subscription, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Subscription), args.Error(1)
}

func (m *MockGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	args := m.Called(ctx, subscriptionID)
	return args.Error(0)
}

func validInput(orphanID uuid.UUID) *CreateInput {
	return &CreateInput{
		SponsorID:       uuid.New(),
		OrphanID:        orphanID,
		Amount:          decimal.NewFromInt(50),
		Currency:        "usd",
		Frequency:       domain.FrequencyMonthly,
		EndDate:         time.Now().AddDate(1, 0, 0),
		CustomerID:      "cus_1",
		PaymentMethodID: "pm_1",
		PriceID:         "price_1",
	}
}

func TestCreate_RecordsPendingSponsorshipWithSubscription(t *testing.T) {
	sponsorships := new(MockRepository)
	orphans := new(MockOrphanRepository)
	gw := new(MockGateway)

	orphan := &domain.Orphan{ID: uuid.New(), Name: "Amina", OrphanageID: uuid.New()}
	input := validInput(orphan.ID)

	orphans.On("FindByID", mock.Anything, orphan.ID).Return(orphan, nil)
	sponsorships.On("ExistsOpen", mock.Anything, input.SponsorID, orphan.ID).Return(false, nil)
	gw.On("CreateSubscription", mock.Anything, &gateway.SubscriptionRequest{
		CustomerID:      "cus_1",
		PaymentMethodID: "pm_1",
		PriceID:         "price_1",
	}).Return(&gateway.Subscription{
		ID:              "sub_1",
		LatestInvoiceID: "in_1",
		NextActionURL:   "https://pay.example/authenticate",
	}, nil)
	sponsorships.On("Create", mock.Anything, mock.MatchedBy(func(s *domain.Sponsorship) bool {
		return s.Status == domain.SponsorshipStatusPending &&
			s.SubscriptionID == "sub_1" &&
			s.LatestInvoiceID == "in_1" &&
			s.OrphanageID == orphan.OrphanageID
	})).Return(nil)

	service := NewService(sponsorships, orphans, gw, logger.NewNop())
	result, err := service.Create(context.Background(), input)

	assert.NoError(t, err)
	assert.Equal(t, domain.SponsorshipStatusPending, result.Sponsorship.Status)
	assert.Equal(t, "https://pay.example/authenticate", result.NextActionURL)
	sponsorships.AssertExpectations(t)
	gw.AssertExpectations(t)
}

func TestCreate_RejectsSecondOpenSponsorshipForSameOrphan(t *testing.T) {
	sponsorships := new(MockRepository)
	orphans := new(MockOrphanRepository)
	gw := new(MockGateway)

	orphan := &domain.Orphan{ID: uuid.New(), OrphanageID: uuid.New()}
	input := validInput(orphan.ID)

	orphans.On("FindByID", mock.Anything, orphan.ID).Return(orphan, nil)
	sponsorships.On("ExistsOpen", mock.Anything, input.SponsorID, orphan.ID).Return(true, nil)

	service := NewService(sponsorships, orphans, gw, logger.NewNop())
	_, err := service.Create(context.Background(), input)

	assert.ErrorIs(t, err, pkgerrors.ErrSponsorshipExists)
	gw.AssertNotCalled(t, "CreateSubscription", mock.Anything, mock.Anything)
}

func TestCreate_UnknownOrphanRejected(t *testing.T) {
	sponsorships := new(MockRepository)
	orphans := new(MockOrphanRepository)
	gw := new(MockGateway)

	orphanID := uuid.New()
	orphans.On("FindByID", mock.Anything, orphanID).Return(nil, pkgerrors.ErrOrphanNotFound)

	service := NewService(sponsorships, orphans, gw, logger.NewNop())
	_, err := service.Create(context.Background(), validInput(orphanID))

	assert.ErrorIs(t, err, pkgerrors.ErrOrphanNotFound)
	sponsorships.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreate_GatewayFailureCreatesNothing(t *testing.T) {
	sponsorships := new(MockRepository)
	orphans := new(MockOrphanRepository)
	gw := new(MockGateway)

	orphan := &domain.Orphan{ID: uuid.New(), OrphanageID: uuid.New()}
	input := validInput(orphan.ID)

	orphans.On("FindByID", mock.Anything, orphan.ID).Return(orphan, nil)
	sponsorships.On("ExistsOpen", mock.Anything, input.SponsorID, orphan.ID).Return(false, nil)
	gw.On("CreateSubscription", mock.Anything, mock.Anything).
		Return(nil, errors.New("card declined"))

	service := NewService(sponsorships, orphans, gw, logger.NewNop())
	_, err := service.Create(context.Background(), input)

	assert.Error(t, err)
	sponsorships.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCancel_RequestsGatewayCancellationOnly(t *testing.T) {
	sponsorships := new(MockRepository)
	orphans := new(MockOrphanRepository)
	gw := new(MockGateway)

	active := &domain.Sponsorship{
		ID:             uuid.New(),
		Status:         domain.SponsorshipStatusActive,
		SubscriptionID: "sub_1",
	}
	sponsorships.On("FindByID", mock.Anything, active.ID).Return(active, nil)
	gw.On("CancelSubscription", mock.Anything, "sub_1").Return(nil)

	service := NewService(sponsorships, orphans, gw, logger.NewNop())
	err := service.Cancel(context.Background(), active.ID)

	assert.NoError(t, err)
	// Terminal state is written by the deletion webhook, not here.
	assert.Equal(t, domain.SponsorshipStatusActive, active.Status)
	gw.AssertExpectations(t)
}

func TestCancel_TerminalSponsorshipRejected(t *testing.T) {
	sponsorships := new(MockRepository)
	orphans := new(MockOrphanRepository)
	gw := new(MockGateway)

	canceled := &domain.Sponsorship{
		ID:             uuid.New(),
		Status:         domain.SponsorshipStatusCanceled,
		SubscriptionID: "sub_1",
	}
	sponsorships.On("FindByID", mock.Anything, canceled.ID).Return(canceled, nil)

	service := NewService(sponsorships, orphans, gw, logger.NewNop())
	err := service.Cancel(context.Background(), canceled.ID)

	assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransition)
	gw.AssertNotCalled(t, "CancelSubscription", mock.Anything, mock.Anything)
}
