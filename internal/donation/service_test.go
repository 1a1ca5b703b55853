package donation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"orphancare/internal/domain"
	"orphancare/internal/fees"
	"orphancare/internal/gateway"
	pkgerrors "orphancare/pkg/errors"
	"orphancare/pkg/logger"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, d *domain.Donation) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Donation), args.Error(1)
}

func (m *MockRepository) SetTransactionID(ctx context.Context, id uuid.UUID, transactionID string) error {
	args := m.Called(ctx, id, transactionID)
	return args.Error(0)
}

func (m *MockRepository) MarkControlled(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) FindByDonor(ctx context.Context, donorID uuid.UUID, limit, offset int) ([]*domain.Donation, error) {
	args := m.Called(ctx, donorID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Donation), args.Error(1)
}

func (m *MockRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.Donation, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Donation), args.Error(1)
}

type MockControlRepository struct {
	mock.Mock
}

func (m *MockControlRepository) Create(ctx context.Context, c *domain.ControllingDonation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockControlRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ControllingDonation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ControllingDonation), args.Error(1)
}

func (m *MockControlRepository) FindByDonationID(ctx context.Context, donationID uuid.UUID) (*domain.ControllingDonation, error) {
	args := m.Called(ctx, donationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ControllingDonation), args.Error(1)
}

func (m *MockControlRepository) Update(ctx context.Context, c *domain.ControllingDonation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

type MockFeeCalculator struct {
	mock.Mock
}

func (m *MockFeeCalculator) ForAmount(ctx context.Context, amount decimal.Decimal) (fees.Breakdown, error) {
	args := m.Called(ctx, amount)
	return args.Get(0).(fees.Breakdown), args.Error(1)
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

type serviceFixture struct {
	donations *MockRepository
	controls  *MockControlRepository
	fees      *MockFeeCalculator
	gateway   *MockGateway
	service   *Service
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		donations: new(MockRepository),
		controls:  new(MockControlRepository),
		fees:      new(MockFeeCalculator),
		gateway:   new(MockGateway),
	}
	f.service = NewService(f.donations, f.controls, f.fees, f.gateway, logger.NewNop())
	return f
}

func TestCreateFinancial_FreezesFeeAndOpensCheckout(t *testing.T) {
	f := newServiceFixture()
	amount := decimal.NewFromInt(150)

	f.fees.On("ForAmount", mock.Anything, amount).
		Return(fees.Breakdown{Fee: decimal.NewFromInt(8), Net: decimal.NewFromInt(142)}, nil)
	f.donations.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Donation) bool {
		return d.Status == domain.DonationStatusPending &&
			d.TransactionID == domain.PlaceholderTransactionID &&
			d.Fee.Equal(decimal.NewFromInt(8)) &&
			d.NetAmount.Equal(decimal.NewFromInt(142)) &&
			d.Fee.Add(d.NetAmount).Equal(d.Amount)
	})).Return(nil)
	f.gateway.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(req *gateway.CheckoutSessionRequest) bool {
		return req.Amount.Equal(amount) && req.Currency == "usd"
	})).Return(&gateway.CheckoutSession{ID: "cs_test_1", URL: "https://pay.example/cs_test_1"}, nil)
	f.donations.On("SetTransactionID", mock.Anything, mock.Anything, "cs_test_1").Return(nil)

	result, err := f.service.CreateFinancial(context.Background(), &CreateFinancialInput{
		DonorID:  uuid.New(),
		Category: domain.CategoryGeneralFund,
		Amount:   amount,
		Currency: "usd",
	})

	assert.NoError(t, err)
	assert.Equal(t, "https://pay.example/cs_test_1", result.CheckoutURL)
	assert.Equal(t, "cs_test_1", result.Donation.TransactionID)
	f.donations.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
}

func TestCreateFinancial_FeeLookupFailureAborts(t *testing.T) {
	f := newServiceFixture()
	f.fees.On("ForAmount", mock.Anything, mock.Anything).
		Return(fees.Breakdown{}, errors.New("settings unavailable"))

	_, err := f.service.CreateFinancial(context.Background(), &CreateFinancialInput{
		DonorID:  uuid.New(),
		Category: domain.CategoryGeneralFund,
		Amount:   decimal.NewFromInt(100),
		Currency: "usd",
	})

	assert.Error(t, err)
	f.donations.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateFinancial_GatewayFailureLeavesPendingRow(t *testing.T) {
	f := newServiceFixture()
	f.fees.On("ForAmount", mock.Anything, mock.Anything).
		Return(fees.Breakdown{Fee: decimal.NewFromInt(5), Net: decimal.NewFromInt(95)}, nil)
	f.donations.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.gateway.On("CreateCheckoutSession", mock.Anything, mock.Anything).
		Return(nil, errors.New("gateway unavailable"))

	_, err := f.service.CreateFinancial(context.Background(), &CreateFinancialInput{
		DonorID:  uuid.New(),
		Category: domain.CategoryGeneralFund,
		Amount:   decimal.NewFromInt(100),
		Currency: "usd",
	})

	assert.Error(t, err)
	// The Pending record stays for reconciliation; no placeholder overwrite.
	f.donations.AssertCalled(t, "Create", mock.Anything, mock.Anything)
	f.donations.AssertNotCalled(t, "SetTransactionID", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateInKind_StartsOnArriveWithZeroAmounts(t *testing.T) {
	f := newServiceFixture()
	f.donations.On("Create", mock.Anything, mock.MatchedBy(func(d *domain.Donation) bool {
		return d.Status == domain.DonationStatusOnArrive &&
			d.Amount.IsZero() && d.Fee.IsZero() && d.NetAmount.IsZero() &&
			len(d.Items) == 1
	})).Return(nil)

	donation, err := f.service.CreateInKind(context.Background(), &CreateInKindInput{
		DonorID:      uuid.New(),
		Category:     domain.CategoryEducationSupport,
		DonationType: domain.DonationTypeBooks,
		Items:        domain.DonationItems{{Name: "Math textbooks", Quantity: 20}},
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.DonationStatusOnArrive, donation.Status)
	f.donations.AssertExpectations(t)
	f.fees.AssertNotCalled(t, "ForAmount", mock.Anything, mock.Anything)
}

func TestCreateControl_RequiresControllableStatus(t *testing.T) {
	f := newServiceFixture()
	pending := &domain.Donation{
		ID:     uuid.New(),
		Status: domain.DonationStatusPending,
	}
	f.donations.On("FindByID", mock.Anything, pending.ID).Return(pending, nil)

	_, err := f.service.CreateControl(context.Background(), &CreateControlInput{
		DonationID:     pending.ID,
		ControlledByID: uuid.New(),
		UsageSummary:   "school supplies",
	})

	assert.ErrorIs(t, err, pkgerrors.ErrDonationNotCompleted)
	f.controls.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateControl_CompletedDonationBecomesControlled(t *testing.T) {
	f := newServiceFixture()
	completed := &domain.Donation{
		ID:     uuid.New(),
		Status: domain.DonationStatusCompleted,
	}
	f.donations.On("FindByID", mock.Anything, completed.ID).Return(completed, nil)
	f.controls.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.ControllingDonation) bool {
		return c.DonationID == completed.ID && c.UsageSummary == "school supplies"
	})).Return(nil)
	f.donations.On("MarkControlled", mock.Anything, completed.ID).Return(true, nil)

	record, err := f.service.CreateControl(context.Background(), &CreateControlInput{
		DonationID:     completed.ID,
		ControlledByID: uuid.New(),
		UsageSummary:   "school supplies",
	})

	assert.NoError(t, err)
	assert.Equal(t, completed.ID, record.DonationID)
	f.controls.AssertExpectations(t)
	f.donations.AssertExpectations(t)
}

func TestCreateControl_DuplicateRecordRejected(t *testing.T) {
	f := newServiceFixture()
	completed := &domain.Donation{
		ID:     uuid.New(),
		Status: domain.DonationStatusCompleted,
	}
	f.donations.On("FindByID", mock.Anything, completed.ID).Return(completed, nil)
	f.controls.On("Create", mock.Anything, mock.Anything).Return(pkgerrors.ErrControlRecordExists)

	_, err := f.service.CreateControl(context.Background(), &CreateControlInput{
		DonationID:     completed.ID,
		ControlledByID: uuid.New(),
		UsageSummary:   "duplicate attempt",
	})

	assert.ErrorIs(t, err, pkgerrors.ErrControlRecordExists)
	f.donations.AssertNotCalled(t, "MarkControlled", mock.Anything, mock.Anything)
}

func TestCreateControl_InKindOnArriveIsControllable(t *testing.T) {
	f := newServiceFixture()
	inKind := &domain.Donation{
		ID:           uuid.New(),
		DonationType: domain.DonationTypeClothes,
		Status:       domain.DonationStatusOnArrive,
	}
	f.donations.On("FindByID", mock.Anything, inKind.ID).Return(inKind, nil)
	f.controls.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.donations.On("MarkControlled", mock.Anything, inKind.ID).Return(true, nil)

	_, err := f.service.CreateControl(context.Background(), &CreateControlInput{
		DonationID:     inKind.ID,
		ControlledByID: uuid.New(),
		UsageSummary:   "distributed to children",
	})

	assert.NoError(t, err)
	f.controls.AssertExpectations(t)
}
