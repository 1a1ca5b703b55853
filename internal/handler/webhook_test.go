package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"orphancare/internal/domain"
	"orphancare/internal/webhook"
	"orphancare/pkg/logger"
)

type stubVerifier struct {
	event *webhook.Event
	err   error
}

func (s *stubVerifier) VerifyAndParse(payload []byte, signature string) (*webhook.Event, error) {
	return s.event, s.err
}

type stubDonations struct {
	err error
}

func (s *stubDonations) FindByID(ctx context.Context, id uuid.UUID) (*domain.Donation, error) {
	return nil, s.err
}

func (s *stubDonations) MarkCompleted(ctx context.Context, id uuid.UUID) (*domain.Donation, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	return &domain.Donation{ID: id, Amount: decimal.NewFromInt(10), Status: domain.DonationStatusCompleted}, true, nil
}

type stubSponsorships struct{}

func (s *stubSponsorships) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*domain.Sponsorship, error) {
	return nil, nil
}

func (s *stubSponsorships) UpdateStatusBySubscription(ctx context.Context, subscriptionID string, to domain.SponsorshipStatus, invoiceID string, blocked ...domain.SponsorshipStatus) (*domain.Sponsorship, bool, error) {
	return &domain.Sponsorship{SubscriptionID: subscriptionID, Status: to}, true, nil
}

type stubCampaigns struct{}

func (s *stubCampaigns) AddToRaised(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*domain.EmergencyCampaign, error) {
	return &domain.EmergencyCampaign{ID: id}, nil
}

type stubOrphans struct{}

func (s *stubOrphans) AddSponsor(ctx context.Context, orphanID, sponsorID uuid.UUID) error {
	return nil
}

func (s *stubOrphans) RemoveSponsor(ctx context.Context, orphanID, sponsorID uuid.UUID) error {
	return nil
}

func newWebhookHandler(verifier webhook.Verifier, donations webhook.DonationRepository) *WebhookHandler {
	processor := webhook.NewProcessor(
		verifier, donations, &stubSponsorships{}, &stubCampaigns{}, &stubOrphans{}, logger.NewNop(),
	)
	return NewWebhookHandler(processor, logger.NewNop())
}

func postEvent(h *WebhookHandler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=sig")
	rec := httptest.NewRecorder()
	h.HandleEvent(rec, req)
	return rec
}

func TestHandleEvent_InvalidSignatureReturns400(t *testing.T) {
	h := newWebhookHandler(&stubVerifier{err: errors.New("signature mismatch")}, &stubDonations{})

	rec := postEvent(h)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid signature")
}

func TestHandleEvent_UnknownEventAcknowledged(t *testing.T) {
	h := newWebhookHandler(&stubVerifier{event: &webhook.Event{ID: "evt_1", Type: "charge.refunded"}}, &stubDonations{})

	rec := postEvent(h)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "received")
}

func TestHandleEvent_StoreFailureReturns500(t *testing.T) {
	event := &webhook.Event{
		ID:         "evt_1",
		Type:       webhook.EventCheckoutCompleted,
		DonationID: uuid.NewString(),
	}
	h := newWebhookHandler(&stubVerifier{event: event}, &stubDonations{err: errors.New("connection reset")})

	rec := postEvent(h)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleEvent_CheckoutCompletedAcknowledged(t *testing.T) {
	event := &webhook.Event{
		ID:         "evt_1",
		Type:       webhook.EventCheckoutCompleted,
		DonationID: uuid.NewString(),
	}
	h := newWebhookHandler(&stubVerifier{event: event}, &stubDonations{})

	rec := postEvent(h)

	assert.Equal(t, http.StatusOK, rec.Code)
}
