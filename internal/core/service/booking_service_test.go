package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/ports"
)

type bookingFixture struct {
	svc      *BookingService
	bookings *stubBookingRepo
	gateway  *stubGateway
	tour     *domain.Tour
	buyer    *domain.User
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	auth := newAuthFixture()
	buyer := auth.signup(t, "buyer@example.com")
	tour := &domain.Tour{Name: "The Sea Explorer", Summary: "Sea", Price: 497.5, ImageCover: "tour-2-cover.jpg"}
	tours := newStubTourRepo(tour)
	bookings := newStubBookingRepo()
	gateway := &stubGateway{session: &domain.CheckoutSession{ID: "cs_test_1", URL: "https://pay.test/cs_test_1"}}

	svc := NewBookingService(bookings, tours, auth.users, gateway, "EUR", zerolog.Nop())
	svc.now = func() time.Time { return base }
	return &bookingFixture{svc: svc, bookings: bookings, gateway: gateway, tour: tour, buyer: buyer}
}

func TestBookingService_CheckoutSession(t *testing.T) {
	f := newBookingFixture(t)

	session, err := f.svc.CheckoutSession(context.Background(), f.buyer, ports.CheckoutInput{
		TourID:       f.tour.ID.Hex(),
		SuccessURL:   "https://natours.test/my-tours",
		CancelURL:    "https://natours.test/tour/the-sea-explorer",
		ImageBaseURL: "https://natours.test/img/tours/",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", session.ID)

	req := f.gateway.lastReq
	assert.Equal(t, int64(49750), req.AmountCents)
	assert.Equal(t, "eur", req.Currency)
	assert.Equal(t, "buyer@example.com", req.CustomerEmail)
	assert.Equal(t, f.tour.ID.Hex(), req.TourID)
	assert.Equal(t, "The Sea Explorer Tour", req.TourName)
	assert.Equal(t, "https://natours.test/img/tours/tour-2-cover.jpg", req.ImageURL)
	assert.Empty(t, f.bookings.bookings, "no booking before payment completes")
}

func TestBookingService_CompleteCheckout(t *testing.T) {
	f := newBookingFixture(t)
	f.gateway.event = &domain.CheckoutEvent{
		Type:              domain.CheckoutEventCompleted,
		SessionID:         "cs_test_1",
		ClientReferenceID: f.tour.ID.Hex(),
		CustomerEmail:     "Buyer@Example.com",
		AmountTotal:       49750,
	}

	b, err := f.svc.CompleteCheckout(context.Background(), []byte(`{}`), "t=1,v1=00")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, f.tour.ID, b.Tour)
	assert.Equal(t, f.buyer.ID, b.User)
	assert.Equal(t, 497.5, b.Price)
	assert.True(t, b.Paid)
	assert.Len(t, f.bookings.bookings, 1)
}

func TestBookingService_CompleteCheckout_RedeliveryBooksOnce(t *testing.T) {
	f := newBookingFixture(t)
	f.gateway.event = &domain.CheckoutEvent{
		Type:              domain.CheckoutEventCompleted,
		SessionID:         "cs_test_1",
		ClientReferenceID: f.tour.ID.Hex(),
		CustomerEmail:     "buyer@example.com",
		AmountTotal:       49750,
	}

	first, err := f.svc.CompleteCheckout(context.Background(), []byte(`{}`), "t=1,v1=00")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "cs_test_1", first.SessionID)

	again, err := f.svc.CompleteCheckout(context.Background(), []byte(`{}`), "t=1,v1=00")
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Len(t, f.bookings.bookings, 1)
}

func TestBookingService_CompleteCheckout_BadSignatureCreatesNothing(t *testing.T) {
	f := newBookingFixture(t)
	f.gateway.parseErr = errors.New("signature mismatch")
	f.gateway.event = &domain.CheckoutEvent{Type: domain.CheckoutEventCompleted, ClientReferenceID: f.tour.ID.Hex(), CustomerEmail: "buyer@example.com"}

	b, err := f.svc.CompleteCheckout(context.Background(), []byte(`{}`), "t=1,v1=bad")
	assert.Nil(t, b)
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))
	assert.Contains(t, err.Error(), "Webhook error: signature mismatch")
	assert.Empty(t, f.bookings.bookings)
}

func TestBookingService_CompleteCheckout_IgnoresOtherEvents(t *testing.T) {
	f := newBookingFixture(t)
	f.gateway.event = &domain.CheckoutEvent{Type: "checkout.session.expired"}

	b, err := f.svc.CompleteCheckout(context.Background(), []byte(`{}`), "t=1,v1=00")
	require.NoError(t, err)
	assert.Nil(t, b)
	assert.Empty(t, f.bookings.bookings)
}

func TestBookingService_Create_Validation(t *testing.T) {
	f := newBookingFixture(t)

	_, err := f.svc.Create(context.Background(), &domain.Booking{User: f.buyer.ID, Price: 10})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	b, err := f.svc.Create(context.Background(), &domain.Booking{Tour: f.tour.ID, User: f.buyer.ID, Price: 10, Paid: true})
	require.NoError(t, err)
	assert.Equal(t, base, b.CreatedAt)
}
