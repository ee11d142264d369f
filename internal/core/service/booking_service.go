package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/ports"
	"github.com/natours/booking-api/internal/core/query"
)

// BookingService implements ports.BookingService.
type BookingService struct {
	bookings ports.BookingRepository
	tours    ports.TourRepository
	users    ports.UserRepository
	payments ports.PaymentGateway
	currency string
	log      zerolog.Logger
	now      func() time.Time
}

func NewBookingService(
	bookings ports.BookingRepository,
	tours ports.TourRepository,
	users ports.UserRepository,
	payments ports.PaymentGateway,
	currency string,
	log zerolog.Logger,
) *BookingService {
	return &BookingService{
		bookings: bookings,
		tours:    tours,
		users:    users,
		payments: payments,
		currency: strings.ToLower(currency),
		log:      log,
		now:      time.Now,
	}
}

// CheckoutSession opens a payment session for one place on a tour.
func (s *BookingService) CheckoutSession(ctx context.Context, buyer *domain.User, in ports.CheckoutInput) (*domain.CheckoutSession, error) {
	tour, err := s.tours.FindByID(ctx, in.TourID)
	if err != nil {
		return nil, err
	}

	req := domain.CheckoutRequest{
		TourID:        tour.ID.Hex(),
		TourName:      tour.Name + " Tour",
		Description:   tour.Summary,
		AmountCents:   int64(math.Round(tour.Price * 100)),
		Currency:      s.currency,
		CustomerEmail: buyer.Email,
		SuccessURL:    in.SuccessURL,
		CancelURL:     in.CancelURL,
	}
	if tour.ImageCover != "" && in.ImageBaseURL != "" {
		req.ImageURL = strings.TrimRight(in.ImageBaseURL, "/") + "/" + tour.ImageCover
	}

	session, err := s.payments.CreateCheckoutSession(ctx, req)
	if err != nil {
		return nil, domain.Wrap(http.StatusBadGateway, "Could not create the checkout session. Try again later!", err)
	}
	s.log.Info().
		Str("session_id", session.ID).
		Str("tour_id", req.TourID).
		Str("user_id", buyer.ID.Hex()).
		Msg("checkout session created")
	return session, nil
}

// CompleteCheckout turns a verified checkout.session.completed event into a
// paid booking. Other event types, and sessions that were already booked,
// are acknowledged with a nil booking.
func (s *BookingService) CompleteCheckout(ctx context.Context, payload []byte, signature string) (*domain.Booking, error) {
	event, err := s.payments.ParseWebhook(payload, signature)
	if err != nil {
		s.log.Warn().Err(err).Msg("webhook rejected")
		return nil, domain.Wrap(http.StatusBadRequest, "Webhook error: "+err.Error(), err)
	}
	if event.Type != domain.CheckoutEventCompleted {
		s.log.Debug().Str("type", event.Type).Msg("webhook event ignored")
		return nil, nil
	}

	tourID, err := primitive.ObjectIDFromHex(event.ClientReferenceID)
	if err != nil {
		return nil, &domain.CastError{Path: "tour", Value: event.ClientReferenceID}
	}
	user, err := s.users.FindByEmail(ctx, normalizeEmail(event.CustomerEmail))
	if err != nil {
		return nil, fmt.Errorf("checkout %s: find customer: %w", event.SessionID, err)
	}

	booking, err := s.bookings.Create(ctx, &domain.Booking{
		Tour:      tourID,
		User:      user.ID,
		Price:     float64(event.AmountTotal) / 100,
		Paid:      true,
		CreatedAt: s.now().UTC(),
		SessionID: event.SessionID,
	})
	var dup *domain.DuplicateError
	if errors.As(err, &dup) {
		s.log.Info().Str("session_id", event.SessionID).Msg("checkout already booked")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkout %s: create booking: %w", event.SessionID, err)
	}
	s.log.Info().
		Str("session_id", event.SessionID).
		Str("booking_id", booking.ID.Hex()).
		Msg("booking created from checkout")
	return booking, nil
}

func (s *BookingService) List(ctx context.Context, q query.Descriptor) ([]*domain.Booking, error) {
	records, err := s.bookings.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	return query.Collect(records)
}

func (s *BookingService) Get(ctx context.Context, id string) (*domain.Booking, error) {
	return s.bookings.FindByID(ctx, id)
}

func (s *BookingService) Create(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	switch {
	case b.Tour.IsZero():
		return nil, domain.NewError(http.StatusBadRequest, "Booking must belong to a Tour!")
	case b.User.IsZero():
		return nil, domain.NewError(http.StatusBadRequest, "Booking must belong to a User!")
	case b.Price <= 0:
		return nil, domain.NewError(http.StatusBadRequest, "Booking must have a price.")
	}
	b.CreatedAt = s.now().UTC()
	return s.bookings.Create(ctx, b)
}

func (s *BookingService) Update(ctx context.Context, id string, patch domain.BookingPatch) (*domain.Booking, error) {
	if patch.Price != nil && *patch.Price <= 0 {
		return nil, domain.NewError(http.StatusBadRequest, "Booking must have a price.")
	}
	return s.bookings.Update(ctx, id, patch)
}

func (s *BookingService) Delete(ctx context.Context, id string) error {
	return s.bookings.Delete(ctx, id)
}
