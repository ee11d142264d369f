package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/query"
)

func lookup[T any](docs map[primitive.ObjectID]*T, path, id string) (*T, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, &domain.CastError{Path: path, Value: id}
	}
	doc, ok := docs[oid]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *doc
	return &clone, nil
}

func records[T any](docs map[primitive.ObjectID]*T, keep func(*T) bool) query.Records[T] {
	return func(yield func(*T, error) bool) {
		for _, d := range docs {
			if keep != nil && !keep(d) {
				continue
			}
			clone := *d
			if !yield(&clone, nil) {
				return
			}
		}
	}
}

type stubUserRepo struct {
	users map[primitive.ObjectID]*domain.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[primitive.ObjectID]*domain.User)}
}

func (r *stubUserRepo) get(id string) *domain.User {
	oid, _ := primitive.ObjectIDFromHex(id)
	return r.users[oid]
}

func (r *stubUserRepo) Find(_ context.Context, _ query.Descriptor) (query.Records[domain.User], error) {
	return records(r.users, func(u *domain.User) bool { return u.Active }), nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	u, err := lookup(r.users, "_id", id)
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email && u.Active {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubUserRepo) FindByResetToken(_ context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	for _, u := range r.users {
		if u.PasswordResetToken == tokenHash && u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubUserRepo) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return nil, errors.New("duplicate email")
		}
	}
	clone := *u
	clone.ID = primitive.NewObjectID()
	r.users[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *stubUserRepo) Update(_ context.Context, id string, p domain.UserPatch) (*domain.User, error) {
	u := r.get(id)
	if u == nil {
		return nil, domain.ErrNotFound
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Photo != nil {
		u.Photo = *p.Photo
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	clone := *u
	return &clone, nil
}

func (r *stubUserRepo) SetPassword(_ context.Context, id, hash string, changedAt time.Time) error {
	u := r.get(id)
	if u == nil {
		return domain.ErrNotFound
	}
	u.PasswordHash = hash
	u.PasswordChangedAt = &changedAt
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	return nil
}

func (r *stubUserRepo) SetPasswordReset(_ context.Context, id, tokenHash string, expires time.Time) error {
	u := r.get(id)
	if u == nil {
		return domain.ErrNotFound
	}
	u.PasswordResetToken = tokenHash
	u.PasswordResetExpires = &expires
	return nil
}

func (r *stubUserRepo) ClearPasswordReset(_ context.Context, id string) error {
	u := r.get(id)
	if u == nil {
		return domain.ErrNotFound
	}
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	return nil
}

func (r *stubUserRepo) Deactivate(_ context.Context, id string) error {
	u := r.get(id)
	if u == nil {
		return domain.ErrNotFound
	}
	u.Active = false
	return nil
}

func (r *stubUserRepo) Delete(_ context.Context, id string) error {
	if r.get(id) == nil {
		return domain.ErrNotFound
	}
	oid, _ := primitive.ObjectIDFromHex(id)
	delete(r.users, oid)
	return nil
}

type stubTourRepo struct {
	tours   map[primitive.ObjectID]*domain.Tour
	ratings map[string]domain.RatingStats

	lastWithin    [3]float64
	lastDistances [3]float64
}

func newStubTourRepo(tours ...*domain.Tour) *stubTourRepo {
	r := &stubTourRepo{
		tours:   make(map[primitive.ObjectID]*domain.Tour),
		ratings: make(map[string]domain.RatingStats),
	}
	for _, t := range tours {
		if t.ID.IsZero() {
			t.ID = primitive.NewObjectID()
		}
		r.tours[t.ID] = t
	}
	return r
}

func (r *stubTourRepo) Find(_ context.Context, _ query.Descriptor) (query.Records[domain.Tour], error) {
	return records(r.tours, nil), nil
}

func (r *stubTourRepo) FindByID(_ context.Context, id string) (*domain.Tour, error) {
	return lookup(r.tours, "_id", id)
}

func (r *stubTourRepo) Create(_ context.Context, t *domain.Tour) (*domain.Tour, error) {
	clone := *t
	clone.ID = primitive.NewObjectID()
	r.tours[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *stubTourRepo) Update(_ context.Context, id string, p domain.TourPatch) (*domain.Tour, error) {
	t, err := lookup(r.tours, "_id", id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Slug != nil {
		t.Slug = *p.Slug
	}
	if p.Price != nil {
		t.Price = *p.Price
	}
	if p.PriceDiscount != nil {
		t.PriceDiscount = *p.PriceDiscount
	}
	r.tours[t.ID] = t
	return t, nil
}

func (r *stubTourRepo) Delete(_ context.Context, id string) error {
	t, err := lookup(r.tours, "_id", id)
	if err != nil {
		return err
	}
	delete(r.tours, t.ID)
	return nil
}

func (r *stubTourRepo) SetRatings(_ context.Context, id string, stats domain.RatingStats) error {
	r.ratings[id] = stats
	return nil
}

func (r *stubTourRepo) Stats(context.Context, float64) ([]domain.TourStats, error) {
	return []domain.TourStats{{Difficulty: "EASY", NumTours: 1}}, nil
}

func (r *stubTourRepo) MonthlyPlan(_ context.Context, year int) ([]domain.MonthlyPlan, error) {
	return []domain.MonthlyPlan{{Month: 1, NumTourStarts: year % 10}}, nil
}

func (r *stubTourRepo) Within(_ context.Context, lng, lat, radius float64) ([]*domain.Tour, error) {
	r.lastWithin = [3]float64{lng, lat, radius}
	return nil, nil
}

func (r *stubTourRepo) Distances(_ context.Context, lng, lat, multiplier float64) ([]domain.TourDistance, error) {
	r.lastDistances = [3]float64{lng, lat, multiplier}
	return nil, nil
}

type stubReviewRepo struct {
	reviews map[primitive.ObjectID]*domain.Review
	lastQ   query.Descriptor
}

func newStubReviewRepo() *stubReviewRepo {
	return &stubReviewRepo{reviews: make(map[primitive.ObjectID]*domain.Review)}
}

func (r *stubReviewRepo) Find(_ context.Context, q query.Descriptor) (query.Records[domain.Review], error) {
	r.lastQ = q
	var tour primitive.ObjectID
	for _, c := range q.Conditions {
		if c.Field == "tour" {
			tour, _ = c.Value.(primitive.ObjectID)
		}
	}
	return records(r.reviews, func(rv *domain.Review) bool { return tour.IsZero() || rv.Tour == tour }), nil
}

func (r *stubReviewRepo) FindByID(_ context.Context, id string) (*domain.Review, error) {
	return lookup(r.reviews, "_id", id)
}

func (r *stubReviewRepo) Create(_ context.Context, rv *domain.Review) (*domain.Review, error) {
	clone := *rv
	clone.ID = primitive.NewObjectID()
	r.reviews[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *stubReviewRepo) Update(_ context.Context, id string, p domain.ReviewPatch) (*domain.Review, error) {
	rv, err := lookup(r.reviews, "_id", id)
	if err != nil {
		return nil, err
	}
	if p.Review != nil {
		rv.Review = *p.Review
	}
	if p.Rating != nil {
		rv.Rating = *p.Rating
	}
	r.reviews[rv.ID] = rv
	return rv, nil
}

func (r *stubReviewRepo) Delete(_ context.Context, id string) (*domain.Review, error) {
	rv, err := lookup(r.reviews, "_id", id)
	if err != nil {
		return nil, err
	}
	delete(r.reviews, rv.ID)
	return rv, nil
}

func (r *stubReviewRepo) RatingStats(_ context.Context, tourID string) (domain.RatingStats, error) {
	var stats domain.RatingStats
	var sum float64
	for _, rv := range r.reviews {
		if rv.Tour.Hex() == tourID {
			stats.Quantity++
			sum += rv.Rating
		}
	}
	if stats.Quantity > 0 {
		stats.Average = sum / float64(stats.Quantity)
	}
	return stats, nil
}

type stubBookingRepo struct {
	bookings map[primitive.ObjectID]*domain.Booking
}

func newStubBookingRepo() *stubBookingRepo {
	return &stubBookingRepo{bookings: make(map[primitive.ObjectID]*domain.Booking)}
}

func (r *stubBookingRepo) Find(_ context.Context, _ query.Descriptor) (query.Records[domain.Booking], error) {
	return records(r.bookings, nil), nil
}

func (r *stubBookingRepo) FindByID(_ context.Context, id string) (*domain.Booking, error) {
	return lookup(r.bookings, "_id", id)
}

func (r *stubBookingRepo) Create(_ context.Context, b *domain.Booking) (*domain.Booking, error) {
	if b.SessionID != "" {
		for _, existing := range r.bookings {
			if existing.SessionID == b.SessionID {
				return nil, fmt.Errorf("insert bookings: %w", &domain.DuplicateError{Field: "sessionId", Value: b.SessionID})
			}
		}
	}
	clone := *b
	clone.ID = primitive.NewObjectID()
	r.bookings[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (r *stubBookingRepo) Update(_ context.Context, id string, p domain.BookingPatch) (*domain.Booking, error) {
	b, err := lookup(r.bookings, "_id", id)
	if err != nil {
		return nil, err
	}
	if p.Price != nil {
		b.Price = *p.Price
	}
	if p.Paid != nil {
		b.Paid = *p.Paid
	}
	r.bookings[b.ID] = b
	return b, nil
}

func (r *stubBookingRepo) Delete(_ context.Context, id string) error {
	b, err := lookup(r.bookings, "_id", id)
	if err != nil {
		return err
	}
	delete(r.bookings, b.ID)
	return nil
}

type stubMailer struct {
	err  error
	sent []domain.Email
}

func (m *stubMailer) Send(_ context.Context, msg domain.Email) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type stubGateway struct {
	session  *domain.CheckoutSession
	event    *domain.CheckoutEvent
	parseErr error
	lastReq  domain.CheckoutRequest
}

func (g *stubGateway) CreateCheckoutSession(_ context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error) {
	g.lastReq = req
	return g.session, nil
}

func (g *stubGateway) ParseWebhook(_ []byte, _ string) (*domain.CheckoutEvent, error) {
	if g.parseErr != nil {
		return nil, g.parseErr
	}
	return g.event, nil
}
