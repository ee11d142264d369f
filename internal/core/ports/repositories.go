package ports

import (
	"context"
	"time"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/query"
)

// UserRepository persists principals. Inactive users are never returned.
type UserRepository interface {
	Find(ctx context.Context, q query.Descriptor) (query.Records[domain.User], error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// FindByResetToken returns the user holding an unexpired reset token hash.
	FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) (*domain.User, error)
	Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error)
	// SetPassword stores a new hash and change marker and clears any reset token.
	SetPassword(ctx context.Context, id string, hash string, changedAt time.Time) error
	SetPasswordReset(ctx context.Context, id string, tokenHash string, expires time.Time) error
	ClearPasswordReset(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// TourRepository persists tours. Secret tours are never returned.
type TourRepository interface {
	Find(ctx context.Context, q query.Descriptor) (query.Records[domain.Tour], error)
	FindByID(ctx context.Context, id string) (*domain.Tour, error)
	Create(ctx context.Context, t *domain.Tour) (*domain.Tour, error)
	Update(ctx context.Context, id string, patch domain.TourPatch) (*domain.Tour, error)
	Delete(ctx context.Context, id string) error
	SetRatings(ctx context.Context, id string, stats domain.RatingStats) error
	Stats(ctx context.Context, minRating float64) ([]domain.TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlan, error)
	// Within returns tours starting inside a sphere of radius radians around lng/lat.
	Within(ctx context.Context, lng, lat, radius float64) ([]*domain.Tour, error)
	Distances(ctx context.Context, lng, lat, multiplier float64) ([]domain.TourDistance, error)
}

// ReviewRepository persists reviews.
type ReviewRepository interface {
	Find(ctx context.Context, q query.Descriptor) (query.Records[domain.Review], error)
	FindByID(ctx context.Context, id string) (*domain.Review, error)
	Create(ctx context.Context, r *domain.Review) (*domain.Review, error)
	Update(ctx context.Context, id string, patch domain.ReviewPatch) (*domain.Review, error)
	Delete(ctx context.Context, id string) (*domain.Review, error)
	RatingStats(ctx context.Context, tourID string) (domain.RatingStats, error)
}

// BookingRepository persists bookings.
type BookingRepository interface {
	Find(ctx context.Context, q query.Descriptor) (query.Records[domain.Booking], error)
	FindByID(ctx context.Context, id string) (*domain.Booking, error)
	Create(ctx context.Context, b *domain.Booking) (*domain.Booking, error)
	Update(ctx context.Context, id string, patch domain.BookingPatch) (*domain.Booking, error)
	Delete(ctx context.Context, id string) error
}
