package ports

import (
	"context"
	"time"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/query"
)

// SignupInput carries the fields of a new account.
type SignupInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
	Role            domain.Role // honoured only by CreatePrincipal
	Photo           string
}

// ChangePasswordInput carries a new password and its confirmation.
type ChangePasswordInput struct {
	Current         string // required by UpdatePassword only
	Password        string
	PasswordConfirm string
}

// ForgotPasswordInput identifies the account and where the reset link points.
type ForgotPasswordInput struct {
	Email string
	// ResetURL is the absolute URL the token is appended to.
	ResetURL string
}

// IssuedToken is a signed credential and its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// AuthService implements sign-up, login, password flows and the credential
// checks behind the auth gate.
type AuthService interface {
	Signup(ctx context.Context, in SignupInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, error)
	ForgotPassword(ctx context.Context, in ForgotPasswordInput) error
	ResetPassword(ctx context.Context, token string, in ChangePasswordInput) (*domain.User, error)
	UpdatePassword(ctx context.Context, userID string, in ChangePasswordInput) (*domain.User, error)
	IssueToken(user *domain.User) (IssuedToken, error)
	// Authenticate verifies a raw credential and resolves its principal.
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// UserService manages accounts.
type UserService interface {
	CreatePrincipal(ctx context.Context, in SignupInput) (*domain.User, error)
	List(ctx context.Context, q query.Descriptor) ([]*domain.User, error)
	Get(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error)
	UpdateMe(ctx context.Context, me *domain.User, patch domain.UserPatch) (*domain.User, error)
	DeleteMe(ctx context.Context, me *domain.User) error
	Delete(ctx context.Context, id string) error
}

// TourService manages tours and their reports.
type TourService interface {
	List(ctx context.Context, q query.Descriptor) ([]*domain.Tour, error)
	Get(ctx context.Context, id string) (*domain.Tour, error)
	Create(ctx context.Context, t *domain.Tour) (*domain.Tour, error)
	Update(ctx context.Context, id string, patch domain.TourPatch) (*domain.Tour, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) ([]domain.TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlan, error)
	Within(ctx context.Context, distance float64, latlng string, unit domain.DistanceUnit) ([]*domain.Tour, error)
	Distances(ctx context.Context, latlng string, unit domain.DistanceUnit) ([]domain.TourDistance, error)
}

// ReviewService manages reviews and keeps tour ratings current.
type ReviewService interface {
	List(ctx context.Context, q query.Descriptor) ([]*domain.Review, error)
	Get(ctx context.Context, id string) (*domain.Review, error)
	Create(ctx context.Context, r *domain.Review) (*domain.Review, error)
	Update(ctx context.Context, id string, patch domain.ReviewPatch) (*domain.Review, error)
	Delete(ctx context.Context, id string) error
}

// CheckoutInput describes the session a principal asks for.
type CheckoutInput struct {
	TourID     string
	SuccessURL string
	CancelURL  string
	// ImageBaseURL prefixes the tour cover image.
	ImageBaseURL string
}

// BookingService manages bookings and the payment boundary.
type BookingService interface {
	CheckoutSession(ctx context.Context, buyer *domain.User, in CheckoutInput) (*domain.CheckoutSession, error)
	// CompleteCheckout trusts payload only after the gateway verified it.
	CompleteCheckout(ctx context.Context, payload []byte, signature string) (*domain.Booking, error)
	List(ctx context.Context, q query.Descriptor) ([]*domain.Booking, error)
	Get(ctx context.Context, id string) (*domain.Booking, error)
	Create(ctx context.Context, b *domain.Booking) (*domain.Booking, error)
	Update(ctx context.Context, id string, patch domain.BookingPatch) (*domain.Booking, error)
	Delete(ctx context.Context, id string) error
}
