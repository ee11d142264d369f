package ports

import (
	"context"
	"io"
	"time"

	"github.com/natours/booking-api/internal/core/domain"
)

// Mailer delivers e-mail through an external transport.
type Mailer interface {
	Send(ctx context.Context, msg domain.Email) error
}

// PaymentGateway is the opaque payment provider.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutSession, error)
	// ParseWebhook verifies the signature header against the shared secret
	// and decodes the event. Unverified payloads are never decoded.
	ParseWebhook(payload []byte, signature string) (*domain.CheckoutEvent, error)
}

// ImageStore keeps processed images under a file name.
type ImageStore interface {
	Save(ctx context.Context, name string, contentType string, r io.Reader) error
	URL(name string) string
}

// Quota is the outcome of one rate-limit check.
type Quota struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// RateLimiter counts requests per key within a window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (Quota, error)
}

// ImageProcessor resizes uploads and stores them, returning the stored names.
type ImageProcessor interface {
	UserPhoto(ctx context.Context, userID string, src io.Reader) (string, error)
	TourImages(ctx context.Context, tourID string, cover io.Reader, images []io.Reader) (string, []string, error)
}
