package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/ports"
	"github.com/natours/booking-api/internal/core/query"
)

// ReviewService implements ports.ReviewService. Every write recomputes the
// rating summary of the reviewed tour.
type ReviewService struct {
	reviews ports.ReviewRepository
	tours   ports.TourRepository
	log     zerolog.Logger
	now     func() time.Time
}

func NewReviewService(reviews ports.ReviewRepository, tours ports.TourRepository, log zerolog.Logger) *ReviewService {
	return &ReviewService{reviews: reviews, tours: tours, log: log, now: time.Now}
}

func (s *ReviewService) List(ctx context.Context, q query.Descriptor) ([]*domain.Review, error) {
	records, err := s.reviews.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	return query.Collect(records)
}

func (s *ReviewService) Get(ctx context.Context, id string) (*domain.Review, error) {
	return s.reviews.FindByID(ctx, id)
}

func (s *ReviewService) Create(ctx context.Context, r *domain.Review) (*domain.Review, error) {
	r.Review = strings.TrimSpace(r.Review)
	if r.Review == "" {
		return nil, domain.NewError(http.StatusBadRequest, "Review can not be empty!")
	}
	if err := validateRating(r.Rating); err != nil {
		return nil, err
	}
	if r.Tour.IsZero() {
		return nil, domain.NewError(http.StatusBadRequest, "Review must belong to a tour.")
	}
	if r.User.IsZero() {
		return nil, domain.NewError(http.StatusBadRequest, "Review must belong to a user")
	}
	r.CreatedAt = s.now().UTC()

	created, err := s.reviews.Create(ctx, r)
	if err != nil {
		return nil, err
	}
	s.recompute(ctx, created.Tour)
	return created, nil
}

func (s *ReviewService) Update(ctx context.Context, id string, patch domain.ReviewPatch) (*domain.Review, error) {
	if patch.Rating != nil {
		if err := validateRating(*patch.Rating); err != nil {
			return nil, err
		}
	}
	if patch.Review != nil {
		text := strings.TrimSpace(*patch.Review)
		if text == "" {
			return nil, domain.NewError(http.StatusBadRequest, "Review can not be empty!")
		}
		patch.Review = &text
	}

	updated, err := s.reviews.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.recompute(ctx, updated.Tour)
	return updated, nil
}

func (s *ReviewService) Delete(ctx context.Context, id string) error {
	deleted, err := s.reviews.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.recompute(ctx, deleted.Tour)
	return nil
}

// recompute refreshes the tour's rating summary. The review write has already
// happened, so a failure here is logged rather than returned.
func (s *ReviewService) recompute(ctx context.Context, tour primitive.ObjectID) {
	if err := s.refreshRatings(ctx, tour.Hex()); err != nil {
		s.log.Error().Err(err).Str("tour_id", tour.Hex()).Msg("failed to recompute tour ratings")
	}
}

func (s *ReviewService) refreshRatings(ctx context.Context, tourID string) error {
	stats, err := s.reviews.RatingStats(ctx, tourID)
	if err != nil {
		return fmt.Errorf("rating stats: %w", err)
	}
	if stats.Quantity == 0 {
		stats = domain.RatingStats{Quantity: 0, Average: domain.DefaultRating}
	}
	stats.Average = domain.RoundRating(stats.Average)
	if err := s.tours.SetRatings(ctx, tourID, stats); err != nil && !domain.IsNotFound(err) {
		return fmt.Errorf("set ratings: %w", err)
	}
	return nil
}

func validateRating(r float64) error {
	if r < 1 || r > 5 {
		return domain.NewError(http.StatusBadRequest, "Rating must be between 1 and 5")
	}
	return nil
}
