package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/ports"
	"github.com/natours/booking-api/internal/core/query"
)

// statsMinRating is the rating floor of the statistics report.
const statsMinRating = 4.5

// TourService implements ports.TourService.
type TourService struct {
	tours   ports.TourRepository
	reviews ports.ReviewRepository
	log     zerolog.Logger
	now     func() time.Time
}

func NewTourService(tours ports.TourRepository, reviews ports.ReviewRepository, log zerolog.Logger) *TourService {
	return &TourService{tours: tours, reviews: reviews, log: log, now: time.Now}
}

func (s *TourService) List(ctx context.Context, q query.Descriptor) ([]*domain.Tour, error) {
	records, err := s.tours.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	return query.Collect(records)
}

// Get returns the tour together with its reviews.
func (s *TourService) Get(ctx context.Context, id string) (*domain.Tour, error) {
	tour, err := s.tours.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	q := query.New(nil).Sort().LimitFields().Paginate().Where("tour", query.Eq, tour.ID).Descriptor()
	records, err := s.reviews.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	if tour.Reviews, err = query.Collect(records); err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	return tour, nil
}

func (s *TourService) Create(ctx context.Context, t *domain.Tour) (*domain.Tour, error) {
	if err := validateTour(t.Difficulty, t.Price, t.PriceDiscount); err != nil {
		return nil, err
	}
	t.Slug = domain.Slugify(t.Name)
	t.RatingsAverage = domain.DefaultRating
	t.RatingsQuantity = 0
	t.CreatedAt = s.now().UTC()

	created, err := s.tours.Create(ctx, t)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("tour_id", created.ID.Hex()).Str("slug", created.Slug).Msg("tour created")
	return created, nil
}

func (s *TourService) Update(ctx context.Context, id string, patch domain.TourPatch) (*domain.Tour, error) {
	if patch.Difficulty != nil {
		if err := validateTour(*patch.Difficulty, 1, 0); err != nil {
			return nil, err
		}
	}
	if err := s.validatePricing(ctx, id, patch); err != nil {
		return nil, err
	}
	if patch.Name != nil {
		slug := domain.Slugify(*patch.Name)
		patch.Slug = &slug
	}
	return s.tours.Update(ctx, id, patch)
}

// validatePricing checks the discount against the price the tour will have
// after patch. A patch carrying only one of the two is compared with the
// stored counterpart.
func (s *TourService) validatePricing(ctx context.Context, id string, patch domain.TourPatch) error {
	if patch.Price == nil && patch.PriceDiscount == nil {
		return nil
	}
	var price, discount float64
	if patch.Price == nil || patch.PriceDiscount == nil {
		current, err := s.tours.FindByID(ctx, id)
		if err != nil {
			return err
		}
		price, discount = current.Price, current.PriceDiscount
	}
	if patch.Price != nil {
		price = *patch.Price
	}
	if patch.PriceDiscount != nil {
		discount = *patch.PriceDiscount
	}
	return validateTour(domain.DifficultyEasy, price, discount)
}

func (s *TourService) Delete(ctx context.Context, id string) error {
	return s.tours.Delete(ctx, id)
}

func (s *TourService) Stats(ctx context.Context) ([]domain.TourStats, error) {
	return s.tours.Stats(ctx, statsMinRating)
}

func (s *TourService) MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlan, error) {
	if year < 1 || year > 9999 {
		return nil, domain.NewError(http.StatusBadRequest, "Please provide a valid year.")
	}
	return s.tours.MonthlyPlan(ctx, year)
}

// Within finds tours starting within distance of latlng.
func (s *TourService) Within(ctx context.Context, distance float64, latlng string, unit domain.DistanceUnit) ([]*domain.Tour, error) {
	lat, lng, err := parseLatLng(latlng)
	if err != nil {
		return nil, err
	}
	earth, ok := unit.EarthRadius()
	if !ok {
		return nil, errBadUnit
	}
	if distance <= 0 {
		return nil, domain.NewError(http.StatusBadRequest, "Please provide a positive distance.")
	}
	return s.tours.Within(ctx, lng, lat, distance/earth)
}

// Distances measures the distance from latlng to every tour start.
func (s *TourService) Distances(ctx context.Context, latlng string, unit domain.DistanceUnit) ([]domain.TourDistance, error) {
	lat, lng, err := parseLatLng(latlng)
	if err != nil {
		return nil, err
	}
	multiplier, ok := unit.MetresMultiplier()
	if !ok {
		return nil, errBadUnit
	}
	return s.tours.Distances(ctx, lng, lat, multiplier)
}

var errBadUnit = domain.NewError(http.StatusBadRequest, "Please provide a valid unit: mi (miles) or km (kilometers).")

func validateTour(d domain.Difficulty, price, discount float64) error {
	switch d {
	case domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyDifficult:
	default:
		return domain.NewError(http.StatusBadRequest, "Difficulty is either: easy, medium, difficult")
	}
	if discount >= price {
		return domain.NewError(http.StatusBadRequest, fmt.Sprintf("Discount price (%g) should be below regular price", discount))
	}
	return nil
}

// parseLatLng reads "lat,lng".
func parseLatLng(s string) (lat, lng float64, err error) {
	bad := domain.NewError(http.StatusBadRequest, "Please provide latitude and longitude in the format lat,lng.")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, bad
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, bad
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || lng < -180 || lng > 180 {
		return 0, 0, bad
	}
	return lat, lng, nil
}
