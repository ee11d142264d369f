package domain

import (
	"math"
	"strings"
	"time"
	"unicode"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Difficulty grades a tour.
type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyMedium    Difficulty = "medium"
	DifficultyDifficult Difficulty = "difficult"
)

// DefaultRating is the average a tour shows before anyone reviews it.
const DefaultRating = 4.5

// Location is a GeoJSON point with a human description.
type Location struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"` // [lng, lat]
	Address     string    `json:"address,omitempty" bson:"address,omitempty"`
	Description string    `json:"description,omitempty" bson:"description,omitempty"`
	Day         int       `json:"day,omitempty" bson:"day,omitempty"`
}

// Tour is a bookable trip.
type Tour struct {
	ID              primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	Name            string               `json:"name,omitempty" bson:"name"`
	Slug            string               `json:"slug,omitempty" bson:"slug"`
	Duration        int                  `json:"duration,omitempty" bson:"duration"`
	MaxGroupSize    int                  `json:"maxGroupSize,omitempty" bson:"maxGroupSize"`
	Difficulty      Difficulty           `json:"difficulty,omitempty" bson:"difficulty"`
	RatingsAverage  float64              `json:"ratingsAverage,omitempty" bson:"ratingsAverage"`
	RatingsQuantity int                  `json:"ratingsQuantity" bson:"ratingsQuantity"`
	Price           float64              `json:"price,omitempty" bson:"price"`
	PriceDiscount   float64              `json:"priceDiscount,omitempty" bson:"priceDiscount,omitempty"`
	Summary         string               `json:"summary,omitempty" bson:"summary"`
	Description     string               `json:"description,omitempty" bson:"description,omitempty"`
	ImageCover      string               `json:"imageCover,omitempty" bson:"imageCover"`
	Images          []string             `json:"images,omitempty" bson:"images,omitempty"`
	StartDates      []time.Time          `json:"startDates,omitempty" bson:"startDates,omitempty"`
	SecretTour      bool                 `json:"secretTour,omitempty" bson:"secretTour"`
	StartLocation   *Location            `json:"startLocation,omitempty" bson:"startLocation,omitempty"`
	Locations       []Location           `json:"locations,omitempty" bson:"locations,omitempty"`
	Guides          []primitive.ObjectID `json:"guides,omitempty" bson:"guides,omitempty"`
	CreatedAt       time.Time            `json:"createdAt,omitzero" bson:"createdAt"`
	Version         int                  `json:"-" bson:"__v"`

	// Reviews is filled only when a single tour is read.
	Reviews []*Review `json:"reviews,omitempty" bson:"-"`
}

// DurationWeeks is the tour length in weeks.
func (t *Tour) DurationWeeks() float64 {
	return float64(t.Duration) / 7
}

// TourPatch carries the fields a tour update may touch. Nil means unchanged.
type TourPatch struct {
	Name          *string
	Slug          *string
	Duration      *int
	MaxGroupSize  *int
	Difficulty    *Difficulty
	Price         *float64
	PriceDiscount *float64
	Summary       *string
	Description   *string
	ImageCover    *string
	Images        []string
	StartDates    []time.Time
	SecretTour    *bool
	Guides        []primitive.ObjectID
}

// TourStats is one difficulty bucket of the tour statistics report.
type TourStats struct {
	Difficulty string  `json:"_id" bson:"_id"`
	NumTours   int     `json:"numTours" bson:"numTours"`
	NumRatings int     `json:"numRatings" bson:"numRatings"`
	AvgRating  float64 `json:"avgRating" bson:"avgRating"`
	AvgPrice   float64 `json:"avgPrice" bson:"avgPrice"`
	MinPrice   float64 `json:"minPrice" bson:"minPrice"`
	MaxPrice   float64 `json:"maxPrice" bson:"maxPrice"`
}

// MonthlyPlan counts tour starts within one calendar month.
type MonthlyPlan struct {
	Month         int      `json:"month" bson:"month"`
	NumTourStarts int      `json:"numTourStarts" bson:"numTourStarts"`
	Tours         []string `json:"tours" bson:"tours"`
}

// TourDistance is the distance from a reference point to a tour start.
type TourDistance struct {
	ID       primitive.ObjectID `json:"_id" bson:"_id"`
	Name     string             `json:"name" bson:"name"`
	Distance float64            `json:"distance" bson:"distance"`
}

// DistanceUnit selects miles or kilometres for geo queries.
type DistanceUnit string

const (
	UnitMiles      DistanceUnit = "mi"
	UnitKilometres DistanceUnit = "km"
)

// EarthRadius returns the earth radius expressed in the unit.
func (u DistanceUnit) EarthRadius() (float64, bool) {
	switch u {
	case UnitMiles:
		return 3963.2, true
	case UnitKilometres:
		return 6378.1, true
	}
	return 0, false
}

// MetresMultiplier converts metres into the unit.
func (u DistanceUnit) MetresMultiplier() (float64, bool) {
	switch u {
	case UnitMiles:
		return 0.000621371, true
	case UnitKilometres:
		return 0.001, true
	}
	return 0, false
}

// RoundRating rounds an average rating to one decimal.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

// Slugify lower-cases s and joins its alphanumeric runs with hyphens.
func Slugify(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingDash = false
			continue
		}
		pendingDash = true
	}
	return b.String()
}
