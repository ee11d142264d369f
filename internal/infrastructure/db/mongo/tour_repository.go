package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/query"
)

const collectionTours = "tours"

// notSecret keeps secret tours out of every read and report.
var notSecret = bson.D{{Key: "secretTour", Value: bson.D{{Key: "$ne", Value: true}}}}

// TourRepository implements ports.TourRepository.
type TourRepository struct {
	s store[domain.Tour]
}

func NewTourRepository(db *mongo.Database) *TourRepository {
	return &TourRepository{s: store[domain.Tour]{
		coll:  db.Collection(collectionTours),
		scope: notSecret,
	}}
}

func (r *TourRepository) Find(ctx context.Context, q query.Descriptor) (query.Records[domain.Tour], error) {
	return r.s.find(ctx, q)
}

func (r *TourRepository) FindByID(ctx context.Context, id string) (*domain.Tour, error) {
	return r.s.findByID(ctx, id)
}

func (r *TourRepository) Create(ctx context.Context, t *domain.Tour) (*domain.Tour, error) {
	return r.s.insert(ctx, t)
}

func (r *TourRepository) Update(ctx context.Context, id string, p domain.TourPatch) (*domain.Tour, error) {
	var set setFields
	setIf(&set, "name", p.Name)
	setIf(&set, "slug", p.Slug)
	setIf(&set, "duration", p.Duration)
	setIf(&set, "maxGroupSize", p.MaxGroupSize)
	setIf(&set, "difficulty", p.Difficulty)
	setIf(&set, "price", p.Price)
	setIf(&set, "priceDiscount", p.PriceDiscount)
	setIf(&set, "summary", p.Summary)
	setIf(&set, "description", p.Description)
	setIf(&set, "imageCover", p.ImageCover)
	setIf(&set, "secretTour", p.SecretTour)
	if p.Images != nil {
		set.put("images", p.Images)
	}
	if p.StartDates != nil {
		set.put("startDates", p.StartDates)
	}
	if p.Guides != nil {
		set.put("guides", p.Guides)
	}
	return r.s.update(ctx, id, set.update())
}

func (r *TourRepository) Delete(ctx context.Context, id string) error {
	_, err := r.s.delete(ctx, id)
	return err
}

// SetRatings stores a recomputed rating summary. Secret tours are included.
func (r *TourRepository) SetRatings(ctx context.Context, id string, stats domain.RatingStats) error {
	oid, err := objectID("_id", id)
	if err != nil {
		return err
	}
	return r.s.updateOne(ctx, bson.D{{Key: "_id", Value: oid}}, bson.D{{Key: "$set", Value: bson.D{
		{Key: "ratingsQuantity", Value: stats.Quantity},
		{Key: "ratingsAverage", Value: stats.Average},
	}}})
}

func (r *TourRepository) Stats(ctx context.Context, minRating float64) ([]domain.TourStats, error) {
	return aggregate[domain.TourStats](ctx, r.s.coll, statsPipeline(minRating))
}

func (r *TourRepository) MonthlyPlan(ctx context.Context, year int) ([]domain.MonthlyPlan, error) {
	return aggregate[domain.MonthlyPlan](ctx, r.s.coll, monthlyPlanPipeline(year))
}

func (r *TourRepository) Within(ctx context.Context, lng, lat, radius float64) ([]*domain.Tour, error) {
	filter := r.s.scoped(bson.D{{Key: "startLocation", Value: bson.D{{Key: "$geoWithin", Value: bson.D{
		{Key: "$centerSphere", Value: bson.A{bson.A{lng, lat}, radius}},
	}}}}})
	records, err := r.s.findFilter(ctx, filter, options.Find())
	if err != nil {
		return nil, err
	}
	return query.Collect(records)
}

func (r *TourRepository) Distances(ctx context.Context, lng, lat, multiplier float64) ([]domain.TourDistance, error) {
	return aggregate[domain.TourDistance](ctx, r.s.coll, distancesPipeline(lng, lat, multiplier))
}

func statsPipeline(minRating float64) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: append(bson.D{{Key: "ratingsAverage", Value: bson.D{{Key: "$gte", Value: minRating}}}}, notSecret...)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$toUpper", Value: "$difficulty"}}},
			{Key: "numTours", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "numRatings", Value: bson.D{{Key: "$sum", Value: "$ratingsQuantity"}}},
			{Key: "avgRating", Value: bson.D{{Key: "$avg", Value: "$ratingsAverage"}}},
			{Key: "avgPrice", Value: bson.D{{Key: "$avg", Value: "$price"}}},
			{Key: "minPrice", Value: bson.D{{Key: "$min", Value: "$price"}}},
			{Key: "maxPrice", Value: bson.D{{Key: "$max", Value: "$price"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "avgPrice", Value: 1}}}},
	}
}

func monthlyPlanPipeline(year int) mongo.Pipeline {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	return mongo.Pipeline{
		{{Key: "$match", Value: notSecret}},
		{{Key: "$unwind", Value: "$startDates"}},
		{{Key: "$match", Value: bson.D{{Key: "startDates", Value: bson.D{
			{Key: "$gte", Value: from},
			{Key: "$lt", Value: to},
		}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$month", Value: "$startDates"}}},
			{Key: "numTourStarts", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "tours", Value: bson.D{{Key: "$push", Value: "$name"}}},
		}}},
		{{Key: "$addFields", Value: bson.D{{Key: "month", Value: "$_id"}}}},
		{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}}}},
		{{Key: "$sort", Value: bson.D{{Key: "numTourStarts", Value: -1}, {Key: "month", Value: 1}}}},
		{{Key: "$limit", Value: 12}},
	}
}

// distancesPipeline must start with $geoNear, so the secret-tour scope goes
// into its query option.
func distancesPipeline(lng, lat, multiplier float64) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: bson.D{
				{Key: "type", Value: "Point"},
				{Key: "coordinates", Value: bson.A{lng, lat}},
			}},
			{Key: "key", Value: "startLocation"},
			{Key: "distanceField", Value: "distance"},
			{Key: "distanceMultiplier", Value: multiplier},
			{Key: "query", Value: notSecret},
		}}},
		{{Key: "$project", Value: bson.D{{Key: "distance", Value: 1}, {Key: "name", Value: 1}}}},
	}
}

// EnsureIndexes creates necessary indexes on the tours collection.
func (r *TourRepository) EnsureIndexes(ctx context.Context) error {
	if err := r.s.createIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "price", Value: 1}, {Key: "ratingsAverage", Value: -1}}},
		{Keys: bson.D{{Key: "slug", Value: 1}}},
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "startLocation", Value: "2dsphere"}}},
	}); err != nil {
		return fmt.Errorf("tours: %w", err)
	}
	return nil
}
