package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/query"
)

const collectionReviews = "reviews"

// ReviewRepository implements ports.ReviewRepository.
type ReviewRepository struct {
	s store[domain.Review]
}

func NewReviewRepository(db *mongo.Database) *ReviewRepository {
	return &ReviewRepository{s: store[domain.Review]{coll: db.Collection(collectionReviews)}}
}

func (r *ReviewRepository) Find(ctx context.Context, q query.Descriptor) (query.Records[domain.Review], error) {
	return r.s.find(ctx, q)
}

func (r *ReviewRepository) FindByID(ctx context.Context, id string) (*domain.Review, error) {
	return r.s.findByID(ctx, id)
}

func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) (*domain.Review, error) {
	return r.s.insert(ctx, rv)
}

func (r *ReviewRepository) Update(ctx context.Context, id string, p domain.ReviewPatch) (*domain.Review, error) {
	var set setFields
	setIf(&set, "review", p.Review)
	setIf(&set, "rating", p.Rating)
	return r.s.update(ctx, id, set.update())
}

// Delete removes the review and returns it so the caller can refresh the
// tour it belonged to.
func (r *ReviewRepository) Delete(ctx context.Context, id string) (*domain.Review, error) {
	return r.s.delete(ctx, id)
}

func (r *ReviewRepository) RatingStats(ctx context.Context, tourID string) (domain.RatingStats, error) {
	oid, err := objectID("tour", tourID)
	if err != nil {
		return domain.RatingStats{}, err
	}
	stats, err := aggregate[domain.RatingStats](ctx, r.s.coll, ratingStatsPipeline(oid))
	if err != nil || len(stats) == 0 {
		return domain.RatingStats{}, err
	}
	return stats[0], nil
}

func ratingStatsPipeline(tour any) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "tour", Value: tour}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$tour"},
			{Key: "nRating", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avgRating", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
		}}},
	}
}

// EnsureIndexes creates necessary indexes on the reviews collection. A user
// reviews a tour at most once.
func (r *ReviewRepository) EnsureIndexes(ctx context.Context) error {
	return r.s.createIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tour", Value: 1}, {Key: "user", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user", Value: 1}}},
	})
}
