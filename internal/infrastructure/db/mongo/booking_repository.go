package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/query"
)

const collectionBookings = "bookings"

type BookingRepository struct {
	s store[domain.Booking]
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{s: store[domain.Booking]{coll: db.Collection(collectionBookings)}}
}

func (r *BookingRepository) Find(ctx context.Context, q query.Descriptor) (query.Records[domain.Booking], error) {
	return r.s.find(ctx, q)
}

func (r *BookingRepository) FindByID(ctx context.Context, id string) (*domain.Booking, error) {
	return r.s.findByID(ctx, id)
}

func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	return r.s.insert(ctx, b)
}

func (r *BookingRepository) Update(ctx context.Context, id string, p domain.BookingPatch) (*domain.Booking, error) {
	var set setFields
	setIf(&set, "price", p.Price)
	setIf(&set, "paid", p.Paid)
	return r.s.update(ctx, id, set.update())
}

func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	_, err := r.s.delete(ctx, id)
	return err
}

// EnsureIndexes creates necessary indexes on the bookings collection.
func (r *BookingRepository) EnsureIndexes(ctx context.Context) error {
	return r.s.createIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user", Value: 1}}},
		{Keys: bson.D{{Key: "tour", Value: 1}}},
		{
			Keys:    bson.D{{Key: "sessionId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	})
}
