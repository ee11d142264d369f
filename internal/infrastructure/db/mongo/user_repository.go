package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/query"
)

const collectionUsers = "users"

// UserRepository implements ports.UserRepository. Deactivated users are out
// of scope for every read.
type UserRepository struct {
	s store[domain.User]
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{s: store[domain.User]{
		coll:   db.Collection(collectionUsers),
		scope:  bson.D{{Key: "active", Value: bson.D{{Key: "$ne", Value: false}}}},
		hidden: []string{"password", "passwordResetToken", "passwordResetExpires", "active"},
	}}
}

func (r *UserRepository) Find(ctx context.Context, q query.Descriptor) (query.Records[domain.User], error) {
	return r.s.find(ctx, q)
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.s.findByID(ctx, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.s.findOne(ctx, r.s.scoped(bson.D{{Key: "email", Value: email}}))
}

func (r *UserRepository) FindByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	return r.s.findOne(ctx, r.s.scoped(bson.D{
		{Key: "passwordResetToken", Value: tokenHash},
		{Key: "passwordResetExpires", Value: bson.D{{Key: "$gt", Value: now.UTC()}}},
	}))
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	return r.s.insert(ctx, u)
}

func (r *UserRepository) Update(ctx context.Context, id string, p domain.UserPatch) (*domain.User, error) {
	var set setFields
	setIf(&set, "name", p.Name)
	setIf(&set, "email", p.Email)
	setIf(&set, "photo", p.Photo)
	setIf(&set, "role", p.Role)
	return r.s.update(ctx, id, set.update())
}

func (r *UserRepository) SetPassword(ctx context.Context, id string, hash string, changedAt time.Time) error {
	filter, err := r.s.byID(id)
	if err != nil {
		return err
	}
	return r.s.updateOne(ctx, filter, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "password", Value: hash},
			{Key: "passwordChangedAt", Value: changedAt.UTC()},
		}},
		{Key: "$unset", Value: resetFields},
	})
}

func (r *UserRepository) SetPasswordReset(ctx context.Context, id string, tokenHash string, expires time.Time) error {
	filter, err := r.s.byID(id)
	if err != nil {
		return err
	}
	return r.s.updateOne(ctx, filter, bson.D{{Key: "$set", Value: bson.D{
		{Key: "passwordResetToken", Value: tokenHash},
		{Key: "passwordResetExpires", Value: expires.UTC()},
	}}})
}

func (r *UserRepository) ClearPasswordReset(ctx context.Context, id string) error {
	filter, err := r.s.byID(id)
	if err != nil {
		return err
	}
	return r.s.updateOne(ctx, filter, bson.D{{Key: "$unset", Value: resetFields}})
}

func (r *UserRepository) Deactivate(ctx context.Context, id string) error {
	filter, err := r.s.byID(id)
	if err != nil {
		return err
	}
	return r.s.updateOne(ctx, filter, bson.D{{Key: "$set", Value: bson.D{{Key: "active", Value: false}}}})
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	_, err := r.s.delete(ctx, id)
	return err
}

var resetFields = bson.D{
	{Key: "passwordResetToken", Value: ""},
	{Key: "passwordResetExpires", Value: ""},
}

// EnsureIndexes creates necessary indexes on the users collection.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	return r.s.createIndexes(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "passwordResetToken", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
}
