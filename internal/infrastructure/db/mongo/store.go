package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/query"
)

// store is the collection access shared by every repository. scope is
// merged into every read so that soft-deleted or hidden documents never
// leave the store.
type store[T any] struct {
	coll   *mongo.Collection
	scope  bson.D
	hidden []string
}

func (s *store[T]) scoped(filter bson.D) bson.D {
	out := make(bson.D, 0, len(filter)+len(s.scope))
	out = append(out, filter...)
	return append(out, s.scope...)
}

func (s *store[T]) byID(id string) (bson.D, error) {
	oid, err := objectID("_id", id)
	if err != nil {
		return nil, err
	}
	return s.scoped(bson.D{{Key: "_id", Value: oid}}), nil
}

// find returns a lazy sequence over a cursor. The cursor and its timeout are
// released once the sequence has been consumed or abandoned.
func (s *store[T]) find(ctx context.Context, d query.Descriptor) (query.Records[T], error) {
	return s.findFilter(ctx, s.scoped(translateFilter(d.Conditions, s.hidden)), findOptions(d, s.hidden))
}

func (s *store[T]) findFilter(ctx context.Context, filter bson.D, opts *options.FindOptions) (query.Records[T], error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("find %s: %w", s.coll.Name(), err)
	}

	return func(yield func(*T, error) bool) {
		defer cancel()
		defer cur.Close(ctx)
		for cur.Next(ctx) {
			var doc T
			if err := cur.Decode(&doc); err != nil {
				yield(nil, fmt.Errorf("decode %s: %w", s.coll.Name(), err))
				return
			}
			if !yield(&doc, nil) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(nil, fmt.Errorf("cursor %s: %w", s.coll.Name(), err))
		}
	}, nil
}

func (s *store[T]) findOne(ctx context.Context, filter bson.D) (*T, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc T
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find %s: %w", s.coll.Name(), err)
	}
	return &doc, nil
}

func (s *store[T]) findByID(ctx context.Context, id string) (*T, error) {
	filter, err := s.byID(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, filter)
}

// insert stores doc and reads it back, unscoped, to obtain the generated id.
func (s *store[T]) insert(ctx context.Context, doc *T) (*T, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", s.coll.Name(), duplicateError(err))
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("insert %s: unexpected id type %T", s.coll.Name(), res.InsertedID)
	}
	return s.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

// update applies an update document to the scoped document and returns the
// new version. An empty update just reads the document.
func (s *store[T]) update(ctx context.Context, id string, update bson.D) (*T, error) {
	if len(update) == 0 {
		return s.findByID(ctx, id)
	}
	filter, err := s.byID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc T
	if err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("update %s: %w", s.coll.Name(), duplicateError(err))
	}
	return &doc, nil
}

// updateOne applies update without reading the document back.
func (s *store[T]) updateOne(ctx context.Context, filter, update bson.D) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update %s: %w", s.coll.Name(), duplicateError(err))
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *store[T]) delete(ctx context.Context, id string) (*T, error) {
	filter, err := s.byID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc T
	if err := s.coll.FindOneAndDelete(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("delete %s: %w", s.coll.Name(), err)
	}
	return &doc, nil
}

func (s *store[T]) createIndexes(ctx context.Context, models []mongo.IndexModel) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := s.coll.Indexes().CreateMany(ctx, models)
	return err
}

// aggregate runs pipeline and decodes every result into R.
func aggregate[R any](ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) ([]R, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", coll.Name(), err)
	}
	out := []R{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", coll.Name(), err)
	}
	return out, nil
}

// setFields builds a $set document from non-nil patch values.
type setFields bson.D

func (s *setFields) put(key string, value any) {
	*s = append(*s, bson.E{Key: key, Value: value})
}

func (s setFields) update() bson.D {
	if len(s) == 0 {
		return nil
	}
	return bson.D{{Key: "$set", Value: bson.D(s)}}
}

func setIf[V any](s *setFields, key string, v *V) {
	if v != nil {
		s.put(key, *v)
	}
}
