package mongo

import (
	"errors"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/query"
)

// translateFilter turns descriptor conditions into a filter document.
// Conditions on hidden fields are dropped. Range conditions on the same
// field are merged into one operator document.
func translateFilter(conds []query.Condition, hidden []string) bson.D {
	doc := bson.D{}
	ranges := make(map[string]int)
	for _, c := range conds {
		if isHidden(c.Field, hidden) {
			continue
		}
		v := coerce(c.Value)
		if c.Op == query.Eq {
			doc = append(doc, bson.E{Key: c.Field, Value: v})
			continue
		}
		i, ok := ranges[c.Field]
		if !ok {
			doc = append(doc, bson.E{Key: c.Field, Value: bson.D{}})
			i = len(doc) - 1
			ranges[c.Field] = i
		}
		doc[i].Value = append(doc[i].Value.(bson.D), bson.E{Key: "$" + string(c.Op), Value: v})
	}
	return doc
}

// findOptions maps sort, projection and pagination onto driver options.
// Sorting on hidden fields is dropped; with nothing left, results come
// newest first.
func findOptions(d query.Descriptor, hidden []string) *options.FindOptions {
	opts := options.Find()

	sort := bson.D{}
	for _, k := range d.Sort {
		if !isHidden(k.Field, hidden) {
			sort = append(sort, bson.E{Key: k.Field, Value: int(k.Direction)})
		}
	}
	if len(sort) == 0 {
		sort = append(sort, bson.E{Key: query.CreatedAtField, Value: int(query.Desc)})
	}
	opts.SetSort(sort)

	projection := bson.D{}
	if len(d.Projection.Include) > 0 {
		for _, f := range d.Projection.Include {
			if !isHidden(f, hidden) {
				projection = append(projection, bson.E{Key: f, Value: 1})
			}
		}
	} else {
		for _, f := range d.Projection.Exclude {
			projection = append(projection, bson.E{Key: f, Value: 0})
		}
	}
	if len(projection) > 0 {
		opts.SetProjection(projection)
	}

	if d.Skip > 0 {
		opts.SetSkip(int64(d.Skip))
	}
	if d.Limit > 0 {
		opts.SetLimit(int64(d.Limit))
	}
	return opts
}

func isHidden(field string, hidden []string) bool {
	root, _, _ := strings.Cut(field, ".")
	return slices.Contains(hidden, root)
}

// coerce converts query-string values into the BSON types the documents
// store. Values that are not strings are already typed.
func coerce(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if len(s) == 24 {
		if oid, err := primitive.ObjectIDFromHex(s); err == nil {
			return oid
		}
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return s
}

// objectID parses a document id, reporting a CastError for malformed input.
func objectID(path, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, &domain.CastError{Path: path, Value: id}
	}
	return oid, nil
}

var (
	dupKeyField = regexp.MustCompile(`dup key: \{ ?"?([\w.]+)"?:`)
	dupKeyValue = regexp.MustCompile(`"(?:\\.|[^"\\])*"`)
)

// duplicateError extracts the colliding field and value of an E11000 error.
func duplicateError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return err
	}
	dup := &domain.DuplicateError{}
	msg := err.Error()
	var we mongo.WriteException
	if errors.As(err, &we) && len(we.WriteErrors) > 0 {
		msg = we.WriteErrors[0].Message
	}
	if _, rest, ok := strings.Cut(msg, "dup key:"); ok {
		if m := dupKeyField.FindStringSubmatch(msg); m != nil {
			dup.Field = m[1]
		}
		dup.Value = dupKeyValue.FindString(rest)
	}
	return dup
}
