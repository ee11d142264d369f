package mongo

import (
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/query"
)

func TestTranslateFilter(t *testing.T) {
	params, err := url.ParseQuery("duration[gte]=5&difficulty=easy&price[lt]=1500&duration[lte]=9&page=2")
	require.NoError(t, err)
	d := query.FromParams(params)

	got := translateFilter(d.Conditions, nil)

	want := bson.D{
		{Key: "difficulty", Value: "easy"},
		{Key: "duration", Value: bson.D{{Key: "$gte", Value: 5.0}, {Key: "$lte", Value: 9.0}}},
		{Key: "price", Value: bson.D{{Key: "$lt", Value: 1500.0}}},
	}
	assert.ElementsMatch(t, want, got)
}

func TestTranslateFilter_DropsHiddenFields(t *testing.T) {
	conds := []query.Condition{
		{Field: "password", Op: query.Gt, Value: "a"},
		{Field: "password.x", Op: query.Eq, Value: "a"},
		{Field: "role", Op: query.Eq, Value: "guide"},
	}
	got := translateFilter(conds, []string{"password"})
	assert.Equal(t, bson.D{{Key: "role", Value: "guide"}}, got)
}

func TestTranslateFilter_Empty(t *testing.T) {
	got := translateFilter(nil, nil)
	assert.NotNil(t, got, "an empty filter document must still be a document")
	assert.Empty(t, got)
}

func TestCoerce(t *testing.T) {
	oid := primitive.NewObjectID()
	cases := []struct {
		in   any
		want any
	}{
		{oid.Hex(), oid},
		{oid, oid},
		{"true", true},
		{"false", false},
		{"4.7", 4.7},
		{"-3", -3.0},
		{"2021-06-19", time.Date(2021, 6, 19, 0, 0, 0, 0, time.UTC)},
		{"2021-06-19T09:00:00Z", time.Date(2021, 6, 19, 9, 0, 0, 0, time.UTC)},
		{"NaN", "NaN"},
		{"Inf", "Inf"},
		{"the forest hiker", "the forest hiker"},
		{"zzzzzzzzzzzzzzzzzzzzzzzz", "zzzzzzzzzzzzzzzzzzzzzzzz"},
	}
	for _, c := range cases {
		t.Run(fmt.Sprint(c.in), func(t *testing.T) {
			assert.Equal(t, c.want, coerce(c.in))
		})
	}
}

func TestFindOptions(t *testing.T) {
	params, err := url.ParseQuery("sort=-price,name&fields=name,price&page=3&limit=10")
	require.NoError(t, err)
	opts := findOptions(query.FromParams(params), nil)

	assert.Equal(t, bson.D{{Key: "price", Value: -1}, {Key: "name", Value: 1}}, opts.Sort)
	assert.Equal(t, bson.D{{Key: "name", Value: 1}, {Key: "price", Value: 1}}, opts.Projection)
	require.NotNil(t, opts.Skip)
	require.NotNil(t, opts.Limit)
	assert.Equal(t, int64(20), *opts.Skip)
	assert.Equal(t, int64(10), *opts.Limit)
}

func TestFindOptions_Defaults(t *testing.T) {
	opts := findOptions(query.FromParams(nil), []string{"password"})

	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}}, opts.Sort)
	assert.Equal(t, bson.D{{Key: "__v", Value: 0}}, opts.Projection)
	assert.Nil(t, opts.Skip)
	require.NotNil(t, opts.Limit)
	assert.Equal(t, int64(query.DefaultLimit), *opts.Limit)
}

func TestFindOptions_HiddenFieldsNeverProjected(t *testing.T) {
	params, err := url.ParseQuery("fields=name,password&sort=password")
	require.NoError(t, err)
	opts := findOptions(query.FromParams(params), []string{"password"})

	assert.Equal(t, bson.D{{Key: "name", Value: 1}}, opts.Projection)
}

func TestFindOptions_HiddenSortFallsBackToNewestFirst(t *testing.T) {
	newest := bson.D{{Key: "createdAt", Value: -1}}
	for _, raw := range []string{"sort=password", "sort=-password,passwordResetToken"} {
		t.Run(raw, func(t *testing.T) {
			params, err := url.ParseQuery(raw)
			require.NoError(t, err)
			opts := findOptions(query.FromParams(params), []string{"password", "passwordResetToken"})
			assert.Equal(t, newest, opts.Sort)
		})
	}

	params, err := url.ParseQuery("sort=password,-price")
	require.NoError(t, err)
	opts := findOptions(query.FromParams(params), []string{"password"})
	assert.Equal(t, bson.D{{Key: "price", Value: -1}}, opts.Sort, "visible keys are kept")

	assert.Equal(t, newest, findOptions(query.Descriptor{}, nil).Sort)
}

func TestObjectID(t *testing.T) {
	oid := primitive.NewObjectID()
	got, err := objectID("_id", oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, oid, got)

	_, err = objectID("_id", "wwwwww")
	var cast *domain.CastError
	require.ErrorAs(t, err, &cast)
	assert.Equal(t, "_id", cast.Path)
	assert.Equal(t, "wwwwww", cast.Value)
}

func TestDuplicateError(t *testing.T) {
	err := mongo.WriteException{WriteErrors: mongo.WriteErrors{{
		Code:    11000,
		Message: `E11000 duplicate key error collection: natours.users index: email_1 dup key: { email: "jonas@example.com" }`,
	}}}

	var dup *domain.DuplicateError
	require.ErrorAs(t, duplicateError(err), &dup)
	assert.Equal(t, "email", dup.Field)
	assert.Equal(t, `"jonas@example.com"`, dup.Value)

	other := errors.New("boom")
	assert.Same(t, other, duplicateError(other))
}

func TestPipelines(t *testing.T) {
	stats := statsPipeline(4.5)
	require.Len(t, stats, 3)
	assert.Equal(t, "$match", stats[0][0].Key)

	plan := monthlyPlanPipeline(2021)
	assert.Equal(t, "$unwind", plan[1][0].Key)
	window := plan[2][0].Value.(bson.D)[0].Value.(bson.D)
	assert.Equal(t, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), window[0].Value)
	assert.Equal(t, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), window[1].Value)

	near := distancesPipeline(-118.1, 34.1, 0.001)
	assert.Equal(t, "$geoNear", near[0][0].Key, "$geoNear must be the first stage")
}
