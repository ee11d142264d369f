package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/query"
)

func TestTourHandler_List_BuildsDescriptor(t *testing.T) {
	e := newEcho()
	var got query.Descriptor
	svc := &stubTourService{
		listFn: func(_ context.Context, q query.Descriptor) ([]*domain.Tour, error) {
			got = q
			return []*domain.Tour{{Name: "The Forest Hiker"}}, nil
		},
	}
	h := NewTourHandler(svc, &stubImages{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tours?difficulty=easy&price[lt]=1500&sort=price&page=2&limit=3", nil)
	require.NoError(t, h.List(e.NewContext(req, rec)))

	assert.ElementsMatch(t, []query.Condition{
		{Field: "difficulty", Op: query.Eq, Value: "easy"},
		{Field: "price", Op: query.Lt, Value: "1500"},
	}, got.Conditions)
	assert.Equal(t, []query.SortKey{{Field: "price", Direction: query.Asc}}, got.Sort)
	assert.Equal(t, 3, got.Skip)
	assert.Equal(t, 3, got.Limit)

	var body struct {
		Status  string `json:"status"`
		Results int    `json:"results"`
		Data    struct {
			Data []domain.Tour `json:"data"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, 1, body.Results)
	assert.Equal(t, "The Forest Hiker", body.Data.Data[0].Name)
}

func TestTourHandler_List_EmptyIsArray(t *testing.T) {
	e := newEcho()
	svc := &stubTourService{
		listFn: func(context.Context, query.Descriptor) ([]*domain.Tour, error) { return nil, nil },
	}
	h := NewTourHandler(svc, &stubImages{})

	rec := httptest.NewRecorder()
	require.NoError(t, h.List(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))
	assert.JSONEq(t, `{"status":"success","results":0,"data":{"data":[]}}`, rec.Body.String())
}

func TestTourHandler_TopCheapest_OverridesClientParams(t *testing.T) {
	e := newEcho()
	var got query.Descriptor
	svc := &stubTourService{
		listFn: func(_ context.Context, q query.Descriptor) ([]*domain.Tour, error) {
			got = q
			return nil, nil
		},
	}
	h := NewTourHandler(svc, &stubImages{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tours/top-5-cheapest?limit=50&difficulty=easy", nil)
	require.NoError(t, h.TopCheapest(e.NewContext(req, httptest.NewRecorder())))

	assert.Equal(t, 5, got.Limit)
	assert.Equal(t, []query.SortKey{
		{Field: "ratingsAverage", Direction: query.Desc},
		{Field: "price", Direction: query.Asc},
	}, got.Sort)
	assert.Equal(t, []string{"name", "price", "ratingsAverage", "summary", "difficulty"}, got.Projection.Include)
	assert.Equal(t, []query.Condition{{Field: "difficulty", Op: query.Eq, Value: "easy"}}, got.Conditions)
}

func TestTourHandler_Create_Validation(t *testing.T) {
	e := newEcho()
	h := NewTourHandler(&stubTourService{}, &stubImages{})

	req := jsonRequest(http.MethodPost, "/", `{"name":"Short","duration":5,"maxGroupSize":10,"difficulty":"extreme","price":100,"summary":"s","imageCover":"c.jpg"}`)
	err := h.Create(e.NewContext(req, httptest.NewRecorder()))

	var ve validator.ValidationErrors
	require.ErrorAs(t, err, &ve)
	msgs := ValidationMessages(ve)
	assert.Contains(t, msgs, "name must have at least 10 characters")
	assert.Contains(t, msgs, "difficulty is either: easy, medium, difficult")
}

func TestTourHandler_Create(t *testing.T) {
	e := newEcho()
	svc := &stubTourService{
		createFn: func(_ context.Context, tour *domain.Tour) (*domain.Tour, error) {
			tour.ID = primitive.NewObjectID()
			return tour, nil
		},
	}
	h := NewTourHandler(svc, &stubImages{})

	rec := httptest.NewRecorder()
	req := jsonRequest(http.MethodPost, "/", `{"name":"The Sea Explorer","duration":7,"maxGroupSize":15,"difficulty":"medium","price":497,"priceDiscount":0,"summary":"<b>Sea</b> views","imageCover":"tour-2-cover.jpg"}`)
	require.NoError(t, h.Create(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"summary":"Sea views"`)
}

func TestTourHandler_Update_JSON(t *testing.T) {
	e := newEcho()
	id := primitive.NewObjectID()
	svc := &stubTourService{
		updateFn: func(_ context.Context, gotID string, patch domain.TourPatch) (*domain.Tour, error) {
			assert.Equal(t, id.Hex(), gotID)
			require.NotNil(t, patch.Price)
			assert.Equal(t, 997.0, *patch.Price)
			assert.Nil(t, patch.Name)
			return &domain.Tour{ID: id, Price: *patch.Price}, nil
		},
	}
	h := NewTourHandler(svc, &stubImages{})

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPatch, "/", `{"price":997}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(id.Hex())
	require.NoError(t, h.Update(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTourHandler_Update_Images(t *testing.T) {
	e := newEcho()
	id := primitive.NewObjectID()
	images := &stubImages{
		tourImagesFn: func(_ context.Context, tourID string, cover io.Reader, imgs []io.Reader) (string, []string, error) {
			assert.Equal(t, id.Hex(), tourID)
			require.NotNil(t, cover)
			require.Len(t, imgs, 2)
			return "tour-cover.jpeg", []string{"tour-1.jpeg", "tour-2.jpeg"}, nil
		},
	}
	svc := &stubTourService{
		updateFn: func(_ context.Context, _ string, patch domain.TourPatch) (*domain.Tour, error) {
			require.NotNil(t, patch.ImageCover)
			assert.Equal(t, "tour-cover.jpeg", *patch.ImageCover)
			assert.Equal(t, []string{"tour-1.jpeg", "tour-2.jpeg"}, patch.Images)
			return &domain.Tour{ID: id}, nil
		},
	}
	h := NewTourHandler(svc, images)

	req := multipartRequest(t, http.MethodPatch, "/", nil,
		upload{field: "imageCover", filename: "c.jpg", contentType: "image/jpeg", content: "c"},
		upload{field: "images", filename: "1.jpg", contentType: "image/jpeg", content: "1"},
		upload{field: "images", filename: "2.png", contentType: "image/png", content: "2"},
	)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(id.Hex())
	require.NoError(t, h.Update(c))
}

func TestTourHandler_Update_ImagesBadID(t *testing.T) {
	e := newEcho()
	h := NewTourHandler(&stubTourService{}, &stubImages{})

	req := multipartRequest(t, http.MethodPatch, "/", nil,
		upload{field: "imageCover", filename: "c.jpg", contentType: "image/jpeg", content: "c"})
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")

	var cast *domain.CastError
	require.ErrorAs(t, h.Update(c), &cast)
	assert.Equal(t, "nope", cast.Value)
}

func TestTourHandler_MonthlyPlan_BadYear(t *testing.T) {
	e := newEcho()
	h := NewTourHandler(&stubTourService{}, &stubImages{})

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("year")
	c.SetParamValues("twenty")

	var de *domain.Error
	require.ErrorAs(t, h.MonthlyPlan(c), &de)
	assert.Equal(t, http.StatusBadRequest, de.Code)
}

func TestTourHandler_Within_BadDistance(t *testing.T) {
	e := newEcho()
	h := NewTourHandler(&stubTourService{}, &stubImages{})

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("distance", "latlng", "unit")
	c.SetParamValues("far", "34.1,-118.1", "mi")

	var de *domain.Error
	require.ErrorAs(t, h.Within(c), &de)
	assert.Equal(t, "Please provide a positive distance.", de.Message)
}
