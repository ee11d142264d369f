package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/ports"
	"github.com/natours/booking-api/internal/core/query"
	"github.com/natours/booking-api/internal/pkg/sanitize"
)

// ReviewHandler serves reviews, standalone and nested under a tour.
type ReviewHandler struct {
	service ports.ReviewService
}

func NewReviewHandler(service ports.ReviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

type createReviewRequest struct {
	Review string             `json:"review" validate:"required"`
	Rating float64            `json:"rating" validate:"required,gte=1,lte=5"`
	Tour   primitive.ObjectID `json:"tour"`
}

type updateReviewRequest struct {
	Review *string  `json:"review"`
	Rating *float64 `json:"rating" validate:"omitempty,gte=1,lte=5"`
}

// List handles GET /api/v1/reviews and GET /api/v1/tours/:tourId/reviews.
//
// @Summary      List reviews
// @Tags         reviews
// @Produce      json
// @Security     BearerAuth
// @Param        tourId  path      string  false  "Tour id when nested"
// @Param        sort    query     string  false  "Sort fields, '-' for descending"
// @Param        page    query     int     false  "Page"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  response
// @Router       /api/v1/reviews [get]
func (h *ReviewHandler) List(c echo.Context) error {
	b := listQuery(c)
	if c.Param("tourId") != "" {
		tourID, err := idParam(c, "tourId")
		if err != nil {
			return err
		}
		b.Where("tour", query.Eq, tourID)
	}
	reviews, err := h.service.List(c.Request().Context(), b.Descriptor())
	if err != nil {
		return err
	}
	return many(c, reviews)
}

// Mine handles GET /api/v1/reviews/mine.
//
// @Summary      The caller's reviews
// @Tags         reviews
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response
// @Router       /api/v1/reviews/mine [get]
func (h *ReviewHandler) Mine(c echo.Context) error {
	me, err := principal(c)
	if err != nil {
		return err
	}
	q := listQuery(c).Where("user", query.Eq, me.ID).Descriptor()
	reviews, err := h.service.List(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return many(c, reviews)
}

// Get handles GET /api/v1/reviews/:id.
//
// @Summary      Get a review
// @Tags         reviews
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Review id"
// @Success      200  {object}  response
// @Failure      404  {object}  errorResponse
// @Router       /api/v1/reviews/{id} [get]
func (h *ReviewHandler) Get(c echo.Context) error {
	review, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return one(c, http.StatusOK, review)
}

// Create handles POST /api/v1/reviews and POST /api/v1/tours/:tourId/reviews.
// The author is always the caller; a nested route fixes the tour.
//
// @Summary      Review a tour
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        tourId  path      string               false  "Tour id when nested"
// @Param        body    body      createReviewRequest  true   "Review"
// @Success      201     {object}  response
// @Failure      400     {object}  errorResponse
// @Router       /api/v1/tours/{tourId}/reviews [post]
func (h *ReviewHandler) Create(c echo.Context) error {
	me, err := principal(c)
	if err != nil {
		return err
	}
	var req createReviewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if c.Param("tourId") != "" {
		if req.Tour, err = idParam(c, "tourId"); err != nil {
			return err
		}
	}
	sanitize.InPlace(&req.Review)

	review, err := h.service.Create(c.Request().Context(), &domain.Review{
		Review: req.Review,
		Rating: req.Rating,
		Tour:   req.Tour,
		User:   me.ID,
	})
	if err != nil {
		return err
	}
	return one(c, http.StatusCreated, review)
}

// Update handles PATCH /api/v1/reviews/:id.
//
// @Summary      Edit a review
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string               true  "Review id"
// @Param        body  body      updateReviewRequest  true  "Fields to change"
// @Success      200   {object}  response
// @Failure      404   {object}  errorResponse
// @Router       /api/v1/reviews/{id} [patch]
func (h *ReviewHandler) Update(c echo.Context) error {
	var req updateReviewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	sanitize.InPlace(req.Review)

	review, err := h.service.Update(c.Request().Context(), c.Param("id"), domain.ReviewPatch{
		Review: req.Review,
		Rating: req.Rating,
	})
	if err != nil {
		return err
	}
	return one(c, http.StatusOK, review)
}

// Delete handles DELETE /api/v1/reviews/:id.
//
// @Summary      Delete a review
// @Tags         reviews
// @Security     BearerAuth
// @Param        id   path  string  true  "Review id"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /api/v1/reviews/{id} [delete]
func (h *ReviewHandler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return deleted(c)
}
