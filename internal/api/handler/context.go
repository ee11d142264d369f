package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/natours/booking-api/internal/api/middleware"
	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/query"
)

// principal returns the user attached by middleware.Protect. A route that
// reaches a handler without one is wired wrong, so this fails closed.
func principal(c echo.Context) (*domain.User, error) {
	u, ok := middleware.Principal(c.Request().Context())
	if !ok {
		return nil, domain.ErrNotLoggedIn
	}
	return u, nil
}

// idParam reads a path parameter that must be a document id.
func idParam(c echo.Context, name string) (primitive.ObjectID, error) {
	raw := c.Param(name)
	oid, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, &domain.CastError{Path: "_id", Value: raw}
	}
	return oid, nil
}

// listQuery builds the descriptor of a list endpoint from the query string.
func listQuery(c echo.Context) *query.Builder {
	return query.New(c.QueryParams()).Filter().Sort().LimitFields().Paginate()
}

// bindAndValidate binds the request body into req and runs its validate tags.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body").SetInternal(err)
	}
	return c.Validate(req)
}
