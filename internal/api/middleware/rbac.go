package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/natours/booking-api/internal/core/domain"
)

// RestrictTo lets through principals whose role is one of allowed. It must
// run after Protect.
func RestrictTo(allowed ...domain.Role) echo.MiddlewareFunc {
	names := make([]string, len(allowed))
	for i, r := range allowed {
		names[i] = string(r)
	}
	only := strings.Join(names, ", ")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := Principal(c.Request().Context())
			if !ok {
				return domain.ErrNotLoggedIn
			}
			if !user.Role.In(allowed) {
				return domain.NewError(http.StatusForbidden,
					fmt.Sprintf("As a %s, you do not have permission to perform this action. Only actionable by %s", user.Role, only))
			}
			return next(c)
		}
	}
}
