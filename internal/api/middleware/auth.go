package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/natours/booking-api/internal/core/domain"
)

// CookieName is the cookie that mirrors the bearer credential.
const CookieName = "jwt"

// LoggedOutCookie is the value logout writes over the credential cookie.
const LoggedOutCookie = "loggedout"

// Authenticator resolves a raw credential to its principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying u.
func WithPrincipal(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, principalKey{}, u)
}

// Principal returns the user attached by Protect, if any.
func Principal(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(principalKey{}).(*domain.User)
	return u, ok && u != nil
}

// Protect rejects requests without a valid credential and attaches the
// resolved principal to the request context.
func Protect(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			user, err := auth.Authenticate(req.Context(), Token(c))
			if err != nil {
				return err
			}
			c.SetRequest(req.WithContext(WithPrincipal(req.Context(), user)))
			return next(c)
		}
	}
}

// Token extracts the raw credential from the Authorization header, falling
// back to the jwt cookie. It returns "" when neither carries one.
func Token(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if ck, err := c.Cookie(CookieName); err == nil && ck.Value != LoggedOutCookie {
		return ck.Value
	}
	return ""
}
