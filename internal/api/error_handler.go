package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/natours/booking-api/internal/api/handler"
	"github.com/natours/booking-api/internal/core/domain"
)

const genericMessage = "Something went very wrong!"

// errorResponse is the failure envelope. Error and Stack are filled only
// outside production.
type errorResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Error   string   `json:"error,omitempty"`
	Stack   []string `json:"stack,omitempty"`
}

var (
	errTokenExpired = domain.NewError(http.StatusUnauthorized, "Your token has expired. Please log in again")
	errTokenInvalid = domain.NewError(http.StatusUnauthorized, "Invalid token. Please log in again!")
)

// jwtErrors are the verification failures rendered as an invalid token.
var jwtErrors = []error{
	jwt.ErrTokenMalformed,
	jwt.ErrTokenUnverifiable,
	jwt.ErrTokenSignatureInvalid,
	jwt.ErrTokenRequiredClaimMissing,
	jwt.ErrTokenInvalidClaims,
	jwt.ErrTokenNotValidYet,
	jwt.ErrTokenUsedBeforeIssued,
	jwt.ErrTokenInvalidAudience,
	jwt.ErrTokenInvalidIssuer,
	jwt.ErrTokenInvalidSubject,
	jwt.ErrTokenInvalidId,
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - translates store, validation, credential and router errors into
//     operational errors with a status code and a safe message.
//   - logs anything it cannot translate and collapses it to a generic 500
//     in production.
//   - renders {"status", "message"} plus the error chain in development.
func NewHTTPErrorHandler(log zerolog.Logger, production bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		op := resolveError(err, c)
		if op == nil {
			log.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Msg("unhandled error")
			op = domain.NewError(http.StatusInternalServerError, genericMessage)
			if !production {
				op.Message = err.Error()
			}
		} else if op.Code >= http.StatusInternalServerError {
			log.Error().Err(err).Str("path", c.Path()).Int("status", op.Code).Msg("request failed")
		}

		resp := errorResponse{Status: op.Status(), Message: op.Message}
		if !production {
			resp.Error = err.Error()
			resp.Stack = chain(err)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(op.Code)
			return
		}
		_ = c.JSON(op.Code, resp)
	}
}

// resolveError maps err onto an operational error, or nil when err is not
// one the client may see.
func resolveError(err error, c echo.Context) *domain.Error {
	var (
		op   *domain.Error
		cast *domain.CastError
		dup  *domain.DuplicateError
		ve   validator.ValidationErrors
		he   *echo.HTTPError
	)
	switch {
	case errors.As(err, &op):
		return op
	case errors.As(err, &cast):
		return domain.NewError(http.StatusBadRequest, fmt.Sprintf("Invalid %s: %s.", cast.Path, cast.Value))
	case errors.As(err, &dup):
		return domain.NewError(http.StatusBadRequest, fmt.Sprintf("Duplicate field value: %s. Please use another value!", dup.Value))
	case errors.As(err, &ve):
		return domain.NewError(http.StatusBadRequest, "Invalid input data. "+strings.Join(handler.ValidationMessages(ve), ". "))
	case errors.Is(err, jwt.ErrTokenExpired):
		return errTokenExpired
	case isJWTError(err):
		return errTokenInvalid
	case errors.As(err, &he):
		if he.Code == http.StatusNotFound {
			return domain.NewError(http.StatusNotFound, fmt.Sprintf("Can't find %s on this server!", c.Request().URL.Path))
		}
		return domain.NewError(he.Code, fmt.Sprint(he.Message))
	}
	return nil
}

func isJWTError(err error) bool {
	for _, target := range jwtErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// chain lists the messages of err and every error it wraps.
func chain(err error) []string {
	var out []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		out = append(out, e.Error())
	}
	return out
}
