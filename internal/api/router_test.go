package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/natours/booking-api/internal/api/middleware"
	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/ports"
	"github.com/natours/booking-api/internal/core/query"
)

// tokenAuth resolves fixed bearer tokens to users.
type tokenAuth struct {
	ports.AuthService
	users map[string]*domain.User
}

func (a *tokenAuth) Authenticate(_ context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrNotLoggedIn
	}
	u, ok := a.users[token]
	if !ok {
		return nil, domain.ErrPrincipalGone
	}
	return u, nil
}

type fakeUsers struct {
	ports.UserService
}

func (fakeUsers) Get(_ context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, &domain.CastError{Path: "_id", Value: id}
	}
	return &domain.User{ID: oid, Name: "Jonas", Role: domain.RoleUser}, nil
}

func (fakeUsers) List(context.Context, query.Descriptor) ([]*domain.User, error) {
	return []*domain.User{}, nil
}

type fakeTours struct {
	ports.TourService
}

func (fakeTours) List(context.Context, query.Descriptor) ([]*domain.Tour, error) {
	return []*domain.Tour{{Name: "The Park Camper"}}, nil
}

func newTestRouter(t *testing.T, limiter ports.RateLimiter) (http.Handler, map[string]*domain.User) {
	t.Helper()
	users := map[string]*domain.User{
		"user-token":  {ID: primitive.NewObjectID(), Role: domain.RoleUser},
		"guide-token": {ID: primitive.NewObjectID(), Role: domain.RoleGuide},
		"admin-token": {ID: primitive.NewObjectID(), Role: domain.RoleAdmin},
	}
	svc := Services{
		Auth:  &tokenAuth{users: users},
		Users: fakeUsers{},
		Tours: fakeTours{},
	}
	e := NewRouter(svc, Options{
		Production: true,
		CookieTTL:  time.Hour,
		Limiter:    limiter,
		Registry:   prometheus.NewRegistry(),
	}, zerolog.Nop())
	return e, users
}

func do(h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestRouter_Health(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRouter_PublicTourList(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := do(h, http.MethodGet, "/api/v1/tours?difficulty=easy", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.EqualValues(t, 1, body["results"])
}

func TestRouter_UnknownRoute(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rec := do(h, http.MethodGet, "/api/v1/bogus", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "fail", body["status"])
	assert.Equal(t, "Can't find /api/v1/bogus on this server!", body["message"])
}

func TestRouter_AuthGate(t *testing.T) {
	h, users := newTestRouter(t, nil)

	tests := []struct {
		name     string
		target   string
		token    string
		wantCode int
		wantMsg  string
	}{
		{"no credential", "/api/v1/users/me", "", http.StatusUnauthorized, domain.ErrNotLoggedIn.Message},
		{"unknown principal", "/api/v1/users/me", "ghost-token", http.StatusUnauthorized, domain.ErrPrincipalGone.Message},
		{"own profile", "/api/v1/users/me", "user-token", http.StatusOK, ""},
		{"user on admin route", "/api/v1/users", "user-token", http.StatusForbidden,
			"As a user, you do not have permission to perform this action. Only actionable by admin"},
		{"admin on admin route", "/api/v1/users", "admin-token", http.StatusOK, ""},
		{"guide on staff route", "/api/v1/tours/stats", "guide-token", http.StatusForbidden,
			"As a guide, you do not have permission to perform this action. Only actionable by admin, lead-guide"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodGet, tt.target, tt.token)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, decode(t, rec)["message"])
			}
		})
	}

	rec := do(h, http.MethodGet, "/api/v1/users/me", "user-token")
	data := decode(t, rec)["data"].(map[string]any)["data"].(map[string]any)
	assert.Equal(t, users["user-token"].ID.Hex(), data["_id"])
}

func TestRouter_CookieCredential(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: "user-token"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	h, _ := newTestRouter(t, middleware.NewMemoryLimiter(2, time.Hour))

	for i := 0; i < 2; i++ {
		rec := do(h, http.MethodGet, "/api/v1/tours", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(h, http.MethodGet, "/api/v1/tours", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	// operational endpoints are not limited
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/health", "").Code)
}

func TestRouter_Metrics(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	do(h, http.MethodGet, "/api/v1/tours", "")

	rec := do(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "natours_requests_total"))
}

func TestRouter_BodyLimits(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	send := func(target, contentType string, size int) int {
		req := httptest.NewRequest(http.MethodPatch, target, bytes.NewReader(bytes.Repeat([]byte("a"), size)))
		if target == "/webhook-checkout" {
			req.Method = http.MethodPost
		}
		req.Header.Set(echo.HeaderContentType, contentType)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	multipart := echo.MIMEMultipartForm + "; boundary=x"

	tests := []struct {
		name        string
		target      string
		contentType string
		size        int
		wantCode    int
	}{
		{"json over limit", "/api/v1/users/updateMe", echo.MIMEApplicationJSON, 20 << 10, http.StatusRequestEntityTooLarge},
		{"upload above json limit", "/api/v1/users/updateMe", multipart, 20 << 10, http.StatusUnauthorized},
		{"upload over limit", "/api/v1/users/updateMe", multipart, 10<<20 + 1, http.StatusRequestEntityTooLarge},
		{"webhook over limit", "/webhook-checkout", "application/json", 1<<20 + 1, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, send(tt.target, tt.contentType, tt.size))
		})
	}
}
