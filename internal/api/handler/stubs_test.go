package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/natours/booking-api/internal/api/middleware"
	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/ports"
	"github.com/natours/booking-api/internal/core/query"
)

type stubAuthService struct {
	signupFn         func(ctx context.Context, in ports.SignupInput) (*domain.User, error)
	loginFn          func(ctx context.Context, email, password string) (*domain.User, error)
	forgotPasswordFn func(ctx context.Context, in ports.ForgotPasswordInput) error
	resetPasswordFn  func(ctx context.Context, token string, in ports.ChangePasswordInput) (*domain.User, error)
	updatePasswordFn func(ctx context.Context, userID string, in ports.ChangePasswordInput) (*domain.User, error)
}

func (s *stubAuthService) Signup(ctx context.Context, in ports.SignupInput) (*domain.User, error) {
	return s.signupFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) ForgotPassword(ctx context.Context, in ports.ForgotPasswordInput) error {
	return s.forgotPasswordFn(ctx, in)
}

func (s *stubAuthService) ResetPassword(ctx context.Context, token string, in ports.ChangePasswordInput) (*domain.User, error) {
	return s.resetPasswordFn(ctx, token, in)
}

func (s *stubAuthService) UpdatePassword(ctx context.Context, userID string, in ports.ChangePasswordInput) (*domain.User, error) {
	return s.updatePasswordFn(ctx, userID, in)
}

func (s *stubAuthService) IssueToken(user *domain.User) (ports.IssuedToken, error) {
	return ports.IssuedToken{Token: "token-for-" + user.ID.Hex()}, nil
}

func (s *stubAuthService) Authenticate(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrNotLoggedIn
}

type stubUserService struct {
	ports.UserService // unimplemented methods panic
	updateMeFn        func(ctx context.Context, me *domain.User, patch domain.UserPatch) (*domain.User, error)
	createFn          func(ctx context.Context, in ports.SignupInput) (*domain.User, error)
}

func (s *stubUserService) UpdateMe(ctx context.Context, me *domain.User, patch domain.UserPatch) (*domain.User, error) {
	return s.updateMeFn(ctx, me, patch)
}

func (s *stubUserService) CreatePrincipal(ctx context.Context, in ports.SignupInput) (*domain.User, error) {
	return s.createFn(ctx, in)
}

type stubTourService struct {
	ports.TourService
	listFn   func(ctx context.Context, q query.Descriptor) ([]*domain.Tour, error)
	createFn func(ctx context.Context, t *domain.Tour) (*domain.Tour, error)
	updateFn func(ctx context.Context, id string, patch domain.TourPatch) (*domain.Tour, error)
}

func (s *stubTourService) List(ctx context.Context, q query.Descriptor) ([]*domain.Tour, error) {
	return s.listFn(ctx, q)
}

func (s *stubTourService) Create(ctx context.Context, t *domain.Tour) (*domain.Tour, error) {
	return s.createFn(ctx, t)
}

func (s *stubTourService) Update(ctx context.Context, id string, patch domain.TourPatch) (*domain.Tour, error) {
	return s.updateFn(ctx, id, patch)
}

type stubReviewService struct {
	ports.ReviewService
	listFn   func(ctx context.Context, q query.Descriptor) ([]*domain.Review, error)
	createFn func(ctx context.Context, r *domain.Review) (*domain.Review, error)
}

func (s *stubReviewService) List(ctx context.Context, q query.Descriptor) ([]*domain.Review, error) {
	return s.listFn(ctx, q)
}

func (s *stubReviewService) Create(ctx context.Context, r *domain.Review) (*domain.Review, error) {
	return s.createFn(ctx, r)
}

type stubBookingService struct {
	ports.BookingService
	checkoutFn func(ctx context.Context, buyer *domain.User, in ports.CheckoutInput) (*domain.CheckoutSession, error)
	completeFn func(ctx context.Context, payload []byte, signature string) (*domain.Booking, error)
	createFn   func(ctx context.Context, b *domain.Booking) (*domain.Booking, error)
}

func (s *stubBookingService) Create(ctx context.Context, b *domain.Booking) (*domain.Booking, error) {
	return s.createFn(ctx, b)
}

func (s *stubBookingService) CheckoutSession(ctx context.Context, buyer *domain.User, in ports.CheckoutInput) (*domain.CheckoutSession, error) {
	return s.checkoutFn(ctx, buyer, in)
}

func (s *stubBookingService) CompleteCheckout(ctx context.Context, payload []byte, signature string) (*domain.Booking, error) {
	return s.completeFn(ctx, payload, signature)
}

type stubImages struct {
	userPhotoFn  func(ctx context.Context, userID string, src io.Reader) (string, error)
	tourImagesFn func(ctx context.Context, tourID string, cover io.Reader, images []io.Reader) (string, []string, error)
}

func (s *stubImages) UserPhoto(ctx context.Context, userID string, src io.Reader) (string, error) {
	return s.userPhotoFn(ctx, userID, src)
}

func (s *stubImages) TourImages(ctx context.Context, tourID string, cover io.Reader, images []io.Reader) (string, []string, error) {
	return s.tourImagesFn(ctx, tourID, cover, images)
}

// --- helpers ---

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func asUser(req *http.Request, u *domain.User) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), u))
}

func newUser(role domain.Role) *domain.User {
	return &domain.User{ID: primitive.NewObjectID(), Name: "Jonas", Email: "jonas@example.com", Role: role}
}

type upload struct {
	field, filename, contentType, content string
}

// multipartRequest builds a form with the given text fields and files.
func multipartRequest(t *testing.T, method, target string, fields map[string]string, files ...upload) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write([]byte(f.content)); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}
