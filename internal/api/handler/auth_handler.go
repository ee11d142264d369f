package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/natours/booking-api/internal/api/metrics"
	"github.com/natours/booking-api/internal/api/middleware"
	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/ports"
	"github.com/natours/booking-api/internal/pkg/sanitize"
)

// logoutCookieTTL is how long the overwritten credential cookie lives.
const logoutCookieTTL = 10 * time.Second

// AuthHandler handles sign-up, login and the password flows.
type AuthHandler struct {
	service   ports.AuthService
	cookieTTL time.Duration
	now       func() time.Time
}

func NewAuthHandler(service ports.AuthService, cookieTTL time.Duration) *AuthHandler {
	return &AuthHandler{service: service, cookieTTL: cookieTTL, now: time.Now}
}

type signupRequest struct {
	Name            string `json:"name"            validate:"required,min=10,max=40"`
	Email           string `json:"email"           validate:"required,email"`
	Password        string `json:"password"        validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"        validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

type updatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password"        validate:"required"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required"`
}

// Signup handles POST /api/v1/users/signup.
//
// @Summary      Create an account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "New account"
// @Success      201   {object}  response
// @Failure      400   {object}  errorResponse
// @Router       /api/v1/users/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	sanitize.InPlace(&req.Name)

	user, err := h.service.Signup(c.Request().Context(), ports.SignupInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		return err
	}
	metrics.SignupsTotal.Inc()
	return h.sendToken(c, http.StatusCreated, user)
}

// Login handles POST /api/v1/users/login.
//
// @Summary      Log in with e-mail and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  response
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /api/v1/users/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body").SetInternal(err)
	}

	user, err := h.service.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return err
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return h.sendToken(c, http.StatusOK, user)
}

// Logout handles GET /api/v1/users/logout. Only the cookie is cleared; a
// bearer credential stays valid until it expires.
//
// @Summary      Log out
// @Tags         auth
// @Produce      json
// @Success      200  {object}  response
// @Failure      401  {object}  errorResponse
// @Router       /api/v1/users/logout [get]
func (h *AuthHandler) Logout(c echo.Context) error {
	if strings.EqualFold(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer null") {
		return domain.ErrAlreadyLoggedOut
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    middleware.LoggedOutCookie,
		Path:     "/",
		Expires:  h.now().Add(logoutCookieTTL),
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
	})
	return c.JSON(http.StatusOK, response{Status: statusSuccess})
}

// ForgotPassword handles POST /api/v1/users/forgotPassword.
//
// @Summary      Mail a password reset token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      forgotPasswordRequest  true  "Account e-mail"
// @Success      200   {object}  response
// @Failure      404   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /api/v1/users/forgotPassword [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	resetURL := c.Scheme() + "://" + c.Request().Host + "/api/v1/users/resetPassword"
	if err := h.service.ForgotPassword(c.Request().Context(), ports.ForgotPasswordInput{
		Email:    req.Email,
		ResetURL: resetURL,
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, response{Status: statusSuccess, Message: "Token sent to email!"})
}

// ResetPassword handles PATCH /api/v1/users/resetPassword/:token.
//
// @Summary      Set a new password with a reset token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token  path      string                true  "Reset token from the e-mail"
// @Param        body   body      resetPasswordRequest  true  "New password"
// @Success      200    {object}  response
// @Failure      400    {object}  errorResponse
// @Router       /api/v1/users/resetPassword/{token} [patch]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.service.ResetPassword(c.Request().Context(), c.Param("token"), ports.ChangePasswordInput{
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		return err
	}
	return h.sendToken(c, http.StatusOK, user)
}

// UpdatePassword handles PATCH /api/v1/users/updatePassword.
//
// @Summary      Change the caller's password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updatePasswordRequest  true  "Current and new password"
// @Success      200   {object}  response
// @Failure      401   {object}  errorResponse
// @Router       /api/v1/users/updatePassword [patch]
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	me, err := principal(c)
	if err != nil {
		return err
	}
	var req updatePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.service.UpdatePassword(c.Request().Context(), me.ID.Hex(), ports.ChangePasswordInput{
		Current:         req.PasswordCurrent,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		return err
	}
	return h.sendToken(c, http.StatusOK, user)
}

// sendToken issues a credential for user, mirrors it into the jwt cookie
// and writes it together with the user.
func (h *AuthHandler) sendToken(c echo.Context, code int, user *domain.User) error {
	issued, err := h.service.IssueToken(user)
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    issued.Token,
		Path:     "/",
		Expires:  h.now().Add(h.cookieTTL),
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(code, response{
		Status: statusSuccess,
		Token:  issued.Token,
		Data:   map[string]*domain.User{"user": user},
	})
}
