package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/natours/booking-api/internal/api/metrics"
	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/ports"
	"github.com/natours/booking-api/internal/pkg/sanitize"
)

// UserHandler serves the caller's own profile and the admin user resource.
type UserHandler struct {
	service ports.UserService
	images  ports.ImageProcessor
}

func NewUserHandler(service ports.UserService, images ports.ImageProcessor) *UserHandler {
	return &UserHandler{service: service, images: images}
}

type updateMeRequest struct {
	Name            string `json:"name"            form:"name" validate:"omitempty,min=10,max=40"`
	Email           string `json:"email"           form:"email" validate:"omitempty,email"`
	Password        string `json:"password"        form:"password"`
	PasswordConfirm string `json:"passwordConfirm" form:"passwordConfirm"`
}

type createUserRequest struct {
	Name            string      `json:"name"            validate:"required,min=10,max=40"`
	Email           string      `json:"email"           validate:"required,email"`
	Password        string      `json:"password"        validate:"required,min=8"`
	PasswordConfirm string      `json:"passwordConfirm" validate:"required"`
	Role            domain.Role `json:"role"            validate:"omitempty,oneof=user guide lead-guide admin"`
}

type updateUserRequest struct {
	Name  *string      `json:"name"  validate:"omitempty,min=10,max=40"`
	Email *string      `json:"email" validate:"omitempty,email"`
	Photo *string      `json:"photo"`
	Role  *domain.Role `json:"role"  validate:"omitempty,oneof=user guide lead-guide admin"`
}

// GetMe handles GET /api/v1/users/me.
//
// @Summary      Get the caller's profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response
// @Failure      401  {object}  errorResponse
// @Router       /api/v1/users/me [get]
func (h *UserHandler) GetMe(c echo.Context) error {
	me, err := principal(c)
	if err != nil {
		return err
	}
	user, err := h.service.Get(c.Request().Context(), me.ID.Hex())
	if err != nil {
		return err
	}
	return one(c, http.StatusOK, user)
}

// UpdateMe handles PATCH /api/v1/users/updateMe. Accepts JSON or a
// multipart form with an optional "photo" image.
//
// @Summary      Update the caller's name, e-mail or photo
// @Tags         users
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        body   body      updateMeRequest  false  "Profile fields"
// @Param        photo  formData  file             false  "Profile photo"
// @Success      200    {object}  response
// @Failure      400    {object}  errorResponse
// @Router       /api/v1/users/updateMe [patch]
func (h *UserHandler) UpdateMe(c echo.Context) error {
	me, err := principal(c)
	if err != nil {
		return err
	}
	var req updateMeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.Password != "" || req.PasswordConfirm != "" {
		return domain.NewError(http.StatusBadRequest, "This route is not for password updates. Please use /updatePassword.")
	}

	var patch domain.UserPatch
	if req.Name != "" {
		name := sanitize.Text(req.Name)
		patch.Name = &name
	}
	if req.Email != "" {
		patch.Email = &req.Email
	}
	if isMultipart(c) {
		photo, err := h.uploadPhoto(c, me)
		if err != nil {
			return err
		}
		if photo != "" {
			patch.Photo = &photo
		}
	}

	user, err := h.service.UpdateMe(c.Request().Context(), me, patch)
	if err != nil {
		return err
	}
	return one(c, http.StatusOK, user)
}

func (h *UserHandler) uploadPhoto(c echo.Context, me *domain.User) (string, error) {
	f, err := formImage(c, "photo")
	if err != nil || f == nil {
		return "", err
	}
	defer f.Close()

	start := time.Now()
	name, err := h.images.UserPhoto(c.Request().Context(), me.ID.Hex(), f)
	metrics.ImageProcessingDuration.WithLabelValues("user").Observe(time.Since(start).Seconds())
	return name, err
}

// DeleteMe handles DELETE /api/v1/users/deleteMe.
//
// @Summary      Deactivate the caller's account
// @Tags         users
// @Security     BearerAuth
// @Success      204
// @Router       /api/v1/users/deleteMe [delete]
func (h *UserHandler) DeleteMe(c echo.Context) error {
	me, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteMe(c.Request().Context(), me); err != nil {
		return err
	}
	return deleted(c)
}

// List handles GET /api/v1/users.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        sort    query     string  false  "Sort fields, '-' for descending"
// @Param        fields  query     string  false  "Projection"
// @Param        page    query     int     false  "Page"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  response
// @Router       /api/v1/users [get]
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.service.List(c.Request().Context(), listQuery(c).Descriptor())
	if err != nil {
		return err
	}
	return many(c, users)
}

// Get handles GET /api/v1/users/:id.
//
// @Summary      Get a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  response
// @Failure      404  {object}  errorResponse
// @Router       /api/v1/users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	user, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return one(c, http.StatusOK, user)
}

// Create handles POST /api/v1/users. Unlike sign-up the role is honoured.
//
// @Summary      Create a user with any role
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createUserRequest  true  "New user"
// @Success      201   {object}  response
// @Failure      400   {object}  errorResponse
// @Router       /api/v1/users [post]
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	sanitize.InPlace(&req.Name)

	user, err := h.service.CreatePrincipal(c.Request().Context(), ports.SignupInput{
		Name:            req.Name,
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		Role:            req.Role,
	})
	if err != nil {
		return err
	}
	return one(c, http.StatusCreated, user)
}

// Update handles PATCH /api/v1/users/:id. Passwords cannot be changed here.
//
// @Summary      Update a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "User id"
// @Param        body  body      updateUserRequest  true  "Fields to change"
// @Success      200   {object}  response
// @Failure      404   {object}  errorResponse
// @Router       /api/v1/users/{id} [patch]
func (h *UserHandler) Update(c echo.Context) error {
	var req updateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	sanitize.InPlace(req.Name)

	user, err := h.service.Update(c.Request().Context(), c.Param("id"), domain.UserPatch{
		Name:  req.Name,
		Email: req.Email,
		Photo: req.Photo,
		Role:  req.Role,
	})
	if err != nil {
		return err
	}
	return one(c, http.StatusOK, user)
}

// Delete handles DELETE /api/v1/users/:id.
//
// @Summary      Delete a user
// @Tags         users
// @Security     BearerAuth
// @Param        id   path  string  true  "User id"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /api/v1/users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return deleted(c)
}
