package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/natours/booking-api/internal/api/metrics"
	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/ports"
	"github.com/natours/booking-api/internal/infrastructure/payment"
)

// maxWebhookBody bounds the raw webhook payload read into memory.
const maxWebhookBody = 64 << 10

// BookingHandler serves checkout, the payment webhook and booking admin.
type BookingHandler struct {
	service      ports.BookingService
	imageBaseURL string
}

func NewBookingHandler(service ports.BookingService, imageBaseURL string) *BookingHandler {
	return &BookingHandler{service: service, imageBaseURL: imageBaseURL}
}

type bookingRequest struct {
	Tour  primitive.ObjectID `json:"tour"  validate:"required"`
	User  primitive.ObjectID `json:"user"  validate:"required"`
	Price float64            `json:"price" validate:"required,gt=0"`
	Paid  *bool              `json:"paid"`
}

type updateBookingRequest struct {
	Price *float64 `json:"price" validate:"omitempty,gt=0"`
	Paid  *bool    `json:"paid"`
}

type webhookResponse struct {
	Received bool `json:"received"`
}

// Checkout handles GET /api/v1/bookings/checkout-session/:tourId.
//
// @Summary      Open a payment session for a tour
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        tourId  path      string  true  "Tour id"
// @Success      200     {object}  response
// @Failure      404     {object}  errorResponse
// @Failure      502     {object}  errorResponse
// @Router       /api/v1/bookings/checkout-session/{tourId} [get]
func (h *BookingHandler) Checkout(c echo.Context) error {
	me, err := principal(c)
	if err != nil {
		return err
	}
	base := c.Scheme() + "://" + c.Request().Host
	tourID := c.Param("tourId")

	session, err := h.service.CheckoutSession(c.Request().Context(), me, ports.CheckoutInput{
		TourID:       tourID,
		SuccessURL:   base + "/my-tours?alert=booking",
		CancelURL:    base + "/tour/" + tourID,
		ImageBaseURL: h.imageBaseURL,
	})
	if err != nil {
		metrics.CheckoutSessionsTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.CheckoutSessionsTotal.WithLabelValues("created").Inc()
	return c.JSON(http.StatusOK, response{Status: statusSuccess, Data: map[string]any{"session": session}})
}

// Webhook handles POST /webhook-checkout. The body is read raw because the
// signature covers the exact bytes.
//
// @Summary      Payment provider webhook
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Param        Payment-Signature  header    string  true  "t=<unix>,v1=<hex hmac>"
// @Success      200                {object}  webhookResponse
// @Failure      400                {object}  errorResponse
// @Router       /webhook-checkout [post]
func (h *BookingHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body").SetInternal(err)
	}

	booking, err := h.service.CompleteCheckout(c.Request().Context(), payload, c.Request().Header.Get(payment.SignatureHeader))
	switch {
	case err != nil:
		var de *domain.Error
		if errors.As(err, &de) && de.Code == http.StatusBadRequest {
			metrics.WebhookEventsTotal.WithLabelValues("rejected").Inc()
		} else {
			metrics.WebhookEventsTotal.WithLabelValues("failed").Inc()
		}
		return err
	case booking == nil:
		metrics.WebhookEventsTotal.WithLabelValues("ignored").Inc()
	default:
		metrics.WebhookEventsTotal.WithLabelValues("booked").Inc()
	}
	return c.JSON(http.StatusOK, webhookResponse{Received: true})
}

// List handles GET /api/v1/bookings.
//
// @Summary      List bookings
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response
// @Router       /api/v1/bookings [get]
func (h *BookingHandler) List(c echo.Context) error {
	bookings, err := h.service.List(c.Request().Context(), listQuery(c).Descriptor())
	if err != nil {
		return err
	}
	return many(c, bookings)
}

// Get handles GET /api/v1/bookings/:id.
//
// @Summary      Get a booking
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Booking id"
// @Success      200  {object}  response
// @Failure      404  {object}  errorResponse
// @Router       /api/v1/bookings/{id} [get]
func (h *BookingHandler) Get(c echo.Context) error {
	booking, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return one(c, http.StatusOK, booking)
}

// Create handles POST /api/v1/bookings.
//
// @Summary      Record a booking by hand
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      bookingRequest  true  "Booking"
// @Success      201   {object}  response
// @Failure      400   {object}  errorResponse
// @Router       /api/v1/bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	var req bookingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	paid := true
	if req.Paid != nil {
		paid = *req.Paid
	}

	booking, err := h.service.Create(c.Request().Context(), &domain.Booking{
		Tour:  req.Tour,
		User:  req.User,
		Price: req.Price,
		Paid:  paid,
	})
	if err != nil {
		return err
	}
	return one(c, http.StatusCreated, booking)
}

// Update handles PATCH /api/v1/bookings/:id.
//
// @Summary      Update a booking
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "Booking id"
// @Param        body  body      updateBookingRequest  true  "Fields to change"
// @Success      200   {object}  response
// @Failure      404   {object}  errorResponse
// @Router       /api/v1/bookings/{id} [patch]
func (h *BookingHandler) Update(c echo.Context) error {
	var req updateBookingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	booking, err := h.service.Update(c.Request().Context(), c.Param("id"), domain.BookingPatch{
		Price: req.Price,
		Paid:  req.Paid,
	})
	if err != nil {
		return err
	}
	return one(c, http.StatusOK, booking)
}

// Delete handles DELETE /api/v1/bookings/:id.
//
// @Summary      Delete a booking
// @Tags         bookings
// @Security     BearerAuth
// @Param        id   path  string  true  "Booking id"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /api/v1/bookings/{id} [delete]
func (h *BookingHandler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return deleted(c)
}
