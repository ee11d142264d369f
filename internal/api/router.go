package api

import (
	"strings"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/natours/booking-api/docs"
	"github.com/natours/booking-api/internal/api/handler"
	"github.com/natours/booking-api/internal/api/middleware"
	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/ports"
	"github.com/natours/booking-api/pkg/logger"
)

const (
	bodyLimit        = "10K"
	uploadBodyLimit  = "10M"
	webhookBodyLimit = "1M"
	webhookPath      = "/webhook-checkout"
)

// Services are the use cases the router exposes.
type Services struct {
	Auth     ports.AuthService
	Users    ports.UserService
	Tours    ports.TourService
	Reviews  ports.ReviewService
	Bookings ports.BookingService
}

// Options configures the router.
type Options struct {
	Production bool
	// CookieTTL is the lifetime of the jwt cookie.
	CookieTTL time.Duration
	Limiter   ports.RateLimiter
	Images    ports.ImageProcessor
	// ImageBaseURL is where stored images are served from.
	ImageBaseURL string
	// ImageDir is served under /img when images are kept on local disk.
	ImageDir string
	Checks   map[string]handler.Check
	// Registry receives the HTTP metrics. Nil uses the default registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(svc Services, opts Options, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(log, opts.Production)
	e.Validator = handler.NewValidator()
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: func() string { return ulid.Make().String() },
	}))
	e.Use(logger.RequestLogger(log))
	e.Use(echomiddleware.Secure())
	e.Use(echomiddleware.CORS())
	e.Use(echomiddleware.Gzip())
	e.Use(limitBody(bodyLimit, func(c echo.Context) bool { return c.Path() != webhookPath && !isUpload(c) }))
	e.Use(limitBody(uploadBodyLimit, isUpload))
	e.Use(limitBody(webhookBodyLimit, func(c echo.Context) bool { return c.Path() == webhookPath }))

	metricsCfg := echoprometheus.MiddlewareConfig{Subsystem: "natours"}
	handlerCfg := echoprometheus.HandlerConfig{}
	if opts.Registry != nil {
		metricsCfg.Registerer = opts.Registry
		handlerCfg.Gatherer = opts.Registry
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(metricsCfg))

	// --- Handlers ---
	authH := handler.NewAuthHandler(svc.Auth, opts.CookieTTL)
	userH := handler.NewUserHandler(svc.Users, opts.Images)
	tourH := handler.NewTourHandler(svc.Tours, opts.Images)
	reviewH := handler.NewReviewHandler(svc.Reviews)
	bookingH := handler.NewBookingHandler(svc.Bookings, opts.ImageBaseURL)
	healthH := handler.NewHealthHandler(opts.Checks)

	protect := middleware.Protect(svc.Auth)
	staff := middleware.RestrictTo(domain.RoleAdmin, domain.RoleLeadGuide)
	admin := middleware.RestrictTo(domain.RoleAdmin)

	// --- Operational endpoints (no auth, no rate limit) ---
	e.GET("/health", healthH.Liveness)
	e.GET("/health/ready", healthH.Readiness)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(handlerCfg))
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	e.POST(webhookPath, bookingH.Webhook)
	if opts.ImageDir != "" {
		e.Static("/img", opts.ImageDir)
	}

	v1 := e.Group("/api/v1")
	if opts.Limiter != nil {
		v1.Use(middleware.RateLimit(opts.Limiter, log))
	}

	// --- Tours ---
	tours := v1.Group("/tours")
	tours.GET("/top-5-cheapest", tourH.TopCheapest, protect, staff)
	tours.GET("/stats", tourH.Stats, protect, staff)
	tours.GET("/monthly-plan/:year", tourH.MonthlyPlan, protect,
		middleware.RestrictTo(domain.RoleAdmin, domain.RoleLeadGuide, domain.RoleGuide))
	tours.GET("/tours-within/:distance/center/:latlng/unit/:unit", tourH.Within)
	tours.GET("/distances/:latlng/unit/:unit", tourH.Distances)
	tours.GET("", tourH.List)
	tours.POST("", tourH.Create, protect, staff)
	tours.GET("/:id", tourH.Get)
	tours.PATCH("/:id", tourH.Update, protect, staff)
	tours.DELETE("/:id", tourH.Delete, protect, staff)
	tours.GET("/:tourId/reviews", reviewH.List, protect)
	tours.POST("/:tourId/reviews", reviewH.Create, protect, middleware.RestrictTo(domain.RoleUser))

	// --- Users ---
	users := v1.Group("/users")
	users.POST("/signup", authH.Signup)
	users.POST("/login", authH.Login)
	users.GET("/logout", authH.Logout)
	users.POST("/forgotPassword", authH.ForgotPassword)
	users.PATCH("/resetPassword/:token", authH.ResetPassword)
	users.PATCH("/updatePassword", authH.UpdatePassword, protect)
	users.GET("/me", userH.GetMe, protect)
	users.PATCH("/updateMe", userH.UpdateMe, protect)
	users.DELETE("/deleteMe", userH.DeleteMe, protect)
	users.GET("", userH.List, protect, admin)
	users.POST("", userH.Create, protect, admin)
	users.GET("/:id", userH.Get, protect, admin)
	users.PATCH("/:id", userH.Update, protect, admin)
	users.DELETE("/:id", userH.Delete, protect, admin)

	// --- Reviews ---
	reviews := v1.Group("/reviews")
	author := middleware.RestrictTo(domain.RoleUser, domain.RoleAdmin)
	reviews.GET("", reviewH.List, protect)
	reviews.GET("/mine", reviewH.Mine, protect)
	reviews.POST("", reviewH.Create, protect, middleware.RestrictTo(domain.RoleUser))
	reviews.GET("/:id", reviewH.Get, protect)
	reviews.PATCH("/:id", reviewH.Update, protect, author)
	reviews.DELETE("/:id", reviewH.Delete, protect, author)

	// --- Bookings ---
	bookings := v1.Group("/bookings")
	bookings.GET("/checkout-session/:tourId", bookingH.Checkout, protect)
	bookings.GET("", bookingH.List, protect, staff)
	bookings.POST("", bookingH.Create, protect, staff)
	bookings.GET("/:id", bookingH.Get, protect, staff)
	bookings.PATCH("/:id", bookingH.Update, protect, staff)
	bookings.DELETE("/:id", bookingH.Delete, protect, staff)

	return e
}

// limitBody caps request bodies at size for requests matching applies.
func limitBody(size string, applies func(echo.Context) bool) echo.MiddlewareFunc {
	return echomiddleware.BodyLimitWithConfig(echomiddleware.BodyLimitConfig{
		Limit:   size,
		Skipper: func(c echo.Context) bool { return !applies(c) },
	})
}

func isUpload(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}
