package handler

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/natours/booking-api/internal/api/metrics"
	"github.com/natours/booking-api/internal/core/domain"
	"github.com/natours/booking-api/internal/core/ports"
	"github.com/natours/booking-api/internal/core/query"
	"github.com/natours/booking-api/internal/pkg/sanitize"
)

// TourHandler serves the tour resource and its reports.
type TourHandler struct {
	service ports.TourService
	images  ports.ImageProcessor
}

func NewTourHandler(service ports.TourService, images ports.ImageProcessor) *TourHandler {
	return &TourHandler{service: service, images: images}
}

type tourRequest struct {
	Name          string               `json:"name"          validate:"required,min=10,max=40"`
	Duration      int                  `json:"duration"      validate:"required,gt=0"`
	MaxGroupSize  int                  `json:"maxGroupSize"  validate:"required,gt=0"`
	Difficulty    domain.Difficulty    `json:"difficulty"    validate:"required,oneof=easy medium difficult"`
	Price         float64              `json:"price"         validate:"required,gt=0"`
	PriceDiscount float64              `json:"priceDiscount" validate:"gte=0"`
	Summary       string               `json:"summary"       validate:"required"`
	Description   string               `json:"description"`
	ImageCover    string               `json:"imageCover"    validate:"required"`
	Images        []string             `json:"images"`
	StartDates    []time.Time          `json:"startDates"`
	SecretTour    bool                 `json:"secretTour"`
	StartLocation *domain.Location     `json:"startLocation"`
	Locations     []domain.Location    `json:"locations"`
	Guides        []primitive.ObjectID `json:"guides"`
}

type updateTourRequest struct {
	Name          *string              `json:"name"          validate:"omitempty,min=10,max=40"`
	Duration      *int                 `json:"duration"      validate:"omitempty,gt=0"`
	MaxGroupSize  *int                 `json:"maxGroupSize"  validate:"omitempty,gt=0"`
	Difficulty    *domain.Difficulty   `json:"difficulty"`
	Price         *float64             `json:"price"         validate:"omitempty,gt=0"`
	PriceDiscount *float64             `json:"priceDiscount" validate:"omitempty,gte=0"`
	Summary       *string              `json:"summary"`
	Description   *string              `json:"description"`
	ImageCover    *string              `json:"imageCover"`
	Images        []string             `json:"images"`
	StartDates    []time.Time          `json:"startDates"`
	SecretTour    *bool                `json:"secretTour"`
	Guides        []primitive.ObjectID `json:"guides"`
}

// topCheapest is the query the top-5-cheapest alias stands for.
var topCheapest = url.Values{
	"limit":  {"5"},
	"sort":   {"-ratingsAverage,price"},
	"fields": {"name,price,ratingsAverage,summary,difficulty"},
}

// List handles GET /api/v1/tours.
//
// @Summary      List tours
// @Description  Any other query parameter filters: duration=5, price[lt]=1500.
// @Tags         tours
// @Produce      json
// @Param        sort    query     string  false  "Sort fields, '-' for descending"
// @Param        fields  query     string  false  "Projection"
// @Param        page    query     int     false  "Page"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  response
// @Router       /api/v1/tours [get]
func (h *TourHandler) List(c echo.Context) error {
	return h.list(c, c.QueryParams())
}

// TopCheapest handles GET /api/v1/tours/top-5-cheapest.
//
// @Summary      The five best rated, cheapest tours
// @Tags         tours
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response
// @Router       /api/v1/tours/top-5-cheapest [get]
func (h *TourHandler) TopCheapest(c echo.Context) error {
	params := url.Values{}
	for k, v := range c.QueryParams() {
		params[k] = v
	}
	for k, v := range topCheapest {
		params[k] = v
	}
	return h.list(c, params)
}

func (h *TourHandler) list(c echo.Context, params url.Values) error {
	tours, err := h.service.List(c.Request().Context(), query.FromParams(params))
	if err != nil {
		return err
	}
	return many(c, tours)
}

// Get handles GET /api/v1/tours/:id.
//
// @Summary      Get a tour with its reviews
// @Tags         tours
// @Produce      json
// @Param        id   path      string  true  "Tour id"
// @Success      200  {object}  response
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /api/v1/tours/{id} [get]
func (h *TourHandler) Get(c echo.Context) error {
	tour, err := h.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return one(c, http.StatusOK, tour)
}

// Create handles POST /api/v1/tours.
//
// @Summary      Create a tour
// @Tags         tours
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      tourRequest  true  "Tour"
// @Success      201   {object}  response
// @Failure      400   {object}  errorResponse
// @Router       /api/v1/tours [post]
func (h *TourHandler) Create(c echo.Context) error {
	var req tourRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	sanitize.InPlace(&req.Name, &req.Summary, &req.Description)

	tour, err := h.service.Create(c.Request().Context(), &domain.Tour{
		Name:          req.Name,
		Duration:      req.Duration,
		MaxGroupSize:  req.MaxGroupSize,
		Difficulty:    req.Difficulty,
		Price:         req.Price,
		PriceDiscount: req.PriceDiscount,
		Summary:       req.Summary,
		Description:   req.Description,
		ImageCover:    req.ImageCover,
		Images:        req.Images,
		StartDates:    req.StartDates,
		SecretTour:    req.SecretTour,
		StartLocation: req.StartLocation,
		Locations:     req.Locations,
		Guides:        req.Guides,
	})
	if err != nil {
		return err
	}
	return one(c, http.StatusCreated, tour)
}

// Update handles PATCH /api/v1/tours/:id. A multipart request uploads the
// "imageCover" and up to three "images" instead of JSON fields.
//
// @Summary      Update a tour or upload its images
// @Tags         tours
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        id          path      string             true   "Tour id"
// @Param        body        body      updateTourRequest  false  "Fields to change"
// @Param        imageCover  formData  file               false  "Cover image"
// @Param        images      formData  file               false  "Gallery images (max 3)"
// @Success      200         {object}  response
// @Failure      400         {object}  errorResponse
// @Failure      404         {object}  errorResponse
// @Router       /api/v1/tours/{id} [patch]
func (h *TourHandler) Update(c echo.Context) error {
	var (
		patch domain.TourPatch
		err   error
	)
	if isMultipart(c) {
		patch, err = h.uploadImages(c)
	} else {
		patch, err = bindTourPatch(c)
	}
	if err != nil {
		return err
	}

	tour, err := h.service.Update(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	return one(c, http.StatusOK, tour)
}

func bindTourPatch(c echo.Context) (domain.TourPatch, error) {
	var req updateTourRequest
	if err := bindAndValidate(c, &req); err != nil {
		return domain.TourPatch{}, err
	}
	sanitize.InPlace(req.Name, req.Summary, req.Description)
	return domain.TourPatch{
		Name:          req.Name,
		Duration:      req.Duration,
		MaxGroupSize:  req.MaxGroupSize,
		Difficulty:    req.Difficulty,
		Price:         req.Price,
		PriceDiscount: req.PriceDiscount,
		Summary:       req.Summary,
		Description:   req.Description,
		ImageCover:    req.ImageCover,
		Images:        req.Images,
		StartDates:    req.StartDates,
		SecretTour:    req.SecretTour,
		Guides:        req.Guides,
	}, nil
}

func (h *TourHandler) uploadImages(c echo.Context) (domain.TourPatch, error) {
	id, err := idParam(c, "id")
	if err != nil {
		return domain.TourPatch{}, err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return domain.TourPatch{}, echo.NewHTTPError(http.StatusBadRequest, "Invalid upload").SetInternal(err)
	}

	var cover io.Reader
	if fhs := form.File["imageCover"]; len(fhs) > 0 {
		f, err := openImage(fhs[0])
		if err != nil {
			return domain.TourPatch{}, err
		}
		defer f.Close()
		cover = f
	}
	files, err := openImages(form.File["images"])
	if err != nil {
		return domain.TourPatch{}, err
	}
	defer closeAll(files)
	if cover == nil && len(files) == 0 {
		return domain.TourPatch{}, nil
	}

	readers := make([]io.Reader, len(files))
	for i, f := range files {
		readers[i] = f
	}
	start := time.Now()
	coverName, names, err := h.images.TourImages(c.Request().Context(), id.Hex(), cover, readers)
	metrics.ImageProcessingDuration.WithLabelValues("tour").Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.TourPatch{}, err
	}

	var patch domain.TourPatch
	if coverName != "" {
		patch.ImageCover = &coverName
	}
	if len(names) > 0 {
		patch.Images = names
	}
	return patch, nil
}

// Delete handles DELETE /api/v1/tours/:id.
//
// @Summary      Delete a tour
// @Tags         tours
// @Security     BearerAuth
// @Param        id   path  string  true  "Tour id"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /api/v1/tours/{id} [delete]
func (h *TourHandler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return deleted(c)
}

// Stats handles GET /api/v1/tours/stats.
//
// @Summary      Rating and price statistics per difficulty
// @Tags         tours
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response
// @Router       /api/v1/tours/stats [get]
func (h *TourHandler) Stats(c echo.Context) error {
	stats, err := h.service.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, response{Status: statusSuccess, Data: map[string]any{"stats": stats}})
}

// MonthlyPlan handles GET /api/v1/tours/monthly-plan/:year.
//
// @Summary      Tour starts per month of a year
// @Tags         tours
// @Produce      json
// @Security     BearerAuth
// @Param        year  path      int  true  "Calendar year"
// @Success      200   {object}  response
// @Failure      400   {object}  errorResponse
// @Router       /api/v1/tours/monthly-plan/{year} [get]
func (h *TourHandler) MonthlyPlan(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return domain.NewError(http.StatusBadRequest, "Please provide a valid year.")
	}
	plan, err := h.service.MonthlyPlan(c.Request().Context(), year)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, response{Status: statusSuccess, Data: map[string]any{"plan": plan}})
}

// Within handles GET /api/v1/tours/tours-within/:distance/center/:latlng/unit/:unit.
//
// @Summary      Tours starting within a distance of a point
// @Tags         tours
// @Produce      json
// @Param        distance  path      number  true  "Radius"
// @Param        latlng    path      string  true  "Centre as lat,lng"
// @Param        unit      path      string  true  "mi or km"
// @Success      200       {object}  response
// @Failure      400       {object}  errorResponse
// @Router       /api/v1/tours/tours-within/{distance}/center/{latlng}/unit/{unit} [get]
func (h *TourHandler) Within(c echo.Context) error {
	distance, err := strconv.ParseFloat(c.Param("distance"), 64)
	if err != nil {
		return domain.NewError(http.StatusBadRequest, "Please provide a positive distance.")
	}
	tours, err := h.service.Within(c.Request().Context(), distance, c.Param("latlng"), domain.DistanceUnit(c.Param("unit")))
	if err != nil {
		return err
	}
	return many(c, tours)
}

// Distances handles GET /api/v1/tours/distances/:latlng/unit/:unit.
//
// @Summary      Distance from a point to every tour start
// @Tags         tours
// @Produce      json
// @Param        latlng  path      string  true  "Origin as lat,lng"
// @Param        unit    path      string  true  "mi or km"
// @Success      200     {object}  response
// @Failure      400     {object}  errorResponse
// @Router       /api/v1/tours/distances/{latlng}/unit/{unit} [get]
func (h *TourHandler) Distances(c echo.Context) error {
	distances, err := h.service.Distances(c.Request().Context(), c.Param("latlng"), domain.DistanceUnit(c.Param("unit")))
	if err != nil {
		return err
	}
	return many(c, distances)
}
