package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/natours/booking-api/internal/core/domain"
)

// isMultipart reports whether the request carries a multipart form.
func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// formImage opens the single file uploaded under field. A missing file is
// not an error: the returned reader is nil.
func formImage(c echo.Context, field string) (io.ReadCloser, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid upload").SetInternal(err)
	}
	return openImage(fh)
}

func openImage(fh *multipart.FileHeader) (io.ReadCloser, error) {
	if !strings.HasPrefix(fh.Header.Get(echo.HeaderContentType), "image/") {
		return nil, domain.ErrNotAnImage
	}
	f, err := fh.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid upload").SetInternal(err)
	}
	return f, nil
}

// openImages opens every file in fhs. On failure the files opened so far
// are closed.
func openImages(fhs []*multipart.FileHeader) ([]io.ReadCloser, error) {
	out := make([]io.ReadCloser, 0, len(fhs))
	for _, fh := range fhs {
		f, err := openImage(fh)
		if err != nil {
			closeAll(out)
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func closeAll(files []io.ReadCloser) {
	for _, f := range files {
		_ = f.Close()
	}
}
