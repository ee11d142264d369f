package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const statusSuccess = "success"

// response is the success envelope of every JSON endpoint.
type response struct {
	Status  string `json:"status"`
	Results *int   `json:"results,omitempty"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// document wraps a single resource or list under data.data.
type document[T any] struct {
	Data T `json:"data"`
}

// errorResponse documents the failure envelope written by the error handler.
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func one[T any](c echo.Context, code int, v T) error {
	return c.JSON(code, response{Status: statusSuccess, Data: document[T]{Data: v}})
}

func many[T any](c echo.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	return c.JSON(http.StatusOK, response{Status: statusSuccess, Results: &n, Data: document[[]T]{Data: items}})
}

func deleted(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}
