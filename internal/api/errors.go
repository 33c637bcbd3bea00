package api

import (
	"errors"
	"net/http"

	"github.com/bobmcallan/mediaqueue/internal/task"
)

// errorToStatus maps task package sentinel errors to HTTP status codes,
// the idiomatic-Go equivalent of the original Rust implementation's
// error::AppError enum-to-response mapping.
func errorToStatus(err error) int {
	switch {
	case errors.Is(err, task.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, task.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, task.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}
