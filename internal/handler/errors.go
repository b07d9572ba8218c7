package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/geo-dashboard/internal/analysis/movement"
	"github.com/jengzang/geo-dashboard/internal/dataset"
	"github.com/jengzang/geo-dashboard/internal/repository"
	"github.com/jengzang/geo-dashboard/internal/service"
	"github.com/jengzang/geo-dashboard/pkg/response"
)

// statusOf maps service errors to HTTP status codes.
func statusOf(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrNoData),
		errors.Is(err, service.ErrNoDistricts),
		errors.Is(err, repository.ErrTripNotFound):
		return http.StatusNotFound
	case errors.Is(err, movement.ErrNoEdges),
		errors.Is(err, movement.ErrUnknownMetric),
		errors.Is(err, service.ErrUnknownMethod),
		errors.Is(err, service.ErrNoMethod),
		errors.Is(err, service.ErrUnknownLayer),
		errors.Is(err, dataset.ErrInvalidData):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail records err on the context for the request log and sends the envelope.
func fail(c *gin.Context, message string, err error) {
	_ = c.Error(err)
	response.Error(c, statusOf(err), message, err)
}
