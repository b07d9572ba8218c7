package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/geo-dashboard/internal/models"
	"github.com/jengzang/geo-dashboard/internal/service"
	"github.com/jengzang/geo-dashboard/pkg/response"
)

// TripHandler handles HTTP requests for trips and their metrics
type TripHandler struct {
	data     *service.DatasetService
	analysis *service.AnalysisService
}

// NewTripHandler creates a new trip handler
func NewTripHandler(data *service.DatasetService, analysis *service.AnalysisService) *TripHandler {
	return &TripHandler{data: data, analysis: analysis}
}

// GetTrips handles GET /api/v1/trips
func (h *TripHandler) GetTrips(c *gin.Context) {
	trips, err := h.data.Trips(c.Request.Context())
	if err != nil {
		fail(c, "Failed to get trips", err)
		return
	}
	response.Success(c, gin.H{
		"trips": trips,
		"total": len(trips),
	})
}

func tripID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid trip ID", err)
		return 0, false
	}
	return id, true
}

// GetTripByID handles GET /api/v1/trips/:id
func (h *TripHandler) GetTripByID(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	points, err := h.data.TripPoints(ctx, id)
	if err != nil {
		fail(c, "Failed to get trip", err)
		return
	}
	metric, err := h.analysis.TripMetric(ctx, id)
	if err != nil {
		fail(c, "Failed to compute trip metrics", err)
		return
	}

	response.Success(c, models.TripDetail{
		TripSummary: models.TripSummary{
			TripID:     id,
			PointCount: len(points),
			StartTime:  points[0].Timestamp,
			EndTime:    points[len(points)-1].Timestamp,
		},
		Metric: metric,
		Points: points,
	})
}

// GetTripGPX handles GET /api/v1/trips/:id/gpx
func (h *TripHandler) GetTripGPX(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.data.WriteTripGPX(c.Request.Context(), &buf, id); err != nil {
		fail(c, "Failed to export trip", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="trip_%d.gpx"`, id))
	c.Data(http.StatusOK, "application/gpx+xml", buf.Bytes())
}

// GetTripMetrics handles GET /api/v1/metrics/trips?method=
func (h *TripHandler) GetTripMetrics(c *gin.Context) {
	method := c.Query("method")
	metrics, timings, err := h.analysis.TripMetrics(c.Request.Context(), method)
	if err != nil {
		fail(c, "Failed to compute trip metrics", err)
		return
	}
	response.Success(c, gin.H{
		"metrics": metrics,
		"timings": timings,
		"total":   len(metrics),
	})
}
