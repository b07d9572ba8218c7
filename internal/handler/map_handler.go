package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/geo-dashboard/internal/service"
	"github.com/jengzang/geo-dashboard/pkg/response"
)

// MapHandler handles HTTP requests for map layers and GeoJSON exports
type MapHandler struct {
	service *service.MapService
}

// NewMapHandler creates a new map handler
func NewMapHandler(service *service.MapService) *MapHandler {
	return &MapHandler{service: service}
}

// GetLayers handles GET /api/v1/map/layers?layers=a,b&trip=
func (h *MapHandler) GetLayers(c *gin.Context) {
	var req service.MapRequest
	for _, name := range strings.Split(c.Query("layers"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			req.Layers = append(req.Layers, name)
		}
	}
	if raw := c.Query("trip"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "Invalid trip ID", err)
			return
		}
		req.TripID = id
	}

	deck, err := h.service.Deck(c.Request.Context(), req)
	if err != nil {
		fail(c, "Failed to build map", err)
		return
	}
	response.Success(c, deck)
}

// GetDistrictsGeoJSON handles GET /api/v1/districts/geojson
func (h *MapHandler) GetDistrictsGeoJSON(c *gin.Context) {
	fc, err := h.service.DistrictsGeoJSON()
	if err != nil {
		fail(c, "Failed to export districts", err)
		return
	}
	c.JSON(http.StatusOK, fc)
}

// GetRoutesGeoJSON handles GET /api/v1/routes/geojson
func (h *MapHandler) GetRoutesGeoJSON(c *gin.Context) {
	fc, err := h.service.RoutesGeoJSON(c.Request.Context())
	if err != nil {
		fail(c, "Failed to export routes", err)
		return
	}
	c.JSON(http.StatusOK, fc)
}
