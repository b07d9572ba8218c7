package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/geo-dashboard/internal/analysis/movement"
	"github.com/jengzang/geo-dashboard/internal/models"
	"github.com/jengzang/geo-dashboard/internal/service"
	"github.com/jengzang/geo-dashboard/pkg/response"
)

// AnalysisHandler handles HTTP requests for the graph, route and
// performance analyses
type AnalysisHandler struct {
	service *service.AnalysisService
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{service: service}
}

func boolQuery(c *gin.Context, key string, def bool) (bool, bool) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return def, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid "+key+" parameter", err)
		return false, false
	}
	return v, true
}

// GetPerformance handles GET /api/v1/performance?traditional=&columnar=
func (h *AnalysisHandler) GetPerformance(c *gin.Context) {
	traditional, ok := boolQuery(c, "traditional", true)
	if !ok {
		return
	}
	columnar, ok := boolQuery(c, "columnar", true)
	if !ok {
		return
	}

	cmp, err := h.service.Performance(c.Request.Context(), traditional, columnar)
	if err != nil {
		fail(c, "Failed to compare methods", err)
		return
	}
	response.Success(c, cmp)
}

// GetGraph handles GET /api/v1/graph
func (h *AnalysisHandler) GetGraph(c *gin.Context) {
	res, err := h.service.MovementGraph(c.Request.Context())
	if err != nil {
		fail(c, "Failed to analyze movement graph", err)
		return
	}
	response.Success(c, gin.H{
		"options": h.service.MovementOptions(),
		"result":  res,
	})
}

// GetTopAreas handles GET /api/v1/graph/top?metric=&n=
func (h *AnalysisHandler) GetTopAreas(c *gin.Context) {
	metric := c.DefaultQuery("metric", movement.MetricPageRank)
	n := 0
	if raw := c.Query("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			response.BadRequest(c, "n must be a positive integer")
			return
		}
		n = v
	}

	top, err := h.service.TopAreas(c.Request.Context(), metric, n)
	if err != nil {
		fail(c, "Failed to rank areas", err)
		return
	}
	response.Success(c, gin.H{
		"metric": metric,
		"areas":  top,
	})
}

// GetRoutes handles GET /api/v1/routes
func (h *AnalysisHandler) GetRoutes(c *gin.Context) {
	routes, err := h.service.Routes(c.Request.Context())
	if err != nil {
		fail(c, "Failed to analyze bus routes", err)
		return
	}
	response.Success(c, gin.H{
		"routes": routes,
		"total":  len(routes),
	})
}

// GetRouteSummary handles GET /api/v1/routes/summary
func (h *AnalysisHandler) GetRouteSummary(c *gin.Context) {
	summary, err := h.service.RouteSummary(c.Request.Context())
	if err != nil {
		fail(c, "Failed to summarize bus routes", err)
		return
	}
	response.Success(c, summary)
}

// GetRuns handles GET /api/v1/runs
func (h *AnalysisHandler) GetRuns(c *gin.Context) {
	var filter models.RunFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	runs, err := h.service.Runs(c.Request.Context(), filter)
	if err != nil {
		fail(c, "Failed to list analysis runs", err)
		return
	}
	response.Success(c, runs)
}
