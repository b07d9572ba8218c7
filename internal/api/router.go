package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/geo-dashboard/internal/auth"
	"github.com/jengzang/geo-dashboard/internal/config"
	"github.com/jengzang/geo-dashboard/internal/handler"
	"github.com/jengzang/geo-dashboard/internal/middleware"
	"github.com/jengzang/geo-dashboard/internal/service"
	"github.com/jengzang/geo-dashboard/internal/telemetry"
	"github.com/jengzang/geo-dashboard/internal/web"
)

// Dependencies are the collaborators wired into the router
type Dependencies struct {
	// Settings returns the current configuration snapshot
	Settings func() *config.Config
	Metrics  *telemetry.Metrics
	// Limiter is nil when rate limiting is disabled
	Limiter  *middleware.RateLimiter
	Dataset  *service.DatasetService
	Analysis *service.AnalysisService
	Maps     *service.MapService
}

// SetupRouter 设置路由
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logger(), middleware.Metrics(deps.Metrics))

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Correlation-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "ok", "message": "Geo dashboard API is running"}
		if info, err := deps.Dataset.Info(); err == nil {
			status["dataset_version"] = info.Version
		}
		c.JSON(http.StatusOK, status)
	})

	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	// 仪表盘页面
	r.GET("/", gin.WrapH(web.Handler()))

	datasetHandler := handler.NewDatasetHandler(deps.Dataset, func() config.DataConfig { return deps.Settings().Data })
	tripHandler := handler.NewTripHandler(deps.Dataset, deps.Analysis)
	analysisHandler := handler.NewAnalysisHandler(deps.Analysis)
	mapHandler := handler.NewMapHandler(deps.Maps)

	admin := middleware.RequireRole(func() string { return deps.Settings().Auth.JWTSecret }, auth.RoleAdmin)

	// API 路由组
	api := r.Group("/api/v1")
	if deps.Limiter != nil {
		api.Use(middleware.RateLimit(deps.Limiter, deps.Metrics))
	}
	{
		// 数据集
		api.GET("/dataset", datasetHandler.GetDataset)
		api.POST("/dataset/reload", admin, datasetHandler.ReloadDataset)
		api.POST("/dataset/upload", admin, datasetHandler.UploadDataset)

		// 行程
		api.GET("/trips", tripHandler.GetTrips)
		api.GET("/trips/:id", tripHandler.GetTripByID)
		api.GET("/trips/:id/gpx", tripHandler.GetTripGPX)
		api.GET("/metrics/trips", tripHandler.GetTripMetrics)

		// 性能对比
		api.GET("/performance", analysisHandler.GetPerformance)

		// 移动图分析
		api.GET("/graph", analysisHandler.GetGraph)
		api.GET("/graph/top", analysisHandler.GetTopAreas)

		// 公交路线
		api.GET("/routes", analysisHandler.GetRoutes)
		api.GET("/routes/summary", analysisHandler.GetRouteSummary)
		api.GET("/routes/geojson", mapHandler.GetRoutesGeoJSON)

		// 行政区
		api.GET("/districts", datasetHandler.GetDistricts)
		api.GET("/districts/geojson", mapHandler.GetDistrictsGeoJSON)

		// 地图图层
		api.GET("/map/layers", mapHandler.GetLayers)

		api.GET("/runs", analysisHandler.GetRuns)
	}

	return r
}
