package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jengzang/geo-dashboard/internal/analysis"
	"github.com/jengzang/geo-dashboard/internal/api"
	"github.com/jengzang/geo-dashboard/internal/config"
	"github.com/jengzang/geo-dashboard/internal/database"
	"github.com/jengzang/geo-dashboard/internal/logger"
	"github.com/jengzang/geo-dashboard/internal/middleware"
	"github.com/jengzang/geo-dashboard/internal/repository"
	"github.com/jengzang/geo-dashboard/internal/service"
	"github.com/jengzang/geo-dashboard/internal/telemetry"
)

func main() {
	configFile := flag.String("config", "", "path to the config file")
	flag.Parse()

	// 加载配置
	manager, err := config.Load(*configFile)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	cfg := manager.Current()

	l, err := logger.Init(cfg.Observability)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer l.Sync()

	shutdownTracing, err := telemetry.InitTracing(cfg.Observability)
	if err != nil {
		l.Warn("Tracing disabled", zap.Error(err))
	}

	// 初始化数据库
	if err := database.Init(database.Config{Path: cfg.Database.Path}); err != nil {
		l.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()
	db := database.GetDB()

	metrics := telemetry.NewMetrics()
	tracker := analysis.NewTracker(repository.NewRunRepository(db), metrics)
	dataset := service.NewDatasetService(repository.NewGPSRepository(db), metrics)
	analyses := service.NewAnalysisService(dataset, manager, cfg.Cache, tracker, metrics)
	maps := service.NewMapService(dataset, analyses, manager)

	ctx := context.Background()
	if cfg.Data.GPSPath != "" {
		if _, err := dataset.LoadFile(ctx, cfg.Data.GPSPath); err != nil {
			l.Warn("GPS dataset not loaded", zap.String("path", cfg.Data.GPSPath), zap.Error(err))
		}
	}
	if cfg.Data.DistrictsPath != "" {
		if err := dataset.LoadDistricts(ctx, cfg.Data.DistrictsPath); err != nil {
			l.Warn("Districts not loaded", zap.String("path", cfg.Data.DistrictsPath), zap.Error(err))
		}
	}

	stop := make(chan struct{})
	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window)
		go limiter.Run(stop)
	}

	manager.Watch(func(next *config.Config, err error) {
		if err != nil {
			l.Error("Config reload failed", zap.Error(err))
			return
		}
		l.Info("Config reloaded", zap.Any("analysis", next.Analysis))
	})

	gin.SetMode(cfg.Server.Mode)

	// 初始化路由
	router := api.SetupRouter(api.Dependencies{
		Settings: manager.Current,
		Metrics:  metrics,
		Limiter:  limiter,
		Dataset:  dataset,
		Analysis: analyses,
		Maps:     maps,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 启动服务器
	go func() {
		l.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	l.Info("Shutting down server")
	close(stop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		l.Warn("Tracer shutdown failed", zap.Error(err))
	}
}
