package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bluele/gcache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jengzang/geo-dashboard/internal/analysis"
	"github.com/jengzang/geo-dashboard/internal/analysis/busroute"
	"github.com/jengzang/geo-dashboard/internal/analysis/movement"
	"github.com/jengzang/geo-dashboard/internal/analysis/tripmetrics"
	"github.com/jengzang/geo-dashboard/internal/config"
	"github.com/jengzang/geo-dashboard/internal/models"
	"github.com/jengzang/geo-dashboard/internal/telemetry"
)

var (
	// ErrUnknownMethod is returned for a metrics method other than
	// traditional or columnar.
	ErrUnknownMethod = errors.New("unknown metrics method")
	// ErrNoMethod is returned when a comparison selects no method.
	ErrNoMethod = errors.New("select at least one method")
)

// AnalysisService runs the analyzers on the current dataset snapshot. Results
// are cached per dataset version and parameters; the snapshot is immutable
// between loads so a cached result equals a recomputation.
type AnalysisService struct {
	data     *DatasetService
	settings config.AnalysisSettings
	cache    gcache.Cache
	tracker  *analysis.Tracker
	metrics  *telemetry.Metrics
}

// NewAnalysisService creates a new analysis service. metrics may be nil.
func NewAnalysisService(data *DatasetService, settings config.AnalysisSettings, cacheCfg config.CacheConfig,
	tracker *analysis.Tracker, metrics *telemetry.Metrics) *AnalysisService {
	size := cacheCfg.Size
	if size < 1 {
		size = 1
	}
	builder := gcache.New(size).LRU()
	if cacheCfg.TTL > 0 {
		builder = builder.Expiration(cacheCfg.TTL)
	}
	return &AnalysisService{
		data:     data,
		settings: settings,
		cache:    builder.Build(),
		tracker:  tracker,
		metrics:  metrics,
	}
}

type outcome struct {
	value   interface{}
	summary interface{}
	timings models.Timings
}

type computeFunc func(ctx context.Context, points []models.GPSPoint) (outcome, error)

// run executes one analyzer with run tracking, tracing and, when cacheable,
// the result cache.
func (s *AnalysisService) run(ctx context.Context, analyzer string, params interface{}, cacheable bool, compute computeFunc) (interface{}, error) {
	points, version, err := s.data.Snapshot()
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "analysis."+analyzer,
		attribute.String("analysis.analyzer", analyzer),
		attribute.Int64("dataset.version", version),
	)
	defer span.End()

	run := s.tracker.MarkRunning(ctx, analyzer, version, params)

	key := cacheKey(analyzer, version, params)
	if cacheable {
		if cached, err := s.cache.Get(key); err == nil {
			s.recordCache(true)
			span.SetAttributes(attribute.Bool("analysis.cache_hit", true))
			out := cached.(outcome)
			s.tracker.MarkCompleted(ctx, run, out.summary, out.timings, true)
			return out.value, nil
		}
		s.recordCache(false)
	}

	out, err := compute(ctx, points)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.tracker.MarkFailed(ctx, run, err)
		return nil, err
	}

	if cacheable {
		_ = s.cache.Set(key, out)
	}
	s.tracker.MarkCompleted(ctx, run, out.summary, out.timings, false)
	return out.value, nil
}

func (s *AnalysisService) recordCache(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordCache(hit)
	}
}

func cacheKey(analyzer string, version int64, params interface{}) string {
	b, _ := json.Marshal(params)
	return fmt.Sprintf("%s:%d:%s", analyzer, version, b)
}

func elapsed(start time.Time) models.Timings {
	return models.Timings{models.StageTotal: time.Since(start).Seconds()}
}

type metricsResult struct {
	Metrics []models.TripMetric
	Timings models.Timings
}

// TripMetrics computes per-trip distance, duration and speed with method
// ("traditional" or "columnar", default columnar).
func (s *AnalysisService) TripMetrics(ctx context.Context, method string) ([]models.TripMetric, models.Timings, error) {
	if method == "" {
		method = tripmetrics.MethodColumnar
	}
	if method != tripmetrics.MethodColumnar && method != tripmetrics.MethodTraditional {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
	workers := s.settings.Analysis().Workers
	params := map[string]interface{}{"method": method}

	v, err := s.run(ctx, models.AnalyzerTripMetrics, params, true, func(ctx context.Context, points []models.GPSPoint) (outcome, error) {
		var res metricsResult
		if method == tripmetrics.MethodTraditional {
			res.Metrics, res.Timings = tripmetrics.Traditional(points)
		} else {
			res.Metrics, res.Timings = tripmetrics.Columnar(points, workers)
		}
		return outcome{value: res, summary: map[string]int{"trips": len(res.Metrics)}, timings: res.Timings}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	res := v.(metricsResult)
	return res.Metrics, res.Timings, nil
}

// TripMetric returns the metrics of one trip, nil for a single-point trip.
func (s *AnalysisService) TripMetric(ctx context.Context, tripID int64) (*models.TripMetric, error) {
	all, _, err := s.TripMetrics(ctx, tripmetrics.MethodColumnar)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].TripID == tripID {
			m := all[i]
			return &m, nil
		}
	}
	return nil, nil
}

// Performance times the selected methods on the current dataset. Benchmarks
// are never served from the cache.
func (s *AnalysisService) Performance(ctx context.Context, traditional, columnar bool) (*models.PerformanceComparison, error) {
	if !traditional && !columnar {
		return nil, ErrNoMethod
	}
	workers := s.settings.Analysis().Workers
	params := map[string]interface{}{"traditional": traditional, "columnar": columnar, "workers": workers}

	v, err := s.run(ctx, models.AnalyzerPerformance, params, false, func(ctx context.Context, points []models.GPSPoint) (outcome, error) {
		cmp := tripmetrics.Compare(points, traditional, columnar, workers)
		timings := models.Timings{}
		if cmp.Traditional != nil {
			timings["traditional_total"] = cmp.Traditional.Timings[models.StageTotal]
		}
		if cmp.Columnar != nil {
			timings["columnar_total"] = cmp.Columnar.Timings[models.StageTotal]
		}
		summary := map[string]interface{}{"speedup": cmp.Speedup}
		if cmp.Identical != nil {
			summary["identical"] = *cmp.Identical
		}
		return outcome{value: cmp, summary: summary, timings: timings}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.PerformanceComparison), nil
}

// MovementOptions returns the current clustering and graph parameters.
func (s *AnalysisService) MovementOptions() movement.Options {
	a := s.settings.Analysis()
	return movement.Options{
		Eps:        a.DBSCANEps,
		MinSamples: a.DBSCANMinSamples,
		Damping:    a.PageRankDamping,
		Tolerance:  a.PageRankTolerance,
		Resolution: a.LouvainResolution,
		Seed:       a.LouvainSeed,
	}
}

// MovementGraph clusters the points and analyses the movement graph.
func (s *AnalysisService) MovementGraph(ctx context.Context) (*movement.Result, error) {
	opts := s.MovementOptions()

	v, err := s.run(ctx, models.AnalyzerMovement, opts, true, func(ctx context.Context, points []models.GPSPoint) (outcome, error) {
		start := time.Now()
		res, err := movement.AnalyzeMovementPatterns(points, opts)
		if err != nil {
			return outcome{}, err
		}
		summary := map[string]interface{}{
			"clusters":    res.ClusterCount,
			"edges":       len(res.Edges),
			"communities": res.CommunityCount,
			"modularity":  res.Modularity,
		}
		return outcome{value: res, summary: summary, timings: elapsed(start)}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*movement.Result), nil
}

// TopAreas ranks the movement graph nodes by metric. n <= 0 selects the
// configured default.
func (s *AnalysisService) TopAreas(ctx context.Context, metric string, n int) ([]movement.AreaScore, error) {
	if n <= 0 {
		n = s.settings.Analysis().TopN
	}
	if !movement.ValidMetric(metric) {
		return nil, fmt.Errorf("%w: %q", movement.ErrUnknownMetric, metric)
	}
	res, err := s.MovementGraph(ctx)
	if err != nil {
		return nil, err
	}
	return movement.TopAreas(res, metric, n)
}

// Routes attributes the start and end of every trip to a district.
func (s *AnalysisService) Routes(ctx context.Context) ([]models.RouteAnalysis, error) {
	idx, districtsVersion, err := s.data.DistrictIndex()
	if err != nil {
		return nil, err
	}
	params := map[string]int64{"districts_version": districtsVersion, "polygons": int64(idx.Len())}

	v, err := s.run(ctx, models.AnalyzerBusRoutes, params, true, func(ctx context.Context, points []models.GPSPoint) (outcome, error) {
		start := time.Now()
		routes := busroute.AnalyzeRoutes(points, idx)
		return outcome{value: routes, summary: map[string]int{"routes": len(routes)}, timings: elapsed(start)}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.RouteAnalysis), nil
}

// RouteSummary counts routes per (start, end) district pair.
func (s *AnalysisService) RouteSummary(ctx context.Context) ([]models.RouteSummary, error) {
	routes, err := s.Routes(ctx)
	if err != nil {
		return nil, err
	}
	return busroute.Summarize(routes), nil
}

// Runs lists the recorded analysis runs.
func (s *AnalysisService) Runs(ctx context.Context, filter models.RunFilter) ([]models.AnalysisRun, error) {
	return s.tracker.List(ctx, filter)
}
