// Package analysis holds the bookkeeping shared by the analyzers: every run
// is recorded in the analysis_runs table and in the Prometheus metrics.
package analysis

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/jengzang/geo-dashboard/internal/logger"
	"github.com/jengzang/geo-dashboard/internal/models"
	"github.com/jengzang/geo-dashboard/internal/repository"
	"github.com/jengzang/geo-dashboard/internal/telemetry"
)

// Tracker records analyzer runs. Bookkeeping failures are logged and never
// fail the analysis itself.
type Tracker struct {
	runs    *repository.RunRepository
	metrics *telemetry.Metrics
	now     func() time.Time
}

// NewTracker creates a tracker. metrics may be nil.
func NewTracker(runs *repository.RunRepository, metrics *telemetry.Metrics) *Tracker {
	return &Tracker{runs: runs, metrics: metrics, now: time.Now}
}

// MarkRunning inserts a running record for analyzer.
func (t *Tracker) MarkRunning(ctx context.Context, analyzer string, datasetVersion int64, params interface{}) *models.AnalysisRun {
	run := &models.AnalysisRun{
		ID:             logger.NewCorrelationID(),
		Analyzer:       analyzer,
		Status:         models.RunStatusRunning,
		DatasetVersion: datasetVersion,
		ParamsJSON:     encode(params),
		StartedAt:      t.now().UTC(),
	}
	if err := t.runs.Create(ctx, run); err != nil {
		logger.FromContext(ctx).Warn("Failed to record analysis run", zap.String("analyzer", analyzer), zap.Error(err))
	}
	return run
}

// MarkCompleted stores the summary and stage timings of a finished run.
func (t *Tracker) MarkCompleted(ctx context.Context, run *models.AnalysisRun, summary interface{}, timings models.Timings, cacheHit bool) {
	run.Status = models.RunStatusCompleted
	run.ResultSummary = encode(summary)
	run.TimingsJSON = encode(timings)
	run.CacheHit = cacheHit
	t.finish(ctx, run)

	if t.metrics != nil {
		t.metrics.RecordRun(run.Analyzer, run.Status)
		if !cacheHit {
			t.metrics.RecordStages(run.Analyzer, timings)
		}
	}
}

// MarkFailed stores the error of a failed run.
func (t *Tracker) MarkFailed(ctx context.Context, run *models.AnalysisRun, err error) {
	run.Status = models.RunStatusFailed
	run.ErrorMessage = err.Error()
	t.finish(ctx, run)

	if t.metrics != nil {
		t.metrics.RecordRun(run.Analyzer, run.Status)
	}
	logger.FromContext(ctx).Error("Analysis failed",
		zap.String("analyzer", run.Analyzer),
		zap.String("run_id", run.ID),
		zap.Error(err),
	)
}

func (t *Tracker) finish(ctx context.Context, run *models.AnalysisRun) {
	done := t.now().UTC()
	run.CompletedAt = &done
	if err := t.runs.Finish(ctx, run); err != nil {
		logger.FromContext(ctx).Warn("Failed to update analysis run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// List returns recorded runs.
func (t *Tracker) List(ctx context.Context, filter models.RunFilter) ([]models.AnalysisRun, error) {
	return t.runs.List(ctx, filter)
}

func encode(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
