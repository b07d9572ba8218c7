package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jengzang/geo-dashboard/internal/models"
)

const defaultRunLimit = 50

// RunRepository handles the analysis run log
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run
func (r *RunRepository) Create(ctx context.Context, run *models.AnalysisRun) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO analysis_runs
		(id, analyzer, status, dataset_version, params_json, result_summary, timings_json,
		 error_message, cache_hit, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Analyzer, run.Status, run.DatasetVersion, run.ParamsJSON, run.ResultSummary,
		run.TimingsJSON, run.ErrorMessage, run.CacheHit, run.StartedAt.UnixNano(), nanos(run.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to create analysis run: %w", err)
	}
	return nil
}

// Finish stores the final status of a run
func (r *RunRepository) Finish(ctx context.Context, run *models.AnalysisRun) error {
	_, err := r.db.ExecContext(ctx, `UPDATE analysis_runs
		SET status = ?, result_summary = ?, timings_json = ?, error_message = ?, cache_hit = ?, completed_at = ?
		WHERE id = ?`,
		run.Status, run.ResultSummary, run.TimingsJSON, run.ErrorMessage, run.CacheHit, nanos(run.CompletedAt), run.ID)
	if err != nil {
		return fmt.Errorf("failed to update analysis run: %w", err)
	}
	return nil
}

// List returns runs matching the filter, newest first
func (r *RunRepository) List(ctx context.Context, filter models.RunFilter) ([]models.AnalysisRun, error) {
	query := `SELECT id, analyzer, status, dataset_version, params_json, result_summary, timings_json,
		error_message, cache_hit, started_at, completed_at FROM analysis_runs`

	var conditions []string
	var args []interface{}
	if filter.Analyzer != "" {
		conditions = append(conditions, "analyzer = ?")
		args = append(args, filter.Analyzer)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultRunLimit
	}
	query += " ORDER BY started_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []models.AnalysisRun
	for rows.Next() {
		var run models.AnalysisRun
		var params, summary, timings, errMsg sql.NullString
		var started int64
		var completed sql.NullInt64
		if err := rows.Scan(&run.ID, &run.Analyzer, &run.Status, &run.DatasetVersion, &params, &summary,
			&timings, &errMsg, &run.CacheHit, &started, &completed); err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		run.ParamsJSON = params.String
		run.ResultSummary = summary.String
		run.TimingsJSON = timings.String
		run.ErrorMessage = errMsg.String
		run.StartedAt = time.Unix(0, started).UTC()
		if completed.Valid {
			t := time.Unix(0, completed.Int64).UTC()
			run.CompletedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func nanos(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}
