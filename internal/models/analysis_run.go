package models

import "time"

// AnalysisRun records one execution of an analyzer in the current session
type AnalysisRun struct {
	ID             string     `json:"id" db:"id"`
	Analyzer       string     `json:"analyzer" db:"analyzer"`
	Status         string     `json:"status" db:"status"`
	DatasetVersion int64      `json:"dataset_version" db:"dataset_version"`
	ParamsJSON     string     `json:"params_json,omitempty" db:"params_json"`
	ResultSummary  string     `json:"result_summary,omitempty" db:"result_summary"`
	TimingsJSON    string     `json:"timings_json,omitempty" db:"timings_json"`
	ErrorMessage   string     `json:"error_message,omitempty" db:"error_message"`
	CacheHit       bool       `json:"cache_hit" db:"cache_hit"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// RunStatus constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Analyzer names
const (
	AnalyzerTripMetrics = "trip_metrics"
	AnalyzerPerformance = "performance"
	AnalyzerMovement    = "movement_graph"
	AnalyzerBusRoutes   = "bus_routes"
)

// RunFilter selects analysis runs
type RunFilter struct {
	Analyzer string `form:"analyzer"`
	Status   string `form:"status"`
	Limit    int    `form:"limit"`
}
