package models

// TripMetric holds the derived movement metrics of a trip, rounded to 2 decimals
type TripMetric struct {
	TripID          int64   `json:"trip_id" csv:"trip_id"`
	TotalDistanceKm float64 `json:"total_distance_km" csv:"total_distance_km"`
	DurationHours   float64 `json:"duration_hours" csv:"duration_hours"`
	AvgSpeedKmh     float64 `json:"avg_speed_kmh" csv:"avg_speed_kmh"`
}

// Timings maps a pipeline stage to its duration in seconds
type Timings map[string]float64

// Pipeline stage keys
const (
	StageSort      = "sort"
	StageShift     = "shift"
	StageDropNA    = "dropna"
	StageHaversine = "haversine"
	StageGroupBy   = "groupby"
	StageMergeCalc = "merge_calc"
	StageTotal     = "total"
)

// MethodResult is the output of one metrics computation method
type MethodResult struct {
	Method  string       `json:"method"`
	Metrics []TripMetric `json:"metrics"`
	Timings Timings      `json:"timings"`
}

// PerformanceComparison compares the row-wise and columnar methods
type PerformanceComparison struct {
	Traditional *MethodResult `json:"traditional,omitempty"`
	Columnar    *MethodResult `json:"columnar,omitempty"`
	Speedup     float64       `json:"speedup,omitempty"`
	Identical   *bool         `json:"identical,omitempty"`
}
