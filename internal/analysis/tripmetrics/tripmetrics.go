// Package tripmetrics computes per-trip distance, duration and average speed
// from GPS points. Two implementations of the same pipeline are provided: a
// row-wise loop and a columnar one working on struct-of-arrays.
package tripmetrics

import (
	"math"
	"time"

	"github.com/jengzang/geo-dashboard/internal/models"
)

// Method names
const (
	MethodTraditional = "traditional"
	MethodColumnar    = "columnar"
)

// round2 rounds half to even to 2 decimals.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

// finish converts the aggregated distance and duration of a trip into a
// rounded metric. Zero duration yields an average speed of 0.
func finish(tripID int64, distanceKm float64, duration time.Duration) models.TripMetric {
	hours := duration.Hours()
	speed := 0.0
	if hours > 0 {
		speed = distanceKm / hours
	}
	return models.TripMetric{
		TripID:          tripID,
		TotalDistanceKm: round2(distanceKm),
		DurationHours:   round2(hours),
		AvgSpeedKmh:     round2(speed),
	}
}

// stopwatch records consecutive stage durations into a Timings map.
type stopwatch struct {
	timings models.Timings
	last    time.Time
}

func newStopwatch() *stopwatch {
	return &stopwatch{timings: models.Timings{}, last: time.Now()}
}

// lap records the time since the previous lap under stage.
func (s *stopwatch) lap(stage string) {
	now := time.Now()
	s.timings[stage] = now.Sub(s.last).Seconds()
	s.last = now
}

// done sums the stage timings under the total key.
func (s *stopwatch) done() models.Timings {
	var total float64
	for _, v := range s.timings {
		total += v
	}
	s.timings[models.StageTotal] = total
	return s.timings
}

// Compare runs the selected methods on the same points. Speedup is
// traditional.total / columnar.total and 0 when either is missing or the
// columnar total is 0.
func Compare(points []models.GPSPoint, traditional, columnar bool, workers int) *models.PerformanceComparison {
	cmp := &models.PerformanceComparison{}
	if traditional {
		metrics, timings := Traditional(points)
		cmp.Traditional = &models.MethodResult{Method: MethodTraditional, Metrics: metrics, Timings: timings}
	}
	if columnar {
		metrics, timings := Columnar(points, workers)
		cmp.Columnar = &models.MethodResult{Method: MethodColumnar, Metrics: metrics, Timings: timings}
	}
	if cmp.Traditional != nil && cmp.Columnar != nil {
		if ct := cmp.Columnar.Timings[models.StageTotal]; ct > 0 {
			cmp.Speedup = cmp.Traditional.Timings[models.StageTotal] / ct
		}
		same := Equal(cmp.Traditional.Metrics, cmp.Columnar.Metrics)
		cmp.Identical = &same
	}
	return cmp
}

// Equal reports whether two metric lists agree trip by trip within rounding.
func Equal(a, b []models.TripMetric) bool {
	if len(a) != len(b) {
		return false
	}
	const tol = 0.01 + 1e-9
	for i := range a {
		if a[i].TripID != b[i].TripID ||
			math.Abs(a[i].TotalDistanceKm-b[i].TotalDistanceKm) > tol ||
			math.Abs(a[i].DurationHours-b[i].DurationHours) > tol ||
			math.Abs(a[i].AvgSpeedKmh-b[i].AvgSpeedKmh) > tol {
			return false
		}
	}
	return true
}
