package models

import "time"

// GPSPoint represents a single simulated GPS fix of a trip
type GPSPoint struct {
	TripID            int64     `json:"trip_id" csv:"trip_id" db:"trip_id"`
	Timestamp         time.Time `json:"timestamp" csv:"timestamp" db:"timestamp"`
	Latitude          float64   `json:"latitude" csv:"latitude" db:"latitude"`
	Longitude         float64   `json:"longitude" csv:"longitude" db:"longitude"`
	SimulatedSpeedKmh float64   `json:"simulated_speed_kmh" csv:"simulated_speed_kmh" db:"simulated_speed_kmh"`
}

// TripSummary describes one trip of the loaded dataset
type TripSummary struct {
	TripID     int64     `json:"trip_id"`
	PointCount int       `json:"point_count"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

// TripDetail is the per-trip view of the GPS analysis tab
type TripDetail struct {
	TripSummary
	Metric *TripMetric `json:"metric,omitempty"`
	Points []GPSPoint  `json:"points,omitempty"`
}

// DatasetInfo describes the currently loaded GPS dataset
type DatasetInfo struct {
	Version    int64     `json:"version"`
	Source     string    `json:"source"`
	PointCount int       `json:"point_count"`
	TripCount  int       `json:"trip_count"`
	StartTime  time.Time `json:"start_time,omitempty"`
	EndTime    time.Time `json:"end_time,omitempty"`
	LoadedAt   time.Time `json:"loaded_at"`

	// Speed distribution of the simulated_speed_kmh column
	SpeedMean float64            `json:"speed_mean_kmh"`
	SpeedPct  map[string]float64 `json:"speed_percentiles_kmh,omitempty"`
}
