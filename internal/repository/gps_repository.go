package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jengzang/geo-dashboard/internal/database"
	"github.com/jengzang/geo-dashboard/internal/models"
)

// ErrTripNotFound is returned for an unknown trip id.
var ErrTripNotFound = errors.New("trip not found")

// GPSRepository stores the points of the loaded dataset
type GPSRepository struct {
	db *sql.DB
}

// NewGPSRepository creates a new GPS repository
func NewGPSRepository(db *sql.DB) *GPSRepository {
	return &GPSRepository{db: db}
}

// ReplaceAll swaps the stored dataset for points in one transaction.
func (r *GPSRepository) ReplaceAll(ctx context.Context, points []models.GPSPoint) error {
	return database.Transaction(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM gps_points"); err != nil {
			return fmt.Errorf("failed to clear gps points: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO gps_points
			(trip_id, timestamp, latitude, longitude, simulated_speed_kmh)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range points {
			if _, err := stmt.ExecContext(ctx, p.TripID, p.Timestamp.UnixNano(), p.Latitude, p.Longitude, p.SimulatedSpeedKmh); err != nil {
				return fmt.Errorf("failed to insert gps point: %w", err)
			}
		}
		return nil
	})
}

const pointColumns = "trip_id, timestamp, latitude, longitude, simulated_speed_kmh"

// AllPoints returns every point in insertion order.
func (r *GPSRepository) AllPoints(ctx context.Context) ([]models.GPSPoint, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+pointColumns+" FROM gps_points ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query gps points: %w", err)
	}
	defer rows.Close()
	return scanPoints(rows)
}

// TripPoints returns the points of one trip ordered by timestamp.
func (r *GPSRepository) TripPoints(ctx context.Context, tripID int64) ([]models.GPSPoint, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+pointColumns+" FROM gps_points WHERE trip_id = ? ORDER BY timestamp, id", tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trip points: %w", err)
	}
	defer rows.Close()

	points, err := scanPoints(rows)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, ErrTripNotFound
	}
	return points, nil
}

func scanPoints(rows *sql.Rows) ([]models.GPSPoint, error) {
	var points []models.GPSPoint
	for rows.Next() {
		var p models.GPSPoint
		var ts int64
		if err := rows.Scan(&p.TripID, &ts, &p.Latitude, &p.Longitude, &p.SimulatedSpeedKmh); err != nil {
			return nil, fmt.Errorf("failed to scan gps point: %w", err)
		}
		p.Timestamp = time.Unix(0, ts).UTC()
		points = append(points, p)
	}
	return points, rows.Err()
}

// Trips summarises every trip, ordered by trip id.
func (r *GPSRepository) Trips(ctx context.Context) ([]models.TripSummary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT trip_id, COUNT(*), MIN(timestamp), MAX(timestamp)
		FROM gps_points GROUP BY trip_id ORDER BY trip_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	var trips []models.TripSummary
	for rows.Next() {
		var t models.TripSummary
		var start, end int64
		if err := rows.Scan(&t.TripID, &t.PointCount, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		t.StartTime = time.Unix(0, start).UTC()
		t.EndTime = time.Unix(0, end).UTC()
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// Count returns the number of stored points.
func (r *GPSRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM gps_points").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count gps points: %w", err)
	}
	return n, nil
}
