package tripmetrics

import (
	"sort"
	"time"

	"github.com/jengzang/geo-dashboard/internal/models"
	"github.com/jengzang/geo-dashboard/internal/spatial"
)

type row struct {
	models.GPSPoint
	nextLat, nextLon float64
	hasNext          bool
	distance         float64
}

// Traditional computes trip metrics with a row-at-a-time loop. Output is
// sorted by trip id; trips with fewer than two points are omitted.
func Traditional(points []models.GPSPoint) ([]models.TripMetric, models.Timings) {
	sw := newStopwatch()

	rows := make([]row, len(points))
	for i, p := range points {
		rows[i] = row{GPSPoint: p}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TripID != rows[j].TripID {
			return rows[i].TripID < rows[j].TripID
		}
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
	sw.lap(models.StageSort)

	for i := range rows {
		if i+1 < len(rows) && rows[i+1].TripID == rows[i].TripID {
			rows[i].nextLat = rows[i+1].Latitude
			rows[i].nextLon = rows[i+1].Longitude
			rows[i].hasNext = true
		}
	}
	sw.lap(models.StageShift)

	kept := rows[:0:0]
	for _, r := range rows {
		if r.hasNext {
			kept = append(kept, r)
		}
	}
	sw.lap(models.StageDropNA)

	for i := range kept {
		kept[i].distance = spatial.HaversineKm(kept[i].Latitude, kept[i].Longitude, kept[i].nextLat, kept[i].nextLon)
	}
	sw.lap(models.StageHaversine)

	// Time spans cover the kept rows only, so a trip ends at its last
	// point that has a successor.
	distance := make(map[int64]float64)
	first := make(map[int64]time.Time)
	last := make(map[int64]time.Time)
	var order []int64
	for _, r := range kept {
		if _, ok := distance[r.TripID]; !ok {
			order = append(order, r.TripID)
			first[r.TripID] = r.Timestamp
		}
		distance[r.TripID] += r.distance
		last[r.TripID] = r.Timestamp
	}
	duration := make(map[int64]time.Duration, len(order))
	for _, id := range order {
		duration[id] = last[id].Sub(first[id])
	}
	sw.lap(models.StageGroupBy)

	metrics := make([]models.TripMetric, 0, len(order))
	for _, id := range order {
		metrics = append(metrics, finish(id, distance[id], duration[id]))
	}
	sw.lap(models.StageMergeCalc)

	return metrics, sw.done()
}
