package generator

import (
	"math"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"golang.org/x/exp/rand"

	"github.com/jengzang/geo-dashboard/internal/models"
)

// TripOptions controls the simulated vehicles.
type TripOptions struct {
	MinSpeedKmh float64
	MaxSpeedKmh float64
	Interval    time.Duration
	NoiseMeters float64
	BaseTime    time.Time
	// TripGap separates the start times of consecutive trips.
	TripGap time.Duration
	// Progress, when set, is called after every segment.
	Progress func(done, total int)
}

// DefaultTripOptions returns 20-50 km/h, a 20 s sampling interval, 10 m of
// noise and trips starting one week ago.
func DefaultTripOptions() TripOptions {
	return TripOptions{
		MinSpeedKmh: 20,
		MaxSpeedKmh: 50,
		Interval:    20 * time.Second,
		NoiseMeters: 10,
		BaseTime:    time.Now().Add(-7 * 24 * time.Hour).Truncate(time.Second),
		TripGap:     5 * time.Minute,
	}
}

const (
	metersPerDegree = 111000.0
	arrivalEpsilon  = 1e-5
)

// GenerateTrips drives one simulated vehicle per segment along the shortest
// road path between its endpoints. Segments whose path is missing or too
// short for two samples are skipped but still consume their trip id.
func GenerateTrips(net *RoadNetwork, segments []models.RouteSegment, opts TripOptions, rng *rand.Rand) []models.GPSPoint {
	var out []models.GPSPoint
	for i, seg := range segments {
		tripID := int64(i + 1)
		out = append(out, generateTrip(net, tripID, seg, opts, rng)...)
		if opts.Progress != nil {
			opts.Progress(i+1, len(segments))
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].TripID != out[b].TripID {
			return out[a].TripID < out[b].TripID
		}
		return out[a].Timestamp.Before(out[b].Timestamp)
	})
	return out
}

func generateTrip(net *RoadNetwork, tripID int64, seg models.RouteSegment, opts TripOptions, rng *rand.Rand) []models.GPSPoint {
	origin := net.Nearest(seg.Lat1, seg.Lon1)
	dest := net.Nearest(seg.Lat2, seg.Lon2)

	route, length, ok := net.ShortestPath(origin, dest)
	if !ok {
		return nil
	}
	route = dedupe(route)
	if len(route) < 2 {
		return nil
	}

	speed := opts.MinSpeedKmh + rng.Float64()*(opts.MaxSpeedKmh-opts.MinSpeedKmh)
	speedMs := speed * 1000 / 3600
	interval := opts.Interval.Seconds()
	if speedMs <= 0 || interval <= 0 || int(length/speedMs/interval) < 2 {
		return nil
	}

	ts := opts.BaseTime.Add(time.Duration(tripID-1) * opts.TripGap)
	var points []models.GPSPoint
	emit := func(p orb.Point) {
		lat, lon := addNoise(p.Lat(), p.Lon(), opts.NoiseMeters, rng)
		points = append(points, models.GPSPoint{
			TripID:            tripID,
			Timestamp:         ts,
			Latitude:          lat,
			Longitude:         lon,
			SimulatedSpeedKmh: speed,
		})
		ts = ts.Add(opts.Interval)
	}

	emit(net.Coord(origin))

	total := geo.LengthHaversine(route)
	step := speedMs * interval
	for d := 0.0; d < total; {
		d = math.Min(d+step, total)
		p, _ := geo.PointAtDistanceAlongLine(route, d)
		emit(p)
	}

	end := net.Coord(dest)
	last := points[len(points)-1]
	if math.Abs(last.Latitude-end.Lat()) > arrivalEpsilon || math.Abs(last.Longitude-end.Lon()) > arrivalEpsilon {
		emit(end)
	}
	return points
}

// dedupe drops repeated vertices, keeping the first occurrence.
func dedupe(ls orb.LineString) orb.LineString {
	seen := make(map[orb.Point]struct{}, len(ls))
	out := ls[:0:0]
	for _, p := range ls {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func addNoise(lat, lon, meters float64, rng *rand.Rand) (float64, float64) {
	latNoise := meters / metersPerDegree * (rng.Float64()*2 - 1)
	lonNoise := meters / (metersPerDegree * math.Abs(math.Cos(lat*math.Pi/180))) * (rng.Float64()*2 - 1)
	return lat + latNoise, lon + lonNoise
}
