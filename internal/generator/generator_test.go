package generator

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/jengzang/geo-dashboard/internal/models"
)

func roadFixture() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.LineString{{106.70, 10.77}, {106.71, 10.77}}))
	fc.Append(geojson.NewFeature(orb.MultiLineString{{{106.71, 10.77}, {106.71, 10.78}}}))
	// disconnected island
	fc.Append(geojson.NewFeature(orb.LineString{{106.80, 10.90}, {106.81, 10.90}}))
	fc.Append(geojson.NewFeature(orb.Point{106.0, 10.0}))
	return fc
}

func TestExtractBusStops(t *testing.T) {
	fc := geojson.NewFeatureCollection()

	named := geojson.NewFeature(orb.Point{106.7, 10.8})
	named.Properties["highway"] = "bus_stop"
	named.Properties["name"] = "Bến Thành"
	fc.Append(named)

	unnamed := geojson.NewFeature(orb.Point{106.6, 10.7})
	unnamed.Properties["highway"] = "bus_stop"
	unnamed.Properties["name"] = 42
	fc.Append(unnamed)

	other := geojson.NewFeature(orb.Point{106.5, 10.6})
	other.Properties["highway"] = "traffic_signals"
	fc.Append(other)

	line := geojson.NewFeature(orb.LineString{{0, 0}, {1, 1}})
	line.Properties["highway"] = "bus_stop"
	fc.Append(line)

	stops := ExtractBusStops(fc)

	require.Len(t, stops, 2)
	assert.Equal(t, models.BusStop{Name: "Bến Thành", Latitude: 10.8, Longitude: 106.7}, stops[0])
	assert.Equal(t, "Unknown", stops[1].Name)
}

func TestRandomBusRoutes(t *testing.T) {
	stops := []models.BusStop{
		{Name: "a", Latitude: 1, Longitude: 1},
		{Name: "b", Latitude: 2, Longitude: 2},
		{Name: "c", Latitude: 3, Longitude: 3},
		{Name: "d", Latitude: 4, Longitude: 4},
	}

	t.Run("segment count per route", func(t *testing.T) {
		segs := RandomBusRoutes(stops, 10, 3, 3, rand.New(rand.NewSource(7)))
		assert.Len(t, segs, 20)
		for _, s := range segs {
			assert.NotEqual(t, s.Lat1, s.Lat2, "consecutive stops are distinct")
		}
	})

	t.Run("capped by available stops", func(t *testing.T) {
		segs := RandomBusRoutes(stops, 5, 10, 12, rand.New(rand.NewSource(7)))
		assert.Len(t, segs, 15)
	})

	t.Run("single stop yields nothing", func(t *testing.T) {
		assert.Empty(t, RandomBusRoutes(stops[:1], 3, 3, 5, rand.New(rand.NewSource(7))))
	})

	t.Run("negative bounds are treated as zero", func(t *testing.T) {
		assert.NotPanics(t, func() {
			assert.Empty(t, RandomBusRoutes(stops, 4, -3, -1, rand.New(rand.NewSource(7))))
		})
		assert.NotPanics(t, func() {
			segs := RandomBusRoutes(stops, 20, -2, 2, rand.New(rand.NewSource(7)))
			assert.LessOrEqual(t, len(segs), 20)
		})
	})
}

func TestLoadRoadNetwork(t *testing.T) {
	net, err := LoadRoadNetwork(roadFixture())
	require.NoError(t, err)
	assert.Equal(t, 5, net.Len(), "shared vertex is merged")

	corner := net.Nearest(10.7701, 106.7099)
	assert.Equal(t, orb.Point{106.71, 10.77}, net.Coord(corner))

	route, length, ok := net.ShortestPath(net.Nearest(10.77, 106.70), net.Nearest(10.78, 106.71))
	require.True(t, ok)
	assert.Len(t, route, 3)
	assert.InDelta(t, 2206, length, 15)

	_, _, ok = net.ShortestPath(net.Nearest(10.77, 106.70), net.Nearest(10.90, 106.80))
	assert.False(t, ok)

	_, err = LoadRoadNetwork(geojson.NewFeatureCollection())
	assert.ErrorIs(t, err, ErrEmptyNetwork)
}

func TestGenerateTrips(t *testing.T) {
	net, err := LoadRoadNetwork(roadFixture())
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	opts := DefaultTripOptions()
	opts.BaseTime = base
	var progress []int
	opts.Progress = func(done, total int) { progress = append(progress, done) }

	segments := []models.RouteSegment{
		{Lat1: 10.80, Lon1: 106.80, Lat2: 10.90, Lon2: 106.81}, // unreachable island route
		{Lat1: 10.77, Lon1: 106.70, Lat2: 10.78, Lon2: 106.71},
		{Lat1: 10.77, Lon1: 106.70, Lat2: 10.7701, Lon2: 106.7001}, // same node
	}

	points := GenerateTrips(net, segments, opts, rand.New(rand.NewSource(1)))
	require.NotEmpty(t, points)
	assert.Equal(t, []int{1, 2, 3}, progress)

	for _, p := range points {
		assert.Equal(t, int64(2), p.TripID, "only the connected segment produces a trip")
	}

	first, last := points[0], points[len(points)-1]
	assert.Equal(t, base.Add(5*time.Minute), first.Timestamp)
	assert.InDelta(t, 10.77, first.Latitude, 1e-4)
	assert.InDelta(t, 106.70, first.Longitude, 1e-4)
	assert.InDelta(t, 10.78, last.Latitude, 1e-4)
	assert.InDelta(t, 106.71, last.Longitude, 1e-4)

	speed := first.SimulatedSpeedKmh
	assert.GreaterOrEqual(t, speed, 20.0)
	assert.LessOrEqual(t, speed, 50.0)
	for i := 1; i < len(points); i++ {
		assert.Equal(t, 20*time.Second, points[i].Timestamp.Sub(points[i-1].Timestamp))
		assert.Equal(t, speed, points[i].SimulatedSpeedKmh)
	}

	// ~2.2 km at 20-50 km/h sampled every 20 s
	assert.GreaterOrEqual(t, len(points), 8)
	assert.LessOrEqual(t, len(points), 22)
}
