package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/geo-dashboard/internal/analysis"
	"github.com/jengzang/geo-dashboard/internal/analysis/movement"
	"github.com/jengzang/geo-dashboard/internal/config"
	"github.com/jengzang/geo-dashboard/internal/database"
	"github.com/jengzang/geo-dashboard/internal/dataset"
	"github.com/jengzang/geo-dashboard/internal/mapview"
	"github.com/jengzang/geo-dashboard/internal/models"
	"github.com/jengzang/geo-dashboard/internal/repository"
	"github.com/jengzang/geo-dashboard/internal/spatial"
	"github.com/jengzang/geo-dashboard/internal/telemetry"
)

type fixture struct {
	data     *DatasetService
	analysis *AnalysisService
	maps     *MapService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := database.Open(database.Config{Path: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	metrics := telemetry.NewMetrics()
	settings := config.Static{
		DBSCANEps:         0.001,
		DBSCANMinSamples:  2,
		PageRankDamping:   0.85,
		PageRankTolerance: 1e-6,
		LouvainResolution: 1,
		LouvainSeed:       1,
		TopN:              5,
		Workers:           2,
	}

	data := NewDatasetService(repository.NewGPSRepository(conn), metrics)
	tracker := analysis.NewTracker(repository.NewRunRepository(conn), metrics)
	an := NewAnalysisService(data, settings, config.CacheConfig{Size: 16, TTL: time.Minute}, tracker, metrics)
	return &fixture{data: data, analysis: an, maps: NewMapService(data, an, settings)}
}

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

// two places, A in district "Quận 1" and B in "Quận 3"
func samplePoints() []models.GPSPoint {
	at := func(trip int64, sec int, lat, lon float64) models.GPSPoint {
		return models.GPSPoint{TripID: trip, Timestamp: t0.Add(time.Duration(sec) * time.Second), Latitude: lat, Longitude: lon, SimulatedSpeedKmh: 30}
	}
	return []models.GPSPoint{
		at(1, 0, 10.7700, 106.7000),
		at(1, 20, 10.7701, 106.7001),
		at(1, 40, 10.8000, 106.6500),
		at(2, 300, 10.8001, 106.6501),
		at(2, 320, 10.7702, 106.7002),
	}
}

func sampleDistricts() []models.District {
	square := func(lon, lat float64) [][2]float64 {
		return [][2]float64{{lon - 0.01, lat - 0.01}, {lon + 0.01, lat - 0.01}, {lon + 0.01, lat + 0.01}, {lon - 0.01, lat + 0.01}}
	}
	return []models.District{
		{Name: "Quận 1", ID: "760", Polygon: spatial.PolygonFromRing(square(106.70, 10.77))},
		{Name: "Quận 3", ID: "770", Polygon: spatial.PolygonFromRing(square(106.65, 10.80))},
	}
}

func TestDatasetService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.data.Info()
	assert.ErrorIs(t, err, ErrNoData)
	_, err = f.data.Trips(ctx)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = f.data.Load(ctx, nil, "empty")
	assert.ErrorIs(t, err, dataset.ErrInvalidData)

	info, err := f.data.Load(ctx, samplePoints(), "test")
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.Version)
	assert.Equal(t, 5, info.PointCount)
	assert.Equal(t, 2, info.TripCount)
	assert.Equal(t, t0, info.StartTime)
	assert.Equal(t, t0.Add(320*time.Second), info.EndTime)
	assert.Equal(t, 30.0, info.SpeedMean)

	trips, err := f.data.Trips(ctx)
	require.NoError(t, err)
	require.Len(t, trips, 2)
	assert.Equal(t, 3, trips[0].PointCount)

	_, err = f.data.TripPoints(ctx, 42)
	assert.ErrorIs(t, err, repository.ErrTripNotFound)

	var buf bytes.Buffer
	require.NoError(t, f.data.WriteTripGPX(ctx, &buf, 2))
	assert.Contains(t, buf.String(), "trip 2")

	csv := "trip_id,timestamp,latitude,longitude,simulated_speed_kmh\n7,2024-05-01 09:00:00,10.7,106.7,25\n"
	info, err = f.data.Upload(ctx, strings.NewReader(csv), "one.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Version)
	assert.Equal(t, "upload:one.csv", info.Source)

	_, err = f.data.Districts()
	assert.ErrorIs(t, err, ErrNoDistricts)
	f.data.SetDistricts(append(sampleDistricts(), sampleDistricts()[0]))
	infos, err := f.data.DistrictInfos()
	require.NoError(t, err)
	assert.Equal(t, []models.DistrictInfo{
		{ID: "760", Name: "Quận 1", PolygonCount: 2},
		{ID: "770", Name: "Quận 3", PolygonCount: 1},
	}, infos)
}

func TestTripMetricsCaching(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.analysis.TripMetrics(ctx, "")
	assert.ErrorIs(t, err, ErrNoData)

	_, err = f.data.Load(ctx, samplePoints(), "test")
	require.NoError(t, err)

	_, _, err = f.analysis.TripMetrics(ctx, "pandas")
	assert.ErrorIs(t, err, ErrUnknownMethod)

	first, timings, err := f.analysis.TripMetrics(ctx, "")
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Contains(t, timings, models.StageHaversine)

	second, _, err := f.analysis.TripMetrics(ctx, "columnar")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	trad, _, err := f.analysis.TripMetrics(ctx, "traditional")
	require.NoError(t, err)
	assert.Equal(t, first, trad)

	runs, err := f.analysis.Runs(ctx, models.RunFilter{Analyzer: models.AnalyzerTripMetrics})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	hits := 0
	for _, r := range runs {
		assert.Equal(t, models.RunStatusCompleted, r.Status)
		if r.CacheHit {
			hits++
		}
	}
	assert.Equal(t, 1, hits)

	m, err := f.analysis.TripMetric(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, first[0], *m)

	m, err = f.analysis.TripMetric(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestPerformance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.data.Load(ctx, samplePoints(), "test")
	require.NoError(t, err)

	_, err = f.analysis.Performance(ctx, false, false)
	assert.ErrorIs(t, err, ErrNoMethod)

	cmp, err := f.analysis.Performance(ctx, true, true)
	require.NoError(t, err)
	require.NotNil(t, cmp.Traditional)
	require.NotNil(t, cmp.Columnar)
	require.NotNil(t, cmp.Identical)
	assert.True(t, *cmp.Identical)

	cmp, err = f.analysis.Performance(ctx, true, false)
	require.NoError(t, err)
	assert.Nil(t, cmp.Columnar)
	assert.Zero(t, cmp.Speedup)
}

func TestMovementGraphAndTopAreas(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.data.Load(ctx, samplePoints(), "test")
	require.NoError(t, err)

	res, err := f.analysis.MovementGraph(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ClusterCount)
	assert.Equal(t, []movement.Edge{
		{Source: 0, Target: 0, Weight: 1},
		{Source: 0, Target: 1, Weight: 2},
	}, res.Edges)
	assert.Equal(t, 1, res.SelfTransitions)

	top, err := f.analysis.TopAreas(ctx, movement.MetricPageRank, 0)
	require.NoError(t, err)
	assert.Len(t, top, 2)

	_, err = f.analysis.TopAreas(ctx, "closeness", 3)
	assert.ErrorIs(t, err, movement.ErrUnknownMetric)
}

func TestMovementGraphFailureIsRecorded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	// a single point never forms an edge
	_, err := f.data.Load(ctx, samplePoints()[:1], "test")
	require.NoError(t, err)

	_, err = f.analysis.MovementGraph(ctx)
	assert.ErrorIs(t, err, movement.ErrNoEdges)

	runs, err := f.analysis.Runs(ctx, models.RunFilter{Status: models.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.AnalyzerMovement, runs[0].Analyzer)
}

func TestRoutes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.data.Load(ctx, samplePoints(), "test")
	require.NoError(t, err)

	_, err = f.analysis.Routes(ctx)
	assert.ErrorIs(t, err, ErrNoDistricts)

	f.data.SetDistricts(sampleDistricts())
	routes, err := f.analysis.Routes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "Quận 1", routes[0].StartDistrict)
	assert.Equal(t, "Quận 3", routes[0].EndDistrict)
	assert.Equal(t, "Quận 3", routes[1].StartDistrict)

	summary, err := f.analysis.RouteSummary(ctx)
	require.NoError(t, err)
	assert.Len(t, summary, 2)

	fc, err := f.maps.RoutesGeoJSON(ctx)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}

func TestMapDeck(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.data.Load(ctx, samplePoints(), "test")
	require.NoError(t, err)

	_, err = f.maps.Deck(ctx, MapRequest{})
	assert.ErrorIs(t, err, ErrNoDistricts)

	f.data.SetDistricts(sampleDistricts())
	deck, err := f.maps.Deck(ctx, MapRequest{})
	require.NoError(t, err)
	require.Len(t, deck.Layers, 2)
	assert.Equal(t, mapview.LayerDistricts, deck.Layers[0]["id"])

	deck, err = f.maps.Deck(ctx, MapRequest{
		Layers: []string{mapview.LayerGPS, mapview.LayerHeatmap, mapview.LayerBusRoutes, mapview.LayerGraphNodes, mapview.LayerGraphEdges},
		TripID: 1,
	})
	require.NoError(t, err)
	require.Len(t, deck.Layers, 5)
	assert.Len(t, deck.Layers[0]["data"], 3)
	for i, id := range []string{mapview.LayerGPS, mapview.LayerHeatmap, mapview.LayerBusRoutes, mapview.LayerGraphNodes, mapview.LayerGraphEdges} {
		assert.Equal(t, id, deck.Layers[i]["id"], "layers keep request order")
	}

	_, err = f.maps.Deck(ctx, MapRequest{Layers: []string{mapview.LayerGPS, "satellite", mapview.LayerDistricts}})
	assert.ErrorIs(t, err, ErrUnknownLayer)

	_, err = f.maps.Deck(ctx, MapRequest{Layers: []string{"satellite"}})
	assert.ErrorIs(t, err, ErrUnknownLayer)

	fc, err := f.maps.DistrictsGeoJSON()
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}
