package busroute

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/geo-dashboard/internal/models"
	"github.com/jengzang/geo-dashboard/internal/spatial"
)

func square(name string, minLon, minLat, size float64) models.District {
	return models.District{
		Name: name,
		ID:   name,
		Polygon: spatial.PolygonFromRing([][2]float64{
			{minLon, minLat}, {minLon + size, minLat}, {minLon + size, minLat + size}, {minLon, minLat + size},
		}),
	}
}

func testIndex() *DistrictIndex {
	return NewDistrictIndex([]models.District{
		square("District 1", 106.0, 10.0, 1),
		square("Overlap", 106.5, 10.5, 1), // overlaps the north-east quarter of District 1
		square("District 3", 108.0, 10.0, 1),
		square("District 3", 110.0, 10.0, 1), // second polygon of the same district
	})
}

func TestFindDistrict(t *testing.T) {
	idx := testIndex()
	require.Equal(t, 4, idx.Len())

	tests := []struct {
		name     string
		lon, lat float64
		want     string
	}{
		{"inside first", 106.2, 10.2, "District 1"},
		{"overlap resolves to first in file order", 106.7, 10.7, "District 1"},
		{"only second", 107.2, 11.2, "Overlap"},
		{"second polygon of a district", 110.5, 10.5, "District 3"},
		{"outside everything", 0, 0, models.UnknownDistrict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.FindDistrict(tt.lon, tt.lat))
		})
	}
}

func TestAnalyzeRoutesAndSummarize(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	p := func(trip int64, min int, lat, lon float64) models.GPSPoint {
		return models.GPSPoint{TripID: trip, Timestamp: t0.Add(time.Duration(min) * time.Minute), Latitude: lat, Longitude: lon}
	}
	points := []models.GPSPoint{
		p(2, 10, 10.5, 108.5), // last of trip 2, listed first
		p(2, 0, 10.2, 106.2),
		p(1, 0, 10.2, 106.2),
		p(1, 5, 10.3, 106.3),
		p(1, 9, 10.5, 108.5),
		p(3, 0, 10.2, 106.2),
		p(3, 1, 0, 0),
		p(4, 0, 10.5, 108.5), // single point trip
	}

	routes := AnalyzeRoutes(points, testIndex())

	require.Len(t, routes, 4)
	assert.Equal(t, int64(1), routes[0].TripID)
	assert.Equal(t, models.RouteAnalysis{
		TripID: 2, StartLat: 10.2, StartLon: 106.2, EndLat: 10.5, EndLon: 108.5,
		StartDistrict: "District 1", EndDistrict: "District 3",
	}, routes[1])
	assert.Equal(t, models.UnknownDistrict, routes[2].EndDistrict)
	assert.Equal(t, "District 3", routes[3].StartDistrict)
	assert.Equal(t, "District 3", routes[3].EndDistrict)

	summary := Summarize(routes)
	assert.Equal(t, []models.RouteSummary{
		{StartDistrict: "District 1", EndDistrict: "District 3", RouteCount: 2},
		{StartDistrict: "District 1", EndDistrict: models.UnknownDistrict, RouteCount: 1},
		{StartDistrict: "District 3", EndDistrict: "District 3", RouteCount: 1},
	}, summary)
}

func TestEmptyInputs(t *testing.T) {
	idx := NewDistrictIndex(nil)
	assert.Equal(t, models.UnknownDistrict, idx.FindDistrict(106, 10))
	assert.Empty(t, AnalyzeRoutes(nil, idx))
	assert.Empty(t, Summarize(nil))
}
