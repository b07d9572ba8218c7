// Package generator builds the synthetic inputs of the dashboard: bus stops
// from an OSM export, random bus routes between them, and simulated GPS
// traces of vehicles driving those routes over a road network.
package generator

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/exp/rand"

	"github.com/jengzang/geo-dashboard/internal/models"
)

// ExtractBusStops keeps the Point features tagged highway=bus_stop. Stops
// without a name are called "Unknown".
func ExtractBusStops(fc *geojson.FeatureCollection) []models.BusStop {
	var stops []models.BusStop
	for _, f := range fc.Features {
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		if tag, _ := f.Properties["highway"].(string); tag != "bus_stop" {
			continue
		}
		name, _ := f.Properties["name"].(string)
		if name == "" {
			name = "Unknown"
		}
		stops = append(stops, models.BusStop{Name: name, Latitude: p.Lat(), Longitude: p.Lon()})
	}
	return stops
}

// RandomBusRoutes draws numRoutes routes of k distinct stops each, with k
// uniform in [minStops, maxStops] and capped at len(stops), and returns the
// segments joining consecutive stops of every route. A negative minStops
// counts as zero.
func RandomBusRoutes(stops []models.BusStop, numRoutes, minStops, maxStops int, rng *rand.Rand) []models.RouteSegment {
	if minStops < 0 {
		minStops = 0
	}
	if maxStops < minStops {
		maxStops = minStops
	}
	var segments []models.RouteSegment
	for r := 0; r < numRoutes; r++ {
		k := minStops + rng.Intn(maxStops-minStops+1)
		if k > len(stops) {
			k = len(stops)
		}
		picked := rng.Perm(len(stops))[:k]
		for i := 0; i+1 < len(picked); i++ {
			a, b := stops[picked[i]], stops[picked[i+1]]
			segments = append(segments, models.RouteSegment{
				Lat1: a.Latitude, Lon1: a.Longitude,
				Lat2: b.Latitude, Lon2: b.Longitude,
			})
		}
	}
	return segments
}
