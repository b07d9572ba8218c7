package mapview

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/jengzang/geo-dashboard/internal/models"
)

// DistrictsGeoJSON exports every district polygon as a feature.
func DistrictsGeoJSON(districts []models.District) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, d := range districts {
		f := geojson.NewFeature(d.Polygon)
		f.Properties["name"] = d.Name
		f.Properties["id"] = d.ID
		fc.Append(f)
	}
	return fc
}

// RoutesGeoJSON exports each route as a start-to-end line.
func RoutesGeoJSON(routes []models.RouteAnalysis) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range routes {
		f := geojson.NewFeature(orb.LineString{{r.StartLon, r.StartLat}, {r.EndLon, r.EndLat}})
		f.Properties["trip_id"] = r.TripID
		f.Properties["start_district"] = r.StartDistrict
		f.Properties["end_district"] = r.EndDistrict
		fc.Append(f)
	}
	return fc
}
