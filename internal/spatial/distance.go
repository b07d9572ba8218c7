package spatial

import (
	"math"

	"github.com/golang/geo/s2"
)

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
	EarthRadiusKm     = 6371.0    // Earth's mean radius in kilometers
)

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return angle(lat1, lon1, lat2, lon2) * EarthRadiusMeters
}

// HaversineKm calculates the great-circle distance between two points in kilometers
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	return angle(lat1, lon1, lat2, lon2) * EarthRadiusKm
}

func angle(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians()
}

// HaversineSlices writes the element-wise haversine distance in kilometers of
// the coordinate columns into dst. All slices must have the same length.
func HaversineSlices(dst, lat1, lon1, lat2, lon2 []float64) {
	const rad = math.Pi / 180
	for i := range dst {
		phi1 := lat1[i] * rad
		phi2 := lat2[i] * rad
		dphi := phi2 - phi1
		dlambda := (lon2[i] - lon1[i]) * rad

		sinLat := math.Sin(dphi / 2)
		sinLon := math.Sin(dlambda / 2)
		a := sinLat*sinLat + math.Cos(phi1)*math.Cos(phi2)*sinLon*sinLon
		dst[i] = 2 * math.Asin(math.Sqrt(a)) * EarthRadiusKm
	}
}
