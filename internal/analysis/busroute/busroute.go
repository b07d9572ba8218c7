// Package busroute attributes trip endpoints to administrative districts.
package busroute

import (
	"sort"

	"github.com/tidwall/rtree"

	"github.com/jengzang/geo-dashboard/internal/models"
	"github.com/jengzang/geo-dashboard/internal/spatial"
)

// DistrictIndex answers point-in-district queries. Candidate polygons come
// from a bounding-box R-tree; the exact test runs in file order so that the
// first containing polygon wins.
type DistrictIndex struct {
	districts []models.District
	tree      rtree.RTree
}

// NewDistrictIndex indexes one entry per district polygon.
func NewDistrictIndex(districts []models.District) *DistrictIndex {
	idx := &DistrictIndex{districts: districts}
	for i, d := range districts {
		if len(d.Polygon) == 0 || len(d.Polygon[0]) == 0 {
			continue
		}
		b := d.Polygon.Bound()
		idx.tree.Insert([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, i)
	}
	return idx
}

// Len returns the number of indexed polygons.
func (idx *DistrictIndex) Len() int {
	return idx.tree.Len()
}

// FindDistrict returns the name of the first polygon containing (lon, lat),
// or models.UnknownDistrict.
func (idx *DistrictIndex) FindDistrict(lon, lat float64) string {
	best := -1
	p := [2]float64{lon, lat}
	idx.tree.Search(p, p, func(_, _ [2]float64, data interface{}) bool {
		i := data.(int)
		if best != -1 && i > best {
			return true
		}
		if spatial.PointInPolygon(idx.districts[i].Polygon, lon, lat) {
			best = i
		}
		return true
	})
	if best == -1 {
		return models.UnknownDistrict
	}
	return idx.districts[best].Name
}

// AnalyzeRoutes finds the first and last point of every trip by timestamp
// and attributes both to districts. Trips are returned in ascending id order.
func AnalyzeRoutes(points []models.GPSPoint, idx *DistrictIndex) []models.RouteAnalysis {
	type ends struct{ first, last models.GPSPoint }
	byTrip := make(map[int64]*ends)
	for _, p := range points {
		e, ok := byTrip[p.TripID]
		if !ok {
			byTrip[p.TripID] = &ends{first: p, last: p}
			continue
		}
		if p.Timestamp.Before(e.first.Timestamp) {
			e.first = p
		}
		if !p.Timestamp.Before(e.last.Timestamp) {
			e.last = p
		}
	}

	ids := make([]int64, 0, len(byTrip))
	for id := range byTrip {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]models.RouteAnalysis, 0, len(ids))
	for _, id := range ids {
		e := byTrip[id]
		out = append(out, models.RouteAnalysis{
			TripID:        id,
			StartLat:      e.first.Latitude,
			StartLon:      e.first.Longitude,
			EndLat:        e.last.Latitude,
			EndLon:        e.last.Longitude,
			StartDistrict: idx.FindDistrict(e.first.Longitude, e.first.Latitude),
			EndDistrict:   idx.FindDistrict(e.last.Longitude, e.last.Latitude),
		})
	}
	return out
}

// Summarize counts routes per (start, end) district pair, most frequent
// first and then by district names.
func Summarize(routes []models.RouteAnalysis) []models.RouteSummary {
	type key struct{ start, end string }
	counts := make(map[key]int)
	for _, r := range routes {
		counts[key{r.StartDistrict, r.EndDistrict}]++
	}

	out := make([]models.RouteSummary, 0, len(counts))
	for k, n := range counts {
		out = append(out, models.RouteSummary{StartDistrict: k.start, EndDistrict: k.end, RouteCount: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RouteCount != out[j].RouteCount {
			return out[i].RouteCount > out[j].RouteCount
		}
		if out[i].StartDistrict != out[j].StartDistrict {
			return out[i].StartDistrict < out[j].StartDistrict
		}
		return out[i].EndDistrict < out[j].EndDistrict
	})
	return out
}
