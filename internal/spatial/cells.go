package spatial

import (
	"sort"

	"github.com/golang/geo/s2"
)

// CellWeight is the aggregated weight of the points falling in one S2 cell
type CellWeight struct {
	Token  string  `json:"token"`
	Lat    float64 `json:"latitude"`
	Lon    float64 `json:"longitude"`
	Weight float64 `json:"weight"`
	Count  int     `json:"count"`
}

// CellID returns the S2 cell containing (lat, lon) at the given level.
func CellID(lat, lon float64, level int) s2.CellID {
	return s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lon)).Parent(level)
}

// AggregateCells sums weights per S2 cell at level. Cells are returned in
// cell id order, positioned at the cell centre.
func AggregateCells(lats, lons, weights []float64, level int) []CellWeight {
	byCell := make(map[s2.CellID]*CellWeight)
	for i := range lats {
		id := CellID(lats[i], lons[i], level)
		cw, ok := byCell[id]
		if !ok {
			center := id.LatLng()
			cw = &CellWeight{
				Token: id.ToToken(),
				Lat:   center.Lat.Degrees(),
				Lon:   center.Lng.Degrees(),
			}
			byCell[id] = cw
		}
		cw.Weight += weights[i]
		cw.Count++
	}

	ids := make([]s2.CellID, 0, len(byCell))
	for id := range byCell {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]CellWeight, 0, len(ids))
	for _, id := range ids {
		out = append(out, *byCell[id])
	}
	return out
}
