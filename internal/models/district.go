package models

import "github.com/paulmach/orb"

// District is one polygon of an administrative district. A district made of
// several polygons appears once per polygon, in file order.
type District struct {
	Name    string      `json:"name"`
	ID      string      `json:"id"`
	Polygon orb.Polygon `json:"-"`
}

// DistrictInfo is the tabular view of a district
type DistrictInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PolygonCount int    `json:"polygon_count"`
}

// UnknownDistrict is reported for points outside every district polygon
const UnknownDistrict = "Unknown"
