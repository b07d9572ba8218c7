package models

// RouteAnalysis attributes the endpoints of a trip to districts
type RouteAnalysis struct {
	TripID        int64   `json:"trip_id"`
	StartLat      float64 `json:"start_lat"`
	StartLon      float64 `json:"start_lon"`
	EndLat        float64 `json:"end_lat"`
	EndLon        float64 `json:"end_lon"`
	StartDistrict string  `json:"start_district"`
	EndDistrict   string  `json:"end_district"`
}

// RouteSummary counts routes per (start, end) district pair
type RouteSummary struct {
	StartDistrict string `json:"start_district"`
	EndDistrict   string `json:"end_district"`
	RouteCount    int    `json:"route_count"`
}

// BusStop is a named stop location
type BusStop struct {
	Name      string  `json:"name" csv:"name"`
	Latitude  float64 `json:"latitude" csv:"latitude"`
	Longitude float64 `json:"longitude" csv:"longitude"`
}

// RouteSegment joins two consecutive stops of a generated bus route
type RouteSegment struct {
	Lat1 float64 `json:"lat1" csv:"lat1"`
	Lon1 float64 `json:"lon1" csv:"lon1"`
	Lat2 float64 `json:"lat2" csv:"lat2"`
	Lon2 float64 `json:"lon2" csv:"lon2"`
}
