// Package mapview builds deck.gl JSON map descriptions (layers, view state
// and tooltip) and GeoJSON exports of the dashboard data.
package mapview

import (
	"strconv"

	"github.com/jengzang/geo-dashboard/internal/analysis/movement"
	"github.com/jengzang/geo-dashboard/internal/models"
	"github.com/jengzang/geo-dashboard/internal/spatial"
)

// Layer is a deck.gl JSON layer. "@@type" names the layer class and string
// values prefixed with "@@=" are accessor expressions.
type Layer map[string]interface{}

// Color is an RGBA color.
type Color [4]uint8

// Layer styles
var (
	DistrictFill      = Color{255, 140, 0, 100}
	DistrictLine      = Color{0, 0, 0, 80}
	DistrictHighlight = Color{255, 140, 0, 200}
	GPSFill           = Color{0, 0, 255, 180}
	RouteColor        = Color{255, 0, 0, 180}
	RouteHighlight    = Color{0, 0, 255, 180}
	EdgeColor         = Color{90, 90, 90, 120}
)

// communityPalette colors graph nodes by community id.
var communityPalette = []Color{
	{228, 26, 28, 220}, {55, 126, 184, 220}, {77, 175, 74, 220}, {152, 78, 163, 220},
	{255, 127, 0, 220}, {166, 86, 40, 220}, {247, 129, 191, 220}, {153, 153, 153, 220},
}

// Layer ids
const (
	LayerDistricts  = "districts"
	LayerGPS        = "gps"
	LayerHeatmap    = "heatmap"
	LayerBusRoutes  = "bus_routes"
	LayerGraphNodes = "graph_nodes"
	LayerGraphEdges = "graph_edges"
)

type districtDatum struct {
	Name        string       `json:"name"`
	ID          string       `json:"id"`
	Coordinates [][2]float64 `json:"coordinates"`
}

// DistrictLayer draws one polygon per district entry using its outer ring.
func DistrictLayer(districts []models.District) Layer {
	data := make([]districtDatum, 0, len(districts))
	for _, d := range districts {
		var ring [][2]float64
		if len(d.Polygon) > 0 {
			ring = make([][2]float64, len(d.Polygon[0]))
			for i, p := range d.Polygon[0] {
				ring[i] = [2]float64{p[0], p[1]}
			}
		}
		data = append(data, districtDatum{Name: d.Name, ID: d.ID, Coordinates: ring})
	}

	return Layer{
		"@@type":         "PolygonLayer",
		"id":             LayerDistricts,
		"data":           data,
		"getPolygon":     "@@=coordinates",
		"getFillColor":   DistrictFill,
		"getLineColor":   DistrictLine,
		"getLineWidth":   2,
		"pickable":       true,
		"autoHighlight":  true,
		"highlightColor": DistrictHighlight,
		"extruded":       false,
	}
}

// GPSLayer draws every point as a blue dot.
func GPSLayer(points []models.GPSPoint) Layer {
	return Layer{
		"@@type":        "ScatterplotLayer",
		"id":            LayerGPS,
		"data":          points,
		"getPosition":   "@@=[longitude, latitude]",
		"getRadius":     50,
		"getFillColor":  GPSFill,
		"pickable":      true,
		"autoHighlight": true,
	}
}

// HeatmapLayer weights points by their simulated speed. With s2Level > 0 the
// points are first summed per S2 cell, which keeps large datasets small.
func HeatmapLayer(points []models.GPSPoint, s2Level int) Layer {
	layer := Layer{
		"@@type":       "HeatmapLayer",
		"id":           LayerHeatmap,
		"radiusPixels": 50,
		"intensity":    1,
		"threshold":    0.05,
		"pickable":     true,
	}

	if s2Level <= 0 {
		layer["data"] = points
		layer["getPosition"] = "@@=[longitude, latitude]"
		layer["getWeight"] = "@@=simulated_speed_kmh"
		return layer
	}

	lats := make([]float64, len(points))
	lons := make([]float64, len(points))
	weights := make([]float64, len(points))
	for i, p := range points {
		lats[i], lons[i], weights[i] = p.Latitude, p.Longitude, p.SimulatedSpeedKmh
	}
	layer["data"] = spatial.AggregateCells(lats, lons, weights, s2Level)
	layer["getPosition"] = "@@=[longitude, latitude]"
	layer["getWeight"] = "@@=weight"
	return layer
}

type routeDatum struct {
	TripID        string       `json:"trip_id"`
	Path          [][2]float64 `json:"path"`
	StartDistrict string       `json:"start_district"`
	EndDistrict   string       `json:"end_district"`
}

// BusRouteLayer draws a straight path from the start to the end of each route.
func BusRouteLayer(routes []models.RouteAnalysis) Layer {
	data := make([]routeDatum, 0, len(routes))
	for _, r := range routes {
		data = append(data, routeDatum{
			TripID:        strconv.FormatInt(r.TripID, 10),
			Path:          [][2]float64{{r.StartLon, r.StartLat}, {r.EndLon, r.EndLat}},
			StartDistrict: r.StartDistrict,
			EndDistrict:   r.EndDistrict,
		})
	}

	return Layer{
		"@@type":         "PathLayer",
		"id":             LayerBusRoutes,
		"data":           data,
		"getPath":        "@@=path",
		"getColor":       RouteColor,
		"getWidth":       3,
		"widthMinPixels": 2,
		"pickable":       true,
		"autoHighlight":  true,
		"highlightColor": RouteHighlight,
	}
}

type nodeDatum struct {
	movement.Node
	Name   string  `json:"name"`
	Radius float64 `json:"radius"`
	Color  Color   `json:"color"`
}

// GraphNodeLayer draws cluster centroids sized by PageRank and colored by
// community.
func GraphNodeLayer(res *movement.Result) Layer {
	maxRank := 0.0
	for _, n := range res.Nodes {
		if n.PageRank > maxRank {
			maxRank = n.PageRank
		}
	}

	data := make([]nodeDatum, 0, len(res.Nodes))
	for _, n := range res.Nodes {
		radius := 100.0
		if maxRank > 0 {
			radius += 900 * n.PageRank / maxRank
		}
		data = append(data, nodeDatum{
			Node:   n,
			Name:   "cluster " + strconv.FormatInt(n.NodeID, 10),
			Radius: radius,
			Color:  communityPalette[n.CommunityID%len(communityPalette)],
		})
	}

	return Layer{
		"@@type":        "ScatterplotLayer",
		"id":            LayerGraphNodes,
		"data":          data,
		"getPosition":   "@@=[longitude, latitude]",
		"getRadius":     "@@=radius",
		"getFillColor":  "@@=color",
		"pickable":      true,
		"autoHighlight": true,
	}
}

type edgeDatum struct {
	Source [2]float64 `json:"source"`
	Target [2]float64 `json:"target"`
	Weight float64    `json:"weight"`
}

// GraphEdgeLayer draws the movement graph edges between cluster centroids.
// Loops have no extent on the map and are left out.
func GraphEdgeLayer(res *movement.Result) Layer {
	pos := make(map[int64][2]float64, len(res.Nodes))
	for _, n := range res.Nodes {
		pos[n.NodeID] = [2]float64{n.Longitude, n.Latitude}
	}
	data := make([]edgeDatum, 0, len(res.Edges))
	for _, e := range res.Edges {
		if e.Source == e.Target {
			continue
		}
		data = append(data, edgeDatum{Source: pos[e.Source], Target: pos[e.Target], Weight: e.Weight})
	}

	return Layer{
		"@@type":            "LineLayer",
		"id":                LayerGraphEdges,
		"data":              data,
		"getSourcePosition": "@@=source",
		"getTargetPosition": "@@=target",
		"getWidth":          "@@=weight",
		"widthMaxPixels":    8,
		"getColor":          EdgeColor,
	}
}
