package generator

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/jengzang/geo-dashboard/internal/spatial"
)

// ErrEmptyNetwork is returned when a GeoJSON file holds no road lines.
var ErrEmptyNetwork = errors.New("road network has no edges")

// snap is the coordinate grid that merges shared road vertices.
const snap = 1e7

// RoadNetwork is an undirected road graph weighted by length in metres.
type RoadNetwork struct {
	g      *simple.WeightedUndirectedGraph
	coords []orb.Point
	ids    map[[2]int64]int64

	tree    *kdtree.Tree
	byPoint map[[2]float64]int64
	cosLat  float64
}

// LoadRoadNetwork builds the road graph from the LineString and
// MultiLineString features of fc.
func LoadRoadNetwork(fc *geojson.FeatureCollection) (*RoadNetwork, error) {
	net := &RoadNetwork{
		g:   simple.NewWeightedUndirectedGraph(0, math.Inf(1)),
		ids: make(map[[2]int64]int64),
	}

	for _, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.LineString:
			net.addLine(g)
		case orb.MultiLineString:
			for _, ls := range g {
				net.addLine(ls)
			}
		}
	}
	if net.g.Edges().Len() == 0 {
		return nil, ErrEmptyNetwork
	}

	net.index()
	return net, nil
}

func (n *RoadNetwork) node(p orb.Point) int64 {
	key := [2]int64{int64(math.Round(p[0] * snap)), int64(math.Round(p[1] * snap))}
	if id, ok := n.ids[key]; ok {
		return id
	}
	id := int64(len(n.coords))
	n.ids[key] = id
	n.coords = append(n.coords, orb.Point{float64(key[0]) / snap, float64(key[1]) / snap})
	n.g.AddNode(simple.Node(id))
	return id
}

func (n *RoadNetwork) addLine(ls orb.LineString) {
	for i := 0; i+1 < len(ls); i++ {
		u, v := n.node(ls[i]), n.node(ls[i+1])
		if u == v {
			continue
		}
		a, b := n.coords[u], n.coords[v]
		w := spatial.HaversineDistance(a.Lat(), a.Lon(), b.Lat(), b.Lon())
		if e := n.g.WeightedEdge(u, v); e != nil && e.Weight() <= w {
			continue
		}
		n.g.SetWeightedEdge(simple.WeightedEdge{F: simple.Node(u), T: simple.Node(v), W: w})
	}
}

// index builds the nearest-node k-d tree on an equirectangular projection
// around the mean latitude.
func (n *RoadNetwork) index() {
	var sum float64
	for _, c := range n.coords {
		sum += c.Lat()
	}
	n.cosLat = math.Cos(sum / float64(len(n.coords)) * math.Pi / 180)

	pts := make(kdtree.Points, 0, len(n.coords))
	n.byPoint = make(map[[2]float64]int64, len(n.coords))
	for id, c := range n.coords {
		xy := n.project(c)
		if _, dup := n.byPoint[xy]; dup {
			continue
		}
		n.byPoint[xy] = int64(id)
		pts = append(pts, kdtree.Point{xy[0], xy[1]})
	}
	n.tree = kdtree.New(pts, false)
}

func (n *RoadNetwork) project(p orb.Point) [2]float64 {
	return [2]float64{p.Lon() * n.cosLat, p.Lat()}
}

// Len returns the number of road nodes.
func (n *RoadNetwork) Len() int {
	return len(n.coords)
}

// Nearest returns the road node closest to (lat, lon).
func (n *RoadNetwork) Nearest(lat, lon float64) int64 {
	xy := n.project(orb.Point{lon, lat})
	got, _ := n.tree.Nearest(kdtree.Point{xy[0], xy[1]})
	p := got.(kdtree.Point)
	return n.byPoint[[2]float64{p[0], p[1]}]
}

// Coord returns the location of a road node.
func (n *RoadNetwork) Coord(id int64) orb.Point {
	return n.coords[id]
}

// ShortestPath returns the node coordinates of the shortest path from u to v
// and its length in metres. ok is false when v is unreachable.
func (n *RoadNetwork) ShortestPath(u, v int64) (route orb.LineString, length float64, ok bool) {
	if u == v {
		return orb.LineString{n.coords[u]}, 0, true
	}
	shortest := path.DijkstraFrom(simple.Node(u), n.g)
	nodes, w := shortest.To(v)
	if len(nodes) == 0 {
		return nil, 0, false
	}
	route = make(orb.LineString, len(nodes))
	for i, nd := range nodes {
		route[i] = n.coords[nd.ID()]
	}
	return route, w, true
}
