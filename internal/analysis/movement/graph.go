package movement

import (
	"errors"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/jengzang/geo-dashboard/internal/models"
)

// ErrNoEdges is returned when no two consecutive points of a trip both
// belong to a cluster.
var ErrNoEdges = errors.New("movement: no edges were created, check the input data")

// Edge is an undirected, aggregated transition between two clusters. A
// transition inside one cluster is a loop with Source == Target.
type Edge struct {
	Source int64   `json:"source"`
	Target int64   `json:"target"`
	Weight float64 `json:"weight"`
}

// Graph is the movement graph of a dataset. Nodes are cluster labels.
type Graph struct {
	// G holds the edges between distinct clusters; simple graphs reject
	// loops, so their weights are kept in Loops.
	G     *simple.WeightedUndirectedGraph
	Loops map[int64]float64

	// Edges sorted by (source, target) with source <= target.
	Edges []Edge
	// Nodes sorted ascending.
	Nodes []int64

	Transitions     int
	SelfTransitions int
}

// BuildGraph connects the clusters of temporally consecutive points of each
// trip. Pairs involving noise are skipped. Transitions inside one cluster
// become loops.
func BuildGraph(points []models.GPSPoint, labels []int) (*Graph, error) {
	byTrip := make(map[int64][]int)
	var trips []int64
	for i, p := range points {
		if _, ok := byTrip[p.TripID]; !ok {
			trips = append(trips, p.TripID)
		}
		byTrip[p.TripID] = append(byTrip[p.TripID], i)
	}

	type pair struct{ a, b int64 }
	counts := make(map[pair]float64)
	nodes := make(map[int64]bool)
	mg := &Graph{}

	for _, trip := range trips {
		idx := byTrip[trip]
		sort.SliceStable(idx, func(i, j int) bool {
			return points[idx[i]].Timestamp.Before(points[idx[j]].Timestamp)
		})
		for k := 0; k+1 < len(idx); k++ {
			src, dst := labels[idx[k]], labels[idx[k+1]]
			if src == Noise || dst == Noise {
				continue
			}
			mg.Transitions++
			a, b := int64(src), int64(dst)
			nodes[a] = true
			nodes[b] = true
			if a == b {
				mg.SelfTransitions++
			}
			if a > b {
				a, b = b, a
			}
			counts[pair{a, b}]++
		}
	}

	if mg.Transitions == 0 {
		return nil, ErrNoEdges
	}

	mg.G = simple.NewWeightedUndirectedGraph(0, 0)
	mg.Loops = make(map[int64]float64)
	for id := range nodes {
		mg.Nodes = append(mg.Nodes, id)
	}
	sort.Slice(mg.Nodes, func(i, j int) bool { return mg.Nodes[i] < mg.Nodes[j] })
	for _, id := range mg.Nodes {
		mg.G.AddNode(simple.Node(id))
	}

	for p, w := range counts {
		mg.Edges = append(mg.Edges, Edge{Source: p.a, Target: p.b, Weight: w})
		if p.a == p.b {
			mg.Loops[p.a] = w
			continue
		}
		mg.G.SetWeightedEdge(mg.G.NewWeightedEdge(simple.Node(p.a), simple.Node(p.b), w))
	}
	sort.Slice(mg.Edges, func(i, j int) bool {
		if mg.Edges[i].Source != mg.Edges[j].Source {
			return mg.Edges[i].Source < mg.Edges[j].Source
		}
		return mg.Edges[i].Target < mg.Edges[j].Target
	})

	return mg, nil
}

// directed returns g with every undirected edge replaced by two opposite arcs
// of the same weight. A loop stays a single arc.
func (g *Graph) directed() graph.WeightedDirected {
	d := simple.NewWeightedDirectedGraph(0, 0)
	for _, id := range g.Nodes {
		d.AddNode(simple.Node(id))
	}
	for _, e := range g.Edges {
		if e.Source == e.Target {
			continue
		}
		d.SetWeightedEdge(d.NewWeightedEdge(simple.Node(e.Source), simple.Node(e.Target), e.Weight))
		d.SetWeightedEdge(d.NewWeightedEdge(simple.Node(e.Target), simple.Node(e.Source), e.Weight))
	}
	return loopDirected{WeightedDirectedGraph: d, loops: g.Loops}
}

// undirected returns G with the loop weights visible through Weight. A loop
// adds twice its weight to the degree of its node.
func (g *Graph) undirected() graph.WeightedUndirected {
	return loopUndirected{WeightedUndirectedGraph: g.G, loops: g.Loops}
}

type loopUndirected struct {
	*simple.WeightedUndirectedGraph
	loops map[int64]float64
}

func (g loopUndirected) Weight(xid, yid int64) (float64, bool) {
	if xid == yid {
		if w, ok := g.loops[xid]; ok {
			return 2 * w, true
		}
	}
	return g.WeightedUndirectedGraph.Weight(xid, yid)
}

// loopDirected adds loops to a simple directed graph.
type loopDirected struct {
	*simple.WeightedDirectedGraph
	loops map[int64]float64
}

func (g loopDirected) withLoop(id int64, nodes graph.Nodes) graph.Nodes {
	if _, ok := g.loops[id]; !ok {
		return nodes
	}
	return iterator.NewOrderedNodes(append(graph.NodesOf(nodes), g.Node(id)))
}

func (g loopDirected) From(id int64) graph.Nodes {
	return g.withLoop(id, g.WeightedDirectedGraph.From(id))
}

func (g loopDirected) To(id int64) graph.Nodes {
	return g.withLoop(id, g.WeightedDirectedGraph.To(id))
}

func (g loopDirected) HasEdgeBetween(xid, yid int64) bool {
	return g.HasEdgeFromTo(xid, yid) || g.HasEdgeFromTo(yid, xid)
}

func (g loopDirected) HasEdgeFromTo(uid, vid int64) bool {
	if uid == vid {
		_, ok := g.loops[uid]
		return ok
	}
	return g.WeightedDirectedGraph.HasEdgeFromTo(uid, vid)
}

func (g loopDirected) Edge(uid, vid int64) graph.Edge {
	return g.WeightedEdge(uid, vid)
}

func (g loopDirected) WeightedEdge(uid, vid int64) graph.WeightedEdge {
	if uid == vid {
		w, ok := g.loops[uid]
		if !ok {
			return nil
		}
		n := g.Node(uid)
		return simple.WeightedEdge{F: n, T: n, W: w}
	}
	return g.WeightedDirectedGraph.WeightedEdge(uid, vid)
}

func (g loopDirected) Weight(xid, yid int64) (float64, bool) {
	if xid == yid {
		if w, ok := g.loops[xid]; ok {
			return w, true
		}
	}
	return g.WeightedDirectedGraph.Weight(xid, yid)
}
