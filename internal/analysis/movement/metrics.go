package movement

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/graph/community"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/mat"
)

// CommunityAssignment maps a node to its community.
type CommunityAssignment struct {
	NodeID      int64 `json:"node_id"`
	CommunityID int   `json:"community_id"`
}

// Centrality holds the per-node centrality measures.
type Centrality struct {
	Betweenness map[int64]float64
	Eigenvector map[int64]float64
	PageRank    map[int64]float64
}

// PageRank computes the edge-weighted PageRank of the graph, each undirected
// edge acting as two opposite arcs and each loop as one.
func PageRank(g *Graph, damping, tol float64) map[int64]float64 {
	return network.PageRank(g.directed(), damping, tol)
}

// DetectCommunities partitions the graph with the Louvain method. Community
// ids are ordered by the smallest node id of each community. seed makes the
// node visiting order, and with it the partition, reproducible. Loops count
// toward node degrees in the modularity; gonum's first Louvain pass only
// sees the edges between distinct nodes.
func DetectCommunities(g *Graph, resolution float64, seed uint64) ([]CommunityAssignment, float64) {
	ug := g.undirected()
	reduced := community.Modularize(ug, resolution, rand.NewSource(seed))
	comms := reduced.Communities()

	modularity := community.Q(ug, comms, resolution)

	ordered := make([][]int64, 0, len(comms))
	for _, c := range comms {
		if len(c) == 0 {
			continue
		}
		ids := make([]int64, len(c))
		for i, n := range c {
			ids[i] = n.ID()
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		ordered = append(ordered, ids)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i][0] < ordered[j][0] })

	var out []CommunityAssignment
	for cid, ids := range ordered {
		for _, id := range ids {
			out = append(out, CommunityAssignment{NodeID: id, CommunityID: cid})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, modularity
}

// Betweenness returns the hop-count betweenness of every node, normalised by
// (n-1)(n-2). Nodes on no shortest path get 0.
func Betweenness(g *Graph) map[int64]float64 {
	raw := network.Betweenness(g.G)
	n := float64(len(g.Nodes))
	scale := 1.0
	if n > 2 {
		scale = 1 / ((n - 1) * (n - 2))
	}
	out := make(map[int64]float64, len(g.Nodes))
	for _, id := range g.Nodes {
		out[id] = raw[id] * scale
	}
	return out
}

// Eigenvector returns the principal eigenvector of the weighted adjacency
// matrix, loops on the diagonal, made non-negative and scaled to unit length.
func Eigenvector(g *Graph) map[int64]float64 {
	n := len(g.Nodes)
	out := make(map[int64]float64, n)
	if n == 0 {
		return out
	}

	pos := make(map[int64]int, n)
	for i, id := range g.Nodes {
		pos[id] = i
	}
	adj := mat.NewSymDense(n, nil)
	for _, e := range g.Edges {
		adj.SetSym(pos[e.Source], pos[e.Target], e.Weight)
	}

	var es mat.EigenSym
	if !es.Factorize(adj, true) {
		return out
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	// eigenvalues are ascending, the last column is the principal vector
	v := make([]float64, n)
	mat.Col(v, n-1, &vecs)
	for i := range v {
		v[i] = math.Abs(v[i])
	}
	if norm := floats.Norm(v, 2); norm > 0 {
		floats.Scale(1/norm, v)
	}
	for i, id := range g.Nodes {
		out[id] = v[i]
	}
	return out
}

// CalculateCentrality computes betweenness, eigenvector and PageRank.
func CalculateCentrality(g *Graph, damping, tol float64) Centrality {
	return Centrality{
		Betweenness: Betweenness(g),
		Eigenvector: Eigenvector(g),
		PageRank:    PageRank(g, damping, tol),
	}
}
