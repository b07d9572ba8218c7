package movement

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jengzang/geo-dashboard/internal/models"
	"github.com/jengzang/geo-dashboard/internal/spatial"
)

// ErrUnknownMetric is returned by TopAreas for an unsupported metric name.
var ErrUnknownMetric = errors.New("movement: unknown metric")

// Metric names accepted by TopAreas
const (
	MetricPageRank    = "pagerank"
	MetricBetweenness = "betweenness"
	MetricEigenvector = "eigenvector"
)

// DefaultTopN is the number of areas returned when n is not positive.
const DefaultTopN = 5

// Options tunes the clustering and graph algorithms.
type Options struct {
	Eps        float64 `json:"eps"`
	MinSamples int     `json:"min_samples"`
	Damping    float64 `json:"damping"`
	Tolerance  float64 `json:"tolerance"`
	Resolution float64 `json:"resolution"`
	Seed       uint64  `json:"seed"`
}

// DefaultOptions mirrors the dashboard defaults.
func DefaultOptions() Options {
	return Options{
		Eps:        0.01,
		MinSamples: 5,
		Damping:    0.85,
		Tolerance:  1e-6,
		Resolution: 1,
		Seed:       1,
	}
}

// Node is a cluster with its metrics and centroid.
type Node struct {
	NodeID      int64   `json:"node_id"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Size        int     `json:"size"`
	PageRank    float64 `json:"pagerank"`
	CommunityID int     `json:"community_id"`
	Betweenness float64 `json:"betweenness"`
	Eigenvector float64 `json:"eigenvector"`
}

// Result is the output of AnalyzeMovementPatterns.
type Result struct {
	Nodes          []Node                `json:"nodes"`
	Edges          []Edge                `json:"edges"`
	Communities    []CommunityAssignment `json:"communities"`
	CommunityCount int                   `json:"community_count"`
	Modularity     float64               `json:"modularity"`

	ClusterCount    int `json:"cluster_count"`
	NoisePoints     int `json:"noise_points"`
	Transitions     int `json:"transitions"`
	SelfTransitions int `json:"self_transitions"`

	Labels []int `json:"-"`
}

// AreaScore is one row of a TopAreas ranking.
type AreaScore struct {
	NodeID    int64   `json:"node_id"`
	Score     float64 `json:"score"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AnalyzeMovementPatterns clusters the points, builds the movement graph and
// computes PageRank, communities, modularity and centrality.
func AnalyzeMovementPatterns(points []models.GPSPoint, opts Options) (*Result, error) {
	labels := DBSCAN(points, opts.Eps, opts.MinSamples)

	g, err := BuildGraph(points, labels)
	if err != nil {
		return nil, err
	}

	communities, modularity := DetectCommunities(g, opts.Resolution, opts.Seed)
	centrality := CalculateCentrality(g, opts.Damping, opts.Tolerance)

	res := &Result{
		Edges:           g.Edges,
		Communities:     communities,
		Modularity:      modularity,
		Transitions:     g.Transitions,
		SelfTransitions: g.SelfTransitions,
		Labels:          labels,
	}

	members := make(map[int64][]spatial.Point)
	for i, l := range labels {
		if l == Noise {
			res.NoisePoints++
			continue
		}
		members[int64(l)] = append(members[int64(l)], spatial.Point{Lat: points[i].Latitude, Lon: points[i].Longitude})
	}
	res.ClusterCount = len(members)

	communityOf := make(map[int64]int, len(communities))
	seen := make(map[int]bool)
	for _, c := range communities {
		communityOf[c.NodeID] = c.CommunityID
		seen[c.CommunityID] = true
	}
	res.CommunityCount = len(seen)

	for _, id := range g.Nodes {
		c := spatial.Centroid(members[id])
		res.Nodes = append(res.Nodes, Node{
			NodeID:      id,
			Latitude:    c.Lat,
			Longitude:   c.Lon,
			Size:        len(members[id]),
			PageRank:    centrality.PageRank[id],
			CommunityID: communityOf[id],
			Betweenness: centrality.Betweenness[id],
			Eigenvector: centrality.Eigenvector[id],
		})
	}

	return res, nil
}

// ValidMetric reports whether TopAreas can rank by metric.
func ValidMetric(metric string) bool {
	switch metric {
	case MetricPageRank, MetricBetweenness, MetricEigenvector:
		return true
	}
	return false
}

// TopAreas ranks nodes by metric, highest first with ties broken by node id.
func TopAreas(res *Result, metric string, n int) ([]AreaScore, error) {
	var score func(Node) float64
	switch metric {
	case MetricPageRank:
		score = func(n Node) float64 { return n.PageRank }
	case MetricBetweenness:
		score = func(n Node) float64 { return n.Betweenness }
	case MetricEigenvector:
		score = func(n Node) float64 { return n.Eigenvector }
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	if n <= 0 {
		n = DefaultTopN
	}

	out := make([]AreaScore, 0, len(res.Nodes))
	for _, node := range res.Nodes {
		out = append(out, AreaScore{NodeID: node.NodeID, Score: score(node), Latitude: node.Latitude, Longitude: node.Longitude})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].NodeID < out[j].NodeID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}
