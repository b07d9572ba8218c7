package movement

import (
	"math"

	"github.com/dhconnelly/rtreego"

	"github.com/jengzang/geo-dashboard/internal/models"
)

// Noise is the label of points that belong to no cluster.
const Noise = -1

const unvisited = -2

type indexedPoint struct {
	rect  rtreego.Rect
	index int
}

func (p indexedPoint) Bounds() rtreego.Rect {
	return p.rect
}

// DBSCAN labels each point with a cluster id in discovery order, or Noise.
// Distances are Euclidean on (longitude, latitude) degrees and the
// neighbourhood of a point, which includes the point itself, is every point
// within eps. A point is a core point when its neighbourhood has at least
// minSamples members.
func DBSCAN(points []models.GPSPoint, eps float64, minSamples int) []int {
	labels := make([]int, len(points))
	if len(points) == 0 {
		return labels
	}

	tree := rtreego.NewTree(2, 25, 50)
	for i, p := range points {
		tree.Insert(indexedPoint{rect: rtreego.Point{p.Longitude, p.Latitude}.ToRect(eps), index: i})
	}

	region := func(i int) []int {
		p := points[i]
		var out []int
		for _, obj := range tree.SearchIntersect(rtreego.Point{p.Longitude, p.Latitude}.ToRect(eps)) {
			j := obj.(indexedPoint).index
			q := points[j]
			if math.Hypot(p.Longitude-q.Longitude, p.Latitude-q.Latitude) <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	for i := range labels {
		labels[i] = unvisited
	}

	cluster := 0
	for i := range points {
		if labels[i] != unvisited {
			continue
		}
		neighbors := region(i)
		if len(neighbors) < minSamples {
			labels[i] = Noise
			continue
		}

		labels[i] = cluster
		for k := 0; k < len(neighbors); k++ {
			j := neighbors[k]
			if labels[j] == Noise {
				// border point
				labels[j] = cluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			if more := region(j); len(more) >= minSamples {
				neighbors = append(neighbors, more...)
			}
		}
		cluster++
	}

	return labels
}
