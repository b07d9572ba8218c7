package tripmetrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/jengzang/geo-dashboard/internal/models"
	"github.com/jengzang/geo-dashboard/internal/spatial"
)

// minChunk is the smallest number of rows handed to one haversine worker.
const minChunk = 4096

// frame is a struct-of-arrays view of GPS points.
type frame struct {
	trip    []int64
	ts      []int64 // unix nanoseconds
	lat     []float64
	lon     []float64
	nextLat []float64
	nextLon []float64
	dist    []float64
}

func newFrame(points []models.GPSPoint) *frame {
	n := len(points)
	f := &frame{
		trip: make([]int64, n),
		ts:   make([]int64, n),
		lat:  make([]float64, n),
		lon:  make([]float64, n),
	}
	for i, p := range points {
		f.trip[i] = p.TripID
		f.ts[i] = p.Timestamp.UnixNano()
		f.lat[i] = p.Latitude
		f.lon[i] = p.Longitude
	}
	return f
}

// take gathers the rows at idx into a new frame.
func (f *frame) take(idx []int) *frame {
	out := &frame{
		trip: make([]int64, len(idx)),
		ts:   make([]int64, len(idx)),
		lat:  make([]float64, len(idx)),
		lon:  make([]float64, len(idx)),
	}
	withNext := f.nextLat != nil
	if withNext {
		out.nextLat = make([]float64, len(idx))
		out.nextLon = make([]float64, len(idx))
	}
	for j, i := range idx {
		out.trip[j] = f.trip[i]
		out.ts[j] = f.ts[i]
		out.lat[j] = f.lat[i]
		out.lon[j] = f.lon[i]
		if withNext {
			out.nextLat[j] = f.nextLat[i]
			out.nextLon[j] = f.nextLon[i]
		}
	}
	return out
}

// Columnar computes the same metrics as Traditional on column slices, with
// the haversine stage split across workers.
func Columnar(points []models.GPSPoint, workers int) ([]models.TripMetric, models.Timings) {
	sw := newStopwatch()
	if workers < 1 {
		workers = 1
	}

	raw := newFrame(points)
	perm := make([]int, len(points))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		i, j := perm[a], perm[b]
		if raw.trip[i] != raw.trip[j] {
			return raw.trip[i] < raw.trip[j]
		}
		return raw.ts[i] < raw.ts[j]
	})
	f := raw.take(perm)
	sw.lap(models.StageSort)

	n := len(f.trip)
	f.nextLat = make([]float64, n)
	f.nextLon = make([]float64, n)
	if n > 0 {
		copy(f.nextLat, f.lat[1:])
		copy(f.nextLon, f.lon[1:])
		f.nextLat[n-1] = math.NaN()
		f.nextLon[n-1] = math.NaN()
	}
	for i := 0; i+1 < n; i++ {
		if f.trip[i+1] != f.trip[i] {
			f.nextLat[i] = math.NaN()
			f.nextLon[i] = math.NaN()
		}
	}
	sw.lap(models.StageShift)

	keep := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !math.IsNaN(f.nextLat[i]) && !math.IsNaN(f.nextLon[i]) {
			keep = append(keep, i)
		}
	}
	d := f.take(keep)
	sw.lap(models.StageDropNA)

	d.dist = make([]float64, len(d.trip))
	parallelHaversine(d, workers)
	sw.lap(models.StageHaversine)

	type agg struct {
		id       int64
		distance float64
		duration time.Duration
	}
	groups := runs(d.trip)
	aggs := make([]agg, 0, len(groups))
	for _, g := range groups {
		aggs = append(aggs, agg{
			id:       g.id,
			distance: floats.Sum(d.dist[g.start:g.end]),
			duration: time.Duration(d.ts[g.end-1] - d.ts[g.start]),
		})
	}
	sw.lap(models.StageGroupBy)

	metrics := make([]models.TripMetric, len(aggs))
	for i, a := range aggs {
		metrics[i] = finish(a.id, a.distance, a.duration)
	}
	sw.lap(models.StageMergeCalc)

	return metrics, sw.done()
}

type span struct {
	id         int64
	start, end int
}

// runs returns the runs of equal ids in a sorted trip column, in order.
func runs(trip []int64) []span {
	var out []span
	for i := 0; i < len(trip); {
		j := i + 1
		for j < len(trip) && trip[j] == trip[i] {
			j++
		}
		out = append(out, span{id: trip[i], start: i, end: j})
		i = j
	}
	return out
}

func parallelHaversine(d *frame, workers int) {
	n := len(d.dist)
	chunk := (n + workers - 1) / workers
	if chunk < minChunk {
		chunk = minChunk
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		lo, hi := start, end
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()
			spatial.HaversineSlices(d.dist[lo:hi], d.lat[lo:hi], d.lon[lo:hi], d.nextLat[lo:hi], d.nextLon[lo:hi])
		}()
	}
	wg.Wait()
}
