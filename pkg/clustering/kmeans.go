// Package clustering implements the fixed-k partition used by the behavioral
// detector: Lloyd's k-means over a standardized feature space.
package clustering

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Standardize z-scores each column of the matrix in place. Columns with zero
// deviation are set to zero so a constant feature cannot dominate distances.
func Standardize(points [][]float64) {
	if len(points) == 0 {
		return
	}
	dims := len(points[0])
	col := make([]float64, len(points))
	for d := 0; d < dims; d++ {
		for i := range points {
			col[i] = points[i][d]
		}
		mean := stat.Mean(col, nil)
		sd := stat.StdDev(col, nil)
		for i := range points {
			if sd == 0 || math.IsNaN(sd) {
				points[i][d] = 0
			} else {
				points[i][d] = (points[i][d] - mean) / sd
			}
		}
	}
}

// Result is a fitted partition.
type Result struct {
	Centroids   [][]float64 `json:"centroids"`
	Assignments []int       `json:"-"`
	Sizes       []int       `json:"-"`
}

// KMeans is Lloyd's algorithm with deterministic initialization: the first k
// distinct points seed the centroids, so identical input always yields the
// identical partition.
type KMeans struct {
	K       int
	MaxIter int
}

// Fit partitions points into k clusters. It requires more points than
// clusters; callers treat smaller populations as insufficient data.
func (km KMeans) Fit(points [][]float64) (Result, bool) {
	if km.K < 1 || len(points) <= km.K {
		return Result{}, false
	}
	maxIter := km.MaxIter
	if maxIter <= 0 {
		maxIter = 100
	}

	centroids := initialCentroids(points, km.K)
	if centroids == nil {
		return Result{}, false
	}

	assign := make([]int, len(points))
	sizes := make([]int, km.K)
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i := range sizes {
			sizes[i] = 0
		}
		for i, p := range points {
			c := nearest(centroids, p)
			if assign[i] != c {
				assign[i] = c
				changed = true
			}
			sizes[c]++
		}
		if iter > 0 && !changed {
			break
		}
		recompute(centroids, points, assign, sizes)
	}

	return Result{Centroids: centroids, Assignments: assign, Sizes: sizes}, true
}

func initialCentroids(points [][]float64, k int) [][]float64 {
	var centroids [][]float64
	for _, p := range points {
		dup := false
		for _, c := range centroids {
			if floats.Equal(c, p) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		centroids = append(centroids, append([]float64(nil), p...))
		if len(centroids) == k {
			return centroids
		}
	}
	// fewer than k distinct points
	return nil
}

func nearest(centroids [][]float64, p []float64) int {
	best := 0
	bestDist := math.Inf(1)
	for i, c := range centroids {
		d := floats.Distance(c, p, 2)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func recompute(centroids, points [][]float64, assign []int, sizes []int) {
	dims := len(points[0])
	for c := range centroids {
		if sizes[c] == 0 {
			// reseed an emptied cluster from the point farthest from its
			// centroid, so k survives degenerate iterations
			copy(centroids[c], farthest(centroids, points, assign))
			continue
		}
		for d := 0; d < dims; d++ {
			centroids[c][d] = 0
		}
	}
	for i, p := range points {
		c := assign[i]
		if sizes[c] == 0 {
			continue
		}
		for d := range p {
			centroids[c][d] += p[d] / float64(sizes[c])
		}
	}
}

func farthest(centroids, points [][]float64, assign []int) []float64 {
	best := points[0]
	bestDist := -1.0
	for i, p := range points {
		d := floats.Distance(centroids[assign[i]], p, 2)
		if d > bestDist {
			bestDist = d
			best = p
		}
	}
	return best
}
