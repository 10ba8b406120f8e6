// Package statistics holds the two statistical primitives shared by the
// detectors: an incrementally refittable gaussian model of a scalar series,
// and a robust annotate-mode outlier test.
package statistics

import "math"

// DefaultDegenerateStdDev is the floor value a gap model reports when it has
// too few samples to estimate variance, or when its samples are a
// duplicate-timestamp artifact. The beaconing decision rule excludes this
// exact value.
const DefaultDegenerateStdDev = 1e-6

// Gaussian models a scalar series by its Welford sufficient statistic
// (count, mean, M2). It supports incremental refitting: new samples update
// the existing parameters, so the model covers every sample ever observed,
// not just the current window.
type Gaussian struct {
	N    int64   `json:"n"`
	Mean float64 `json:"mean"`
	M2   float64 `json:"m2"`
}

// Observe folds a single sample into the model.
func (g *Gaussian) Observe(x float64) {
	g.N++
	delta := x - g.Mean
	g.Mean += delta / float64(g.N)
	g.M2 += delta * (x - g.Mean)
}

// Fit returns a model fit fresh from samples.
func Fit(samples []float64) Gaussian {
	var g Gaussian
	for _, x := range samples {
		g.Observe(x)
	}
	return g
}

// Merge folds other into g using the parallel Welford update. Merging a
// fresh window fit into a persisted model is the incremental refit step.
func (g *Gaussian) Merge(other Gaussian) {
	if other.N == 0 {
		return
	}
	if g.N == 0 {
		*g = other
		return
	}
	n := g.N + other.N
	delta := other.Mean - g.Mean
	g.M2 += other.M2 + delta*delta*float64(g.N)*float64(other.N)/float64(n)
	g.Mean += delta * float64(other.N) / float64(n)
	g.N = n
}

// Variance is the sample variance, zero when fewer than two samples exist.
func (g *Gaussian) Variance() float64 {
	if g.N < 2 {
		return 0
	}
	return g.M2 / float64(g.N-1)
}

// StdDev returns the model's standard deviation, or floor when it cannot be
// estimated: fewer than two samples, or a zero-mean zero-variance series
// (every event carried the same timestamp). A constant positive gap keeps
// its true zero deviation, so perfectly periodic pairs stay detectable.
func (g *Gaussian) StdDev(floor float64) float64 {
	if g.N < 2 {
		return floor
	}
	sd := math.Sqrt(g.Variance())
	if sd == 0 && g.Mean == 0 {
		return floor
	}
	return sd
}

// Tail is the two-sided normal tail probability of x under the model: the
// probability of a sample at least as far from the mean.
func (g *Gaussian) Tail(x, floor float64) float64 {
	sd := g.StdDev(floor)
	if sd < floor {
		sd = floor
	}
	z := math.Abs(x-g.Mean) / sd
	return math.Erfc(z / math.Sqrt2)
}

// StrictOutliers fits a fresh model to samples and flags those whose tail
// probability under it falls below theta. This strict fit is only used
// while bootstrapping a pair's gap model, to keep one-off tail gaps out of
// the seed; it is never the production decision model.
func StrictOutliers(samples []float64, theta, floor float64) []bool {
	flags := make([]bool, len(samples))
	g := Fit(samples)
	if g.N < 2 {
		return flags
	}
	for i, x := range samples {
		flags[i] = g.Tail(x, floor) < theta
	}
	return flags
}
