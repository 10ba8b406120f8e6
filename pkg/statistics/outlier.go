package statistics

import (
	"math"

	"github.com/montanaflynn/stats"
)

// madConsistency rescales the median absolute deviation to estimate the
// standard deviation of normally distributed data.
const madConsistency = 1.4826

// minGroupSize is the smallest series the outlier test will score. Fewer
// values means no peer group, which is a non-detection rather than an error.
const minGroupSize = 3

// DefaultSensitivity is the MAD-multiple a value must deviate by to be
// flagged. Calibrated against synthetic traffic so that rare, clearly
// separated bursts flag while routine tail variance does not.
const DefaultSensitivity = 6.0

// GroupStats reports the central tendency and dispersion the outlier test
// used for a series.
type GroupStats struct {
	Median float64
	MAD    float64
}

// Outliers annotates every value of a series with an outlier flag. The test
// is a robust z-score: a value is flagged when its deviation from the series
// median exceeds sensitivity times the scaled MAD. Constant series have zero
// MAD; for those the deviation is compared against sensitivity times the
// median's magnitude instead, so a single burst over an otherwise flat
// series is still exposed. The test is pure: identical input yields
// identical flags.
func Outliers(values []float64, sensitivity float64) ([]bool, GroupStats) {
	flags := make([]bool, len(values))
	if len(values) < minGroupSize {
		return flags, GroupStats{}
	}
	if sensitivity <= 0 {
		sensitivity = DefaultSensitivity
	}

	data := stats.LoadRawData(values)
	median, err := data.Median()
	if err != nil {
		return flags, GroupStats{}
	}
	mad, err := data.MedianAbsoluteDeviation()
	if err != nil {
		return flags, GroupStats{}
	}

	gs := GroupStats{Median: median, MAD: mad}
	scale := mad * madConsistency
	if scale == 0 {
		scale = math.Max(math.Abs(median), 1)
	}
	for i, v := range values {
		flags[i] = math.Abs(v-median) > sensitivity*scale
	}
	return flags, gs
}
