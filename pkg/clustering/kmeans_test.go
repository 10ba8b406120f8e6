package clustering

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestStandardize(t *testing.T) {
	g := NewGomegaWithT(t)

	points := [][]float64{
		{10, 7, 1},
		{20, 7, 2},
		{30, 7, 3},
	}
	Standardize(points)

	// first column z-scores around its mean
	g.Expect(points[0][0]).To(BeNumerically("~", -1.0, 1e-9))
	g.Expect(points[1][0]).To(BeNumerically("~", 0.0, 1e-9))
	g.Expect(points[2][0]).To(BeNumerically("~", 1.0, 1e-9))

	// constant column collapses to zero instead of NaN
	for i := range points {
		g.Expect(points[i][1]).To(BeZero())
	}
}

func TestKMeansSeparatesClusters(t *testing.T) {
	g := NewGomegaWithT(t)

	points := [][]float64{
		{0, 0}, {0.1, 0}, {0, 0.1}, {0.1, 0.1},
		{10, 10}, {10.1, 10},
	}
	res, ok := KMeans{K: 2, MaxIter: 100}.Fit(points)
	g.Expect(ok).To(BeTrue())

	// the four near-origin points share one cluster, the far pair the other
	g.Expect(res.Assignments[0]).To(Equal(res.Assignments[1]))
	g.Expect(res.Assignments[0]).To(Equal(res.Assignments[2]))
	g.Expect(res.Assignments[0]).To(Equal(res.Assignments[3]))
	g.Expect(res.Assignments[4]).To(Equal(res.Assignments[5]))
	g.Expect(res.Assignments[0]).NotTo(Equal(res.Assignments[4]))

	far := res.Assignments[4]
	g.Expect(res.Sizes[far]).To(Equal(2))
	g.Expect(res.Centroids[far][0]).To(BeNumerically("~", 10.05, 1e-9))
	g.Expect(res.Centroids[far][1]).To(BeNumerically("~", 10.0, 1e-9))
}

func TestKMeansDeterministic(t *testing.T) {
	g := NewGomegaWithT(t)

	points := [][]float64{
		{1, 2}, {1.2, 2.1}, {5, 5}, {5.1, 4.9}, {9, 0}, {9.2, 0.1}, {1.1, 1.9},
	}
	first, ok := KMeans{K: 3, MaxIter: 100}.Fit(points)
	g.Expect(ok).To(BeTrue())
	second, _ := KMeans{K: 3, MaxIter: 100}.Fit(points)
	g.Expect(second.Assignments).To(Equal(first.Assignments))
	g.Expect(second.Centroids).To(Equal(first.Centroids))
	g.Expect(second.Sizes).To(Equal(first.Sizes))
}

func TestKMeansInsufficientData(t *testing.T) {
	g := NewGomegaWithT(t)

	// population must exceed cluster count
	_, ok := KMeans{K: 5}.Fit([][]float64{{1}, {2}, {3}})
	g.Expect(ok).To(BeFalse())

	// duplicates do not count toward the required distinct seeds
	dup := [][]float64{{1, 1}, {1, 1}, {1, 1}, {2, 2}}
	_, ok = KMeans{K: 3}.Fit(dup)
	g.Expect(ok).To(BeFalse())
}
