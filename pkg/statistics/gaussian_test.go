package statistics

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestGaussianFit(t *testing.T) {
	g := NewGomegaWithT(t)

	m := Fit([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	g.Expect(m.N).To(Equal(int64(8)))
	g.Expect(m.Mean).To(BeNumerically("~", 5.0, 1e-9))
	// sample variance of the series is 32/7
	g.Expect(m.Variance()).To(BeNumerically("~", 32.0/7.0, 1e-9))
}

func TestGaussianMergeMatchesSingleFit(t *testing.T) {
	g := NewGomegaWithT(t)

	all := []float64{300, 295, 310, 302, 288, 305, 299, 301, 298, 304}
	split := 4

	whole := Fit(all)
	merged := Fit(all[:split])
	merged.Merge(Fit(all[split:]))

	g.Expect(merged.N).To(Equal(whole.N))
	g.Expect(merged.Mean).To(BeNumerically("~", whole.Mean, 1e-9))
	g.Expect(merged.M2).To(BeNumerically("~", whole.M2, 1e-6))
}

func TestGaussianMergeIntoEmpty(t *testing.T) {
	g := NewGomegaWithT(t)

	var m Gaussian
	m.Merge(Fit([]float64{1, 2, 3}))
	g.Expect(m.N).To(Equal(int64(3)))
	g.Expect(m.Mean).To(BeNumerically("~", 2.0, 1e-9))

	before := m
	m.Merge(Gaussian{})
	g.Expect(m).To(Equal(before))
}

func TestGaussianStdDevFloor(t *testing.T) {
	g := NewGomegaWithT(t)
	floor := DefaultDegenerateStdDev

	// too few samples to estimate variance
	var empty Gaussian
	g.Expect(empty.StdDev(floor)).To(Equal(floor))
	one := Fit([]float64{300})
	g.Expect(one.StdDev(floor)).To(Equal(floor))

	// duplicate-timestamp artifact: every gap is zero
	zeros := Fit([]float64{0, 0, 0, 0})
	g.Expect(zeros.StdDev(floor)).To(Equal(floor))

	// a perfectly periodic pair keeps its true zero deviation
	periodic := Fit([]float64{300, 300, 300, 300})
	g.Expect(periodic.StdDev(floor)).To(BeZero())

	spread := Fit([]float64{100, 200, 300})
	g.Expect(spread.StdDev(floor)).To(BeNumerically("~", 100.0, 1e-9))
}

func TestGaussianTail(t *testing.T) {
	g := NewGomegaWithT(t)

	m := Fit([]float64{290, 300, 310, 295, 305})
	g.Expect(m.Tail(m.Mean, DefaultDegenerateStdDev)).To(BeNumerically("~", 1.0, 1e-9))
	far := m.Tail(m.Mean+5*m.StdDev(DefaultDegenerateStdDev), DefaultDegenerateStdDev)
	g.Expect(far).To(BeNumerically("<", 1e-5))
}

func TestStrictOutliers(t *testing.T) {
	g := NewGomegaWithT(t)

	// a tight cluster of gaps with one distant value
	samples := []float64{300, 301, 299, 300, 302, 298, 300, 299, 301, 5000}
	flags := StrictOutliers(samples, 0.01, DefaultDegenerateStdDev)
	g.Expect(flags[len(flags)-1]).To(BeTrue())
	g.Expect(flags[0]).To(BeFalse())

	// too few samples flags nothing
	g.Expect(StrictOutliers([]float64{300}, 0.01, DefaultDegenerateStdDev)).To(Equal([]bool{false}))
}
