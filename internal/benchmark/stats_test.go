package benchmark

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultAggregator() Aggregator {
	return DefaultConfig().Aggregator()
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestAggregateConstantSamples(t *testing.T) {
	stats, warning, err := defaultAggregator().Aggregate(NewSampleSet("c", 8, repeat(250, 10)))
	require.NoError(t, err)
	assert.Nil(t, warning)
	assert.Equal(t, 10, stats.Samples)
	assert.Zero(t, stats.Rejected)
	assert.Equal(t, 250.0, stats.Min)
	assert.Equal(t, 250.0, stats.Max)
	assert.Equal(t, 250.0, stats.Mean)
	assert.Equal(t, 250.0, stats.Median)
	assert.Equal(t, 250.0, stats.CleanMean)
	assert.Zero(t, stats.StdDev)
	assert.Zero(t, stats.CV)
}

func TestAggregateRejectsSingleOutlier(t *testing.T) {
	samples := append(repeat(100, 19), 1000)

	stats, warning, err := defaultAggregator().Aggregate(NewSampleSet("c", 1, samples))
	require.NoError(t, err)
	assert.Nil(t, warning)
	assert.Equal(t, 1, stats.Rejected)
	assert.InDelta(t, 145.0, stats.Mean, 1e-9)
	assert.Equal(t, 1000.0, stats.Max)
	assert.InDelta(t, 100.0, stats.CleanMean, 1e-9)
	assert.Zero(t, stats.CV)
}

func TestAggregateExcessOutliersKeepsEverything(t *testing.T) {
	a := Aggregator{OutlierK: 0.5, MaxOutlierFraction: 0.2, CVThreshold: 0.05}
	samples := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	stats, warning, err := a.Aggregate(NewSampleSet("c", 1, samples))
	require.NoError(t, err)
	require.NotNil(t, warning)
	assert.Equal(t, ReasonExcessOutliers, warning.Reason)
	assert.Equal(t, 8, warning.Outliers)
	assert.Equal(t, 2, warning.Allowed)
	assert.Zero(t, stats.Rejected)
	assert.InDelta(t, stats.Mean, stats.CleanMean, 1e-12)
	assert.Contains(t, warning.String(), "UNSTABLE")
}

func TestAggregateHighVariation(t *testing.T) {
	var samples []float64
	for i := 0; i < 10; i++ {
		samples = append(samples, 100, 120)
	}

	stats, warning, err := defaultAggregator().Aggregate(NewSampleSet("c", 1, samples))
	require.NoError(t, err)
	require.NotNil(t, warning)
	assert.Equal(t, ReasonHighVariation, warning.Reason)
	assert.InDelta(t, 10.0/110.0, stats.CV, 1e-9)
	assert.InDelta(t, 10.0, stats.StdDev, 1e-9)
	assert.InDelta(t, 110.0, stats.Median, 1e-9)
	assert.Equal(t, "UNSTABLE: cv 9.09% exceeds 5.00%", warning.String())
}

func TestAggregateIsPure(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	samples := make([]float64, 50)
	for i := range samples {
		samples[i] = 100 + rng.NormFloat64()*3
	}
	set := NewSampleSet("c", 1, samples)
	before := set.Values()

	s1, w1, err1 := defaultAggregator().Aggregate(set)
	s2, w2, err2 := defaultAggregator().Aggregate(set)
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, s1, s2)
	assert.Equal(t, w1, w2)
	assert.Equal(t, before, set.Values())
}

func TestAggregateRejectionIsBounded(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	a := Aggregator{OutlierK: 1, MaxOutlierFraction: 0.1, CVThreshold: 0.05}

	for trial := 0; trial < 100; trial++ {
		n := 2 + rng.IntN(60)
		samples := make([]float64, n)
		for i := range samples {
			samples[i] = rng.ExpFloat64() * 100
		}
		stats, _, err := a.Aggregate(NewSampleSet("c", 1, samples))
		require.NoError(t, err)
		assert.LessOrEqual(t, stats.Rejected, int(math.Floor(a.MaxOutlierFraction*float64(n))))
	}
}

func TestAggregateEmpty(t *testing.T) {
	_, _, err := defaultAggregator().Aggregate(NewSampleSet("c", 1, nil))
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestPercentile(t *testing.T) {
	assert.Equal(t, 0.0, percentile(nil, 0.5))
	assert.Equal(t, 4.0, percentile([]float64{4}, 0.5))
	assert.Equal(t, 2.5, percentile([]float64{1, 2, 3, 4}, 0.5))
	assert.Equal(t, 4.0, percentile([]float64{1, 2, 3, 4}, 1))
}
