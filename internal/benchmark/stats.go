package benchmark

import (
	"fmt"
	"math"
	"sort"
)

// Statistics summarizes a SampleSet. All durations are nanoseconds per call.
// Min, Max, Mean, Median and StdDev describe every sample; CleanMean,
// CleanStdDev and CV describe the samples kept after outlier rejection.
type Statistics struct {
	Samples     int     `json:"samples"`
	Rejected    int     `json:"rejected"`
	Min         float64 `json:"min_ns"`
	Max         float64 `json:"max_ns"`
	Mean        float64 `json:"mean_ns"`
	Median      float64 `json:"median_ns"`
	StdDev      float64 `json:"stddev_ns"`
	CleanMean   float64 `json:"clean_mean_ns"`
	CleanStdDev float64 `json:"clean_stddev_ns"`
	CV          float64 `json:"cv"`
}

// InstabilityReason says why a result was flagged.
type InstabilityReason string

const (
	// ReasonHighVariation means the kept samples vary beyond the threshold.
	ReasonHighVariation InstabilityReason = "high_variation"
	// ReasonExcessOutliers means rejection would have dropped more than
	// the permitted fraction, so nothing was dropped.
	ReasonExcessOutliers InstabilityReason = "excess_outliers"
)

// InstabilityWarning is a data-quality flag attached to a result. It is
// not an error: the numbers are reported, marked as untrustworthy.
type InstabilityWarning struct {
	Reason    InstabilityReason `json:"reason"`
	CV        float64           `json:"cv"`
	Threshold float64           `json:"threshold"`
	Outliers  int               `json:"outliers"`
	Allowed   int               `json:"allowed"`
}

func (w *InstabilityWarning) String() string {
	switch w.Reason {
	case ReasonExcessOutliers:
		return fmt.Sprintf("UNSTABLE: %d outliers, at most %d may be rejected", w.Outliers, w.Allowed)
	default:
		return fmt.Sprintf("UNSTABLE: cv %.2f%% exceeds %.2f%%", w.CV*100, w.Threshold*100)
	}
}

// Aggregator reduces sample sets to Statistics. It holds no state, so
// Aggregate is a pure function of its input.
type Aggregator struct {
	OutlierK           float64
	MaxOutlierFraction float64
	CVThreshold        float64
}

// Aggregate computes statistics for s and flags it when unstable.
//
// One rejection pass drops samples further than OutlierK standard
// deviations from the mean. If that would drop more than
// MaxOutlierFraction of the samples, nothing is dropped and the result is
// flagged ReasonExcessOutliers. Otherwise the coefficient of variation of
// the kept samples is compared with CVThreshold.
func (a Aggregator) Aggregate(s SampleSet) (Statistics, *InstabilityWarning, error) {
	samples := s.perCall
	if len(samples) == 0 {
		return Statistics{}, nil, ErrNoSamples
	}

	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	mean := calculateMean(samples)
	stddev := math.Sqrt(calculateVariance(samples, mean))

	stats := Statistics{
		Samples: len(samples),
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		Mean:    mean,
		Median:  percentile(sorted, 0.5),
		StdDev:  stddev,
	}

	kept := rejectOutliers(samples, mean, stddev, a.OutlierK)
	outliers := len(samples) - len(kept)
	allowed := int(math.Floor(a.MaxOutlierFraction * float64(len(samples))))

	var warning *InstabilityWarning
	if outliers > allowed {
		kept = samples
		warning = &InstabilityWarning{
			Reason:    ReasonExcessOutliers,
			Threshold: a.CVThreshold,
			Outliers:  outliers,
			Allowed:   allowed,
		}
	} else {
		stats.Rejected = outliers
	}

	stats.CleanMean = calculateMean(kept)
	stats.CleanStdDev = math.Sqrt(calculateVariance(kept, stats.CleanMean))
	stats.CV = coefficientOfVariation(stats.CleanMean, stats.CleanStdDev)

	if warning != nil {
		warning.CV = stats.CV
		return stats, warning, nil
	}
	if stats.CV > a.CVThreshold {
		warning = &InstabilityWarning{
			Reason:    ReasonHighVariation,
			CV:        stats.CV,
			Threshold: a.CVThreshold,
			Outliers:  outliers,
			Allowed:   allowed,
		}
	}
	return stats, warning, nil
}

// rejectOutliers keeps samples within k standard deviations of mean.
// With zero spread nothing is an outlier.
func rejectOutliers(samples []float64, mean, stddev, k float64) []float64 {
	if stddev == 0 || k <= 0 {
		return samples
	}
	bound := k * stddev
	kept := make([]float64, 0, len(samples))
	for _, v := range samples {
		if math.Abs(v-mean) <= bound {
			kept = append(kept, v)
		}
	}
	return kept
}

func coefficientOfVariation(mean, stddev float64) float64 {
	if stddev == 0 {
		return 0
	}
	if mean == 0 {
		return math.Inf(1)
	}
	return stddev / math.Abs(mean)
}

// calculateMean calculates the arithmetic mean of samples.
func calculateMean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	return sum / float64(len(samples))
}

// calculateVariance calculates the population variance of samples.
func calculateVariance(samples []float64, mean float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquaredDiff float64
	for _, s := range samples {
		diff := s - mean
		sumSquaredDiff += diff * diff
	}
	return sumSquaredDiff / float64(len(samples))
}

// percentile calculates the p-th percentile of sorted samples using linear interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	index := p * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	fraction := index - float64(lower)
	return sorted[lower]*(1-fraction) + sorted[upper]*fraction
}
