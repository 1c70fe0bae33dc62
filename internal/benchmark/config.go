package benchmark

import (
	"fmt"
	"strings"
	"time"
)

// Config controls calibration, sampling and aggregation. Use
// DefaultConfig and override fields as needed, then call Validate.
type Config struct {
	// MinInterval is the shortest timed batch calibration accepts.
	// Batches below it are dominated by clock quantization.
	MinInterval time.Duration `json:"min_interval"`

	// GrowthFactor multiplies the iteration count after every short batch.
	GrowthFactor int64 `json:"growth_factor"`

	// MaxIterations caps the calibrated iteration count.
	MaxIterations int64 `json:"max_iterations"`

	// CalibrationBudget caps the wall-clock time spent calibrating one cell.
	CalibrationBudget time.Duration `json:"calibration_budget"`

	// SampleCount is the number of timed batches per cell.
	SampleCount int `json:"sample_count"`

	// OutlierK rejects samples further than OutlierK standard deviations
	// from the mean.
	OutlierK float64 `json:"outlier_k"`

	// MaxOutlierFraction bounds the share of samples rejection may drop.
	MaxOutlierFraction float64 `json:"max_outlier_fraction"`

	// CVThreshold marks a cell unstable when its coefficient of variation
	// exceeds it.
	CVThreshold float64 `json:"instability_cv_threshold"`

	// TimeBudget bounds a whole matrix run. Zero means unbounded.
	TimeBudget time.Duration `json:"time_budget,omitempty"`

	// Parallelism is the number of cells run at once. 1 is sequential.
	Parallelism int `json:"parallelism"`
}

// DefaultConfig returns the defaults used when no option is configured.
func DefaultConfig() Config {
	return Config{
		MinInterval:        5 * time.Millisecond,
		GrowthFactor:       8,
		MaxIterations:      1 << 32,
		CalibrationBudget:  5 * time.Second,
		SampleCount:        20,
		OutlierK:           3,
		MaxOutlierFraction: 0.2,
		CVThreshold:        0.05,
		Parallelism:        1,
	}
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var problems []string
	if c.MinInterval <= 0 {
		problems = append(problems, "min interval must be positive")
	}
	if c.GrowthFactor < 2 {
		problems = append(problems, "growth factor must be at least 2")
	}
	if c.MaxIterations < 1 {
		problems = append(problems, "max iterations must be positive")
	}
	if c.CalibrationBudget <= 0 {
		problems = append(problems, "calibration budget must be positive")
	}
	if c.SampleCount < 2 {
		problems = append(problems, "sample count must be at least 2")
	}
	if c.OutlierK <= 0 {
		problems = append(problems, "outlier k must be positive")
	}
	if c.MaxOutlierFraction < 0 || c.MaxOutlierFraction >= 1 {
		problems = append(problems, "max outlier fraction must be in [0, 1)")
	}
	if c.CVThreshold <= 0 {
		problems = append(problems, "instability cv threshold must be positive")
	}
	if c.TimeBudget < 0 {
		problems = append(problems, "time budget must not be negative")
	}
	if c.Parallelism < 1 {
		problems = append(problems, "parallelism must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Aggregator returns the aggregation settings of c.
func (c Config) Aggregator() Aggregator {
	return Aggregator{
		OutlierK:           c.OutlierK,
		MaxOutlierFraction: c.MaxOutlierFraction,
		CVThreshold:        c.CVThreshold,
	}
}
