package benchmark

import (
	"time"

	"microbench/internal/host"
)

// Status is the outcome of one cell.
type Status string

const (
	StatusOK                 Status = "ok"
	StatusAborted            Status = "aborted"
	StatusCalibrationTimeout Status = "calibration_timeout"
	StatusCanceled           Status = "canceled"
)

// Result is the record for one cell of one run. It is created once and
// never modified afterwards.
type Result struct {
	Name        string              `json:"name"`
	Values      []string            `json:"values"`
	Status      Status              `json:"status"`
	Error       string              `json:"error,omitempty"`
	Calibration *Calibration        `json:"calibration,omitempty"`
	Stats       *Statistics         `json:"stats,omitempty"`
	Stable      bool                `json:"stable"`
	Warning     *InstabilityWarning `json:"warning,omitempty"`
	Wall        time.Duration       `json:"wall"`

	// Err is the typed failure; only Error survives serialization.
	Err error `json:"-"`
}

// NsPerOp is the headline number of a result: the outlier-rejected mean,
// or zero when the cell produced no statistics.
func (r Result) NsPerOp() float64 {
	if r.Stats == nil {
		return 0
	}
	return r.Stats.CleanMean
}

// Failed reports whether the kernel itself failed. Calibration timeouts
// and cancellations are outcomes, not kernel failures.
func (r Result) Failed() bool {
	return r.Status == StatusAborted
}

// Run represents a collection of results from a single execution.
type Run struct {
	ID        string    `json:"id"`
	Suite     string    `json:"suite"`
	Timestamp time.Time `json:"timestamp"`
	Commit    string    `json:"commit,omitempty"` // Git commit hash
	Seed      uint64    `json:"seed"`
	Host      host.Info `json:"host"`
	Config    Config    `json:"config"`
	Axes      []string  `json:"axes"`
	Results   []Result  `json:"results"`
}

// Summary counts results by outcome.
type Summary struct {
	Total    int `json:"total"`
	OK       int `json:"ok"`
	Unstable int `json:"unstable"`
	Aborted  int `json:"aborted"`
	TimedOut int `json:"timed_out"`
	Canceled int `json:"canceled"`
}

// Summarize counts the outcomes in results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusOK:
			s.OK++
			if !r.Stable {
				s.Unstable++
			}
		case StatusAborted:
			s.Aborted++
		case StatusCalibrationTimeout:
			s.TimedOut++
		case StatusCanceled:
			s.Canceled++
		}
	}
	return s
}
