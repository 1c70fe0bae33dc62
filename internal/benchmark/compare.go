package benchmark

import "fmt"

// Verdict classifies one cell of a comparison.
type Verdict string

const (
	VerdictPass       Verdict = "PASS"
	VerdictRegression Verdict = "FAIL"
	VerdictImproved   Verdict = "IMPR"
	VerdictNew        Verdict = "NEW"
	VerdictNoData     Verdict = "N/A"
)

// Comparison relates one cell between two runs.
type Comparison struct {
	Name        string
	NsPerOpDiff float64 // Percentage change of the clean mean
	Verdict     Verdict
	// Noisy is set when either side was flagged unstable, in which case
	// the verdict should not be trusted.
	Noisy bool
	Prev  *Result
	Curr  Result
}

// Compare relates every result of curr to the same cell in prev, keeping
// curr's order. A change beyond threshold percent is a regression or an
// improvement. Cells missing from prev are NEW; cells without statistics
// on either side are N/A.
func Compare(prev, curr Run, threshold float64) []Comparison {
	prevMap := make(map[string]Result, len(prev.Results))
	for _, r := range prev.Results {
		prevMap[r.Name] = r
	}

	comparisons := make([]Comparison, 0, len(curr.Results))
	for _, c := range curr.Results {
		comp := Comparison{Name: c.Name, Curr: c}
		p, ok := prevMap[c.Name]
		switch {
		case !ok:
			comp.Verdict = VerdictNew
		case p.Stats == nil || c.Stats == nil || p.NsPerOp() <= 0:
			comp.Prev = &p
			comp.Verdict = VerdictNoData
		default:
			comp.Prev = &p
			comp.NsPerOpDiff = (c.NsPerOp() - p.NsPerOp()) / p.NsPerOp() * 100
			comp.Noisy = !p.Stable || !c.Stable
			switch {
			case comp.NsPerOpDiff > threshold:
				comp.Verdict = VerdictRegression
			case comp.NsPerOpDiff < -threshold:
				comp.Verdict = VerdictImproved
			default:
				comp.Verdict = VerdictPass
			}
		}
		comparisons = append(comparisons, comp)
	}
	return comparisons
}

// Regressions counts trustworthy regressions in comps.
func Regressions(comps []Comparison) int {
	n := 0
	for _, c := range comps {
		if c.Verdict == VerdictRegression && !c.Noisy {
			n++
		}
	}
	return n
}

func (c Comparison) String() string {
	if c.Prev == nil || c.Verdict == VerdictNoData {
		return fmt.Sprintf("%s: %s", c.Name, c.Verdict)
	}
	s := fmt.Sprintf("%s: %+.2f%% ns/op %s", c.Name, c.NsPerOpDiff, c.Verdict)
	if c.Noisy {
		s += " (unstable)"
	}
	return s
}
