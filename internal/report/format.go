package report

import (
	"fmt"
	"math"
)

// FormatNs renders a nanosecond quantity with a unit that keeps three or
// four significant digits.
func FormatNs(ns float64) string {
	switch {
	case math.IsNaN(ns) || math.IsInf(ns, 0):
		return "N/A"
	case ns < 1e3:
		return fmt.Sprintf("%.2fns", ns)
	case ns < 1e6:
		return fmt.Sprintf("%.2fµs", ns/1e3)
	case ns < 1e9:
		return fmt.Sprintf("%.2fms", ns/1e6)
	default:
		return fmt.Sprintf("%.2fs", ns/1e9)
	}
}

// FormatPercent renders a fraction as a percentage.
func FormatPercent(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", f*100)
}
