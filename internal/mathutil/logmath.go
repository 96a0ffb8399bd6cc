package mathutil

import "math"

// LogZero represents log(0), used as negative infinity in log-domain arithmetic.
const LogZero = -1e30

// ARPAZero is the log10 probability ARPA files use for events that can
// never be predicted, such as <s>.
const ARPAZero = -99.0

// FromLog10 converts a base-10 log probability to natural log.
func FromLog10(lp float64) float64 {
	return lp * math.Ln10
}

// ToLog10 converts a natural log probability to base 10.
// Values at or below LogZero are clamped to ARPAZero.
func ToLog10(lp float64) float64 {
	if lp <= LogZero {
		return ARPAZero
	}
	return lp / math.Ln10
}
