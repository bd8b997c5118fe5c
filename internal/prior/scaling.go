package prior

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/afcarl/rbpf-fireworks/internal/faults"
)

// Scaling selects how the association prior treats the ordering of
// detection groups within a frame.
type Scaling string

const (
	// ScalingIgnoreOrderings uses the association prior as is.
	ScalingIgnoreOrderings Scaling = "ignore_meas_orderings"
	// ScalingOriginal divides the association prior by the number of
	// group orderings consistent with the observed/birth/clutter counts.
	ScalingOriginal Scaling = "original"
)

// ParseScaling validates a scaling mode name. The empty string selects
// ScalingIgnoreOrderings.
func ParseScaling(s string) (Scaling, error) {
	switch Scaling(s) {
	case "", ScalingIgnoreOrderings:
		return ScalingIgnoreOrderings, nil
	case ScalingOriginal:
		return ScalingOriginal, nil
	}
	return "", fmt.Errorf("%w: unknown prior scaling mode %q", faults.ErrInvalidArgument, s)
}

// CountOrderings returns the number of ways m groups can be assigned to t
// distinct observed targets, b births and c clutter sources:
// C(m,t)·t!·C(m−t,b). It requires m == t+b+c.
func CountOrderings(m, t, b, c int) (float64, error) {
	if m != t+b+c || t < 0 || b < 0 || c < 0 {
		return 0, fmt.Errorf("%w: orderings need m=t+b+c, got m=%d t=%d b=%d c=%d",
			faults.ErrConsistencyViolation, m, t, b, c)
	}
	fm, ft, fb := float64(m), float64(t), float64(b)
	return combin.GeneralizedBinomial(fm, ft) * math.Gamma(ft+1) * combin.GeneralizedBinomial(fm-ft, fb), nil
}
