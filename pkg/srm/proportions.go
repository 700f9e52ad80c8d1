package srm

import (
	"fmt"
	"math"
)

// Alternative selects the alternative hypothesis for a proportion test.
type Alternative string

const (
	// TwoSided tests p1 != p2.
	TwoSided Alternative = "two-sided"
	// Larger tests p1 > p2.
	Larger Alternative = "larger"
	// Smaller tests p1 < p2.
	Smaller Alternative = "smaller"
)

// ProportionResult is the outcome of a two-proportion z-test.
type ProportionResult struct {
	Statistic   float64
	PValue      float64
	Proportion1 float64
	Proportion2 float64

	// Difference is p2 - p1.
	Difference float64

	// Lift is the relative change p2/p1 - 1; NaN when p1 is zero.
	Lift float64
}

// TestProportionDifference tests for a difference in proportions between two
// independent samples using the pooled normal approximation.
func TestProportionDifference(count1, nobs1, count2, nobs2 int, alternative Alternative) (*ProportionResult, error) {
	if nobs1 <= 0 || nobs2 <= 0 {
		return nil, fmt.Errorf("sample sizes must be positive, got %d and %d", nobs1, nobs2)
	}
	if count1 < 0 || count1 > nobs1 || count2 < 0 || count2 > nobs2 {
		return nil, fmt.Errorf("counts must be within [0, sample size]")
	}

	p1 := float64(count1) / float64(nobs1)
	p2 := float64(count2) / float64(nobs2)

	pooled := float64(count1+count2) / float64(nobs1+nobs2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(nobs1) + 1/float64(nobs2)))
	if se == 0 {
		return nil, fmt.Errorf("degenerate samples: pooled proportion is %g", pooled)
	}

	z := (p1 - p2) / se

	var pValue float64
	switch alternative {
	case TwoSided, "":
		pValue = 2 * normalSurvival(math.Abs(z))
	case Larger:
		pValue = normalSurvival(z)
	case Smaller:
		pValue = normalSurvival(-z)
	default:
		return nil, fmt.Errorf("unknown alternative %q", alternative)
	}

	lift := math.NaN()
	if p1 != 0 {
		lift = p2/p1 - 1
	}

	return &ProportionResult{
		Statistic:   z,
		PValue:      pValue,
		Proportion1: p1,
		Proportion2: p2,
		Difference:  p2 - p1,
		Lift:        lift,
	}, nil
}
