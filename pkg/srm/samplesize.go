package srm

import (
	"fmt"
	"math"
)

// SampleSizeProportions returns the required sample size per variant for a
// two-sample proportion test to detect a relative lift of mde over
// baselineRate at the given significance level and power.
//
// The effect size is Cohen's h: 2·asin(√p1) − 2·asin(√p0).
func SampleSizeProportions(baselineRate, mde, alpha, power float64, alternative Alternative) (int, error) {
	if baselineRate <= 0 || baselineRate >= 1 {
		return 0, fmt.Errorf("baseline rate must be in (0,1), got %g", baselineRate)
	}
	if mde <= 0 {
		return 0, fmt.Errorf("minimum detectable effect must be positive, got %g", mde)
	}
	if alpha <= 0 || alpha >= 1 {
		return 0, fmt.Errorf("alpha must be in (0,1), got %g", alpha)
	}
	if power <= 0 || power >= 1 {
		return 0, fmt.Errorf("power must be in (0,1), got %g", power)
	}

	targetRate := baselineRate * (1 + mde)
	if targetRate >= 1 {
		return 0, fmt.Errorf("target rate %g must be below 1; lower the baseline or the effect", targetRate)
	}

	h := 2*math.Asin(math.Sqrt(targetRate)) - 2*math.Asin(math.Sqrt(baselineRate))
	if h == 0 {
		return 0, fmt.Errorf("effect size is zero")
	}

	var zAlpha float64
	switch alternative {
	case TwoSided, "":
		zAlpha = normalQuantile(1 - alpha/2)
	case Larger, Smaller:
		zAlpha = normalQuantile(1 - alpha)
	default:
		return 0, fmt.Errorf("unknown alternative %q", alternative)
	}
	zBeta := normalQuantile(power)

	n := math.Pow((zAlpha+zBeta)/h, 2)
	return int(math.Ceil(n)), nil
}
