package srm

import (
	"fmt"
	"math"
	"sort"
)

// DefaultAlpha is the default significance level for SRM detection. SRM
// checks conventionally use a stricter alpha than experiment analysis
// because a flag implies a broken assignment pipeline, not a real effect.
const DefaultAlpha = 0.05

// Result is the outcome of one SRM test.
type Result struct {
	// ChiSquare is the goodness-of-fit statistic.
	ChiSquare float64

	// PValue is the probability of a deviation at least this large under
	// the configured allocation.
	PValue float64

	// DegreesOfFreedom is groups minus one.
	DegreesOfFreedom int

	// Severity is the R-style significance code for PValue:
	// "***" ≤0.001, "**" ≤0.01, "*" ≤0.05, "." ≤0.1, "" otherwise.
	Severity string

	// Flagged reports whether PValue < alpha: the observed split deviates
	// improbably from the expected allocation.
	Flagged bool

	// Observed and Expected echo the test inputs; ExpectedCounts holds the
	// per-variant counts the allocation predicts for the observed total.
	Observed       map[string]int
	Expected       map[string]float64
	ExpectedCounts map[string]float64

	// TotalSamples is the summed observed count.
	TotalSamples int
}

// String renders the verdict in one line.
func (r *Result) String() string {
	status := "no SRM"
	if r.Flagged {
		status = "SRM DETECTED"
	}
	return fmt.Sprintf("%s (chi2=%.3f, p=%.6f%s)", status, r.ChiSquare, r.PValue, severitySuffix(r.Severity))
}

func severitySuffix(severity string) string {
	if severity == "" {
		return ""
	}
	return " " + severity
}

// Tester performs sample-ratio-mismatch detection over assignment counts.
type Tester struct {
	// Alpha is the significance level below which a test is flagged.
	Alpha float64
}

// NewTester creates a tester with the default alpha.
func NewTester() *Tester {
	return &Tester{Alpha: DefaultAlpha}
}

// Test runs a chi-square goodness-of-fit test of the observed per-variant
// counts against the expected allocation fractions.
//
// expected must have at least two variants and fractions summing to a
// positive value (they are normalized, so a raw allocation table can be
// passed directly). observed may omit variants (zero counts) but must not
// contain variants absent from expected.
func (t *Tester) Test(observed map[string]int, expected map[string]float64) (*Result, error) {
	if len(expected) < 2 {
		return nil, fmt.Errorf("srm test needs at least 2 variants, got %d", len(expected))
	}

	variants := make([]string, 0, len(expected))
	var fractionSum float64
	for variant, fraction := range expected {
		if fraction < 0 {
			return nil, fmt.Errorf("expected fraction for variant %q is negative", variant)
		}
		variants = append(variants, variant)
		fractionSum += fraction
	}
	if fractionSum <= 0 {
		return nil, fmt.Errorf("expected fractions sum to %g, need a positive sum", fractionSum)
	}
	sort.Strings(variants)

	total := 0
	for variant, count := range observed {
		if count < 0 {
			return nil, fmt.Errorf("observed count for variant %q is negative", variant)
		}
		if _, ok := expected[variant]; !ok {
			return nil, fmt.Errorf("observed count for unknown variant %q", variant)
		}
		total += count
	}
	if total == 0 {
		return nil, fmt.Errorf("no observations")
	}

	result := &Result{
		DegreesOfFreedom: len(variants) - 1,
		Observed:         observed,
		Expected:         expected,
		ExpectedCounts:   make(map[string]float64, len(variants)),
		TotalSamples:     total,
	}

	var chi2 float64
	impossible := false
	for _, variant := range variants {
		e := expected[variant] / fractionSum * float64(total)
		o := float64(observed[variant])
		result.ExpectedCounts[variant] = e
		if e == 0 {
			// A variant allocated zero traffic that still received units is
			// a mismatch no statistic needs to quantify.
			if o > 0 {
				impossible = true
			}
			continue
		}
		chi2 += (o - e) * (o - e) / e
	}

	if impossible {
		result.ChiSquare = math.Inf(1)
		result.PValue = 0
	} else {
		result.ChiSquare = chi2
		result.PValue = ChiSquareSurvival(chi2, result.DegreesOfFreedom)
	}
	result.Severity = classifySeverity(result.PValue)
	result.Flagged = result.PValue < t.alpha()
	return result, nil
}

// BatchInput is one experiment's counts for BatchTest.
type BatchInput struct {
	Observed map[string]int
	Expected map[string]float64
}

// BatchOutcome is one experiment's batch result: a verdict or an input
// error, never both.
type BatchOutcome struct {
	Result *Result
	Err    error
}

// BatchTest runs Test for each experiment independently; one experiment's
// bad input never hides another's verdict.
func (t *Tester) BatchTest(inputs map[string]BatchInput) map[string]BatchOutcome {
	outcomes := make(map[string]BatchOutcome, len(inputs))
	for experimentID, input := range inputs {
		result, err := t.Test(input.Observed, input.Expected)
		outcomes[experimentID] = BatchOutcome{Result: result, Err: err}
	}
	return outcomes
}

func (t *Tester) alpha() float64 {
	if t.Alpha <= 0 {
		return DefaultAlpha
	}
	return t.Alpha
}

// classifySeverity maps a p-value to R-style significance codes.
func classifySeverity(p float64) string {
	switch {
	case p <= 0.001:
		return "***"
	case p <= 0.01:
		return "**"
	case p <= 0.05:
		return "*"
	case p <= 0.1:
		return "."
	default:
		return ""
	}
}
