package splitter

import (
	"fmt"
	"math"
	"testing"
)

func TestHashToUnit_Deterministic(t *testing.T) {
	first := HashToUnit("salt", "exp_1", "gate", "user_42")
	for i := 0; i < 100; i++ {
		if got := HashToUnit("salt", "exp_1", "gate", "user_42"); got != first {
			t.Fatalf("call %d returned %v, first call returned %v", i, got, first)
		}
	}
}

func TestHashToUnit_Range(t *testing.T) {
	for i := 0; i < 10000; i++ {
		h := HashToUnit("range_salt", fmt.Sprintf("unit_%d", i))
		if h < 0 || h >= 1 {
			t.Fatalf("HashToUnit out of [0,1): %v for unit_%d", h, i)
		}
	}
}

func TestHashToUnit_InputSensitivity(t *testing.T) {
	base := HashToUnit("salt", "exp", "variant", "user_1")
	tests := []struct {
		name  string
		salt  string
		parts []string
	}{
		{"different salt", "salt2", []string{"exp", "variant", "user_1"}},
		{"different purpose", "salt", []string{"exp", "gate", "user_1"}},
		{"different unit", "salt", []string{"exp", "variant", "user_2"}},
		{"different experiment", "salt", []string{"exp2", "variant", "user_1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HashToUnit(tt.salt, tt.parts...); got == base {
				t.Errorf("expected a different hash than base %v", base)
			}
		})
	}
}

// Joining with a separator means shifting a boundary between adjacent parts
// must change the hash.
func TestHashToUnit_PartBoundaries(t *testing.T) {
	a := HashToUnit("salt", "ab", "c")
	b := HashToUnit("salt", "a", "bc")
	if a == b {
		t.Errorf("(ab,c) and (a,bc) hashed identically: %v", a)
	}
}

func TestHashToUnit_Uniformity(t *testing.T) {
	const n = 20000
	const buckets = 10
	counts := make([]int, buckets)
	for i := 0; i < n; i++ {
		h := HashToUnit("uniformity_salt", fmt.Sprintf("user_%d", i))
		counts[int(h*buckets)]++
	}
	expected := float64(n) / buckets
	for b, c := range counts {
		// 5 sigma on a binomial with p=0.1.
		sigma := math.Sqrt(n * 0.1 * 0.9)
		if math.Abs(float64(c)-expected) > 5*sigma {
			t.Errorf("bucket %d has %d units, expected ~%.0f", b, c, expected)
		}
	}
}
