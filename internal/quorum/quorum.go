package quorum

import (
	"fmt"
	"math"
)

// Size returns how many nodes, the caller included, must answer before a
// quorum operation succeeds in a cluster of n: the larger of ceil(n*factor)
// and a strict majority, never more than n.
func Size(n int, factor float64) int {
	if n <= 0 {
		return 0
	}
	fromFactor := int(math.Ceil(float64(n) * factor))
	size := max(fromFactor, n/2+1)
	return min(size, n)
}

func ValidateFactor(factor float64) error {
	if math.IsNaN(factor) || factor <= 0 || factor > 1 {
		return fmt.Errorf("quorum factor must be within (0,1], got %v", factor)
	}
	return nil
}
