package domain

import "math"

// AllocationTolerance is the maximum deviation from 1.0 a valid allocation's
// weight sum may have.
const AllocationTolerance = 0.01

// ValidateAllocation reports whether the weights are all non-negative and sum
// to 1 within AllocationTolerance.
func ValidateAllocation(allocation map[string]float64) bool {
	if len(allocation) == 0 {
		return false
	}
	total := 0.0
	for _, w := range allocation {
		if w < 0 {
			return false
		}
		total += w
	}
	return math.Abs(total-1.0) < AllocationTolerance
}

// NormalizeAllocation scales the weights so they sum to 1. A zero-sum
// allocation is returned unchanged.
func NormalizeAllocation(allocation map[string]float64) map[string]float64 {
	total := 0.0
	for _, w := range allocation {
		total += w
	}
	if total == 0 {
		return allocation
	}
	normalized := make(map[string]float64, len(allocation))
	for code, w := range allocation {
		normalized[code] = w / total
	}
	return normalized
}
