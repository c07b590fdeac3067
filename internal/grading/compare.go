package grading

import (
	"math"
	"sort"
)

// withinTolerance is an absolute tolerance check. Values outside the
// slider's range are compared as-is.
func withinTolerance(got, want, tol float64) bool {
	if math.IsNaN(got) || math.IsInf(got, 0) {
		return false
	}
	// 1e-9 absorbs float drift from clients that compute min+k*step.
	return math.Abs(got-want) <= tol+1e-9
}

func sequenceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sorted(xs []int) []int {
	out := append([]int(nil), xs...)
	sort.Ints(out)
	return out
}
