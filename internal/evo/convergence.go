package evo

import "math"

const DefaultConvergenceThreshold = 0.005

// Converged compares successive population densities. A population that
// starts at zero density converges only if it stays at zero; rising from zero
// reports a relative change of 1.
func Converged(previous, current, threshold float64) (bool, float64) {
	if previous == 0 {
		if current == 0 {
			return true, 0
		}
		return false, 1
	}
	change := math.Abs(current-previous) / previous
	return change <= threshold, change
}
