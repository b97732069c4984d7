package utils

import "math"

// NormalizeL2 normalizes the slice in place to unit L2 norm and returns the norm
// it had before normalization. If the norm is zero, the slice is unchanged.
func NormalizeL2(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return 0
	}
	norm := math.Sqrt(sum)
	inv := 1.0 / norm
	for i := range x {
		x[i] = float32(float64(x[i]) * inv)
	}
	return norm
}
