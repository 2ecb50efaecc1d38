// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// ClipSlice clips each element of values to [min, max] in place
func ClipSlice(values []float64, min, max float64) {
	for i := range values {
		values[i] = Clip(values[i], min, max)
	}
}

// ClipVec clips each element of v to [min, max] in place
func ClipVec(v *mat.VecDense, min, max float64) {
	for i := 0; i < v.Len(); i++ {
		v.SetVec(i, Clip(v.AtVec(i), min, max))
	}
}

// MSE returns the mean squared difference between a and b, which must
// have the same length.
func MSE(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("mse: slices must have the same length")
	}
	if len(a) == 0 {
		return 0
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum / float64(len(a))
}
