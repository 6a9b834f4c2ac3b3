// Package scalar holds the numeric constraint and the elementary kernels
// shared by the eager and lazy dual number packages.
package scalar

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Number is any integer or floating-point type.
type Number interface {
	constraints.Integer | constraints.Float
}

// The transcendental kernels round-trip through float64. For integer T the
// result is truncated toward zero by the conversion.

func Sin[T Number](v T) T    { return T(math.Sin(float64(v))) }
func Cos[T Number](v T) T    { return T(math.Cos(float64(v))) }
func Exp[T Number](v T) T    { return T(math.Exp(float64(v))) }
func Log[T Number](v T) T    { return T(math.Log(float64(v))) }
func Pow[T Number](v, k T) T { return T(math.Pow(float64(v), float64(k))) }

// Abs stays in T so integer fields keep full precision.
func Abs[T Number](v T) T {
	if v < 0 {
		return -v
	}
	return v
}
