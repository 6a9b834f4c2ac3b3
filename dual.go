// Package dual provides scalar dual numbers for forward-mode automatic
// differentiation.
//
// A Dual carries a value together with its derivative with respect to one
// independent variable. Every operation applies the chain rule immediately,
// so the result of each step is an ordinary Dual.
//
// Design goals:
//   - Zero-overhead value type, no allocation, no validation
//   - Generic over any integer or floating-point field T
//   - Same operation set as the lazy variant in package lazy
//
// There is no variable concept. To differentiate with respect to x, seed
// the derivative of x with 1 and leave every other input at 0:
//
//	x := dual.New(5.32, 1.0)
//	f := dual.Sin(x.Mul(x))
//	f.Derivative() // 2*x*cos(x*x)
//
// Division by a zero value, Log at zero and Abs at zero are not trapped.
// They yield whatever T's own arithmetic yields (Inf or NaN for floats).
package dual

import (
	"fmt"

	"github.com/njchilds90/godual/internal/scalar"
)

// ============================================================
// Numeric field
// ============================================================

// Number is the set of field types a Dual may be built over. The
// elementary functions are evaluated in float64 and converted back, so
// they are only meaningful for floating-point T.
type Number = scalar.Number

// ============================================================
// Dual - value and derivative pair
// ============================================================

// Dual is a value paired with its derivative. The zero value is (0, 0).
type Dual[T Number] struct {
	value      T
	derivative T
}

// Zero returns (0, 0).
func Zero[T Number]() Dual[T] { return Dual[T]{} }

// Const returns (v, 0), a constant with respect to the seeded variable.
func Const[T Number](v T) Dual[T] { return Dual[T]{value: v} }

// New returns (v, d).
func New[T Number](v, d T) Dual[T] { return Dual[T]{value: v, derivative: d} }

func (x Dual[T]) Value() T      { return x.value }
func (x Dual[T]) Derivative() T { return x.derivative }

func (x *Dual[T]) SetValue(v T)      { x.value = v }
func (x *Dual[T]) SetDerivative(d T) { x.derivative = d }

// String renders the pair as "(value, derivative)".
func (x Dual[T]) String() string {
	return fmt.Sprintf("(%v, %v)", x.value, x.derivative)
}

// ============================================================
// Arithmetic
// ============================================================

func (x Dual[T]) Add(y Dual[T]) Dual[T] {
	return Dual[T]{value: x.value + y.value, derivative: x.derivative + y.derivative}
}

func (x Dual[T]) Sub(y Dual[T]) Dual[T] {
	return Dual[T]{value: x.value - y.value, derivative: x.derivative - y.derivative}
}

// Mul applies the product rule.
func (x Dual[T]) Mul(y Dual[T]) Dual[T] {
	return Dual[T]{
		value:      x.value * y.value,
		derivative: x.value*y.derivative + x.derivative*y.value,
	}
}

// Div applies the quotient rule. A zero divisor value is not checked.
func (x Dual[T]) Div(y Dual[T]) Dual[T] {
	return Dual[T]{
		value:      x.value / y.value,
		derivative: (x.derivative*y.value - x.value*y.derivative) / (y.value * y.value),
	}
}

// ============================================================
// Elementary functions
// ============================================================

func Sin[T Number](x Dual[T]) Dual[T] {
	return Dual[T]{value: scalar.Sin(x.value), derivative: x.derivative * scalar.Cos(x.value)}
}

func Cos[T Number](x Dual[T]) Dual[T] {
	return Dual[T]{value: scalar.Cos(x.value), derivative: -x.derivative * scalar.Sin(x.value)}
}

func Exp[T Number](x Dual[T]) Dual[T] {
	return Dual[T]{value: scalar.Exp(x.value), derivative: x.derivative * scalar.Exp(x.value)}
}

// Log is the natural logarithm. The derivative is dv/v.
func Log[T Number](x Dual[T]) Dual[T] {
	return Dual[T]{value: scalar.Log(x.value), derivative: x.derivative / x.value}
}

// Pow raises x to the constant exponent k. k itself is not differentiated.
func Pow[T Number](x Dual[T], k T) Dual[T] {
	return Dual[T]{
		value:      scalar.Pow(x.value, k),
		derivative: k * scalar.Pow(x.value, k-1) * x.derivative,
	}
}

// Abs uses dv*v/|v| as the derivative, which is undefined at v = 0.
func Abs[T Number](x Dual[T]) Dual[T] {
	a := scalar.Abs(x.value)
	return Dual[T]{value: a, derivative: x.derivative * x.value / a}
}
