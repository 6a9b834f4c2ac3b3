// Package lazy provides dual numbers whose arithmetic is deferred.
//
// Combining operands with AddOf, MulOf, SinOf and the other entry points
// does not compute anything. It builds a small tree of nodes, each exposing
// the same two queries as a concrete dual number:
//
//	type Expr[T] interface {
//	    Value() T
//	    Derivative() T
//	}
//
// Any type with those two methods is a valid operand. A tree is evaluated
// when it is queried, when Eval is called, or when it is assigned into
// concrete storage with Dual.Assign:
//
//	x := lazy.New(5.32, 1.0)
//	var f lazy.Dual[float64]
//	f.Assign(lazy.SinOf(lazy.MulOf(x, x)))
//
// Nodes compute Value and Derivative independently on every call with no
// caching. An operand reached along several paths is recomputed along each
// of them, and Derivative re-queries operand values itself.
//
// Nodes hold references to their operands, never copies. Concrete storage
// only satisfies Expr through *Dual, so a tree built over x observes later
// calls to x.SetValue. The garbage collector keeps referenced operands
// alive for as long as a node can reach them.
//
// Operands are stored as Expr interface values, so each node query is one
// dynamic call per operand. Results are identical to the eager variant.
package lazy

import (
	"fmt"

	"github.com/njchilds90/godual/internal/scalar"
)

// Number is any integer or floating-point type.
type Number = scalar.Number

// Expr is the capability shared by concrete storage and every node.
type Expr[T Number] interface {
	Value() T
	Derivative() T
}

func format[T Number](e Expr[T]) string {
	return fmt.Sprintf("(%v, %v)", e.Value(), e.Derivative())
}

// ============================================================
// Dual - concrete storage
// ============================================================

// Dual is materialized storage for a value and its derivative. The zero
// value is (0, 0).
type Dual[T Number] struct {
	value      T
	derivative T
}

func New[T Number](v, d T) *Dual[T] { return &Dual[T]{value: v, derivative: d} }
func Const[T Number](v T) *Dual[T]  { return &Dual[T]{value: v} }
func Zero[T Number]() *Dual[T]      { return &Dual[T]{} }

func (x *Dual[T]) Value() T      { return x.value }
func (x *Dual[T]) Derivative() T { return x.derivative }

func (x *Dual[T]) SetValue(v T)      { x.value = v }
func (x *Dual[T]) SetDerivative(d T) { x.derivative = d }

// Copy returns an independent copy of x.
func (x *Dual[T]) Copy() *Dual[T] { return &Dual[T]{value: x.value, derivative: x.derivative} }

// Assign materializes e into x. It queries e.Value and e.Derivative exactly
// once each, and only then stores them, so e may reference x itself.
func (x *Dual[T]) Assign(e Expr[T]) *Dual[T] {
	v := e.Value()
	d := e.Derivative()
	x.value, x.derivative = v, d
	return x
}

func (x *Dual[T]) String() string { return format[T](x) }

// Eval materializes any expression into fresh storage.
func Eval[T Number](e Expr[T]) *Dual[T] {
	return new(Dual[T]).Assign(e)
}

// ============================================================
// Binary nodes
// ============================================================

type Add[T Number] struct{ l, r Expr[T] }

func AddOf[T Number](l, r Expr[T]) Add[T] { return Add[T]{l: l, r: r} }

func (e Add[T]) Value() T       { return e.l.Value() + e.r.Value() }
func (e Add[T]) Derivative() T  { return e.l.Derivative() + e.r.Derivative() }
func (e Add[T]) Eval() *Dual[T] { return Eval[T](e) }
func (e Add[T]) String() string { return format[T](e) }

type Subtract[T Number] struct{ l, r Expr[T] }

func SubOf[T Number](l, r Expr[T]) Subtract[T] { return Subtract[T]{l: l, r: r} }

func (e Subtract[T]) Value() T       { return e.l.Value() - e.r.Value() }
func (e Subtract[T]) Derivative() T  { return e.l.Derivative() - e.r.Derivative() }
func (e Subtract[T]) Eval() *Dual[T] { return Eval[T](e) }
func (e Subtract[T]) String() string { return format[T](e) }

type Multiply[T Number] struct{ l, r Expr[T] }

func MulOf[T Number](l, r Expr[T]) Multiply[T] { return Multiply[T]{l: l, r: r} }

func (e Multiply[T]) Value() T { return e.l.Value() * e.r.Value() }
func (e Multiply[T]) Derivative() T {
	return e.l.Value()*e.r.Derivative() + e.l.Derivative()*e.r.Value()
}
func (e Multiply[T]) Eval() *Dual[T] { return Eval[T](e) }
func (e Multiply[T]) String() string { return format[T](e) }

type Divide[T Number] struct{ l, r Expr[T] }

func DivOf[T Number](l, r Expr[T]) Divide[T] { return Divide[T]{l: l, r: r} }

func (e Divide[T]) Value() T { return e.l.Value() / e.r.Value() }
func (e Divide[T]) Derivative() T {
	return (e.l.Derivative()*e.r.Value() - e.l.Value()*e.r.Derivative()) / (e.r.Value() * e.r.Value())
}
func (e Divide[T]) Eval() *Dual[T] { return Eval[T](e) }
func (e Divide[T]) String() string { return format[T](e) }

// ============================================================
// Unary nodes
// ============================================================

type Sine[T Number] struct{ r Expr[T] }

func SinOf[T Number](r Expr[T]) Sine[T] { return Sine[T]{r: r} }

func (e Sine[T]) Value() T       { return scalar.Sin(e.r.Value()) }
func (e Sine[T]) Derivative() T  { return e.r.Derivative() * scalar.Cos(e.r.Value()) }
func (e Sine[T]) Eval() *Dual[T] { return Eval[T](e) }
func (e Sine[T]) String() string { return format[T](e) }

type Cosine[T Number] struct{ r Expr[T] }

func CosOf[T Number](r Expr[T]) Cosine[T] { return Cosine[T]{r: r} }

func (e Cosine[T]) Value() T       { return scalar.Cos(e.r.Value()) }
func (e Cosine[T]) Derivative() T  { return -e.r.Derivative() * scalar.Sin(e.r.Value()) }
func (e Cosine[T]) Eval() *Dual[T] { return Eval[T](e) }
func (e Cosine[T]) String() string { return format[T](e) }

type Exponential[T Number] struct{ r Expr[T] }

func ExpOf[T Number](r Expr[T]) Exponential[T] { return Exponential[T]{r: r} }

func (e Exponential[T]) Value() T       { return scalar.Exp(e.r.Value()) }
func (e Exponential[T]) Derivative() T  { return e.r.Derivative() * scalar.Exp(e.r.Value()) }
func (e Exponential[T]) Eval() *Dual[T] { return Eval[T](e) }
func (e Exponential[T]) String() string { return format[T](e) }

// Logarithm is the natural logarithm.
type Logarithm[T Number] struct{ r Expr[T] }

func LogOf[T Number](r Expr[T]) Logarithm[T] { return Logarithm[T]{r: r} }

func (e Logarithm[T]) Value() T       { return scalar.Log(e.r.Value()) }
func (e Logarithm[T]) Derivative() T  { return e.r.Derivative() / e.r.Value() }
func (e Logarithm[T]) Eval() *Dual[T] { return Eval[T](e) }
func (e Logarithm[T]) String() string { return format[T](e) }

// Power raises its operand to the constant exponent k. The exponent is
// copied when the node is built, so changing the caller's variable afterwards
// has no effect on the node.
type Power[T Number] struct {
	r Expr[T]
	k T
}

func PowOf[T Number](r Expr[T], k T) Power[T] { return Power[T]{r: r, k: k} }

func (e Power[T]) Value() T { return scalar.Pow(e.r.Value(), e.k) }

// Derivative is the power rule k*v^(k-1)*dv.
func (e Power[T]) Derivative() T {
	return e.k * scalar.Pow(e.r.Value(), e.k-1) * e.r.Derivative()
}
func (e Power[T]) Exponent() T    { return e.k }
func (e Power[T]) Eval() *Dual[T] { return Eval[T](e) }
func (e Power[T]) String() string { return format[T](e) }

// Absolute uses dv*v/|v| as the derivative, undefined at v = 0.
type Absolute[T Number] struct{ r Expr[T] }

func AbsOf[T Number](r Expr[T]) Absolute[T] { return Absolute[T]{r: r} }

func (e Absolute[T]) Value() T { return scalar.Abs(e.r.Value()) }
func (e Absolute[T]) Derivative() T {
	return e.r.Derivative() * e.r.Value() / scalar.Abs(e.r.Value())
}
func (e Absolute[T]) Eval() *Dual[T] { return Eval[T](e) }
func (e Absolute[T]) String() string { return format[T](e) }
