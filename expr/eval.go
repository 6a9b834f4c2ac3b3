package expr

import (
	"strings"

	"github.com/pkg/errors"

	dual "github.com/njchilds90/godual"
	"github.com/njchilds90/godual/lazy"
)

// Mode selects which dual number implementation evaluates a Program.
type Mode string

const (
	Eager Mode = "eager"
	Lazy  Mode = "lazy"
)

// ParseMode accepts "eager" or "lazy", case-insensitively. Empty means Eager.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", Eager:
		return Eager, nil
	case Lazy:
		return Lazy, nil
	}
	return "", errors.Errorf("unknown mode %q (want eager or lazy)", s)
}

// Env supplies variable values. Wrt names the variable whose derivative is
// seeded with 1; all other variables are constants. An empty Wrt selects
// the only variable of a single-variable program.
type Env struct {
	Wrt    string
	Values map[string]float64
}

// At is shorthand for an Env with a single seeded variable.
func At(wrt string, x float64) Env {
	return Env{Wrt: wrt, Values: map[string]float64{wrt: x}}
}

func (p *Program) seed(env Env) (string, error) {
	wrt := env.Wrt
	if wrt == "" && len(p.vars) == 1 {
		wrt = p.vars[0]
	}
	var missing []string
	for _, v := range p.vars {
		if _, ok := env.Values[v]; !ok {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return "", errors.Wrapf(ErrUnboundVar, "%s in %q", strings.Join(missing, ", "), p.src)
	}
	return wrt, nil
}

// ============================================================
// Eager evaluation
// ============================================================

// Eager evaluates p with dual.Dual, applying the chain rule at every node.
func (p *Program) Eager(env Env) (dual.Dual[float64], error) {
	wrt, err := p.seed(env)
	if err != nil {
		return dual.Dual[float64]{}, err
	}
	return evalEager(p.root, env.Values, wrt)
}

func evalEager(n *Node, values map[string]float64, wrt string) (dual.Dual[float64], error) {
	switch n.Op {
	case OpConst:
		return dual.Const(n.Const), nil
	case OpVar:
		v, ok := values[n.Name]
		if !ok {
			return dual.Dual[float64]{}, errors.Wrap(ErrUnboundVar, n.Name)
		}
		if n.Name == wrt {
			return dual.New(v, 1), nil
		}
		return dual.Const(v), nil
	}

	args := make([]dual.Dual[float64], len(n.Args))
	for i, a := range n.Args {
		d, err := evalEager(a, values, wrt)
		if err != nil {
			return dual.Dual[float64]{}, err
		}
		args[i] = d
	}

	switch n.Op {
	case OpNeg:
		return dual.Zero[float64]().Sub(args[0]), nil
	case OpAdd:
		return args[0].Add(args[1]), nil
	case OpSub:
		return args[0].Sub(args[1]), nil
	case OpMul:
		return args[0].Mul(args[1]), nil
	case OpDiv:
		return args[0].Div(args[1]), nil
	case OpSin:
		return dual.Sin(args[0]), nil
	case OpCos:
		return dual.Cos(args[0]), nil
	case OpExp:
		return dual.Exp(args[0]), nil
	case OpLog:
		return dual.Log(args[0]), nil
	case OpPow:
		return dual.Pow(args[0], n.Const), nil
	case OpAbs:
		return dual.Abs(args[0]), nil
	}
	return dual.Dual[float64]{}, errors.Wrapf(ErrUnsupported, "op %s", n.Op)
}

// ============================================================
// Lazy evaluation
// ============================================================

// Binding is a lazy node tree built once over one leaf per variable. The
// tree references its leaves, so moving a leaf with Set or At changes what
// every later query returns. A Binding must not be used from more than one
// goroutine at a time; separate Bindings of one Program are independent.
type Binding struct {
	root   lazy.Expr[float64]
	leaves map[string]*lazy.Dual[float64]
	wrt    string
}

// Bind builds the lazy tree for p over env. A multi-variable program bound
// without env.Wrt has no seeded leaf, so every derivative is 0 and At only
// re-evaluates.
func (p *Program) Bind(env Env) (*Binding, error) {
	wrt, err := p.seed(env)
	if err != nil {
		return nil, err
	}
	b := &Binding{leaves: make(map[string]*lazy.Dual[float64], len(p.vars)), wrt: wrt}
	for _, v := range p.vars {
		leaf := lazy.Const(env.Values[v])
		if v == wrt {
			leaf.SetDerivative(1)
		}
		b.leaves[v] = leaf
	}
	root, err := b.build(p.root)
	if err != nil {
		return nil, err
	}
	b.root = root
	return b, nil
}

func (b *Binding) build(n *Node) (lazy.Expr[float64], error) {
	switch n.Op {
	case OpConst:
		return lazy.Const(n.Const), nil
	case OpVar:
		return b.leaves[n.Name], nil
	}

	args := make([]lazy.Expr[float64], len(n.Args))
	for i, a := range n.Args {
		e, err := b.build(a)
		if err != nil {
			return nil, err
		}
		args[i] = e
	}

	switch n.Op {
	case OpNeg:
		return lazy.SubOf[float64](lazy.Zero[float64](), args[0]), nil
	case OpAdd:
		return lazy.AddOf(args[0], args[1]), nil
	case OpSub:
		return lazy.SubOf(args[0], args[1]), nil
	case OpMul:
		return lazy.MulOf(args[0], args[1]), nil
	case OpDiv:
		return lazy.DivOf(args[0], args[1]), nil
	case OpSin:
		return lazy.SinOf(args[0]), nil
	case OpCos:
		return lazy.CosOf(args[0]), nil
	case OpExp:
		return lazy.ExpOf(args[0]), nil
	case OpLog:
		return lazy.LogOf(args[0]), nil
	case OpPow:
		return lazy.PowOf(args[0], n.Const), nil
	case OpAbs:
		return lazy.AbsOf(args[0]), nil
	}
	return nil, errors.Wrapf(ErrUnsupported, "op %s", n.Op)
}

// Expr returns the unevaluated root node.
func (b *Binding) Expr() lazy.Expr[float64] { return b.root }

// Wrt returns the seeded variable, or "" when nothing is seeded.
func (b *Binding) Wrt() string { return b.wrt }

// Leaf returns the storage behind a variable, or nil.
func (b *Binding) Leaf(name string) *lazy.Dual[float64] { return b.leaves[name] }

// Set moves a variable to v. Unknown names are ignored.
func (b *Binding) Set(name string, v float64) {
	if leaf, ok := b.leaves[name]; ok {
		leaf.SetValue(v)
	}
}

// At moves the seeded variable to x and materializes the tree. When nothing
// is seeded (Wrt is "") x is ignored and the current leaves are evaluated;
// move them with Set instead.
func (b *Binding) At(x float64) *lazy.Dual[float64] {
	b.Set(b.wrt, x)
	return lazy.Eval(b.root)
}

// Lazy binds p and materializes it once.
func (p *Program) Lazy(env Env) (*lazy.Dual[float64], error) {
	b, err := p.Bind(env)
	if err != nil {
		return nil, err
	}
	return lazy.Eval(b.root), nil
}

// Eval runs p in the given mode. Lazy results are copied into a dual.Dual
// so both modes share one result type.
func (p *Program) Eval(mode Mode, env Env) (dual.Dual[float64], error) {
	switch mode {
	case Eager, "":
		return p.Eager(env)
	case Lazy:
		r, err := p.Lazy(env)
		if err != nil {
			return dual.Dual[float64]{}, err
		}
		return dual.New(r.Value(), r.Derivative()), nil
	}
	return dual.Dual[float64]{}, errors.Errorf("eval: unknown mode %q", mode)
}
