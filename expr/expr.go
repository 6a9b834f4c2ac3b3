// Package expr compiles textual formulas such as "abs(x*x - 2.3)" into
// programs that evaluate a value and its derivative with either the eager
// dual numbers of the root package or the lazy nodes of package lazy.
//
// Formulas use Go expression syntax: identifiers, numeric literals,
// + - * /, unary minus, parentheses and the calls sin, cos, exp, log, abs
// and pow(e, k) with a constant exponent k.
package expr

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

var (
	ErrSyntax      = errors.New("syntax error")
	ErrUnsupported = errors.New("unsupported construct")
	ErrUnknownFunc = errors.New("unknown function")
	ErrArity       = errors.New("wrong number of arguments")
	ErrExponent    = errors.New("exponent must be constant")
	ErrUnboundVar  = errors.New("unbound variable")
)

// ============================================================
// Node - compiled formula tree
// ============================================================

// Op identifies the operation of a Node.
type Op int

const (
	OpConst Op = iota
	OpVar
	OpNeg
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpSin
	OpCos
	OpExp
	OpLog
	OpPow
	OpAbs
)

var opNames = map[Op]string{
	OpConst: "const", OpVar: "var", OpNeg: "neg",
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/",
	OpSin: "sin", OpCos: "cos", OpExp: "exp", OpLog: "log", OpPow: "pow", OpAbs: "abs",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// Node is one operation of a compiled formula. Const holds the literal for
// OpConst and the exponent for OpPow; Name holds the identifier for OpVar.
type Node struct {
	Op    Op
	Const float64
	Name  string
	Args  []*Node
}

// unary functions callable by name
var funcs = map[string]Op{
	"sin": OpSin,
	"cos": OpCos,
	"exp": OpExp,
	"log": OpLog,
	"abs": OpAbs,
}

// ============================================================
// Program
// ============================================================

// Program is a parsed formula. It is immutable and safe to share.
type Program struct {
	src  string
	root *Node
	vars []string
}

// Parse compiles src. Every problem found is reported; the returned error
// is a *multierror.Error wrapping one of the Err values per problem.
func Parse(src string) (*Program, error) {
	tree, err := parser.ParseExpr(src)
	if err != nil {
		return nil, errors.Wrapf(ErrSyntax, "%q: %v", src, err)
	}
	c := &compiler{vars: map[string]struct{}{}}
	root := c.compile(tree)
	if err := c.errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	vars := make([]string, 0, len(c.vars))
	for v := range c.vars {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return &Program{src: strings.TrimSpace(src), root: root, vars: vars}, nil
}

// MustParse is Parse for formulas known to be valid; it panics on error.
func MustParse(src string) *Program {
	p, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Program) String() string { return p.src }
func (p *Program) Root() *Node    { return p.root }

// Vars returns the free identifiers, sorted.
func (p *Program) Vars() []string { return append([]string(nil), p.vars...) }

// ============================================================
// Compiler
// ============================================================

type compiler struct {
	vars map[string]struct{}
	errs *multierror.Error
}

func (c *compiler) fail(pos token.Pos, err error, format string, args ...interface{}) *Node {
	msg := fmt.Sprintf(format, args...)
	c.errs = multierror.Append(c.errs, errors.Wrapf(err, "col %d: %s", int(pos), msg))
	return &Node{Op: OpConst}
}

func (c *compiler) compile(e ast.Expr) *Node {
	switch n := e.(type) {
	case *ast.ParenExpr:
		return c.compile(n.X)
	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return c.fail(n.Pos(), ErrUnsupported, "literal %s", n.Value)
		}
		lit := constant.MakeFromLiteral(n.Value, n.Kind, 0)
		if lit.Kind() == constant.Unknown {
			return c.fail(n.Pos(), ErrSyntax, "literal %s", n.Value)
		}
		v, _ := constant.Float64Val(constant.ToFloat(lit))
		return &Node{Op: OpConst, Const: v}
	case *ast.Ident:
		if _, isFunc := funcs[n.Name]; isFunc || n.Name == "pow" {
			return c.fail(n.Pos(), ErrUnsupported, "%s used as a value", n.Name)
		}
		c.vars[n.Name] = struct{}{}
		return &Node{Op: OpVar, Name: n.Name}
	case *ast.UnaryExpr:
		switch n.Op {
		case token.ADD:
			return c.compile(n.X)
		case token.SUB:
			return &Node{Op: OpNeg, Args: []*Node{c.compile(n.X)}}
		}
		return c.fail(n.Pos(), ErrUnsupported, "unary operator %s", n.Op)
	case *ast.BinaryExpr:
		l, r := c.compile(n.X), c.compile(n.Y)
		switch n.Op {
		case token.ADD:
			return &Node{Op: OpAdd, Args: []*Node{l, r}}
		case token.SUB:
			return &Node{Op: OpSub, Args: []*Node{l, r}}
		case token.MUL:
			return &Node{Op: OpMul, Args: []*Node{l, r}}
		case token.QUO:
			return &Node{Op: OpDiv, Args: []*Node{l, r}}
		case token.XOR:
			return c.fail(n.OpPos, ErrUnsupported, "operator ^, use pow(x, k)")
		}
		return c.fail(n.OpPos, ErrUnsupported, "operator %s", n.Op)
	case *ast.CallExpr:
		return c.call(n)
	}
	return c.fail(e.Pos(), ErrUnsupported, "expression %T", e)
}

func (c *compiler) call(n *ast.CallExpr) *Node {
	id, ok := n.Fun.(*ast.Ident)
	if !ok {
		return c.fail(n.Pos(), ErrUnknownFunc, "call of %T", n.Fun)
	}
	if id.Name == "pow" {
		if len(n.Args) != 2 {
			return c.fail(n.Pos(), ErrArity, "pow takes 2 arguments, got %d", len(n.Args))
		}
		base := c.compile(n.Args[0])
		k := c.compile(n.Args[1])
		kv, ok := constValue(k)
		if !ok {
			return c.fail(n.Args[1].Pos(), ErrExponent, "pow exponent %s", exprText(n.Args[1]))
		}
		return &Node{Op: OpPow, Const: kv, Args: []*Node{base}}
	}
	op, ok := funcs[id.Name]
	if !ok {
		return c.fail(n.Pos(), ErrUnknownFunc, "%s", id.Name)
	}
	if len(n.Args) != 1 {
		return c.fail(n.Pos(), ErrArity, "%s takes 1 argument, got %d", id.Name, len(n.Args))
	}
	return &Node{Op: op, Args: []*Node{c.compile(n.Args[0])}}
}

// constValue folds a subtree that references no variables.
func constValue(n *Node) (float64, bool) {
	if hasVar(n) {
		return 0, false
	}
	d, err := evalEager(n, nil, "")
	if err != nil {
		return 0, false
	}
	return d.Value(), true
}

func hasVar(n *Node) bool {
	if n.Op == OpVar {
		return true
	}
	for _, a := range n.Args {
		if hasVar(a) {
			return true
		}
	}
	return false
}

func exprText(e ast.Expr) string {
	switch n := e.(type) {
	case *ast.Ident:
		return n.Name
	case *ast.BasicLit:
		return n.Value
	}
	return "expression"
}
