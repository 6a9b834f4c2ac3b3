// Package tool exposes the dual number evaluators through a JSON tool
// interface suitable for HTTP endpoints and AI agent frameworks.
package tool

import (
	"context"
	"encoding/json"
	"math"
	"runtime"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/njchilds90/godual/expr"
)

// Defaults used when a request leaves a parameter out.
const (
	DefaultVar       = "x"
	DefaultCheckTol  = 1e-6
	DefaultPoints    = 101
	MaxPoints        = 100000
	agreementTol     = 1e-12
	defaultFromRange = -1.0
	defaultToRange   = 1.0
)

// ============================================================
// Results
// ============================================================

// Float is a float64 that encodes non-finite values as the JSON strings
// "NaN", "+Inf" and "-Inf".
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

func (f *Float) UnmarshalJSON(b []byte) error {
	switch string(b) {
	case `"NaN"`:
		*f = Float(math.NaN())
		return nil
	case `"+Inf"`:
		*f = Float(math.Inf(1))
		return nil
	case `"-Inf"`:
		*f = Float(math.Inf(-1))
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return errors.Wrapf(err, "float %s", b)
	}
	*f = Float(v)
	return nil
}

type EvalResult struct {
	Expr       string `json:"expr"`
	Var        string `json:"var"`
	At         Float  `json:"at"`
	Mode       string `json:"mode"`
	Value      Float  `json:"value"`
	Derivative Float  `json:"derivative"`
}

type CompareResult struct {
	Expr   string     `json:"expr"`
	Var    string     `json:"var"`
	At     Float      `json:"at"`
	Eager  EvalResult `json:"eager"`
	Lazy   EvalResult `json:"lazy"`
	Agrees bool       `json:"agrees"`
}

type CheckResult struct {
	Expr       string `json:"expr"`
	Var        string `json:"var"`
	At         Float  `json:"at"`
	Derivative Float  `json:"derivative"`
	Finite     Float  `json:"finite_difference"`
	AbsError   Float  `json:"abs_error"`
	Tol        Float  `json:"tol"`
	Pass       bool   `json:"pass"`
}

// Point is one sample of a formula and its derivative.
type Point struct {
	X          Float `json:"x"`
	Value      Float `json:"value"`
	Derivative Float `json:"derivative"`
}

// ============================================================
// Operations
// ============================================================

// Request names a formula, the seeded variable and its position; Vars
// holds the values of every other variable.
type Request struct {
	Expr string
	Var  string
	At   float64
	Vars map[string]float64
	Mode expr.Mode
}

func (r Request) env() expr.Env {
	vals := make(map[string]float64, len(r.Vars)+1)
	for k, v := range r.Vars {
		vals[k] = v
	}
	vals[r.variable()] = r.At
	return expr.Env{Wrt: r.variable(), Values: vals}
}

func (r Request) variable() string {
	if r.Var == "" {
		return DefaultVar
	}
	return r.Var
}

// Eval parses and evaluates r.Expr at r.At.
func Eval(r Request) (EvalResult, error) {
	p, err := expr.Parse(r.Expr)
	if err != nil {
		return EvalResult{}, err
	}
	if r.Mode == "" {
		r.Mode = expr.Eager
	}
	d, err := p.Eval(r.Mode, r.env())
	if err != nil {
		return EvalResult{}, err
	}
	return EvalResult{
		Expr:       p.String(),
		Var:        r.variable(),
		At:         Float(r.At),
		Mode:       string(r.Mode),
		Value:      Float(d.Value()),
		Derivative: Float(d.Derivative()),
	}, nil
}

// Compare evaluates r with both variants.
func Compare(r Request) (CompareResult, error) {
	r.Mode = expr.Eager
	e, err := Eval(r)
	if err != nil {
		return CompareResult{}, err
	}
	r.Mode = expr.Lazy
	l, err := Eval(r)
	if err != nil {
		return CompareResult{}, err
	}
	return CompareResult{
		Expr:   e.Expr,
		Var:    e.Var,
		At:     e.At,
		Eager:  e,
		Lazy:   l,
		Agrees: same(e.Value, l.Value) && same(e.Derivative, l.Derivative),
	}, nil
}

func same(a, b Float) bool {
	x, y := float64(a), float64(b)
	if math.IsNaN(x) || math.IsNaN(y) {
		return math.IsNaN(x) && math.IsNaN(y)
	}
	if math.IsInf(x, 0) || math.IsInf(y, 0) {
		return x == y
	}
	return scalar.EqualWithinAbsOrRel(x, y, agreementTol, agreementTol)
}

// Check compares the forward-mode derivative with a central finite
// difference. tol <= 0 selects DefaultCheckTol.
func Check(r Request, tol float64) (CheckResult, error) {
	if tol <= 0 {
		tol = DefaultCheckTol
	}
	p, err := expr.Parse(r.Expr)
	if err != nil {
		return CheckResult{}, err
	}
	b, err := p.Bind(r.env())
	if err != nil {
		return CheckResult{}, err
	}
	wrt := r.variable()
	ad := b.At(r.At).Derivative()
	// f moves the binding's leaf, so every difference point reuses one tree
	f := func(x float64) float64 {
		b.Set(wrt, x)
		return b.Expr().Value()
	}
	est := fd.Derivative(f, r.At, &fd.Settings{Formula: fd.Central})
	b.Set(wrt, r.At)

	return CheckResult{
		Expr:       p.String(),
		Var:        wrt,
		At:         Float(r.At),
		Derivative: Float(ad),
		Finite:     Float(est),
		AbsError:   Float(math.Abs(ad - est)),
		Tol:        Float(tol),
		Pass:       scalar.EqualWithinAbsOrRel(ad, est, tol, tol),
	}, nil
}

// Sample evaluates p at n evenly spaced points of [from, to]. The points
// are split into contiguous chunks, one lazy Binding per worker. workers
// <= 0 selects GOMAXPROCS.
func Sample(ctx context.Context, p *expr.Program, env expr.Env, from, to float64, n, workers int) ([]Point, error) {
	if n < 1 || n > MaxPoints {
		return nil, errors.Errorf("points must be in [1, %d], got %d", MaxPoints, n)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	step := 0.0
	if n > 1 {
		step = (to - from) / float64(n-1)
	}

	pts := make([]Point, n)
	g, ctx := errgroup.WithContext(ctx)
	chunk := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, lo+chunk
		if hi > n {
			hi = n
		}
		g.Go(func() error {
			b, err := p.Bind(env)
			if err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				x := from + step*float64(i)
				r := b.At(x)
				pts[i] = Point{X: Float(x), Value: Float(r.Value()), Derivative: Float(r.Derivative())}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pts, nil
}

// ============================================================
// Tool call interface
// ============================================================

type ToolRequest struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params"`
}

type ToolResponse struct {
	Result interface{} `json:"result,omitempty"`
	String string      `json:"string,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// HandleToolCall dispatches one tool call. Failures are reported in
// ToolResponse.Error, never as a panic.
func HandleToolCall(ctx context.Context, req ToolRequest) ToolResponse {
	errResp := func(err error) ToolResponse { return ToolResponse{Error: err.Error()} }

	getString := func(key string, def string) (string, error) {
		v, ok := req.Params[key]
		if !ok || v == nil {
			return def, nil
		}
		s, ok := v.(string)
		if !ok {
			return "", errors.Errorf("param %s must be a string", key)
		}
		return s, nil
	}
	getFloat := func(key string, def float64, required bool) (float64, error) {
		v, ok := req.Params[key]
		if !ok || v == nil {
			if required {
				return 0, errors.Errorf("missing param: %s", key)
			}
			return def, nil
		}
		switch n := v.(type) {
		case float64:
			return n, nil
		case json.Number:
			f, err := n.Float64()
			return f, errors.Wrapf(err, "param %s", key)
		case int:
			return float64(n), nil
		}
		return 0, errors.Errorf("param %s must be a number", key)
	}
	getVars := func(key string) (map[string]float64, error) {
		v, ok := req.Params[key]
		if !ok || v == nil {
			return nil, nil
		}
		raw, ok := v.(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("param %s must be an object of numbers", key)
		}
		out := make(map[string]float64, len(raw))
		for name, val := range raw {
			f, ok := val.(float64)
			if !ok {
				return nil, errors.Errorf("param %s.%s must be a number", key, name)
			}
			out[name] = f
		}
		return out, nil
	}
	getRequest := func() (Request, error) {
		var r Request
		var err error
		if r.Expr, err = getString("expr", ""); err != nil {
			return r, err
		}
		if r.Expr == "" {
			return r, errors.New("missing param: expr")
		}
		if r.Var, err = getString("var", DefaultVar); err != nil {
			return r, err
		}
		if r.At, err = getFloat("at", 0, req.Tool != "sample"); err != nil {
			return r, err
		}
		if r.Vars, err = getVars("vars"); err != nil {
			return r, err
		}
		if req.Tool != "eval" {
			return r, nil
		}
		mode, err := getString("mode", "")
		if err != nil {
			return r, err
		}
		if r.Mode, err = expr.ParseMode(mode); err != nil {
			return r, err
		}
		return r, nil
	}

	switch req.Tool {
	case "eval":
		r, err := getRequest()
		if err != nil {
			return errResp(err)
		}
		res, err := Eval(r)
		if err != nil {
			return errResp(err)
		}
		return ToolResponse{Result: res, String: formatPair(res.Value, res.Derivative)}

	case "compare":
		r, err := getRequest()
		if err != nil {
			return errResp(err)
		}
		res, err := Compare(r)
		if err != nil {
			return errResp(err)
		}
		return ToolResponse{Result: res, String: formatPair(res.Eager.Value, res.Eager.Derivative)}

	case "check":
		r, err := getRequest()
		if err != nil {
			return errResp(err)
		}
		tol, err := getFloat("tol", DefaultCheckTol, false)
		if err != nil {
			return errResp(err)
		}
		res, err := Check(r, tol)
		if err != nil {
			return errResp(err)
		}
		return ToolResponse{Result: res, String: formatPair(res.Derivative, res.Finite)}

	case "sample":
		r, err := getRequest()
		if err != nil {
			return errResp(err)
		}
		from, err := getFloat("from", defaultFromRange, false)
		if err != nil {
			return errResp(err)
		}
		to, err := getFloat("to", defaultToRange, false)
		if err != nil {
			return errResp(err)
		}
		n, err := getFloat("points", DefaultPoints, false)
		if err != nil {
			return errResp(err)
		}
		if n != math.Trunc(n) {
			return errResp(errors.Errorf("param points must be an integer, got %v", n))
		}
		p, err := expr.Parse(r.Expr)
		if err != nil {
			return errResp(err)
		}
		pts, err := Sample(ctx, p, r.env(), from, to, int(n), 0)
		if err != nil {
			return errResp(err)
		}
		return ToolResponse{Result: pts}

	case "mcp_spec":
		return ToolResponse{Result: json.RawMessage(MCPToolSpec())}
	}
	return errResp(errors.Errorf("unknown tool: %s", req.Tool))
}

func formatPair(v, d Float) string {
	return "(" + strconv.FormatFloat(float64(v), 'g', -1, 64) + ", " +
		strconv.FormatFloat(float64(d), 'g', -1, 64) + ")"
}

// ============================================================
// Tool schema
// ============================================================

func MCPToolSpec() string {
	props := map[string]string{"expr": "string", "var": "string", "at": "number", "vars": "object"}
	tools := []map[string]interface{}{
		ts("eval", "Value and derivative of expr at var=at. mode is eager (default) or lazy", []string{"expr", "at"},
			with(props, "mode", "string")),
		ts("compare", "Evaluate with both eager and lazy dual numbers and report agreement", []string{"expr", "at"}, props),
		ts("check", "Compare the derivative with a central finite difference. Optional tol", []string{"expr", "at"},
			with(props, "tol", "number")),
		ts("sample", "Value and derivative at evenly spaced points of [from, to]", []string{"expr"},
			with(with(with(props, "from", "number"), "to", "number"), "points", "integer")),
		ts("mcp_spec", "Return this tool schema", []string{}, map[string]string{}),
	}
	spec := map[string]interface{}{"tools": tools}
	b, _ := json.MarshalIndent(spec, "", "  ")
	return string(b)
}

func with(props map[string]string, key, typ string) map[string]string {
	out := make(map[string]string, len(props)+1)
	for k, v := range props {
		out[k] = v
	}
	out[key] = typ
	return out
}

func ts(name, description string, required []string, props map[string]string) map[string]interface{} {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	properties := map[string]interface{}{}
	for _, k := range keys {
		properties[k] = map[string]interface{}{"type": props[k]}
	}
	return map[string]interface{}{
		"name":        name,
		"description": description,
		"inputSchema": map[string]interface{}{
			"type":       "object",
			"properties": properties,
			"required":   required,
		},
	}
}
