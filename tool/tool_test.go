package tool_test

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/godual/expr"
	"github.com/njchilds90/godual/tool"
)

func call(t *testing.T, name string, params map[string]interface{}) tool.ToolResponse {
	t.Helper()
	// round trip through JSON so params look like a decoded HTTP body
	raw, err := json.Marshal(tool.ToolRequest{Tool: name, Params: params})
	require.NoError(t, err)
	var req tool.ToolRequest
	require.NoError(t, json.Unmarshal(raw, &req))
	return tool.HandleToolCall(context.Background(), req)
}

func TestFloat_MarshalNonFinite(t *testing.T) {
	b, err := json.Marshal([]tool.Float{1.5, tool.Float(math.NaN()), tool.Float(math.Inf(-1))})
	require.NoError(t, err)
	assert.Equal(t, `[1.5,"NaN","-Inf"]`, string(b))

	var back []tool.Float
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, 1.5, float64(back[0]))
	assert.True(t, math.IsNaN(float64(back[1])))
	assert.True(t, math.IsInf(float64(back[2]), -1))
}

// ============================================================
// Operations
// ============================================================

func TestEval_Defaults(t *testing.T) {
	res, err := tool.Eval(tool.Request{Expr: "x*x*x", At: 2})
	require.NoError(t, err)
	assert.Equal(t, "x", res.Var)
	assert.Equal(t, "eager", res.Mode)
	assert.Equal(t, tool.Float(8), res.Value)
	assert.Equal(t, tool.Float(12), res.Derivative)
}

func TestEval_ExtraVars(t *testing.T) {
	res, err := tool.Eval(tool.Request{Expr: "x*y", Var: "y", At: 4, Vars: map[string]float64{"x": 3}, Mode: expr.Lazy})
	require.NoError(t, err)
	assert.Equal(t, tool.Float(12), res.Value)
	assert.Equal(t, tool.Float(3), res.Derivative)
}

func TestEval_ParseError(t *testing.T) {
	_, err := tool.Eval(tool.Request{Expr: "tan(x)", At: 1})
	assert.Error(t, err)
}

func TestCompare_Agrees(t *testing.T) {
	res, err := tool.Compare(tool.Request{Expr: "exp(sin(cos(log(x*x))))", At: 5.32})
	require.NoError(t, err)
	assert.True(t, res.Agrees)
	assert.Equal(t, "eager", res.Eager.Mode)
	assert.Equal(t, "lazy", res.Lazy.Mode)
}

func TestCompare_NaNAgrees(t *testing.T) {
	res, err := tool.Compare(tool.Request{Expr: "abs(x)", At: 0})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(float64(res.Eager.Derivative)))
	assert.True(t, res.Agrees)
}

func TestCheck_MatchesFiniteDifference(t *testing.T) {
	for _, src := range []string{"sin(x*x)", "log(x*x)", "pow(x, 3) / (1 + x)", "abs(x*x - 2.3)"} {
		res, err := tool.Check(tool.Request{Expr: src, At: 1.7}, 0)
		require.NoError(t, err, src)
		assert.True(t, res.Pass, "%s: ad=%v fd=%v", src, res.Derivative, res.Finite)
		assert.Equal(t, tool.Float(tool.DefaultCheckTol), res.Tol)
	}
}

func TestCheck_KinkFails(t *testing.T) {
	// the forward-mode derivative is NaN at the kink
	res, err := tool.Check(tool.Request{Expr: "abs(x - 1)", At: 1}, 1e-9)
	require.NoError(t, err)
	assert.False(t, res.Pass)
}

func TestSample_Points(t *testing.T) {
	p := expr.MustParse("x*x")
	pts, err := tool.Sample(context.Background(), p, expr.At("x", 0), -1, 1, 5, 2)
	require.NoError(t, err)
	require.Len(t, pts, 5)
	want := []float64{-1, -0.5, 0, 0.5, 1}
	for i, pt := range pts {
		assert.InDelta(t, want[i], float64(pt.X), 1e-15)
		assert.InDelta(t, want[i]*want[i], float64(pt.Value), 1e-15)
		assert.InDelta(t, 2*want[i], float64(pt.Derivative), 1e-15)
	}
}

func TestSample_WorkerCountDoesNotMatter(t *testing.T) {
	p := expr.MustParse("sin(x) * exp(x / 3)")
	one, err := tool.Sample(context.Background(), p, expr.At("x", 0), 0, 10, 97, 1)
	require.NoError(t, err)
	many, err := tool.Sample(context.Background(), p, expr.At("x", 0), 0, 10, 97, 8)
	require.NoError(t, err)
	assert.Equal(t, one, many)
}

func TestSample_SinglePoint(t *testing.T) {
	pts, err := tool.Sample(context.Background(), expr.MustParse("x"), expr.At("x", 0), 3, 9, 1, 0)
	require.NoError(t, err)
	require.Len(t, pts, 1)
	assert.Equal(t, tool.Float(3), pts[0].X)
}

func TestSample_Errors(t *testing.T) {
	p := expr.MustParse("x + y")
	_, err := tool.Sample(context.Background(), p, expr.At("x", 0), 0, 1, 10, 2)
	assert.ErrorIs(t, err, expr.ErrUnboundVar)

	_, err = tool.Sample(context.Background(), expr.MustParse("x"), expr.At("x", 0), 0, 1, 0, 1)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tool.Sample(ctx, expr.MustParse("x"), expr.At("x", 0), 0, 1, 10, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

// ============================================================
// Tool calls
// ============================================================

func TestHandleToolCall_Eval(t *testing.T) {
	resp := call(t, "eval", map[string]interface{}{"expr": "x*x*x", "at": 5.32})
	require.Empty(t, resp.Error)
	res, ok := resp.Result.(tool.EvalResult)
	require.True(t, ok)
	assert.InDelta(t, 3*5.32*5.32, float64(res.Derivative), 1e-12)
	assert.NotEmpty(t, resp.String)
}

func TestHandleToolCall_EvalLazyWithVars(t *testing.T) {
	resp := call(t, "eval", map[string]interface{}{
		"expr": "x*y", "var": "x", "at": 2, "vars": map[string]interface{}{"y": 7}, "mode": "lazy",
	})
	require.Empty(t, resp.Error)
	assert.Equal(t, "(14, 7)", resp.String)
}

func TestHandleToolCall_Compare(t *testing.T) {
	resp := call(t, "compare", map[string]interface{}{"expr": "log(x*x)", "at": 5.32})
	require.Empty(t, resp.Error)
	res := resp.Result.(tool.CompareResult)
	assert.True(t, res.Agrees)
}

func TestHandleToolCall_Check(t *testing.T) {
	resp := call(t, "check", map[string]interface{}{"expr": "sin(x*x)", "at": 5.32, "tol": 1e-5})
	require.Empty(t, resp.Error)
	res := resp.Result.(tool.CheckResult)
	assert.True(t, res.Pass)
	assert.Equal(t, tool.Float(1e-5), res.Tol)
}

func TestHandleToolCall_Sample(t *testing.T) {
	resp := call(t, "sample", map[string]interface{}{"expr": "x", "from": 0, "to": 1, "points": 3})
	require.Empty(t, resp.Error)
	pts := resp.Result.([]tool.Point)
	require.Len(t, pts, 3)
	assert.Equal(t, tool.Float(0.5), pts[1].X)
	assert.Equal(t, tool.Float(1), pts[1].Derivative)
}

func TestHandleToolCall_Errors(t *testing.T) {
	cases := map[string]struct {
		tool   string
		params map[string]interface{}
	}{
		"unknown tool":  {"integrate", nil},
		"missing expr":  {"eval", map[string]interface{}{"at": 1}},
		"missing at":    {"eval", map[string]interface{}{"expr": "x"}},
		"bad at":        {"eval", map[string]interface{}{"expr": "x", "at": "one"}},
		"bad mode":      {"eval", map[string]interface{}{"expr": "x", "at": 1, "mode": "symbolic"}},
		"bad vars":      {"eval", map[string]interface{}{"expr": "x", "at": 1, "vars": []interface{}{1}}},
		"unbound":       {"check", map[string]interface{}{"expr": "x + y", "at": 1}},
		"parse":         {"compare", map[string]interface{}{"expr": "x ^ 2", "at": 1}},
		"sample bounds": {"sample", map[string]interface{}{"expr": "x", "points": 0}},
		"sample frac":   {"sample", map[string]interface{}{"expr": "x", "points": 2.5}},
	}
	for name, tc := range cases {
		resp := call(t, tc.tool, tc.params)
		assert.NotEmpty(t, resp.Error, name)
		assert.Nil(t, resp.Result, name)
	}
}

func TestHandleToolCall_NonFiniteEncodes(t *testing.T) {
	resp := call(t, "eval", map[string]interface{}{"expr": "1 / x", "at": 0})
	require.Empty(t, resp.Error)
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"+Inf"`)
}

func TestMCPToolSpec(t *testing.T) {
	var spec struct {
		Tools []struct {
			Name        string `json:"name"`
			InputSchema struct {
				Properties map[string]interface{} `json:"properties"`
				Required   []string               `json:"required"`
			} `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal([]byte(tool.MCPToolSpec()), &spec))
	names := map[string]bool{}
	for _, tl := range spec.Tools {
		names[tl.Name] = true
	}
	for _, n := range []string{"eval", "compare", "check", "sample", "mcp_spec"} {
		assert.True(t, names[n], n)
	}
	assert.Contains(t, spec.Tools[2].InputSchema.Properties, "tol")
	assert.Contains(t, spec.Tools[0].InputSchema.Properties, "mode")
	for _, tl := range spec.Tools[1:] {
		assert.NotContains(t, tl.InputSchema.Properties, "mode", tl.Name)
	}

	resp := call(t, "mcp_spec", nil)
	assert.Empty(t, resp.Error)
	assert.NotNil(t, resp.Result)
}
