package main

import (
	"context"
	"math"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	dual "github.com/njchilds90/godual"
	"github.com/njchilds90/godual/expr"
	"github.com/njchilds90/godual/tool"
)

const (
	serverName    = "godual"
	serverVersion = "v0.1.0"
)

type evalInput struct {
	Expr string             `json:"expr" jsonschema:"formula such as sin(x*x) or pow(x, 3)"`
	At   float64            `json:"at" jsonschema:"point at which to evaluate"`
	Var  string             `json:"var,omitempty" jsonschema:"variable to differentiate by, x when empty"`
	Vars map[string]float64 `json:"vars,omitempty" jsonschema:"values of the other variables"`
	Mode string             `json:"mode,omitempty" jsonschema:"eager (default) or lazy"`
}

func (in evalInput) request() (tool.Request, error) {
	mode, err := expr.ParseMode(in.Mode)
	if err != nil {
		return tool.Request{}, err
	}
	return tool.Request{Expr: in.Expr, Var: in.Var, At: in.At, Vars: in.Vars, Mode: mode}, nil
}

type evalOutput struct {
	Dual       string  `json:"dual" jsonschema:"(value, derivative)"`
	Value      float64 `json:"value" jsonschema:"value of the formula"`
	Derivative float64 `json:"derivative" jsonschema:"derivative with respect to var"`
}

type checkInput struct {
	Expr string             `json:"expr" jsonschema:"formula such as sin(x*x) or pow(x, 3)"`
	At   float64            `json:"at" jsonschema:"point at which to check"`
	Var  string             `json:"var,omitempty" jsonschema:"variable to differentiate by, x when empty"`
	Vars map[string]float64 `json:"vars,omitempty" jsonschema:"values of the other variables"`
	Tol  float64            `json:"tol,omitempty" jsonschema:"absolute and relative tolerance, 1e-6 when empty"`
}

type checkOutput struct {
	Derivative       float64 `json:"derivative" jsonschema:"forward-mode derivative"`
	FiniteDifference float64 `json:"finite_difference" jsonschema:"central finite difference estimate"`
	AbsError         float64 `json:"abs_error" jsonschema:"absolute difference of the two"`
	Pass             bool    `json:"pass" jsonschema:"whether they agree within tol"`
}

// errNonFinite is reported for results JSON numbers cannot carry.
var errNonFinite = errors.New("result is not finite")

func finite(vs ...float64) error {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Wrapf(errNonFinite, "%v", v)
		}
	}
	return nil
}

func newMCPServer(log logrus.FieldLogger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dual_eval",
		Description: "Evaluate a formula and its derivative at a point with dual numbers",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in evalInput) (*mcp.CallToolResult, evalOutput, error) {
		r, err := in.request()
		if err != nil {
			return nil, evalOutput{}, err
		}
		res, err := tool.Eval(r)
		if err != nil {
			log.WithError(err).WithField("expr", in.Expr).Info("dual_eval failed")
			return nil, evalOutput{}, err
		}
		v, d := float64(res.Value), float64(res.Derivative)
		if err := finite(v, d); err != nil {
			return nil, evalOutput{}, err
		}
		return nil, evalOutput{Dual: dualString(v, d), Value: v, Derivative: d}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dual_check",
		Description: "Compare the dual number derivative of a formula with a central finite difference",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in checkInput) (*mcp.CallToolResult, checkOutput, error) {
		r := tool.Request{Expr: in.Expr, Var: in.Var, At: in.At, Vars: in.Vars}
		res, err := tool.Check(r, in.Tol)
		if err != nil {
			log.WithError(err).WithField("expr", in.Expr).Info("dual_check failed")
			return nil, checkOutput{}, err
		}
		out := checkOutput{
			Derivative:       float64(res.Derivative),
			FiniteDifference: float64(res.Finite),
			AbsError:         float64(res.AbsError),
			Pass:             res.Pass,
		}
		if err := finite(out.Derivative, out.FiniteDifference); err != nil {
			return nil, checkOutput{}, err
		}
		return nil, out, nil
	})

	return server
}

func dualString(v, d float64) string { return dual.New(v, d).String() }
