package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/njchilds90/godual/expr"
	"github.com/njchilds90/godual/tool"
)

var errOutOfTolerance = errors.New("derivative outside tolerance")

// app is the state shared by every subcommand.
type app struct {
	out io.Writer
	log *logrus.Logger
	cfg config

	logLevel   string
	configPath string
}

func newRootCmd(out io.Writer, log *logrus.Logger) *cobra.Command {
	a := &app{out: out, log: log, cfg: defaultConfig()}
	root := &cobra.Command{
		Use:           "dualctl",
		Short:         "Evaluate formulas and their derivatives with dual numbers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := logrus.ParseLevel(a.logLevel)
			if err != nil {
				return errors.Wrap(err, "--log-level")
			}
			a.log.SetLevel(lvl)
			if a.cfg, err = loadConfig(a.configPath); err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{"config": a.configPath, "mode": a.cfg.Mode}).Debug("configuration loaded")
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.logLevel, "log-level", "warning", "log level (debug, info, warning, error)")
	pf.StringVar(&a.configPath, "config", "", "TOML file with default settings")

	root.AddCommand(a.evalCmd(), a.checkCmd(), a.sampleCmd(), a.plotCmd())
	return root
}

// ============================================================
// Shared flags
// ============================================================

type formulaFlags struct {
	wrt  string
	at   float64
	sets []string
	mode string
}

func (f *formulaFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.wrt, "var", tool.DefaultVar, "variable to differentiate by")
	fs.StringSliceVar(&f.sets, "set", nil, "value of another variable, name=value (repeatable)")
}

func (f *formulaFlags) registerAt(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.at, "at", 0, "point to evaluate at")
	_ = cmd.MarkFlagRequired("at")
}

// env builds the evaluation environment with the seeded variable at x.
func (f *formulaFlags) env(x float64) (expr.Env, error) {
	vals := map[string]float64{f.wrt: x}
	for _, s := range f.sets {
		name, raw, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return expr.Env{}, errors.Errorf("--set %q: want name=value", s)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return expr.Env{}, errors.Wrapf(err, "--set %s", name)
		}
		if name == f.wrt {
			return expr.Env{}, errors.Errorf("--set %s: use --at for the differentiated variable", name)
		}
		vals[name] = v
	}
	return expr.Env{Wrt: f.wrt, Values: vals}, nil
}

func (a *app) mode(cmd *cobra.Command, flag string) (expr.Mode, error) {
	if !cmd.Flags().Changed("mode") {
		flag = a.cfg.Mode
	}
	return expr.ParseMode(flag)
}

func (a *app) parse(src string) (*expr.Program, error) {
	p, err := expr.Parse(src)
	if err != nil {
		return nil, err
	}
	a.log.WithFields(logrus.Fields{"expr": p.String(), "vars": p.Vars()}).Debug("parsed formula")
	return p, nil
}

// ============================================================
// Subcommands
// ============================================================

func (a *app) evalCmd() *cobra.Command {
	var f formulaFlags
	cmd := &cobra.Command{
		Use:   "eval EXPR",
		Short: "Print (value, derivative) of EXPR at a point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.parse(args[0])
			if err != nil {
				return err
			}
			mode, err := a.mode(cmd, f.mode)
			if err != nil {
				return err
			}
			env, err := f.env(f.at)
			if err != nil {
				return err
			}
			d, err := p.Eval(mode, env)
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{"mode": mode, "at": f.at}).Info("evaluated")
			_, err = fmt.Fprintln(a.out, d.String())
			return err
		},
	}
	f.register(cmd.Flags())
	f.registerAt(cmd)
	cmd.Flags().StringVar(&f.mode, "mode", "", "evaluation mode: eager or lazy")
	return cmd
}

func (a *app) checkCmd() *cobra.Command {
	var (
		f   formulaFlags
		tol float64
	)
	cmd := &cobra.Command{
		Use:   "check EXPR",
		Short: "Compare the derivative of EXPR with a finite difference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("tol") {
				tol = a.cfg.Tol
			}
			env, err := f.env(f.at)
			if err != nil {
				return err
			}
			res, err := tool.Check(tool.Request{Expr: args[0], Var: f.wrt, At: f.at, Vars: env.Values}, tol)
			if err != nil {
				return err
			}
			status := "ok"
			if !res.Pass {
				status = "FAIL"
			}
			if _, err := fmt.Fprintf(a.out, "derivative %g\nfinite-difference %g\nabs-error %g\ntol %g\n%s\n",
				res.Derivative, res.Finite, res.AbsError, res.Tol, status); err != nil {
				return err
			}
			if !res.Pass {
				return errors.Wrapf(errOutOfTolerance, "%s at %s=%g", res.Expr, res.Var, f.at)
			}
			return nil
		},
	}
	f.register(cmd.Flags())
	f.registerAt(cmd)
	cmd.Flags().Float64Var(&tol, "tol", tool.DefaultCheckTol, "absolute and relative tolerance")
	return cmd
}

type rangeFlags struct {
	from, to float64
	points   int
	workers  int
}

func (r *rangeFlags) register(fs *pflag.FlagSet) {
	fs.Float64Var(&r.from, "from", -1, "start of the range")
	fs.Float64Var(&r.to, "to", 1, "end of the range")
	fs.IntVar(&r.points, "points", tool.DefaultPoints, "number of evenly spaced points")
	fs.IntVar(&r.workers, "workers", 0, "parallel workers, 0 for GOMAXPROCS")
}

func (a *app) sampleRange(cmd *cobra.Command, f *formulaFlags, r *rangeFlags, src string) ([]tool.Point, error) {
	if !cmd.Flags().Changed("points") {
		r.points = a.cfg.Points
	}
	if !cmd.Flags().Changed("workers") {
		r.workers = a.cfg.Workers
	}
	p, err := a.parse(src)
	if err != nil {
		return nil, err
	}
	env, err := f.env(r.from)
	if err != nil {
		return nil, err
	}
	a.log.WithFields(logrus.Fields{"from": r.from, "to": r.to, "points": r.points}).Info("sampling")
	return tool.Sample(cmd.Context(), p, env, r.from, r.to, r.points, r.workers)
}

func (a *app) sampleCmd() *cobra.Command {
	var (
		f formulaFlags
		r rangeFlags
	)
	cmd := &cobra.Command{
		Use:   "sample EXPR",
		Short: "Print x, value and derivative rows over a range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pts, err := a.sampleRange(cmd, &f, &r, args[0])
			if err != nil {
				return err
			}
			for _, pt := range pts {
				if _, err := fmt.Fprintf(a.out, "%g\t%g\t%g\n", pt.X, pt.Value, pt.Derivative); err != nil {
					return err
				}
			}
			return nil
		},
	}
	f.register(cmd.Flags())
	r.register(cmd.Flags())
	return cmd
}

func (a *app) plotCmd() *cobra.Command {
	var (
		f      formulaFlags
		r      rangeFlags
		out    string
		width  float64
		height float64
	)
	cmd := &cobra.Command{
		Use:   "plot EXPR",
		Short: "Draw EXPR and its derivative over a range",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("width") {
				width = a.cfg.Width
			}
			if !cmd.Flags().Changed("height") {
				height = a.cfg.Height
			}
			pts, err := a.sampleRange(cmd, &f, &r, args[0])
			if err != nil {
				return err
			}
			skipped, err := savePlot(pts, args[0], f.wrt, out, width, height)
			if err != nil {
				return err
			}
			if skipped > 0 {
				a.log.WithField("points", skipped).Warn("non-finite samples left out of the plot")
			}
			a.log.WithField("file", out).Info("plot written")
			return nil
		},
	}
	f.register(cmd.Flags())
	r.register(cmd.Flags())
	cmd.Flags().StringVarP(&out, "out", "o", "plot.png", "output file; the extension picks the format")
	cmd.Flags().Float64Var(&width, "width", 6, "width in inches")
	cmd.Flags().Float64Var(&height, "height", 4, "height in inches")
	return cmd
}
