package main

import (
	"image/color"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/njchilds90/godual/tool"
)

var (
	valueColor = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	derivColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// savePlot draws the value and derivative curves of pts into file. Points
// where either is not finite are left out; the count is returned.
func savePlot(pts []tool.Point, title, wrt, file string, width, height float64) (int, error) {
	if width <= 0 || height <= 0 {
		return 0, errors.Errorf("plot size must be positive, got %gx%g", width, height)
	}
	values := make(plotter.XYs, 0, len(pts))
	derivs := make(plotter.XYs, 0, len(pts))
	skipped := 0
	for _, pt := range pts {
		x, v, d := float64(pt.X), float64(pt.Value), float64(pt.Derivative)
		if !finite(v) || !finite(d) {
			skipped++
			continue
		}
		values = append(values, plotter.XY{X: x, Y: v})
		derivs = append(derivs, plotter.XY{X: x, Y: d})
	}
	if len(values) == 0 {
		return skipped, errors.New("plot: no finite samples in range")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = wrt
	p.Add(plotter.NewGrid())

	vl, err := plotter.NewLine(values)
	if err != nil {
		return skipped, errors.Wrap(err, "plot value")
	}
	vl.Color = valueColor
	vl.Width = vg.Points(1.5)

	dl, err := plotter.NewLine(derivs)
	if err != nil {
		return skipped, errors.Wrap(err, "plot derivative")
	}
	dl.Color = derivColor
	dl.Width = vg.Points(1.5)
	dl.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}

	p.Add(vl, dl)
	p.Legend.Add("f("+wrt+")", vl)
	p.Legend.Add("f'("+wrt+")", dl)
	p.Legend.Top = true

	if err := p.Save(vg.Length(width)*vg.Inch, vg.Length(height)*vg.Inch, file); err != nil {
		return skipped, errors.Wrapf(err, "save plot %s", file)
	}
	return skipped, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
