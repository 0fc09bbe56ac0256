package polytunnelpv

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// irradianceGrid adapts a cellwise frame to the heat map grid interface.
// Columns are timestamps, rows are cells ordered by display angle.
type irradianceGrid struct {
	frame *CellwiseIrradiance
}

func (g irradianceGrid) Dims() (c, r int)   { return len(g.frame.Times), len(g.frame.Angles) }
func (g irradianceGrid) Z(c, r int) float64 { return g.frame.Values[c][r] }
func (g irradianceGrid) Y(r int) float64    { return g.frame.Angles[r] }

func (g irradianceGrid) X(c int) float64 {
	return g.frame.Times[c].Sub(g.frame.Times[0]).Hours()
}

// PlotIrradianceHeatmap renders the frame as a time-by-angle heat map and
// saves it to path; the format follows the file extension.
func PlotIrradianceHeatmap(frame *CellwiseIrradiance, path string) error {
	if len(frame.Times) < 2 || len(frame.Angles) == 0 {
		return &ConfigurationError{Reason: fmt.Sprintf(
			"irradiance frame for %q is too small to plot", frame.Scenario)}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Cellwise irradiance: %s", frame.Scenario)
	p.X.Label.Text = fmt.Sprintf("Hours since %s", frame.Times[0].Format(weatherTimeLayout))
	p.Y.Label.Text = "Cell angle / deg"

	heatMap := plotter.NewHeatMap(irradianceGrid{frame: frame}, moreland.ExtendedBlackBody().Palette(255))
	p.Add(heatMap)
	return p.Save(25*vg.Centimeter, 12*vg.Centimeter, path)
}

func curveXYs(curve IVCurve) plotter.XYs {
	xys := make(plotter.XYs, len(curve.Current))
	for i := range curve.Current {
		xys[i].X = curve.Voltage[i]
		xys[i].Y = curve.Current[i]
	}
	return xys
}

// PlotIVSnapshot renders the cell, string and module curves of a snapshot on
// shared axes. Cells are drawn as faint background lines; strings and the
// module carry the legend.
func PlotIVSnapshot(snapshot *IVSnapshot, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s at %s", snapshot.Scenario, snapshot.Time.Format(weatherTimeLayout))
	p.X.Label.Text = "Voltage / V"
	p.Y.Label.Text = "Current / A"

	for i, curve := range snapshot.CellCurves {
		line, err := plotter.NewLine(curveXYs(curve))
		if err != nil {
			return fmt.Errorf("plotting cell %d: %w", i, err)
		}
		line.Color = color.Gray{Y: 0xc8}
		line.Width = vg.Points(0.5)
		p.Add(line)
	}
	for i, curve := range snapshot.StringCurves {
		line, err := plotter.NewLine(curveXYs(curve))
		if err != nil {
			return fmt.Errorf("plotting string %d: %w", i, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("string %d", i), line)
	}

	moduleLine, err := plotter.NewLine(curveXYs(snapshot.ModuleCurve))
	if err != nil {
		return fmt.Errorf("plotting module curve: %w", err)
	}
	moduleLine.Color = color.Black
	moduleLine.Width = vg.Points(2)
	p.Add(moduleLine, plotter.NewGrid())
	p.Legend.Add("module", moduleLine)
	p.Legend.Top = true
	p.Legend.Left = true

	return p.Save(18*vg.Centimeter, 12*vg.Centimeter, path)
}

func powerXYs(curve IVCurve) plotter.XYs {
	xys := make(plotter.XYs, len(curve.Voltage))
	for i := range curve.Voltage {
		xys[i].X = curve.Voltage[i]
		xys[i].Y = curve.Power[i]
	}
	return xys
}

// PlotPowerVoltageSnapshot renders the power-voltage curves of a snapshot:
// each string against the module curve.
func PlotPowerVoltageSnapshot(snapshot *IVSnapshot, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s at %s", snapshot.Scenario, snapshot.Time.Format(weatherTimeLayout))
	p.X.Label.Text = "Voltage / V"
	p.Y.Label.Text = "Power / W"

	for i, curve := range snapshot.StringCurves {
		line, err := plotter.NewLine(powerXYs(curve))
		if err != nil {
			return fmt.Errorf("plotting string %d: %w", i, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("string %d", i), line)
	}

	moduleLine, err := plotter.NewLine(powerXYs(snapshot.ModuleCurve))
	if err != nil {
		return fmt.Errorf("plotting module curve: %w", err)
	}
	moduleLine.Color = color.Black
	moduleLine.Width = vg.Points(2)
	p.Add(moduleLine, plotter.NewGrid())
	p.Legend.Add("module", moduleLine)
	p.Legend.Top = true
	p.Legend.Left = true

	return p.Save(18*vg.Centimeter, 12*vg.Centimeter, path)
}

// PlotPowerSeries renders a maximum power point series against hours since
// its first timestamp.
func PlotPowerSeries(scenario string, points []PowerPoint, path string) error {
	if len(points) == 0 {
		return &ConfigurationError{Reason: fmt.Sprintf(
			"no power points to plot for scenario %q", scenario)}
	}

	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = pt.Time.Sub(points[0].Time).Hours()
		xys[i].Y = pt.Power
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("plotting power series: %w", err)
	}
	line.Color = plotutil.Color(0)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Maximum power point: %s", scenario)
	p.X.Label.Text = fmt.Sprintf("Hours since %s", points[0].Time.Format(weatherTimeLayout))
	p.Y.Label.Text = "Power / W"
	p.Add(line, plotter.NewGrid())

	return p.Save(18*vg.Centimeter, 10*vg.Centimeter, path)
}
