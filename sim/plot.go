package sim

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// NewTrajectoryPlot creates a plot of the controlled run from two data
// sources:
//
//	observed:  per-day observed prevalence
//	estimated: per-day estimated prevalence
//
// together with a horizontal line at the target value.
// It returns error if either series is empty or a plotter fails to build.
func NewTrajectoryPlot(observed, estimated []float64, target float64) (*plot.Plot, error) {
	if len(observed) == 0 || len(estimated) == 0 {
		return nil, fmt.Errorf("empty trajectory data")
	}

	p := plot.New()

	p.Title.Text = "Prevalence control"
	p.X.Label.Text = "day"
	p.Y.Label.Text = "exposed + infectious"
	p.Legend.Top = true

	obsLine, err := plotter.NewLine(makePoints(observed))
	if err != nil {
		return nil, err
	}
	obsLine.Color = color.RGBA{R: 255, A: 255}

	p.Add(obsLine)
	p.Legend.Add("observed", obsLine)

	estLine, err := plotter.NewLine(makePoints(estimated))
	if err != nil {
		return nil, err
	}
	estLine.Color = color.RGBA{B: 255, A: 255}
	estLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(estLine)
	p.Legend.Add("estimated", estLine)

	days := len(observed)
	if len(estimated) > days {
		days = len(estimated)
	}
	targetLine, err := plotter.NewLine(plotter.XYs{
		{X: 0, Y: target},
		{X: float64(days - 1), Y: target},
	})
	if err != nil {
		return nil, err
	}
	targetLine.Color = color.RGBA{G: 180, A: 255}

	p.Add(targetLine)
	p.Legend.Add("target", targetLine)

	return p, nil
}

func makePoints(series []float64) plotter.XYs {
	pts := make(plotter.XYs, len(series))
	for i, v := range series {
		pts[i].X = float64(i)
		pts[i].Y = v
	}

	return pts
}
