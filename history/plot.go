// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package history

import (
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// SavePlot writes a PNG to path with 3 side-by-side plots over the epochs: loss, accuracy and learning rate.
func (h *History) SavePlot(path string) error {
	if len(h.Records) == 0 {
		return errors.New("no epochs recorded to plot")
	}
	series := func(fn func(r Record) float64) plotter.XYs {
		xys := make(plotter.XYs, len(h.Records))
		for ii, r := range h.Records {
			xys[ii].X = float64(r.Epoch)
			xys[ii].Y = fn(r)
		}
		return xys
	}

	lossPlot := newEpochPlot("Loss")
	err := plotutil.AddLinePoints(lossPlot,
		"train", series(func(r Record) float64 { return r.TrainLoss }),
		"validation", series(func(r Record) float64 { return r.ValidationLoss }))
	if err != nil {
		return errors.Wrapf(err, "plotting loss")
	}

	accuracyPlot := newEpochPlot("Accuracy")
	accuracyPlot.Y.Min, accuracyPlot.Y.Max = 0, 1
	err = plotutil.AddLinePoints(accuracyPlot,
		"train", series(func(r Record) float64 { return r.TrainAccuracy }),
		"validation", series(func(r Record) float64 { return r.ValidationAccuracy }))
	if err != nil {
		return errors.Wrapf(err, "plotting accuracy")
	}

	lrPlot := newEpochPlot("Learning Rate")
	lrPlot.Y.Scale = plot.LogScale{}
	lrPlot.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	err = plotutil.AddLines(lrPlot, series(func(r Record) float64 { return r.LearningRate }))
	if err != nil {
		return errors.Wrapf(err, "plotting learning rate")
	}
	if lrPlot.Y.Min == lrPlot.Y.Max {
		// A constant range would be widened into negative values, invalid in log scale.
		lrPlot.Y.Min, lrPlot.Y.Max = lrPlot.Y.Min/10, lrPlot.Y.Max*10
	}

	plots := [][]*plot.Plot{{lossPlot, accuracyPlot, lrPlot}}
	img := vgimg.New(18*vg.Inch, 5*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows: 1, Cols: len(plots[0]),
		PadX: vg.Millimeter, PadY: vg.Millimeter,
		PadTop: vg.Points(2), PadBottom: vg.Points(2),
		PadLeft: vg.Points(2), PadRight: vg.Points(2),
	}
	canvases := plot.Align(plots, tiles, dc)
	for ii, p := range plots[0] {
		p.Draw(canvases[0][ii])
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating plot file")
	}
	if _, err = (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "writing plot to %q", path)
	}
	return f.Close()
}

func newEpochPlot(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return p
}
