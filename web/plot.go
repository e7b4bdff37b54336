package web

import (
	"bytes"
	"encoding/base64"
	"image/color"
	"math"

	"github.com/petrophysics/sonicdt/dataset"
	"github.com/petrophysics/sonicdt/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

type track struct {
	name  string
	color color.Color
}

// Tracks are drawn left to right: formation logs first, then measured and
// predicted DT.
var tracks = []track{
	{"GR", color.RGBA{G: 128, A: 255}},
	{"NPHI", color.RGBA{R: 255, G: 165, A: 255}},
	{"RHOB", color.RGBA{R: 165, G: 42, B: 42, A: 255}},
	{"PEF", color.RGBA{R: 128, B: 128, A: 255}},
	{RealColumn, color.RGBA{B: 255, A: 255}},
	{PredictedColumn, color.RGBA{R: 255, A: 255}},
}

const (
	plotWidth  = 18 * vg.Inch
	plotHeight = 10 * vg.Inch
)

// RenderTracks draws one track per log against depth and returns the PNG.
// All tracks share the same depth range with depth increasing downwards.
// A log missing from the frame leaves its track empty.
func RenderTracks(frame *dataset.Frame, depthColumn string) ([]byte, error) {
	depth, err := frame.Float(depthColumn)
	if err != nil {
		return nil, err
	}
	top, bottom := finiteRange(depth)

	row := make([]*plot.Plot, len(tracks))
	for i, tr := range tracks {
		p := plot.New()
		p.X.Label.Text = tr.name
		p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
		if top <= bottom {
			p.Y.Min, p.Y.Max = top, bottom
		}
		if i == 0 {
			p.Y.Label.Text = "DEPTH (m)"
		} else {
			p.HideY()
		}
		p.Add(plotter.NewGrid())

		if frame.Has(tr.name) {
			values, err := frame.Float(tr.name)
			if err != nil {
				return nil, err
			}
			if err := addCurve(p, tr, values, depth); err != nil {
				return nil, errors.Wrapf(err, "plot %s", tr.name)
			}
		}
		row[i] = p
	}

	img := vgimg.New(plotWidth, plotHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      1,
		Cols:      len(tracks),
		PadX:      vg.Millimeter,
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadLeft:   vg.Points(4),
		PadRight:  vg.Points(4),
	}
	canvases := plot.Align([][]*plot.Plot{row}, tiles, dc)
	for i, p := range row {
		p.Draw(canvases[0][i])
	}

	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "encode plot")
	}
	return buf.Bytes(), nil
}

// RenderTracksBase64 is RenderTracks encoded for an HTML data URI.
func RenderTracksBase64(frame *dataset.Frame, depthColumn string) (string, error) {
	png, err := RenderTracks(frame, depthColumn)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// addCurve plots values against depth, skipping rows where either is missing.
func addCurve(p *plot.Plot, tr track, values, depth []float64) error {
	xys := make(plotter.XYs, 0, len(values))
	for i, v := range values {
		if isFinite(v) && isFinite(depth[i]) {
			xys = append(xys, plotter.XY{X: v, Y: depth[i]})
		}
	}
	if len(xys) == 0 {
		return nil
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	line.LineStyle.Color = tr.color
	line.LineStyle.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(tr.name, line)
	p.Legend.Top = true
	return nil
}

func finiteRange(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
