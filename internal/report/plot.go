package report

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/banshee-data/boxtrack/internal/track"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotTrajectories draws the box-centre path of every object as a PNG of
// the given size. Image Y grows downwards, so centres are plotted with Y
// negated to keep the picture upright. Single-detection objects are drawn
// as a point.
func PlotTrajectories(w io.Writer, camera string, objs []*track.TrackedObject, width, height vg.Length) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Trajectories - %s (%d objects)", camera, len(objs))
	p.X.Label.Text = "X (px)"
	p.Y.Label.Text = "-Y (px)"

	colors := generateColors(len(objs))
	for i, obj := range objs {
		pts := make(plotter.XYs, len(obj.Detections))
		for j, d := range obj.Detections {
			cx, cy := d.Box.Center()
			pts[j] = plotter.XY{X: cx, Y: -cy}
		}
		if len(pts) == 0 {
			continue
		}

		if len(pts) == 1 {
			sc, err := plotter.NewScatter(pts)
			if err != nil {
				return fmt.Errorf("plot %s: %w", obj.ID, err)
			}
			sc.Color = colors[i]
			p.Add(sc)
			continue
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("plot %s: %w", obj.ID, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		if len(objs) <= 20 {
			p.Legend.Add(obj.ID.String(), line)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render trajectories: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write trajectories: %w", err)
	}
	return nil
}

// generateColors returns n evenly spaced hues.
func generateColors(n int) []color.Color {
	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL in [0,1] to 8-bit RGB.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	if s == 0 {
		v := uint8(math.Round(l * 255))
		return v, v, v
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	to8 := func(v float64) uint8 { return uint8(math.Round(v * 255)) }
	return to8(hueToRGB(p, q, h+1.0/3.0)), to8(hueToRGB(p, q, h)), to8(hueToRGB(p, q, h-1.0/3.0))
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 0.5:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
