// Package monitor produces diagnostic output for analysis runs: PNG
// camera displays of individual events and an HTML summary report for
// a whole run.
package monitor

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/camera"
	"github.com/Ryo-Imazawa/magic-cta-pipe/internal/hillas"
)

// SaveCameraImage renders one telescope image to a PNG file. Pixels
// surviving cleaning are drawn filled, the rest faint; if params is
// non-nil the fitted major axis is overlaid through the centroid.
func SaveCameraImage(path, title string, geom *camera.Geometry, image []float64, mask []bool, params *hillas.Parameters) error {
	if len(image) != geom.NumPixels() {
		return fmt.Errorf("image has %d pixels, camera %q has %d", len(image), geom.Name, geom.NumPixels())
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	rejected := make(plotter.XYs, 0, len(image))
	selected := make(plotter.XYs, 0, len(image))
	for i := range image {
		x, y := geom.PixelPosition(i)
		pt := plotter.XY{X: x, Y: y}
		if mask != nil && i < len(mask) && mask[i] {
			selected = append(selected, pt)
		} else {
			rejected = append(rejected, pt)
		}
	}

	rejScatter, err := plotter.NewScatter(rejected)
	if err != nil {
		return fmt.Errorf("camera plot: %w", err)
	}
	rejScatter.GlyphStyle.Color = color.Gray{Y: 200}
	rejScatter.GlyphStyle.Radius = vg.Points(2)
	p.Add(rejScatter)

	if len(selected) > 0 {
		selScatter, err := plotter.NewScatter(selected)
		if err != nil {
			return fmt.Errorf("camera plot: %w", err)
		}
		selScatter.GlyphStyle.Color = color.RGBA{R: 220, G: 60, B: 40, A: 255}
		selScatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(selScatter)
		p.Legend.Add("selected", selScatter)
	}

	if params != nil && params.Usable() {
		// Major axis through the centroid, extended to two RMS lengths.
		half := 2 * params.Length
		dx := half * math.Cos(params.Psi)
		dy := half * math.Sin(params.Psi)
		axis := plotter.XYs{
			{X: params.X - dx, Y: params.Y - dy},
			{X: params.X + dx, Y: params.Y + dy},
		}
		line, err := plotter.NewLine(axis)
		if err != nil {
			return fmt.Errorf("camera plot: %w", err)
		}
		line.Width = vg.Points(1.5)
		line.Color = color.RGBA{B: 200, A: 255}
		p.Add(line)
		p.Legend.Add("major axis", line)
	}

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save camera plot: %w", err)
	}
	return nil
}
