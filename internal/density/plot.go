package density

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot renders one bar per sample to path. The image format follows the
// extension (.png, .svg, .pdf).
func Plot(samples []Sample, tileSize int, path string) error {
	if len(samples) == 0 {
		return fmt.Errorf("no density samples to plot")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	values := make(plotter.Values, len(samples))
	names := make([]string, len(samples))
	for i, s := range samples {
		values[i] = s.Density
		names[i] = strings.TrimSuffix(filepath.Base(s.File), filepath.Ext(s.File))
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Point density per file (tile size %d)", tileSize)
	p.Y.Label.Text = "points per square unit"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return fmt.Errorf("failed to create bar chart: %w", err)
	}
	bars.Color = color.RGBA{R: 46, G: 139, B: 87, A: 255}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = 0.8
	p.X.Tick.Label.XAlign = -1.0

	width := vg.Length(len(samples))*vg.Points(18) + 2*vg.Inch
	if width < 6*vg.Inch {
		width = 6 * vg.Inch
	}
	if err := p.Save(width, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
