// Package plot renders diagnostic graphics from an imputation result:
// per-cell estimate histories and an MDS scatter of the learned sample
// structure. Nothing here feeds back into the imputation loop.
package plot

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/wdm0006/forestfill/pkg/impute"
)

// Histories writes one PNG per missing cell under dir, split into
// convergent/ and divergent/ subdirectories by column name, mirroring the
// cell's estimate trajectory over the rounds that ran.
func Histories(dir string, res *impute.Result) error {
	for c, h := range res.Histories {
		if len(h.Estimates) == 0 {
			continue
		}
		sub := "divergent"
		if h.Status == impute.Convergent {
			sub = "convergent"
		}
		outDir := filepath.Join(dir, sub, c.Column)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
		p := plot.New()
		p.Title.Text = fmt.Sprintf("Estimates for row %d, column %s over %d rounds", c.Row, c.Column, len(h.Estimates))
		p.X.Label.Text = "round"
		p.Y.Label.Text = "estimate"

		xys := make(plotter.XYs, len(h.Estimates))
		for i, v := range h.Estimates {
			xys[i] = plotter.XY{X: float64(i + 1), Y: v}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Color = color.RGBA{R: 20, G: 80, B: 200, A: 255}
		line.Width = vg.Points(1.2)
		p.Add(line, plotter.NewGrid())

		out := filepath.Join(outDir, fmt.Sprintf("row_%d.png", c.Row))
		if err := p.Save(6*vg.Inch, 4*vg.Inch, out); err != nil {
			return err
		}
	}
	return nil
}

// MDSScatter writes a scatter plot of 2-D MDS coordinates derived from the
// distance matrix, with rows that had missing cells drawn in red.
func MDSScatter(path string, coords [][]float64, missingRows map[int]bool) error {
	if len(coords) == 0 {
		return fmt.Errorf("plot: no coordinates")
	}
	p := plot.New()
	p.Title.Text = "Sample structure (classical MDS of 1 - proximity)"
	p.X.Label.Text = "dim 1"
	p.Y.Label.Text = "dim 2"

	var complete, imputed plotter.XYs
	for i, c := range coords {
		xy := plotter.XY{X: c[0], Y: c[1]}
		if missingRows[i] {
			imputed = append(imputed, xy)
		} else {
			complete = append(complete, xy)
		}
	}
	if len(complete) > 0 {
		sc, err := plotter.NewScatter(complete)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = color.RGBA{R: 120, G: 120, B: 120, A: 200}
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add("complete rows", sc)
	}
	if len(imputed) > 0 {
		sc, err := plotter.NewScatter(imputed)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = color.RGBA{R: 200, G: 30, B: 30, A: 220}
		sc.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(sc)
		p.Legend.Add("imputed rows", sc)
	}
	p.Add(plotter.NewGrid())
	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}
