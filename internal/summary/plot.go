package summary

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/current.report/internal/fsutil"
	"github.com/banshee-data/current.report/internal/pd0"
)

var beamColors = [pd0.BeamCount]color.Color{
	color.RGBA{R: 0xD6, G: 0x27, B: 0x28, A: 255},
	color.RGBA{R: 0x1F, G: 0x77, B: 0xB4, A: 255},
	color.RGBA{R: 0x2C, G: 0xA0, B: 0x2C, A: 255},
	color.RGBA{R: 0x94, G: 0x67, B: 0xBD, A: 255},
}

// WriteProfilePlot renders the mean echo intensity and correlation of each
// beam against cell index as a PNG at path.
func WriteProfilePlot(fsys fsutil.FileSystem, path, title string, s Summary) error {
	if len(s.Cells) == 0 {
		return fmt.Errorf("no profile data to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Cell"
	p.Y.Label.Text = "Mean raw counts"

	for b := 0; b < pd0.BeamCount; b++ {
		echoPts := make(plotter.XYs, 0, len(s.Cells))
		corrPts := make(plotter.XYs, 0, len(s.Cells))
		for _, c := range s.Cells {
			if c.EchoN > 0 {
				echoPts = append(echoPts, plotter.XY{X: float64(c.Cell), Y: c.Echo[b].Mean})
			}
			if c.CorrN > 0 {
				corrPts = append(corrPts, plotter.XY{X: float64(c.Cell), Y: c.Corr[b].Mean})
			}
		}

		if len(echoPts) > 0 {
			line, err := plotter.NewLine(echoPts)
			if err != nil {
				return err
			}
			line.Color = beamColors[b]
			line.Width = vg.Points(1)
			p.Add(line)
			p.Legend.Add(fmt.Sprintf("echo beam %d", b+1), line)
		}

		if len(corrPts) > 0 {
			line, err := plotter.NewLine(corrPts)
			if err != nil {
				return err
			}
			line.Color = beamColors[b]
			line.Width = vg.Points(1)
			line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
			p.Add(line)
			p.Legend.Add(fmt.Sprintf("corr beam %d", b+1), line)
		}
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	wt, err := p.WriterTo(10*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}

	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write plot: %w", err)
	}
	return f.Close()
}
