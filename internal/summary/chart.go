package summary

import (
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/current.report/internal/pd0"
)

func hexColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

// WriteProfileHTML writes the same profile as WriteProfilePlot as a
// self-contained ECharts page.
func WriteProfileHTML(w io.Writer, title string, s Summary) error {
	if len(s.Cells) == 0 {
		return fmt.Errorf("no profile data to chart")
	}

	cells := make([]string, len(s.Cells))
	for i, c := range s.Cells {
		cells[i] = strconv.Itoa(c.Cell)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1000px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("ensembles=%d cells=%d", s.Ensembles, len(s.Cells))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Cell", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Mean raw counts"}),
	)
	line.SetXAxis(cells)

	for b := 0; b < pd0.BeamCount; b++ {
		echo := make([]opts.LineData, len(s.Cells))
		corr := make([]opts.LineData, len(s.Cells))
		for i, c := range s.Cells {
			if c.EchoN > 0 {
				echo[i].Value = c.Echo[b].Mean
			}
			if c.CorrN > 0 {
				corr[i].Value = c.Corr[b].Mean
			}
		}
		col := hexColor(beamColors[b])
		line.AddSeries(fmt.Sprintf("echo beam %d", b+1), echo,
			charts.WithLineStyleOpts(opts.LineStyle{Color: col}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: col}),
		)
		line.AddSeries(fmt.Sprintf("corr beam %d", b+1), corr,
			charts.WithLineStyleOpts(opts.LineStyle{Color: col, Type: "dashed"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: col}),
		)
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
