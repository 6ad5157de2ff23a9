package api

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleRunChart renders an HTML bar chart of a run's recoveries by reason.
func (s *Server) handleRunChart(w http.ResponseWriter, runID string) {
	if runID == "" {
		writeJSONError(w, http.StatusBadRequest, "run_id is required")
		return
	}
	run, err := s.db.Run(runID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		writeJSONError(w, http.StatusNotFound, "run not found")
		return
	}
	counts, err := s.db.RecoveryCounts(runID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	y := make([]opts.BarData, len(reasons))
	for i, reason := range reasons {
		y[i] = opts.BarData{Value: counts[reason]}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Recoveries " + run.SourcePath, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    run.SourcePath,
			Subtitle: fmt.Sprintf("run=%s emitted=%d discarded=%d skipped_bytes=%d", run.RunID, run.Emitted, run.Discarded, run.SkippedBytes),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(reasons).
		AddSeries("recoveries", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	var buf bytes.Buffer
	if err := bar.Render(&buf); err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
