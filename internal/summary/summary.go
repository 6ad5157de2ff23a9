// Package summary reduces a decoded sequence to raw-count statistics: how
// many ensembles there were, which ensemble numbers are missing, and the
// per-cell distribution of echo intensity and correlation for each beam.
// Values stay in instrument counts.
package summary

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/current.report/internal/pd0"
)

// BeamStats describes one beam at one depth cell across ensembles.
type BeamStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// CellStats holds the echo intensity and correlation statistics of one cell.
// EchoN and CorrN count the ensembles that contributed.
type CellStats struct {
	Cell  int                      `json:"cell"`
	EchoN int                      `json:"echo_n"`
	Echo  [pd0.BeamCount]BeamStats `json:"echo"`
	CorrN int                      `json:"corr_n"`
	Corr  [pd0.BeamCount]BeamStats `json:"corr"`
}

// Gap is a run of ensemble numbers missing between two ensembles.
type Gap struct {
	After   uint32 `json:"after"`
	Before  uint32 `json:"before"`
	Missing uint32 `json:"missing"`
}

// Summary is the result of Summarize.
type Summary struct {
	Ensembles          int     `json:"ensembles"`
	WithVariableLeader int     `json:"with_variable_leader"`
	WithBottomTrack    int     `json:"with_bottom_track"`
	FirstNumber        *uint32 `json:"first_number,omitempty"`
	LastNumber         *uint32 `json:"last_number,omitempty"`
	Gaps               []Gap   `json:"gaps,omitempty"`
	MissingTotal       uint32  `json:"missing_total"`

	// OutOfOrder counts ensembles whose number did not increase, such as a
	// duplicate or an instrument restart.
	OutOfOrder int `json:"out_of_order"`

	// CellCounts maps each fixed leader cell count seen to how many
	// ensembles declared it.
	CellCounts map[int]int `json:"cell_counts"`

	Cells []CellStats `json:"cells"`
}

// Summarize computes a Summary over seq.
func Summarize(seq pd0.Sequence) Summary {
	s := Summary{
		Ensembles:  len(seq),
		CellCounts: make(map[int]int),
	}

	var (
		prev    uint32
		hasPrev bool
	)
	for i := range seq {
		e := &seq[i]
		if e.FixedLeader != nil {
			s.CellCounts[int(e.FixedLeader.CellCount)]++
		}
		if e.BottomTrack != nil {
			s.WithBottomTrack++
		}
		if e.VariableLeader == nil {
			continue
		}
		s.WithVariableLeader++

		n := e.VariableLeader.FullEnsembleNumber()
		if !hasPrev {
			first := n
			s.FirstNumber = &first
		} else if n <= prev {
			s.OutOfOrder++
		} else if n > prev+1 {
			g := Gap{After: prev, Before: n, Missing: n - prev - 1}
			s.Gaps = append(s.Gaps, g)
			s.MissingTotal += g.Missing
		}
		prev, hasPrev = n, true
		last := n
		s.LastNumber = &last
	}

	s.Cells = cellStats(seq)
	return s
}

// cellStats gathers the per-cell samples of every ensemble carrying the
// profile and reduces them. Cells beyond an ensemble's own cell count
// simply receive no sample from it.
func cellStats(seq pd0.Sequence) []CellStats {
	maxCells := 0
	for i := range seq {
		if p := seq[i].EchoIntensity; p != nil && p.Cells() > maxCells {
			maxCells = p.Cells()
		}
		if p := seq[i].Correlation; p != nil && p.Cells() > maxCells {
			maxCells = p.Cells()
		}
	}
	if maxCells == 0 {
		return nil
	}

	echo := make(samples, maxCells)
	corr := make(samples, maxCells)
	for i := range seq {
		collect(echo, seq[i].EchoIntensity)
		collect(corr, seq[i].Correlation)
	}

	out := make([]CellStats, maxCells)
	for c := range out {
		out[c].Cell = c
		out[c].EchoN = len(echo[c][0])
		out[c].CorrN = len(corr[c][0])
		for b := 0; b < pd0.BeamCount; b++ {
			out[c].Echo[b] = describe(echo[c][b])
			out[c].Corr[b] = describe(corr[c][b])
		}
	}
	return out
}

// samples[c][b] holds the values seen for cell c, beam b.
type samples [][pd0.BeamCount][]float64

func collect(dst samples, p *pd0.Profile[uint8]) {
	if p == nil {
		return
	}
	for b := 0; b < pd0.BeamCount; b++ {
		for c, v := range p.Beams[b] {
			dst[c][b] = append(dst[c][b], float64(v))
		}
	}
}

func describe(x []float64) BeamStats {
	switch len(x) {
	case 0:
		return BeamStats{}
	case 1:
		return BeamStats{Mean: x[0], Min: x[0], Max: x[0]}
	}
	mean, std := stat.MeanStdDev(x, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return BeamStats{
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(x),
		Max:    floats.Max(x),
	}
}
