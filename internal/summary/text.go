package summary

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
)

// WriteText prints s as aligned plain text.
func WriteText(w io.Writer, s Summary) error {
	fmt.Fprintf(w, "ensembles:            %d\n", s.Ensembles)
	fmt.Fprintf(w, "with variable leader: %d\n", s.WithVariableLeader)
	fmt.Fprintf(w, "with bottom track:    %d\n", s.WithBottomTrack)
	if s.FirstNumber != nil && s.LastNumber != nil {
		fmt.Fprintf(w, "ensemble numbers:     %d..%d\n", *s.FirstNumber, *s.LastNumber)
	}
	fmt.Fprintf(w, "missing ensembles:    %d in %d gaps\n", s.MissingTotal, len(s.Gaps))
	if s.OutOfOrder > 0 {
		fmt.Fprintf(w, "out of order:         %d\n", s.OutOfOrder)
	}

	counts := make([]int, 0, len(s.CellCounts))
	for c := range s.CellCounts {
		counts = append(counts, c)
	}
	sort.Ints(counts)
	for _, c := range counts {
		fmt.Fprintf(w, "cell count %-3d        %d ensembles\n", c, s.CellCounts[c])
	}

	for _, g := range s.Gaps {
		fmt.Fprintf(w, "gap: %d missing between %d and %d\n", g.Missing, g.After, g.Before)
	}

	if len(s.Cells) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "cell\tn\techo1\techo2\techo3\techo4\tcorr1\tcorr2\tcorr3\tcorr4\t")
	for _, c := range s.Cells {
		fmt.Fprintf(tw, "%d\t%d\t", c.Cell, c.EchoN)
		for _, b := range c.Echo {
			fmt.Fprintf(tw, "%.1f±%.1f\t", b.Mean, b.StdDev)
		}
		for _, b := range c.Corr {
			fmt.Fprintf(tw, "%.1f±%.1f\t", b.Mean, b.StdDev)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
