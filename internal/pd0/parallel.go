package pd0

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// candidate is an ensemble whose header and checksum have been validated.
type candidate struct {
	start int
	hdr   Header
}

// candidates performs the sequential first pass: it follows exactly the
// resync rules of Decode but stops after the checksum, so the set of
// candidates matches the ensembles Decode would try to assemble.
func (d *Decoder) candidates(buf []byte, report *Report) []candidate {
	var out []candidate
	cursor := 0
	for {
		start, ok := d.nextSync(buf, cursor, report)
		if !ok {
			return out
		}
		hdr, err := d.validateAt(buf, start)
		if err != nil {
			cursor = start + 2
			report.discard(start, cursor, err)
			d.logRecovery(start, cursor, err)
			continue
		}
		out = append(out, candidate{start: start, hdr: hdr})
		cursor = start + hdr.TotalLength()
	}
}

// DecodeParallel produces the same Sequence and Report as Decode, assembling
// validated ensembles on up to workers goroutines. workers <= 0 uses
// GOMAXPROCS.
func (d *Decoder) DecodeParallel(ctx context.Context, buf []byte, workers int) (Sequence, *Report, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	report := &Report{BufferBytes: len(buf)}
	cands := d.candidates(buf, report)

	results := make([]Ensemble, len(cands))
	errs := make([]error, len(cands))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range cands {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i], errs[i] = d.assemble(buf, c.start, c.hdr)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var seq Sequence
	for i, c := range cands {
		if errs[i] != nil {
			resume := c.start + c.hdr.TotalLength()
			report.discard(c.start, resume, errs[i])
			d.logRecovery(c.start, resume, errs[i])
			continue
		}
		seq = append(seq, results[i])
		report.Emitted++
	}
	sort.SliceStable(report.Recoveries, func(i, j int) bool {
		return report.Recoveries[i].Start < report.Recoveries[j].Start
	})
	return seq, report, nil
}
