package pd0

import (
	"errors"
	"fmt"
)

// State is the position of one decode attempt in the assembler state
// machine. Every state may move to StateDiscarded.
type State int

const (
	StateScanning State = iota
	StateHeaderFound
	StateChecksumValid
	StateSectionsParsing
	StateComplete
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateHeaderFound:
		return "header_found"
	case StateChecksumValid:
		return "checksum_valid"
	case StateSectionsParsing:
		return "sections_parsing"
	case StateComplete:
		return "complete"
	case StateDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Recovery records one discarded ensemble, or one run of bytes that held no
// sync marker, and where scanning resumed.
type Recovery struct {
	Start  int    `json:"start"`
	Resume int    `json:"resume"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

// Report is diagnostic output of a decode. It never affects what is emitted.
// Emitted ensembles and Recoveries together cover every byte of the buffer.
type Report struct {
	BufferBytes  int        `json:"buffer_bytes"`
	Emitted      int        `json:"emitted"`
	Discarded    int        `json:"discarded"`
	Skipped      int        `json:"skipped"`       // unsynchronised ranges
	SkippedBytes int        `json:"skipped_bytes"` // bytes in those ranges
	Recoveries   []Recovery `json:"recoveries,omitempty"`
}

func (r *Report) discard(start, resume int, err error) {
	r.Discarded++
	r.Recoveries = append(r.Recoveries, Recovery{
		Start:  start,
		Resume: resume,
		Reason: Reason(err),
		Err:    err,
	})
}

func (r *Report) skip(start, resume int) {
	r.Skipped++
	r.SkippedBytes += resume - start
	r.Recoveries = append(r.Recoveries, Recovery{
		Start:  start,
		Resume: resume,
		Reason: ReasonUnsynchronised,
		Err:    ErrUnsynchronised,
	})
}

// Decoder turns a raw PD0 buffer into a Sequence. A Decoder holds only
// settings; it is safe to reuse and to share between goroutines.
type Decoder struct {
	logf            func(format string, v ...interface{})
	skipUnsupported bool
}

// NewDecoder returns a decoder that skips status-profile and auxiliary
// sensor sections and does not log.
func NewDecoder() *Decoder {
	return &Decoder{skipUnsupported: true}
}

// SetLogger sets a printf-style function that receives one line per
// discarded ensemble. Nil disables logging.
func (d *Decoder) SetLogger(logf func(format string, v ...interface{})) {
	d.logf = logf
}

// SetSkipUnsupported controls whether status-profile and auxiliary sensor
// sections are skipped (true) or treated as unknown section types (false).
func (d *Decoder) SetSkipUnsupported(skip bool) {
	d.skipUnsupported = skip
}

// Decode decodes every valid ensemble in buf with the default decoder.
func Decode(buf []byte) (Sequence, *Report, error) {
	return NewDecoder().Decode(buf)
}

// Decode scans buf from the start and returns every ensemble that passed
// header, checksum and section validation, in buffer order. Local failures
// are recorded in the report and never returned as errors. An empty buffer
// yields an empty sequence.
func (d *Decoder) Decode(buf []byte) (Sequence, *Report, error) {
	s := d.NewScanner(buf)
	var seq Sequence
	for {
		ens, err := s.Next()
		if errors.Is(err, ErrNoMoreEnsembles) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		seq = append(seq, ens)
	}
	return seq, s.Report(), nil
}

// Scanner yields ensembles from a buffer one at a time.
type Scanner struct {
	d      *Decoder
	buf    []byte
	cursor int
	report Report
}

// NewScanner returns a Scanner positioned at the start of buf.
func (d *Decoder) NewScanner(buf []byte) *Scanner {
	return &Scanner{d: d, buf: buf, report: Report{BufferBytes: len(buf)}}
}

// Next returns the next valid ensemble, or ErrNoMoreEnsembles once the
// buffer holds no further sync marker.
func (s *Scanner) Next() (Ensemble, error) {
	for {
		start, ok := s.d.nextSync(s.buf, s.cursor, &s.report)
		if !ok {
			s.cursor = len(s.buf)
			return Ensemble{}, ErrNoMoreEnsembles
		}
		ens, resume, err := s.d.decodeAt(s.buf, start)
		s.cursor = resume
		if err != nil {
			s.report.discard(start, resume, err)
			s.d.logRecovery(start, resume, err)
			continue
		}
		s.report.Emitted++
		return ens, nil
	}
}

// Report returns a copy of the diagnostics gathered so far.
func (s *Scanner) Report() *Report {
	r := s.report
	r.Recoveries = append([]Recovery(nil), s.report.Recoveries...)
	return &r
}

// nextSync finds the next candidate at or after cursor. Bytes passed over on
// the way, including a tail with no sync marker, are recorded as skipped.
func (d *Decoder) nextSync(buf []byte, cursor int, report *Report) (int, bool) {
	start, ok := FindSync(buf, cursor)
	end := start
	if !ok {
		end = len(buf)
	}
	if end > cursor {
		report.skip(cursor, end)
		if d.logf != nil {
			d.logf("pd0: skipped %d unsynchronised bytes at offset %d", end-cursor, cursor)
		}
	}
	return start, ok
}

func (d *Decoder) logRecovery(start, resume int, err error) {
	if d.logf == nil {
		return
	}
	d.logf("pd0: discarded ensemble at offset %d, resuming at %d: %v", start, resume, err)
}

// decodeAt runs one ensemble through the state machine. It returns the
// offset at which scanning resumes whether or not the ensemble was emitted.
func (d *Decoder) decodeAt(buf []byte, start int) (Ensemble, int, error) {
	hdr, err := d.validateAt(buf, start)
	if err != nil {
		return Ensemble{}, start + 2, err
	}
	ens, err := d.assemble(buf, start, hdr)
	if err != nil {
		// The checksum vouched for the declared length, so skip all of it.
		return Ensemble{}, start + hdr.TotalLength(), err
	}
	return ens, start + hdr.TotalLength(), nil
}

// validateAt covers the HeaderFound and ChecksumValid states.
func (d *Decoder) validateAt(buf []byte, start int) (Header, error) {
	hdr, err := DecodeHeader(buf, start)
	if err != nil {
		return Header{}, &DecodeError{Offset: start, State: StateHeaderFound, Err: err}
	}
	if err := VerifyChecksum(buf, start, hdr); err != nil {
		return Header{}, &DecodeError{Offset: start, State: StateChecksumValid, Err: err}
	}
	return hdr, nil
}

// assemble covers SectionsParsing. Sections are decoded in offset-table
// order; any failure, including a repeated section kind, discards the whole
// ensemble.
func (d *Decoder) assemble(buf []byte, start int, hdr Header) (Ensemble, error) {
	ens := Ensemble{
		Header: hdr,
		Start:  start,
		End:    start + hdr.TotalLength(),
	}

	var cells *uint16
	seen := make(map[SectionKind]bool)
	for i, sp := range sectionSpans(hdr) {
		data := buf[start+sp.offset : start+sp.end]
		sec, err := dispatch(data, cells, d.skipUnsupported)
		if err == nil {
			if _, skipped := sec.(Unsupported); !skipped {
				if seen[sec.Kind()] {
					err = fmt.Errorf("%w: %s", ErrDuplicateSection, sec.Kind())
				}
				seen[sec.Kind()] = true
			}
		}
		if err != nil {
			return Ensemble{}, &DecodeError{
				Offset: start,
				State:  StateSectionsParsing,
				Err:    fmt.Errorf("section %d at offset %d: %w", i, sp.offset, err),
			}
		}

		switch s := sec.(type) {
		case *FixedLeader:
			ens.FixedLeader = s
			n := s.CellCount
			cells = &n
		case *VariableLeader:
			ens.VariableLeader = s
		case *Profile[int16]:
			ens.Velocity = s
		case *Profile[uint8]:
			switch s.Kind() {
			case KindCorrelation:
				ens.Correlation = s
			case KindEchoIntensity:
				ens.EchoIntensity = s
			case KindPercentGood:
				ens.PercentGood = s
			}
		case *BottomTrack:
			ens.BottomTrack = s
		case Unsupported:
			ens.Unsupported = append(ens.Unsupported, s.Code)
		}
	}

	if err := checkCellCounts(&ens); err != nil {
		return Ensemble{}, &DecodeError{Offset: start, State: StateSectionsParsing, Err: err}
	}
	return ens, nil
}

// checkCellCounts enforces that every series in the ensemble has exactly
// the fixed leader's cell count.
func checkCellCounts(ens *Ensemble) error {
	if ens.FixedLeader == nil {
		return nil
	}
	want := int(ens.FixedLeader.CellCount)
	check := func(kind SectionKind, lens [BeamCount]int) error {
		for b, n := range lens {
			if n != want {
				return fmt.Errorf("%w: %s beam %d has %d cells, fixed leader says %d",
					ErrCellCountMismatch, kind, b, n, want)
			}
		}
		return nil
	}
	if p := ens.Velocity; p != nil {
		if err := check(KindVelocity, seriesLens(p)); err != nil {
			return err
		}
	}
	for _, p := range []*Profile[uint8]{ens.Correlation, ens.EchoIntensity, ens.PercentGood} {
		if p == nil {
			continue
		}
		if err := check(p.Kind(), seriesLens(p)); err != nil {
			return err
		}
	}
	return nil
}

func seriesLens[T any](p *Profile[T]) [BeamCount]int {
	var lens [BeamCount]int
	for b, s := range p.Beams {
		lens[b] = len(s)
	}
	return lens
}
