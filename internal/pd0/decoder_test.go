package pd0

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	for _, cells := range []int{0, 1, 4, 30, 255} {
		t.Run(fmt.Sprintf("cells=%d", cells), func(t *testing.T) {
			want := makeEnsemble(7, cells)
			if cells > 0 {
				// Signed values must survive unscaled.
				want.Velocity.Beams[2][0] = -32768
				want.Velocity.Beams[3][cells-1] = -1
			}
			want.VariableLeader.Pitch = -1234
			want.BottomTrack.Velocity[1] = -500

			buf := mustEncode(t, want)
			seq, report, err := Decode(buf)
			require.NoError(t, err)
			require.Len(t, seq, 1)
			assert.Equal(t, 1, report.Emitted)
			assert.Zero(t, report.Discarded)

			got := seq[0]
			if diff := cmp.Diff(want, got, ignorePlacement); diff != "" {
				t.Errorf("Ensemble mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, 0, got.Start)
			assert.Equal(t, len(buf), got.End)
			assert.Equal(t, uint16(len(buf)-2), got.Header.ByteCount)
		})
	}
}

func TestDecodeMultipleEnsemblesInOrder(t *testing.T) {
	var buf []byte
	for n := uint16(1); n <= 5; n++ {
		buf = append(buf, mustEncode(t, makeEnsemble(n, 8))...)
	}

	seq, report, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 2, 3, 4, 5}, ensembleNumbers(seq))
	assert.Equal(t, 5, report.Emitted)
	assert.Equal(t, len(buf), report.BufferBytes)
	for i := 1; i < len(seq); i++ {
		assert.Equal(t, seq[i-1].End, seq[i].Start, "ensembles are contiguous")
	}
}

func TestChecksumRejectsEverySingleBitFlip(t *testing.T) {
	first := mustEncode(t, makeEnsemble(1, 4))
	middle := mustEncode(t, makeEnsemble(2, 4))
	last := mustEncode(t, makeEnsemble(3, 4))
	bodyStart := len(first)
	bodyEnd := bodyStart + len(middle) - 2

	clean := concat(first, middle, last)
	for pos := bodyStart; pos < bodyEnd; pos++ {
		for bit := 0; bit < 8; bit++ {
			buf := append([]byte(nil), clean...)
			buf[pos] ^= 1 << bit

			seq, report, err := Decode(buf)
			require.NoError(t, err)
			if !assert.Equal(t, []uint16{1, 3}, ensembleNumbers(seq), "flip byte %d bit %d", pos-bodyStart, bit) {
				return
			}
			// A flipped sync byte hides the ensemble from the scanner, so it
			// shows up as a skipped range rather than a discard.
			assert.GreaterOrEqual(t, report.Discarded+report.Skipped, 1, "flip byte %d bit %d", pos-bodyStart, bit)
			assertCoversBuffer(t, buf, seq, report)
		}
	}
}

func TestResyncOverCorruptBytes(t *testing.T) {
	first := mustEncode(t, makeEnsemble(1, 4))
	second := mustEncode(t, makeEnsemble(2, 4))

	junk := map[string][]byte{
		"noise":           {0xDE, 0xAD, 0xBE, 0xEF, 0x7F, 0x00, 0x13, 0x37},
		"spurious sync":   {0x7F, 0x7F, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06},
		"zeros":           make([]byte, 8),
		"lone sync bytes": {0x7F, 0x00, 0x7F, 0x00, 0x7F, 0x00, 0x7F, 0x00},
	}

	for name, corrupt := range junk {
		t.Run(name, func(t *testing.T) {
			buf := concat(first, corrupt, second)
			seq, report, err := Decode(buf)
			require.NoError(t, err)
			require.Len(t, seq, 2)
			assert.Equal(t, []uint16{1, 2}, ensembleNumbers(seq))
			assert.Equal(t, len(first)+len(corrupt), seq[1].Start)
			assertCoversBuffer(t, buf, seq, report)
		})
	}
}

// A trailing 0x7F in the junk pairs with the first sync byte of the next
// ensemble. The false candidate fails and the scan resumes two bytes on,
// past the real marker, so the next ensemble is lost and reported as a
// skipped range.
func TestResyncJunkEndingInSyncByte(t *testing.T) {
	first := mustEncode(t, makeEnsemble(1, 4))
	second := mustEncode(t, makeEnsemble(2, 4))
	junk := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x13, 0x37, 0x7F}
	buf := concat(first, junk, second)

	seq, report, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1}, ensembleNumbers(seq))
	assert.Equal(t, 1, report.Discarded)

	falseStart := len(first) + len(junk) - 1
	want := []Recovery{
		{Start: len(first), Resume: falseStart, Reason: ReasonUnsynchronised},
		{Start: falseStart, Resume: falseStart + 2, Reason: "truncated_section"},
		{Start: falseStart + 2, Resume: len(buf), Reason: ReasonUnsynchronised},
	}
	if diff := cmp.Diff(want, report.Recoveries, ignoreRecoveryErr); diff != "" {
		t.Errorf("Recoveries mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, len(junk)-1+len(second)-1, report.SkippedBytes)
	assertCoversBuffer(t, buf, seq, report)
}

func TestDestroyedSyncMarkerIsReported(t *testing.T) {
	first := mustEncode(t, makeEnsemble(1, 4))
	middle := mustEncode(t, makeEnsemble(2, 4))
	last := mustEncode(t, makeEnsemble(3, 4))
	buf := concat(first, middle, last)
	buf[len(first)] ^= 0x01

	seq, report, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1, 3}, ensembleNumbers(seq))
	assert.Zero(t, report.Discarded)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, len(middle), report.SkippedBytes)

	require.Len(t, report.Recoveries, 1)
	r := report.Recoveries[0]
	assert.Equal(t, len(first), r.Start)
	assert.Equal(t, len(first)+len(middle), r.Resume)
	assert.Equal(t, ReasonUnsynchronised, r.Reason)
	assert.ErrorIs(t, r.Err, ErrUnsynchronised)

	_, parReport, err := NewDecoder().DecodeParallel(context.Background(), buf, 2)
	require.NoError(t, err)
	if diff := cmp.Diff(report, parReport, ignoreRecoveryErr); diff != "" {
		t.Errorf("Report mismatch (-sequential +parallel):\n%s", diff)
	}
}

func TestResyncAfterCorruptHeaderResumesTwoBytesLater(t *testing.T) {
	good := mustEncode(t, makeEnsemble(1, 4))
	bad := append([]byte(nil), good...)
	bad[len(bad)-2] ^= 0xFF // stored checksum

	buf := concat(bad, good)
	seq, report, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, seq, 1)
	require.Len(t, report.Recoveries, 2)

	r := report.Recoveries[0]
	assert.Equal(t, 0, r.Start)
	assert.Equal(t, 2, r.Resume)
	assert.Equal(t, "checksum_mismatch", r.Reason)

	var de *DecodeError
	require.True(t, errors.As(r.Err, &de))
	assert.Equal(t, StateChecksumValid, de.State)

	// The rest of the rejected ensemble holds no sync marker.
	skipped := report.Recoveries[1]
	assert.Equal(t, Recovery{Start: 2, Resume: len(bad), Reason: ReasonUnsynchronised, Err: ErrUnsynchronised}, skipped)
}

func TestCellCountMismatchDiscards(t *testing.T) {
	fixed := encodeFixedLeader(makeEnsemble(1, 4).FixedLeader)

	short := NewProfile[int16](KindVelocity, 3)
	long := NewProfile[uint8](KindEchoIntensity, 6)
	putInt16 := func(b []byte, v int16) { binary.LittleEndian.PutUint16(b, uint16(v)) }
	putUint8 := func(b []byte, v uint8) { b[0] = v }

	tooFew := mustFrame(t, fixed, encodeProfile(short, KindVelocity, 2, putInt16))
	tooMany := mustFrame(t, fixed, encodeProfile(long, KindEchoIntensity, 1, putUint8))
	good := mustEncode(t, makeEnsemble(9, 4))

	seq, report, err := Decode(concat(tooFew, tooMany, good))
	require.NoError(t, err)
	require.Len(t, seq, 1)
	assert.Equal(t, []uint16{9}, ensembleNumbers(seq))

	require.Len(t, report.Recoveries, 2)
	assert.Equal(t, "truncated_section", report.Recoveries[0].Reason)
	assert.Equal(t, len(tooFew), report.Recoveries[0].Resume, "valid checksum trusts the declared length")
	assert.Equal(t, "cell_count_mismatch", report.Recoveries[1].Reason)

	for _, e := range seq {
		n := int(e.FixedLeader.CellCount)
		for b := 0; b < BeamCount; b++ {
			assert.Len(t, e.Velocity.Beams[b], n)
			assert.Len(t, e.Correlation.Beams[b], n)
			assert.Len(t, e.EchoIntensity.Beams[b], n)
			assert.Len(t, e.PercentGood.Beams[b], n)
		}
	}
}

func TestMissingFixedLeader(t *testing.T) {
	ens := makeEnsemble(1, 4)
	vel := encodeProfile(ens.Velocity, KindVelocity, 2, func(b []byte, v int16) {
		binary.LittleEndian.PutUint16(b, uint16(v))
	})
	buf := mustFrame(t, vel, encodeFixedLeader(ens.FixedLeader))

	seq, report, err := Decode(buf)
	require.NoError(t, err)
	assert.Empty(t, seq)
	require.Len(t, report.Recoveries, 1)
	assert.Equal(t, "missing_fixed_leader", report.Recoveries[0].Reason)
	assert.True(t, errors.Is(report.Recoveries[0].Err, ErrMissingFixedLeader))
}

func TestFixedLeaderAfterOtherSectionsIsAccepted(t *testing.T) {
	ens := makeEnsemble(1, 4)
	buf := mustFrame(t,
		encodeBottomTrack(ens.BottomTrack),
		encodeVariableLeader(ens.VariableLeader),
		encodeFixedLeader(ens.FixedLeader),
	)

	seq, _, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, seq, 1)
	assert.NotNil(t, seq[0].BottomTrack)
	assert.NotNil(t, seq[0].VariableLeader)
	assert.NotNil(t, seq[0].FixedLeader)
}

func TestUnknownSectionType(t *testing.T) {
	fixed := encodeFixedLeader(makeEnsemble(1, 4).FixedLeader)
	bad := mustFrame(t, fixed, []byte{0x34, 0x12, 0x00, 0x00})
	good := mustEncode(t, makeEnsemble(2, 4))

	seq, report, err := Decode(concat(bad, good))
	require.NoError(t, err)
	assert.Equal(t, []uint16{2}, ensembleNumbers(seq))
	require.Len(t, report.Recoveries, 1)
	assert.Equal(t, "unknown_section_type", report.Recoveries[0].Reason)
	assert.Equal(t, len(bad), report.Recoveries[0].Resume)
}

func TestUnsupportedSectionsAreSkipped(t *testing.T) {
	ens := makeEnsemble(1, 4)
	ens.Unsupported = []SectionKind{KindStatusProfile, KindAuxSensor}
	buf := mustEncode(t, ens)

	seq, _, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, seq, 1)
	assert.Equal(t, []SectionKind{KindStatusProfile, KindAuxSensor}, seq[0].Unsupported)
	if diff := cmp.Diff(ens, seq[0], ignorePlacement); diff != "" {
		t.Errorf("Ensemble mismatch (-want +got):\n%s", diff)
	}

	strict := NewDecoder()
	strict.SetSkipUnsupported(false)
	seq, report, err := strict.Decode(buf)
	require.NoError(t, err)
	assert.Empty(t, seq)
	require.Len(t, report.Recoveries, 1)
	assert.Equal(t, "unknown_section_type", report.Recoveries[0].Reason)
}

func TestBoundaryInputs(t *testing.T) {
	t.Run("empty buffer", func(t *testing.T) {
		seq, report, err := Decode(nil)
		require.NoError(t, err)
		assert.Empty(t, seq)
		assert.Zero(t, report.Discarded)
	})

	t.Run("lone sync marker", func(t *testing.T) {
		seq, report, err := Decode([]byte{0x7F, 0x7F})
		require.NoError(t, err)
		assert.Empty(t, seq)
		assert.Equal(t, 1, report.Discarded)
		assert.Equal(t, "malformed_header", report.Recoveries[0].Reason)
	})

	t.Run("truncated tail", func(t *testing.T) {
		first := mustEncode(t, makeEnsemble(1, 4))
		second := mustEncode(t, makeEnsemble(2, 4))
		buf := concat(first, second[:len(second)/2])

		seq, report, err := Decode(buf)
		require.NoError(t, err)
		assert.Equal(t, []uint16{1}, ensembleNumbers(seq))
		require.Len(t, report.Recoveries, 2)
		assert.Equal(t, "truncated_section", report.Recoveries[0].Reason)
		assert.Equal(t, len(first)+2, report.Recoveries[0].Resume)
		assert.Equal(t, ReasonUnsynchronised, report.Recoveries[1].Reason)
		assert.Equal(t, len(buf), report.Recoveries[1].Resume)
		assertCoversBuffer(t, buf, seq, report)
	})

	t.Run("no sync at all", func(t *testing.T) {
		seq, report, err := Decode(bytes.Repeat([]byte{0x01, 0x7F}, 50))
		require.NoError(t, err)
		assert.Empty(t, seq)
		assert.Zero(t, report.Discarded)
		assert.Equal(t, 1, report.Skipped)
		assert.Equal(t, 100, report.SkippedBytes)
	})
}

func TestDecodeIsIdempotent(t *testing.T) {
	buf := concat(
		mustEncode(t, makeEnsemble(1, 12)),
		[]byte{0x7F, 0x7F, 0x00, 0x01, 0x02},
		mustEncode(t, makeEnsemble(2, 12)),
	)
	orig := append([]byte(nil), buf...)

	d := NewDecoder()
	seq1, rep1, err := d.Decode(buf)
	require.NoError(t, err)
	seq2, rep2, err := d.Decode(buf)
	require.NoError(t, err)

	if diff := cmp.Diff(seq1, seq2); diff != "" {
		t.Errorf("Sequence mismatch between runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(rep1, rep2, ignoreRecoveryErr); diff != "" {
		t.Errorf("Report mismatch between runs (-first +second):\n%s", diff)
	}
	assert.Equal(t, orig, buf, "decoder must not mutate its input")
}

// TestFixedLeaderAndBottomTrackOnly decodes an ensemble whose offset table
// holds a fixed leader at offset 12 followed by a bottom track.
func TestFixedLeaderAndBottomTrackOnly(t *testing.T) {
	ens := makeEnsemble(1, 4)
	buf := mustFrame(t, encodeFixedLeader(ens.FixedLeader), encodeBottomTrack(ens.BottomTrack))

	hdr, err := DecodeHeader(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint16{12, 12 + FixedLeaderSize}, hdr.Offsets)
	assert.Equal(t, uint16(12+FixedLeaderSize+BottomTrackSize), hdr.ByteCount)

	var sum uint16
	for _, b := range buf[:hdr.ByteCount] {
		sum += uint16(b)
	}
	assert.Equal(t, sum, binary.LittleEndian.Uint16(buf[hdr.ByteCount:]))

	seq, _, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, seq, 1)
	assert.Equal(t, uint16(4), seq[0].FixedLeader.CellCount)
	assert.NotNil(t, seq[0].BottomTrack)
	assert.Nil(t, seq[0].Velocity)
	assert.Nil(t, seq[0].VariableLeader)
}

func TestScannerStreamsEnsembles(t *testing.T) {
	buf := concat(mustEncode(t, makeEnsemble(1, 2)), mustEncode(t, makeEnsemble(2, 2)))
	s := NewDecoder().NewScanner(buf)

	e, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), e.VariableLeader.EnsembleNumber)
	e, err = s.Next()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), e.VariableLeader.EnsembleNumber)

	_, err = s.Next()
	assert.ErrorIs(t, err, ErrNoMoreEnsembles)
	_, err = s.Next()
	assert.ErrorIs(t, err, ErrNoMoreEnsembles)
	assert.Equal(t, 2, s.Report().Emitted)
}

func TestDecoderLogsRecoveries(t *testing.T) {
	var lines []string
	d := NewDecoder()
	d.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	_, report, err := d.Decode([]byte{0x7F, 0x7F, 0x00})
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "offset 0")
	assert.Contains(t, lines[1], "skipped 1 unsynchronised bytes at offset 2")
	assert.Equal(t, 1, report.Discarded)
	assert.Equal(t, 1, report.Skipped)
}

func TestDuplicateSectionDiscards(t *testing.T) {
	ens := makeEnsemble(1, 4)
	fixed := encodeFixedLeader(ens.FixedLeader)
	bottom := encodeBottomTrack(ens.BottomTrack)
	good := mustEncode(t, makeEnsemble(2, 4))

	tests := []struct {
		name     string
		sections [][]byte
	}{
		{"fixed leader twice", [][]byte{fixed, fixed}},
		{"bottom track twice", [][]byte{fixed, bottom, bottom}},
		{"variable leader twice", [][]byte{encodeVariableLeader(ens.VariableLeader), encodeVariableLeader(ens.VariableLeader)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := mustFrame(t, tt.sections...)
			buf := concat(bad, good)

			seq, report, err := Decode(buf)
			require.NoError(t, err)
			assert.Equal(t, []uint16{2}, ensembleNumbers(seq))
			require.Len(t, report.Recoveries, 1)
			r := report.Recoveries[0]
			assert.Equal(t, "duplicate_section", r.Reason)
			assert.Equal(t, len(bad), r.Resume, "valid checksum trusts the declared length")
			assert.ErrorIs(t, r.Err, ErrDuplicateSection)
		})
	}

	t.Run("unsupported sections may repeat", func(t *testing.T) {
		ens := makeEnsemble(3, 4)
		ens.Unsupported = []SectionKind{KindStatusProfile, KindStatusProfile}
		seq, report, err := Decode(mustEncode(t, ens))
		require.NoError(t, err)
		require.Len(t, seq, 1)
		assert.Zero(t, report.Discarded)
	})
}
