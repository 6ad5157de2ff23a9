package pd0

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp/cmpopts"
)

// ignorePlacement drops the fields that Encode derives or Decode fills in
// from the buffer position.
var ignorePlacement = cmpopts.IgnoreFields(Ensemble{}, "Header", "Start", "End")

// ignoreRecoveryErr drops the wrapped error chain, which cmp cannot compare.
var ignoreRecoveryErr = cmpopts.IgnoreFields(Recovery{}, "Err")

// makeEnsemble builds a fully populated ensemble. All stored bytes stay at
// or below 0x3E so a single bit flip can never manufacture a 0x7F sync byte.
func makeEnsemble(number uint16, cells int) Ensemble {
	fl := &FixedLeader{
		FirmwareVersion:      16,
		FirmwareRevision:     5,
		SystemConfig:         0x0C2A,
		LagLength:            13,
		BeamCount:            4,
		CellCount:            uint16(cells),
		PingsPerEnsemble:     30,
		DepthCellLength:      25,
		BlankAfterTransmit:   35,
		ProfilingMode:        1,
		LowCorrThreshold:     32,
		CodeRepetitions:      5,
		PercentGoodMinimum:   0,
		ErrorVelocityMaximum: 0x0530,
		PingGroupInterval:    [3]uint8{0, 1, 0},
		CoordinateTransform:  0x17,
		HeadingAlignment:     0x0102,
		HeadingBias:          0x0203,
		SensorSource:         0x3D,
		SensorsAvailable:     0x3D,
		Bin1Distance:         0x0210,
		TransmitPulseLength:  0x0130,
		RefLayerStart:        1,
		RefLayerEnd:          5,
		FalseTargetThreshold: 0x32,
		TransmitLagDistance:  0x0021,
		CPUBoardSerial:       [8]uint8{1, 2, 3, 4, 5, 6, 7, 8},
		SystemBandwidth:      1,
		SystemPower:          0x3E,
		SerialNumber:         0x00003039,
		BeamAngle:            20,
	}
	vl := &VariableLeader{
		EnsembleNumber:    number,
		RTC:               [7]uint8{24, 3, 14, 9, 26, 33, 12},
		EnsembleNumberMSB: 0,
		BITResult:         0,
		SpeedOfSound:      0x0530,
		TransducerDepth:   0x0011,
		Heading:           0x1234,
		Pitch:             0x0012,
		Roll:              0x0021,
		Salinity:          35,
		Temperature:       0x0310,
		PrePingWait:       [3]uint8{0, 0, 10},
		HeadingStdDev:     1,
		PitchStdDev:       2,
		RollStdDev:        3,
		ADC:               [8]uint8{10, 11, 12, 13, 14, 15, 16, 17},
		ErrorStatus:       0,
		Pressure:          0x00012224,
		PressureVariance:  9,
		RTCY2K:            [8]uint8{20, 24, 3, 14, 9, 26, 33, 12},
	}

	vel := NewProfile[int16](KindVelocity, cells)
	corr := NewProfile[uint8](KindCorrelation, cells)
	echo := NewProfile[uint8](KindEchoIntensity, cells)
	pg := NewProfile[uint8](KindPercentGood, cells)
	for b := 0; b < BeamCount; b++ {
		for c := 0; c < cells; c++ {
			vel.Beams[b][c] = int16((c*7 + b*3 + int(number)) % 0x3E)
			corr.Beams[b][c] = uint8((c + b + 10) % 0x3E)
			echo.Beams[b][c] = uint8((c*2 + b + 20) % 0x3E)
			pg.Beams[b][c] = uint8((c + 4*b) % 0x3E)
		}
	}

	bt := &BottomTrack{
		PingsPerEnsemble:     1,
		DelayBeforeReacquire: 0,
		CorrMagMinimum:       0x20,
		EvalAmpMinimum:       0x1E,
		PercentGoodMinimum:   0,
		Mode:                 5,
		ErrorVelocityMaximum: 0x0310,
		Range:                [4]uint16{0x0210, 0x0211, 0x0212, 0x0213},
		Velocity:             [4]int16{1, 2, 3, 4},
		Correlation:          [4]uint8{30, 31, 32, 33},
		EvalAmplitude:        [4]uint8{40, 41, 42, 43},
		PercentGood:          [4]uint8{50, 51, 52, 53},
		RefLayerMinimum:      20,
		RefLayerNear:         30,
		RefLayerFar:          40,
		RefVelocity:          [4]int16{5, 6, 7, 8},
		RefCorrelation:       [4]uint8{1, 2, 3, 4},
		RefIntensity:         [4]uint8{5, 6, 7, 8},
		RefPercentGood:       [4]uint8{9, 10, 11, 12},
		MaxDepth:             0x0300,
		RSSI:                 [4]uint8{20, 21, 22, 23},
		Gain:                 1,
		RangeMSB:             [4]uint8{0, 0, 1, 0},
	}

	return Ensemble{
		Header:         Header{HeaderID: 0x01, DataSourceID: 0x02},
		FixedLeader:    fl,
		VariableLeader: vl,
		Velocity:       vel,
		Correlation:    corr,
		EchoIntensity:  echo,
		PercentGood:    pg,
		BottomTrack:    bt,
	}
}

func mustEncode(t *testing.T, e Ensemble) []byte {
	t.Helper()
	b, err := Encode(&e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return b
}

func mustFrame(t *testing.T, sections ...[]byte) []byte {
	t.Helper()
	b, err := frame(Header{HeaderID: 0x01, DataSourceID: 0x02}, sections)
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	return b
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func ensembleNumbers(seq Sequence) []uint16 {
	var out []uint16
	for _, e := range seq {
		if e.VariableLeader == nil {
			out = append(out, 0)
			continue
		}
		out = append(out, e.VariableLeader.EnsembleNumber)
	}
	return out
}

// assertCoversBuffer checks that emitted ensembles and recoveries tile the
// whole buffer with no gap or overlap.
func assertCoversBuffer(t *testing.T, buf []byte, seq Sequence, report *Report) {
	t.Helper()
	type span struct{ start, end int }
	var spans []span
	for _, e := range seq {
		spans = append(spans, span{e.Start, e.End})
	}
	for _, r := range report.Recoveries {
		spans = append(spans, span{r.Start, r.Resume})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	at := 0
	for _, sp := range spans {
		if sp.start != at {
			t.Errorf("span [%d, %d) does not start at %d", sp.start, sp.end, at)
			return
		}
		at = sp.end
	}
	if at != len(buf) {
		t.Errorf("spans end at %d, buffer is %d bytes", at, len(buf))
	}
}
