package pd0

import (
	"encoding/binary"
	"fmt"
)

// Fixed section widths in bytes, type code included.
const (
	FixedLeaderSize    = 59
	VariableLeaderSize = 65
	BottomTrackSize    = 81

	profileIDSize = 2
)

// ProfileSize is the byte width of a cell-indexed section holding cells
// records of BeamCount elements of elemSize bytes each.
func ProfileSize(cells, elemSize int) int {
	return profileIDSize + cells*BeamCount*elemSize
}

func need(data []byte, width int, what string) error {
	if width > len(data) {
		return fmt.Errorf("%w: %s needs %d bytes, %d available", ErrTruncatedSection, what, width, len(data))
	}
	return nil
}

func u16(b []byte, off int) uint16 { return binary.LittleEndian.Uint16(b[off : off+2]) }
func i16(b []byte, off int) int16  { return int16(binary.LittleEndian.Uint16(b[off : off+2])) }
func u32(b []byte, off int) uint32 { return binary.LittleEndian.Uint32(b[off : off+4]) }

// parseFixedLeader decodes a fixed leader from data, which spans the
// section's extent inside the ensemble.
func parseFixedLeader(data []byte) (*FixedLeader, int, error) {
	if err := need(data, FixedLeaderSize, "fixed leader"); err != nil {
		return nil, 0, err
	}
	fl := &FixedLeader{
		FirmwareVersion:      data[2],
		FirmwareRevision:     data[3],
		SystemConfig:         u16(data, 4),
		SimulatedData:        data[6],
		LagLength:            data[7],
		BeamCount:            data[8],
		CellCount:            uint16(data[9]),
		PingsPerEnsemble:     u16(data, 10),
		DepthCellLength:      u16(data, 12),
		BlankAfterTransmit:   u16(data, 14),
		ProfilingMode:        data[16],
		LowCorrThreshold:     data[17],
		CodeRepetitions:      data[18],
		PercentGoodMinimum:   data[19],
		ErrorVelocityMaximum: u16(data, 20),
		CoordinateTransform:  data[25],
		HeadingAlignment:     i16(data, 26),
		HeadingBias:          i16(data, 28),
		SensorSource:         data[30],
		SensorsAvailable:     data[31],
		Bin1Distance:         u16(data, 32),
		TransmitPulseLength:  u16(data, 34),
		RefLayerStart:        data[36],
		RefLayerEnd:          data[37],
		FalseTargetThreshold: data[38],
		TransmitLagDistance:  u16(data, 40),
		SystemBandwidth:      u16(data, 50),
		SystemPower:          data[52],
		SerialNumber:         u32(data, 54),
		BeamAngle:            data[58],
	}
	copy(fl.PingGroupInterval[:], data[22:25])
	copy(fl.CPUBoardSerial[:], data[42:50])
	return fl, FixedLeaderSize, nil
}

func parseVariableLeader(data []byte) (*VariableLeader, int, error) {
	if err := need(data, VariableLeaderSize, "variable leader"); err != nil {
		return nil, 0, err
	}
	vl := &VariableLeader{
		EnsembleNumber:    u16(data, 2),
		EnsembleNumberMSB: data[11],
		BITResult:         u16(data, 12),
		SpeedOfSound:      u16(data, 14),
		TransducerDepth:   u16(data, 16),
		Heading:           u16(data, 18),
		Pitch:             i16(data, 20),
		Roll:              i16(data, 22),
		Salinity:          u16(data, 24),
		Temperature:       i16(data, 26),
		HeadingStdDev:     data[31],
		PitchStdDev:       data[32],
		RollStdDev:        data[33],
		ErrorStatus:       u32(data, 42),
		Pressure:          u32(data, 48),
		PressureVariance:  u32(data, 52),
	}
	copy(vl.RTC[:], data[4:11])
	copy(vl.PrePingWait[:], data[28:31])
	copy(vl.ADC[:], data[34:42])
	copy(vl.RTCY2K[:], data[57:65])
	return vl, VariableLeaderSize, nil
}

// parseProfile is shared by the four cell-indexed sections. Values are read
// cell by cell, beam by beam, and stored beam-major.
func parseProfile[T any](data []byte, cells, elemSize int, read func([]byte) T, what string) (*Profile[T], int, error) {
	width := ProfileSize(cells, elemSize)
	if err := need(data, width, what); err != nil {
		return nil, 0, err
	}
	if extra := len(data) - width; extra >= BeamCount*elemSize {
		return nil, 0, fmt.Errorf("%w: %s holds %d more cells than the %d declared",
			ErrCellCountMismatch, what, extra/(BeamCount*elemSize), cells)
	}
	p := &Profile[T]{ID: u16(data, 0)}
	for b := range p.Beams {
		p.Beams[b] = make(CellSeries[T], cells)
	}
	pos := profileIDSize
	for c := 0; c < cells; c++ {
		for b := 0; b < BeamCount; b++ {
			p.Beams[b][c] = read(data[pos : pos+elemSize])
			pos += elemSize
		}
	}
	return p, width, nil
}

func readInt16(b []byte) int16 { return int16(binary.LittleEndian.Uint16(b)) }
func readUint8(b []byte) uint8 { return b[0] }

func parseVelocity(data []byte, cells int) (*Profile[int16], int, error) {
	return parseProfile(data, cells, 2, readInt16, "velocity")
}

func parseByteProfile(data []byte, cells int, what string) (*Profile[uint8], int, error) {
	return parseProfile(data, cells, 1, readUint8, what)
}

func parseBottomTrack(data []byte) (*BottomTrack, int, error) {
	if err := need(data, BottomTrackSize, "bottom track"); err != nil {
		return nil, 0, err
	}
	bt := &BottomTrack{
		PingsPerEnsemble:     u16(data, 2),
		DelayBeforeReacquire: u16(data, 4),
		CorrMagMinimum:       data[6],
		EvalAmpMinimum:       data[7],
		PercentGoodMinimum:   data[8],
		Mode:                 data[9],
		ErrorVelocityMaximum: u16(data, 10),
		RefLayerMinimum:      u16(data, 44),
		RefLayerNear:         u16(data, 46),
		RefLayerFar:          u16(data, 48),
		MaxDepth:             u16(data, 70),
		Gain:                 data[76],
	}
	for b := 0; b < BeamCount; b++ {
		bt.Range[b] = u16(data, 16+2*b)
		bt.Velocity[b] = i16(data, 24+2*b)
		bt.RefVelocity[b] = i16(data, 50+2*b)
	}
	copy(bt.Correlation[:], data[32:36])
	copy(bt.EvalAmplitude[:], data[36:40])
	copy(bt.PercentGood[:], data[40:44])
	copy(bt.RefCorrelation[:], data[58:62])
	copy(bt.RefIntensity[:], data[62:66])
	copy(bt.RefPercentGood[:], data[66:70])
	copy(bt.RSSI[:], data[72:76])
	copy(bt.RangeMSB[:], data[77:81])
	return bt, BottomTrackSize, nil
}
