package pd0

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode serialises an ensemble into PD0 bytes with a valid checksum.
// Sections are written in the order fixed leader, variable leader,
// velocity, correlation, echo intensity, percent good, bottom track, then
// any unsupported codes (which are written as a bare type code). The header
// offsets, byte count and type count are derived; HeaderID, DataSourceID and
// Spare are taken from e.Header.
func Encode(e *Ensemble) ([]byte, error) {
	var sections [][]byte

	if fl := e.FixedLeader; fl != nil {
		if fl.CellCount > math.MaxUint8 {
			return nil, fmt.Errorf("cell count %d does not fit the fixed leader's single byte", fl.CellCount)
		}
		sections = append(sections, encodeFixedLeader(fl))
	}
	if vl := e.VariableLeader; vl != nil {
		sections = append(sections, encodeVariableLeader(vl))
	}
	if p := e.Velocity; p != nil {
		sections = append(sections, encodeProfile(p, KindVelocity, 2, func(b []byte, v int16) {
			binary.LittleEndian.PutUint16(b, uint16(v))
		}))
	}
	for _, ps := range []struct {
		p    *Profile[uint8]
		kind SectionKind
	}{
		{e.Correlation, KindCorrelation},
		{e.EchoIntensity, KindEchoIntensity},
		{e.PercentGood, KindPercentGood},
	} {
		if ps.p == nil {
			continue
		}
		sections = append(sections, encodeProfile(ps.p, ps.kind, 1, func(b []byte, v uint8) { b[0] = v }))
	}
	if bt := e.BottomTrack; bt != nil {
		sections = append(sections, encodeBottomTrack(bt))
	}
	for _, code := range e.Unsupported {
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, uint16(code))
		sections = append(sections, b)
	}

	return frame(e.Header, sections)
}

// frame wraps already-encoded sections in a header and trailing checksum.
func frame(hdr Header, sections [][]byte) ([]byte, error) {
	if len(sections) > math.MaxUint8 {
		return nil, fmt.Errorf("too many sections: %d", len(sections))
	}
	headerLen := headerPrefixSize + len(sections)*offsetEntrySize
	total := headerLen
	for _, s := range sections {
		total += len(s)
	}
	if total > math.MaxUint16 {
		return nil, fmt.Errorf("ensemble of %d bytes exceeds the 16-bit byte count", total)
	}

	out := make([]byte, total, total+checksumSize)
	out[0], out[1] = SyncByte, SyncByte
	out[2] = hdr.HeaderID
	out[3] = hdr.DataSourceID
	binary.LittleEndian.PutUint16(out[4:6], uint16(total))
	out[6] = hdr.Spare
	out[7] = uint8(len(sections))

	pos := headerLen
	for i, s := range sections {
		binary.LittleEndian.PutUint16(out[headerPrefixSize+i*offsetEntrySize:], uint16(pos))
		copy(out[pos:], s)
		pos += len(s)
	}

	return binary.LittleEndian.AppendUint16(out, Checksum(out)), nil
}

// EncodeAll concatenates the encodings of every ensemble in seq.
func EncodeAll(seq Sequence) ([]byte, error) {
	var out []byte
	for i := range seq {
		b, err := Encode(&seq[i])
		if err != nil {
			return nil, fmt.Errorf("ensemble %d: %w", i, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

func encodeFixedLeader(fl *FixedLeader) []byte {
	b := make([]byte, FixedLeaderSize)
	binary.LittleEndian.PutUint16(b[0:], uint16(KindFixedLeader))
	b[2] = fl.FirmwareVersion
	b[3] = fl.FirmwareRevision
	binary.LittleEndian.PutUint16(b[4:], fl.SystemConfig)
	b[6] = fl.SimulatedData
	b[7] = fl.LagLength
	b[8] = fl.BeamCount
	b[9] = uint8(fl.CellCount)
	binary.LittleEndian.PutUint16(b[10:], fl.PingsPerEnsemble)
	binary.LittleEndian.PutUint16(b[12:], fl.DepthCellLength)
	binary.LittleEndian.PutUint16(b[14:], fl.BlankAfterTransmit)
	b[16] = fl.ProfilingMode
	b[17] = fl.LowCorrThreshold
	b[18] = fl.CodeRepetitions
	b[19] = fl.PercentGoodMinimum
	binary.LittleEndian.PutUint16(b[20:], fl.ErrorVelocityMaximum)
	copy(b[22:25], fl.PingGroupInterval[:])
	b[25] = fl.CoordinateTransform
	binary.LittleEndian.PutUint16(b[26:], uint16(fl.HeadingAlignment))
	binary.LittleEndian.PutUint16(b[28:], uint16(fl.HeadingBias))
	b[30] = fl.SensorSource
	b[31] = fl.SensorsAvailable
	binary.LittleEndian.PutUint16(b[32:], fl.Bin1Distance)
	binary.LittleEndian.PutUint16(b[34:], fl.TransmitPulseLength)
	b[36] = fl.RefLayerStart
	b[37] = fl.RefLayerEnd
	b[38] = fl.FalseTargetThreshold
	binary.LittleEndian.PutUint16(b[40:], fl.TransmitLagDistance)
	copy(b[42:50], fl.CPUBoardSerial[:])
	binary.LittleEndian.PutUint16(b[50:], fl.SystemBandwidth)
	b[52] = fl.SystemPower
	binary.LittleEndian.PutUint32(b[54:], fl.SerialNumber)
	b[58] = fl.BeamAngle
	return b
}

func encodeVariableLeader(vl *VariableLeader) []byte {
	b := make([]byte, VariableLeaderSize)
	binary.LittleEndian.PutUint16(b[0:], uint16(KindVariableLeader))
	binary.LittleEndian.PutUint16(b[2:], vl.EnsembleNumber)
	copy(b[4:11], vl.RTC[:])
	b[11] = vl.EnsembleNumberMSB
	binary.LittleEndian.PutUint16(b[12:], vl.BITResult)
	binary.LittleEndian.PutUint16(b[14:], vl.SpeedOfSound)
	binary.LittleEndian.PutUint16(b[16:], vl.TransducerDepth)
	binary.LittleEndian.PutUint16(b[18:], vl.Heading)
	binary.LittleEndian.PutUint16(b[20:], uint16(vl.Pitch))
	binary.LittleEndian.PutUint16(b[22:], uint16(vl.Roll))
	binary.LittleEndian.PutUint16(b[24:], vl.Salinity)
	binary.LittleEndian.PutUint16(b[26:], uint16(vl.Temperature))
	copy(b[28:31], vl.PrePingWait[:])
	b[31] = vl.HeadingStdDev
	b[32] = vl.PitchStdDev
	b[33] = vl.RollStdDev
	copy(b[34:42], vl.ADC[:])
	binary.LittleEndian.PutUint32(b[42:], vl.ErrorStatus)
	binary.LittleEndian.PutUint32(b[48:], vl.Pressure)
	binary.LittleEndian.PutUint32(b[52:], vl.PressureVariance)
	copy(b[57:65], vl.RTCY2K[:])
	return b
}

// encodeProfile writes the section id followed by cell-major records. The
// cell count is taken from beam 0.
func encodeProfile[T any](p *Profile[T], kind SectionKind, elemSize int, put func([]byte, T)) []byte {
	cells := p.Cells()
	b := make([]byte, ProfileSize(cells, elemSize))
	binary.LittleEndian.PutUint16(b[0:], uint16(kind))
	pos := profileIDSize
	for c := 0; c < cells; c++ {
		for beam := 0; beam < BeamCount; beam++ {
			var v T
			if c < len(p.Beams[beam]) {
				v = p.Beams[beam][c]
			}
			put(b[pos:pos+elemSize], v)
			pos += elemSize
		}
	}
	return b
}

func encodeBottomTrack(bt *BottomTrack) []byte {
	b := make([]byte, BottomTrackSize)
	binary.LittleEndian.PutUint16(b[0:], uint16(KindBottomTrack))
	binary.LittleEndian.PutUint16(b[2:], bt.PingsPerEnsemble)
	binary.LittleEndian.PutUint16(b[4:], bt.DelayBeforeReacquire)
	b[6] = bt.CorrMagMinimum
	b[7] = bt.EvalAmpMinimum
	b[8] = bt.PercentGoodMinimum
	b[9] = bt.Mode
	binary.LittleEndian.PutUint16(b[10:], bt.ErrorVelocityMaximum)
	for i := 0; i < BeamCount; i++ {
		binary.LittleEndian.PutUint16(b[16+2*i:], bt.Range[i])
		binary.LittleEndian.PutUint16(b[24+2*i:], uint16(bt.Velocity[i]))
		binary.LittleEndian.PutUint16(b[50+2*i:], uint16(bt.RefVelocity[i]))
	}
	copy(b[32:36], bt.Correlation[:])
	copy(b[36:40], bt.EvalAmplitude[:])
	copy(b[40:44], bt.PercentGood[:])
	binary.LittleEndian.PutUint16(b[44:], bt.RefLayerMinimum)
	binary.LittleEndian.PutUint16(b[46:], bt.RefLayerNear)
	binary.LittleEndian.PutUint16(b[48:], bt.RefLayerFar)
	copy(b[58:62], bt.RefCorrelation[:])
	copy(b[62:66], bt.RefIntensity[:])
	copy(b[66:70], bt.RefPercentGood[:])
	binary.LittleEndian.PutUint16(b[70:], bt.MaxDepth)
	copy(b[72:76], bt.RSSI[:])
	b[76] = bt.Gain
	copy(b[77:81], bt.RangeMSB[:])
	return b
}
