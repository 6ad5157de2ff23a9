package pd0

// Header is the fixed-format prefix of every ensemble. Offsets are relative
// to the first sync byte of the ensemble.
type Header struct {
	HeaderID      uint8    // Byte 2
	DataSourceID  uint8    // Byte 3
	ByteCount     uint16   // Bytes 4-5, ensemble length excluding the 2-byte checksum
	Spare         uint8    // Byte 6
	DataTypeCount uint8    // Byte 7
	Offsets       []uint16 // DataTypeCount entries starting at byte 8
}

// TotalLength is the full on-disk length of the ensemble including the
// trailing checksum.
func (h Header) TotalLength() int {
	return int(h.ByteCount) + checksumSize
}

// FixedLeader is the instrument configuration snapshot (section 0x0000).
// All values are raw as stored by the instrument.
type FixedLeader struct {
	FirmwareVersion      uint8
	FirmwareRevision     uint8
	SystemConfig         uint16
	SimulatedData        uint8 // 0 real, 1 simulated
	LagLength            uint8
	BeamCount            uint8
	CellCount            uint16 // Authoritative size of every cell-indexed series
	PingsPerEnsemble     uint16
	DepthCellLength      uint16 // cm
	BlankAfterTransmit   uint16 // cm
	ProfilingMode        uint8
	LowCorrThreshold     uint8
	CodeRepetitions      uint8
	PercentGoodMinimum   uint8
	ErrorVelocityMaximum uint16   // mm/s
	PingGroupInterval    [3]uint8 // minutes, seconds, hundredths
	CoordinateTransform  uint8
	HeadingAlignment     int16 // 0.01 degrees
	HeadingBias          int16 // 0.01 degrees
	SensorSource         uint8
	SensorsAvailable     uint8
	Bin1Distance         uint16 // cm
	TransmitPulseLength  uint16 // cm
	RefLayerStart        uint8
	RefLayerEnd          uint8
	FalseTargetThreshold uint8
	TransmitLagDistance  uint16
	CPUBoardSerial       [8]uint8
	SystemBandwidth      uint16
	SystemPower          uint8
	SerialNumber         uint32
	BeamAngle            uint8
}

// VariableLeader is the per-ensemble environment and clock snapshot
// (section 0x0080).
type VariableLeader struct {
	EnsembleNumber    uint16
	RTC               [7]uint8 // year, month, day, hour, minute, second, hundredths
	EnsembleNumberMSB uint8
	BITResult         uint16
	SpeedOfSound      uint16 // m/s
	TransducerDepth   uint16 // dm
	Heading           uint16 // 0.01 degrees
	Pitch             int16  // 0.01 degrees
	Roll              int16  // 0.01 degrees
	Salinity          uint16 // ppt
	Temperature       int16  // 0.01 degrees C
	PrePingWait       [3]uint8
	HeadingStdDev     uint8
	PitchStdDev       uint8
	RollStdDev        uint8
	ADC               [8]uint8
	ErrorStatus       uint32
	Pressure          uint32 // decapascals
	PressureVariance  uint32
	RTCY2K            [8]uint8 // century, year, month, day, hour, minute, second, hundredths
}

// FullEnsembleNumber combines the 16-bit ensemble counter with its rollover
// byte.
func (v VariableLeader) FullEnsembleNumber() uint32 {
	return uint32(v.EnsembleNumberMSB)<<16 | uint32(v.EnsembleNumber)
}

// BeamCount is the number of beams stored per cell in profile sections.
const BeamCount = 4

// CellSeries holds one value per depth cell for a single beam.
type CellSeries[T any] []T

// Profile is a cell-indexed section stored beam-major: Beams[b][c] is the
// value for beam b at cell c.
type Profile[T any] struct {
	ID    uint16
	Beams [BeamCount]CellSeries[T]
}

// NewProfile allocates a zeroed profile of the given kind and cell count.
func NewProfile[T any](kind SectionKind, cells int) *Profile[T] {
	p := &Profile[T]{ID: uint16(kind)}
	for b := range p.Beams {
		p.Beams[b] = make(CellSeries[T], cells)
	}
	return p
}

// Cells returns the series length, which is the same for every beam.
func (p *Profile[T]) Cells() int {
	return len(p.Beams[0])
}

// BottomTrack is the seafloor-referenced range and velocity record
// (section 0x0600).
type BottomTrack struct {
	PingsPerEnsemble     uint16
	DelayBeforeReacquire uint16
	CorrMagMinimum       uint8
	EvalAmpMinimum       uint8
	PercentGoodMinimum   uint8
	Mode                 uint8
	ErrorVelocityMaximum uint16
	Range                [BeamCount]uint16 // cm, low 16 bits
	Velocity             [BeamCount]int16  // mm/s
	Correlation          [BeamCount]uint8
	EvalAmplitude        [BeamCount]uint8
	PercentGood          [BeamCount]uint8
	RefLayerMinimum      uint16
	RefLayerNear         uint16
	RefLayerFar          uint16
	RefVelocity          [BeamCount]int16
	RefCorrelation       [BeamCount]uint8
	RefIntensity         [BeamCount]uint8
	RefPercentGood       [BeamCount]uint8
	MaxDepth             uint16
	RSSI                 [BeamCount]uint8
	Gain                 uint8
	RangeMSB             [BeamCount]uint8
}

// FullRange combines the 16-bit range with its MSB byte for beam b.
func (bt BottomTrack) FullRange(b int) uint32 {
	return uint32(bt.RangeMSB[b])<<16 | uint32(bt.Range[b])
}

// Ensemble is one decoded instrument record. Optional sections are nil when
// their type code was absent from the offset table.
type Ensemble struct {
	Header Header

	FixedLeader    *FixedLeader
	VariableLeader *VariableLeader
	Velocity       *Profile[int16]
	Correlation    *Profile[uint8]
	EchoIntensity  *Profile[uint8]
	PercentGood    *Profile[uint8]
	BottomTrack    *BottomTrack

	// Unsupported lists section codes that were recognised but not decoded.
	Unsupported []SectionKind

	// Start and End are the byte range [Start, End) of the ensemble in the
	// source buffer, checksum included.
	Start int
	End   int
}

// Sequence is the ordered output of a decode.
type Sequence []Ensemble

// Kinds lists the section kinds present in the ensemble in canonical order,
// followed by any unsupported codes in the order they appeared.
func (e *Ensemble) Kinds() []SectionKind {
	var out []SectionKind
	if e.FixedLeader != nil {
		out = append(out, KindFixedLeader)
	}
	if e.VariableLeader != nil {
		out = append(out, KindVariableLeader)
	}
	if e.Velocity != nil {
		out = append(out, KindVelocity)
	}
	if e.Correlation != nil {
		out = append(out, KindCorrelation)
	}
	if e.EchoIntensity != nil {
		out = append(out, KindEchoIntensity)
	}
	if e.PercentGood != nil {
		out = append(out, KindPercentGood)
	}
	if e.BottomTrack != nil {
		out = append(out, KindBottomTrack)
	}
	return append(out, e.Unsupported...)
}
