package pd0

import (
	"math"
	"math/rand"
	"time"
)

// BadVelocity is the raw value an instrument stores for a cell it could not
// resolve.
const BadVelocity int16 = -32768

// SyntheticGenerator produces plausible ensembles for fixtures and field
// tooling tests. Output is deterministic for a given seed.
type SyntheticGenerator struct {
	number uint32
	start  time.Time

	// Configuration
	Cells          int           // depth cells per ensemble, at most 255
	DepthCellCm    uint16        // depth cell length
	PingInterval   time.Duration // time between ensembles
	BottomTrack    bool          // emit a bottom-track section
	SerialNumber   uint32
	CurrentMmPerS  float64 // peak along-beam current
	GoodRangeRatio float64 // fraction of cells with valid velocity

	rng *rand.Rand
}

// NewSyntheticGenerator creates a generator for cells depth cells.
func NewSyntheticGenerator(cells int, seed int64) *SyntheticGenerator {
	return &SyntheticGenerator{
		start:          time.Date(2024, 3, 14, 9, 26, 0, 0, time.UTC),
		Cells:          cells,
		DepthCellCm:    100,
		PingInterval:   time.Second,
		BottomTrack:    true,
		SerialNumber:   12345,
		CurrentMmPerS:  400,
		GoodRangeRatio: 0.85,
		rng:            rand.New(rand.NewSource(seed)),
	}
}

// Next returns the next ensemble. Ensemble numbers start at 1 and carry
// into the MSB byte after 65535.
func (g *SyntheticGenerator) Next() Ensemble {
	g.number++
	at := g.start.Add(time.Duration(g.number-1) * g.PingInterval)

	e := Ensemble{
		FixedLeader:    g.fixedLeader(),
		VariableLeader: g.variableLeader(at),
		Velocity:       NewProfile[int16](KindVelocity, g.Cells),
		Correlation:    NewProfile[uint8](KindCorrelation, g.Cells),
		EchoIntensity:  NewProfile[uint8](KindEchoIntensity, g.Cells),
		PercentGood:    NewProfile[uint8](KindPercentGood, g.Cells),
	}

	good := int(float64(g.Cells) * g.GoodRangeRatio)
	phase := float64(g.number) / 60
	for b := 0; b < BeamCount; b++ {
		sign := 1.0
		if b%2 == 1 {
			sign = -1
		}
		for c := 0; c < g.Cells; c++ {
			depth := float64(c) / math.Max(1, float64(g.Cells-1))
			e.EchoIntensity.Beams[b][c] = clampU8(190 - 110*depth + g.rng.NormFloat64()*3)
			e.Correlation.Beams[b][c] = clampU8(125 - 70*depth + g.rng.NormFloat64()*4)
			if c >= good {
				e.Velocity.Beams[b][c] = BadVelocity
				e.PercentGood.Beams[b][c] = 0
				continue
			}
			v := sign * g.CurrentMmPerS * math.Sin(phase) * (1 - 0.6*depth)
			e.Velocity.Beams[b][c] = int16(math.Round(v + g.rng.NormFloat64()*15))
			e.PercentGood.Beams[b][c] = 100
		}
	}

	if g.BottomTrack {
		e.BottomTrack = g.bottomTrack()
	}
	return e
}

func (g *SyntheticGenerator) fixedLeader() *FixedLeader {
	return &FixedLeader{
		FirmwareVersion:      51,
		FirmwareRevision:     41,
		SystemConfig:         0x4A4B,
		LagLength:            13,
		BeamCount:            BeamCount,
		CellCount:            uint16(g.Cells),
		PingsPerEnsemble:     60,
		DepthCellLength:      g.DepthCellCm,
		BlankAfterTransmit:   176,
		ProfilingMode:        1,
		LowCorrThreshold:     64,
		CodeRepetitions:      9,
		ErrorVelocityMaximum: 2000,
		PingGroupInterval:    [3]uint8{0, 1, 0},
		CoordinateTransform:  0x07,
		SensorSource:         0x7D,
		SensorsAvailable:     0x3D,
		Bin1Distance:         g.DepthCellCm + 176,
		TransmitPulseLength:  g.DepthCellCm,
		RefLayerStart:        1,
		RefLayerEnd:          5,
		FalseTargetThreshold: 50,
		TransmitLagDistance:  49,
		SystemBandwidth:      0,
		SystemPower:          255,
		SerialNumber:         g.SerialNumber,
		BeamAngle:            20,
	}
}

func (g *SyntheticGenerator) variableLeader(at time.Time) *VariableLeader {
	hundredths := uint8(at.Nanosecond() / 1e7)
	yy := uint8(at.Year() % 100)
	return &VariableLeader{
		EnsembleNumber:    uint16(g.number),
		EnsembleNumberMSB: uint8(g.number >> 16),
		RTC:               [7]uint8{yy, uint8(at.Month()), uint8(at.Day()), uint8(at.Hour()), uint8(at.Minute()), uint8(at.Second()), hundredths},
		RTCY2K:            [8]uint8{uint8(at.Year() / 100), yy, uint8(at.Month()), uint8(at.Day()), uint8(at.Hour()), uint8(at.Minute()), uint8(at.Second()), hundredths},
		SpeedOfSound:      1500,
		TransducerDepth:   uint16(40 + g.rng.Intn(3)),
		Heading:           uint16(9000 + g.rng.Intn(200)),
		Pitch:             int16(g.rng.Intn(100) - 50),
		Roll:              int16(g.rng.Intn(100) - 50),
		Salinity:          35,
		Temperature:       int16(1200 + g.rng.Intn(20)),
		HeadingStdDev:     1,
		Pressure:          uint32(40000 + g.rng.Intn(500)),
		PressureVariance:  uint32(g.rng.Intn(20)),
	}
}

func (g *SyntheticGenerator) bottomTrack() *BottomTrack {
	bt := &BottomTrack{
		PingsPerEnsemble:     60,
		CorrMagMinimum:       220,
		EvalAmpMinimum:       30,
		Mode:                 5,
		ErrorVelocityMaximum: 1000,
		RefLayerMinimum:      20,
		RefLayerNear:         80,
		RefLayerFar:          160,
		MaxDepth:             uint16(g.Cells) * g.DepthCellCm / 10,
		Gain:                 1,
	}
	floor := uint32(g.Cells)*uint32(g.DepthCellCm) + 200
	for b := 0; b < BeamCount; b++ {
		r := floor + uint32(g.rng.Intn(50))
		bt.Range[b] = uint16(r)
		bt.RangeMSB[b] = uint8(r >> 16)
		bt.Velocity[b] = int16(g.rng.Intn(40) - 20)
		bt.Correlation[b] = clampU8(240 + g.rng.NormFloat64()*5)
		bt.EvalAmplitude[b] = clampU8(200 + g.rng.NormFloat64()*10)
		bt.PercentGood[b] = 100
		bt.RSSI[b] = clampU8(180 + g.rng.NormFloat64()*10)
	}
	return bt
}

func clampU8(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint8:
		return math.MaxUint8
	default:
		return uint8(math.Round(v))
	}
}
