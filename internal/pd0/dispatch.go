package pd0

import (
	"fmt"
	"sort"
)

// SectionKind is the 16-bit type code that opens every section.
type SectionKind uint16

const (
	KindFixedLeader    SectionKind = 0x0000
	KindVariableLeader SectionKind = 0x0080
	KindVelocity       SectionKind = 0x0100
	KindCorrelation    SectionKind = 0x0200
	KindEchoIntensity  SectionKind = 0x0300
	KindPercentGood    SectionKind = 0x0400
	KindStatusProfile  SectionKind = 0x0500
	KindBottomTrack    SectionKind = 0x0600
	KindAuxSensor      SectionKind = 0x0800
)

func (k SectionKind) String() string {
	switch k {
	case KindFixedLeader:
		return "fixed_leader"
	case KindVariableLeader:
		return "variable_leader"
	case KindVelocity:
		return "velocity"
	case KindCorrelation:
		return "correlation"
	case KindEchoIntensity:
		return "echo_intensity"
	case KindPercentGood:
		return "percent_good"
	case KindStatusProfile:
		return "status_profile"
	case KindBottomTrack:
		return "bottom_track"
	case KindAuxSensor:
		return "aux_sensor"
	default:
		return fmt.Sprintf("0x%04X", uint16(k))
	}
}

// needsCellCount reports whether the section is sized by the fixed leader.
func (k SectionKind) needsCellCount() bool {
	switch k {
	case KindVelocity, KindCorrelation, KindEchoIntensity, KindPercentGood:
		return true
	}
	return false
}

// Section is the decoded payload of one section. The concrete type is one
// of *FixedLeader, *VariableLeader, *Profile[int16], *Profile[uint8],
// *BottomTrack or Unsupported.
type Section interface {
	Kind() SectionKind
}

func (*FixedLeader) Kind() SectionKind    { return KindFixedLeader }
func (*VariableLeader) Kind() SectionKind { return KindVariableLeader }
func (*BottomTrack) Kind() SectionKind    { return KindBottomTrack }
func (p *Profile[T]) Kind() SectionKind   { return SectionKind(p.ID) }

// Unsupported is a recognised section that is skipped without decoding.
type Unsupported struct {
	Code SectionKind
}

func (u Unsupported) Kind() SectionKind { return u.Code }

// span is one entry of the offset table resolved to absolute positions.
type span struct {
	offset int // relative to ensemble start
	end    int // relative to ensemble start, exclusive
}

// sectionSpans pairs each offset with the extent it may occupy: up to the
// next larger offset or the end of the ensemble body. Table order is kept.
func sectionSpans(hdr Header) []span {
	sorted := make([]int, len(hdr.Offsets))
	for i, off := range hdr.Offsets {
		sorted[i] = int(off)
	}
	sort.Ints(sorted)

	spans := make([]span, len(hdr.Offsets))
	for i, off := range hdr.Offsets {
		end := int(hdr.ByteCount)
		j := sort.SearchInts(sorted, int(off)+1)
		if j < len(sorted) {
			end = sorted[j]
		}
		spans[i] = span{offset: int(off), end: end}
	}
	return spans
}

// dispatch reads the type code at the start of data and routes it to the
// matching parser. cells is nil until a fixed leader has been decoded.
func dispatch(data []byte, cells *uint16, skipUnsupported bool) (Section, error) {
	if err := need(data, 2, "section type code"); err != nil {
		return nil, err
	}
	kind := SectionKind(u16(data, 0))

	if kind.needsCellCount() && cells == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingFixedLeader, kind)
	}

	var (
		sec Section
		err error
	)
	switch kind {
	case KindFixedLeader:
		sec, _, err = parseFixedLeader(data)
	case KindVariableLeader:
		sec, _, err = parseVariableLeader(data)
	case KindVelocity:
		sec, _, err = parseVelocity(data, int(*cells))
	case KindCorrelation, KindEchoIntensity, KindPercentGood:
		sec, _, err = parseByteProfile(data, int(*cells), kind.String())
	case KindBottomTrack:
		sec, _, err = parseBottomTrack(data)
	case KindStatusProfile, KindAuxSensor:
		if !skipUnsupported {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSectionType, kind)
		}
		return Unsupported{Code: kind}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSectionType, kind)
	}
	if err != nil {
		return nil, err
	}
	return sec, nil
}
