package pd0

import (
	"encoding/binary"
	"fmt"
)

const (
	SyncByte = 0x7F // Both bytes of the ensemble sync marker

	headerPrefixSize = 8 // sync(2) + header id + source id + byte count(2) + spare + type count
	offsetEntrySize  = 2
	checksumSize     = 2
)

// FindSync returns the offset of the first sync marker at or after from.
// The scan is linear and never looks behind from.
func FindSync(buf []byte, from int) (int, bool) {
	if from < 0 {
		from = 0
	}
	for i := from; i+1 < len(buf); i++ {
		if buf[i] == SyncByte && buf[i+1] == SyncByte {
			return i, true
		}
	}
	return 0, false
}

// DecodeHeader decodes the ensemble header starting at the sync marker at
// start. The offset table must fit in the buffer and every offset must lie
// inside the declared ensemble length.
func DecodeHeader(buf []byte, start int) (Header, error) {
	if start < 0 || start+headerPrefixSize > len(buf) {
		return Header{}, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrMalformedHeader, headerPrefixSize, start, len(buf)-start)
	}
	if buf[start] != SyncByte || buf[start+1] != SyncByte {
		return Header{}, fmt.Errorf("%w: no sync marker at offset %d", ErrMalformedHeader, start)
	}

	hdr := Header{
		HeaderID:      buf[start+2],
		DataSourceID:  buf[start+3],
		ByteCount:     binary.LittleEndian.Uint16(buf[start+4 : start+6]),
		Spare:         buf[start+6],
		DataTypeCount: buf[start+7],
	}

	tableEnd := start + headerPrefixSize + int(hdr.DataTypeCount)*offsetEntrySize
	if tableEnd > len(buf) {
		return Header{}, fmt.Errorf("%w: offset table for %d sections ends at %d past buffer end %d",
			ErrMalformedHeader, hdr.DataTypeCount, tableEnd, len(buf))
	}
	if int(hdr.ByteCount) < tableEnd-start {
		return Header{}, fmt.Errorf("%w: byte count %d shorter than header (%d bytes)",
			ErrMalformedHeader, hdr.ByteCount, tableEnd-start)
	}

	hdr.Offsets = make([]uint16, hdr.DataTypeCount)
	for i := range hdr.Offsets {
		pos := start + headerPrefixSize + i*offsetEntrySize
		off := binary.LittleEndian.Uint16(buf[pos : pos+2])
		if off >= hdr.ByteCount {
			return Header{}, fmt.Errorf("%w: section %d offset %d outside ensemble of %d bytes",
				ErrMalformedHeader, i, off, hdr.ByteCount)
		}
		hdr.Offsets[i] = off
	}

	return hdr, nil
}

// Checksum is the 16-bit wrapping sum of body.
func Checksum(body []byte) uint16 {
	var sum uint16
	for _, b := range body {
		sum += uint16(b)
	}
	return sum
}

// VerifyChecksum compares the sum of the ensemble body against the
// little-endian checksum stored immediately after it.
func VerifyChecksum(buf []byte, start int, hdr Header) error {
	end := start + int(hdr.ByteCount)
	if end+checksumSize > len(buf) {
		return fmt.Errorf("%w: ensemble of %d bytes at offset %d runs past buffer end %d",
			ErrTruncatedSection, hdr.TotalLength(), start, len(buf))
	}
	want := binary.LittleEndian.Uint16(buf[end : end+checksumSize])
	got := Checksum(buf[start:end])
	if got != want {
		return fmt.Errorf("%w: computed 0x%04X, stored 0x%04X", ErrChecksumMismatch, got, want)
	}
	return nil
}
