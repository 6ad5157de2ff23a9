// Package pd0 decodes the binary ensemble stream written by acoustic Doppler
// current profilers in the PD0 format.
//
// ENSEMBLE STRUCTURE (little-endian throughout):
//
//	├── Header (8 + 2n bytes)
//	│   ├── 0x7F 0x7F sync marker
//	│   ├── header id, data source id
//	│   ├── byte count (u16, excludes checksum)
//	│   ├── spare, data type count n
//	│   └── n × u16 section offsets, relative to the sync marker
//	├── Sections, each opening with a u16 type code
//	│   ├── 0x0000 fixed leader (59 bytes, carries the cell count)
//	│   ├── 0x0080 variable leader (65 bytes)
//	│   ├── 0x0100 velocity (2 + cells × 4 × int16)
//	│   ├── 0x0200 correlation, 0x0300 echo intensity, 0x0400 percent good (2 + cells × 4 × uint8)
//	│   ├── 0x0600 bottom track (81 bytes)
//	│   └── 0x0500 status profile, 0x0800 auxiliary sensor (skipped)
//	└── Checksum (u16 sum of every byte from the sync marker to the end of the body)
//
// DECODE PIPELINE:
//  1. FindSync locates the next 0x7F 0x7F pair. Bytes passed over are
//     reported as an unsynchronised range.
//  2. DecodeHeader reads the offset table.
//  3. VerifyChecksum validates the body.
//  4. Each section is dispatched on its type code to a typed parser.
//  5. The assembled Ensemble is emitted only if every section parsed and no
//     section kind appeared twice.
//
// Header and checksum failures resume the scan two bytes after the sync
// marker because the declared length cannot be trusted. Section failures
// after a good checksum resume after the whole ensemble. Values are kept as
// raw instrument counts; no scaling happens here.
package pd0
