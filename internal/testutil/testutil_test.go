package testutil

import (
	"bytes"
	"os"
	"testing"

	"github.com/banshee-data/current.report/internal/pd0"
)

func TestAssertNoError(t *testing.T) {
	t.Parallel()

	// Verify nil error doesn't cause issues
	AssertNoError(t, nil)
}

func TestSyntheticStreamDecodes(t *testing.T) {
	t.Parallel()

	stream := SyntheticStream(t, 6, 5, 42)
	seq, report, err := pd0.Decode(stream)
	AssertNoError(t, err)
	if len(seq) != 6 {
		t.Fatalf("decoded %d ensembles, want 6", len(seq))
	}
	if report.Discarded != 0 {
		t.Errorf("Discarded = %d, want 0", report.Discarded)
	}

	if again := SyntheticStream(t, 6, 5, 42); !bytes.Equal(stream, again) {
		t.Error("same seed produced different streams")
	}
}

func TestFlipBit(t *testing.T) {
	t.Parallel()

	orig := []byte{0x00, 0xF0}
	got := FlipBit(orig, 1, 3)
	if got[1] != 0xF8 {
		t.Errorf("FlipBit = %#x, want 0xf8", got[1])
	}
	if orig[1] != 0xF0 {
		t.Error("FlipBit modified its input")
	}
}

func TestFlipBitBreaksChecksum(t *testing.T) {
	t.Parallel()

	stream := SyntheticStream(t, 1, 3, 1)
	seq, report, err := pd0.Decode(FlipBit(stream, 20, 0))
	AssertNoError(t, err)
	if len(seq) != 0 {
		t.Errorf("decoded %d ensembles from corrupt stream, want 0", len(seq))
	}
	reasons := RecoveryReasons(report)
	if len(reasons) == 0 || reasons[0] != "checksum_mismatch" {
		t.Errorf("RecoveryReasons = %v, want checksum_mismatch first", reasons)
	}
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	path := WriteFile(t, "x.000", []byte{1, 2, 3})
	data, err := os.ReadFile(path)
	AssertNoError(t, err)
	if !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Errorf("ReadFile = %v", data)
	}
	if RecoveryReasons(nil) != nil {
		t.Error("RecoveryReasons(nil) should be nil")
	}
}
