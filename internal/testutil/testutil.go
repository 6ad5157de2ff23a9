// Package testutil provides shared test helpers and PD0 fixtures.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/current.report/internal/pd0"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// SyntheticSequence returns n generated ensembles with the given cell count.
// The same seed always yields the same sequence.
func SyntheticSequence(t testing.TB, n, cells int, seed int64) pd0.Sequence {
	t.Helper()
	gen := pd0.NewSyntheticGenerator(cells, seed)
	seq := make(pd0.Sequence, 0, n)
	for i := 0; i < n; i++ {
		seq = append(seq, gen.Next())
	}
	return seq
}

// SyntheticStream encodes SyntheticSequence into a PD0 byte stream.
func SyntheticStream(t testing.TB, n, cells int, seed int64) []byte {
	t.Helper()
	buf, err := pd0.EncodeAll(SyntheticSequence(t, n, cells, seed))
	AssertNoError(t, err)
	return buf
}

// FlipBit returns a copy of buf with one bit inverted.
func FlipBit(buf []byte, offset int, bit uint) []byte {
	out := append([]byte(nil), buf...)
	out[offset] ^= 1 << (bit % 8)
	return out
}

// WriteFile writes data to name under a fresh temp dir and returns the path.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	AssertNoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// RecoveryReasons lists the reason of every recovery in report, in order.
func RecoveryReasons(report *pd0.Report) []string {
	if report == nil {
		return nil
	}
	reasons := make([]string, len(report.Recoveries))
	for i, r := range report.Recoveries {
		reasons[i] = r.Reason
	}
	return reasons
}
