// Command gen-pd0 writes synthetic raw PD0 files for fixtures and field
// tests of the decoder.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/banshee-data/current.report/internal/fsutil"
	"github.com/banshee-data/current.report/internal/pcapsource"
	"github.com/banshee-data/current.report/internal/pd0"
)

type options struct {
	out         string
	count       int
	cells       int
	seed        int64
	bottomTrack bool
	corrupt     int
	pcapPort    int
}

func main() {
	var o options
	flag.StringVar(&o.out, "out", "sample.000", "output path")
	flag.IntVar(&o.count, "n", 100, "number of ensembles")
	flag.IntVar(&o.cells, "cells", 30, "depth cells per ensemble")
	flag.Int64Var(&o.seed, "seed", 1, "random seed")
	flag.BoolVar(&o.bottomTrack, "bt", false, "include bottom track")
	flag.IntVar(&o.corrupt, "corrupt", 0, "number of ensembles to damage with a flipped byte or junk prefix")
	flag.IntVar(&o.pcapPort, "pcap-port", 0, "write a pcap with one UDP datagram per ensemble to this port instead of a raw file")
	flag.Parse()

	n, err := generate(fsutil.OSFileSystem{}, o)
	if err != nil {
		log.Fatalf("gen-pd0: %v", err)
	}
	log.Printf("✓ Created: %s (%d bytes, %d ensembles, %d damaged)", o.out, n, o.count, o.corrupt)
}

// generate writes the file described by o and returns its size.
func generate(fsys fsutil.FileSystem, o options) (int, error) {
	if o.count < 0 || o.cells < 0 || o.cells > 255 {
		return 0, fmt.Errorf("invalid -n %d or -cells %d", o.count, o.cells)
	}
	if o.pcapPort < 0 || o.pcapPort > 65535 {
		return 0, fmt.Errorf("invalid -pcap-port %d", o.pcapPort)
	}
	if o.corrupt > o.count {
		return 0, fmt.Errorf("-corrupt %d exceeds -n %d", o.corrupt, o.count)
	}

	gen := pd0.NewSyntheticGenerator(o.cells, o.seed)
	gen.BottomTrack = o.bottomTrack
	rng := rand.New(rand.NewSource(o.seed))
	damaged := make(map[int]bool, o.corrupt)
	for _, i := range rng.Perm(o.count)[:o.corrupt] {
		damaged[i] = true
	}

	var (
		buf      []byte
		payloads [][]byte
	)
	for i := 0; i < o.count; i++ {
		e := gen.Next()
		enc, err := pd0.Encode(&e)
		if err != nil {
			return 0, fmt.Errorf("ensemble %d: %w", i+1, err)
		}
		if damaged[i] {
			enc = damage(rng, enc)
		}
		buf = append(buf, enc...)
		payloads = append(payloads, enc)
	}

	if o.pcapPort > 0 {
		var capture bytes.Buffer
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		if err := pcapsource.WriteUDP(&capture, o.pcapPort, payloads, start, time.Second); err != nil {
			return 0, err
		}
		buf = capture.Bytes()
	}

	if err := fsys.WriteFile(o.out, buf, 0o644); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// damage either flips one byte after the sync marker, so the checksum
// fails, or prefixes a few bytes of junk that the scanner must skip.
func damage(rng *rand.Rand, enc []byte) []byte {
	if rng.Intn(2) == 0 {
		pos := 2 + rng.Intn(len(enc)-2)
		enc[pos] ^= 0x01
		return enc
	}
	junk := make([]byte, 1+rng.Intn(8))
	for i := range junk {
		junk[i] = byte(rng.Intn(0x7F))
	}
	return append(junk, enc...)
}
