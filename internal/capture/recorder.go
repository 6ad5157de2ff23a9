package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/banshee-data/current.report/internal/pd0"
)

// ErrWriteFailed is returned when a command is only partly written.
var ErrWriteFailed = errors.New("failed to write command to serial port")

const defaultReadSize = 4096

// Stats counts what a Recorder has copied so far.
type Stats struct {
	Bytes       int64 `json:"bytes"`
	SyncMarkers int64 `json:"sync_markers"`
}

// Recorder copies the raw byte stream of a serial port into a writer.
// Nothing is parsed: the output is the exact byte stream the instrument
// sent, suitable for pd0.Decode later.
type Recorder struct {
	port     SerialPorter
	out      io.Writer
	readSize int

	mu      sync.Mutex
	stats   Stats
	pending bool // last byte seen was an unpaired sync byte
}

// NewRecorder returns a recorder copying port into out.
func NewRecorder(port SerialPorter, out io.Writer) *Recorder {
	return &Recorder{port: port, out: out, readSize: defaultReadSize}
}

// Stats returns the counts so far. Safe to call while Run is active.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// SendCommand writes a command line to the instrument, appending the
// carriage return it expects.
func (r *Recorder) SendCommand(command string) error {
	if !strings.HasSuffix(command, "\r") {
		command += "\r"
	}
	n, err := r.port.Write([]byte(command))
	if err != nil {
		return fmt.Errorf("failed to send %q: %w", strings.TrimSpace(command), err)
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Run copies bytes until the port reports EOF (nil error) or ctx is done
// (ctx.Err()). The caller owns the port and closes it afterwards, which
// also releases a read blocked at cancellation.
func (r *Recorder) Run(ctx context.Context) error {
	chunks := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(chunks)
		for ctx.Err() == nil {
			buf := make([]byte, r.readSize)
			n, err := r.port.Read(buf)
			if n > 0 {
				select {
				case chunks <- buf[:n]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- err
				}
				return
			}
			// A read timeout returns 0, nil; keep polling.
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case chunk, ok := <-chunks:
			if !ok {
				select {
				case err := <-readErr:
					return fmt.Errorf("serial read failed: %w", err)
				default:
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				return nil
			}
			if _, err := r.out.Write(chunk); err != nil {
				return fmt.Errorf("failed to write capture: %w", err)
			}
			r.count(chunk)
		}
	}
}

// count tallies bytes and non-overlapping sync marker pairs, including
// pairs split across reads.
func (r *Recorder) count(chunk []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Bytes += int64(len(chunk))
	for _, b := range chunk {
		if b != pd0.SyncByte {
			r.pending = false
			continue
		}
		if r.pending {
			r.stats.SyncMarkers++
			r.pending = false
		} else {
			r.pending = true
		}
	}
}
