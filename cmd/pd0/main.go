// Command pd0 decodes, summarises and records raw PD0 ADCP data.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/current.report/internal/capture"
	"github.com/banshee-data/current.report/internal/config"
	"github.com/banshee-data/current.report/internal/fsutil"
	"github.com/banshee-data/current.report/internal/version"
)

// app carries the process environment so commands can run against
// in-memory files and mock ports in tests.
type app struct {
	ctx      context.Context
	stdout   io.Writer
	stderr   io.Writer
	fsys     fsutil.FileSystem
	openPort capture.Opener
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{
		ctx:      ctx,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		fsys:     fsutil.OSFileSystem{},
		openPort: capture.Open,
	}

	if err := a.run(os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func (a *app) run(args []string) error {
	if len(args) < 1 {
		a.printUsage()
		return errors.New("missing command")
	}

	command, rest := args[0], args[1:]
	switch command {
	case "decode":
		return a.decode(rest)
	case "summary":
		return a.summary(rest)
	case "capture":
		return a.capture(rest)
	case "runs":
		return a.runs(rest)
	case "migrate":
		return a.migrate(rest)
	case "serve":
		return a.serve(rest)
	case "health":
		return a.health(rest)
	case "version":
		fmt.Fprintln(a.stdout, version.String())
		return nil
	case "help", "-h", "--help":
		a.printUsage()
		return nil
	default:
		a.printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (a *app) printUsage() {
	fmt.Fprint(a.stdout, `pd0 - raw PD0 ADCP decoder

Usage: pd0 <command> [options]

Commands:
  decode     Decode raw files and report emitted and discarded ensembles
  summary    Raw-count statistics and ensemble-number gaps for one file
  capture    Record the raw byte stream of an instrument's serial port
  runs       List recorded decode runs and capture sessions
  migrate    Manage the run database schema
  serve      Serve runs, captures and uploads over HTTP
  health     Query the gRPC health service of a running server
  version    Show build information
  help       Show this help message

Examples:
  pd0 decode -json DEP01000.000
  pd0 decode -db runs.db -parallel 4 '/data/raw/*.000'
  pd0 summary -plot profile.png DEP01000.000
  pd0 capture -port /dev/ttyUSB0 -out DEP01000.000 -duration 1h
  pd0 migrate -db runs.db status
  pd0 serve -listen :8080 -grpc-listen :9090 -db runs.db
  pd0 health -addr localhost:9090
`)
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// loadConfig returns the built-in defaults when path is empty.
func (a *app) loadConfig(path string) (*config.DecoderConfig, error) {
	if path == "" {
		return config.DefaultDecoderConfig(), nil
	}
	return config.LoadDecoderConfigFS(a.fsys, path)
}
