package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/current.report/internal/capture"
	"github.com/banshee-data/current.report/internal/db"
	"github.com/banshee-data/current.report/internal/monitoring"
)

const captureReadTimeout = 500 * time.Millisecond

func (a *app) capture(args []string) error {
	fs := a.newFlagSet("capture")
	configPath := fs.String("config", "", "Decoder config JSON with a serial block")
	portPath := fs.String("port", "", "Serial port device (required)")
	baud := fs.Int("baud", 0, "Baud rate (default: config serial.baud_rate)")
	outPath := fs.String("out", "", "Output raw file (required)")
	duration := fs.Duration("duration", 0, "Stop after this long (default: until interrupted or EOF)")
	command := fs.String("cmd", "", "Command to send before recording, e.g. CS to start pinging")
	dbPath := fs.String("db", "", "Record the capture session in this database")
	list := fs.Bool("list", false, "List serial ports and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *list {
		ports, err := capture.ListPorts()
		if err != nil {
			return err
		}
		for _, p := range ports {
			fmt.Fprintln(a.stdout, p)
		}
		return nil
	}

	if *portPath == "" || *outPath == "" {
		return fmt.Errorf("capture: -port and -out are required")
	}

	cfg, err := a.loadConfig(*configPath)
	if err != nil {
		return err
	}
	opts := capture.OptionsFromConfig(cfg)
	if *baud > 0 {
		opts.BaudRate = *baud
	}
	opts, err = opts.Normalize()
	if err != nil {
		return err
	}

	port, err := a.openPort(*portPath, opts)
	if err != nil {
		return err
	}
	defer port.Close()
	if tp, ok := port.(capture.TimeoutSerialPorter); ok {
		if err := tp.SetReadTimeout(captureReadTimeout); err != nil {
			return fmt.Errorf("failed to set read timeout: %w", err)
		}
	}

	out, err := a.fsys.Create(*outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", *outPath, err)
	}

	var (
		database *db.DB
		session  *db.Capture
	)
	if *dbPath != "" {
		database, err = db.NewDB(*dbPath)
		if err != nil {
			out.Close()
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		session = &db.Capture{
			PortPath:   *portPath,
			BaudRate:   opts.BaudRate,
			DataBits:   opts.DataBits,
			StopBits:   opts.StopBits,
			Parity:     opts.Parity,
			OutputPath: *outPath,
		}
		if err := database.StartCapture(session); err != nil {
			out.Close()
			return err
		}
	}

	rec := capture.NewRecorder(port, out)
	if *command != "" {
		if err := rec.SendCommand(*command); err != nil {
			out.Close()
			return err
		}
	}

	ctx := a.ctx
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	logf := monitoring.Prefixed("capture")
	logf("recording %s (%s) to %s", *portPath, opts, *outPath)

	runErr := rec.Run(ctx)
	closeErr := out.Close()
	stats := rec.Stats()

	if session != nil {
		if err := database.FinishCapture(session.CaptureID, stats.Bytes, stats.SyncMarkers, time.Now()); err != nil {
			logf("failed to finish capture session %s: %v", session.CaptureID, err)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", *outPath, closeErr)
	}

	fmt.Fprintf(a.stdout, "%s: %d bytes, %d sync markers\n", *outPath, stats.Bytes, stats.SyncMarkers)
	return nil
}
