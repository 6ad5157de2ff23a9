package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/banshee-data/current.report/internal/config"
	"github.com/banshee-data/current.report/internal/db"
	"github.com/banshee-data/current.report/internal/fsutil"
	"github.com/banshee-data/current.report/internal/monitoring"
	"github.com/banshee-data/current.report/internal/pcapsource"
	"github.com/banshee-data/current.report/internal/pd0"
)

// source says how to turn an input file into a raw PD0 buffer.
type source struct {
	pcap    bool
	udpPort int
}

// fileResult is the per-file output of the decode command.
type fileResult struct {
	Path   string      `json:"path"`
	RunID  string      `json:"run_id,omitempty"`
	Report *pd0.Report `json:"report"`
}

func (a *app) decode(args []string) error {
	fs := a.newFlagSet("decode")
	configPath := fs.String("config", "", "Decoder config JSON (default: built-in defaults)")
	record := fs.Bool("record", false, "Record each run in the database")
	dbPath := fs.String("db", "", "Database path for -record (default: config db_path)")
	workers := fs.Int("parallel", -1, "Worker goroutines; 0 decodes sequentially (default: config parallel_workers)")
	asJSON := fs.Bool("json", false, "Print results as JSON")
	var src source
	fs.BoolVar(&src.pcap, "pcap", false, "Inputs are packet captures of PD0 streamed over UDP")
	fs.IntVar(&src.udpPort, "udp-port", 0, "UDP port carrying PD0 in -pcap inputs (0 for any)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("decode: at least one file is required")
	}
	paths, err := a.expandInputs(fs.Args())
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	cfg, err := a.loadConfig(*configPath)
	if err != nil {
		return err
	}
	dec := newDecoder(cfg, "decode")

	n := cfg.GetParallelWorkers()
	if *workers >= 0 {
		n = *workers
	}

	var database *db.DB
	if *record || *dbPath != "" {
		path := *dbPath
		if path == "" {
			path = cfg.GetDBPath()
		}
		database, err = db.NewDB(path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()
	}

	var results []fileResult
	for _, path := range paths {
		started := time.Now()
		seq, report, err := a.decodeFile(dec, cfg, src, path, n)
		if err != nil {
			return err
		}

		res := fileResult{Path: path, Report: report}
		if database != nil {
			res.RunID, err = database.RecordRun(path, started, seq, report)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		results = append(results, res)
	}

	if *asJSON {
		return a.writeJSON(results)
	}

	for _, res := range results {
		r := res.Report
		fmt.Fprintf(a.stdout, "%s: %d bytes, %d ensembles, %d discarded, %d bytes skipped\n",
			res.Path, r.BufferBytes, r.Emitted, r.Discarded, r.SkippedBytes)
		for _, rec := range r.Recoveries {
			printRecovery(a.stdout, rec.Start, rec.Resume, rec.Reason)
		}
		if res.RunID != "" {
			fmt.Fprintf(a.stdout, "  recorded as run %s\n", res.RunID)
		}
	}
	return nil
}

// expandInputs replaces each argument holding glob metacharacters with the
// files it matches. A pattern that matches nothing is an error.
func (a *app) expandInputs(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[") {
			out = append(out, arg)
			continue
		}
		matches, err := a.fsys.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", arg)
		}
		out = append(out, matches...)
	}
	return out, nil
}

func printRecovery(w io.Writer, start, resume int, reason string) {
	if reason == pd0.ReasonUnsynchronised {
		fmt.Fprintf(w, "  skipped %d bytes at %d, resumed at %d\n", resume-start, start, resume)
		return
	}
	fmt.Fprintf(w, "  discarded at %d (%s), resumed at %d\n", start, reason, resume)
}

// newDecoder configures a decoder from cfg. Recoveries are logged through
// monitoring with source as the prefix.
func newDecoder(cfg *config.DecoderConfig, source string) *pd0.Decoder {
	dec := pd0.NewDecoder()
	dec.SetSkipUnsupported(cfg.GetSkipUnsupported())
	if cfg.GetLogRecoveries() {
		dec.SetLogger(monitoring.Prefixed(source))
	}
	return dec
}

// decodeFile loads path and decodes it, in parallel when workers > 0.
// An empty or oversized file is an error; corrupt content never is.
func (a *app) decodeFile(dec *pd0.Decoder, cfg *config.DecoderConfig, src source, path string, workers int) (pd0.Sequence, *pd0.Report, error) {
	buf, err := fsutil.LoadRaw(a.fsys, path, cfg.GetMaxFileBytes())
	if err != nil {
		return nil, nil, err
	}
	if src.pcap {
		payload, stats, err := pcapsource.ExtractUDP(bytes.NewReader(buf), src.udpPort)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		monitoring.Logf("[decode] %s: %d of %d packets carried %d PD0 bytes", path, stats.Matched, stats.Packets, stats.Bytes)
		buf = payload
	}
	if workers > 0 {
		return dec.DecodeParallel(a.ctx, buf, workers)
	}
	return dec.Decode(buf)
}
