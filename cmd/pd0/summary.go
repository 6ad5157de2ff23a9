package main

import (
	"fmt"
	"path/filepath"

	"github.com/banshee-data/current.report/internal/pd0"
	"github.com/banshee-data/current.report/internal/summary"
)

func (a *app) summary(args []string) error {
	fs := a.newFlagSet("summary")
	configPath := fs.String("config", "", "Decoder config JSON (default: built-in defaults)")
	asJSON := fs.Bool("json", false, "Print the summary as JSON")
	plotPath := fs.String("plot", "", "Also write a PNG of mean echo and correlation per cell")
	htmlPath := fs.String("html", "", "Also write the profile as an interactive HTML chart")
	var src source
	fs.BoolVar(&src.pcap, "pcap", false, "Input is a packet capture of PD0 streamed over UDP")
	fs.IntVar(&src.udpPort, "udp-port", 0, "UDP port carrying PD0 in a -pcap input (0 for any)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("summary: exactly one file is required")
	}
	path := fs.Arg(0)

	cfg, err := a.loadConfig(*configPath)
	if err != nil {
		return err
	}

	seq, report, err := a.decodeFile(newDecoder(cfg, "summary"), cfg, src, path, cfg.GetParallelWorkers())
	if err != nil {
		return err
	}
	s := summary.Summarize(seq)

	if *plotPath != "" {
		if err := summary.WriteProfilePlot(a.fsys, *plotPath, filepath.Base(path), s); err != nil {
			return err
		}
	}

	if *htmlPath != "" {
		if err := a.writeProfileHTML(*htmlPath, filepath.Base(path), s); err != nil {
			return err
		}
	}

	if *asJSON {
		return a.writeJSON(struct {
			Path    string          `json:"path"`
			Report  *pd0.Report     `json:"report"`
			Summary summary.Summary `json:"summary"`
		}{path, report, s})
	}

	fmt.Fprintf(a.stdout, "%s: %d bytes, %d discarded, %d bytes skipped\n",
		path, report.BufferBytes, report.Discarded, report.SkippedBytes)
	return summary.WriteText(a.stdout, s)
}

func (a *app) writeProfileHTML(path, title string, s summary.Summary) (err error) {
	f, err := a.fsys.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return summary.WriteProfileHTML(f, title, s)
}
