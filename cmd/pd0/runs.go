package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/banshee-data/current.report/internal/config"
	"github.com/banshee-data/current.report/internal/db"
)

func (a *app) runs(args []string) error {
	fs := a.newFlagSet("runs")
	dbPath := fs.String("db", config.DefaultDBPath, "Database path")
	limit := fs.Int("n", 20, "Number of runs to list (0 for all)")
	runID := fs.String("id", "", "Show the ensembles and recoveries of one run")
	captures := fs.Bool("captures", false, "List capture sessions instead of runs")
	remove := fs.Bool("delete", false, "Delete the run given by -id")
	asJSON := fs.Bool("json", false, "Print as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	switch {
	case *captures:
		list, err := database.Captures()
		if err != nil {
			return err
		}
		if *asJSON {
			return a.writeJSON(list)
		}
		for _, c := range list {
			state := "recording"
			if c.FinishedAt != nil {
				state = c.FinishedAt.Sub(c.StartedAt).String()
			}
			fmt.Fprintf(a.stdout, "%s  %s  %s -> %s  %d bytes  %d sync  %s\n",
				c.CaptureID, c.StartedAt.Format("2006-01-02T15:04:05Z"), c.PortPath, c.OutputPath,
				c.Bytes, c.SyncMarkers, state)
		}
		return nil

	case *runID != "" && *remove:
		if err := database.DeleteRun(*runID); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "deleted run %s\n", *runID)
		return nil

	case *runID != "":
		return a.showRun(database, *runID, *asJSON)
	}

	list, err := database.Runs(*limit)
	if err != nil {
		return err
	}
	if *asJSON {
		return a.writeJSON(list)
	}
	for _, r := range list {
		fmt.Fprintf(a.stdout, "%s  %s  %s  %d bytes  %d ensembles  %d discarded  %s\n",
			r.RunID, r.StartedAt.Format("2006-01-02T15:04:05Z"), r.SourcePath,
			r.SourceBytes, r.Emitted, r.Discarded, r.Duration())
	}
	return nil
}

func (a *app) showRun(database *db.DB, runID string, asJSON bool) error {
	run, err := database.Run(runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", runID)
	}
	ensembles, err := database.EnsemblesForRun(runID)
	if err != nil {
		return err
	}
	recoveries, err := database.RecoveriesForRun(runID)
	if err != nil {
		return err
	}
	counts, err := database.RecoveryCounts(runID)
	if err != nil {
		return err
	}

	if asJSON {
		return a.writeJSON(struct {
			Run        *db.Run          `json:"run"`
			Ensembles  []db.EnsembleRow `json:"ensembles"`
			Recoveries []db.RecoveryRow `json:"recoveries"`
			Counts     map[string]int   `json:"recovery_counts"`
		}{run, ensembles, recoveries, counts})
	}

	fmt.Fprintf(a.stdout, "run %s: %s, %d ensembles, %d discarded, %d bytes skipped\n",
		run.RunID, run.SourcePath, run.Emitted, run.Discarded, run.SkippedBytes)

	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(a.stdout, "  %-22s %d\n", reason, counts[reason])
	}
	for _, r := range recoveries {
		printRecovery(a.stdout, r.StartOffset, r.ResumeOffset, r.Reason)
	}
	for _, e := range ensembles {
		number := "-"
		if e.EnsembleNumber != nil {
			number = fmt.Sprint(*e.EnsembleNumber)
		}
		fmt.Fprintf(a.stdout, "  #%-6s [%d, %d) cells=%d %s\n", number, e.StartOffset, e.EndOffset, e.CellCount, e.Sections)
	}
	return nil
}

func (a *app) writeJSON(v interface{}) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) migrate(args []string) error {
	fs := a.newFlagSet("migrate")
	dbPath := fs.String("db", config.DefaultDBPath, "Database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.RunMigrateCommand(fs.Args(), *dbPath, a.stdout)
}
