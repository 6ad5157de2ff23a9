package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/current.report/internal/pd0"
)

// Run is one decode of one source file.
type Run struct {
	RunID        string    `json:"run_id"`
	SourcePath   string    `json:"source_path"`
	SourceBytes  int64     `json:"source_bytes"`
	Emitted      int       `json:"emitted"`
	Discarded    int       `json:"discarded"`
	Skipped      int       `json:"skipped"`
	SkippedBytes int64     `json:"skipped_bytes"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Duration is the wall time the decode took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// EnsembleRow indexes one emitted ensemble of a run. EnsembleNumber is nil
// when the ensemble had no variable leader.
type EnsembleRow struct {
	RunID          string  `json:"run_id"`
	Seq            int     `json:"seq"`
	StartOffset    int     `json:"start_offset"`
	EndOffset      int     `json:"end_offset"`
	EnsembleNumber *uint32 `json:"ensemble_number,omitempty"`
	CellCount      int     `json:"cell_count"`
	Sections       string  `json:"sections"` // comma-separated section kinds
}

// RecoveryRow is one discarded ensemble or skipped byte range and where
// scanning resumed.
type RecoveryRow struct {
	RunID        string `json:"run_id"`
	StartOffset  int    `json:"start_offset"`
	ResumeOffset int    `json:"resume_offset"`
	Reason       string `json:"reason"`
}

// RecordRun stores a decode result in a single transaction and returns the
// new run ID.
func (db *DB) RecordRun(sourcePath string, startedAt time.Time, seq pd0.Sequence, report *pd0.Report) (string, error) {
	if report == nil {
		return "", fmt.Errorf("record run: nil report")
	}
	runID := uuid.NewString()
	finishedAt := time.Now()

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO decode_runs
		(run_id, source_path, source_bytes, emitted, discarded, skipped, skipped_bytes, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, sourcePath, report.BufferBytes, report.Emitted, report.Discarded,
		report.Skipped, report.SkippedBytes, startedAt.UnixNano(), finishedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert decode run: %w", err)
	}

	ensStmt, err := tx.Prepare(`INSERT INTO ensembles
		(run_id, seq, start_offset, end_offset, ensemble_number, cell_count, sections)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare ensemble insert: %w", err)
	}
	defer ensStmt.Close()

	for i := range seq {
		e := &seq[i]
		var number sql.NullInt64
		if e.VariableLeader != nil {
			number = sql.NullInt64{Int64: int64(e.VariableLeader.FullEnsembleNumber()), Valid: true}
		}
		cells := 0
		if e.FixedLeader != nil {
			cells = int(e.FixedLeader.CellCount)
		}
		if _, err := ensStmt.Exec(runID, i, e.Start, e.End, number, cells, sectionList(e)); err != nil {
			return "", fmt.Errorf("failed to insert ensemble %d: %w", i, err)
		}
	}

	recStmt, err := tx.Prepare(`INSERT INTO recoveries
		(run_id, start_offset, resume_offset, reason) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare recovery insert: %w", err)
	}
	defer recStmt.Close()

	for _, r := range report.Recoveries {
		if _, err := recStmt.Exec(runID, r.Start, r.Resume, r.Reason); err != nil {
			return "", fmt.Errorf("failed to insert recovery at %d: %w", r.Start, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit decode run: %w", err)
	}
	return runID, nil
}

func sectionList(e *pd0.Ensemble) string {
	kinds := e.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ",")
}

// Runs returns the most recent decode runs first, up to limit (0 for all).
func (db *DB) Runs(limit int) ([]Run, error) {
	query := `SELECT run_id, source_path, source_bytes, emitted, discarded, skipped, skipped_bytes,
		started_at, finished_at FROM decode_runs ORDER BY started_at DESC, run_id`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decode runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished int64
		)
		if err := rows.Scan(&r.RunID, &r.SourcePath, &r.SourceBytes, &r.Emitted, &r.Discarded,
			&r.Skipped, &r.SkippedBytes, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan decode run: %w", err)
		}
		r.StartedAt = time.Unix(0, started).UTC()
		r.FinishedAt = time.Unix(0, finished).UTC()
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run returns a single decode run, or nil if runID is unknown.
func (db *DB) Run(runID string) (*Run, error) {
	var (
		r                 Run
		started, finished int64
	)
	err := db.QueryRow(`SELECT run_id, source_path, source_bytes, emitted, discarded, skipped, skipped_bytes,
		started_at, finished_at FROM decode_runs WHERE run_id = ?`, runID).
		Scan(&r.RunID, &r.SourcePath, &r.SourceBytes, &r.Emitted, &r.Discarded,
			&r.Skipped, &r.SkippedBytes, &started, &finished)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decode run: %w", err)
	}
	r.StartedAt = time.Unix(0, started).UTC()
	r.FinishedAt = time.Unix(0, finished).UTC()
	return &r, nil
}

// EnsemblesForRun returns the ensemble index of a run in buffer order.
func (db *DB) EnsemblesForRun(runID string) ([]EnsembleRow, error) {
	rows, err := db.Query(`SELECT run_id, seq, start_offset, end_offset, ensemble_number, cell_count, sections
		FROM ensembles WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ensembles: %w", err)
	}
	defer rows.Close()

	var out []EnsembleRow
	for rows.Next() {
		var (
			e      EnsembleRow
			number sql.NullInt64
		)
		if err := rows.Scan(&e.RunID, &e.Seq, &e.StartOffset, &e.EndOffset, &number, &e.CellCount, &e.Sections); err != nil {
			return nil, fmt.Errorf("failed to scan ensemble: %w", err)
		}
		if number.Valid {
			n := uint32(number.Int64)
			e.EnsembleNumber = &n
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecoveriesForRun returns the recovery events of a run by start offset.
func (db *DB) RecoveriesForRun(runID string) ([]RecoveryRow, error) {
	rows, err := db.Query(`SELECT run_id, start_offset, resume_offset, reason
		FROM recoveries WHERE run_id = ? ORDER BY start_offset, resume_offset`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recoveries: %w", err)
	}
	defer rows.Close()

	var out []RecoveryRow
	for rows.Next() {
		var r RecoveryRow
		if err := rows.Scan(&r.RunID, &r.StartOffset, &r.ResumeOffset, &r.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan recovery: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecoveryCounts returns how many recoveries of each reason a run had.
func (db *DB) RecoveryCounts(runID string) (map[string]int, error) {
	rows, err := db.Query(`SELECT reason, COUNT(*) FROM recoveries WHERE run_id = ? GROUP BY reason`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count recoveries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			reason string
			n      int
		)
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("failed to scan recovery count: %w", err)
		}
		counts[reason] = n
	}
	return counts, rows.Err()
}

// DeleteRun removes a run and, through the foreign keys, its ensembles and
// recoveries.
func (db *DB) DeleteRun(runID string) error {
	res, err := db.Exec(`DELETE FROM decode_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete decode run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("decode run %s not found", runID)
	}
	return nil
}
