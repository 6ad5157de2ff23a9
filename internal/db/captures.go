package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Capture is one raw serial recording session.
type Capture struct {
	CaptureID   string     `json:"capture_id"`
	PortPath    string     `json:"port_path"`
	BaudRate    int        `json:"baud_rate"`
	DataBits    int        `json:"data_bits"`
	StopBits    int        `json:"stop_bits"`
	Parity      string     `json:"parity"`
	OutputPath  string     `json:"output_path"`
	Bytes       int64      `json:"bytes"`
	SyncMarkers int64      `json:"sync_markers"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"` // nil while recording
}

// StartCapture records the start of a capture session and fills in
// c.CaptureID.
func (db *DB) StartCapture(c *Capture) error {
	if c.StartedAt.IsZero() {
		c.StartedAt = time.Now()
	}
	c.CaptureID = uuid.NewString()

	_, err := db.Exec(`INSERT INTO captures
		(capture_id, port_path, baud_rate, data_bits, stop_bits, parity, output_path, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CaptureID, c.PortPath, c.BaudRate, c.DataBits, c.StopBits, c.Parity, c.OutputPath,
		c.StartedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert capture: %w", err)
	}
	return nil
}

// FinishCapture stores the final byte and sync marker counts.
func (db *DB) FinishCapture(captureID string, bytes, syncMarkers int64, finishedAt time.Time) error {
	res, err := db.Exec(`UPDATE captures SET bytes = ?, sync_markers = ?, finished_at = ?
		WHERE capture_id = ?`, bytes, syncMarkers, finishedAt.UnixNano(), captureID)
	if err != nil {
		return fmt.Errorf("failed to update capture: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("capture %s not found", captureID)
	}
	return nil
}

// Captures returns all capture sessions, oldest first.
func (db *DB) Captures() ([]Capture, error) {
	rows, err := db.Query(`SELECT capture_id, port_path, baud_rate, data_bits, stop_bits, parity,
		output_path, bytes, sync_markers, started_at, finished_at
		FROM captures ORDER BY started_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	var out []Capture
	for rows.Next() {
		var (
			c        Capture
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&c.CaptureID, &c.PortPath, &c.BaudRate, &c.DataBits, &c.StopBits, &c.Parity,
			&c.OutputPath, &c.Bytes, &c.SyncMarkers, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		c.StartedAt = time.Unix(0, started).UTC()
		if finished.Valid {
			t := time.Unix(0, finished.Int64).UTC()
			c.FinishedAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
