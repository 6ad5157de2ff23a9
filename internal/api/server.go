// Package api serves decode runs, capture sessions and on-demand decodes
// over HTTP as JSON.
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/current.report/internal/config"
	"github.com/banshee-data/current.report/internal/db"
	"github.com/banshee-data/current.report/internal/monitoring"
	"github.com/banshee-data/current.report/internal/pd0"
	"github.com/banshee-data/current.report/internal/summary"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

const defaultRunLimit = 50

type Server struct {
	db  *db.DB
	cfg *config.DecoderConfig
	dec *pd0.Decoder
}

// NewServer returns a server over database. Uploaded files are decoded
// with the settings in cfg.
func NewServer(database *db.DB, cfg *config.DecoderConfig) *Server {
	dec := pd0.NewDecoder()
	dec.SetSkipUnsupported(cfg.GetSkipUnsupported())
	if cfg.GetLogRecoveries() {
		dec.SetLogger(monitoring.Prefixed("api"))
	}
	return &Server{db: database, cfg: cfg, dec: dec}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status and duration of each request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/", s.handleRunByID) // {id} and {id}/chart
	mux.HandleFunc("/api/captures", s.listCaptures)
	mux.HandleFunc("/api/decode", s.decodeUpload)
	mux.HandleFunc("/api/config", s.showConfig)
	return mux
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}

	runs, err := s.db.Runs(limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve runs: %v", err))
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// RunDetail is the response of GET /api/runs/{id}.
type RunDetail struct {
	Run            *db.Run          `json:"run"`
	Ensembles      []db.EnsembleRow `json:"ensembles"`
	Recoveries     []db.RecoveryRow `json:"recoveries"`
	RecoveryCounts map[string]int   `json:"recovery_counts"`
}

func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/api/runs/"))
	if id, ok := strings.CutSuffix(runID, "/chart"); ok && r.Method == http.MethodGet {
		s.handleRunChart(w, id)
		return
	}
	if runID == "" || strings.Contains(runID, "/") {
		writeJSONError(w, http.StatusBadRequest, "run_id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getRun(w, runID)
	case http.MethodDelete:
		s.deleteRun(w, runID)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) getRun(w http.ResponseWriter, runID string) {
	run, err := s.db.Run(runID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		writeJSONError(w, http.StatusNotFound, "run not found")
		return
	}

	detail := RunDetail{Run: run}
	if detail.Ensembles, err = s.db.EnsemblesForRun(runID); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if detail.Recoveries, err = s.db.RecoveriesForRun(runID); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if detail.RecoveryCounts, err = s.db.RecoveryCounts(runID); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) deleteRun(w http.ResponseWriter, runID string) {
	run, err := s.db.Run(runID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		writeJSONError(w, http.StatusNotFound, "run not found")
		return
	}
	if err := s.db.DeleteRun(runID); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCaptures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	captures, err := s.db.Captures()
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve captures: %v", err))
		return
	}
	if captures == nil {
		captures = []db.Capture{}
	}
	writeJSON(w, http.StatusOK, captures)
}

// DecodeResponse is the response of POST /api/decode.
type DecodeResponse struct {
	RunID   string          `json:"run_id,omitempty"`
	Report  *pd0.Report     `json:"report"`
	Summary summary.Summary `json:"summary"`
}

// decodeUpload decodes the raw request body. With ?record=true the run is
// stored under the name given by ?name=.
func (s *Server) decodeUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	started := time.Now()

	body := io.Reader(r.Body)
	if limit := s.cfg.GetMaxFileBytes(); limit > 0 {
		body = http.MaxBytesReader(w, r.Body, limit)
	}
	buf, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("failed to read body: %v", err))
		return
	}
	if len(buf) == 0 {
		writeJSONError(w, http.StatusBadRequest, "raw file is empty")
		return
	}

	seq, report, err := s.dec.Decode(buf)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := DecodeResponse{Report: report, Summary: summary.Summarize(seq)}
	if record, _ := strconv.ParseBool(r.URL.Query().Get("record")); record {
		name := r.URL.Query().Get("name")
		if name == "" {
			name = "upload"
		}
		if resp.RunID, err = s.db.RecordRun(name, started, seq, report); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"max_file_bytes":   s.cfg.GetMaxFileBytes(),
		"skip_unsupported": s.cfg.GetSkipUnsupported(),
		"log_recoveries":   s.cfg.GetLogRecoveries(),
		"parallel_workers": s.cfg.GetParallelWorkers(),
	})
}
