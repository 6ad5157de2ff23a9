package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/current.report/internal/config"
	"github.com/banshee-data/current.report/internal/db"
	"github.com/banshee-data/current.report/internal/monitoring"
	"github.com/banshee-data/current.report/internal/pd0"
	"github.com/banshee-data/current.report/internal/testutil"
)

func setupTestServer(t *testing.T, cfg *config.DecoderConfig) (*Server, *db.DB) {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	if cfg == nil {
		cfg = config.DefaultDecoderConfig()
	}
	return NewServer(database, cfg), database
}

func serve(s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, httptest.NewRequest(method, target, bytes.NewReader(body)))
	return rec
}

func damagedStream(t *testing.T) []byte {
	return append([]byte{0x7F, 0x7F, 0x00}, testutil.SyntheticStream(t, 4, 6, 3)...)
}

func TestListRunsEmpty(t *testing.T) {
	s, _ := setupTestServer(t, nil)

	rec := serve(s, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestListRunsLimit(t *testing.T) {
	s, database := setupTestServer(t, nil)
	base := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := database.RecordRun(fmt.Sprintf("file%d", i), base.Add(time.Duration(i)*time.Minute), nil, &pd0.Report{})
		require.NoError(t, err)
	}

	rec := serve(s, http.MethodGet, "/api/runs?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []db.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "file2", runs[0].SourcePath)

	rec = serve(s, http.MethodGet, "/api/runs?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(s, http.MethodPost, "/api/runs", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRunByID(t *testing.T) {
	s, database := setupTestServer(t, nil)
	seq, report, err := pd0.Decode(damagedStream(t))
	require.NoError(t, err)
	runID, err := database.RecordRun("DEP01000.000", time.Now(), seq, report)
	require.NoError(t, err)

	rec := serve(s, http.MethodGet, "/api/runs/"+runID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail RunDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.NotNil(t, detail.Run)
	assert.Equal(t, runID, detail.Run.RunID)
	assert.Equal(t, 4, detail.Run.Emitted)
	assert.Len(t, detail.Ensembles, 4)
	require.Len(t, detail.Recoveries, 2)
	assert.Equal(t, "malformed_header", detail.Recoveries[0].Reason)
	assert.Equal(t, "unsynchronised_bytes", detail.Recoveries[1].Reason)
	assert.Equal(t, map[string]int{"malformed_header": 1, "unsynchronised_bytes": 1}, detail.RecoveryCounts)
	assert.Equal(t, int64(1), detail.Run.SkippedBytes)

	rec = serve(s, http.MethodPut, "/api/runs/"+runID, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = serve(s, http.MethodDelete, "/api/runs/"+runID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(s, http.MethodGet, "/api/runs/"+runID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(s, http.MethodDelete, "/api/runs/"+runID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(s, http.MethodGet, "/api/runs/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCaptures(t *testing.T) {
	s, database := setupTestServer(t, nil)

	rec := serve(s, http.MethodGet, "/api/captures", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	require.NoError(t, database.StartCapture(&db.Capture{PortPath: "/dev/ttyUSB0", BaudRate: 9600}))
	rec = serve(s, http.MethodGet, "/api/captures", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var captures []db.Capture
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &captures))
	require.Len(t, captures, 1)
	assert.Equal(t, "/dev/ttyUSB0", captures[0].PortPath)

	rec = serve(s, http.MethodDelete, "/api/captures", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDecodeUpload(t *testing.T) {
	s, database := setupTestServer(t, nil)

	rec := serve(s, http.MethodPost, "/api/decode", damagedStream(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DecodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.RunID)
	require.NotNil(t, resp.Report)
	assert.Equal(t, 4, resp.Report.Emitted)
	assert.Equal(t, 1, resp.Report.Discarded)
	assert.Equal(t, 1, resp.Report.SkippedBytes)
	assert.Equal(t, 4, resp.Summary.Ensembles)
	require.NotNil(t, resp.Summary.FirstNumber)
	assert.Equal(t, uint32(1), *resp.Summary.FirstNumber)
	assert.Equal(t, uint32(4), *resp.Summary.LastNumber)

	runs, err := database.Runs(0)
	require.NoError(t, err)
	assert.Empty(t, runs, "nothing recorded without ?record")
}

func TestDecodeUploadRecord(t *testing.T) {
	s, database := setupTestServer(t, nil)

	rec := serve(s, http.MethodPost, "/api/decode?record=true&name=DEP01000.000", damagedStream(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DecodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)

	run, err := database.Run(resp.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "DEP01000.000", run.SourcePath)
	assert.Equal(t, 4, run.Emitted)
	assert.Equal(t, 1, run.Discarded)
}

func TestDecodeUploadErrors(t *testing.T) {
	limit := int64(64)
	cfg := config.DefaultDecoderConfig()
	cfg.MaxFileBytes = &limit
	s, _ := setupTestServer(t, cfg)

	rec := serve(s, http.MethodGet, "/api/decode", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = serve(s, http.MethodPost, "/api/decode", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "empty")

	rec = serve(s, http.MethodPost, "/api/decode", damagedStream(t))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestShowConfig(t *testing.T) {
	workers := 4
	cfg := config.DefaultDecoderConfig()
	cfg.ParallelWorkers = &workers
	s, _ := setupTestServer(t, cfg)

	rec := serve(s, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, float64(4), got["parallel_workers"])
	assert.Equal(t, float64(cfg.GetMaxFileBytes()), got["max_file_bytes"])

	rec = serve(s, http.MethodPost, "/api/config", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLoggingMiddleware(t *testing.T) {
	var lines []string
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.Logf = prev })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "418")
	assert.Contains(t, lines[0], "GET")
	assert.Contains(t, lines[0], "/api/runs")
}

func TestStatusCodeColor(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, colorBoldGreen + "200" + colorReset},
		{304, colorYellow + "304" + colorReset},
		{500, colorBoldRed + "500" + colorReset},
		{101, "101"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCodeColor(tt.code))
	}
}

func TestRunChart(t *testing.T) {
	s, database := setupTestServer(t, nil)
	seq, report, err := pd0.Decode(damagedStream(t))
	require.NoError(t, err)
	runID, err := database.RecordRun("DEP01000.000", time.Now(), seq, report)
	require.NoError(t, err)

	rec := serve(s, http.MethodGet, "/api/runs/"+runID+"/chart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	page := rec.Body.String()
	assert.Contains(t, page, "malformed_header")
	assert.Contains(t, page, "unsynchronised_bytes")
	assert.Contains(t, page, "skipped_bytes=1")
	assert.Contains(t, page, "DEP01000.000")

	rec = serve(s, http.MethodGet, "/api/runs/missing/chart", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(s, http.MethodDelete, "/api/runs/"+runID+"/chart", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
