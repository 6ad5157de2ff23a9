package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/current.report/internal/fsutil"
)

func TestDefaultDecoderConfig(t *testing.T) {
	cfg := DefaultDecoderConfig()

	if cfg.MaxFileBytes == nil || *cfg.MaxFileBytes != DefaultMaxFileBytes {
		t.Errorf("Expected MaxFileBytes %d, got %v", DefaultMaxFileBytes, cfg.MaxFileBytes)
	}
	if cfg.SkipUnsupported == nil || !*cfg.SkipUnsupported {
		t.Errorf("Expected SkipUnsupported true, got %v", cfg.SkipUnsupported)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	// Getters on the full default config agree with getters on an empty one.
	empty := EmptyDecoderConfig()
	if cfg.GetMaxFileBytes() != empty.GetMaxFileBytes() {
		t.Errorf("GetMaxFileBytes() = %d, empty = %d", cfg.GetMaxFileBytes(), empty.GetMaxFileBytes())
	}
	if cfg.GetParallelWorkers() != empty.GetParallelWorkers() {
		t.Errorf("GetParallelWorkers() = %d, empty = %d", cfg.GetParallelWorkers(), empty.GetParallelWorkers())
	}
	if cfg.GetLogRecoveries() != empty.GetLogRecoveries() || cfg.GetSkipUnsupported() != empty.GetSkipUnsupported() {
		t.Error("boolean defaults disagree")
	}
	if cfg.GetDBPath() != empty.GetDBPath() {
		t.Errorf("GetDBPath() = %q, empty = %q", cfg.GetDBPath(), empty.GetDBPath())
	}
	if cfg.GetBaudRate() != 9600 || empty.GetBaudRate() != 9600 {
		t.Errorf("GetBaudRate() = %d/%d, want 9600", cfg.GetBaudRate(), empty.GetBaudRate())
	}
	if empty.GetDataBits() != 8 || empty.GetStopBits() != 1 || empty.GetParity() != "N" {
		t.Errorf("serial defaults = %d%s%d, want 8N1", empty.GetDataBits(), empty.GetParity(), empty.GetStopBits())
	}
}

func TestDefaultsFileMatchesDefaultDecoderConfig(t *testing.T) {
	got := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultDecoderConfig(), got); diff != "" {
		t.Errorf("%s drifted from DefaultDecoderConfig (-code +file):\n%s", DefaultConfigPath, diff)
	}
}

func TestLoadDecoderConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "field.json")

	testJSON := `{
  "max_file_bytes": 1024,
  "parallel_workers": 4,
  "skip_unsupported": false,
  "serial": {"baud_rate": 115200, "parity": "E"}
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadDecoderConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetMaxFileBytes() != 1024 {
		t.Errorf("GetMaxFileBytes() = %d, want 1024", cfg.GetMaxFileBytes())
	}
	if cfg.GetParallelWorkers() != 4 {
		t.Errorf("GetParallelWorkers() = %d, want 4", cfg.GetParallelWorkers())
	}
	if cfg.GetSkipUnsupported() {
		t.Error("GetSkipUnsupported() = true, want false")
	}
	if cfg.GetBaudRate() != 115200 || cfg.GetParity() != "E" {
		t.Errorf("serial = %d %s, want 115200 E", cfg.GetBaudRate(), cfg.GetParity())
	}

	// Omitted fields keep their defaults.
	if !cfg.GetLogRecoveries() {
		t.Error("GetLogRecoveries() should default to true")
	}
	if cfg.GetDataBits() != 8 {
		t.Errorf("GetDataBits() = %d, want 8", cfg.GetDataBits())
	}
	if cfg.GetDBPath() != DefaultDBPath {
		t.Errorf("GetDBPath() = %q, want %q", cfg.GetDBPath(), DefaultDBPath)
	}
}

func TestLoadDecoderConfigFS_Errors(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	_ = mfs.WriteFile("/cfg/bad.json", []byte(`{"parallel_workers": `), 0644)
	_ = mfs.WriteFile("/cfg/invalid.json", []byte(`{"parallel_workers": -1}`), 0644)
	_ = mfs.WriteFile("/cfg/big.json", make([]byte, maxConfigFileSize+1), 0644)
	_ = mfs.WriteFile("/cfg/cfg.yaml", []byte(`{}`), 0644)

	tests := []struct {
		path    string
		wantErr string
	}{
		{"/cfg/cfg.yaml", ".json extension"},
		{"/cfg/missing.json", "failed to stat"},
		{"/cfg/big.json", "too large"},
		{"/cfg/bad.json", "failed to parse"},
		{"/cfg/invalid.json", "parallel_workers must be non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := LoadDecoderConfigFS(mfs, tt.path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DecoderConfig
		wantErr bool
	}{
		{"empty", DecoderConfig{}, false},
		{"negative max bytes", DecoderConfig{MaxFileBytes: ptrInt64(-1)}, true},
		{"zero max bytes means unlimited", DecoderConfig{MaxFileBytes: ptrInt64(0)}, false},
		{"blank db path", DecoderConfig{DBPath: ptrString("  ")}, true},
		{"zero baud", DecoderConfig{Serial: &SerialConfig{BaudRate: ptrInt(0)}}, true},
		{"nine data bits", DecoderConfig{Serial: &SerialConfig{DataBits: ptrInt(9)}}, true},
		{"seven data bits", DecoderConfig{Serial: &SerialConfig{DataBits: ptrInt(7)}}, false},
		{"three stop bits", DecoderConfig{Serial: &SerialConfig{StopBits: ptrInt(3)}}, true},
		{"mark parity", DecoderConfig{Serial: &SerialConfig{Parity: ptrString("M")}}, true},
		{"odd parity long form", DecoderConfig{Serial: &SerialConfig{Parity: ptrString("odd")}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
