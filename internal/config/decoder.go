package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/current.report/internal/fsutil"
)

// DefaultConfigPath is the path to the canonical decoder defaults file.
const DefaultConfigPath = "config/decoder.defaults.json"

const maxConfigFileSize = 1 * 1024 * 1024 // 1MB

// Defaults applied by the Get* accessors when a field is omitted.
const (
	DefaultMaxFileBytes    int64 = 256 * 1024 * 1024
	DefaultParallelWorkers       = 0 // sequential
	DefaultDBPath                = "current_report.db"
	DefaultBaudRate              = 9600
	DefaultDataBits              = 8
	DefaultStopBits              = 1
	DefaultParity                = "N"
)

// DecoderConfig is the root configuration for the decode and capture tools.
// Every field is optional; omitted fields fall back to the Get* defaults so
// partial configs are safe.
type DecoderConfig struct {
	// Byte source
	MaxFileBytes *int64 `json:"max_file_bytes,omitempty"`

	// Decoder behaviour
	ParallelWorkers *int  `json:"parallel_workers,omitempty"` // 0 decodes sequentially
	LogRecoveries   *bool `json:"log_recoveries,omitempty"`
	SkipUnsupported *bool `json:"skip_unsupported,omitempty"` // false treats status/aux sections as unknown

	// Diagnostics store
	DBPath *string `json:"db_path,omitempty"`

	// Serial capture
	Serial *SerialConfig `json:"serial,omitempty"`
}

// SerialConfig describes the instrument's serial line.
type SerialConfig struct {
	BaudRate *int    `json:"baud_rate,omitempty"`
	DataBits *int    `json:"data_bits,omitempty"`
	StopBits *int    `json:"stop_bits,omitempty"`
	Parity   *string `json:"parity,omitempty"` // N, E or O
}

func ptrInt(v int) *int          { return &v }
func ptrInt64(v int64) *int64    { return &v }
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }

// EmptyDecoderConfig returns a DecoderConfig with all fields nil.
func EmptyDecoderConfig() *DecoderConfig {
	return &DecoderConfig{}
}

// DefaultDecoderConfig returns a config with every field set to its default.
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		MaxFileBytes:    ptrInt64(DefaultMaxFileBytes),
		ParallelWorkers: ptrInt(DefaultParallelWorkers),
		LogRecoveries:   ptrBool(true),
		SkipUnsupported: ptrBool(true),
		DBPath:          ptrString(DefaultDBPath),
		Serial: &SerialConfig{
			BaudRate: ptrInt(DefaultBaudRate),
			DataBits: ptrInt(DefaultDataBits),
			StopBits: ptrInt(DefaultStopBits),
			Parity:   ptrString(DefaultParity),
		},
	}
}

// LoadDecoderConfig loads a DecoderConfig from a JSON file on disk.
func LoadDecoderConfig(path string) (*DecoderConfig, error) {
	return LoadDecoderConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadDecoderConfigFS loads a DecoderConfig through fsys. The file must have
// a .json extension and be at most 1MB.
func LoadDecoderConfigFS(fsys fsutil.FileSystem, path string) (*DecoderConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDecoderConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upwards from the
// working directory. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *DecoderConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadDecoderConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that every set field holds a usable value.
func (c *DecoderConfig) Validate() error {
	if c.MaxFileBytes != nil && *c.MaxFileBytes < 0 {
		return fmt.Errorf("max_file_bytes must be non-negative, got %d", *c.MaxFileBytes)
	}
	if c.ParallelWorkers != nil && *c.ParallelWorkers < 0 {
		return fmt.Errorf("parallel_workers must be non-negative, got %d", *c.ParallelWorkers)
	}
	if c.DBPath != nil && strings.TrimSpace(*c.DBPath) == "" {
		return fmt.Errorf("db_path must not be blank")
	}
	if s := c.Serial; s != nil {
		if s.BaudRate != nil && *s.BaudRate <= 0 {
			return fmt.Errorf("serial.baud_rate must be positive, got %d", *s.BaudRate)
		}
		if s.DataBits != nil && (*s.DataBits < 5 || *s.DataBits > 8) {
			return fmt.Errorf("serial.data_bits must be between 5 and 8, got %d", *s.DataBits)
		}
		if s.StopBits != nil && *s.StopBits != 1 && *s.StopBits != 2 {
			return fmt.Errorf("serial.stop_bits must be 1 or 2, got %d", *s.StopBits)
		}
		if s.Parity != nil {
			switch strings.ToUpper(*s.Parity) {
			case "N", "E", "O", "NONE", "EVEN", "ODD":
			default:
				return fmt.Errorf("serial.parity must be N, E or O, got %q", *s.Parity)
			}
		}
	}
	return nil
}

// GetMaxFileBytes returns the raw file size limit; 0 means unlimited.
func (c *DecoderConfig) GetMaxFileBytes() int64 {
	if c.MaxFileBytes == nil {
		return DefaultMaxFileBytes
	}
	return *c.MaxFileBytes
}

// GetParallelWorkers returns the worker count; 0 decodes sequentially.
func (c *DecoderConfig) GetParallelWorkers() int {
	if c.ParallelWorkers == nil {
		return DefaultParallelWorkers
	}
	return *c.ParallelWorkers
}

// GetLogRecoveries returns the log_recoveries value or the default.
func (c *DecoderConfig) GetLogRecoveries() bool {
	if c.LogRecoveries == nil {
		return true
	}
	return *c.LogRecoveries
}

// GetSkipUnsupported returns the skip_unsupported value or the default.
func (c *DecoderConfig) GetSkipUnsupported() bool {
	if c.SkipUnsupported == nil {
		return true
	}
	return *c.SkipUnsupported
}

// GetDBPath returns the db_path value or the default.
func (c *DecoderConfig) GetDBPath() string {
	if c.DBPath == nil {
		return DefaultDBPath
	}
	return *c.DBPath
}

func (c *DecoderConfig) GetBaudRate() int {
	if c.Serial == nil || c.Serial.BaudRate == nil {
		return DefaultBaudRate
	}
	return *c.Serial.BaudRate
}

func (c *DecoderConfig) GetDataBits() int {
	if c.Serial == nil || c.Serial.DataBits == nil {
		return DefaultDataBits
	}
	return *c.Serial.DataBits
}

func (c *DecoderConfig) GetStopBits() int {
	if c.Serial == nil || c.Serial.StopBits == nil {
		return DefaultStopBits
	}
	return *c.Serial.StopBits
}

func (c *DecoderConfig) GetParity() string {
	if c.Serial == nil || c.Serial.Parity == nil {
		return DefaultParity
	}
	return *c.Serial.Parity
}
