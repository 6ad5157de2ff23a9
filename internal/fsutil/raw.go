package fsutil

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrEmptyFile is returned for a zero-length raw file. It is the only
	// input condition the decode tools treat as fatal.
	ErrEmptyFile = errors.New("raw file is empty")

	ErrFileTooLarge = errors.New("raw file exceeds size limit")
)

// LoadRaw reads the whole raw instrument file at path into memory.
// maxBytes <= 0 disables the size limit.
func LoadRaw(fsys FileSystem, path string, maxBytes int64) ([]byte, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat raw file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("raw file %s is a directory", path)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, fmt.Errorf("%s: %w: %d bytes (max %d)", path, ErrFileTooLarge, info.Size(), maxBytes)
	}

	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open raw file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if maxBytes > 0 {
		// The file may grow between Stat and Read while a capture is running.
		r = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw file: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%s: %w: more than %d bytes", path, ErrFileTooLarge, maxBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	return data, nil
}
