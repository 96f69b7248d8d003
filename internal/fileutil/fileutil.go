// Package fileutil writes pipeline artifacts without leaving truncated files
// behind when a write fails halfway.
package fileutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic writes data to a temporary sibling of path and renames it into place.
func WriteAtomic(path string, data []byte, mode os.FileMode) error {
	_, err := CopyAtomic(path, bytes.NewReader(data), mode, 0)
	return err
}

// CopyAtomic streams r into path via a temporary sibling. When minBytes is
// positive, shorter payloads are rejected and nothing is written.
func CopyAtomic(path string, r io.Reader, mode os.FileMode, minBytes int64) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	written, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		cleanup()
		return written, fmt.Errorf("write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return written, fmt.Errorf("close %q: %w", path, err)
	}
	if minBytes > 0 && written < minBytes {
		cleanup()
		return written, fmt.Errorf("payload too small: %d bytes (minimum %d)", written, minBytes)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return written, fmt.Errorf("chmod %q: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return written, fmt.Errorf("rename into %q: %w", path, err)
	}
	return written, nil
}
