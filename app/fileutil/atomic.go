package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TempSuffix marks files that were written but not yet renamed into place.
const TempSuffix = ".tmp"

// rename is swapped out in tests to simulate a crash between write and rename.
var rename = os.Rename

// WriteAtomic writes data to a temporary file next to path and renames it into
// place, so readers observe either the previous content or the new one.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*"+TempSuffix)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move %s into place: %w", filepath.Base(path), err)
	}

	return nil
}

// IsTempFile reports whether name was produced by WriteAtomic and never renamed.
func IsTempFile(name string) bool {
	return strings.HasSuffix(name, TempSuffix)
}
