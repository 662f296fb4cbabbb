package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidateFilePath rejects paths with directory traversal components.
// Config and database paths come from operator input, not users, so
// absolute paths are fine; the check stops a bad unit file from walking
// out of its intended directory with "..".
func ValidateFilePath(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal: %s", path)
	}

	return nil
}

// ValidateFilePathWithBase validates a relative path against a base
// directory, ensuring the resolved location stays inside it.
func ValidateFilePathWithBase(path, baseDir string) error {
	if err := ValidateFilePath(path); err != nil {
		return err
	}
	if filepath.IsAbs(path) {
		return fmt.Errorf("absolute paths not allowed under a base directory: %s", path)
	}

	cleanPath := filepath.Clean(filepath.Join(baseDir, path))
	cleanBase := filepath.Clean(baseDir)
	if !strings.HasPrefix(cleanPath, cleanBase) {
		return fmt.Errorf("path escapes base directory: %s", path)
	}

	return nil
}
