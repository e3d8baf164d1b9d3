package audio

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

var cleanupLogger = log.New(log.Writer(), "[CLEANUP] ", log.LstdFlags)

// CleanupTempFiles removes files in dir that match the given name prefix
// and extension, returning how many were removed. Subdirectories are left
// alone. A missing dir is not an error; there is nothing to clean.
func CleanupTempFiles(dir, prefix, ext string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		if ext != "" && !strings.HasSuffix(name, ext) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			cleanupLogger.Printf("failed to remove %s: %v", name, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		cleanupLogger.Printf("removed %d file(s) from %s", removed, dir)
	}
	return removed, nil
}

// RemoveWorkDir deletes a per-run working directory and everything in it.
func RemoveWorkDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	return nil
}
