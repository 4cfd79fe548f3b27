package usecase

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// scratchDir makes a per-invocation working directory under tempDir. Every
// exit path must remove it; handlers do so with a deferred RemoveAll.
func scratchDir(tempDir string) (string, error) {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp root: %w", err)
	}
	dir, err := os.MkdirTemp(tempDir, "job-")
	if err != nil {
		return "", fmt.Errorf("create workdir: %w", err)
	}
	return dir, nil
}

// scratchFile returns a unique file path inside dir with the given extension
// (including the dot).
func scratchFile(dir, ext string) string {
	return filepath.Join(dir, uuid.NewString()+ext)
}
