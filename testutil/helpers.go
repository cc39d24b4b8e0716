package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CreateTempDir creates a temporary directory for testing
func CreateTempDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// WriteTempFile writes content to name inside a fresh temp dir and returns the path
func WriteTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// Text returns a string of exactly n characters, ending in a period.
func Text(n int) string {
	if n <= 0 {
		return ""
	}
	const seed = "The tenant shall give thirty days written notice before vacating the premises. "
	s := strings.Repeat(seed, n/len(seed)+1)[:n-1]
	return s + "."
}
