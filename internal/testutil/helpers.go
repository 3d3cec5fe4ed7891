package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"shiftcast/internal/common"
)

// TestHelper provides common test utilities
type TestHelper struct {
	t *testing.T
}

// NewTestHelper creates a new test helper
func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t}
}

// WriteFile writes content to a file in the given directory
func (h *TestHelper) WriteFile(dir, filename, content string) string {
	h.t.Helper()
	path := filepath.Join(dir, filename)

	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionSecure); err != nil {
		h.t.Fatalf("Failed to create directories: %v", err)
	}

	if err := os.WriteFile(path, []byte(content), common.FilePermissionSecure); err != nil {
		h.t.Fatalf("Failed to write file %s: %v", path, err)
	}

	return path
}

// MockEnv sets an environment variable for the duration of the test
func (h *TestHelper) MockEnv(key, value string) {
	h.t.Helper()
	h.t.Setenv(key, value)
}

// IsolateHome points HOME at a fresh temporary directory and returns it
func (h *TestHelper) IsolateHome() string {
	h.t.Helper()
	dir := h.t.TempDir()
	h.t.Setenv("HOME", dir)
	return dir
}
