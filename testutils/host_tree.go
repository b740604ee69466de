package testutils

import (
	"os"
	"path/filepath"
	"testing"
)

// NewHostTree writes files below a fresh temporary directory and returns
// its path. Keys are slash separated paths relative to that directory.
func NewHostTree(t testing.TB, files map[string][]byte) string {
	t.Helper()
	dir := t.TempDir()
	for p, data := range files {
		full := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}
