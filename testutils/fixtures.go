package testutils

import (
	"path/filepath"

	"github.com/elos-os/bootimg/log"
	"github.com/elos-os/bootimg/types"
	"github.com/spf13/afero"
)

// NewSourceTree returns an in-memory filesystem holding files
func NewSourceTree(files map[string][]byte) afero.Fs {
	fs := afero.NewMemMapFs()
	for p, data := range files {
		if err := fs.MkdirAll(filepath.Dir(p), 0755); err != nil {
			log.Panic("source tree: %v", err)
		}
		if err := afero.WriteFile(fs, p, data, 0644); err != nil {
			log.Panic("source tree: %v", err)
		}
	}
	return fs
}

// NewMockConfig returns a config producing a gpt image at output from
// the given manifest
func NewMockConfig(output string, manifest ...types.ManifestEntry) *types.Config {
	c := types.NewConfig()
	c.Output = output
	c.Manifest = manifest
	c.Timestamp = "1700000000"
	return c
}
