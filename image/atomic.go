package image

import (
	"path/filepath"

	"github.com/elos-os/bootimg/imgerr"
	"github.com/spf13/afero"
)

// WriteFileAtomic writes data to a temporary sibling of path and renames
// it into place, so path never holds a partial image
func WriteFileAtomic(fs afero.Fs, path string, data []byte) error {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return imgerr.IO("mkdir", dir, err)
	}

	tmp, err := afero.TempFile(fs, dir, "."+name+".tmp-")
	if err != nil {
		return imgerr.IO("create", path, err)
	}
	tmpName := tmp.Name()
	fail := func(op string, err error) error {
		tmp.Close()
		fs.Remove(tmpName)
		return imgerr.IO(op, path, err)
	}

	if _, err := tmp.Write(data); err != nil {
		return fail("write", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := tmp.Close(); err != nil {
		return fail("close", err)
	}
	if err := fs.Chmod(tmpName, 0644); err != nil {
		return fail("chmod", err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		fs.Remove(tmpName)
		return imgerr.IO("rename", path, err)
	}
	return nil
}
