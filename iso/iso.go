// Package iso authors ISO9660 images with an El Torito EFI boot entry.
package iso

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/filesystem/iso9660"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/elos-os/bootimg/imgerr"
)

const (
	// BlockSize is the ISO9660 logical block size
	BlockSize = 2048

	// DefaultBootImage is where the FAT volume is placed inside the ISO
	DefaultBootImage = "/EFIBOOT.IMG"
	// DefaultBootCatalog is the path of the El Torito boot catalog
	DefaultBootCatalog = "/BOOT.CAT"
	// DefaultVolumeID labels the ISO volume
	DefaultVolumeID = "BOOTIMG"

	// slack for volume descriptors, path tables and the boot catalog
	metadataReserve = 1024 * 1024

	// MaxLoadSectors is the largest sector count a boot catalog entry holds.
	// Larger boot images are recorded with this count; UEFI firmware reads
	// the whole FAT volume from its own BPB.
	MaxLoadSectors = 0xFFFF
)

// LoadSectors returns the 512 byte sector count recorded in the boot
// catalog for a boot image of size bytes
func LoadSectors(size int64) uint16 {
	n := (size + 511) / 512
	if n > MaxLoadSectors {
		return MaxLoadSectors
	}
	return uint16(n)
}

// Options names the pieces of the optical image
type Options struct {
	VolumeID    string
	BootImage   string
	BootCatalog string
}

func (o Options) withDefaults() Options {
	if o.VolumeID == "" {
		o.VolumeID = DefaultVolumeID
	}
	if o.BootImage == "" {
		o.BootImage = DefaultBootImage
	}
	if o.BootCatalog == "" {
		o.BootCatalog = DefaultBootCatalog
	}
	return o
}

// BootImagePath is the staging-relative path the FAT volume must be
// written to before calling Pack
func (o Options) BootImagePath() string {
	return strings.TrimPrefix(o.withDefaults().BootImage, "/")
}

type stagedFile struct {
	src  string
	dest string
	size int64
}

// Pack authors an ISO image from the tree below stagingDir on src. The
// tree must already hold the FAT volume at Options.BootImage, which
// becomes the no-emulation EFI boot entry. The image bytes are returned.
func Pack(src afero.Fs, stagingDir string, opts Options) ([]byte, error) {
	opts = opts.withDefaults()

	bootImage := filepath.Join(stagingDir, filepath.FromSlash(opts.BootImagePath()))
	if ok, err := afero.Exists(src, bootImage); err != nil || !ok {
		return nil, imgerr.Resolutionf(bootImage, "boot image missing from staging tree")
	}

	dirs, files, err := scan(src, stagingDir)
	if err != nil {
		return nil, err
	}

	size := int64(metadataReserve)
	var bootSize int64
	for _, f := range files {
		if f.dest == "/"+opts.BootImagePath() {
			bootSize = f.size
		}
		size += (f.size + BlockSize - 1) / BlockSize * BlockSize
	}
	size += int64(len(dirs)+len(files)) * BlockSize

	tmp, err := os.MkdirTemp("", "bootimg-iso")
	if err != nil {
		return nil, imgerr.IO("mkdir", os.TempDir(), err)
	}
	defer os.RemoveAll(tmp)
	out := filepath.Join(tmp, "image.iso")

	if err := author(src, out, size, dirs, files, opts, LoadSectors(bootSize)); err != nil {
		return nil, imgerr.IO("iso", out, err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, imgerr.IO("read", out, err)
	}
	return data, nil
}

func scan(src afero.Fs, stagingDir string) ([]string, []stagedFile, error) {
	var dirs []string
	var files []stagedFile
	err := afero.Walk(src, stagingDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(stagingDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		dest := path.Join("/", filepath.ToSlash(rel))
		if info.IsDir() {
			dirs = append(dirs, dest)
			return nil
		}
		files = append(files, stagedFile{src: p, dest: dest, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, nil, imgerr.IO("walk", stagingDir, err)
	}
	return dirs, files, nil
}

func author(src afero.Fs, out string, size int64, dirs []string, files []stagedFile, opts Options, loadSectors uint16) error {
	d, err := diskfs.Create(out, size, diskfs.SectorSizeDefault)
	if err != nil {
		return errors.Wrap(err, "create disk")
	}
	defer d.Close()
	d.LogicalBlocksize = BlockSize

	fs, err := d.CreateFilesystem(disk.FilesystemSpec{
		Partition: 0,
		FSType:    filesystem.TypeISO9660,
	})
	if err != nil {
		return errors.Wrap(err, "create iso9660 filesystem")
	}

	for _, dir := range dirs {
		if err := fs.Mkdir(dir); err != nil {
			return errors.Wrapf(err, "mkdir %s", dir)
		}
	}
	for _, f := range files {
		if err := copyInto(src, fs, f); err != nil {
			return err
		}
	}

	iso, ok := fs.(*iso9660.FileSystem)
	if !ok {
		return errors.New("not an iso9660 filesystem")
	}
	err = iso.Finalize(iso9660.FinalizeOptions{
		VolumeIdentifier: opts.VolumeID,
		ElTorito: &iso9660.ElTorito{
			BootCatalog: opts.BootCatalog,
			Platform:    iso9660.EFI,
			Entries: []*iso9660.ElToritoEntry{
				{
					Platform:  iso9660.EFI,
					Emulation: iso9660.NoEmulation,
					BootFile:  opts.BootImage,
					LoadSize:  loadSectors,
				},
			},
		},
	})
	return errors.Wrap(err, "finalize iso")
}

func copyInto(src afero.Fs, fs filesystem.FileSystem, f stagedFile) error {
	in, err := src.Open(f.src)
	if err != nil {
		return errors.Wrapf(err, "open %s", f.src)
	}
	defer in.Close()

	rw, err := fs.OpenFile(f.dest, os.O_CREATE|os.O_RDWR)
	if err != nil {
		return errors.Wrapf(err, "create %s", f.dest)
	}
	if _, err := io.Copy(rw, in); err != nil {
		rw.Close()
		return errors.Wrapf(err, "write %s", f.dest)
	}
	return errors.Wrapf(rw.Close(), "close %s", f.dest)
}
