package image

import (
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/elos-os/bootimg/fat"
	"github.com/elos-os/bootimg/gpt"
	"github.com/elos-os/bootimg/imgerr"
	"github.com/elos-os/bootimg/log"
)

// FatInit writes an empty FAT volume of size bytes to path, replacing any
// previous content
func FatInit(fs afero.Fs, path string, size int64, opts fat.Options) error {
	v, err := fat.Format(size, opts)
	if err != nil {
		return err
	}
	log.Info("%s: %s volume, %d bytes", path, v.Type(), v.Size())
	return WriteFileAtomic(fs, path, v.Bytes())
}

// FatCopyFile copies the host file source into the FAT volume at path as
// dest, creating parent directories
func FatCopyFile(fs afero.Fs, path, source, dest string, modTime time.Time) error {
	img, err := afero.ReadFile(fs, path)
	if err != nil {
		return imgerr.IO("read", path, err)
	}
	v, err := fat.Open(img)
	if err != nil {
		return err
	}
	if !modTime.IsZero() {
		v.SetModTime(modTime)
	}

	data, err := afero.ReadFile(fs, source)
	if os.IsNotExist(err) {
		return imgerr.Resolutionf(source, "source file does not exist")
	}
	if err != nil {
		return imgerr.IO("read", source, err)
	}
	if err := v.WriteFile(dest, data); err != nil {
		return err
	}
	log.Debug("copy %s -> %s:%s", source, path, dest)
	return WriteFileAtomic(fs, path, v.Bytes())
}

// GptInit writes a blank GPT disk of size bytes to path. A nil diskGUID
// is derived from the path and size.
func GptInit(fs afero.Fs, path string, size int64, diskGUID uuid.UUID) error {
	if diskGUID == uuid.Nil {
		diskGUID = gpt.DeriveGUID("disk", []byte(path+":"+strconv.FormatInt(size, 10)))
	}
	d, err := gpt.Init(size, diskGUID)
	if err != nil {
		return err
	}
	log.Info("%s: disk GUID %s, usable LBA %d-%d", path, diskGUID, d.FirstUsableLBA(), d.LastUsableLBA())
	return WriteFileAtomic(fs, path, d.Bytes())
}

// GptPartitionInitFromFile creates EFI system partition index on the disk
// at path, spanning LBAs start to end inclusive, and copies the image at
// source into it
func GptPartitionInitFromFile(fs afero.Fs, path string, index int, start, end uint64, source string) error {
	img, err := afero.ReadFile(fs, path)
	if err != nil {
		return imgerr.IO("read", path, err)
	}
	d, err := gpt.Open(img)
	if err != nil {
		return err
	}

	data, err := afero.ReadFile(fs, source)
	if os.IsNotExist(err) {
		return imgerr.Resolutionf(source, "source image does not exist")
	}
	if err != nil {
		return imgerr.IO("read", source, err)
	}

	p := gpt.Partition{
		Type:  gpt.EFISystemPartition,
		GUID:  gpt.DeriveGUID("partition", data),
		Start: start,
		End:   end,
		Name:  "EFI System",
	}
	if end >= start && int64(len(data)) > p.Size() {
		return &imgerr.CapacityError{Path: source, Required: int64(len(data)), Available: p.Size()}
	}
	if prev, ok := d.Partition(index); ok {
		log.Warn("%s: replacing partition %d (LBA %d-%d)", path, index, prev.Start, prev.End)
	}
	if err := d.AddPartition(index, p); err != nil {
		return err
	}
	if err := d.WritePartition(index, data); err != nil {
		return err
	}
	return WriteFileAtomic(fs, path, d.Bytes())
}
