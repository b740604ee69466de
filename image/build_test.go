package image

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elos-os/bootimg/fat"
	"github.com/elos-os/bootimg/gpt"
	"github.com/elos-os/bootimg/imgerr"
	"github.com/elos-os/bootimg/iso"
	"github.com/elos-os/bootimg/manifest"
	"github.com/elos-os/bootimg/testutils"
	"github.com/elos-os/bootimg/types"
)

var (
	bootEFI = testutils.BootExecutable(100 * 1024)
	stdFont = testutils.Font(4 * 1024)
)

func newSources() afero.Fs {
	return testutils.NewSourceTree(map[string][]byte{
		"/src/build/BOOTX64.EFI":   bootEFI,
		"/src/res/STDFONT.PSF":     stdFont,
		"/src/res/icons/DISK.BMP":  []byte("BM disk"),
		"/src/res/icons/FLOPY.BMP": []byte("BM floppy"),
	})
}

func bootConfig(output string) *types.Config {
	c := testutils.NewMockConfig(output,
		types.ManifestEntry{Source: "/src/build/BOOTX64.EFI", Dest: "EFI/BOOT/BOOTX64.EFI"},
		types.ManifestEntry{Source: "/src/res/STDFONT.PSF", Dest: "EFI/BOOT/STDFONT.PSF"},
	)
	c.FAT.MinSize = "4200k"
	return c
}

func partitionVolume(t *testing.T, disk []byte) *fat.Volume {
	t.Helper()
	table, err := gpt.Read(disk)
	require.NoError(t, err)
	require.Len(t, table.Partitions, 1)
	p := table.Partitions[0]
	v, err := fat.Open(disk[p.Start*gpt.SectorSize : (p.End+1)*gpt.SectorSize])
	require.NoError(t, err)
	return v
}

func TestBuildGPT(t *testing.T) {
	fs := newSources()
	a, err := Build(bootConfig("/out/boot.img"), fs)
	require.NoError(t, err)

	assert.Equal(t, KindGPT, a.Kind)
	assert.Equal(t, 2, a.Entries)
	assert.Equal(t, int64(len(bootEFI)+len(stdFont)), a.ContentSize)
	assert.Equal(t, int64(fat.LegacyMinSize), a.VolumeSize)
	assert.Equal(t, gpt.DiskSize(a.VolumeSize, gpt.DefaultOverheadSectors), a.DiskSize)
	require.NotNil(t, a.Partition)
	assert.Equal(t, uint64(gpt.DefaultPartitionStart), a.Partition.Start)
	assert.Equal(t, gpt.EFISystemPartition, a.Partition.Type)

	disk, err := afero.ReadFile(fs, "/out/boot.img")
	require.NoError(t, err)
	assert.Equal(t, a.DiskSize, int64(len(disk)))
	require.NoError(t, gpt.Verify(disk))

	v := partitionVolume(t, disk)
	got, err := v.ReadFile("EFI/BOOT/BOOTX64.EFI")
	require.NoError(t, err)
	assert.Equal(t, bootEFI, got)
	got, err = v.ReadFile("EFI/BOOT/STDFONT.PSF")
	require.NoError(t, err)
	assert.Equal(t, stdFont, got)

	// the volume knows the partition it lives in
	assert.Equal(t, uint32(gpt.DefaultPartitionStart), binary.LittleEndian.Uint32(v.Bytes()[28:]))
}

func TestBuildIsIdempotent(t *testing.T) {
	fs := newSources()
	for _, format := range []string{types.FormatGPT, types.FormatFAT} {
		t.Run(format, func(t *testing.T) {
			c := bootConfig("/out/first.img")
			c.Format = format
			_, err := Build(c, fs)
			require.NoError(t, err)

			c.Output = "/out/second.img"
			_, err = Build(c, fs)
			require.NoError(t, err)

			first, err := afero.ReadFile(fs, "/out/first.img")
			require.NoError(t, err)
			second, err := afero.ReadFile(fs, "/out/second.img")
			require.NoError(t, err)
			assert.True(t, bytes.Equal(first, second))
		})
	}
}

func TestBuildMissingSource(t *testing.T) {
	fs := newSources()
	c := bootConfig("/out/boot.img")
	c.Manifest = append(c.Manifest, types.ManifestEntry{Source: "/src/build/KERNEL.ELF", Dest: "KERNEL.ELF"})

	a, err := Build(c, fs)
	assert.Nil(t, a)
	assert.Equal(t, imgerr.KindResolution, imgerr.KindOf(err))
	assert.Equal(t, 2, imgerr.ExitCode(err))

	exists, err := afero.Exists(fs, "/out/boot.img")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = afero.DirExists(fs, "/out")
	require.NoError(t, err)
	assert.False(t, exists, "nothing is created before resolution succeeds")
}

func TestBuildEmptyManifest(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := testutils.NewMockConfig("/out/empty.img")
	c.Format = types.FormatFAT

	a, err := Build(c, fs)
	require.NoError(t, err)
	assert.Equal(t, int64(fat.DefaultMinSize), a.VolumeSize)
	assert.Zero(t, a.ContentSize)

	img, err := afero.ReadFile(fs, "/out/empty.img")
	require.NoError(t, err)
	v, err := fat.Open(img)
	require.NoError(t, err)
	list, err := v.ReadDir("")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestBuildGlobAndProgress(t *testing.T) {
	fs := newSources()
	c := bootConfig("/out/boot.img")
	c.Manifest = append(c.Manifest, types.ManifestEntry{Source: "/src/res/*.BMP", Dest: "EFI/ICONS", Recursive: true})
	c.StagingDir = "/staging"

	var seen []string
	a, err := Build(c, fs, WithProgress(func(e manifest.Entry) {
		seen = append(seen, e.Dest)
	}))
	require.NoError(t, err)
	assert.Equal(t, 4, a.Entries)
	assert.Equal(t, []string{
		"EFI/BOOT/BOOTX64.EFI", "EFI/BOOT/STDFONT.PSF", "EFI/ICONS/DISK.BMP", "EFI/ICONS/FLOPY.BMP",
	}, seen)

	ok, err := afero.DirExists(fs, "/staging/EFI/ICONS")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuildRejectsBadConfig(t *testing.T) {
	fs := newSources()

	c := bootConfig("/out/boot.img")
	c.Format = "vhd"
	_, err := Build(c, fs)
	assert.Error(t, err)

	c = bootConfig("")
	_, err = Build(c, fs)
	assert.Error(t, err)

	c = bootConfig("/out/boot.img")
	c.GPT.PartitionStart = 2048
	_, err = Build(c, fs)
	assert.Equal(t, imgerr.KindLayout, imgerr.KindOf(err))

	c = bootConfig("/out/boot.img")
	c.FAT.Type = 32
	c.FAT.MinSize = "34m"
	a, err := Build(c, fs)
	require.NoError(t, err)
	assert.Equal(t, fat.FAT32, a.FATType)
}

func TestBuildISO(t *testing.T) {
	fs := newSources()
	c := bootConfig("/out/boot.iso")
	c.Format = types.FormatISO
	c.ISO.VolumeID = "ELOS"

	a, err := Build(c, fs)
	require.NoError(t, err)
	assert.Equal(t, KindISO, a.Kind)

	data, err := afero.ReadFile(fs, "/out/boot.iso")
	require.NoError(t, err)
	assert.Equal(t, a.DiskSize, int64(len(data)))
	assert.Equal(t, "CD001", string(data[16*2048+1:16*2048+6]))
	assert.True(t, bytes.Contains(data, bootEFI))

	info, err := iso.Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, "ELOS", info.VolumeID)
	require.NotNil(t, info.Boot)
	assert.Equal(t, "efi", info.Boot.PlatformName())
	assert.Equal(t, uint16(4200*1024/512), info.Boot.Sectors)
}

func TestBuildISOClearsStagingDir(t *testing.T) {
	fs := newSources()
	stale := []byte("left behind by an earlier build")
	require.NoError(t, afero.WriteFile(fs, "/staging/STALE.TXT", stale, 0644))

	c := bootConfig("/out/boot.iso")
	c.Format = types.FormatISO
	c.StagingDir = "/staging"

	_, err := Build(c, fs)
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "/out/boot.iso")
	require.NoError(t, err)
	assert.False(t, bytes.Contains(data, stale))

	ok, err := afero.Exists(fs, "/staging/STALE.TXT")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = afero.Exists(fs, "/staging/EFI/BOOT/BOOTX64.EFI")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWriteFileAtomic(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, WriteFileAtomic(fs, "/out/a.img", []byte("one")))
	require.NoError(t, WriteFileAtomic(fs, "/out/a.img", []byte("two")))

	data, err := afero.ReadFile(fs, "/out/a.img")
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	infos, err := afero.ReadDir(fs, "/out")
	require.NoError(t, err)
	require.Len(t, infos, 1, "temporary files are renamed away")
	assert.Equal(t, os.FileMode(0644), infos[0].Mode().Perm())

	err = WriteFileAtomic(afero.NewReadOnlyFs(fs), "/out/b.img", []byte("x"))
	assert.Equal(t, imgerr.KindIO, imgerr.KindOf(err))
}
