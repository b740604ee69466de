package cmd_test

import (
	"testing"

	"github.com/elos-os/bootimg/cmd"
	"github.com/elos-os/bootimg/types"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuildFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("test", 0)
	cmd.PersistBuildCommandFlags(flagSet)
	return flagSet
}

func TestCreateBuildFlags(t *testing.T) {
	flagSet := newBuildFlagSet()

	flagSet.Set("file", "build/BOOTX64.EFI:EFI/BOOT/BOOTX64.EFI")
	flagSet.Set("file", "res/*.psf:RES")
	flagSet.Set("format", "ISO")
	flagSet.Set("output", "boot.iso")
	flagSet.Set("safety-factor", "1.5")
	flagSet.Set("overhead", "128")

	buildFlags := cmd.NewBuildCommandFlags(flagSet)

	assert.Equal(t, []string{"build/BOOTX64.EFI:EFI/BOOT/BOOTX64.EFI", "res/*.psf:RES"}, buildFlags.Files)
	assert.Equal(t, "ISO", buildFlags.Format)
	assert.Equal(t, "boot.iso", buildFlags.Output)
	assert.Equal(t, 1.5, buildFlags.SafetyFactor)
	assert.Equal(t, uint64(128), buildFlags.Overhead)
}

func TestBuildFlagsMergeToConfig(t *testing.T) {
	flagSet := newBuildFlagSet()

	flagSet.Set("file", "build/BOOTX64.EFI:EFI/BOOT/BOOTX64.EFI")
	flagSet.Set("file", "  ")
	flagSet.Set("file", "kernel.elf")
	flagSet.Set("format", "FAT")
	flagSet.Set("output", "esp.img")
	flagSet.Set("min-size", "4200k")
	flagSet.Set("fat-type", "16")
	flagSet.Set("label", "ELOS")
	flagSet.Set("partition-start", "2048")
	flagSet.Set("staging", "/tmp/stage")
	flagSet.Set("timestamp", "2024-01-02T03:04:05Z")

	c := types.NewConfig()
	c.Manifest = []types.ManifestEntry{{Source: "cfg.txt", Dest: "CFG.TXT"}}

	err := cmd.NewBuildCommandFlags(flagSet).MergeToConfig(c)
	require.NoError(t, err)

	expected := types.NewConfig()
	expected.Manifest = []types.ManifestEntry{
		{Source: "cfg.txt", Dest: "CFG.TXT"},
		{Source: "build/BOOTX64.EFI", Dest: "EFI/BOOT/BOOTX64.EFI"},
		{Source: "kernel.elf", Dest: "kernel.elf"},
	}
	expected.Format = types.FormatFAT
	expected.Output = "esp.img"
	expected.FAT.MinSize = "4200k"
	expected.FAT.Type = 16
	expected.FAT.Label = "ELOS"
	expected.GPT.PartitionStart = 2048
	expected.StagingDir = "/tmp/stage"
	expected.Timestamp = "2024-01-02T03:04:05Z"

	assert.Equal(t, expected, c)
}

func TestBuildFlagsKeepConfiguredValues(t *testing.T) {
	c := types.NewConfig()
	c.FAT.SafetyFactor = 2
	c.GPT.OverheadSectors = 100

	err := cmd.NewBuildCommandFlags(newBuildFlagSet()).MergeToConfig(c)
	require.NoError(t, err)

	assert.Equal(t, 2.0, c.FAT.SafetyFactor)
	assert.Equal(t, uint64(100), c.GPT.OverheadSectors)
	assert.Equal(t, types.FormatGPT, c.Format)
}

func TestBuildFlagsFileSpecs(t *testing.T) {
	tests := []struct {
		spec      string
		recursive bool
		entry     types.ManifestEntry
		err       bool
	}{
		{spec: "a.efi:EFI/BOOT/BOOTX64.EFI", entry: types.ManifestEntry{Source: "a.efi", Dest: "EFI/BOOT/BOOTX64.EFI"}},
		{spec: "dir/a.efi", entry: types.ManifestEntry{Source: "dir/a.efi", Dest: "a.efi"}},
		{spec: `C:\build\a.efi:A.EFI`, entry: types.ManifestEntry{Source: `C:\build\a.efi`, Dest: "A.EFI"}},
		{spec: "res/*.psf:RES", recursive: true, entry: types.ManifestEntry{Source: "res/*.psf", Dest: "RES", Recursive: true}},
		{spec: "res/*.psf", err: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			flagSet := newBuildFlagSet()
			flagSet.Set("file", tt.spec)
			if tt.recursive {
				flagSet.Set("recursive", "true")
			}

			c := &types.Config{}
			err := cmd.NewBuildCommandFlags(flagSet).MergeToConfig(c)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, c.Manifest, 1)
			assert.Equal(t, tt.entry, c.Manifest[0])
		})
	}
}
