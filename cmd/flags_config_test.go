package cmd_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/elos-os/bootimg/cmd"
	"github.com/elos-os/bootimg/types"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfigFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("test", 0)
	cmd.PersistConfigCommandFlags(flagSet)
	return flagSet
}

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))
	return file
}

func TestConfigFlagsMergeToConfig(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		file := writeConfigFile(t, "bootimg.json", `{"Output": "esp.img", "Format": "fat", "FAT": {"Label": "ELOS"}}`)

		flagSet := newConfigFlagSet()
		flagSet.Set("config", " "+file+" ")
		configFlags := cmd.NewConfigCommandFlags(flagSet)
		assert.Equal(t, file, configFlags.Config)

		c := types.NewConfig()
		require.NoError(t, configFlags.MergeToConfig(c))
		assert.Equal(t, "esp.img", c.Output)
		assert.Equal(t, types.FormatFAT, c.Format)
		assert.Equal(t, "ELOS", c.FAT.Label)
		assert.Equal(t, 1.25, c.FAT.SafetyFactor)
	})

	t.Run("yaml", func(t *testing.T) {
		file := writeConfigFile(t, "bootimg.yaml", "output: boot.img\nmanifest:\n  - source: build/BOOTX64.EFI\n    dest: EFI/BOOT/BOOTX64.EFI\n")

		flagSet := newConfigFlagSet()
		flagSet.Set("config", file)

		c := types.NewConfig()
		require.NoError(t, cmd.NewConfigCommandFlags(flagSet).MergeToConfig(c))
		assert.Equal(t, "boot.img", c.Output)
		assert.Equal(t, []types.ManifestEntry{{Source: "build/BOOTX64.EFI", Dest: "EFI/BOOT/BOOTX64.EFI"}}, c.Manifest)
	})

	t.Run("missing file", func(t *testing.T) {
		flagSet := newConfigFlagSet()
		flagSet.Set("config", filepath.Join(t.TempDir(), "nope.json"))

		err := cmd.NewConfigCommandFlags(flagSet).MergeToConfig(types.NewConfig())
		assert.Error(t, err)
	})

	t.Run("default file from environment", func(t *testing.T) {
		file := writeConfigFile(t, "default.json", `{"Output": "default.img"}`)
		t.Setenv(types.DefaultConfigEnv, file)

		c := types.NewConfig()
		require.NoError(t, cmd.NewConfigCommandFlags(newConfigFlagSet()).MergeToConfig(c))
		assert.Equal(t, "default.img", c.Output)
	})

	t.Run("no default file", func(t *testing.T) {
		t.Setenv(types.DefaultConfigEnv, "")
		t.Setenv("HOME", t.TempDir())

		c := types.NewConfig()
		require.NoError(t, cmd.NewConfigCommandFlags(newConfigFlagSet()).MergeToConfig(c))
		assert.Equal(t, types.NewConfig(), c)
	})
}
