package cmd_test

import (
	"testing"

	"github.com/elos-os/bootimg/cmd"
	"github.com/elos-os/bootimg/types"
	"github.com/stretchr/testify/assert"
)

func TestMergeMultipleFlags(t *testing.T) {
	buildFlagSet := newBuildFlagSet()
	buildFlagSet.Set("output", "flag.img")
	buildFlags := cmd.NewBuildCommandFlags(buildFlagSet)

	configFile := writeConfigFile(t, "bootimg.json", `{"Output": "config.img"}`)
	configFlagSet := newConfigFlagSet()
	configFlagSet.Set("config", configFile)
	configFlags := cmd.NewConfigCommandFlags(configFlagSet)

	t.Run("if config flags are placed before the build flags output is overridden by the flag", func(t *testing.T) {
		container := cmd.NewMergeConfigContainer(configFlags, buildFlags)

		config := &types.Config{}

		err := container.Merge(config)

		assert.Nil(t, err)
		assert.Equal(t, "flag.img", config.Output)
	})

	t.Run("if build flags are placed before the config flags output comes from the file", func(t *testing.T) {
		container := cmd.NewMergeConfigContainer(buildFlags, configFlags)

		config := &types.Config{}

		err := container.Merge(config)

		assert.Nil(t, err)
		assert.Equal(t, "config.img", config.Output)
	})
}
