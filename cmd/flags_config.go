package cmd

import (
	"strings"

	"github.com/elos-os/bootimg/types"
	"github.com/spf13/pflag"
)

// ConfigCommandFlags handles config file path flag and build configuration from the file
type ConfigCommandFlags struct {
	Config string
}

// MergeToConfig reads a json or yaml configuration file. Without --config
// the default file from the environment or the home directory is used
// when one exists.
func (flags *ConfigCommandFlags) MergeToConfig(c *types.Config) error {
	file := flags.Config
	if file == "" {
		file = types.DefaultConfigFile()
	}
	if file == "" {
		return nil
	}
	return types.LoadConfigFile(file, c)
}

// NewConfigCommandFlags returns an instance of ConfigCommandFlags
func NewConfigCommandFlags(cmdFlags *pflag.FlagSet) (flags *ConfigCommandFlags) {
	flags = &ConfigCommandFlags{}

	flags.Config, _ = cmdFlags.GetString("config")
	flags.Config = strings.TrimSpace(flags.Config)

	return
}

// PersistConfigCommandFlags append a command the config file flag
func PersistConfigCommandFlags(cmdFlags *pflag.FlagSet) {
	cmdFlags.StringP("config", "c", "", "bootimg config file, json or yaml")
}
