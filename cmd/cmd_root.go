package cmd

import (
	"github.com/elos-os/bootimg/constants"
	"github.com/elos-os/bootimg/log"
	"github.com/elos-os/bootimg/printer"
	"github.com/elos-os/bootimg/types"
	"github.com/spf13/cobra"
)

// GetRootCommand provides set all commands for bootimg
func GetRootCommand() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:           constants.ProgramName,
		Short:         "Build bootable FAT, GPT and ISO images",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config, err := runtimeConfig(cmd)
			if err != nil {
				return err
			}

			log.InitDefault(cmd.ErrOrStderr(), config)
			printer.SetOutput(cmd.OutOrStdout())
			printer.SetPlain(config.RunConfig.JSON)
			return nil
		},
	}

	// persist flags transversal to every command
	PersistGlobalCommandFlags(rootCmd.PersistentFlags())
	PersistConfigCommandFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(BuildCommand())
	rootCmd.AddCommand(FatCommands())
	rootCmd.AddCommand(GptCommands())
	rootCmd.AddCommand(InspectCommand())
	rootCmd.AddCommand(VersionCommand())

	return rootCmd
}

// Execute runs the root command and exits with a status describing the
// failure kind
func Execute() {
	if err := GetRootCommand().Execute(); err != nil {
		exitWithError(err)
	}
}

// runtimeConfig merges the config file and the global flags
func runtimeConfig(cmd *cobra.Command) (*types.Config, error) {
	flags := cmd.Flags()
	c := types.NewConfig()
	container := NewMergeConfigContainer(NewConfigCommandFlags(flags), NewGlobalCommandFlags(flags))
	if err := container.Merge(c); err != nil {
		return nil, err
	}
	return c, nil
}
