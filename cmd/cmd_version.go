package cmd

import (
	"runtime"

	"github.com/elos-os/bootimg/constants"
	"github.com/elos-os/bootimg/printer"
	"github.com/spf13/cobra"
)

// Version is set at link time
var Version = "0.0.0-dev"

// VersionCommand provides version command
func VersionCommand() *cobra.Command {
	var cmdVersion = &cobra.Command{
		Use:   "version",
		Short: "Version",
		Run:   printVersion,
	}
	return cmdVersion
}

func printVersion(cmd *cobra.Command, args []string) {
	printer.Plainf("%s version: %s\n", constants.ProgramName, Version)
	printer.Plainf("Go version: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
