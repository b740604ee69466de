package cmd

import (
	"github.com/elos-os/bootimg/fat"
	"github.com/elos-os/bootimg/image"
	"github.com/elos-os/bootimg/printer"
	"github.com/elos-os/bootimg/types"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// FatCommands handles FAT volume images directly
func FatCommands() *cobra.Command {
	cmdFat := &cobra.Command{
		Use:   "fat",
		Short: "create and fill FAT volume images",
	}

	cmdFat.AddCommand(fatInitCommand())
	cmdFat.AddCommand(fatCopyCommand())
	return cmdFat
}

func fatInitCommand() *cobra.Command {
	var fatType int
	var label string
	cmdFatInit := &cobra.Command{
		Use:   "init <image> <size>",
		Short: "write an empty FAT volume, e.g. fat init esp.img 32m",
		Args:  cobra.ExactArgs(2),
		RunE:  fatInitCommandHandler,
	}
	cmdFatInit.Flags().IntVar(&fatType, "fat-type", 0, "force FAT 12, 16 or 32")
	cmdFatInit.Flags().StringVarP(&label, "label", "l", "", "volume label")
	return cmdFatInit
}

func fatInitCommandHandler(cmd *cobra.Command, args []string) error {
	fatType, _ := cmd.Flags().GetInt("fat-type")
	label, _ := cmd.Flags().GetString("label")

	size, err := types.ParseSectorSize(args[1], fat.SectorSize)
	if err != nil {
		return err
	}
	t, err := fat.ParseType(fatType)
	if err != nil {
		return err
	}

	err = withSpinner(cmd, "formatting "+args[0], func() error {
		return image.FatInit(afero.NewOsFs(), args[0], size, fat.Options{Type: t, Label: label})
	})
	if err != nil {
		return err
	}
	printer.Successf("FAT volume: %s", args[0])
	return nil
}

func fatCopyCommand() *cobra.Command {
	var timestamp string
	cmdFatCopy := &cobra.Command{
		Use:   "copy <image> <source> <dest>",
		Short: "copy a host file into a FAT volume image",
		Args:  cobra.ExactArgs(3),
		RunE:  fatCopyCommandHandler,
	}
	cmdFatCopy.Flags().StringVar(&timestamp, "timestamp", "", "entry timestamp, RFC3339 or unix seconds")
	return cmdFatCopy
}

func fatCopyCommandHandler(cmd *cobra.Command, args []string) error {
	timestamp, _ := cmd.Flags().GetString("timestamp")
	c := &types.Config{Timestamp: timestamp}
	modTime, err := c.BuildTime()
	if err != nil {
		return err
	}

	err = withSpinner(cmd, "copying "+args[1], func() error {
		return image.FatCopyFile(afero.NewOsFs(), args[0], args[1], args[2], modTime)
	})
	if err != nil {
		return err
	}
	printer.Successf("%s -> %s:%s", args[1], args[0], args[2])
	return nil
}
