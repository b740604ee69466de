package cmd

import (
	"fmt"
	"strconv"

	"github.com/elos-os/bootimg/gpt"
	"github.com/elos-os/bootimg/image"
	"github.com/elos-os/bootimg/printer"
	"github.com/elos-os/bootimg/types"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// GptCommands handles GPT disk images directly
func GptCommands() *cobra.Command {
	cmdGpt := &cobra.Command{
		Use:   "gpt",
		Short: "create and partition GPT disk images",
	}

	cmdGpt.AddCommand(gptInitCommand())
	cmdGpt.AddCommand(gptPartitionCommand())
	return cmdGpt
}

func gptInitCommand() *cobra.Command {
	var diskGUID string
	cmdGptInit := &cobra.Command{
		Use:   "init <image> <size>",
		Short: "write a blank GPT disk with a protective MBR",
		Args:  cobra.ExactArgs(2),
		RunE:  gptInitCommandHandler,
	}
	cmdGptInit.Flags().StringVar(&diskGUID, "disk-guid", "", "disk GUID, derived from the image path and size when empty")
	return cmdGptInit
}

func gptInitCommandHandler(cmd *cobra.Command, args []string) error {
	diskGUID, _ := cmd.Flags().GetString("disk-guid")

	size, err := types.ParseSectorSize(args[1], gpt.SectorSize)
	if err != nil {
		return err
	}
	guid := uuid.Nil
	if diskGUID != "" {
		if guid, err = uuid.Parse(diskGUID); err != nil {
			return fmt.Errorf("disk guid: %v", err)
		}
	}

	err = withSpinner(cmd, "partitioning "+args[0], func() error {
		return image.GptInit(afero.NewOsFs(), args[0], size, guid)
	})
	if err != nil {
		return err
	}
	printer.Successf("GPT disk: %s", args[0])
	return nil
}

func gptPartitionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "partition <image> <index> <start> <end> <source>",
		Short: "add an EFI system partition spanning LBAs start to end and fill it from source",
		Args:  cobra.ExactArgs(5),
		RunE:  gptPartitionCommandHandler,
	}
}

func gptPartitionCommandHandler(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("partition index: %v", err)
	}
	start, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("start lba: %v", err)
	}
	end, err := strconv.ParseUint(args[3], 10, 64)
	if err != nil {
		return fmt.Errorf("end lba: %v", err)
	}

	err = withSpinner(cmd, "writing partition "+args[1], func() error {
		return image.GptPartitionInitFromFile(afero.NewOsFs(), args[0], index, start, end, args[4])
	})
	if err != nil {
		return err
	}
	printer.Successf("partition %d: LBA %d-%d from %s", index, start, end, args[4])
	return nil
}
