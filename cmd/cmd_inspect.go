package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/elos-os/bootimg/fat"
	"github.com/elos-os/bootimg/gpt"
	"github.com/elos-os/bootimg/imgerr"
	"github.com/elos-os/bootimg/iso"
	"github.com/elos-os/bootimg/printer"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/ttacon/chalk"
)

// InspectCommand prints the partition tables and file tree of an image
func InspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <image>",
		Short: "show the GPT tables, ISO boot catalog and FAT contents of an image",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectCommandHandler,
	}
}

// InspectReport is the decoded structure of an image file
type InspectReport struct {
	Kind string
	Size int64
	GPT  *GPTReport `json:",omitempty"`
	ISO  *iso.Info  `json:",omitempty"`
	FAT  *FATReport `json:",omitempty"`
}

// GPTReport summarizes both copies of a partition table
type GPTReport struct {
	DiskGUID       string
	FirstUsableLBA uint64
	LastUsableLBA  uint64
	BackupAgrees   bool
	BackupError    string `json:",omitempty"`
	Partitions     []gpt.Partition
}

// FATReport lists a volume's metadata and every entry
type FATReport struct {
	Type     string
	Label    string
	VolumeID string
	Size     int64
	Free     int64
	Entries  []FATEntry
}

// FATEntry is one walked file or directory
type FATEntry struct {
	Path string
	fat.DirEntry
}

func inspectCommandHandler(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return imgerr.IO("read", args[0], err)
	}
	report, err := Inspect(data, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return printer.JSON(report)
	}
	renderReport(printer.Output(), args[0], report)
	return nil
}

// Inspect decodes data as a GPT disk, an ISO image or a bare FAT volume.
// Problems with the embedded volume are reported to warnings and do not
// fail the inspection.
func Inspect(data []byte, warnings io.Writer) (*InspectReport, error) {
	r := &InspectReport{Size: int64(len(data))}
	var volume []byte

	switch {
	case len(data) >= 2*gpt.SectorSize && string(data[gpt.SectorSize:gpt.SectorSize+8]) == "EFI PART":
		r.Kind = "gpt"
		t, err := gpt.Read(data)
		if err != nil {
			return nil, err
		}
		r.GPT = &GPTReport{
			DiskGUID:       t.Header.DiskGUID.String(),
			FirstUsableLBA: t.Header.FirstUsableLBA,
			LastUsableLBA:  t.Header.LastUsableLBA,
			Partitions:     t.Partitions,
			BackupAgrees:   true,
		}
		if err := gpt.Verify(data); err != nil {
			r.GPT.BackupAgrees = false
			r.GPT.BackupError = err.Error()
		}
		if p, ok := espPartition(t.Partitions); ok && p.Start <= p.End && p.End < uint64(len(data))/gpt.SectorSize {
			volume = data[p.Start*gpt.SectorSize : (p.End+1)*gpt.SectorSize]
		}

	case len(data) > 17*iso.BlockSize && string(data[16*iso.BlockSize+1:16*iso.BlockSize+6]) == "CD001":
		r.Kind = "iso"
		info, err := iso.Inspect(data)
		if err != nil {
			return nil, err
		}
		r.ISO = info
		if info.Boot != nil && int64(info.Boot.LoadLBA)*iso.BlockSize < int64(len(data)) {
			volume = data[int64(info.Boot.LoadLBA)*iso.BlockSize:]
		}

	default:
		r.Kind = "fat"
		volume = data
	}

	if volume == nil {
		return r, nil
	}
	fr, err := inspectVolume(volume)
	if err != nil {
		if r.Kind == "fat" {
			return nil, err
		}
		warn(warnings, "boot volume: %v", err)
		return r, nil
	}
	r.FAT = fr
	return r, nil
}

func espPartition(parts []gpt.Partition) (gpt.Partition, bool) {
	for _, p := range parts {
		if p.Type == gpt.EFISystemPartition {
			return p, true
		}
	}
	if len(parts) > 0 {
		return parts[0], true
	}
	return gpt.Partition{}, false
}

func inspectVolume(buf []byte) (*FATReport, error) {
	v, err := fat.Open(buf)
	if err != nil {
		return nil, err
	}
	r := &FATReport{
		Type:     v.Type().String(),
		Label:    v.Label(),
		VolumeID: fmt.Sprintf("%04X-%04X", v.VolumeID()>>16, v.VolumeID()&0xFFFF),
		Size:     v.Size(),
		Free:     v.FreeBytes(),
	}
	err = v.Walk(func(p string, e fat.DirEntry) error {
		r.Entries = append(r.Entries, FATEntry{Path: p, DirEntry: e})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func renderReport(w io.Writer, name string, r *InspectReport) {
	fmt.Fprintf(w, "%s: %s image, %s\n", name, r.Kind, humanize.IBytes(uint64(r.Size)))

	if r.GPT != nil {
		fmt.Fprintf(w, "disk GUID %s, usable LBA %d-%d\n", r.GPT.DiskGUID, r.GPT.FirstUsableLBA, r.GPT.LastUsableLBA)
		if r.GPT.BackupAgrees {
			fmt.Fprintln(w, chalk.Green, "primary and backup tables agree", chalk.Reset)
		} else {
			fmt.Fprintln(w, chalk.Red, "backup table mismatch:", r.GPT.BackupError, chalk.Reset)
		}

		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"#", "Name", "Start", "End", "Size", "Type", "GUID"})
		table.SetHeaderColor(
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor},
			tablewriter.Colors{tablewriter.Bold, tablewriter.FgCyanColor})
		for _, p := range r.GPT.Partitions {
			table.Append([]string{
				strconv.Itoa(p.Index),
				p.Name,
				strconv.FormatUint(p.Start, 10),
				strconv.FormatUint(p.End, 10),
				humanize.IBytes(uint64(p.Size())),
				partitionTypeName(p),
				p.GUID.String(),
			})
		}
		table.Render()
	}

	if r.ISO != nil {
		fmt.Fprintf(w, "volume %q, %d blocks\n", r.ISO.VolumeID, r.ISO.Blocks)
		if b := r.ISO.Boot; b != nil {
			fmt.Fprintf(w, "boot catalog at block %d: %s entry, image at block %d\n", r.ISO.CatalogLBA, b.PlatformName(), b.LoadLBA)
		}
	}

	if r.FAT != nil {
		fmt.Fprintf(w, "%s volume %q (%s), %s, %s free\n", r.FAT.Type, r.FAT.Label, r.FAT.VolumeID,
			humanize.IBytes(uint64(r.FAT.Size)), humanize.IBytes(uint64(r.FAT.Free)))

		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Path", "Size", "Modified"})
		for _, e := range r.FAT.Entries {
			size := humanize.IBytes(uint64(e.Size))
			p := e.Path
			if e.IsDir {
				size = "-"
				p += "/"
			}
			table.Append([]string{p, size, e.ModTime.Format("2006-01-02 15:04:05")})
		}
		table.Render()
	}
}

func partitionTypeName(p gpt.Partition) string {
	switch p.Type {
	case gpt.EFISystemPartition:
		return "EFI System"
	case gpt.BasicDataPartition:
		return "Basic Data"
	}
	return p.Type.String()
}
