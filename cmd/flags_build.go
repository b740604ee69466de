package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/elos-os/bootimg/manifest"
	"github.com/elos-os/bootimg/types"
	"github.com/elos-os/bootimg/util/slice"
	"github.com/spf13/pflag"
)

// BuildCommandFlags consolidates all command flags required to build an image in one struct
type BuildCommandFlags struct {
	Files          []string
	Recursive      bool
	Format         string
	Output         string
	MinSize        string
	SafetyFactor   float64
	FATType        int
	Label          string
	PartitionStart uint64
	Overhead       uint64
	Staging        string
	Timestamp      string

	changed map[string]bool
}

// MergeToConfig overrides configuration passed by argument with command flags values.
// Manifest entries given with --file are appended after the configured ones.
func (flags *BuildCommandFlags) MergeToConfig(c *types.Config) error {
	for _, f := range slice.ExcludeWhitespaces(flags.Files) {
		entry, err := parseFileFlag(f, flags.Recursive)
		if err != nil {
			return err
		}
		c.Manifest = append(c.Manifest, entry)
	}

	if flags.Format != "" {
		c.Format = strings.ToLower(flags.Format)
	}
	if flags.Output != "" {
		c.Output = flags.Output
	}
	if flags.MinSize != "" {
		c.FAT.MinSize = flags.MinSize
	}
	if flags.changed["safety-factor"] {
		c.FAT.SafetyFactor = flags.SafetyFactor
	}
	if flags.changed["fat-type"] {
		c.FAT.Type = flags.FATType
	}
	if flags.Label != "" {
		c.FAT.Label = flags.Label
	}
	if flags.changed["partition-start"] {
		c.GPT.PartitionStart = flags.PartitionStart
	}
	if flags.changed["overhead"] {
		c.GPT.OverheadSectors = flags.Overhead
	}
	if flags.Staging != "" {
		c.StagingDir = flags.Staging
	}
	if flags.Timestamp != "" {
		c.Timestamp = flags.Timestamp
	}

	return nil
}

// parseFileFlag splits "source:dest". Without a destination a literal
// source lands in the volume root under its own name.
func parseFileFlag(f string, recursive bool) (types.ManifestEntry, error) {
	entry := types.ManifestEntry{Recursive: recursive}
	if i := strings.LastIndex(f, ":"); i > 0 && !isDriveSpec(f, i) {
		entry.Source, entry.Dest = f[:i], f[i+1:]
	} else {
		entry.Source = f
	}

	if entry.Dest == "" {
		if _, ok := manifest.ParseSource(entry.Source, recursive).(manifest.Glob); ok {
			return entry, fmt.Errorf("file %q: a wildcard source needs a destination directory", f)
		}
		entry.Dest = filepath.Base(entry.Source)
	}
	return entry, nil
}

// isDriveSpec reports whether the colon at i belongs to a drive letter
func isDriveSpec(f string, i int) bool {
	return i == 1 && len(f) > 2 && (f[2] == '\\' || f[2] == '/')
}

// NewBuildCommandFlags returns an instance of BuildCommandFlags
func NewBuildCommandFlags(cmdFlags *pflag.FlagSet) (flags *BuildCommandFlags) {
	flags = &BuildCommandFlags{changed: map[string]bool{}}

	flags.Files, _ = cmdFlags.GetStringArray("file")
	flags.Recursive, _ = cmdFlags.GetBool("recursive")
	flags.Format, _ = cmdFlags.GetString("format")
	flags.Output, _ = cmdFlags.GetString("output")
	flags.MinSize, _ = cmdFlags.GetString("min-size")
	flags.SafetyFactor, _ = cmdFlags.GetFloat64("safety-factor")
	flags.FATType, _ = cmdFlags.GetInt("fat-type")
	flags.Label, _ = cmdFlags.GetString("label")
	flags.PartitionStart, _ = cmdFlags.GetUint64("partition-start")
	flags.Overhead, _ = cmdFlags.GetUint64("overhead")
	flags.Staging, _ = cmdFlags.GetString("staging")
	flags.Timestamp, _ = cmdFlags.GetString("timestamp")

	for _, name := range []string{"safety-factor", "fat-type", "partition-start", "overhead"} {
		flags.changed[name] = cmdFlags.Changed(name)
	}

	return
}

// PersistBuildCommandFlags append a command the required flags to build an image
func PersistBuildCommandFlags(cmdFlags *pflag.FlagSet) {
	cmdFlags.StringArrayP("file", "f", nil, "file to place in the image as source:dest, repeatable")
	cmdFlags.BoolP("recursive", "r", false, "expand wildcard sources through subdirectories")
	cmdFlags.String("format", "", "output format: gpt, iso or fat")
	cmdFlags.StringP("output", "o", "", "output image path")
	cmdFlags.String("min-size", "", "minimum FAT volume size, e.g. 32m or 4200k")
	cmdFlags.Float64("safety-factor", 0, "multiplier applied to the content size")
	cmdFlags.Int("fat-type", 0, "force FAT 12, 16 or 32")
	cmdFlags.StringP("label", "l", "", "FAT volume label")
	cmdFlags.Uint64("partition-start", 0, "first LBA of the EFI system partition")
	cmdFlags.Uint64("overhead", 0, "sectors of slack added to the disk size")
	cmdFlags.String("staging", "", "directory mirroring the image tree on the host")
	cmdFlags.String("timestamp", "", "timestamp for directory entries, RFC3339 or unix seconds")
}
