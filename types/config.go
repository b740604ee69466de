package types

import (
	"os"
	"strconv"
	"time"

	"github.com/elos-os/bootimg/constants"
)

// Output formats
const (
	FormatGPT = "gpt"
	FormatISO = "iso"
	FormatFAT = "fat"
)

// Config for Build
type Config struct {
	// Manifest declares the files to place in the image, in order.
	Manifest []ManifestEntry `json:",omitempty" yaml:"manifest,omitempty"`

	// Output is the path of the final image.
	Output string `json:",omitempty" yaml:"output,omitempty"`

	// Format selects the terminal stage: gpt (default), iso or fat.
	Format string `json:",omitempty" yaml:"format,omitempty"`

	// StagingDir mirrors the destination tree on the host for diagnostics
	// and is used as the authoring tree when packing an ISO.
	StagingDir string `json:",omitempty" yaml:"staging,omitempty"`

	// Timestamp stamped on every directory entry, RFC3339 or unix seconds.
	// Falls back to SOURCE_DATE_EPOCH and then to 1980-01-01.
	Timestamp string `json:",omitempty" yaml:"timestamp,omitempty"`

	// FAT configures the filesystem volume.
	FAT FATConfig `json:",omitempty" yaml:"fat,omitempty"`

	// GPT configures the partitioned disk.
	GPT GPTConfig `json:",omitempty" yaml:"gpt,omitempty"`

	// ISO configures the optical image.
	ISO ISOConfig `json:",omitempty" yaml:"iso,omitempty"`

	// RunConfig
	RunConfig RunConfig `json:",omitempty" yaml:"run,omitempty"`
}

// ManifestEntry is one (source, destination) declaration
type ManifestEntry struct {
	// Source is a host path, possibly containing wildcards.
	Source string `json:"source" yaml:"source"`

	// Dest is the root-relative path inside the volume. For wildcard
	// sources it names the destination directory.
	Dest string `json:"dest" yaml:"dest"`

	// Recursive expands a wildcard source through subdirectories.
	Recursive bool `json:",omitempty" yaml:"recursive,omitempty"`
}

// FATConfig sizes and labels the FAT volume
type FATConfig struct {
	// MinSize is the volume size floor, e.g. "32m" or "4200k".
	MinSize string `json:",omitempty" yaml:"minSize,omitempty"`

	// SafetyFactor multiplies the content size to budget for metadata.
	SafetyFactor float64 `json:",omitempty" yaml:"safetyFactor,omitempty"`

	// Type forces 12, 16 or 32; 0 selects by size.
	Type int `json:",omitempty" yaml:"type,omitempty"`

	// Label is the 11 character volume label
	Label string `json:",omitempty" yaml:"label,omitempty"`

	// OEMName
	OEMName string `json:",omitempty" yaml:"oemName,omitempty"`

	// VolumeID is the volume serial number, hex or decimal.
	VolumeID string `json:",omitempty" yaml:"volumeID,omitempty"`
}

// GPTConfig places the partition on the disk
type GPTConfig struct {
	// PartitionStart is the first LBA of the EFI system partition.
	PartitionStart uint64 `json:",omitempty" yaml:"partitionStart,omitempty"`

	// Alignment in sectors the partition start must honor.
	Alignment uint64 `json:",omitempty" yaml:"alignment,omitempty"`

	// OverheadSectors is the slack added to the disk size estimate.
	OverheadSectors uint64 `json:",omitempty" yaml:"overheadSectors,omitempty"`

	// DiskGUID overrides the derived disk GUID.
	DiskGUID string `json:",omitempty" yaml:"diskGUID,omitempty"`

	// PartitionGUID overrides the derived partition GUID.
	PartitionGUID string `json:",omitempty" yaml:"partitionGUID,omitempty"`

	// PartitionName
	PartitionName string `json:",omitempty" yaml:"partitionName,omitempty"`
}

// ISOConfig names the pieces of the optical image
type ISOConfig struct {
	// VolumeID
	VolumeID string `json:",omitempty" yaml:"volumeID,omitempty"`

	// BootImage is the path of the embedded FAT image inside the ISO.
	BootImage string `json:",omitempty" yaml:"bootImage,omitempty"`

	// BootCatalog is the path of the El Torito catalog inside the ISO.
	BootCatalog string `json:",omitempty" yaml:"bootCatalog,omitempty"`
}

// RunConfig provides runtime details
type RunConfig struct {
	// ShowDebug
	ShowDebug bool `json:",omitempty" yaml:"showDebug,omitempty"`

	// ShowErrors
	ShowErrors bool `json:",omitempty" yaml:"showErrors,omitempty"`

	// ShowWarnings
	ShowWarnings bool `json:",omitempty" yaml:"showWarnings,omitempty"`

	// JSON output
	JSON bool `json:",omitempty" yaml:"json,omitempty"`

	// Verbose enables info level logging.
	Verbose bool `json:",omitempty" yaml:"verbose,omitempty"`
}

// NewConfig returns a Config with the build defaults
func NewConfig() *Config {
	return &Config{
		Format: FormatGPT,
		FAT: FATConfig{
			MinSize:      "32m",
			SafetyFactor: 1.25,
			Label:        "NO NAME",
		},
		GPT: GPTConfig{
			PartitionStart:  40,
			Alignment:       8,
			OverheadSectors: 64,
			PartitionName:   "EFI System",
		},
		ISO: ISOConfig{
			VolumeID:    "BOOTIMG",
			BootImage:   "/EFIBOOT.IMG",
			BootCatalog: "/BOOT.CAT",
		},
	}
}

// BuildTime returns the timestamp stamped on image metadata
func (c *Config) BuildTime() (time.Time, error) {
	ts := c.Timestamp
	if ts == "" {
		ts = os.Getenv(constants.SourceDateEpochEnv)
	}
	if ts == "" {
		return time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC), nil
	}
	if secs, err := strconv.ParseInt(ts, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Parse(time.RFC3339, ts)
}
