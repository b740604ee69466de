package gpt

import (
	"fmt"

	"github.com/elos-os/bootimg/imgerr"
)

// DiskSize is the disk needed for a volume of volumeSize bytes: two
// headers, two entry arrays, the volume and overheadSectors of slack
func DiskSize(volumeSize int64, overheadSectors uint64) int64 {
	return 2*(SectorSize+EntryArraySize) + volumeSize + int64(overheadSectors)*SectorSize
}

// LayoutOptions places the partition on the disk; zero values take the
// package defaults
type LayoutOptions struct {
	PartitionStart  uint64
	Alignment       uint64
	OverheadSectors uint64
}

func (o LayoutOptions) withDefaults() LayoutOptions {
	if o.PartitionStart == 0 {
		o.PartitionStart = DefaultPartitionStart
	}
	if o.Alignment == 0 {
		o.Alignment = DefaultAlignment
	}
	if o.OverheadSectors == 0 {
		o.OverheadSectors = DefaultOverheadSectors
	}
	return o
}

// Plan is a validated disk layout for one partition
type Plan struct {
	DiskSize  int64
	Start     uint64
	End       uint64
	Alignment uint64
}

func (p Plan) String() string {
	return fmt.Sprintf("disk %d bytes, partition LBA %d-%d", p.DiskSize, p.Start, p.End)
}

// Layout computes the disk for a volume of volumeSize bytes and checks,
// before anything is written, that the partition is aligned and clear of
// both GPT copies
func Layout(volumeSize int64, o LayoutOptions) (Plan, error) {
	o = o.withDefaults()
	if volumeSize <= 0 || volumeSize%SectorSize != 0 {
		return Plan{}, &imgerr.LayoutError{Reason: "volume size must be a positive multiple of 512", Required: (volumeSize + SectorSize - 1) / SectorSize * SectorSize, Available: volumeSize}
	}
	if o.PartitionStart%o.Alignment != 0 {
		return Plan{}, imgerr.Layoutf("partition start %d is not aligned to %d sectors", o.PartitionStart, o.Alignment)
	}
	if o.PartitionStart < firstUsable {
		return Plan{}, &imgerr.LayoutError{Reason: "partition overlaps the primary GPT", Required: firstUsable, Available: int64(o.PartitionStart)}
	}

	size := DiskSize(volumeSize, o.OverheadSectors)
	sectors := uint64(size / SectorSize)
	lastUsable := sectors - 1 - EntryArraySectors - 1
	end := o.PartitionStart + uint64(volumeSize/SectorSize) - 1
	if end > lastUsable {
		return Plan{}, &imgerr.LayoutError{Reason: "partition overlaps the backup GPT", Required: int64(end), Available: int64(lastUsable)}
	}
	return Plan{DiskSize: size, Start: o.PartitionStart, End: end, Alignment: o.Alignment}, nil
}
