package gpt

import (
	"fmt"
	"strings"
	"unicode/utf16"

	partgpt "github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/elos-os/bootimg/imgerr"
	"github.com/google/uuid"
)

// Disk is a GPT partitioned disk held in memory
type Disk struct {
	buf        []byte
	sectors    uint64
	guid       uuid.UUID
	alignment  uint64
	partitions map[int]Partition
}

// Init formats a blank disk of size bytes: protective MBR, primary header
// and entry array, backup entry array and header
func Init(size int64, diskGUID uuid.UUID) (*Disk, error) {
	// both tables plus one usable sector
	minSectors := int64(firstUsable + EntryArraySectors + 1 + 1)
	if size <= 0 || size%SectorSize != 0 {
		return nil, &imgerr.LayoutError{Reason: "disk size must be a positive multiple of 512", Required: (size + SectorSize - 1) / SectorSize * SectorSize, Available: size}
	}
	if size/SectorSize < minSectors {
		return nil, &imgerr.LayoutError{Reason: "disk too small for two GPT copies", Required: minSectors * SectorSize, Available: size}
	}
	if diskGUID == uuid.Nil {
		return nil, imgerr.Layoutf("disk GUID must not be nil")
	}
	d := &Disk{
		buf:        make([]byte, size),
		sectors:    uint64(size / SectorSize),
		guid:       diskGUID,
		partitions: map[int]Partition{},
	}
	if err := d.writeTables(); err != nil {
		return nil, err
	}
	return d, nil
}

// SetAlignment makes AddPartition reject starts that are not a multiple
// of sectors; 0 or 1 disables the check
func (d *Disk) SetAlignment(sectors uint64) {
	d.alignment = sectors
}

// Bytes returns the disk image
func (d *Disk) Bytes() []byte {
	return d.buf
}

// GUID returns the disk GUID
func (d *Disk) GUID() uuid.UUID {
	return d.guid
}

// FirstUsableLBA is the first sector a partition may occupy
func (d *Disk) FirstUsableLBA() uint64 {
	return firstUsable
}

// LastUsableLBA is the last sector a partition may occupy
func (d *Disk) LastUsableLBA() uint64 {
	return d.sectors - 1 - EntryArraySectors - 1
}

// AddPartition places p in entry index, replacing a previous entry at the
// same index. Nothing is written when p does not fit.
func (d *Disk) AddPartition(index int, p Partition) error {
	if index < 0 || index >= NumEntries {
		return imgerr.Layoutf("partition index %d out of range 0-%d", index, NumEntries-1)
	}
	if p.Type == uuid.Nil {
		return imgerr.Layoutf("partition %d has no type", index)
	}
	if p.Start > p.End {
		return imgerr.Layoutf("partition %d ends (%d) before it starts (%d)", index, p.End, p.Start)
	}
	if p.Start < d.FirstUsableLBA() {
		return &imgerr.LayoutError{Reason: fmt.Sprintf("partition %d overlaps the primary GPT", index), Required: int64(d.FirstUsableLBA()), Available: int64(p.Start)}
	}
	if p.End > d.LastUsableLBA() {
		return &imgerr.LayoutError{Reason: fmt.Sprintf("partition %d overlaps the backup GPT", index), Required: int64(p.End), Available: int64(d.LastUsableLBA())}
	}
	if d.alignment > 1 && p.Start%d.alignment != 0 {
		return imgerr.Layoutf("partition %d start %d is not aligned to %d sectors", index, p.Start, d.alignment)
	}
	if len(utf16.Encode([]rune(p.Name))) > maxNameLen {
		return imgerr.Layoutf("partition name %q is longer than %d UTF-16 units", p.Name, maxNameLen)
	}
	for i, other := range d.partitions {
		if i != index && p.Start <= other.End && other.Start <= p.End {
			return imgerr.Layoutf("partition %d overlaps partition %d", index, i)
		}
	}
	if p.GUID == uuid.Nil {
		p.GUID = uuid.NewSHA1(d.guid, []byte(fmt.Sprintf("partition-%d", index)))
	}
	p.Index = index
	prev, had := d.partitions[index]
	d.partitions[index] = p
	if err := d.writeTables(); err != nil {
		if had {
			d.partitions[index] = prev
		} else {
			delete(d.partitions, index)
		}
		return err
	}
	return nil
}

// Partition returns the entry at index
func (d *Disk) Partition(index int) (Partition, bool) {
	p, ok := d.partitions[index]
	return p, ok
}

// WritePartition copies data to the start of partition index and zeroes
// the rest of its sectors
func (d *Disk) WritePartition(index int, data []byte) error {
	p, ok := d.partitions[index]
	if !ok {
		return imgerr.Layoutf("partition %d does not exist", index)
	}
	if int64(len(data)) > p.Size() {
		return &imgerr.CapacityError{Path: fmt.Sprintf("partition %d", index), Required: int64(len(data)), Available: p.Size()}
	}
	region := d.buf[p.Start*SectorSize : (p.End+1)*SectorSize]
	n := copy(region, data)
	clear(region[n:])
	return nil
}

// table describes the disk as a go-diskfs partition table. Entry slots
// below the highest used index are left unused.
func (d *Disk) table() *partgpt.Table {
	n := 0
	for i := range d.partitions {
		n = max(n, i+1)
	}
	t := &partgpt.Table{
		LogicalSectorSize:  SectorSize,
		PhysicalSectorSize: SectorSize,
		ProtectiveMBR:      true,
		GUID:               strings.ToUpper(d.guid.String()),
		Partitions:         make([]*partgpt.Partition, n),
	}
	for i := range t.Partitions {
		if p, ok := d.partitions[i]; ok {
			t.Partitions[i] = p.entry()
		} else {
			t.Partitions[i] = &partgpt.Partition{Type: partgpt.Unused}
		}
	}
	return t
}

// writeTables regenerates the protective MBR, both entry arrays and both
// headers
func (d *Disk) writeTables() error {
	if err := d.table().Write(newDiskFile(d.buf), int64(len(d.buf))); err != nil {
		return imgerr.Layoutf("write partition table: %v", err)
	}
	return nil
}
