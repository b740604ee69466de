package gpt

import (
	"encoding/binary"

	"github.com/diskfs/go-diskfs/backend"
	partgpt "github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/elos-os/bootimg/imgerr"
	"github.com/google/uuid"
)

// Header is a decoded GPT header
type Header struct {
	MyLBA          uint64
	AlternateLBA   uint64
	FirstUsableLBA uint64
	LastUsableLBA  uint64
	DiskGUID       uuid.UUID
	EntriesLBA     uint64
	NumEntries     uint32
	EntrySize      uint32
	EntriesCRC     uint32
}

// Table is one copy of a partition table: its header and used entries
type Table struct {
	Header     Header
	Partitions []Partition
}

// Read decodes and validates the primary table of a disk image
func Read(buf []byte) (*Table, error) {
	t, _, err := readTable(buf, newDiskFile(buf), primaryLBA)
	return t, err
}

// ReadBackup decodes and validates the backup table at the last sector
func ReadBackup(buf []byte) (*Table, error) {
	if len(buf) < 2*SectorSize {
		return nil, imgerr.Layoutf("disk image too small")
	}
	t, _, err := readTable(buf, backupFile{newDiskFile(buf)}, uint64(len(buf)/SectorSize)-1)
	return t, err
}

// readTable reads the header at lba through f, which must present that
// header as LBA 1. go-diskfs checks the signature and both CRCs; the
// header fields it keeps unexported are decoded here.
func readTable(buf []byte, f backend.File, lba uint64) (*Table, *partgpt.Table, error) {
	if len(buf)%SectorSize != 0 || uint64(len(buf)/SectorSize) <= lba {
		return nil, nil, imgerr.Layoutf("disk image has no sector %d", lba)
	}
	raw := buf[lba*SectorSize : (lba+1)*SectorSize]
	if string(raw[0:8]) != signature {
		return nil, nil, imgerr.Layoutf("no GPT header at LBA %d", lba)
	}
	le := binary.LittleEndian
	h := Header{
		MyLBA:          le.Uint64(raw[24:]),
		FirstUsableLBA: le.Uint64(raw[40:]),
		EntriesLBA:     le.Uint64(raw[72:]),
		NumEntries:     le.Uint32(raw[80:]),
		EntrySize:      le.Uint32(raw[84:]),
		EntriesCRC:     le.Uint32(raw[88:]),
	}
	if h.EntrySize != EntrySize {
		return nil, nil, imgerr.Layoutf("unsupported partition entry size %d", h.EntrySize)
	}
	arraySize := uint64(h.NumEntries) * uint64(h.EntrySize)
	if h.EntriesLBA > uint64(len(buf)/SectorSize) || h.EntriesLBA*SectorSize+arraySize > uint64(len(buf)) {
		return nil, nil, imgerr.Layoutf("partition entry array at LBA %d runs past the end of the disk", h.EntriesLBA)
	}

	dt, err := partgpt.Read(f, SectorSize, SectorSize)
	if err != nil {
		return nil, nil, imgerr.Layoutf("GPT at LBA %d: %v", lba, err)
	}
	if h.MyLBA != lba {
		return nil, nil, imgerr.Layoutf("GPT header at LBA %d claims LBA %d", lba, h.MyLBA)
	}
	if h.DiskGUID, err = uuid.Parse(dt.UUID()); err != nil {
		return nil, nil, imgerr.Layoutf("GPT at LBA %d: disk GUID: %v", lba, err)
	}
	h.AlternateLBA = dt.TotalSize()/SectorSize - 1
	h.LastUsableLBA = dt.LastDataSector()

	// go-diskfs skips empty slots, so recover each entry's slot number
	entries := buf[h.EntriesLBA*SectorSize : h.EntriesLBA*SectorSize+arraySize]
	var slots []int
	for i := 0; i < int(h.NumEntries); i++ {
		if !isZero(entries[i*EntrySize : i*EntrySize+16]) {
			slots = append(slots, i)
		}
	}
	if len(slots) != len(dt.Partitions) {
		return nil, nil, imgerr.Layoutf("GPT at LBA %d: %d used slots, %d partitions", lba, len(slots), len(dt.Partitions))
	}

	t := &Table{Header: h}
	for i, e := range dt.Partitions {
		p, err := fromEntry(slots[i], e)
		if err != nil {
			return nil, nil, imgerr.Layoutf("GPT at LBA %d: %v", lba, err)
		}
		if p.Start > p.End {
			return nil, nil, imgerr.Layoutf("partition %d ends (%d) before it starts (%d)", p.Index, p.End, p.Start)
		}
		if p.Start < h.FirstUsableLBA || p.End > h.LastUsableLBA {
			return nil, nil, imgerr.Layoutf("partition %d (LBA %d-%d) is outside the usable range %d-%d", p.Index, p.Start, p.End, h.FirstUsableLBA, h.LastUsableLBA)
		}
		t.Partitions = append(t.Partitions, p)
	}
	return t, dt, nil
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// Verify checks the protective MBR and both tables, and that the two
// copies point at each other and describe the same partitions
func Verify(buf []byte) error {
	primary, dt, err := readTable(buf, newDiskFile(buf), primaryLBA)
	if err != nil {
		return err
	}
	if !dt.ProtectiveMBR {
		return imgerr.Layoutf("missing protective MBR covering the disk")
	}
	if err := dt.Verify(newDiskFile(buf), uint64(len(buf))); err != nil {
		return imgerr.Layoutf("backup GPT header: %v", err)
	}
	backup, err := ReadBackup(buf)
	if err != nil {
		return err
	}
	return compareTables(primary, backup)
}

func compareTables(primary, backup *Table) error {
	p, b := primary.Header, backup.Header
	switch {
	case p.AlternateLBA != b.MyLBA || b.AlternateLBA != p.MyLBA:
		return imgerr.Layoutf("primary and backup GPT headers do not point at each other")
	case p.DiskGUID != b.DiskGUID:
		return imgerr.Layoutf("primary and backup disk GUIDs differ")
	case p.FirstUsableLBA != b.FirstUsableLBA || p.LastUsableLBA != b.LastUsableLBA:
		return imgerr.Layoutf("primary and backup usable ranges differ")
	case p.EntriesCRC != b.EntriesCRC:
		return imgerr.Layoutf("primary and backup partition entries differ")
	case len(primary.Partitions) != len(backup.Partitions):
		return imgerr.Layoutf("primary has %d partitions, backup %d", len(primary.Partitions), len(backup.Partitions))
	}
	for i := range primary.Partitions {
		if primary.Partitions[i] != backup.Partitions[i] {
			return imgerr.Layoutf("partition %d differs between primary and backup", primary.Partitions[i].Index)
		}
	}
	return nil
}

// Open loads a verified disk image for further partitioning. The Disk
// shares buf.
func Open(buf []byte) (*Disk, error) {
	if err := Verify(buf); err != nil {
		return nil, err
	}
	t, err := Read(buf)
	if err != nil {
		return nil, err
	}
	sectors := uint64(len(buf) / SectorSize)
	if t.Header.AlternateLBA != sectors-1 || t.Header.FirstUsableLBA != firstUsable || t.Header.LastUsableLBA != sectors-1-EntryArraySectors-1 {
		return nil, imgerr.Layoutf("unsupported GPT geometry")
	}
	d := &Disk{
		buf:        buf,
		sectors:    sectors,
		guid:       t.Header.DiskGUID,
		partitions: map[int]Partition{},
	}
	for _, p := range t.Partitions {
		d.partitions[p.Index] = p
	}
	return d, nil
}
