package gpt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"testing"

	"github.com/elos-os/bootimg/imgerr"
	"github.com/google/uuid"
	"gotest.tools/assert"
)

var testDiskGUID = uuid.MustParse("6E4A7E0B-5C3A-4F2B-9F1D-3A1C2B4D5E6F")

func newTestDisk(t *testing.T, volumeSize int64) (*Disk, Plan) {
	t.Helper()
	plan, err := Layout(volumeSize, LayoutOptions{})
	assert.NilError(t, err)
	d, err := Init(plan.DiskSize, testDiskGUID)
	assert.NilError(t, err)
	return d, plan
}

func TestDiskSize(t *testing.T) {
	assert.Equal(t, int64(2*(512+16384)+32*1024*1024+64*512), DiskSize(32*1024*1024, DefaultOverheadSectors))
	assert.Equal(t, int64(33792), DiskSize(0, 0))
}

func TestLayout(t *testing.T) {
	plan, err := Layout(32*1024*1024, LayoutOptions{})
	assert.NilError(t, err)
	assert.Equal(t, uint64(40), plan.Start)
	assert.Equal(t, uint64(40+65536-1), plan.End)
	assert.Equal(t, DiskSize(32*1024*1024, DefaultOverheadSectors), plan.DiskSize)

	_, err = Layout(1000, LayoutOptions{})
	assert.Equal(t, imgerr.KindLayout, imgerr.KindOf(err))

	_, err = Layout(32*1024*1024, LayoutOptions{PartitionStart: 41})
	assert.ErrorContains(t, err, "not aligned")

	_, err = Layout(32*1024*1024, LayoutOptions{PartitionStart: 16, Alignment: 8})
	assert.ErrorContains(t, err, "primary GPT")

	_, err = Layout(32*1024*1024, LayoutOptions{PartitionStart: 2048})
	var layoutErr *imgerr.LayoutError
	assert.Assert(t, errors.As(err, &layoutErr))
	assert.Assert(t, layoutErr.Required > layoutErr.Available)

	plan, err = Layout(32*1024*1024, LayoutOptions{PartitionStart: 2048, OverheadSectors: 2048})
	assert.NilError(t, err)
	assert.Equal(t, uint64(2048), plan.Start)
}

func TestInit(t *testing.T) {
	d, plan := newTestDisk(t, 4200*1024)
	buf := d.Bytes()

	assert.Equal(t, plan.DiskSize, int64(len(buf)))
	assert.Equal(t, byte(0x55), buf[510])
	assert.Equal(t, byte(0xAA), buf[511])
	assert.Equal(t, byte(0xEE), buf[446+4])
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[446+8:]))
	assert.Equal(t, uint32(len(buf)/512-1), binary.LittleEndian.Uint32(buf[446+12:]))
	assert.Equal(t, "EFI PART", string(buf[512:520]))

	primary, err := Read(buf)
	assert.NilError(t, err)
	assert.Equal(t, uint64(1), primary.Header.MyLBA)
	assert.Equal(t, uint64(len(buf)/512-1), primary.Header.AlternateLBA)
	assert.Equal(t, uint64(34), primary.Header.FirstUsableLBA)
	assert.Equal(t, uint64(len(buf)/512-34), primary.Header.LastUsableLBA)
	assert.Equal(t, testDiskGUID, primary.Header.DiskGUID)
	assert.Equal(t, 0, len(primary.Partitions))
	assert.NilError(t, Verify(buf))

	_, err = Init(1000, testDiskGUID)
	assert.Equal(t, imgerr.KindLayout, imgerr.KindOf(err))
	_, err = Init(60*512, testDiskGUID)
	assert.Equal(t, imgerr.KindLayout, imgerr.KindOf(err))
	_, err = Init(1024*1024, uuid.Nil)
	assert.Equal(t, imgerr.KindLayout, imgerr.KindOf(err))
}

func TestEntryEncoding(t *testing.T) {
	d, plan := newTestDisk(t, 64*1024)
	assert.NilError(t, d.AddPartition(0, Partition{Type: EFISystemPartition, Start: plan.Start, End: plan.End, Name: "EFI"}))

	entry := d.Bytes()[2*SectorSize : 2*SectorSize+EntrySize]
	// type GUID in mixed endian form
	assert.DeepEqual(t, []byte{
		0x28, 0x73, 0x2A, 0xC1, 0x1F, 0xF8, 0xD2, 0x11,
		0xBA, 0x4B, 0x00, 0xA0, 0xC9, 0x3E, 0xC9, 0x3B,
	}, entry[0:16])
	assert.Equal(t, plan.Start, binary.LittleEndian.Uint64(entry[32:]))
	assert.Equal(t, plan.End, binary.LittleEndian.Uint64(entry[40:]))
	assert.DeepEqual(t, []byte{'E', 0, 'F', 0, 'I', 0, 0, 0}, entry[56:64])
}

func TestSparseIndex(t *testing.T) {
	d, plan := newTestDisk(t, 64*1024)
	assert.NilError(t, d.AddPartition(3, Partition{Type: EFISystemPartition, Start: plan.Start, End: plan.End}))

	buf := d.Bytes()
	assert.NilError(t, Verify(buf))
	primary, err := Read(buf)
	assert.NilError(t, err)
	assert.Equal(t, 1, len(primary.Partitions))
	assert.Equal(t, 3, primary.Partitions[0].Index)

	opened, err := Open(buf)
	assert.NilError(t, err)
	_, ok := opened.Partition(3)
	assert.Assert(t, ok)
	_, ok = opened.Partition(0)
	assert.Assert(t, !ok)
}

// rewritePrimaryEntry edits entry 0 of the primary array and refreshes
// both primary CRCs, leaving a table that passes checksum validation
func rewritePrimaryEntry(buf []byte, edit func(entry []byte)) {
	le := binary.LittleEndian
	edit(buf[2*SectorSize : 2*SectorSize+EntrySize])
	h := buf[SectorSize : 2*SectorSize]
	le.PutUint32(h[88:], crc32.ChecksumIEEE(buf[2*SectorSize:2*SectorSize+EntryArraySize]))
	le.PutUint32(h[16:], 0)
	le.PutUint32(h[16:], crc32.ChecksumIEEE(h[:92]))
}

func TestReadRejectsBadExtents(t *testing.T) {
	d, plan := newTestDisk(t, 64*1024)
	assert.NilError(t, d.AddPartition(0, Partition{Type: EFISystemPartition, Start: plan.Start, End: plan.End}))

	t.Run("reversed", func(t *testing.T) {
		buf := append([]byte(nil), d.Bytes()...)
		rewritePrimaryEntry(buf, func(e []byte) {
			binary.LittleEndian.PutUint64(e[32:], plan.End+10)
			binary.LittleEndian.PutUint64(e[40:], plan.Start)
		})
		_, err := Read(buf)
		assert.Equal(t, imgerr.KindLayout, imgerr.KindOf(err))
		assert.ErrorContains(t, err, "before it starts")
	})

	t.Run("past the disk", func(t *testing.T) {
		buf := append([]byte(nil), d.Bytes()...)
		rewritePrimaryEntry(buf, func(e []byte) {
			binary.LittleEndian.PutUint64(e[40:], uint64(len(buf)))
		})
		_, err := Read(buf)
		assert.ErrorContains(t, err, "outside the usable range")
	})
}

func TestPartitionRoundTrip(t *testing.T) {
	volume := bytes.Repeat([]byte{0xAB}, 4200*1024)
	d, plan := newTestDisk(t, int64(len(volume)))
	d.SetAlignment(plan.Alignment)

	err := d.AddPartition(0, Partition{
		Type:  EFISystemPartition,
		Start: plan.Start,
		End:   plan.End,
		Name:  "EFI System",
	})
	assert.NilError(t, err)
	assert.NilError(t, d.WritePartition(0, volume))

	buf := d.Bytes()
	assert.NilError(t, Verify(buf))

	primary, err := Read(buf)
	assert.NilError(t, err)
	backup, err := ReadBackup(buf)
	assert.NilError(t, err)
	assert.DeepEqual(t, primary.Partitions, backup.Partitions)
	assert.Equal(t, primary.Header.EntriesCRC, backup.Header.EntriesCRC)

	assert.Equal(t, 1, len(primary.Partitions))
	p := primary.Partitions[0]
	assert.Equal(t, EFISystemPartition, p.Type)
	assert.Equal(t, "EFI System", p.Name)
	assert.Equal(t, uint64(40), p.Start)
	assert.Equal(t, int64(len(volume)), p.Size())
	assert.Assert(t, p.GUID != uuid.Nil)

	assert.Assert(t, bytes.Equal(volume, buf[p.Start*SectorSize:(p.End+1)*SectorSize]))
	assert.Assert(t, p.End < backup.Header.EntriesLBA)
}

func TestAddPartitionRejects(t *testing.T) {
	d, plan := newTestDisk(t, 1024*1024)
	d.SetAlignment(8)
	assert.NilError(t, d.AddPartition(0, Partition{Type: EFISystemPartition, Start: plan.Start, End: plan.Start + 99}))

	tests := []struct {
		name  string
		index int
		p     Partition
	}{
		{"index", NumEntries, Partition{Type: BasicDataPartition, Start: 200, End: 300}},
		{"no type", 1, Partition{Start: 200, End: 300}},
		{"reversed", 1, Partition{Type: BasicDataPartition, Start: 300, End: 200}},
		{"primary overlap", 1, Partition{Type: BasicDataPartition, Start: 8, End: 30}},
		{"backup overlap", 1, Partition{Type: BasicDataPartition, Start: 200, End: d.LastUsableLBA() + 1}},
		{"unaligned", 1, Partition{Type: BasicDataPartition, Start: 201, End: 300}},
		{"overlap", 1, Partition{Type: BasicDataPartition, Start: plan.Start + 96, End: 300}},
		{"long name", 1, Partition{Type: BasicDataPartition, Start: 200, End: 300, Name: "a name that is much longer than thirty six units"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := append([]byte(nil), d.Bytes()...)
			err := d.AddPartition(tt.index, tt.p)
			assert.Equal(t, imgerr.KindLayout, imgerr.KindOf(err))
			assert.Assert(t, bytes.Equal(before, d.Bytes()))
		})
	}

	// replacing the same index is allowed
	assert.NilError(t, d.AddPartition(0, Partition{Type: EFISystemPartition, Start: plan.Start, End: plan.Start + 199}))
	assert.NilError(t, Verify(d.Bytes()))
}

func TestWritePartitionCapacity(t *testing.T) {
	d, plan := newTestDisk(t, 64*1024)
	assert.NilError(t, d.AddPartition(0, Partition{Type: EFISystemPartition, Start: plan.Start, End: plan.End}))

	err := d.WritePartition(0, make([]byte, 64*1024+1))
	assert.Equal(t, imgerr.KindCapacity, imgerr.KindOf(err))

	err = d.WritePartition(3, nil)
	assert.Equal(t, imgerr.KindLayout, imgerr.KindOf(err))
}

func TestVerifyDetectsCorruption(t *testing.T) {
	d, plan := newTestDisk(t, 64*1024)
	assert.NilError(t, d.AddPartition(0, Partition{Type: EFISystemPartition, Start: plan.Start, End: plan.End}))

	t.Run("primary header", func(t *testing.T) {
		buf := append([]byte(nil), d.Bytes()...)
		buf[512+48]++
		_, err := Read(buf)
		assert.ErrorContains(t, err, "Header Checksum")
		assert.Assert(t, Verify(buf) != nil)
	})

	t.Run("backup entries", func(t *testing.T) {
		buf := append([]byte(nil), d.Bytes()...)
		last := uint64(len(buf)/SectorSize) - 1
		buf[(last-EntryArraySectors)*SectorSize+32]++
		_, err := ReadBackup(buf)
		assert.ErrorContains(t, err, "Partition Entry Checksum")
		assert.Assert(t, Verify(buf) != nil)
	})

	t.Run("protective mbr", func(t *testing.T) {
		buf := append([]byte(nil), d.Bytes()...)
		buf[446+4] = 0x83
		assert.ErrorContains(t, Verify(buf), "protective MBR")
	})
}

func TestDeterministic(t *testing.T) {
	build := func() []byte {
		volume := []byte("volume")
		guid := DeriveGUID("disk", volume)
		plan, err := Layout(64*1024, LayoutOptions{})
		assert.NilError(t, err)
		d, err := Init(plan.DiskSize, guid)
		assert.NilError(t, err)
		assert.NilError(t, d.AddPartition(0, Partition{Type: EFISystemPartition, GUID: DeriveGUID("esp", volume), Start: plan.Start, End: plan.End}))
		assert.NilError(t, d.WritePartition(0, volume))
		return d.Bytes()
	}
	assert.Assert(t, bytes.Equal(build(), build()))
	assert.Assert(t, DeriveGUID("disk", []byte("a")) != DeriveGUID("disk", []byte("b")))
}

func TestOpen(t *testing.T) {
	d, plan := newTestDisk(t, 64*1024)
	assert.NilError(t, d.AddPartition(0, Partition{Type: EFISystemPartition, Start: plan.Start, End: plan.End, Name: "EFI System"}))

	opened, err := Open(append([]byte(nil), d.Bytes()...))
	assert.NilError(t, err)
	assert.Equal(t, testDiskGUID, opened.GUID())
	p, ok := opened.Partition(0)
	assert.Assert(t, ok)
	assert.Equal(t, "EFI System", p.Name)

	assert.NilError(t, opened.AddPartition(0, p))
	assert.Assert(t, bytes.Equal(d.Bytes(), opened.Bytes()))

	_, err = Open(make([]byte, 64*1024))
	assert.Equal(t, imgerr.KindLayout, imgerr.KindOf(err))
}
