// Package gpt writes and reads GUID partition tables on in-memory disks.
package gpt

import (
	"crypto/sha256"
	"fmt"
	"strings"

	partgpt "github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/google/uuid"
)

const (
	// SectorSize is the logical block size of every disk
	SectorSize = 512
	// EntrySize is the byte size of one partition entry
	EntrySize = 128
	// NumEntries is the number of entries in each array
	NumEntries = 128
	// EntryArraySize is the byte size of one partition entry array
	EntryArraySize = EntrySize * NumEntries
	// EntryArraySectors is the sector count of one partition entry array
	EntryArraySectors = EntryArraySize / SectorSize

	// DefaultPartitionStart is the first LBA of the EFI system partition
	DefaultPartitionStart = 40
	// DefaultAlignment in sectors
	DefaultAlignment = 8
	// DefaultOverheadSectors is the slack added to the disk size
	DefaultOverheadSectors = 64

	signature   = "EFI PART"
	primaryLBA  = 1
	entriesLBA  = 2
	maxNameLen  = 36
	firstUsable = entriesLBA + EntryArraySectors
)

var (
	// EFISystemPartition is the partition type GUID of an EFI system partition
	EFISystemPartition = uuid.MustParse(string(partgpt.EFISystemPartition))

	// BasicDataPartition is the partition type GUID of a basic data partition
	BasicDataPartition = uuid.MustParse(string(partgpt.MicrosoftBasicData))

	namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/elos-os/bootimg"))
)

// DeriveGUID returns a GUID that depends only on name and data, so that
// identical inputs give byte identical disks
func DeriveGUID(name string, data []byte) uuid.UUID {
	sum := sha256.Sum256(data)
	return uuid.NewSHA1(namespace, append([]byte(name+":"), sum[:]...))
}

// Partition is one entry of the partition table. Start and End are
// inclusive LBAs.
type Partition struct {
	Index      int
	Type       uuid.UUID
	GUID       uuid.UUID
	Start      uint64
	End        uint64
	Attributes uint64
	Name       string
}

// Sectors is the length of the partition in sectors
func (p Partition) Sectors() uint64 {
	return p.End - p.Start + 1
}

// Size is the length of the partition in bytes
func (p Partition) Size() int64 {
	return int64(p.Sectors()) * SectorSize
}

// entry converts p to the table entry written to disk
func (p Partition) entry() *partgpt.Partition {
	return &partgpt.Partition{
		Start:      p.Start,
		End:        p.End,
		Type:       partgpt.Type(strings.ToUpper(p.Type.String())),
		GUID:       strings.ToUpper(p.GUID.String()),
		Name:       p.Name,
		Attributes: p.Attributes,
	}
}

func fromEntry(index int, e *partgpt.Partition) (Partition, error) {
	typ, err := uuid.Parse(string(e.Type))
	if err != nil {
		return Partition{}, fmt.Errorf("partition %d type: %w", index, err)
	}
	guid, err := uuid.Parse(e.GUID)
	if err != nil {
		return Partition{}, fmt.Errorf("partition %d GUID: %w", index, err)
	}
	return Partition{
		Index:      index,
		Type:       typ,
		GUID:       guid,
		Start:      e.Start,
		End:        e.End,
		Attributes: e.Attributes,
		Name:       e.Name,
	}, nil
}
