package fat

import (
	"fmt"

	"github.com/elos-os/bootimg/imgerr"
)

// Type is the FAT variant of a volume
type Type int

// FAT variants, Auto selects by volume size
const (
	Auto  Type = 0
	FAT12 Type = 12
	FAT16 Type = 16
	FAT32 Type = 32
)

func (t Type) String() string {
	switch t {
	case FAT12, FAT16, FAT32:
		return fmt.Sprintf("FAT%d", int(t))
	}
	return "auto"
}

// ParseType converts 0, 12, 16 or 32 into a Type
func ParseType(n int) (Type, error) {
	switch Type(n) {
	case Auto, FAT12, FAT16, FAT32:
		return Type(n), nil
	}
	return Auto, fmt.Errorf("unsupported FAT type %d", n)
}

const (
	// fat12MaxSectors is the largest volume formatted as FAT12 when the
	// type is chosen automatically
	fat12MaxSectors = 8400
	// fat16MaxSectors bounds automatic FAT16 selection (512 MiB)
	fat16MaxSectors = 1048576

	minFAT16Clusters = 4085
	minFAT32Clusters = 65525
	maxFAT32Clusters = 0x0FFFFFF5

	rootEntries     = 512
	fat32RootClust  = 2
	fat32FSInfo     = 1
	fat32BackupBoot = 6
	numFATs         = 2
	dirEntrySize    = 32
)

// fat16 and fat32 cluster size tables, from the Microsoft FAT specification
var fat16Table = []struct {
	sectors uint32
	spc     uint8
}{
	{8400, 2}, {32680, 2}, {262144, 4}, {524288, 8},
	{1048576, 16}, {2097152, 32}, {4194304, 64}, {0xFFFFFFFF, 128},
}

var fat32Table = []struct {
	sectors uint32
	spc     uint8
}{
	{66600, 1}, {532480, 1}, {16777216, 8}, {33554432, 16},
	{67108864, 32}, {0xFFFFFFFF, 64},
}

// Geometry describes the on-disk layout of a FAT volume
type Geometry struct {
	Type              Type
	TotalSectors      uint32
	ReservedSectors   uint16
	RootEntries       uint16
	SectorsPerCluster uint8
	FATSectors        uint32
	Clusters          uint32
}

// AutoType picks the FAT variant for a volume of totalSectors
func AutoType(totalSectors uint32) Type {
	switch {
	case totalSectors <= fat12MaxSectors:
		return FAT12
	case totalSectors < fat16MaxSectors:
		return FAT16
	}
	return FAT32
}

// NewGeometry lays out a volume of totalSectors. Forced types that cannot
// hold a valid cluster count for their variant are a LayoutError.
func NewGeometry(totalSectors uint32, t Type) (Geometry, error) {
	if t == Auto {
		t = AutoType(totalSectors)
	}
	g := Geometry{Type: t, TotalSectors: totalSectors}
	switch t {
	case FAT12, FAT16:
		g.ReservedSectors = 1
		g.RootEntries = rootEntries
	case FAT32:
		g.ReservedSectors = 32
	default:
		return g, imgerr.Layoutf("unsupported FAT type %d", int(t))
	}

	switch t {
	case FAT12:
		g.SectorsPerCluster = 0
		for spc := uint8(1); spc != 0; spc <<= 1 {
			g.SectorsPerCluster = spc
			g.solveFATSize()
			if g.Clusters < minFAT16Clusters {
				break
			}
		}
	case FAT16:
		g.SectorsPerCluster = lookupSPC(fat16Table, totalSectors)
		g.solveFATSize()
	case FAT32:
		g.SectorsPerCluster = lookupSPC(fat32Table, totalSectors)
		g.solveFATSize()
	}

	return g, g.validate()
}

func lookupSPC(table []struct {
	sectors uint32
	spc     uint8
}, totalSectors uint32) uint8 {
	for _, e := range table {
		if totalSectors <= e.sectors {
			return e.spc
		}
	}
	return table[len(table)-1].spc
}

// solveFATSize iterates the FAT size until it covers every data cluster
func (g *Geometry) solveFATSize() {
	g.FATSectors = 1
	g.Clusters = 0
	for {
		meta := uint64(g.ReservedSectors) + numFATs*uint64(g.FATSectors) + uint64(g.RootDirSectors())
		if meta >= uint64(g.TotalSectors) {
			g.Clusters = 0
			return
		}
		g.Clusters = uint32((uint64(g.TotalSectors) - meta) / uint64(g.SectorsPerCluster))
		needed := fatBytes(g.Type, g.Clusters)
		sectors := uint32((needed + SectorSize - 1) / SectorSize)
		if sectors <= g.FATSectors {
			return
		}
		g.FATSectors = sectors
	}
}

func fatBytes(t Type, clusters uint32) uint64 {
	entries := uint64(clusters) + 2
	switch t {
	case FAT12:
		return (entries*3 + 1) / 2
	case FAT16:
		return entries * 2
	}
	return entries * 4
}

func (g Geometry) validate() error {
	c := g.Clusters
	switch {
	case c == 0:
		return &imgerr.LayoutError{Reason: fmt.Sprintf("%s volume of %d sectors has no room for data", g.Type, g.TotalSectors)}
	case g.Type == FAT12 && c >= minFAT16Clusters:
		return &imgerr.LayoutError{Reason: "too many clusters for FAT12", Required: int64(minFAT16Clusters - 1), Available: int64(c)}
	case g.Type == FAT16 && c < minFAT16Clusters:
		return &imgerr.LayoutError{Reason: "too few clusters for FAT16", Required: minFAT16Clusters, Available: int64(c)}
	case g.Type == FAT16 && c >= minFAT32Clusters:
		return &imgerr.LayoutError{Reason: "too many clusters for FAT16", Required: minFAT32Clusters - 1, Available: int64(c)}
	case g.Type == FAT32 && c < minFAT32Clusters:
		return &imgerr.LayoutError{Reason: "too few clusters for FAT32", Required: minFAT32Clusters, Available: int64(c)}
	case g.Type == FAT32 && c > maxFAT32Clusters:
		return &imgerr.LayoutError{Reason: "too many clusters for FAT32", Required: maxFAT32Clusters, Available: int64(c)}
	}
	return nil
}

// RootDirSectors is the size of the fixed FAT12/16 root directory region
func (g Geometry) RootDirSectors() uint32 {
	return (uint32(g.RootEntries)*dirEntrySize + SectorSize - 1) / SectorSize
}

// RootDirStart is the first sector of the fixed root directory region
func (g Geometry) RootDirStart() uint32 {
	return uint32(g.ReservedSectors) + numFATs*g.FATSectors
}

// FirstDataSector is the sector holding cluster 2
func (g Geometry) FirstDataSector() uint32 {
	return g.RootDirStart() + g.RootDirSectors()
}

// ClusterSize in bytes
func (g Geometry) ClusterSize() int64 {
	return int64(g.SectorsPerCluster) * SectorSize
}

// clusterOffset is the byte offset of cluster c
func (g Geometry) clusterOffset(c uint32) int64 {
	return (int64(g.FirstDataSector()) + int64(c-2)*int64(g.SectorsPerCluster)) * SectorSize
}

// eoc is the end of chain marker written by this package
func (g Geometry) eoc() uint32 {
	switch g.Type {
	case FAT12:
		return 0xFFF
	case FAT16:
		return 0xFFFF
	}
	return 0x0FFFFFFF
}

// isEOC reports whether v terminates a cluster chain
func (g Geometry) isEOC(v uint32) bool {
	switch g.Type {
	case FAT12:
		return v >= 0xFF8
	case FAT16:
		return v >= 0xFFF8
	}
	return v >= 0x0FFFFFF8
}
