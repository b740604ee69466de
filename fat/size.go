package fat

import (
	"math"

	"github.com/elos-os/bootimg/imgerr"
)

const (
	// SectorSize is the only sector size produced or accepted
	SectorSize = 512

	// DefaultSafetyFactor budgets for directory and allocation overhead
	DefaultSafetyFactor = 1.25

	// DefaultMinSize is the volume size floor, large enough that firmware
	// which rejects tiny FAT volumes accepts the image
	DefaultMinSize = 32 * 1024 * 1024

	// LegacyMinSize is the historical 4200 KiB floor, which sits exactly on
	// the FAT12/FAT16 boundary
	LegacyMinSize = 4200 * 1024

	maxPlanSteps = 64
)

// SizePolicy controls the volume size estimate
type SizePolicy struct {
	SafetyFactor float64
	MinSize      int64
}

// DefaultSizePolicy returns the policy used when nothing is configured
func DefaultSizePolicy() SizePolicy {
	return SizePolicy{SafetyFactor: DefaultSafetyFactor, MinSize: DefaultMinSize}
}

func (p SizePolicy) normalize() SizePolicy {
	if p.SafetyFactor < 1 {
		p.SafetyFactor = DefaultSafetyFactor
	}
	if p.MinSize <= 0 {
		p.MinSize = DefaultMinSize
	}
	return p
}

// Usage describes what will be written to a volume
type Usage struct {
	// Files holds the size of every file
	Files []int64
	// Dirs maps every directory path to its number of entries, "" is root
	Dirs map[string]int
}

// ContentSize is the sum of all file sizes
func (u Usage) ContentSize() int64 {
	var total int64
	for _, s := range u.Files {
		total += s
	}
	return total
}

// EstimateSize returns the volume size for contentSize bytes of files:
// the content scaled by the safety factor and rounded up to a whole
// sector, never below the floor
func EstimateSize(contentSize int64, p SizePolicy) int64 {
	p = p.normalize()
	est := roundUpSector(int64(math.Ceil(float64(contentSize) * p.SafetyFactor)))
	floor := roundUpSector(p.MinSize)
	if est < floor {
		return floor
	}
	return est
}

// PlanSize starts from EstimateSize and grows the volume until the
// clusters needed by u fit the resulting geometry
func PlanSize(u Usage, p SizePolicy, opts Options) (int64, error) {
	size := EstimateSize(u.ContentSize(), p)

	rootNeed := u.Dirs[""]
	if opts.hasLabel() {
		rootNeed++
	}

	var lastErr error
	for i := 0; i < maxPlanSteps; i++ {
		if size/SectorSize > math.MaxUint32 {
			break
		}
		g, err := NewGeometry(uint32(size/SectorSize), opts.Type)
		if err == nil {
			if g.Type != FAT32 && rootNeed > int(g.RootEntries) {
				return 0, &imgerr.CapacityError{Path: "/", Required: int64(rootNeed) * dirEntrySize, Available: int64(g.RootEntries) * dirEntrySize}
			}
			need := clusterDemand(u, g, rootNeed)
			if need <= uint64(g.Clusters) {
				return size, nil
			}
			lastErr = &imgerr.CapacityError{Path: "/", Required: int64(need) * g.ClusterSize(), Available: int64(g.Clusters) * g.ClusterSize()}
		} else {
			lastErr = err
		}
		size += roundUpSector(size / 8)
	}
	if lastErr == nil {
		lastErr = imgerr.Layoutf("volume size exceeds the FAT32 limit")
	}
	return 0, lastErr
}

// clusterDemand counts the data clusters u occupies on g
func clusterDemand(u Usage, g Geometry, rootEntries int) uint64 {
	cs := uint64(g.ClusterSize())
	var need uint64
	for _, s := range u.Files {
		need += (uint64(s) + cs - 1) / cs
	}
	for dir, n := range u.Dirs {
		if dir == "" {
			continue
		}
		need += dirClusters(n+2, cs)
	}
	if g.Type == FAT32 {
		need += dirClusters(rootEntries, cs)
	}
	return need
}

func dirClusters(entries int, cs uint64) uint64 {
	n := (uint64(entries)*dirEntrySize + cs - 1) / cs
	if n == 0 {
		n = 1
	}
	return n
}

func roundUpSector(n int64) int64 {
	return (n + SectorSize - 1) / SectorSize * SectorSize
}
