package fat

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/elos-os/bootimg/imgerr"
)

const (
	mediaFixed      = 0xF8
	sectorsPerTrack = 63
	heads           = 255
	noLabel         = "NO NAME"

	fsInfoLeadSig   = 0x41615252
	fsInfoStrucSig  = 0x61417272
	fsInfoTrailSig  = 0xAA550000
	fsInfoUnknown   = 0xFFFFFFFF
	defaultOEMName  = "MSWIN4.1"
	defaultVolumeID = 0x12345678
)

// boot code placed after the BPB: int 18h then spin
var bootStub = []byte{0xCD, 0x18, 0xEB, 0xFE}

// Options controls how a volume is formatted and stamped
type Options struct {
	// Type forces the FAT variant, Auto picks by size
	Type Type
	// Label is the volume label, up to 11 characters
	Label string
	// OEMName is written to the boot sector
	OEMName string
	// VolumeID is the volume serial number
	VolumeID uint32
	// HiddenSectors is the LBA of the partition holding the volume
	HiddenSectors uint32
	// ModTime stamps every directory entry
	ModTime time.Time
}

func (o Options) hasLabel() bool {
	return o.Label != "" && o.Label != noLabel
}

func (o Options) withDefaults() Options {
	if o.OEMName == "" {
		o.OEMName = defaultOEMName
	}
	if o.VolumeID == 0 {
		o.VolumeID = defaultVolumeID
	}
	if o.ModTime.IsZero() {
		o.ModTime = dosEpoch
	}
	return o
}

// Format creates an empty volume of size bytes
func Format(size int64, opts Options) (*Volume, error) {
	if size <= 0 || size%SectorSize != 0 {
		return nil, &imgerr.LayoutError{Reason: "volume size must be a positive multiple of 512", Required: roundUpSector(size), Available: size}
	}
	if size/SectorSize > math.MaxUint32 {
		return nil, &imgerr.LayoutError{Reason: "volume size exceeds the FAT32 limit", Required: size, Available: math.MaxUint32 * SectorSize}
	}
	opts = opts.withDefaults()

	label, err := labelBytes(opts.Label)
	if err != nil {
		return nil, imgerr.Layoutf("%v", err)
	}
	if !opts.hasLabel() {
		label, _ = labelBytes(noLabel)
	}

	g, err := NewGeometry(uint32(size/SectorSize), opts.Type)
	if err != nil {
		return nil, err
	}

	v := &Volume{
		buf:      make([]byte, size),
		geo:      g,
		modTime:  opts.ModTime,
		nextFree: 2,
		free:     g.Clusters,
	}

	v.writeBootSector(opts, label)
	if g.Type == FAT32 {
		copy(v.buf[fat32BackupBoot*SectorSize:], v.buf[:SectorSize])
	}

	v.setFAT(0, 0x0FFFFF00|mediaFixed)
	v.setFAT(1, g.eoc())
	if g.Type == FAT32 {
		v.setFAT(fat32RootClust, g.eoc())
		v.free--
		v.nextFree = fat32RootClust + 1
	}

	if opts.hasLabel() {
		e := dirEntry{attr: attrVolumeID}
		copy(e.name[:], label[:])
		if _, err := v.addEntry(v.rootCluster(), e); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (v *Volume) writeBootSector(opts Options, label [11]byte) {
	g := v.geo
	bs := v.buf[:SectorSize]

	if g.Type == FAT32 {
		copy(bs[0:3], []byte{0xEB, 0x58, 0x90})
	} else {
		copy(bs[0:3], []byte{0xEB, 0x3C, 0x90})
	}
	oem := []byte("        ")
	copy(oem, opts.OEMName)
	copy(bs[3:11], oem)

	le := binary.LittleEndian
	le.PutUint16(bs[11:], SectorSize)
	bs[13] = g.SectorsPerCluster
	le.PutUint16(bs[14:], g.ReservedSectors)
	bs[16] = numFATs
	le.PutUint16(bs[17:], g.RootEntries)
	if g.Type != FAT32 && g.TotalSectors < 0x10000 {
		le.PutUint16(bs[19:], uint16(g.TotalSectors))
	} else {
		le.PutUint32(bs[32:], g.TotalSectors)
	}
	bs[21] = mediaFixed
	le.PutUint16(bs[24:], sectorsPerTrack)
	le.PutUint16(bs[26:], heads)
	le.PutUint32(bs[28:], opts.HiddenSectors)

	ext := 36
	fsType := "FAT12   "
	switch g.Type {
	case FAT16:
		fsType = "FAT16   "
	case FAT32:
		fsType = "FAT32   "
		le.PutUint32(bs[36:], g.FATSectors)
		le.PutUint32(bs[44:], fat32RootClust)
		le.PutUint16(bs[48:], fat32FSInfo)
		le.PutUint16(bs[50:], fat32BackupBoot)
		ext = 64
	}
	if g.Type != FAT32 {
		le.PutUint16(bs[22:], uint16(g.FATSectors))
	}
	bs[ext] = 0x80
	bs[ext+2] = 0x29
	le.PutUint32(bs[ext+3:], opts.VolumeID)
	copy(bs[ext+7:ext+18], label[:])
	copy(bs[ext+18:ext+26], fsType)
	copy(bs[ext+26:], bootStub)

	bs[510] = 0x55
	bs[511] = 0xAA
}

// writeFSInfo refreshes the FAT32 free cluster hints in both FSInfo copies
func (v *Volume) writeFSInfo() {
	if v.geo.Type != FAT32 {
		return
	}
	le := binary.LittleEndian
	for _, sector := range []int64{fat32FSInfo, fat32BackupBoot + fat32FSInfo} {
		fi := v.buf[sector*SectorSize : (sector+1)*SectorSize]
		le.PutUint32(fi[0:], fsInfoLeadSig)
		le.PutUint32(fi[484:], fsInfoStrucSig)
		le.PutUint32(fi[488:], v.free)
		if v.free == 0 {
			le.PutUint32(fi[492:], fsInfoUnknown)
		} else {
			le.PutUint32(fi[492:], v.nextFree)
		}
		le.PutUint32(fi[508:], fsInfoTrailSig)
	}
}
