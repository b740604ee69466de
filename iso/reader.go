package iso

import (
	"encoding/binary"
	"strings"

	"github.com/elos-os/bootimg/imgerr"
)

const (
	descriptorStart = 16
	standardID      = "CD001"
	elToritoID      = "EL TORITO SPECIFICATION"

	vdBootRecord = 0
	vdPrimary    = 1
	vdTerminator = 255

	platformEFI = 0xEF
	bootable    = 0x88
)

// BootEntry is the default entry of the El Torito boot catalog
type BootEntry struct {
	Platform  byte
	Bootable  bool
	Emulation byte
	// LoadLBA is the 2048 byte block holding the boot image
	LoadLBA uint32
	// Sectors is the 512 byte sector count recorded in the catalog
	Sectors uint16
}

// PlatformName returns a short name for the entry's platform id
func (e BootEntry) PlatformName() string {
	switch e.Platform {
	case 0:
		return "x86"
	case 1:
		return "ppc"
	case 2:
		return "mac"
	case platformEFI:
		return "efi"
	}
	return "unknown"
}

// Info summarizes the volume descriptors of an ISO image
type Info struct {
	VolumeID   string
	Blocks     uint32
	CatalogLBA uint32
	Boot       *BootEntry
}

// Inspect decodes the primary volume descriptor and, when present, the El
// Torito boot catalog of data
func Inspect(data []byte) (*Info, error) {
	info := &Info{}
	le := binary.LittleEndian
	primary := false
	for lba := descriptorStart; ; lba++ {
		if (lba+1)*BlockSize > len(data) {
			return nil, imgerr.Layoutf("volume descriptor set is not terminated")
		}
		vd := data[lba*BlockSize : (lba+1)*BlockSize]
		if string(vd[1:6]) != standardID {
			return nil, imgerr.Layoutf("no ISO9660 volume descriptor at block %d", lba)
		}
		switch vd[0] {
		case vdPrimary:
			primary = true
			info.VolumeID = strings.TrimRight(string(vd[40:72]), " \x00")
			info.Blocks = le.Uint32(vd[80:])
		case vdBootRecord:
			if strings.TrimRight(string(vd[7:39]), "\x00") == elToritoID {
				info.CatalogLBA = le.Uint32(vd[71:])
			}
		}
		if vd[0] == vdTerminator {
			break
		}
	}
	if !primary {
		return nil, imgerr.Layoutf("no primary volume descriptor")
	}
	if info.CatalogLBA == 0 {
		return info, nil
	}

	off := int(info.CatalogLBA) * BlockSize
	if off+64 > len(data) {
		return nil, imgerr.Layoutf("boot catalog at block %d is outside the image", info.CatalogLBA)
	}
	catalog := data[off : off+64]
	if catalog[0] != 1 || catalog[30] != 0x55 || catalog[31] != 0xAA {
		return nil, imgerr.Layoutf("invalid boot catalog validation entry")
	}
	var sum uint16
	for i := 0; i < 32; i += 2 {
		sum += le.Uint16(catalog[i:])
	}
	if sum != 0 {
		return nil, imgerr.Layoutf("boot catalog checksum mismatch")
	}
	entry := catalog[32:]
	info.Boot = &BootEntry{
		Platform:  catalog[1],
		Bootable:  entry[0] == bootable,
		Emulation: entry[1] & 0x0F,
		Sectors:   le.Uint16(entry[6:]),
		LoadLBA:   le.Uint32(entry[8:]),
	}
	return info, nil
}
