package fat

import (
	"encoding/binary"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/elos-os/bootimg/imgerr"
)

// DirEntry describes a file or directory stored on a volume
type DirEntry struct {
	Name    string
	IsDir   bool
	Size    int64
	Cluster uint32
	ModTime time.Time
}

// Open parses an existing volume image. The returned Volume shares buf and
// can be extended with Mkdir and WriteFile.
func Open(buf []byte) (*Volume, error) {
	if len(buf) < SectorSize || len(buf)%SectorSize != 0 {
		return nil, imgerr.Layoutf("volume size %d is not a multiple of 512", len(buf))
	}
	bs := buf[:SectorSize]
	if bs[510] != 0x55 || bs[511] != 0xAA {
		return nil, imgerr.Layoutf("invalid boot sector signature")
	}
	le := binary.LittleEndian
	if le.Uint16(bs[11:]) != SectorSize {
		return nil, imgerr.Layoutf("unsupported sector size %d", le.Uint16(bs[11:]))
	}
	if bs[16] != numFATs {
		return nil, imgerr.Layoutf("unsupported FAT count %d", bs[16])
	}

	g := Geometry{
		SectorsPerCluster: bs[13],
		ReservedSectors:   le.Uint16(bs[14:]),
		RootEntries:       le.Uint16(bs[17:]),
		TotalSectors:      uint32(le.Uint16(bs[19:])),
		FATSectors:        uint32(le.Uint16(bs[22:])),
	}
	if g.TotalSectors == 0 {
		g.TotalSectors = le.Uint32(bs[32:])
	}
	if g.FATSectors == 0 {
		g.FATSectors = le.Uint32(bs[36:])
	}
	if g.SectorsPerCluster == 0 || g.ReservedSectors == 0 || g.FATSectors == 0 {
		return nil, imgerr.Layoutf("invalid BIOS parameter block")
	}
	if int64(g.TotalSectors)*SectorSize > int64(len(buf)) {
		return nil, &imgerr.LayoutError{Reason: "volume is truncated", Required: int64(g.TotalSectors) * SectorSize, Available: int64(len(buf))}
	}
	if g.FirstDataSector() >= g.TotalSectors {
		return nil, imgerr.Layoutf("invalid BIOS parameter block")
	}
	g.Clusters = (g.TotalSectors - g.FirstDataSector()) / uint32(g.SectorsPerCluster)
	switch {
	case g.Clusters < minFAT16Clusters:
		g.Type = FAT12
	case g.Clusters < minFAT32Clusters:
		g.Type = FAT16
	default:
		g.Type = FAT32
	}
	if g.Type == FAT32 && le.Uint32(bs[44:]) != fat32RootClust {
		return nil, imgerr.Layoutf("unsupported root cluster %d", le.Uint32(bs[44:]))
	}

	v := &Volume{buf: buf[:int64(g.TotalSectors)*SectorSize], geo: g, modTime: dosEpoch, nextFree: 2}
	for c := uint32(2); c < g.Clusters+2; c++ {
		if v.getFAT(c) == 0 {
			v.free++
		}
	}
	return v, nil
}

// Label returns the volume label, from the root directory entry when
// present, else from the boot sector
func (v *Volume) Label() string {
	list, err := v.entries(v.rootCluster())
	if err == nil {
		for _, e := range list {
			if e.attr&attrVolumeID != 0 && e.attr&attrLongName != attrLongName {
				return strings.TrimRight(string(e.name[:]), " ")
			}
		}
	}
	off := 43
	if v.geo.Type == FAT32 {
		off = 71
	}
	return strings.TrimRight(string(v.buf[off:off+11]), " ")
}

// VolumeID returns the volume serial number
func (v *Volume) VolumeID() uint32 {
	off := 39
	if v.geo.Type == FAT32 {
		off = 67
	}
	return binary.LittleEndian.Uint32(v.buf[off:])
}

func (v *Volume) find(p string) (dirEntry, error) {
	parts, _ := splitPath(p)
	root := dirEntry{attr: attrDirectory, cluster: v.rootCluster(), modTime: dosEpoch}
	e := root
	for i, part := range parts {
		if e.attr&attrDirectory == 0 {
			return dirEntry{}, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
		}
		sn, err := ShortName(part)
		if err != nil {
			return dirEntry{}, &fs.PathError{Op: "open", Path: p, Err: fs.ErrInvalid}
		}
		next, ok, err := v.lookup(e.cluster, sn)
		if err != nil {
			return dirEntry{}, err
		}
		if !ok {
			return dirEntry{}, &fs.PathError{Op: "open", Path: strings.Join(parts[:i+1], "/"), Err: fs.ErrNotExist}
		}
		if next.attr&attrDirectory != 0 && next.cluster == 0 {
			next.cluster = v.rootCluster()
		}
		e = next
	}
	return e, nil
}

func toDirEntry(e dirEntry) DirEntry {
	return DirEntry{
		Name:    displayName(e.name[:]),
		IsDir:   e.attr&attrDirectory != 0,
		Size:    int64(e.size),
		Cluster: e.cluster,
		ModTime: e.modTime,
	}
}

// Stat describes the file or directory at p
func (v *Volume) Stat(p string) (DirEntry, error) {
	e, err := v.find(p)
	if err != nil {
		return DirEntry{}, err
	}
	if parts, _ := splitPath(p); len(parts) == 0 {
		return DirEntry{Name: "/", IsDir: true, Cluster: v.rootCluster(), ModTime: dosEpoch}, nil
	}
	return toDirEntry(e), nil
}

// ReadDir lists the directory at p in on-disk order, without the dot
// entries and the volume label
func (v *Volume) ReadDir(p string) ([]DirEntry, error) {
	e, err := v.find(p)
	if err != nil {
		return nil, err
	}
	if e.attr&attrDirectory == 0 {
		return nil, &fs.PathError{Op: "readdir", Path: p, Err: fs.ErrInvalid}
	}
	list, err := v.entries(e.cluster)
	if err != nil {
		return nil, err
	}
	var out []DirEntry
	for _, c := range list {
		if c.attr&attrVolumeID != 0 || c.name[0] == '.' {
			continue
		}
		out = append(out, toDirEntry(c))
	}
	return out, nil
}

// ReadFile returns the content of the file at p
func (v *Volume) ReadFile(p string) ([]byte, error) {
	e, err := v.find(p)
	if err != nil {
		return nil, err
	}
	if e.attr&attrDirectory != 0 {
		return nil, &fs.PathError{Op: "read", Path: p, Err: fs.ErrInvalid}
	}
	data := make([]byte, 0, e.size)
	if e.size == 0 {
		return data, nil
	}
	clusters, err := v.chain(e.cluster)
	if err != nil {
		return nil, err
	}
	cs := v.geo.ClusterSize()
	remaining := int64(e.size)
	for _, c := range clusters {
		n := cs
		if remaining < n {
			n = remaining
		}
		off := v.geo.clusterOffset(c)
		data = append(data, v.buf[off:off+n]...)
		remaining -= n
		if remaining == 0 {
			break
		}
	}
	if remaining != 0 {
		return nil, imgerr.Layoutf("%s: cluster chain shorter than file size", p)
	}
	return data, nil
}

// WalkFunc is called for every entry below the walked directory
type WalkFunc func(p string, e DirEntry) error

// Walk visits every file and directory of the volume, parents before
// children, in on-disk order
func (v *Volume) Walk(fn WalkFunc) error {
	return v.walk("", fn)
}

func (v *Volume) walk(dir string, fn WalkFunc) error {
	list, err := v.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range list {
		p := path.Join(dir, e.Name)
		if err := fn(p, e); err != nil {
			return err
		}
		if e.IsDir {
			if err := v.walk(p, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
