package fat

import (
	"encoding/binary"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/elos-os/bootimg/imgerr"
)

const (
	attrReadOnly  = 0x01
	attrHidden    = 0x02
	attrSystem    = 0x04
	attrVolumeID  = 0x08
	attrDirectory = 0x10
	attrArchive   = 0x20
	attrLongName  = attrReadOnly | attrHidden | attrSystem | attrVolumeID

	entryFree    = 0xE5
	entryEndMark = 0x00
)

var dosEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Volume is a FAT filesystem held in memory
type Volume struct {
	buf      []byte
	geo      Geometry
	modTime  time.Time
	nextFree uint32
	free     uint32
}

type dirEntry struct {
	name    [11]byte
	attr    byte
	cluster uint32
	size    uint32
	modTime time.Time
}

// Type returns the FAT variant of the volume
func (v *Volume) Type() Type {
	return v.geo.Type
}

// Geometry returns the layout of the volume
func (v *Volume) Geometry() Geometry {
	return v.geo
}

// Size returns the volume size in bytes
func (v *Volume) Size() int64 {
	return int64(len(v.buf))
}

// FreeBytes returns the bytes still available to file data
func (v *Volume) FreeBytes() int64 {
	return int64(v.free) * v.geo.ClusterSize()
}

// SetModTime changes the timestamp stamped on new entries
func (v *Volume) SetModTime(t time.Time) {
	v.modTime = t
}

// Bytes returns the volume image
func (v *Volume) Bytes() []byte {
	v.writeFSInfo()
	return v.buf
}

func (v *Volume) rootCluster() uint32 {
	if v.geo.Type == FAT32 {
		return fat32RootClust
	}
	return 0
}

func (v *Volume) fatOffset(copyIndex int) int64 {
	return (int64(v.geo.ReservedSectors) + int64(copyIndex)*int64(v.geo.FATSectors)) * SectorSize
}

func (v *Volume) getFAT(c uint32) uint32 {
	fat := v.buf[v.fatOffset(0):]
	switch v.geo.Type {
	case FAT12:
		off := c + c/2
		w := uint32(binary.LittleEndian.Uint16(fat[off:]))
		if c&1 == 1 {
			return w >> 4
		}
		return w & 0xFFF
	case FAT16:
		return uint32(binary.LittleEndian.Uint16(fat[c*2:]))
	}
	return binary.LittleEndian.Uint32(fat[c*4:]) & 0x0FFFFFFF
}

// setFAT writes entry c in every FAT copy
func (v *Volume) setFAT(c uint32, val uint32) {
	for i := 0; i < numFATs; i++ {
		fat := v.buf[v.fatOffset(i):]
		switch v.geo.Type {
		case FAT12:
			val &= 0xFFF
			off := c + c/2
			w := binary.LittleEndian.Uint16(fat[off:])
			if c&1 == 1 {
				w = (w & 0x000F) | uint16(val<<4)
			} else {
				w = (w & 0xF000) | uint16(val)
			}
			binary.LittleEndian.PutUint16(fat[off:], w)
		case FAT16:
			binary.LittleEndian.PutUint16(fat[c*2:], uint16(val))
		case FAT32:
			old := binary.LittleEndian.Uint32(fat[c*4:])
			binary.LittleEndian.PutUint32(fat[c*4:], (old&0xF0000000)|(val&0x0FFFFFFF))
		}
	}
}

// chain returns the clusters of the chain starting at first
func (v *Volume) chain(first uint32) ([]uint32, error) {
	var clusters []uint32
	c := first
	for c >= 2 && !v.geo.isEOC(c) {
		if c > v.geo.Clusters+1 || len(clusters) > int(v.geo.Clusters) {
			return nil, imgerr.Layoutf("corrupt cluster chain at %d", c)
		}
		clusters = append(clusters, c)
		c = v.getFAT(c)
	}
	return clusters, nil
}

// allocate reserves n clusters as one chain, zeroed, and returns them
func (v *Volume) allocate(n uint32) ([]uint32, error) {
	if n > v.free {
		return nil, &imgerr.CapacityError{Path: "/", Required: int64(n) * v.geo.ClusterSize(), Available: v.FreeBytes()}
	}
	clusters := make([]uint32, 0, n)
	last := v.geo.Clusters + 1
	c := v.nextFree
	for scanned := uint32(0); uint32(len(clusters)) < n && scanned < v.geo.Clusters; scanned++ {
		if c < 2 || c > last {
			c = 2
		}
		if v.getFAT(c) == 0 {
			clusters = append(clusters, c)
		}
		c++
	}
	if uint32(len(clusters)) < n {
		return nil, &imgerr.CapacityError{Path: "/", Required: int64(n) * v.geo.ClusterSize(), Available: int64(len(clusters)) * v.geo.ClusterSize()}
	}
	for i, c := range clusters {
		next := v.geo.eoc()
		if i+1 < len(clusters) {
			next = clusters[i+1]
		}
		v.setFAT(c, next)
		off := v.geo.clusterOffset(c)
		clear(v.buf[off : off+v.geo.ClusterSize()])
	}
	v.free -= n
	v.nextFree = c
	return clusters, nil
}

// dirSlots returns the byte offsets of every entry slot of a directory
func (v *Volume) dirSlots(dir uint32) ([]int64, error) {
	var slots []int64
	if dir == 0 {
		start := int64(v.geo.RootDirStart()) * SectorSize
		for i := int64(0); i < int64(v.geo.RootEntries); i++ {
			slots = append(slots, start+i*dirEntrySize)
		}
		return slots, nil
	}
	clusters, err := v.chain(dir)
	if err != nil {
		return nil, err
	}
	per := v.geo.ClusterSize() / dirEntrySize
	for _, c := range clusters {
		off := v.geo.clusterOffset(c)
		for i := int64(0); i < per; i++ {
			slots = append(slots, off+i*dirEntrySize)
		}
	}
	return slots, nil
}

// entries lists the live entries of a directory with their slot offsets
func (v *Volume) entries(dir uint32) ([]dirEntry, error) {
	slots, err := v.dirSlots(dir)
	if err != nil {
		return nil, err
	}
	var out []dirEntry
	for _, off := range slots {
		raw := v.buf[off : off+dirEntrySize]
		if raw[0] == entryEndMark {
			break
		}
		if raw[0] == entryFree || raw[11]&attrLongName == attrLongName {
			continue
		}
		out = append(out, decodeEntry(raw))
	}
	return out, nil
}

// freeSlot finds the slot a new entry of dir goes to, or -1 when the
// directory must grow
func (v *Volume) freeSlot(dir uint32) (int64, error) {
	slots, err := v.dirSlots(dir)
	if err != nil {
		return 0, err
	}
	for _, off := range slots {
		if b := v.buf[off]; b == entryEndMark || b == entryFree {
			return off, nil
		}
	}
	return -1, nil
}

func (v *Volume) addEntry(dir uint32, e dirEntry) (int64, error) {
	off, err := v.freeSlot(dir)
	if err != nil {
		return 0, err
	}
	if off < 0 {
		if dir == 0 {
			return 0, &imgerr.CapacityError{Path: "/", Required: int64(v.geo.RootEntries+1) * dirEntrySize, Available: int64(v.geo.RootEntries) * dirEntrySize}
		}
		clusters, err := v.chain(dir)
		if err != nil {
			return 0, err
		}
		grown, err := v.allocate(1)
		if err != nil {
			return 0, err
		}
		v.setFAT(clusters[len(clusters)-1], grown[0])
		off = v.geo.clusterOffset(grown[0])
	}
	if e.modTime.IsZero() {
		e.modTime = v.modTime
	}
	encodeEntry(v.buf[off:off+dirEntrySize], e)
	return off, nil
}

// lookup finds name in dir
func (v *Volume) lookup(dir uint32, name [11]byte) (dirEntry, bool, error) {
	list, err := v.entries(dir)
	if err != nil {
		return dirEntry{}, false, err
	}
	for _, e := range list {
		if e.attr&attrVolumeID == 0 && e.name == name {
			return e, true, nil
		}
	}
	return dirEntry{}, false, nil
}

func splitPath(p string) ([]string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.Trim(path.Clean("/"+p), "/")
	if p == "" {
		return nil, nil
	}
	return strings.Split(p, "/"), nil
}

func shortNames(parts []string) ([][11]byte, error) {
	names := make([][11]byte, len(parts))
	for i, part := range parts {
		sn, err := ShortName(part)
		if err != nil {
			return nil, imgerr.Resolutionf(strings.Join(parts, "/"), "%v", err)
		}
		names[i] = sn
	}
	return names, nil
}

// Mkdir creates the directory p and any missing parents. Existing
// directories are left untouched.
func (v *Volume) Mkdir(p string) error {
	parts, err := splitPath(p)
	if err != nil {
		return err
	}
	names, err := shortNames(parts)
	if err != nil {
		return err
	}
	need, _, err := v.pathDemand(names)
	if err != nil {
		return err
	}
	if need > v.free {
		return &imgerr.CapacityError{Path: p, Required: int64(need) * v.geo.ClusterSize(), Available: v.FreeBytes()}
	}
	_, err = v.mkdirAll(names)
	return err
}

// pathDemand returns the clusters needed to create the missing directories
// of names, and the deepest existing directory
func (v *Volume) pathDemand(names [][11]byte) (uint32, uint32, error) {
	dir := v.rootCluster()
	for i, n := range names {
		e, ok, err := v.lookup(dir, n)
		if err != nil {
			return 0, 0, err
		}
		if !ok {
			need := uint32(len(names) - i)
			off, err := v.freeSlot(dir)
			if err != nil {
				return 0, 0, err
			}
			if off < 0 {
				if dir == 0 {
					return 0, 0, &imgerr.CapacityError{Path: "/", Required: int64(v.geo.RootEntries+1) * dirEntrySize, Available: int64(v.geo.RootEntries) * dirEntrySize}
				}
				need++
			}
			return need, dir, nil
		}
		if e.attr&attrDirectory == 0 {
			return 0, 0, imgerr.Layoutf("%s is a file, not a directory", displayName(n[:]))
		}
		dir = e.cluster
		if dir == 0 {
			dir = v.rootCluster()
		}
	}
	return 0, dir, nil
}

func (v *Volume) mkdirAll(names [][11]byte) (uint32, error) {
	dir := v.rootCluster()
	for _, n := range names {
		e, ok, err := v.lookup(dir, n)
		if err != nil {
			return 0, err
		}
		if ok {
			if e.attr&attrDirectory == 0 {
				return 0, imgerr.Layoutf("%s is a file, not a directory", displayName(n[:]))
			}
			dir = e.cluster
			continue
		}
		clusters, err := v.allocate(1)
		if err != nil {
			return 0, err
		}
		child := clusters[0]
		parentRef := dir
		if dir == v.rootCluster() {
			parentRef = 0
		}
		dot := dirEntry{attr: attrDirectory, cluster: child, modTime: v.modTime}
		copy(dot.name[:], ".          ")
		dotdot := dirEntry{attr: attrDirectory, cluster: parentRef, modTime: v.modTime}
		copy(dotdot.name[:], "..         ")
		off := v.geo.clusterOffset(child)
		encodeEntry(v.buf[off:off+dirEntrySize], dot)
		encodeEntry(v.buf[off+dirEntrySize:off+2*dirEntrySize], dotdot)

		if _, err := v.addEntry(dir, dirEntry{name: n, attr: attrDirectory, cluster: child}); err != nil {
			return 0, err
		}
		dir = child
	}
	return dir, nil
}

// WriteFile stores data at p, creating parent directories. Volumes are
// write-once, an existing name is a LayoutError. Nothing is written when
// the volume cannot hold the file.
func (v *Volume) WriteFile(p string, data []byte) error {
	parts, err := splitPath(p)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return imgerr.Resolutionf(p, "destination names the root directory")
	}
	names, err := shortNames(parts)
	if err != nil {
		return err
	}
	parents, name := names[:len(names)-1], names[len(names)-1]

	need, deepest, err := v.pathDemand(parents)
	if err != nil {
		return err
	}
	if need == 0 {
		if _, ok, err := v.lookup(deepest, name); err != nil {
			return err
		} else if ok {
			return imgerr.Layoutf("%s already exists", strings.Join(parts, "/"))
		}
		off, err := v.freeSlot(deepest)
		if err != nil {
			return err
		}
		if off < 0 {
			if deepest == 0 {
				return &imgerr.CapacityError{Path: p, Required: int64(v.geo.RootEntries+1) * dirEntrySize, Available: int64(v.geo.RootEntries) * dirEntrySize}
			}
			need++
		}
	}
	cs := v.geo.ClusterSize()
	fileClusters := uint32((int64(len(data)) + cs - 1) / cs)
	if need+fileClusters > v.free {
		return &imgerr.CapacityError{Path: p, Required: int64(need+fileClusters) * cs, Available: v.FreeBytes()}
	}
	if int64(len(data)) > 0xFFFFFFFF {
		return &imgerr.CapacityError{Path: p, Required: int64(len(data)), Available: 0xFFFFFFFF}
	}

	dir, err := v.mkdirAll(parents)
	if err != nil {
		return err
	}
	e := dirEntry{name: name, attr: attrArchive, size: uint32(len(data))}
	if fileClusters > 0 {
		clusters, err := v.allocate(fileClusters)
		if err != nil {
			return err
		}
		e.cluster = clusters[0]
		for i, c := range clusters {
			off := v.geo.clusterOffset(c)
			start := int64(i) * cs
			end := start + cs
			if end > int64(len(data)) {
				end = int64(len(data))
			}
			copy(v.buf[off:], data[start:end])
		}
	}
	_, err = v.addEntry(dir, e)
	return err
}

func decodeEntry(raw []byte) dirEntry {
	le := binary.LittleEndian
	var e dirEntry
	copy(e.name[:], raw[0:11])
	e.attr = raw[11]
	e.cluster = uint32(le.Uint16(raw[20:]))<<16 | uint32(le.Uint16(raw[26:]))
	e.size = le.Uint32(raw[28:])
	e.modTime = fromDOSTime(le.Uint16(raw[24:]), le.Uint16(raw[22:]))
	return e
}

func encodeEntry(raw []byte, e dirEntry) {
	le := binary.LittleEndian
	copy(raw[0:11], e.name[:])
	raw[11] = e.attr
	date, tm := toDOSTime(e.modTime)
	if e.attr&attrVolumeID == 0 {
		le.PutUint16(raw[14:], tm)
		le.PutUint16(raw[16:], date)
		le.PutUint16(raw[18:], date)
	}
	le.PutUint16(raw[20:], uint16(e.cluster>>16))
	le.PutUint16(raw[22:], tm)
	le.PutUint16(raw[24:], date)
	le.PutUint16(raw[26:], uint16(e.cluster))
	le.PutUint32(raw[28:], e.size)
}

func toDOSTime(t time.Time) (uint16, uint16) {
	t = t.UTC()
	if t.Before(dosEpoch) {
		t = dosEpoch
	}
	if t.Year() > 2107 {
		t = time.Date(2107, time.December, 31, 23, 59, 58, 0, time.UTC)
	}
	date := uint16(t.Year()-1980)<<9 | uint16(t.Month())<<5 | uint16(t.Day())
	tm := uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
	return date, tm
}

func fromDOSTime(date, tm uint16) time.Time {
	if date == 0 {
		return dosEpoch
	}
	return time.Date(int(date>>9)+1980, time.Month(date>>5&0x0F), int(date&0x1F),
		int(tm>>11), int(tm>>5&0x3F), int(tm&0x1F)*2, 0, time.UTC)
}

func (e dirEntry) String() string {
	return fmt.Sprintf("%s attr=%#02x cluster=%d size=%d", displayName(e.name[:]), e.attr, e.cluster, e.size)
}
