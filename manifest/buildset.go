package manifest

import (
	"path"
	"strings"

	"github.com/elos-os/bootimg/fat"
)

// Entry is one resolved file: a host source copied to Dest
type Entry struct {
	Source string
	Dest   string
	Size   int64
}

// BuildSet is the ordered list of files to place in a volume
type BuildSet struct {
	Entries []Entry
}

// ContentSize is the sum of all source file sizes
func (b *BuildSet) ContentSize() int64 {
	var total int64
	for _, e := range b.Entries {
		total += e.Size
	}
	return total
}

// Dirs returns every directory implied by the entries, parents first,
// in the order they are first needed
func (b *BuildSet) Dirs() []string {
	seen := map[string]bool{}
	var dirs []string
	for _, e := range b.Entries {
		parts := strings.Split(e.Dest, "/")
		for i := 1; i < len(parts); i++ {
			d := strings.Join(parts[:i], "/")
			key := strings.ToUpper(d)
			if !seen[key] {
				seen[key] = true
				dirs = append(dirs, d)
			}
		}
	}
	return dirs
}

// Usage describes the volume space the set needs
func (b *BuildSet) Usage() fat.Usage {
	u := fat.Usage{Dirs: map[string]int{"": 0}}
	for _, d := range b.Dirs() {
		u.Dirs[strings.ToUpper(d)] = 0
	}
	for _, d := range b.Dirs() {
		u.Dirs[parentKey(d)]++
	}
	for _, e := range b.Entries {
		u.Files = append(u.Files, e.Size)
		u.Dirs[parentKey(e.Dest)]++
	}
	return u
}

func parentKey(p string) string {
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return strings.ToUpper(dir)
}
