package manifest

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/elos-os/bootimg/fat"
	"github.com/elos-os/bootimg/imgerr"
	"github.com/elos-os/bootimg/log"
	"github.com/spf13/afero"
)

// Resolver expands declarations against a source filesystem
type Resolver struct {
	fs      afero.Fs
	staging string
	log     *log.Logger
}

// NewResolver returns a Resolver reading sources from fs
func NewResolver(fs afero.Fs) *Resolver {
	return &Resolver{fs: fs, log: log.Default()}
}

// SetStagingDir enables the staging mirror: after a successful resolution
// every destination directory is created below dir
func (r *Resolver) SetStagingDir(dir string) {
	r.staging = dir
}

// SetLogger replaces the default logger
func (r *Resolver) SetLogger(l *log.Logger) {
	r.log = l
}

// Resolve turns declarations into a BuildSet. Resolution is all or nothing:
// on error no set is returned.
func (r *Resolver) Resolve(decls []Declaration) (*BuildSet, error) {
	dests := make([]string, len(decls))
	for i, d := range decls {
		dest, err := cleanDest(d.Dest)
		if err != nil {
			return nil, err
		}
		dests[i] = dest
	}

	set := &BuildSet{}
	for i, d := range decls {
		var entries []Entry
		var err error
		switch s := d.Source.(type) {
		case Literal:
			entries, err = r.resolveLiteral(s, dests[i])
		case Glob:
			entries, err = r.resolveGlob(s, dests[i])
		default:
			err = imgerr.Resolutionf(d.Dest, "unsupported source %v", d.Source)
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			r.log.Debug("resolved %s -> %s", e.Source, e.Dest)
		}
		set.Entries = append(set.Entries, entries...)
	}

	if err := checkConflicts(set); err != nil {
		return nil, err
	}

	r.mirror(set)
	return set, nil
}

func cleanDest(dest string) (string, error) {
	if strings.HasPrefix(dest, "/") || strings.HasPrefix(dest, "\\") {
		return "", imgerr.Resolutionf(dest, "destination must be relative to the volume root")
	}
	dest = strings.TrimRight(strings.ReplaceAll(dest, "\\", "/"), "/")
	if dest == "" {
		return "", imgerr.Resolutionf(dest, "empty destination")
	}
	for _, part := range strings.Split(dest, "/") {
		if part == "" || part == "." || part == ".." {
			return "", imgerr.Resolutionf(dest, "invalid path component %q", part)
		}
	}
	if err := fat.ValidName(dest); err != nil {
		return "", imgerr.Resolutionf(dest, "%v", err)
	}
	return dest, nil
}

func (r *Resolver) resolveLiteral(l Literal, dest string) ([]Entry, error) {
	info, err := r.fs.Stat(l.Path)
	if os.IsNotExist(err) {
		return nil, imgerr.Resolutionf(l.Path, "source file does not exist")
	}
	if err != nil {
		return nil, imgerr.IO("stat", l.Path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, imgerr.Resolutionf(l.Path, "source is not a regular file")
	}
	return []Entry{{Source: l.Path, Dest: dest, Size: info.Size()}}, nil
}

func (r *Resolver) resolveGlob(g Glob, destDir string) ([]Entry, error) {
	var matches []string
	var err error
	if g.Recursive {
		matches, err = r.walkGlob(g.Pattern)
	} else {
		matches, err = afero.Glob(r.fs, g.Pattern)
		if err != nil {
			err = imgerr.Resolutionf(g.Pattern, "%v", err)
		}
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var entries []Entry
	for _, m := range matches {
		info, err := r.fs.Stat(m)
		if err != nil {
			return nil, imgerr.IO("stat", m, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		name := filepath.Base(m)
		if _, err := fat.ShortName(name); err != nil {
			return nil, imgerr.Resolutionf(m, "%v", err)
		}
		entries = append(entries, Entry{Source: m, Dest: path.Join(destDir, name), Size: info.Size()})
	}
	if len(entries) == 0 {
		r.log.Debug("pattern %s matched no files", g)
	}
	return entries, nil
}

// walkGlob matches the last element of pattern against every file below
// the pattern's directory
func (r *Resolver) walkGlob(pattern string) ([]string, error) {
	dir, base := filepath.Split(pattern)
	if strings.ContainsAny(dir, "*?[") {
		return nil, imgerr.Resolutionf(pattern, "recursive patterns may only use wildcards in the last element")
	}
	if _, err := filepath.Match(base, ""); err != nil {
		return nil, imgerr.Resolutionf(pattern, "%v", err)
	}
	if dir == "" {
		dir = "."
	}

	var matches []string
	err := afero.Walk(r.fs, dir, func(hostpath string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		if ok, _ := filepath.Match(base, info.Name()); ok {
			matches = append(matches, hostpath)
		}
		return nil
	})
	if err != nil {
		return nil, imgerr.IO("walk", dir, err)
	}
	return matches, nil
}

// checkConflicts rejects duplicate destinations and files that are also
// needed as directories, comparing names the way FAT does
func checkConflicts(set *BuildSet) error {
	files := map[string]Entry{}
	for _, e := range set.Entries {
		key := strings.ToUpper(e.Dest)
		if prev, ok := files[key]; ok {
			return imgerr.Resolutionf(e.Dest, "duplicate destination (from %s and %s)", prev.Source, e.Source)
		}
		files[key] = e
	}
	for _, d := range set.Dirs() {
		if e, ok := files[strings.ToUpper(d)]; ok {
			return imgerr.Resolutionf(d, "destination is both a file (from %s) and a directory", e.Source)
		}
	}
	return nil
}

// mirror creates the destination directories below the staging dir.
// Failures are logged, never returned.
func (r *Resolver) mirror(set *BuildSet) {
	if r.staging == "" {
		return
	}
	for _, d := range set.Dirs() {
		p := filepath.Join(r.staging, filepath.FromSlash(d))
		if err := r.fs.MkdirAll(p, 0755); err != nil {
			r.log.Warn("staging mirror: %v", err)
		}
	}
}

// Stage copies every entry of set below dir, creating the destination
// tree on the resolver's filesystem
func (r *Resolver) Stage(dir string, set *BuildSet) error {
	for _, d := range set.Dirs() {
		p := filepath.Join(dir, filepath.FromSlash(d))
		if err := r.fs.MkdirAll(p, 0755); err != nil {
			return imgerr.IO("mkdir", p, err)
		}
	}
	for _, e := range set.Entries {
		if err := r.copyFile(e.Source, filepath.Join(dir, filepath.FromSlash(e.Dest))); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) copyFile(src, dst string) error {
	in, err := r.fs.Open(src)
	if err != nil {
		return imgerr.IO("open", src, err)
	}
	defer in.Close()
	if err := afero.WriteReader(r.fs, dst, in); err != nil {
		return imgerr.IO("copy", dst, fmt.Errorf("from %s: %w", src, err))
	}
	return nil
}
