package manifest

import (
	"strings"

	"github.com/elos-os/bootimg/types"
)

// Source is where the bytes of one or more entries come from: a Literal
// path or a Glob pattern
type Source interface {
	isSource()
	String() string
}

// Literal names exactly one host file
type Literal struct {
	Path string
}

func (Literal) isSource() {}

func (l Literal) String() string {
	return l.Path
}

// Glob matches zero or more host files
type Glob struct {
	Pattern   string
	Recursive bool
}

func (Glob) isSource() {}

func (g Glob) String() string {
	if g.Recursive {
		return g.Pattern + " (recursive)"
	}
	return g.Pattern
}

// ParseSource returns a Glob when s contains a wildcard, else a Literal
func ParseSource(s string, recursive bool) Source {
	if strings.ContainsAny(s, "*?[") {
		return Glob{Pattern: s, Recursive: recursive}
	}
	return Literal{Path: s}
}

// Declaration pairs a source with its destination inside the volume. For
// a Glob, Dest names the destination directory.
type Declaration struct {
	Source Source
	Dest   string
}

// FromConfig converts configured manifest entries into declarations
func FromConfig(entries []types.ManifestEntry) []Declaration {
	decls := make([]Declaration, 0, len(entries))
	for _, e := range entries {
		decls = append(decls, Declaration{
			Source: ParseSource(e.Source, e.Recursive),
			Dest:   e.Dest,
		})
	}
	return decls
}
