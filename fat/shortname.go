package fat

import (
	"errors"
	"fmt"
	"strings"
)

const shortNameSpecials = "!#$%&'()-@^_`{}~"

// ShortName converts name into the padded, upper case 8.3 directory entry
// form. Names that do not fit 8.3 are rejected rather than mangled.
func ShortName(name string) ([11]byte, error) {
	var sn [11]byte
	for i := range sn {
		sn[i] = ' '
	}

	if name == "" || name == "." || name == ".." {
		return sn, fmt.Errorf("invalid name %q", name)
	}

	base, ext := name, ""
	if i := strings.IndexByte(name, '.'); i >= 0 {
		base, ext = name[:i], name[i+1:]
		if strings.IndexByte(ext, '.') >= 0 {
			return sn, fmt.Errorf("%q has more than one dot", name)
		}
	}
	switch {
	case base == "":
		return sn, fmt.Errorf("%q has an empty base name", name)
	case len(base) > 8:
		return sn, fmt.Errorf("%q base name is longer than 8 characters", name)
	case len(ext) > 3:
		return sn, fmt.Errorf("%q extension is longer than 3 characters", name)
	}

	for i, c := range []byte(strings.ToUpper(base)) {
		if !validShortChar(c) {
			return sn, fmt.Errorf("%q contains invalid character %q", name, c)
		}
		sn[i] = c
	}
	for i, c := range []byte(strings.ToUpper(ext)) {
		if !validShortChar(c) {
			return sn, fmt.Errorf("%q contains invalid character %q", name, c)
		}
		sn[8+i] = c
	}
	if sn[0] == 0xE5 {
		sn[0] = 0x05
	}
	return sn, nil
}

// ValidName reports whether every component of a slash separated path is
// a valid 8.3 name
func ValidName(p string) error {
	if p == "" {
		return errors.New("empty path")
	}
	for _, part := range strings.Split(p, "/") {
		if _, err := ShortName(part); err != nil {
			return err
		}
	}
	return nil
}

func validShortChar(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte(shortNameSpecials, c) >= 0
}

// displayName renders a directory entry name as NAME.EXT
func displayName(sn []byte) string {
	b := make([]byte, 11)
	copy(b, sn)
	if b[0] == 0x05 {
		b[0] = 0xE5
	}
	base := strings.TrimRight(string(b[:8]), " ")
	ext := strings.TrimRight(string(b[8:11]), " ")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

func labelBytes(label string) ([11]byte, error) {
	var lb [11]byte
	for i := range lb {
		lb[i] = ' '
	}
	label = strings.ToUpper(label)
	if len(label) > 11 {
		return lb, fmt.Errorf("volume label %q is longer than 11 characters", label)
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		if c != ' ' && !validShortChar(c) {
			return lb, fmt.Errorf("volume label %q contains invalid character %q", label, c)
		}
		lb[i] = c
	}
	return lb, nil
}
