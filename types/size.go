package types

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-errors/errors"
)

// ParseSize converts a size with an optional k, m or g suffix into bytes
func ParseSize(size string) (int64, error) {
	size = strings.TrimSpace(size)
	f := func(c rune) bool {
		return !unicode.IsNumber(c)
	}
	unitsIndex := strings.IndexFunc(size, f)
	var mul int64
	if unitsIndex < 0 {
		mul = 1
		unitsIndex = len(size)
	} else if unitsIndex == 0 {
		return 0, errors.New("invalid size " + size)
	} else {
		units := strings.ToLower(size[unitsIndex:])
		switch units {
		case "k", "kib":
			mul = 1024
		case "m", "mib":
			mul = 1024 * 1024
		case "g", "gib":
			mul = 1024 * 1024 * 1024
		default:
			return 0, errors.New("invalid units " + units)
		}
	}
	n, err := strconv.ParseInt(size[:unitsIndex], 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, 1)
	}
	if n > math.MaxInt64/mul {
		return 0, errors.New("size out of range " + size)
	}
	return n * mul, nil
}

// ParseSectorSize parses size and rounds it up to a multiple of sectorSize
func ParseSectorSize(size string, sectorSize int64) (int64, error) {
	n, err := ParseSize(size)
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt64-sectorSize+1 {
		return 0, errors.New("size out of range " + size)
	}
	sectors := (n + sectorSize - 1) / sectorSize
	return sectors * sectorSize, nil
}
