package image

import (
	"fmt"
	"strings"

	"github.com/elos-os/bootimg/types"
)

// Kind is the shape of the produced image
type Kind int

// Image kinds
const (
	KindGPT Kind = iota
	KindISO
	KindFAT
)

func (k Kind) String() string {
	switch k {
	case KindISO:
		return types.FormatISO
	case KindFAT:
		return types.FormatFAT
	}
	return types.FormatGPT
}

// ParseKind converts a configured format into a Kind, empty means gpt
func ParseKind(format string) (Kind, error) {
	switch strings.ToLower(format) {
	case "", types.FormatGPT:
		return KindGPT, nil
	case types.FormatISO:
		return KindISO, nil
	case types.FormatFAT:
		return KindFAT, nil
	}
	return KindGPT, fmt.Errorf("unknown image format %q, want gpt, iso or fat", format)
}
