package imgerr

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
		code int
	}{
		{"nil", nil, KindUnknown, 0},
		{"resolution", Resolutionf("boot.efi", "missing"), KindResolution, 2},
		{"capacity", &CapacityError{Path: "/EFI", Required: 10, Available: 1}, KindCapacity, 3},
		{"layout", Layoutf("overlap"), KindLayout, 4},
		{"io", IO("write", "out.img", os.ErrPermission), KindIO, 5},
		{"wrapped", fmt.Errorf("stage: %w", Resolutionf("a", "b")), KindResolution, 2},
		{"plain", errors.New("boom"), KindUnknown, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.code, ExitCode(tt.err))
		})
	}
}

func TestIOKeepsExistingIOError(t *testing.T) {
	inner := IO("read", "a", os.ErrNotExist)
	outer := IO("copy", "b", inner)

	assert.Same(t, inner, outer)
	assert.True(t, errors.Is(outer, os.ErrNotExist))
	assert.Nil(t, IO("noop", "x", nil))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "resolution error: boot.efi: file does not exist", Resolutionf("boot.efi", "file does not exist").Error())
	assert.Equal(t, "layout error: tail overlaps partition (required 10, available 5)", (&LayoutError{Reason: "tail overlaps partition", Required: 10, Available: 5}).Error())
	assert.Equal(t, "capacity error: EFI/BOOT needs 4096 bytes, 0 available", (&CapacityError{Path: "EFI/BOOT", Required: 4096}).Error())
}
