package slice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExcludeWhitespaces(t *testing.T) {
	arr := []string{
		" a.efi:EFI/BOOT/BOOTX64.EFI", " ", "res/*.psf:RES ", "", "\t",
	}

	assert.Equal(t, []string{"a.efi:EFI/BOOT/BOOTX64.EFI", "res/*.psf:RES"}, ExcludeWhitespaces(arr))
	assert.Empty(t, ExcludeWhitespaces(nil))
}
