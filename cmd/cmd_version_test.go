package cmd_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCommand(t *testing.T) {
	out, _, err := runRoot(t, "version")

	assert.Nil(t, err)
	assert.Contains(t, out, "bootimg version: ")
	assert.Contains(t, out, "Go version: ")
}
