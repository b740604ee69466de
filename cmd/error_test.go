package cmd

import (
	"bytes"
	"errors"
	"testing"

	goerrors "github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
)

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	err := goerrors.New("boom")

	printError(&buf, err, false)
	assert.Equal(t, "\033[1;31mboom\033[0m\n", buf.String())

	buf.Reset()
	printError(&buf, err, true)
	assert.Contains(t, buf.String(), "boom")
	assert.Contains(t, buf.String(), "error_test.go")

	buf.Reset()
	printError(&buf, errors.New("plain"), true)
	assert.Equal(t, "\033[1;31mplain\033[0m\n", buf.String())
}

func TestWarn(t *testing.T) {
	var buf bytes.Buffer
	warn(&buf, "boot volume: %s", "unreadable")
	assert.Equal(t, "\033[1;33mboot volume: unreadable\033[0m\n", buf.String())
}
