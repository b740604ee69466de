package printer

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintColors(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	Infof("built %s", "boot.img")
	assert.Equal(t, "\033[34mbuilt boot.img\033[0m\n", buf.String())

	buf.Reset()
	Successf("ok")
	assert.Equal(t, "\033[32mok\033[0m\n", buf.String())
}

func TestPrintPlain(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetPlain(true)
	defer func() {
		SetOutput(os.Stdout)
		SetPlain(false)
	}()

	Warningf("careful")
	Errorf("failed: %d", 3)
	assert.Equal(t, "careful\nfailed: 3\n", buf.String())
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	err := JSON(map[string]int{"Entries": 2})
	assert.NoError(t, err)
	assert.Equal(t, "{\n  \"Entries\": 2\n}\n", buf.String())
	assert.Equal(t, &buf, Output())
}
