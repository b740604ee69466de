package cmd_test

import (
	"bytes"
	"testing"

	"github.com/elos-os/bootimg/cmd"
	"github.com/elos-os/bootimg/types"
)

// runRoot executes the root command with args and an isolated home
// directory, returning stdout and stderr
func runRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(types.DefaultConfigEnv, "")
	t.Setenv("SOURCE_DATE_EPOCH", "")

	root := cmd.GetRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}
