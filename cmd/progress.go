package cmd

import (
	"github.com/elos-os/bootimg/util"
	"github.com/moby/term"
	"github.com/spf13/cobra"
)

// withSpinner runs work behind a spinner when stderr is a terminal
func withSpinner(cmd *cobra.Command, message string, work func() error) error {
	w := cmd.ErrOrStderr()
	if json, _ := cmd.Flags().GetBool("json"); json {
		return work()
	}
	if _, isTerm := term.GetFdInfo(w); !isTerm {
		return work()
	}
	return util.NewProgressSpinner(w).Do(work, message)
}
