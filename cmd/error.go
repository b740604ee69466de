package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/elos-os/bootimg/constants"
	"github.com/elos-os/bootimg/imgerr"
	"github.com/elos-os/bootimg/log"
	goerrors "github.com/go-errors/errors"
)

func exitWithError(err error) {
	printError(os.Stderr, err, log.Default().DebugEnabled())
	os.Exit(imgerr.ExitCode(err))
}

// printError writes err in red, followed by its stack when one was
// recorded and debug output is on
func printError(w io.Writer, err error, stack bool) {
	fmt.Fprintln(w, fmt.Sprintf(constants.ErrorColor, err.Error()))
	if !stack {
		return
	}
	var withStack *goerrors.Error
	if errors.As(err, &withStack) {
		fmt.Fprintln(w, withStack.ErrorStack())
	}
}

func warn(w io.Writer, format string, a ...interface{}) {
	fmt.Fprintln(w, fmt.Sprintf(constants.WarningColor, fmt.Sprintf(format, a...)))
}
