// Package printer writes command results for humans, or as JSON.
package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/elos-os/bootimg/log"
	"github.com/ttacon/chalk"
)

var (
	mu     sync.Mutex
	output io.Writer = os.Stdout
	plain  bool
)

// SetOutput redirects printed results to w
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Output returns the current destination
func Output() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

// SetPlain disables color directives
func SetPlain(value bool) {
	mu.Lock()
	defer mu.Unlock()
	plain = value
}

func printColor(color string, format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	msg := fmt.Sprintf(format, a...)
	if !plain {
		msg = log.ConsoleColors.Wrap(color, msg)
	}
	fmt.Fprintln(output, msg)
}

// Debugf prints a cyan line
func Debugf(format string, a ...interface{}) {
	printColor(log.ConsoleColors.Cyan(), format, a...)
}

// Infof prints a blue line
func Infof(format string, a ...interface{}) {
	printColor(log.ConsoleColors.Blue(), format, a...)
}

// Warningf prints a yellow line
func Warningf(format string, a ...interface{}) {
	printColor(log.ConsoleColors.Yellow(), format, a...)
}

// Errorf prints a red line
func Errorf(format string, a ...interface{}) {
	printColor(log.ConsoleColors.Red(), format, a...)
}

// Successf prints a green line
func Successf(format string, a ...interface{}) {
	printColor(chalk.Green.String(), format, a...)
}

// Plainf prints format without color
func Plainf(format string, a ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(output, format, a...)
}

// JSON prints v as indented json
func JSON(v interface{}) error {
	mu.Lock()
	defer mu.Unlock()
	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
