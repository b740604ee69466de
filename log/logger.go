package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Logger filters and prints leveled messages to a destination
type Logger struct {
	mu     sync.Mutex
	output io.Writer
	color  bool
	info   bool
	warn   bool
	err    bool
	debug  bool
}

// New returns an instance of Logger with colored output and every
// optional level disabled
func New(output io.Writer) *Logger {
	return &Logger{output: output, color: true}
}

// SetInfo activates/deactivates info level
func (l *Logger) SetInfo(value bool) {
	l.info = value
}

// SetWarn activates/deactivates warn level
func (l *Logger) SetWarn(value bool) {
	l.warn = value
}

// SetError activates/deactivates error level
func (l *Logger) SetError(value bool) {
	l.err = value
}

// SetDebug activates/deactivates debug level
func (l *Logger) SetDebug(value bool) {
	l.debug = value
}

// SetColor enables or disables console color directives
func (l *Logger) SetColor(value bool) {
	l.color = value
}

// Logf writes a formatted message to the specified output
func (l *Logger) Logf(format string, a ...interface{}) {
	if !strings.HasSuffix(format, "\n") {
		format = format + "\n"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.output, format, a...)
}

// Log writes message to the specified output
func (l *Logger) Log(a ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.output, a...)
}

func (l *Logger) logWithColor(color string, format string, a ...interface{}) {
	msg := strings.TrimSuffix(fmt.Sprintf(format, a...), "\n")
	if l.color {
		msg = ConsoleColors.Wrap(color, msg)
	}
	l.Log(msg)
}

// Info checks info level is activated to write the formatted message
func (l *Logger) Info(format string, a ...interface{}) {
	if l.info {
		l.logWithColor(ConsoleColors.Blue(), format, a...)
	}
}

// Warn checks warn level is activated to write the formatted message
func (l *Logger) Warn(format string, a ...interface{}) {
	if l.warn {
		l.logWithColor(ConsoleColors.Yellow(), format, a...)
	}
}

// Error checks error level is activated to write error object
func (l *Logger) Error(err error) {
	if l.err {
		l.logWithColor(ConsoleColors.Red(), "%s", err.Error())
	}
}

// Errorf checks error level is activated to write the formatted message
func (l *Logger) Errorf(format string, a ...interface{}) {
	if l.err {
		l.logWithColor(ConsoleColors.Red(), format, a...)
	}
}

// Debug checks debug level is activated to write the formatted message
func (l *Logger) Debug(format string, a ...interface{}) {
	if l.debug {
		l.logWithColor(ConsoleColors.Cyan(), format, a...)
	}
}

// DebugEnabled reports whether debug messages are written
func (l *Logger) DebugEnabled() bool {
	return l.debug
}
