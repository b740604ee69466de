// Package imgerr defines the failure kinds reported by the image pipeline.
package imgerr

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a pipeline failure
type Kind int

// Failure kinds
const (
	KindUnknown Kind = iota
	KindResolution
	KindCapacity
	KindLayout
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindResolution:
		return "resolution"
	case KindCapacity:
		return "capacity"
	case KindLayout:
		return "layout"
	case KindIO:
		return "io"
	}
	return "unknown"
}

// ResolutionError is returned when the manifest cannot be turned into a build set.
// No image bytes have been written when it is returned.
type ResolutionError struct {
	Path   string
	Reason string
}

func (e *ResolutionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("resolution error: %s", e.Reason)
	}
	return fmt.Sprintf("resolution error: %s: %s", e.Path, e.Reason)
}

// CapacityError is returned when a volume or partition is too small for its content.
type CapacityError struct {
	Path      string
	Required  int64
	Available int64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity error: %s needs %d bytes, %d available", e.Path, e.Required, e.Available)
}

// LayoutError is returned when computed regions overlap or violate alignment.
type LayoutError struct {
	Reason    string
	Required  int64
	Available int64
}

func (e *LayoutError) Error() string {
	if e.Required == 0 && e.Available == 0 {
		return fmt.Sprintf("layout error: %s", e.Reason)
	}
	return fmt.Sprintf("layout error: %s (required %d, available %d)", e.Reason, e.Required, e.Available)
}

// IOError wraps a failure of the underlying storage.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Resolutionf builds a ResolutionError for path
func Resolutionf(path string, format string, a ...interface{}) error {
	return &ResolutionError{Path: path, Reason: fmt.Sprintf(format, a...)}
}

// Layoutf builds a LayoutError without size context
func Layoutf(format string, a ...interface{}) error {
	return &LayoutError{Reason: fmt.Sprintf(format, a...)}
}

// IO wraps err as an IOError, nil stays nil
func IO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return err
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// KindOf reports the kind of the first taxonomy error found in err's chain
func KindOf(err error) Kind {
	var (
		resErr *ResolutionError
		capErr *CapacityError
		layErr *LayoutError
		ioErr  *IOError
	)
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &resErr):
		return KindResolution
	case errors.As(err, &capErr):
		return KindCapacity
	case errors.As(err, &layErr):
		return KindLayout
	case errors.As(err, &ioErr):
		return KindIO
	}
	return KindUnknown
}

// ExitCode maps err to a process exit status, distinct per failure kind
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case KindResolution:
		return 2
	case KindCapacity:
		return 3
	case KindLayout:
		return 4
	case KindIO:
		return 5
	}
	return 1
}
