package util

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/elos-os/bootimg/log"
	"github.com/tj/go-spin"
)

// ProgressSpinner is an indefinite progress indicator using a spinner.
type ProgressSpinner struct {
	out      io.Writer
	interval time.Duration
	colors   log.ConsoleColorsType

	mu      sync.Mutex
	message string
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewProgressSpinner returns a spinner drawing to out
func NewProgressSpinner(out io.Writer) *ProgressSpinner {
	return &ProgressSpinner{out: out, interval: 100 * time.Millisecond}
}

// Start starts the spinner
func (ps *ProgressSpinner) Start(messages ...interface{}) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.stop != nil {
		return
	}

	ps.message = fmt.Sprint(messages...)
	ps.stop = make(chan struct{})
	s := spin.New()
	stop := ps.stop
	ps.wg.Add(1)

	go func() {
		defer ps.wg.Done()
		ticker := time.NewTicker(ps.interval)
		defer ticker.Stop()
		for {
			ps.mu.Lock()
			fmt.Fprintf(ps.out, "\r%s%s %s%s", ps.colors.Yellow(), s.Next(), ps.colors.Reset(), ps.message)
			ps.mu.Unlock()
			select {
			case <-stop:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Do executes given function with given messages as label.
func (ps *ProgressSpinner) Do(workFunc func() error, messages ...interface{}) error {
	ps.Start(messages...)
	if err := workFunc(); err != nil {
		ps.Fail()
		return err
	}
	ps.Done()
	return nil
}

// Done stops the spinner with success mark.
func (ps *ProgressSpinner) Done() {
	ps.finish(ps.colors.Green() + "done" + ps.colors.Reset())
}

// Fail stops the spinner with error mark.
func (ps *ProgressSpinner) Fail() {
	ps.finish(ps.colors.Red() + "failed" + ps.colors.Reset())
}

func (ps *ProgressSpinner) finish(mark string) {
	ps.mu.Lock()
	stop := ps.stop
	ps.stop = nil
	ps.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	ps.wg.Wait()
	fmt.Fprintf(ps.out, "\r%s %s\n", ps.message, mark)
}
