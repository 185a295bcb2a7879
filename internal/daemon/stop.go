package daemon

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ppastorf/doctor-who-sounds/internal/state"
)

// StopResult says how a stop request ended.
type StopResult int

const (
	NotRunning StopResult = iota
	InvalidPID
	StaleCleaned
	Stopped
	Forced
)

// Stopper asks a running daemon to terminate and cleans up after it.
type Stopper struct {
	Dir state.Dir
	// Out receives the human-readable diagnostics.
	Out      io.Writer
	Interval time.Duration
	Attempts int
	Kill     func(pid int) error
}

func NewStopper(dir state.Dir, out io.Writer) *Stopper {
	return &Stopper{
		Dir:      dir,
		Out:      out,
		Interval: 100 * time.Millisecond,
		Attempts: 20,
		Kill:     func(pid int) error { return unix.Kill(pid, unix.SIGTERM) },
	}
}

// Stop sends SIGTERM to the recorded daemon and waits for it to remove its
// PID file. If it does not within Interval*Attempts, the files are removed
// here. Calling Stop with no daemon running is harmless.
func (s *Stopper) Stop() StopResult {
	pid, err := ReadPID(s.Dir.PID())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		fmt.Fprintln(s.Out, "No daemon running (no PID file)")
		_ = os.Remove(s.Dir.Socket())
		return NotRunning
	case err != nil:
		fmt.Fprintln(s.Out, "Invalid PID file")
		removeIdentity(s.Dir)
		return InvalidPID
	}

	if !Alive(pid) {
		fmt.Fprintf(s.Out, "Daemon %d is not running, removing stale files\n", pid)
		removeIdentity(s.Dir)
		return StaleCleaned
	}

	if err := s.Kill(pid); err != nil {
		fmt.Fprintf(s.Out, "Signalling daemon %d failed: %v\n", pid, err)
	}

	for i := 0; i < s.Attempts; i++ {
		time.Sleep(s.Interval)
		if _, err := os.Stat(s.Dir.PID()); errors.Is(err, fs.ErrNotExist) {
			return Stopped
		}
	}

	fmt.Fprintf(s.Out, "Daemon %d did not clean up, removing its files\n", pid)
	removeIdentity(s.Dir)
	return Forced
}
