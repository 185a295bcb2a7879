package daemon

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ppastorf/doctor-who-sounds/internal/state"
)

var (
	// ErrAlreadyRunning means the PID file names a live process.
	ErrAlreadyRunning = errors.New("daemon already running")
	// ErrLostRace means another instance created the PID file first, or is
	// in the middle of starting.
	ErrLostRace = errors.New("another daemon is starting")
)

// ReadPID parses the process ID stored at path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file %s: %w", path, err)
	}
	return pid, nil
}

// Alive reports whether pid names a running process. A process owned by
// another user (EPERM) counts as running.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Recover inspects the daemon identity files before a new daemon claims them.
// A live recorded daemon is left alone and ErrAlreadyRunning is returned.
// Otherwise the socket and PID files are stale and are removed.
func Recover(dir state.Dir) error {
	if pid, err := ReadPID(dir.PID()); err == nil && Alive(pid) {
		return ErrAlreadyRunning
	}
	removeIdentity(dir)
	return nil
}

func removeIdentity(dir state.Dir) {
	_ = os.Remove(dir.Socket())
	_ = os.Remove(dir.PID())
}

// identity is what a running daemon created in the state directory. The
// open PID file keeps its inode from being reused while the daemon lives,
// and the bound listener does the same for the socket.
type identity struct {
	pid    *os.File
	socket os.FileInfo
}

// remove deletes the socket and PID file only if they are still ours.
func (id *identity) remove(dir state.Dir) {
	if id.socket != nil && isFile(dir.Socket(), id.socket) {
		_ = os.Remove(dir.Socket())
	}
	if id.pid != nil {
		if own, err := id.pid.Stat(); err == nil && isFile(dir.PID(), own) {
			_ = os.Remove(dir.PID())
		}
	}
	id.close()
}

func (id *identity) close() {
	if id.pid != nil {
		_ = id.pid.Close()
		id.pid = nil
	}
}

// isFile reports whether path currently names the file described by fi.
func isFile(path string, fi os.FileInfo) bool {
	cur, err := os.Lstat(path)
	return err == nil && os.SameFile(cur, fi)
}

// claimPID creates the PID file exclusively with its content already in
// place, so no reader ever sees an empty PID file.
func claimPID(path string) error {
	tmp := path + "." + strconv.Itoa(os.Getpid()) + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrLostRace
		}
		return fmt.Errorf("creating PID file: %w", err)
	}
	return nil
}
