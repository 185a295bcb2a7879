// Package state owns the process-wide state directory shared by the daemon,
// the client and the fallback player.
package state

import (
	"os"
	"path/filepath"
)

const (
	DefaultRoot = "/tmp/doctor-who-sounds"

	// RootEnv overrides DefaultRoot. Every mode of the binary must agree on it.
	RootEnv = "DOCTOR_WHO_SOUNDS_STATE_DIR"
)

const (
	PIDFile     = "daemon.pid"
	SocketFile  = "daemon.sock"
	LogFile     = "daemon.log"
	MetricsFile = "metrics.prom"

	PlayerKey    = "player"
	markerPrefix = "last_"
)

// Dir builds paths inside the state directory.
type Dir struct {
	Root string
}

// Default returns the state directory named by the environment, or DefaultRoot.
func Default() Dir {
	if root := os.Getenv(RootEnv); root != "" {
		return Dir{Root: root}
	}
	return Dir{Root: DefaultRoot}
}

// Ensure creates the directory if it does not exist yet.
func (d Dir) Ensure() error {
	return os.MkdirAll(d.Root, 0o755)
}

func (d Dir) PID() string { return filepath.Join(d.Root, PIDFile) }

func (d Dir) Socket() string { return filepath.Join(d.Root, SocketFile) }

func (d Dir) Log() string { return filepath.Join(d.Root, LogFile) }

func (d Dir) Metrics() string { return filepath.Join(d.Root, MetricsFile) }

// Path returns the file backing a store key.
func (d Dir) Path(key string) string { return filepath.Join(d.Root, key) }

// MarkerKey is the store key of a category's last-played marker.
func MarkerKey(category string) string { return markerPrefix + category }
