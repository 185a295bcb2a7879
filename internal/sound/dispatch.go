package sound

import (
	"errors"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/spf13/afero"
)

var (
	ErrUnknownPlayer = errors.New("unknown player")
	ErrNoSoundFile   = errors.New("sound file not found")
)

// Launcher starts a process and does not wait for it.
type Launcher interface {
	Launch(name string, args ...string) error
}

// ExecLauncher starts players in their own session with all standard streams
// on /dev/null. A goroutine reaps each child so a long-lived daemon does not
// collect zombies.
type ExecLauncher struct{}

func (ExecLauncher) Launch(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// PlayerArgs builds the command line for a known player. Volume is 0.0–1.0.
func PlayerArgs(player string, volume float64, path string) ([]string, error) {
	switch player {
	case "afplay":
		return []string{"-v", strconv.FormatFloat(volume, 'f', -1, 64), path}, nil
	case "paplay":
		return []string{"--volume=" + strconv.Itoa(int(volume*65536)), path}, nil
	case "mpv":
		return []string{"--no-terminal", "--volume=" + strconv.Itoa(int(volume*100)), path}, nil
	case "aplay":
		return []string{"-q", path}, nil
	}
	return nil, ErrUnknownPlayer
}

// Dispatcher hands a sound file to a player. Playback is fire-and-forget:
// success means the player process started.
type Dispatcher struct {
	FS       afero.Fs
	Launcher Launcher
}

func (d *Dispatcher) Dispatch(player string, volume float64, path string) error {
	args, err := PlayerArgs(player, volume, path)
	if err != nil {
		return err
	}
	if ok, err := afero.Exists(d.FS, path); err != nil || !ok {
		return ErrNoSoundFile
	}
	return d.Launcher.Launch(player, args...)
}
