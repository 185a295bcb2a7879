// Package client delivers one hook payload, trying the daemon first, then a
// freshly launched daemon, then playing without any daemon.
package client

import (
	"io"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/ppastorf/doctor-who-sounds/internal/hook"
)

// Command-line switches understood by the binary that the client re-executes.
const (
	DaemonFlag = "--daemon"
	PlayFlag   = "--play"
)

// Tier is the route that ended up handling a payload.
type Tier int

const (
	Skipped Tier = iota
	Daemon
	NewDaemon
	DetachedPlay
	InProcessPlay
)

func (t Tier) String() string {
	switch t {
	case Skipped:
		return "skipped"
	case Daemon:
		return "daemon"
	case NewDaemon:
		return "new-daemon"
	case DetachedPlay:
		return "detached-play"
	case InProcessPlay:
		return "in-process-play"
	}
	return "unknown"
}

// Client is the short-lived side of the daemon protocol: one unframed write
// of the raw payload per connection, no reply.
type Client struct {
	Socket       string
	WriteTimeout time.Duration
	PollInterval time.Duration
	PollAttempts int

	Executable func() (string, error)
	// Spawn starts exe detached from the caller, feeding stdin when non-nil.
	Spawn func(exe string, args []string, stdin []byte) error
	// PlayDirect is the last resort and must not depend on the daemon.
	PlayDirect func(payload []byte)
}

// New returns a client with the default timings: a 100ms write timeout and
// 20 polls 10ms apart for a new daemon.
func New(socket string, playDirect func([]byte)) *Client {
	return &Client{
		Socket:       socket,
		WriteTimeout: 100 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
		PollAttempts: 20,
		Executable:   os.Executable,
		Spawn:        SpawnDetached,
		PlayDirect:   playDirect,
	}
}

// Deliver routes payload and reports which tier took it. Payloads that
// cannot produce a sound are dropped before any I/O.
func (c *Client) Deliver(payload []byte) Tier {
	if _, _, ok := hook.Parse(payload); !ok {
		return Skipped
	}
	if c.send(payload) {
		return Daemon
	}
	if c.launchDaemon() && c.send(payload) {
		return NewDaemon
	}
	return c.fallback(payload)
}

func (c *Client) send(payload []byte) bool {
	conn, err := net.DialTimeout("unix", c.Socket, c.WriteTimeout)
	if err != nil {
		return false
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
	_, err = conn.Write(payload)
	return err == nil
}

func (c *Client) launchDaemon() bool {
	exe, err := c.Executable()
	if err != nil {
		return false
	}
	if err := c.Spawn(exe, []string{DaemonFlag}, nil); err != nil {
		return false
	}

	for i := 0; i < c.PollAttempts; i++ {
		time.Sleep(c.PollInterval)
		if conn, err := net.Dial("unix", c.Socket); err == nil {
			_ = conn.Close()
			return true
		}
	}
	return false
}

func (c *Client) fallback(payload []byte) Tier {
	if exe, err := c.Executable(); err == nil {
		if err := c.Spawn(exe, []string{PlayFlag}, payload); err == nil {
			return DetachedPlay
		}
	}
	c.PlayDirect(payload)
	return InProcessPlay
}

// SpawnDetached starts exe as the leader of a new session with its output on
// /dev/null and does not wait for it. The child outlives the caller.
func SpawnDetached(exe string, args []string, stdin []byte) error {
	cmd := exec.Command(exe, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	var pipe io.WriteCloser
	if stdin != nil {
		p, err := cmd.StdinPipe()
		if err != nil {
			return err
		}
		pipe = p
	}

	if err := cmd.Start(); err != nil {
		return err
	}
	if pipe != nil {
		// Payloads are capped well below the pipe buffer, so this never blocks.
		_, werr := pipe.Write(stdin)
		cerr := pipe.Close()
		if werr != nil {
			return werr
		}
		if cerr != nil {
			return cerr
		}
	}
	return cmd.Process.Release()
}
