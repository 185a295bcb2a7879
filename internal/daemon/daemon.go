// Package daemon runs the long-lived socket listener that plays sounds on
// behalf of short-lived hook invocations.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ppastorf/doctor-who-sounds/internal/sound"
	"github.com/ppastorf/doctor-who-sounds/internal/state"
)

const (
	// MaxPayload caps a hook payload, on stdin and on the socket alike.
	MaxPayload = 8 << 10

	DefaultPollInterval = 10 * time.Millisecond
	DefaultReadTimeout  = time.Second

	startupLockFile = "daemon.lock"
	startupLockWait = 200 * time.Millisecond
)

// Phase is a step of the daemon lifecycle.
type Phase int32

const (
	Starting Phase = iota
	Running
	Stopping
	Terminated
)

func (p Phase) String() string {
	switch p {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// Handler plays the sound for one payload. *sound.Player implements it.
type Handler interface {
	Play(payload []byte) (sound.Result, error)
}

// Daemon owns the socket endpoint and the PID file for its whole lifetime.
type Daemon struct {
	Dir     state.Dir
	Handler Handler
	Log     logrus.FieldLogger
	Metrics *Metrics

	PollInterval time.Duration
	ReadTimeout  time.Duration
	// MetricsEvery is the period of the metrics textfile flush; 0 flushes
	// only at shutdown.
	MetricsEvery time.Duration

	phase atomic.Int32
}

// New returns a daemon with the default timings.
func New(dir state.Dir, handler Handler, log logrus.FieldLogger) *Daemon {
	return &Daemon{
		Dir:          dir,
		Handler:      handler,
		Log:          log,
		Metrics:      NewMetrics(),
		PollInterval: DefaultPollInterval,
		ReadTimeout:  DefaultReadTimeout,
	}
}

// Phase returns the current lifecycle phase.
func (d *Daemon) Phase() Phase { return Phase(d.phase.Load()) }

func (d *Daemon) setPhase(p Phase) {
	d.phase.Store(int32(p))
	d.Log.WithField("phase", p).Debug("Daemon phase change")
}

// Run claims the daemon identity and serves until ctx is done, SIGTERM or
// SIGINT arrives, or the identity files are removed by someone else.
//
// ErrAlreadyRunning and ErrLostRace mean another daemon owns the state
// directory; nothing was touched and the caller should exit quietly.
func (d *Daemon) Run(ctx context.Context) error {
	d.setPhase(Starting)
	defer d.setPhase(Terminated)

	ln, id, err := d.start()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := watchIdentity(ctx, d.Dir, d.Log, cancel); err != nil {
		d.Log.WithError(err).Warn("Cannot watch state directory")
	}
	go d.flushMetrics(ctx)

	d.Metrics.startTime.SetToCurrentTime()
	d.setPhase(Running)
	d.Log.WithFields(logrus.Fields{"pid": os.Getpid(), "socket": d.Dir.Socket()}).Info("Daemon listening")

	d.serve(ctx, ln)

	d.setPhase(Stopping)
	cancel()
	// The listener pins the socket inode until the identity is released.
	d.release(id)
	_ = ln.Close()
	if err := d.Metrics.WriteTextfile(d.Dir.Metrics()); err != nil {
		d.Log.WithError(err).Debug("Writing metrics failed")
	}
	d.Log.Info("Daemon stopped")
	return nil
}

// lockStartup takes the startup flock, waiting at most startupLockWait.
func (d *Daemon) lockStartup() (*flock.Flock, bool) {
	lock := flock.New(filepath.Join(d.Dir.Root, startupLockFile))
	ctx, cancel := context.WithTimeout(context.Background(), startupLockWait)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, d.PollInterval)
	return lock, err == nil && locked
}

// start runs the Starting phase: recovery, PID claim and bind. A short-lived
// flock serializes concurrent starts so one launch cannot clear the files
// another launch has just created.
func (d *Daemon) start() (*net.UnixListener, *identity, error) {
	if err := d.Dir.Ensure(); err != nil {
		return nil, nil, fmt.Errorf("creating state dir: %w", err)
	}

	lock, locked := d.lockStartup()
	if !locked {
		return nil, nil, ErrLostRace
	}
	defer func() { _ = lock.Unlock() }()

	if err := Recover(d.Dir); err != nil {
		return nil, nil, err
	}
	if err := claimPID(d.Dir.PID()); err != nil {
		return nil, nil, err
	}
	id := &identity{}
	id.pid, _ = os.Open(d.Dir.PID())

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: d.Dir.Socket(), Net: "unix"})
	if err != nil {
		_ = os.Remove(d.Dir.PID())
		id.close()
		return nil, nil, fmt.Errorf("binding %s: %w", d.Dir.Socket(), err)
	}
	// Removal is explicit during Stopping.
	ln.SetUnlinkOnClose(false)
	id.socket, _ = os.Lstat(d.Dir.Socket())
	return ln, id, nil
}

// release removes the identity files that are still the ones this daemon
// created. A successor that claimed the directory after ours went missing
// keeps its files. Holding the startup flock keeps a starting successor
// from slipping in between the check and the removal.
func (d *Daemon) release(id *identity) {
	if lock, locked := d.lockStartup(); locked {
		defer func() { _ = lock.Unlock() }()
	}
	id.remove(d.Dir)
}

// serve polls for connections until ctx is done. The deadline on Accept
// bounds how long a stop request waits to be noticed.
func (d *Daemon) serve(ctx context.Context, ln *net.UnixListener) {
	for ctx.Err() == nil {
		_ = ln.SetDeadline(time.Now().Add(d.PollInterval))
		conn, err := ln.AcceptUnix()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			var nerr net.Error
			if !errors.As(err, &nerr) || !nerr.Timeout() {
				time.Sleep(d.PollInterval)
			}
			continue
		}
		d.Metrics.connections.Inc()
		go d.handle(conn)
	}
}

// handle reads one payload and plays it. Nothing is written back to the peer.
func (d *Daemon) handle(conn net.Conn) {
	defer conn.Close()
	d.Metrics.inFlight.Inc()
	defer d.Metrics.inFlight.Dec()

	_ = conn.SetReadDeadline(time.Now().Add(d.ReadTimeout))
	payload, err := io.ReadAll(io.LimitReader(conn, MaxPayload))
	switch {
	case err != nil:
		d.Metrics.payloads.WithLabelValues(outcomeReadError).Inc()
		return
	case len(payload) == 0:
		d.Metrics.payloads.WithLabelValues(outcomeEmpty).Inc()
		return
	case !utf8.Valid(payload):
		d.Metrics.payloads.WithLabelValues(outcomeNotText).Inc()
		return
	}

	// Failures only show up in the metrics; the log records sounds played.
	res, _ := d.Handler.Play(payload)
	d.Metrics.observe(res)
	if res.Outcome == sound.Played {
		d.Log.WithFields(logrus.Fields{
			"request":  uuid.NewString(),
			"category": res.Category,
			"sound":    res.Sound,
			"player":   res.Player,
		}).Debug("Sound played")
	}
}

func (d *Daemon) flushMetrics(ctx context.Context) {
	if d.MetricsEvery <= 0 {
		return
	}
	ticker := time.NewTicker(d.MetricsEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Metrics.WriteTextfile(d.Dir.Metrics()); err != nil {
				d.Log.WithError(err).Debug("Writing metrics failed")
			}
		}
	}
}
