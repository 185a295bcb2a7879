package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/patrickmn/go-cache"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/ppastorf/doctor-who-sounds/internal/client"
	"github.com/ppastorf/doctor-who-sounds/internal/config"
	"github.com/ppastorf/doctor-who-sounds/internal/daemon"
	"github.com/ppastorf/doctor-who-sounds/internal/sound"
	"github.com/ppastorf/doctor-who-sounds/internal/state"
)

var version = "dev"

type mode int

const (
	clientMode mode = iota
	daemonMode
	stopMode
	playMode
	versionMode
)

// parseMode picks the run mode from the command line. Anything it cannot
// parse falls back to client mode: the hook host must not see a usage error.
func parseMode(args []string) mode {
	flags := pflag.NewFlagSet("doctor-who-sounds", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)

	runDaemon := flags.Bool("daemon", false, "Run the background sound daemon.")
	stop := flags.Bool("stop", false, "Stop the running daemon.")
	play := flags.Bool("play", false, "Play the payload on stdin without a daemon.")
	showVersion := flags.Bool("version", false, "Print the version and exit.")
	_ = flags.MarkHidden("play")

	if err := flags.Parse(args); err != nil {
		return clientMode
	}
	switch {
	case *showVersion:
		return versionMode
	case *stop:
		return stopMode
	case *runDaemon:
		return daemonMode
	case *play:
		return playMode
	}
	return clientMode
}

func main() {
	switch parseMode(os.Args[1:]) {
	case versionMode:
		fmt.Println(version)
	case stopMode:
		daemon.NewStopper(state.Default(), os.Stderr).Stop()
	case daemonMode:
		runDaemon(state.Default(), config.PluginRoot())
	case playMode:
		playPayload(readPayload(os.Stdin))
	default:
		deliver(readPayload(os.Stdin))
	}
	// Every mode exits 0; failures only ever mean no sound.
}

// readPayload reads at most one payload from r. Read errors and input that
// is not UTF-8 text yield nothing.
func readPayload(r io.Reader) []byte {
	payload, err := io.ReadAll(io.LimitReader(r, daemon.MaxPayload))
	if err != nil || !utf8.Valid(payload) {
		return nil
	}
	return payload
}

func deliver(payload []byte) {
	if len(payload) == 0 {
		return
	}
	client.New(state.Default().Socket(), playPayload).Deliver(payload)
}

func playPayload(payload []byte) {
	if len(payload) == 0 {
		return
	}
	player := sound.NewFallbackPlayer(config.NewPlugin(config.PluginRoot()), state.Default())
	_, _ = player.Play(payload)
}

func runDaemon(dir state.Dir, root string) {
	// Fails harmlessly when the launcher already made us a session leader.
	_, _ = unix.Setsid()

	if err := dir.Ensure(); err != nil {
		return
	}

	settings, settingsErr := config.ParseSettings(config.SettingsPath(root))
	logFile := daemonLogFile(dir.Log(), settings)
	defer logFile.Close()
	InitLogger(logFile, settings.LogLevel)
	if settingsErr != nil {
		log.WithError(settingsErr).Warn("Failed to parse daemon settings, using defaults")
	}
	log.Debugf("Daemon settings: %+v", settings)

	memo := cache.New(settings.PlayerMemo(), 2*settings.PlayerMemo())
	player := sound.NewDaemonPlayer(config.NewPlugin(root), dir, memo)

	d := daemon.New(dir, player, log)
	d.MetricsEvery = settings.MetricsEvery()

	err := d.Run(context.Background())
	switch {
	case errors.Is(err, daemon.ErrAlreadyRunning), errors.Is(err, daemon.ErrLostRace):
		log.WithError(err).Debug("Another daemon owns the state directory")
	case err != nil:
		log.WithError(err).Error("Daemon failed to start")
	}
}
