// Package sound turns a hook payload into a detached audio player process.
package sound

import (
	"errors"
	"fmt"

	"github.com/patrickmn/go-cache"

	"github.com/ppastorf/doctor-who-sounds/internal/config"
	"github.com/ppastorf/doctor-who-sounds/internal/hook"
	"github.com/ppastorf/doctor-who-sounds/internal/state"
)

// Outcome classifies what happened to one payload. Nothing but Played makes
// noise, and none of the others is reported to the hook host.
type Outcome string

const (
	Played   Outcome = "played"
	Ignored  Outcome = "ignored"
	Disabled Outcome = "disabled"
	NoSound  Outcome = "no_sound"
	NoPlayer Outcome = "no_player"
	Failed   Outcome = "failed"
)

// Result describes one Play call.
type Result struct {
	Outcome  Outcome
	Category hook.Category
	Sound    string
	Player   string
}

// Player runs the select, resolve, dispatch sequence for a payload.
type Player struct {
	Plugin     *config.Plugin
	State      state.Dir
	Store      *state.Store
	Selector   Selector
	Resolver   *Resolver
	Dispatcher *Dispatcher
}

// NewDaemonPlayer builds the daemon's player: the cached player name is
// trusted without re-checking and kept in memo when memo is non-nil.
func NewDaemonPlayer(plugin *config.Plugin, dir state.Dir, memo *cache.Cache) *Player {
	p := newPlayer(plugin, dir)
	p.Resolver.Memo = memo
	return p
}

// NewFallbackPlayer builds the player used without a daemon. It re-verifies
// the cached player name before use.
func NewFallbackPlayer(plugin *config.Plugin, dir state.Dir) *Player {
	p := newPlayer(plugin, dir)
	p.Resolver.Verify = true
	return p
}

func newPlayer(plugin *config.Plugin, dir state.Dir) *Player {
	store := state.NewStore(dir)
	return &Player{
		Plugin:     plugin,
		State:      dir,
		Store:      store,
		Resolver:   &Resolver{Store: store},
		Dispatcher: &Dispatcher{FS: plugin.FS, Launcher: ExecLauncher{}},
	}
}

// Play handles one raw payload. The error explains non-Played outcomes;
// callers must not surface it to the hook host.
func (p *Player) Play(payload []byte) (Result, error) {
	_, category, ok := hook.Parse(payload)
	if !ok {
		return Result{Outcome: Ignored}, nil
	}
	res := Result{Category: category}

	if err := p.State.Ensure(); err != nil {
		res.Outcome = Failed
		return res, fmt.Errorf("creating state dir: %w", err)
	}

	cfg, err := p.Plugin.LoadConfig()
	if err != nil {
		res.Outcome = NoSound
		return res, fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Enabled || !cfg.CategoryEnabled(string(category)) {
		res.Outcome = Disabled
		return res, nil
	}

	manifest, err := p.Plugin.LoadManifest(cfg.ActivePack)
	if err != nil {
		res.Outcome = NoSound
		return res, fmt.Errorf("loading manifest: %w", err)
	}
	files := manifest.Sounds[string(category)]

	var exists bool
	res.Sound, err = p.Store.Update(state.MarkerKey(string(category)), func(last string) (string, bool) {
		pick := p.Selector.Pick(files, last)
		exists = pick != "" && p.Plugin.SoundExists(pick)
		return pick, exists
	})
	if !exists {
		res.Outcome = NoSound
		return res, nil
	}
	if err != nil {
		// The marker is advisory; a failed write only risks a repeat.
		err = fmt.Errorf("writing marker: %w", err)
	}

	res.Player = p.Resolver.Resolve()
	if res.Player == "" {
		res.Outcome = NoPlayer
		return res, err
	}

	if derr := p.Dispatcher.Dispatch(res.Player, cfg.Volume, p.Plugin.SoundPath(res.Sound)); derr != nil {
		res.Outcome = Failed
		if errors.Is(derr, ErrUnknownPlayer) {
			res.Outcome = NoPlayer
		}
		return res, fmt.Errorf("dispatching %s: %w", res.Player, derr)
	}
	res.Outcome = Played
	return res, err
}
