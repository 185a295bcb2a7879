package sound

import (
	"os/exec"

	"github.com/patrickmn/go-cache"

	"github.com/ppastorf/doctor-who-sounds/internal/state"
)

// Candidates is the detection order: macOS, PulseAudio, mpv, ALSA.
var Candidates = []string{"afplay", "paplay", "mpv", "aplay"}

// Resolver finds an audio player binary and caches its name in the state
// store so detection runs once per host rather than once per event.
type Resolver struct {
	Store *state.Store

	// Verify re-checks a cached name before trusting it. The daemon leaves it
	// off because a detected player does not vanish mid-session.
	Verify bool

	// Memo, when set, keeps the name in memory in front of the cache file.
	Memo *cache.Cache

	LookPath   func(string) (string, error)
	Candidates []string
}

// Resolve returns the player name, or "" when no known player is installed.
func (r *Resolver) Resolve() string {
	if r.Memo != nil {
		if name, ok := r.Memo.Get(state.PlayerKey); ok {
			return name.(string)
		}
	}

	if name := r.Store.Get(state.PlayerKey); name != "" && r.usable(name) {
		r.remember(name)
		return name
	}

	name, _ := r.Store.Update(state.PlayerKey, func(current string) (string, bool) {
		// Another process may have finished detection while we waited.
		if current != "" && r.usable(current) {
			return current, false
		}
		found := r.detect()
		return found, found != ""
	})
	if name != "" {
		r.remember(name)
	}
	return name
}

func (r *Resolver) usable(name string) bool {
	if !r.Verify {
		return true
	}
	_, err := r.lookPath(name)
	return err == nil
}

func (r *Resolver) detect() string {
	candidates := r.Candidates
	if candidates == nil {
		candidates = Candidates
	}
	for _, name := range candidates {
		if _, err := r.lookPath(name); err == nil {
			return name
		}
	}
	return ""
}

func (r *Resolver) remember(name string) {
	if r.Memo != nil {
		r.Memo.SetDefault(state.PlayerKey, name)
	}
}

func (r *Resolver) lookPath(name string) (string, error) {
	if r.LookPath != nil {
		return r.LookPath(name)
	}
	return exec.LookPath(name)
}
