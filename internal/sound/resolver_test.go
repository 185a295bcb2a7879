package sound

import (
	"errors"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppastorf/doctor-who-sounds/internal/state"
)

// fakePath answers LookPath from a set of installed binaries and counts calls.
type fakePath struct {
	installed map[string]bool
	calls     []string
}

func (f *fakePath) LookPath(name string) (string, error) {
	f.calls = append(f.calls, name)
	if f.installed[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New("not found")
}

func installed(names ...string) *fakePath {
	f := &fakePath{installed: map[string]bool{}}
	for _, n := range names {
		f.installed[n] = true
	}
	return f
}

func newTestStore(t *testing.T) *state.Store {
	t.Helper()
	return state.NewStore(state.Dir{Root: t.TempDir()})
}

func TestResolver_DetectsInOrderAndCaches(t *testing.T) {
	store := newTestStore(t)
	path := installed("mpv", "aplay")
	r := &Resolver{Store: store, LookPath: path.LookPath}

	assert.Equal(t, "mpv", r.Resolve())
	assert.Equal(t, []string{"afplay", "paplay", "mpv"}, path.calls)
	assert.Equal(t, "mpv", store.Get(state.PlayerKey))
}

func TestResolver_NoPlayerAvailable(t *testing.T) {
	store := newTestStore(t)
	r := &Resolver{Store: store, LookPath: installed().LookPath}

	assert.Equal(t, "", r.Resolve())
	assert.Equal(t, "", store.Get(state.PlayerKey), "nothing is cached")
}

func TestResolver_TrustPolicy(t *testing.T) {
	t.Run("daemon path trusts the cache without lookups", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Set(state.PlayerKey, "afplay"))
		path := installed("paplay")
		r := &Resolver{Store: store, LookPath: path.LookPath}

		assert.Equal(t, "afplay", r.Resolve())
		assert.Empty(t, path.calls)
	})

	t.Run("fallback path re-verifies and keeps a valid cache", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Set(state.PlayerKey, "paplay"))
		path := installed("paplay")
		r := &Resolver{Store: store, Verify: true, LookPath: path.LookPath}

		assert.Equal(t, "paplay", r.Resolve())
		assert.Equal(t, []string{"paplay"}, path.calls)
	})

	t.Run("fallback path re-detects a vanished player", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Set(state.PlayerKey, "afplay"))
		r := &Resolver{Store: store, Verify: true, LookPath: installed("aplay").LookPath}

		assert.Equal(t, "aplay", r.Resolve())
		assert.Equal(t, "aplay", store.Get(state.PlayerKey))
	})
}

func TestResolver_Memo(t *testing.T) {
	store := newTestStore(t)
	memo := cache.New(time.Minute, time.Minute)
	r := &Resolver{Store: store, Memo: memo, LookPath: installed("paplay").LookPath}

	assert.Equal(t, "paplay", r.Resolve())

	// The memo answers even after the file changes underneath.
	require.NoError(t, store.Set(state.PlayerKey, "mpv"))
	assert.Equal(t, "paplay", r.Resolve())

	memo.Flush()
	assert.Equal(t, "mpv", r.Resolve())
}

func TestResolver_CustomCandidates(t *testing.T) {
	r := &Resolver{Store: newTestStore(t), Candidates: []string{"aplay"}, LookPath: installed("afplay", "aplay").LookPath}
	assert.Equal(t, "aplay", r.Resolve())
}
