package state

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const (
	defaultLockWait = 50 * time.Millisecond
	lockRetryDelay  = 2 * time.Millisecond
	lockSuffix      = ".lock"
	storeFileMode   = 0o644
)

// Store is a tiny key/value store with one file per key. Values are advisory:
// readers never block, and writers take a per-key flock only for a short
// while. When the lock cannot be had in time the update runs unlocked, which
// at worst repeats a sound or detects the player twice.
type Store struct {
	dir      Dir
	lockWait time.Duration
}

func NewStore(dir Dir) *Store {
	return &Store{dir: dir, lockWait: defaultLockWait}
}

// Get returns the trimmed value of key, or "" if it is unset or unreadable.
func (s *Store) Get(key string) string {
	data, err := os.ReadFile(s.dir.Path(key))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Set overwrites key.
func (s *Store) Set(key, value string) error {
	return os.WriteFile(s.dir.Path(key), []byte(value), storeFileMode)
}

// Update runs fn with the current value of key under the key's advisory lock.
// fn returns the value to report and whether to write it back.
func (s *Store) Update(key string, fn func(current string) (string, bool)) (string, error) {
	lock := flock.New(s.dir.Path(key) + lockSuffix)

	ctx, cancel := context.WithTimeout(context.Background(), s.lockWait)
	locked, _ := lock.TryLockContext(ctx, lockRetryDelay)
	cancel()
	if locked {
		defer func() { _ = lock.Unlock() }()
	}

	next, write := fn(s.Get(key))
	if !write {
		return next, nil
	}
	return next, s.Set(key, next)
}
