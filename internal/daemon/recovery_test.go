package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimPID(t *testing.T) {
	t.Run("creates the PID file with our PID", func(t *testing.T) {
		dir := testDir(t)
		require.NoError(t, claimPID(dir.PID()))

		pid, err := ReadPID(dir.PID())
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
		assertNoTempFiles(t, dir.Root)
	})

	t.Run("loses to a PID file created first", func(t *testing.T) {
		dir := testDir(t)
		require.NoError(t, os.WriteFile(dir.PID(), []byte("4242"), 0o644))

		err := claimPID(dir.PID())
		assert.ErrorIs(t, err, ErrLostRace)

		data, err := os.ReadFile(dir.PID())
		require.NoError(t, err)
		assert.Equal(t, "4242", string(data), "the winner's PID file is untouched")
		assertNoTempFiles(t, dir.Root)
	})

	t.Run("second claim in a row loses", func(t *testing.T) {
		dir := testDir(t)
		require.NoError(t, claimPID(dir.PID()))
		assert.ErrorIs(t, claimPID(dir.PID()), ErrLostRace)
		assertNoTempFiles(t, dir.Root)
	})
}

func assertNoTempFiles(t *testing.T, root string) {
	t.Helper()
	leftovers, err := filepath.Glob(filepath.Join(root, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestIdentity_Remove(t *testing.T) {
	t.Run("removes files it created", func(t *testing.T) {
		dir := testDir(t)
		id := createIdentity(t, dir.PID(), dir.Socket())

		id.remove(dir)
		assert.NoFileExists(t, dir.PID())
		assert.NoFileExists(t, dir.Socket())
		assert.Nil(t, id.pid)
	})

	t.Run("keeps files that replaced its own", func(t *testing.T) {
		dir := testDir(t)
		id := createIdentity(t, dir.PID(), dir.Socket())

		// A successor's files take the same paths.
		replace(t, dir.PID(), strconv.Itoa(os.Getpid()))
		replace(t, dir.Socket(), "")

		id.remove(dir)
		assert.FileExists(t, dir.PID())
		assert.FileExists(t, dir.Socket())
	})

	t.Run("missing files are not an error", func(t *testing.T) {
		dir := testDir(t)
		id := createIdentity(t, dir.PID(), dir.Socket())
		require.NoError(t, os.Remove(dir.PID()))
		require.NoError(t, os.Remove(dir.Socket()))

		id.remove(dir)
		assert.NoFileExists(t, dir.PID())
	})
}

func createIdentity(t *testing.T, pidPath, socketPath string) *identity {
	t.Helper()
	require.NoError(t, claimPID(pidPath))
	require.NoError(t, os.WriteFile(socketPath, nil, 0o644))

	pidFile, err := os.Open(pidPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pidFile.Close() })
	socket, err := os.Lstat(socketPath)
	require.NoError(t, err)
	return &identity{pid: pidFile, socket: socket}
}

// replace swaps path for a new file while the old one is still linked, so
// the two never share an inode.
func replace(t *testing.T, path, content string) {
	t.Helper()
	next := path + ".next"
	require.NoError(t, os.WriteFile(next, []byte(content), 0o644))
	require.NoError(t, os.Rename(next, path))
}
