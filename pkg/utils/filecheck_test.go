package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stable.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,c\n"), 0644))

	assert.True(t, IsStable(path, 20*time.Millisecond))
}

func TestIsStableGrowingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "growing.csv")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.WriteString("header\n")
	require.NoError(t, err)
	require.NoError(t, f.Sync())

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(30 * time.Millisecond)
		f.WriteString("more data\n")
		f.Sync()
	}()

	assert.False(t, IsStable(path, 100*time.Millisecond))
	<-done
}

func TestIsStableMissingFile(t *testing.T) {
	assert.False(t, IsStable(filepath.Join(t.TempDir(), "nope.csv"), time.Millisecond))
}

func TestIsStableVanishingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vanish.csv")
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0644))

	go func() {
		time.Sleep(20 * time.Millisecond)
		os.Remove(path)
	}()

	// The path disappears between the two samples; treated as not
	// ready, never a panic or error.
	assert.False(t, IsStable(path, 100*time.Millisecond))
}

func TestChecksumStableAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,age\nAlice,25\n"), 0644))

	first, err := Checksum(path)
	require.NoError(t, err)
	second, err := Checksum(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64) // hex-encoded SHA-256
}

func TestChecksumChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")

	require.NoError(t, os.WriteFile(path, []byte("name,age\nAlice,25\n"), 0644))
	before, err := Checksum(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("name,age\nAlice,26\n"), 0644))
	after, err := Checksum(path)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestChecksumMissingFile(t *testing.T) {
	_, err := Checksum(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
}
