package store

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemStore(t *testing.T) (*FileStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s := NewFileStore(fs, "/var/lib/radiobrainz")
	require.NoError(t, s.Init())
	return s, fs
}

func TestReadVolume_MissingIsAbsent(t *testing.T) {
	s, _ := newMemStore(t)

	v, ok := s.ReadVolume()
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestVolumeRoundTrip(t *testing.T) {
	s, _ := newMemStore(t)

	for _, v := range []int{0, 1, -1, 500, -2400, math.MaxInt32, math.MinInt32} {
		require.NoError(t, s.WriteVolume(v))
		got, ok := s.ReadVolume()
		require.True(t, ok, "volume %d should be present", v)
		assert.Equal(t, v, got)
	}
}

func TestReadVolume_TrimsTrailingWhitespace(t *testing.T) {
	s, fs := newMemStore(t)
	require.NoError(t, afero.WriteFile(fs, filepath.Join(s.Dir(), volumeFile), []byte("-300\n"), 0o644))

	v, ok := s.ReadVolume()
	require.True(t, ok)
	assert.Equal(t, -300, v)
}

func TestReadVolume_GarbageIsAbsent(t *testing.T) {
	s, fs := newMemStore(t)
	require.NoError(t, afero.WriteFile(fs, filepath.Join(s.Dir(), volumeFile), []byte("loud"), 0o644))

	_, ok := s.ReadVolume()
	assert.False(t, ok)
}

func TestLastStationRoundTrip(t *testing.T) {
	s, _ := newMemStore(t)

	_, ok := s.ReadLastStation()
	assert.False(t, ok)

	require.NoError(t, s.WriteLastStation("jazzfm"))
	require.NoError(t, s.WriteLastStation("radio3"))

	got, ok := s.ReadLastStation()
	require.True(t, ok)
	assert.Equal(t, "radio3", got)
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	s, fs := newMemStore(t)
	require.NoError(t, s.WriteVolume(100))
	require.NoError(t, s.WriteLastStation("jazzfm"))

	entries, err := afero.ReadDir(fs, s.Dir())
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{volumeFile, stationFile}, names)
}

func TestWrite_CreatesMissingDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := NewFileStore(fs, "/tmp/not/yet/there")

	require.NoError(t, s.WriteVolume(42))
	v, ok := s.ReadVolume()
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestFileLock_SecondAcquireTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock")

	first := NewFileLock(path, time.Second)
	release, err := first.Acquire(context.Background())
	require.NoError(t, err)

	second := NewFileLock(path, 250*time.Millisecond)
	_, err = second.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLockBusy), "got %v", err)

	release()

	release2, err := second.Acquire(context.Background())
	require.NoError(t, err)
	release2()
}

func TestFileLock_ContextCanceled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock")

	release, err := NewFileLock(path, time.Second).Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewFileLock(path, 5*time.Second).Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
