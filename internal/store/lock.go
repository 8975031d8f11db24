package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ErrLockBusy is returned when another invocation holds the controller lock
// for longer than the acquire timeout.
var ErrLockBusy = errors.New("controller lock busy")

const lockPollInterval = 100 * time.Millisecond

// FileLock is an advisory flock(2) lock shared by every controller
// invocation on the machine. It serializes player-mutating operations so two
// requests can never race to spawn two players.
type FileLock struct {
	path    string
	timeout time.Duration
}

// NewFileLock returns a lock on path. Acquire gives up after timeout.
func NewFileLock(path string, timeout time.Duration) *FileLock {
	return &FileLock{path: path, timeout: timeout}
}

// Path returns the lock file path.
func (l *FileLock) Path() string { return l.path }

// Acquire takes the lock, polling non-blocking until the timeout or ctx
// expires. The returned function releases it.
func (l *FileLock) Acquire(ctx context.Context) (func(), error) {
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	deadline := time.Now().Add(l.timeout)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			f.Close()
			return nil, fmt.Errorf("flock %s: %w", l.path, err)
		}
		if !time.Now().Before(deadline) {
			f.Close()
			return nil, fmt.Errorf("%w: %s held for more than %s", ErrLockBusy, l.path, l.timeout)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}

	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
	}, nil
}
