package player

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

const (
	defaultPipeAttempts = 10
	defaultPipeBackoff  = 50 * time.Millisecond
)

// PipeConfig configures byte-pipe delivery.
type PipeConfig struct {
	Path     string
	Attempts int
	Backoff  time.Duration
}

// PipeChannel writes single-key commands to a named FIFO the player reads
// as its stdin. The FIFO may have no reader yet while the player is still
// starting up, so opens are retried with a growing delay.
type PipeChannel struct {
	cfg PipeConfig
}

var _ Channel = (*PipeChannel)(nil)

func NewPipeChannel(cfg PipeConfig) *PipeChannel {
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultPipeAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultPipeBackoff
	}
	return &PipeChannel{cfg: cfg}
}

// Send writes the action's key to the FIFO.
func (p *PipeChannel) Send(ctx context.Context, a Action) error {
	key, ok := a.key()
	if !ok {
		return fmt.Errorf("%w: %s has no key binding", ErrUnsupportedAction, a)
	}

	fd, err := p.open(ctx)
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	n, err := unix.Write(fd, []byte{key})
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrUnacknowledged, a, err)
	}
	if n != 1 {
		return fmt.Errorf("%w: short write for %s", ErrUnacknowledged, a)
	}
	return nil
}

func (p *PipeChannel) open(ctx context.Context) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.Attempts; attempt++ {
		fd, err := unix.Open(p.cfg.Path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err == nil {
			return fd, nil
		}
		lastErr = err

		// Anything but "no reader yet" will not get better by waiting.
		if !errors.Is(err, unix.ENXIO) && !errors.Is(err, unix.EINTR) && !errors.Is(err, unix.EAGAIN) {
			break
		}
		if attempt == p.cfg.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-time.After(time.Duration(attempt) * p.cfg.Backoff):
		}
	}
	return -1, fmt.Errorf("%w: open %s: %v", ErrChannelUnavailable, p.cfg.Path, lastErr)
}

// PlayerInput creates the FIFO if needed and opens it for the player's
// stdin. It is opened read-write so the open never blocks and the player
// does not see EOF between writers.
func (p *PipeChannel) PlayerInput() (*os.File, error) {
	if err := unix.Mkfifo(p.cfg.Path, 0o600); err != nil && !errors.Is(err, unix.EEXIST) {
		return nil, fmt.Errorf("mkfifo %s: %w", p.cfg.Path, err)
	}

	fi, err := os.Stat(p.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", p.cfg.Path, err)
	}
	if fi.Mode()&os.ModeNamedPipe == 0 {
		return nil, fmt.Errorf("%s exists and is not a FIFO", p.cfg.Path)
	}

	f, err := os.OpenFile(p.cfg.Path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.cfg.Path, err)
	}
	return f, nil
}
