package player

import (
	"errors"
	"fmt"
)

var (
	// ErrChannelUnavailable means no control channel to the player could be
	// opened (no reader on the FIFO, no bus address, no player).
	ErrChannelUnavailable = errors.New("player channel unavailable")

	// ErrUnacknowledged means the action was sent but the player did not
	// confirm it in time.
	ErrUnacknowledged = errors.New("action not acknowledged")

	// ErrTimeoutWaitingForExit means the player was still alive after the
	// stop retry budget ran out.
	ErrTimeoutWaitingForExit = errors.New("timeout waiting for player exit")

	// ErrUnsupportedAction means the action has no encoding on the channel.
	ErrUnsupportedAction = errors.New("unsupported action")
)

// SpawnError reports a failure to start the player process.
type SpawnError struct {
	Executable string
	Err        error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Executable, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }
