package controller

import (
	"context"
	"errors"

	"radiobrainz/internal/command"
	"radiobrainz/internal/player"
	"radiobrainz/internal/store"
)

// Error kinds reported in Result.Error.
const (
	KindUnknownCommand        = "unknown_command"
	KindInvalidArgument       = "invalid_argument"
	KindNoCommand             = "no_command"
	KindResolutionFailed      = "resolution_failed"
	KindChannelUnavailable    = "channel_unavailable"
	KindUnacknowledged        = "unacknowledged"
	KindUnsupportedAction     = "unsupported_action"
	KindSpawnError            = "spawn_error"
	KindTimeoutWaitingForExit = "timeout_waiting_for_exit"
	KindLockBusy              = "lock_busy"
	KindCanceled              = "canceled"
	KindInternal              = "internal"
)

// Status is a snapshot of the player and persisted state.
type Status struct {
	Running     bool   `json:"running"`
	Volume      int    `json:"volume"`
	VolumeKnown bool   `json:"volume_known"`
	LastStation string `json:"last_station,omitempty"`
}

// Result is the outcome of one request. Every failure ends up here as text;
// nothing a caller sends can crash the controller.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Command string `json:"command,omitempty"`
	Error   string `json:"error,omitempty"`
	Status  Status `json:"status"`
}

// ErrorKind classifies err into one of the Kind* strings.
func ErrorKind(err error) string {
	var spawnErr *player.SpawnError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, command.ErrUnknownCommand):
		return KindUnknownCommand
	case errors.Is(err, command.ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, command.ErrNoCommand):
		return KindNoCommand
	case errors.Is(err, command.ErrResolutionFailed):
		return KindResolutionFailed
	case errors.Is(err, player.ErrUnsupportedAction):
		return KindUnsupportedAction
	case errors.Is(err, player.ErrChannelUnavailable):
		return KindChannelUnavailable
	case errors.Is(err, player.ErrUnacknowledged):
		return KindUnacknowledged
	case errors.Is(err, player.ErrTimeoutWaitingForExit):
		return KindTimeoutWaitingForExit
	case errors.As(err, &spawnErr):
		return KindSpawnError
	case errors.Is(err, store.ErrLockBusy):
		return KindLockBusy
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
