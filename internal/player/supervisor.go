// Package player supervises the external media-player process: liveness
// queries, spawning, action delivery and graceful shutdown.
//
// Nothing about the player is cached. Whether a player runs is always a
// fresh process-table query, so a crash or a failed spawn is picked up by
// the next call without any stale "running" flag to clear.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"radiobrainz/internal/store"
)

// Direction of a volume adjustment.
type Direction int

const (
	Up   Direction = 1
	Down Direction = -1
)

func (d Direction) action() Action {
	if d < 0 {
		return ActionVolumeDown
	}
	return ActionVolumeUp
}

const (
	defaultStepSize     = 300
	defaultStopAttempts = 10
	defaultStopInterval = time.Second
)

// Config holds supervisor policy.
type Config struct {
	// ProcessName is matched against process command names.
	ProcessName string
	// StepSize is the volume change of one step, in millibels.
	StepSize int
	// DefaultVolume seeds adjustments when no volume is stored yet.
	DefaultVolume int
	StopAttempts  int
	StopInterval  time.Duration
	// CaptureFile is where the player's output is captured; it is scraped
	// for the last reported volume once the player is gone.
	CaptureFile string
}

// Deps are the supervisor's collaborators.
type Deps struct {
	Channel Channel
	Procs   ProcessTable
	Spawner Spawner
	Volumes store.VolumeStore
	// Fs reads and removes the capture file. Nil means the OS filesystem.
	Fs     afero.Fs
	Logger *slog.Logger
}

// Supervisor owns the lifecycle of the single player process.
type Supervisor struct {
	cfg     Config
	channel Channel
	procs   ProcessTable
	spawner Spawner
	volumes store.VolumeStore
	fs      afero.Fs
	logger  *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewSupervisor(cfg Config, deps Deps) *Supervisor {
	if cfg.StepSize == 0 {
		cfg.StepSize = defaultStepSize
	}
	if cfg.StopAttempts <= 0 {
		cfg.StopAttempts = defaultStopAttempts
	}
	if cfg.StopInterval <= 0 {
		cfg.StopInterval = defaultStopInterval
	}
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Supervisor{
		cfg:     cfg,
		channel: deps.Channel,
		procs:   deps.Procs,
		spawner: deps.Spawner,
		volumes: deps.Volumes,
		fs:      deps.Fs,
		logger:  deps.Logger,
		sleep:   sleepContext,
	}
}

// IsRunning reports whether a player process exists. Query errors count as
// "not running".
func (s *Supervisor) IsRunning(ctx context.Context) bool {
	if ctx.Err() != nil || s.procs == nil {
		return false
	}
	pids, err := s.procs.Find(s.cfg.ProcessName)
	if err != nil {
		s.logger.Warn("process table query failed", "process", s.cfg.ProcessName, "error", err)
		return false
	}
	return len(pids) > 0
}

// SendAction delivers a single action through the control channel.
func (s *Supervisor) SendAction(ctx context.Context, a Action) error {
	if s.channel == nil {
		return fmt.Errorf("%w: no channel configured", ErrChannelUnavailable)
	}
	if err := s.channel.Send(ctx, a); err != nil {
		return err
	}
	s.logger.Debug("action delivered", "action", a.String())
	return nil
}

// StopAndWait stops the player and blocks until it is gone from the process
// table, sending a stop signal before every check. Calling it with no player
// running returns immediately.
func (s *Supervisor) StopAndWait(ctx context.Context) error {
	if !s.IsRunning(ctx) {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.scrapeVolume()
		return nil
	}

	started := time.Now()
	for attempt := 1; attempt <= s.cfg.StopAttempts; attempt++ {
		if err := s.SendAction(ctx, ActionStop); err != nil {
			s.logger.Debug("stop not delivered", "attempt", attempt, "error", err)
		}

		if err := s.sleep(ctx, s.cfg.StopInterval); err != nil {
			return err
		}

		if !s.IsRunning(ctx) {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.logger.Info("player stopped", "attempts", attempt, "elapsed", time.Since(started).Round(time.Millisecond))
			s.scrapeVolume()
			return nil
		}
	}

	return fmt.Errorf("%w: %s still running after %d stop attempts", ErrTimeoutWaitingForExit, s.cfg.ProcessName, s.cfg.StopAttempts)
}

// Start replaces any running player with a new one playing resource at
// volume. A running player is stopped, and its exit confirmed, first.
func (s *Supervisor) Start(ctx context.Context, resource string, volume int) error {
	if err := s.StopAndWait(ctx); err != nil {
		return err
	}
	return s.Launch(ctx, resource, volume)
}

// Launch spawns a player without checking for an existing one. The caller
// must have just confirmed the previous player is gone with StopAndWait,
// while holding whatever serializes player changes.
func (s *Supervisor) Launch(ctx context.Context, resource string, volume int) error {
	if s.spawner == nil {
		return &SpawnError{Executable: s.cfg.ProcessName, Err: errors.New("no spawner configured")}
	}

	if err := s.spawner.Spawn(ctx, resource, volume); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return err
		}
		return &SpawnError{Executable: s.cfg.ProcessName, Err: err}
	}
	return nil
}

// Adjust sends repeat volume steps in direction d and persists the volume
// implied by the steps that were acknowledged. Partial success is not an
// error; no acknowledged step at all is.
func (s *Supervisor) Adjust(ctx context.Context, d Direction, repeat int) (int, error) {
	old, ok := s.volumes.ReadVolume()
	if !ok {
		old = s.cfg.DefaultVolume
	}
	if repeat <= 0 {
		return old, nil
	}

	if !s.IsRunning(ctx) {
		if err := ctx.Err(); err != nil {
			return old, err
		}
		return old, fmt.Errorf("%w: %s is not running", ErrChannelUnavailable, s.cfg.ProcessName)
	}

	action := d.action()
	var (
		acked   int
		lastErr error
	)
	for i := 0; i < repeat; i++ {
		if err := s.SendAction(ctx, action); err != nil {
			s.logger.Warn("volume step failed", "action", action.String(), "step", i+1, "error", err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		acked++
	}

	if acked == 0 {
		return old, lastErr
	}

	vol := old + acked*s.cfg.StepSize*d.sign()
	if err := s.volumes.WriteVolume(vol); err != nil {
		return old, fmt.Errorf("persist volume: %w", err)
	}
	s.logger.Info("volume adjusted", "from", old, "to", vol, "steps", acked, "requested", repeat)
	return vol, nil
}

// scrapeVolume recovers the volume the last player reported before it
// exited and persists it. The capture file is consumed so this happens once
// per player.
func (s *Supervisor) scrapeVolume() {
	if s.cfg.CaptureFile == "" || s.volumes == nil {
		return
	}

	f, err := s.fs.Open(s.cfg.CaptureFile)
	if err != nil {
		return
	}
	vol, found := ScrapeVolume(f)
	f.Close()

	if err := s.fs.Remove(s.cfg.CaptureFile); err != nil {
		s.logger.Warn("remove capture file", "path", s.cfg.CaptureFile, "error", err)
	}
	if !found {
		return
	}

	if err := s.volumes.WriteVolume(vol); err != nil {
		s.logger.Warn("persist scraped volume", "volume", vol, "error", err)
		return
	}
	s.logger.Info("recovered volume from player output", "volume", vol)
}

func (d Direction) sign() int {
	if d < 0 {
		return -1
	}
	return 1
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
