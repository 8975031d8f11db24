// Package controller turns caller requests into player effects.
//
// It composes the command dispatcher, the player supervisor and the state
// store. Validation and station resolution happen before anything is
// locked; player-mutating effects then run one at a time, serialized by an
// in-process mutex and a machine-wide file lock, and every outcome is
// reported as a Result.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"radiobrainz/internal/command"
	"radiobrainz/internal/player"
	"radiobrainz/internal/store"
)

// Player is the part of the supervisor the controller drives.
type Player interface {
	IsRunning(ctx context.Context) bool
	SendAction(ctx context.Context, a player.Action) error
	StopAndWait(ctx context.Context) error
	Launch(ctx context.Context, resource string, volume int) error
	Adjust(ctx context.Context, d player.Direction, repeat int) (int, error)
}

// Locker serializes player-mutating work across processes.
type Locker interface {
	Acquire(ctx context.Context) (func(), error)
}

// Deps are the controller's collaborators. Lock and Metrics are optional.
type Deps struct {
	Dispatcher    *command.Dispatcher
	Player        Player
	Store         store.Store
	Lock          Locker
	Metrics       *Metrics
	Logger        *slog.Logger
	DefaultVolume int
}

type Controller struct {
	dispatcher    *command.Dispatcher
	player        Player
	store         store.Store
	lock          Locker
	metrics       *Metrics
	logger        *slog.Logger
	defaultVolume int

	mu sync.Mutex
}

func New(deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = command.NewDispatcher(nil)
	}
	return &Controller{
		dispatcher:    deps.Dispatcher,
		player:        deps.Player,
		store:         deps.Store,
		lock:          deps.Lock,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		defaultVolume: deps.DefaultVolume,
	}
}

// Execute runs the whitelisted command name with argument arg.
func (c *Controller) Execute(ctx context.Context, name, arg string) Result {
	eff, err := c.dispatcher.Dispatch(ctx, name, arg)
	if err != nil {
		return c.fail(ctx, label(name, arg), err)
	}
	return c.run(ctx, eff)
}

// ExecuteControl runs the single command of a front-end request: a posted
// control value, or failing that a raw query naming a station.
func (c *Controller) ExecuteControl(ctx context.Context, control, query string) Result {
	cmd, err := command.ParseRequest(control, query)
	if err != nil {
		if control != "" {
			return c.fail(ctx, control, err)
		}
		return c.fail(ctx, query, err)
	}

	eff, err := c.dispatcher.Resolve(ctx, cmd)
	if err != nil {
		return c.fail(ctx, cmd.String(), err)
	}
	return c.run(ctx, eff)
}

// Action delivers one extended player action (pause, subtitles, video).
// It changes no persisted state.
func (c *Controller) Action(ctx context.Context, name string) Result {
	a, err := player.ParseAction(name)
	if err != nil {
		return c.fail(ctx, name, err)
	}

	release, err := c.acquire(ctx)
	if err != nil {
		return c.fail(ctx, name, err)
	}
	defer release()

	if !c.player.IsRunning(ctx) {
		return c.fail(ctx, name, fmt.Errorf("%w: no player running", player.ErrChannelUnavailable))
	}
	if err := c.player.SendAction(ctx, a); err != nil {
		return c.fail(ctx, name, err)
	}
	return c.succeed(ctx, name, fmt.Sprintf("sent %s", a))
}

// Status reports whether a player runs and the persisted state.
func (c *Controller) Status(ctx context.Context) Status {
	var st Status
	if c.player != nil {
		st.Running = c.player.IsRunning(ctx)
	}
	if c.store != nil {
		st.Volume, st.VolumeKnown = c.store.ReadVolume()
		st.LastStation, _ = c.store.ReadLastStation()
	}
	return st
}

func (c *Controller) run(ctx context.Context, eff command.Effect) Result {
	cmd := eff.Command
	name := cmd.String()

	release, err := c.acquire(ctx)
	if err != nil {
		return c.fail(ctx, name, err)
	}
	defer release()

	switch cmd.Kind() {
	case command.KindStop:
		if err := c.stop(ctx); err != nil {
			return c.fail(ctx, name, err)
		}
		return c.succeed(ctx, name, "stopped")

	case command.KindAdjust:
		vol, err := c.player.Adjust(ctx, player.Direction(cmd.Direction()), cmd.Repeat())
		if err != nil {
			return c.fail(ctx, name, err)
		}
		return c.succeed(ctx, name, fmt.Sprintf("volume %d", vol))

	case command.KindPlay:
		return c.play(ctx, cmd, eff.Resource)

	default:
		return c.fail(ctx, name, fmt.Errorf("unhandled command kind %s", cmd.Kind()))
	}
}

// play stops the current player before reading the volume so a volume
// recovered from the old player's output seeds the new one.
func (c *Controller) play(ctx context.Context, cmd command.Command, resource string) Result {
	name := cmd.String()

	if err := c.stop(ctx); err != nil {
		return c.fail(ctx, name, err)
	}

	vol, ok := c.store.ReadVolume()
	if !ok {
		vol = c.defaultVolume
	}

	// The stop above was confirmed under the lock, so spawn directly.
	if err := c.player.Launch(ctx, resource, vol); err != nil {
		return c.fail(ctx, name, err)
	}
	c.metrics.observeSpawn()

	msg := fmt.Sprintf("playing %s at volume %d", cmd.Station(), vol)
	if err := c.store.WriteLastStation(cmd.Station()); err != nil {
		c.log(ctx).Warn("persist last station", "station", cmd.Station(), "error", err)
		msg += " (last station not saved)"
	}
	return c.succeed(ctx, name, msg)
}

func (c *Controller) stop(ctx context.Context) error {
	started := time.Now()
	err := c.player.StopAndWait(ctx)
	c.metrics.observeStopWait(time.Since(started))
	return err
}

func (c *Controller) acquire(ctx context.Context) (func(), error) {
	c.mu.Lock()
	if c.lock == nil {
		return c.mu.Unlock, nil
	}

	release, err := c.lock.Acquire(ctx)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	return func() {
		release()
		c.mu.Unlock()
	}, nil
}

func (c *Controller) succeed(ctx context.Context, name, msg string) Result {
	c.metrics.observeCommand(metricName(name), "ok")
	c.log(ctx).Info("command executed", "command", name, "message", msg)
	return Result{
		OK:      true,
		Message: msg,
		Command: name,
		Status:  c.Status(ctx),
	}
}

func (c *Controller) fail(ctx context.Context, name string, err error) Result {
	kind := ErrorKind(err)
	c.metrics.observeCommand(metricName(name), kind)
	c.log(ctx).Warn("command failed", "command", name, "kind", kind, "error", err)
	return Result{
		OK:      false,
		Message: err.Error(),
		Command: name,
		Error:   kind,
		Status:  c.Status(ctx),
	}
}

func label(name, arg string) string {
	if arg == "" {
		return name
	}
	return name + " " + arg
}

// metricName keeps label cardinality bounded: only known command and action
// names are used as-is.
func metricName(name string) string {
	name, _, _ = strings.Cut(name, " ")
	for _, n := range command.Names() {
		if string(n) == name {
			return name
		}
	}
	if _, err := player.ParseAction(name); err == nil {
		return name
	}
	return "other"
}
