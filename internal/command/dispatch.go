package command

import (
	"context"
	"fmt"
)

// Resolver maps a station id to a playable resource.
type Resolver interface {
	Resolve(ctx context.Context, id string) (string, error)
}

// Effect is a command ready for the supervisor. Resource is only set for
// play commands.
type Effect struct {
	Command  Command
	Resource string
}

// Dispatcher validates commands and resolves play targets.
type Dispatcher struct {
	resolver Resolver
}

func NewDispatcher(r Resolver) *Dispatcher {
	return &Dispatcher{resolver: r}
}

// Dispatch parses name/arg and, for play, resolves the station. It never
// touches the player or the state store.
func (d *Dispatcher) Dispatch(ctx context.Context, name, arg string) (Effect, error) {
	cmd, err := Parse(name, arg)
	if err != nil {
		return Effect{}, err
	}
	return d.Resolve(ctx, cmd)
}

// Resolve completes an already parsed command.
func (d *Dispatcher) Resolve(ctx context.Context, cmd Command) (Effect, error) {
	if cmd.Kind() != KindPlay {
		return Effect{Command: cmd}, nil
	}
	if d.resolver == nil {
		return Effect{}, fmt.Errorf("%w: no playlist resolver configured", ErrResolutionFailed)
	}

	res, err := d.resolver.Resolve(ctx, cmd.Station())
	if err != nil {
		return Effect{}, fmt.Errorf("%w: %s: %w", ErrResolutionFailed, cmd.Station(), err)
	}
	if res == "" {
		return Effect{}, fmt.Errorf("%w: %s resolved to an empty resource", ErrResolutionFailed, cmd.Station())
	}
	return Effect{Command: cmd, Resource: res}, nil
}
