// Package command classifies caller input into validated player commands.
//
// The whitelist is a table keyed by command name; Parse is pure and total
// over it. Dispatch adds the one lookup a command needs before it can reach
// the player: resolving a station id to a stream URL.
package command

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrResolutionFailed = errors.New("resolution failed")
	ErrNoCommand        = errors.New("no command")
)

// Name is a whitelisted command name.
type Name string

const (
	Stop       Name = "stop"
	VolumeUp   Name = "volu"
	VolumeDown Name = "vold"
	Play       Name = "play"
)

// Kind is the effect a command has on the player.
type Kind int

const (
	KindStop Kind = iota + 1
	KindAdjust
	KindPlay
)

func (k Kind) String() string {
	switch k {
	case KindStop:
		return "stop"
	case KindAdjust:
		return "adjust"
	case KindPlay:
		return "play"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MaxRepeat bounds the repeat count of volume commands.
const MaxRepeat = 10

const maxStationLen = 128

var stationPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

type argShape int

const (
	argNone argShape = iota
	argRepeat
	argStation
)

type rule struct {
	arg       argShape
	kind      Kind
	direction int
}

var whitelist = map[Name]rule{
	Stop:       {arg: argNone, kind: KindStop},
	VolumeUp:   {arg: argRepeat, kind: KindAdjust, direction: +1},
	VolumeDown: {arg: argRepeat, kind: KindAdjust, direction: -1},
	Play:       {arg: argStation, kind: KindPlay},
}

func init() {
	for name, s := range whitelist {
		if s.kind == 0 {
			panic(fmt.Sprintf("command %q has no kind", name))
		}
		if s.kind == KindAdjust && s.direction != 1 && s.direction != -1 {
			panic(fmt.Sprintf("command %q has no direction", name))
		}
	}
}

// Command is a validated (name, argument) pair. The zero value is invalid.
type Command struct {
	name      Name
	kind      Kind
	repeat    int
	direction int
	station   string
}

func (c Command) Name() Name { return c.name }
func (c Command) Kind() Kind { return c.kind }

// Repeat is the number of volume steps for adjust commands.
func (c Command) Repeat() int { return c.repeat }

// Direction is +1 for volume up and -1 for volume down.
func (c Command) Direction() int { return c.direction }

// Station is the target id of a play command.
func (c Command) Station() string { return c.station }

func (c Command) String() string {
	switch c.kind {
	case KindAdjust:
		return fmt.Sprintf("%s %d", c.name, c.repeat)
	case KindPlay:
		return fmt.Sprintf("%s %s", c.name, c.station)
	default:
		return string(c.name)
	}
}

// Names returns the whitelisted command names.
func Names() []Name {
	return []Name{Stop, VolumeUp, VolumeDown, Play}
}

// Parse validates name and arg against the whitelist.
func Parse(name, arg string) (Command, error) {
	s, ok := whitelist[Name(name)]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	cmd := Command{name: Name(name), kind: s.kind, direction: s.direction}

	switch s.arg {
	case argNone:
		if arg != "" {
			return Command{}, fmt.Errorf("%w: %s takes no argument, got %q", ErrInvalidArgument, name, arg)
		}

	case argRepeat:
		n, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return Command{}, fmt.Errorf("%w: %s needs a repeat count, got %q", ErrInvalidArgument, name, arg)
		}
		if n > MaxRepeat {
			return Command{}, fmt.Errorf("%w: %s repeat %d exceeds %d", ErrInvalidArgument, name, n, MaxRepeat)
		}
		cmd.repeat = int(n)

	case argStation:
		if len(arg) > maxStationLen || !stationPattern.MatchString(arg) {
			return Command{}, fmt.Errorf("%w: malformed station %q", ErrInvalidArgument, arg)
		}
		cmd.station = arg
	}

	return cmd, nil
}
