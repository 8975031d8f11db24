package command

import (
	"fmt"
	"strconv"
	"strings"
)

// Control is one button of the front end's control panel.
type Control struct {
	Index int    `json:"index"`
	Name  Name   `json:"name"`
	Arg   string `json:"arg,omitempty"`
	Label string `json:"label"`
}

var controls = []Control{
	{Index: 0, Name: Stop, Label: "Stop"},
	{Index: 1, Name: VolumeUp, Arg: "1", Label: "Vol +"},
	{Index: 2, Name: VolumeUp, Arg: "3", Label: "Vol +++"},
	{Index: 3, Name: VolumeDown, Arg: "3", Label: "Vol ---"},
	{Index: 4, Name: VolumeDown, Arg: "1", Label: "Vol -"},
}

func init() {
	for i, c := range controls {
		if c.Index != i {
			panic(fmt.Sprintf("control %q has index %d at position %d", c.Label, c.Index, i))
		}
		if _, err := Parse(string(c.Name), c.Arg); err != nil {
			panic(fmt.Sprintf("control %q is invalid: %v", c.Label, err))
		}
	}
}

// Controls returns a copy of the control table.
func Controls() []Control {
	out := make([]Control, len(controls))
	copy(out, controls)
	return out
}

// ParseControl accepts a posted control value: either an index into the
// control table or "name[:arg]".
func ParseControl(value string) (Command, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Command{}, fmt.Errorf("%w: empty control", ErrNoCommand)
	}

	if idx, err := strconv.Atoi(value); err == nil {
		if idx < 0 || idx >= len(controls) {
			return Command{}, fmt.Errorf("%w: no control at index %d", ErrUnknownCommand, idx)
		}
		c := controls[idx]
		return Parse(string(c.Name), c.Arg)
	}

	name, arg, _ := strings.Cut(value, ":")
	return Parse(name, arg)
}

// ParseRequest picks the single command of a request. A posted control
// takes precedence over a raw query naming a station.
func ParseRequest(control, query string) (Command, error) {
	if strings.TrimSpace(control) != "" {
		return ParseControl(control)
	}
	if query != "" {
		return Parse(string(Play), query)
	}
	return Command{}, ErrNoCommand
}
