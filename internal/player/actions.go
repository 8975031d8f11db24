package player

import (
	"fmt"
	"sort"
)

// Action is a control signal delivered to a running player.
type Action int

const (
	ActionVolumeUp Action = iota + 1
	ActionVolumeDown
	ActionStop
	ActionPause
	ActionHideVideo
	ActionShowVideo
	ActionToggleSubtitles
	ActionHideSubtitles
	ActionShowSubtitles
)

// actionInfo describes how an action is encoded on each channel.
// busCode is omxplayer's KeyConfig action id; key is the keyboard binding
// omxplayer reads from stdin (0 when there is none).
type actionInfo struct {
	name    string
	busCode int32
	key     byte
}

var actions = map[Action]actionInfo{
	ActionVolumeUp:        {name: "volu", busCode: 18, key: '+'},
	ActionVolumeDown:      {name: "vold", busCode: 17, key: '-'},
	ActionStop:            {name: "stop", busCode: 15, key: 'q'},
	ActionPause:           {name: "pause", busCode: 16, key: 'p'},
	ActionHideVideo:       {name: "hidevideo", busCode: 28},
	ActionShowVideo:       {name: "showvideo", busCode: 29},
	ActionToggleSubtitles: {name: "togglesubs", busCode: 12, key: 's'},
	ActionHideSubtitles:   {name: "hidesubs", busCode: 30, key: 'x'},
	ActionShowSubtitles:   {name: "showsubs", busCode: 31, key: 'w'},
}

func (a Action) String() string {
	if info, ok := actions[a]; ok {
		return info.name
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ParseAction looks an action up by its wire name.
func ParseAction(name string) (Action, error) {
	for a, info := range actions {
		if info.name == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedAction, name)
}

// ActionNames lists every action name, sorted.
func ActionNames() []string {
	names := make([]string, 0, len(actions))
	for _, info := range actions {
		names = append(names, info.name)
	}
	sort.Strings(names)
	return names
}

func (a Action) busCode() (int32, bool) {
	info, ok := actions[a]
	return info.busCode, ok
}

func (a Action) key() (byte, bool) {
	info, ok := actions[a]
	if !ok || info.key == 0 {
		return 0, false
	}
	return info.key, true
}
