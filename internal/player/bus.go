package player

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	defaultBusDestination = "org.mpris.MediaPlayer2.omxplayer"
	busObjectPath         = "/org/mpris/MediaPlayer2"
	busActionMethod       = "org.mpris.MediaPlayer2.Player.Action"
	defaultBusTimeout     = 500 * time.Millisecond
)

// Channel delivers actions to a running player.
type Channel interface {
	Send(ctx context.Context, a Action) error
}

// BusConfig configures message-bus delivery.
type BusConfig struct {
	// AddressFile holds the player's private session bus address
	// (omxplayer writes /tmp/omxplayerdbus.<user>). Empty means the
	// caller's own session bus.
	AddressFile string
	Destination string
	Timeout     time.Duration
}

// BusChannel sends one-shot Action calls over D-Bus. A connection is opened
// per action and closed right after; nothing is held across requests.
type BusChannel struct {
	cfg BusConfig
}

var _ Channel = (*BusChannel)(nil)

func NewBusChannel(cfg BusConfig) *BusChannel {
	if cfg.Destination == "" {
		cfg.Destination = defaultBusDestination
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultBusTimeout
	}
	return &BusChannel{cfg: cfg}
}

// Send calls Player.Action with the action's code and waits up to the
// configured timeout for the reply.
func (b *BusChannel) Send(ctx context.Context, a Action) error {
	code, ok := a.busCode()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedAction, a)
	}

	conn, err := b.connect()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	defer conn.Close()

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	obj := conn.Object(b.cfg.Destination, dbus.ObjectPath(busObjectPath))
	call := obj.CallWithContext(callCtx, busActionMethod, 0, code)
	if call.Err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnacknowledged, a, call.Err)
	}
	return nil
}

func (b *BusChannel) connect() (*dbus.Conn, error) {
	if b.cfg.AddressFile == "" {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			return nil, fmt.Errorf("session bus: %w", err)
		}
		return conn, nil
	}

	raw, err := os.ReadFile(b.cfg.AddressFile)
	if err != nil {
		return nil, fmt.Errorf("read bus address: %w", err)
	}
	addr := strings.TrimSpace(string(raw))
	if addr == "" {
		return nil, fmt.Errorf("bus address file %s is empty", b.cfg.AddressFile)
	}

	conn, err := dbus.Connect(addr)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return conn, nil
}
