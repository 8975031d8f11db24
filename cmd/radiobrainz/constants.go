package main

import "time"

const version = "1.0.0"

// Player defaults (omxplayer).
const (
	defaultPlayerExecutable = "omxplayer"
	defaultStepSize         = 300 // millibels per volume step
	defaultStopAttempts     = 10
	defaultStopIntervalMS   = 1000
	defaultBusTimeoutMS     = 500
	defaultPipeAttempts     = 10
	defaultLockTimeoutMS    = 15000

	busAddressFilePrefix = "/tmp/omxplayerdbus."

	channelDBus = "dbus"
	channelFIFO = "fifo"
)

// Daemon defaults
const (
	defaultIPCSocket   = "/tmp/radiobrainz.sock"
	defaultHTTPListen  = ":8080"
	defaultFIFOPath    = "/tmp/radiobrainz.fifo"
	requestQueueSize   = 64
	broadcastQueueSize = 32

	httpShutdownTimeout = 3 * time.Second
	httpReadTimeout     = 10 * time.Second

	// Long enough for a full stop-and-wait cycle plus a lock wait.
	ipcClientTimeout = 30 * time.Second
)

const appName = "radiobrainz"
