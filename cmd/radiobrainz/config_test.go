package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Player.StepSize != 300 {
		t.Fatalf("step size = %d, want 300", cfg.Player.StepSize)
	}
	if !strings.HasPrefix(cfg.Player.BusAddressFile, busAddressFilePrefix) {
		t.Fatalf("bus address file = %q", cfg.Player.BusAddressFile)
	}
}

func TestLoadConfigFile_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
player:
  channel: fifo
  step_size: 150
  default_volume: -1500
state:
  dir: /var/lib/radiobrainz
http:
  enabled: false
`)
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Player.Channel != channelFIFO || cfg.Player.StepSize != 150 || cfg.Player.DefaultVolume != -1500 {
		t.Fatalf("player section not applied: %+v", cfg.Player)
	}
	if cfg.State.Dir != "/var/lib/radiobrainz" || cfg.HTTP.Enabled {
		t.Fatalf("sections not applied: state=%+v http=%+v", cfg.State, cfg.HTTP)
	}
	// Untouched values keep their defaults.
	if cfg.Player.Executable != defaultPlayerExecutable || cfg.Player.StopAttempts != defaultStopAttempts {
		t.Fatalf("defaults lost: %+v", cfg.Player)
	}
	if cfg.IPC.SocketPath != defaultIPCSocket {
		t.Fatalf("socket = %q", cfg.IPC.SocketPath)
	}
	if got := cfg.CaptureFile(); got != "/var/lib/radiobrainz/player.log" {
		t.Fatalf("CaptureFile = %q", got)
	}
}

func TestLoadConfigFile_ProcessNameFollowsExecutable(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"default player", "logging:\n  level: info\n", defaultPlayerExecutable},
		{"executable only", "player:\n  executable: mpv\n", "mpv"},
		{"executable path", "player:\n  executable: /usr/local/bin/mpv\n", "mpv"},
		{"explicit process name", "player:\n  executable: /opt/run-player.sh\n  process_name: mpv\n", "mpv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfigFile(writeConfig(t, tt.body))
			if err != nil {
				t.Fatalf("LoadConfigFile: %v", err)
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if cfg.Player.ProcessName != tt.want {
				t.Fatalf("process name = %q, want %q", cfg.Player.ProcessName, tt.want)
			}
		})
	}
}

func TestLoadConfigFile_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown field", "player:\n  stepsize: 100\n", "decode config yaml"},
		{"trailing document", "player:\n  step_size: 100\n---\nplayer:\n  step_size: 200\n", "trailing document"},
		{"wrong type", "player:\n  step_size: loud\n", "decode config yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFile(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := LoadConfig(missing, false)
	if err != nil {
		t.Fatalf("implicit missing config should fall back to defaults: %v", err)
	}
	if cfg.Player.StepSize != defaultStepSize {
		t.Fatalf("not the defaults: %+v", cfg.Player)
	}

	if _, err := LoadConfig(missing, true); err == nil {
		t.Fatalf("explicit missing config should fail")
	}
}

func TestFlagOverridesApply(t *testing.T) {
	cfg := DefaultConfig()

	level := "debug"
	state := "/srv/state"
	player := "/usr/local/bin/mpv-wrapper"
	listen := "127.0.0.1:9000"
	off := false
	vol := -2100

	FlagOverrides{
		LogLevel:      &level,
		StateDir:      &state,
		Executable:    &player,
		HTTPListen:    &listen,
		HTTPEnabled:   &off,
		DefaultVolume: &vol,
	}.Apply(&cfg)

	if cfg.Logging.Level != "debug" || cfg.State.Dir != state || cfg.HTTP.Listen != listen || cfg.HTTP.Enabled {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Player.Executable != player || cfg.Player.ProcessName != "mpv-wrapper" {
		t.Fatalf("executable override: %+v", cfg.Player)
	}
	if cfg.Player.DefaultVolume != -2100 {
		t.Fatalf("default volume = %d", cfg.Player.DefaultVolume)
	}
	// Unset overrides leave values alone.
	if cfg.IPC.SocketPath != defaultIPCSocket {
		t.Fatalf("socket changed: %q", cfg.IPC.SocketPath)
	}

	// nil cfg is a no-op.
	FlagOverrides{LogLevel: &level}.Apply(nil)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty executable", func(c *Config) { c.Player.Executable = "" }, "player.executable"},
		{"bad channel", func(c *Config) { c.Player.Channel = "serial" }, "player.channel"},
		{"zero bus timeout", func(c *Config) { c.Player.BusTimeoutMS = 0 }, "bus_timeout_ms"},
		{"fifo without path", func(c *Config) { c.Player.Channel = channelFIFO; c.Player.FIFOPath = "" }, "fifo_path"},
		{"fifo without attempts", func(c *Config) { c.Player.Channel = channelFIFO; c.Player.PipeAttempts = 0 }, "pipe_attempts"},
		{"zero step", func(c *Config) { c.Player.StepSize = 0 }, "step_size"},
		{"zero stop attempts", func(c *Config) { c.Player.StopAttempts = 0 }, "stop_attempts"},
		{"zero stop interval", func(c *Config) { c.Player.StopIntervalMS = 0 }, "stop_interval_ms"},
		{"empty state dir", func(c *Config) { c.State.Dir = "" }, "state.dir"},
		{"zero lock timeout", func(c *Config) { c.State.LockTimeoutMS = 0 }, "lock_timeout_ms"},
		{"empty playlists dir", func(c *Config) { c.Playlists.Dir = "" }, "playlists.dir"},
		{"empty socket", func(c *Config) { c.IPC.SocketPath = "" }, "ipc.socket_path"},
		{"http without listen", func(c *Config) { c.HTTP.Listen = "" }, "http.listen"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}

	t.Run("http disabled needs no listen", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.HTTP.Enabled = false
		cfg.HTTP.Listen = ""
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("process name derived from executable", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Player.Executable = "/opt/bin/omxplayer.bin"
		cfg.Player.ProcessName = ""
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Player.ProcessName != "omxplayer.bin" {
			t.Fatalf("process name = %q", cfg.Player.ProcessName)
		}
	})
}

func TestConfigDurations(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.StopInterval(); got != time.Second {
		t.Fatalf("StopInterval = %v", got)
	}
	if got := cfg.BusTimeout(); got != 500*time.Millisecond {
		t.Fatalf("BusTimeout = %v", got)
	}
	if got := cfg.LockTimeout(); got != 15*time.Second {
		t.Fatalf("LockTimeout = %v", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := map[string]string{
		"":             "",
		"/abs/path":    "/abs/path",
		"rel/path":     "rel/path",
		"~":            home,
		"~/state":      filepath.Join(home, "state"),
		"~other/state": "~other/state",
	}
	for in, want := range tests {
		if got := ExpandPath(in); got != want {
			t.Errorf("ExpandPath(%q) = %q, want %q", in, got, want)
		}
	}
}
