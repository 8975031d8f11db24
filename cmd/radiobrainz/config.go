package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration.
//
// Defaults and validation live here so the rest of the code can assume a
// well-formed config. The config file is the primary surface; flags only
// override individual values.
type Config struct {
	Player    PlayerConfig    `yaml:"player"`
	State     StateConfig     `yaml:"state"`
	Playlists PlaylistsConfig `yaml:"playlists"`
	IPC       IPCConfig       `yaml:"ipc"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type PlayerConfig struct {
	Executable string   `yaml:"executable"`
	Args       []string `yaml:"args"`

	// ProcessName is what liveness checks look for. Empty means the base
	// name of Executable, resolved by Validate.
	ProcessName string `yaml:"process_name,omitempty"`

	// Channel selects how actions reach the player: "dbus" or "fifo".
	Channel        string `yaml:"channel"`
	FIFOPath       string `yaml:"fifo_path"`
	BusAddressFile string `yaml:"bus_address_file"`
	BusTimeoutMS   int    `yaml:"bus_timeout_ms"`
	PipeAttempts   int    `yaml:"pipe_attempts"`

	StepSize       int `yaml:"step_size"`
	DefaultVolume  int `yaml:"default_volume"`
	StopAttempts   int `yaml:"stop_attempts"`
	StopIntervalMS int `yaml:"stop_interval_ms"`

	// CaptureFile receives the player's output. Empty means
	// <state.dir>/player.log.
	CaptureFile string `yaml:"capture_file,omitempty"`
}

type StateConfig struct {
	Dir           string `yaml:"dir"`
	LockTimeoutMS int    `yaml:"lock_timeout_ms"`
}

type PlaylistsConfig struct {
	Dir string `yaml:"dir"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	// File, when set, receives a rotated copy of the log.
	File string `yaml:"file,omitempty"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Player: PlayerConfig{
			Executable:     defaultPlayerExecutable,
			Args:           []string{"-o", "local"},
			Channel:        channelDBus,
			FIFOPath:       defaultFIFOPath,
			BusAddressFile: busAddressFilePrefix + currentUser(),
			BusTimeoutMS:   defaultBusTimeoutMS,
			PipeAttempts:   defaultPipeAttempts,
			StepSize:       defaultStepSize,
			StopAttempts:   defaultStopAttempts,
			StopIntervalMS: defaultStopIntervalMS,
		},
		State: StateConfig{
			Dir:           filepath.Join(xdg.StateHome, appName),
			LockTimeoutMS: defaultLockTimeoutMS,
		},
		Playlists: PlaylistsConfig{
			Dir: filepath.Join(xdg.DataHome, appName, "playlists"),
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocket,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Listen:  defaultHTTPListen,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultConfigPath is $XDG_CONFIG_HOME/radiobrainz/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// LoadConfig loads path on top of the defaults. A missing file is only an
// error when the path was given explicitly.
func LoadConfig(path string, explicit bool) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile reads and parses a YAML config file.
//
// Unknown fields are rejected (helps catch typos) and so is anything after
// the first document.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds values from flags that were explicitly set. A nil
// pointer means "not set"; a non-nil pointer is applied even if it holds a
// zero value.
type FlagOverrides struct {
	LogLevel   *string
	LogFile    *string
	StateDir   *string
	SocketPath *string

	PlaylistsDir *string
	HTTPListen   *string
	HTTPEnabled  *bool

	Channel       *string
	Executable    *string
	DefaultVolume *int
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFile != nil {
		cfg.Logging.File = *o.LogFile
	}
	if o.StateDir != nil {
		cfg.State.Dir = *o.StateDir
	}
	if o.SocketPath != nil {
		cfg.IPC.SocketPath = *o.SocketPath
	}
	if o.PlaylistsDir != nil {
		cfg.Playlists.Dir = *o.PlaylistsDir
	}
	if o.HTTPListen != nil {
		cfg.HTTP.Listen = *o.HTTPListen
	}
	if o.HTTPEnabled != nil {
		cfg.HTTP.Enabled = *o.HTTPEnabled
	}
	if o.Channel != nil {
		cfg.Player.Channel = *o.Channel
	}
	if o.Executable != nil {
		cfg.Player.Executable = *o.Executable
		cfg.Player.ProcessName = filepath.Base(*o.Executable)
	}
	if o.DefaultVolume != nil {
		cfg.Player.DefaultVolume = *o.DefaultVolume
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults, file and overrides are applied.
func (c *Config) Validate() error {
	// Player
	if c.Player.Executable == "" {
		return errors.New("player.executable must not be empty")
	}
	if c.Player.ProcessName == "" {
		c.Player.ProcessName = filepath.Base(c.Player.Executable)
	}
	switch c.Player.Channel {
	case channelDBus:
		if c.Player.BusTimeoutMS <= 0 {
			return errors.New("player.bus_timeout_ms must be > 0")
		}
	case channelFIFO:
		if c.Player.FIFOPath == "" {
			return errors.New("player.fifo_path must not be empty when player.channel is fifo")
		}
		if c.Player.PipeAttempts <= 0 {
			return errors.New("player.pipe_attempts must be > 0")
		}
	default:
		return fmt.Errorf("player.channel must be %q or %q", channelDBus, channelFIFO)
	}
	if c.Player.StepSize <= 0 {
		return errors.New("player.step_size must be > 0")
	}
	if c.Player.StopAttempts <= 0 {
		return errors.New("player.stop_attempts must be > 0")
	}
	if c.Player.StopIntervalMS <= 0 {
		return errors.New("player.stop_interval_ms must be > 0")
	}

	// State
	if c.State.Dir == "" {
		return errors.New("state.dir must not be empty")
	}
	if c.State.LockTimeoutMS <= 0 {
		return errors.New("state.lock_timeout_ms must be > 0")
	}

	if c.Playlists.Dir == "" {
		return errors.New("playlists.dir must not be empty")
	}
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}
	if c.HTTP.Enabled && c.HTTP.Listen == "" {
		return errors.New("http.listen must not be empty when http.enabled is true")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// CaptureFile resolves the player output capture path.
func (c *Config) CaptureFile() string {
	if c.Player.CaptureFile != "" {
		return ExpandPath(c.Player.CaptureFile)
	}
	return filepath.Join(ExpandPath(c.State.Dir), "player.log")
}

func (c *Config) StopInterval() time.Duration {
	return time.Duration(c.Player.StopIntervalMS) * time.Millisecond
}

func (c *Config) BusTimeout() time.Duration {
	return time.Duration(c.Player.BusTimeoutMS) * time.Millisecond
}

func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.State.LockTimeoutMS) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}

// currentUser names the user omxplayer writes its bus address file for.
func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "root"
}
