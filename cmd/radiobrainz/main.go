// Command radiobrainz controls an external media player (omxplayer by
// default) for a single-board radio: one-shot commands from scripts or a
// web front end, or a long-running daemon with IPC, HTTP and a state
// websocket.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// errCommandFailed signals a failed Result that was already printed; main
// only turns it into the exit code.
var errCommandFailed = errors.New("command failed")

// app carries what every subcommand needs once flags and config are in.
type app struct {
	configPath string
	jsonOutput bool

	cfg      Config
	logger   *slog.Logger
	closeLog func() error
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		if !errors.Is(err, errCommandFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   appName,
		Short: "Media-player control panel backend",
		Long: `radiobrainz starts, signals and stops an external media player and keeps
volume and last station across invocations.

Run one command per invocation (exec, control, action, status), or run the
daemon (serve) and talk to it over its unix socket (send) or HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Flags())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.closeLog != nil {
				return a.closeLog()
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "config file (default "+DefaultConfigPath()+")")
	pf.BoolVar(&a.jsonOutput, "json", false, "print results as JSON")
	pf.String("log-level", "info", "log level: error, warn, info, debug")
	pf.String("log-file", "", "also write logs to this file (rotated)")
	pf.String("state-dir", "", "directory for persisted state")
	pf.String("socket", defaultIPCSocket, "unix socket path of the daemon")
	pf.String("playlists-dir", "", "directory holding <station>.pls files")
	pf.String("channel", channelDBus, "player control channel: dbus or fifo")
	pf.String("player", defaultPlayerExecutable, "player executable")

	root.AddCommand(
		newExecCmd(a),
		newControlCmd(a),
		newActionCmd(a),
		newStatusCmd(a),
		newControlsCmd(a),
		newServeCmd(a),
		newSendCmd(a),
		newWatchCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup loads config, applies flag overrides, validates and builds the
// logger.
func (a *app) setup(fs *pflag.FlagSet) error {
	cfg, err := LoadConfig(a.configPath, a.configPath != "")
	if err != nil {
		return err
	}
	flagOverrides(fs).Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	w, closer := logWriter(cfg.Logging)

	a.cfg = cfg
	a.logger = setupLogger(level, w)
	a.closeLog = closer
	return nil
}

// flagOverrides collects the flags the user actually set.
func flagOverrides(fs *pflag.FlagSet) FlagOverrides {
	str := func(name string) *string {
		if fs.Lookup(name) == nil || !fs.Changed(name) {
			return nil
		}
		v, err := fs.GetString(name)
		if err != nil {
			return nil
		}
		return &v
	}

	o := FlagOverrides{
		LogLevel:     str("log-level"),
		LogFile:      str("log-file"),
		StateDir:     str("state-dir"),
		SocketPath:   str("socket"),
		PlaylistsDir: str("playlists-dir"),
		HTTPListen:   str("listen"),
		Channel:      str("channel"),
		Executable:   str("player"),
	}
	if fs.Lookup("no-http") != nil && fs.Changed("no-http") {
		if v, err := fs.GetBool("no-http"); err == nil {
			enabled := !v
			o.HTTPEnabled = &enabled
		}
	}
	if fs.Lookup("default-volume") != nil && fs.Changed("default-volume") {
		if v, err := fs.GetInt("default-volume"); err == nil {
			o.DefaultVolume = &v
		}
	}
	return o
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		// No config needed.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "radiobrainz v%s\n", version)
	fmt.Fprintln(w, "Media-player control panel backend for single-board radios")
}
