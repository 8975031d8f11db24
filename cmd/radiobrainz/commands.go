package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"radiobrainz/internal/command"
	"radiobrainz/internal/controller"
	"radiobrainz/internal/player"
)

// ============================================================================
// One-shot commands: one controller, one request, one process
// ============================================================================

func (a *app) oneShot(cmd *cobra.Command, run func(ctx context.Context, c *controller.Controller) controller.Result) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := buildController(a.cfg, a.logger, nil)
	if err != nil {
		return err
	}

	res := run(controller.WithRequestID(ctx, uuid.NewString()), c)
	if err := a.printResult(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if !res.OK {
		return errCommandFailed
	}
	return nil
}

func newExecCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec <command> [arg]",
		Short: "Run one whitelisted command: " + commandList(),
		Example: `  radiobrainz exec play jazzfm
  radiobrainz exec volu 3
  radiobrainz exec stop`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, arg := args[0], ""
			if len(args) == 2 {
				arg = args[1]
			}
			return a.oneShot(cmd, func(ctx context.Context, c *controller.Controller) controller.Result {
				return c.Execute(ctx, name, arg)
			})
		},
	}
	cmd.Flags().Int("default-volume", 0, "volume in millibels for a new player when none is stored")
	return cmd
}

func newControlCmd(a *app) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "control [index-or-name]",
		Short: "Run a front-end control (table index or name[:arg]); --query plays a station",
		Example: `  radiobrainz control 2
  radiobrainz control vold:1
  radiobrainz control --query jazzfm`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			control := ""
			if len(args) == 1 {
				control = args[0]
			}
			return a.oneShot(cmd, func(ctx context.Context, c *controller.Controller) controller.Result {
				return c.ExecuteControl(ctx, control, query)
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "raw query naming a station (used when no control is given)")
	cmd.Flags().Int("default-volume", 0, "volume in millibels for a new player when none is stored")
	return cmd
}

func newActionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "action <name>",
		Short: "Send an extended player action: " + strings.Join(player.ActionNames(), ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.oneShot(cmd, func(ctx context.Context, c *controller.Controller) controller.Result {
				return c.Action(ctx, args[0])
			})
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a player runs, the stored volume and the last station",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := buildController(a.cfg, a.logger, nil)
			if err != nil {
				return err
			}
			return a.printStatus(cmd.OutOrStdout(), c.Status(cmd.Context()))
		},
	}
}

func newControlsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "controls",
		Short: "List the front-end control table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			if a.jsonOutput {
				return json.NewEncoder(w).Encode(command.Controls())
			}
			for _, c := range command.Controls() {
				fmt.Fprintf(w, "%d\t%-8s\t%s\n", c.Index, c.Label, strings.TrimSpace(string(c.Name)+" "+c.Arg))
			}
			return nil
		},
	}
}

// ============================================================================
// serve - the daemon
// ============================================================================

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon: IPC socket, HTTP API, state websocket, metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("listen", defaultHTTPListen, "HTTP listen address")
	cmd.Flags().Bool("no-http", false, "disable the HTTP server")
	cmd.Flags().Int("default-volume", 0, "volume in millibels for a new player when none is stored")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := a.logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctrl, err := buildController(a.cfg, logger, reg)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	daemon := newDaemon(gctx.Done())
	results := make(chan controller.Result, broadcastQueueSize)
	hub := NewHub(logger, HubConfig{})

	g.Go(func() error {
		runDaemon(gctx, daemon.requests, ctrl, results, logger)
		return nil
	})
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		RunBroadcaster(gctx, hub, results, logger)
		return nil
	})
	g.Go(func() error {
		return runIPCServer(gctx, a.cfg.IPC.SocketPath, daemon, logger)
	})

	if a.cfg.HTTP.Enabled {
		handler := newHTTPHandler(
			daemon,
			NewStateServer(logger, hub, daemon.Status),
			promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			logger,
		)
		g.Go(func() error {
			return runHTTPServer(gctx, a.cfg.HTTP.Listen, handler, logger)
		})
	}

	logger.Info("radiobrainz started",
		"version", version,
		"socket", a.cfg.IPC.SocketPath,
		"http", a.cfg.HTTP.Enabled,
		"listen", a.cfg.HTTP.Listen,
		"channel", a.cfg.Player.Channel)

	err = g.Wait()
	logger.Info("shutting down")
	return err
}

// ============================================================================
// Daemon clients
// ============================================================================

func newSendCmd(a *app) *cobra.Command {
	var req IPCRequest
	cmd := &cobra.Command{
		Use:   "send [command] [arg]",
		Short: "Send one request to a running daemon over its unix socket",
		Example: `  radiobrainz send volu 3
  radiobrainz send --control 0
  radiobrainz send --action pause
  radiobrainz send --status`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				req.Command = args[0]
			}
			if len(args) > 1 {
				req.Arg = args[1]
			}
			if err := req.validate(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), ipcClientTimeout)
			defer cancel()

			resp, err := SendIPCRequest(ctx, a.cfg.IPC.SocketPath, req)
			if err != nil {
				return err
			}
			return a.printIPCResponse(cmd.OutOrStdout(), resp)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Control, "control", "", "posted control (index or name[:arg])")
	f.StringVar(&req.Query, "query", "", "raw query naming a station")
	f.StringVar(&req.Action, "action", "", "extended player action")
	f.BoolVar(&req.Status, "status", false, "request a status snapshot")
	f.StringVar(&req.ID, "id", "", "request id (default: generated by the daemon)")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var rawURL string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print state websocket events from a running daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if rawURL == "" {
				rawURL = wsURL(a.cfg.HTTP.Listen)
			}
			return runWatch(ctx, rawURL, cmd.OutOrStdout(), a.logger)
		},
	}
	cmd.Flags().StringVar(&rawURL, "url", "", "websocket URL (default derived from http.listen)")
	return cmd
}

// ============================================================================
// Output
// ============================================================================

func (a *app) printResult(w io.Writer, res controller.Result) error {
	if a.jsonOutput {
		return json.NewEncoder(w).Encode(res)
	}
	if res.OK {
		fmt.Fprintf(w, "ok: %s\n", res.Message)
	} else {
		fmt.Fprintf(w, "error [%s]: %s\n", res.Error, res.Message)
	}
	return a.printStatus(w, res.Status)
}

func (a *app) printStatus(w io.Writer, st controller.Status) error {
	if a.jsonOutput {
		return json.NewEncoder(w).Encode(st)
	}
	fmt.Fprintln(w, formatStatus(st))
	return nil
}

func formatStatus(st controller.Status) string {
	state := "stopped"
	if st.Running {
		state = "playing"
	}
	vol := "unknown"
	if st.VolumeKnown {
		vol = fmt.Sprintf("%d mB", st.Volume)
	}
	last := st.LastStation
	if last == "" {
		last = "-"
	}
	return fmt.Sprintf("player: %s  volume: %s  last station: %s", state, vol, last)
}

func (a *app) printIPCResponse(w io.Writer, resp IPCResponse) error {
	if a.jsonOutput {
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			return err
		}
	} else {
		switch {
		case resp.Result != nil:
			if err := a.printResult(w, *resp.Result); err != nil {
				return err
			}
		case resp.Snapshot != nil:
			fmt.Fprintln(w, formatStatus(*resp.Snapshot))
		default:
			fmt.Fprintf(w, "error: %s\n", resp.Error)
		}
	}

	if resp.Status != "ok" {
		return errCommandFailed
	}
	return nil
}

func commandList() string {
	names := make([]string, 0, len(command.Names()))
	for _, n := range command.Names() {
		names = append(names, string(n))
	}
	return strings.Join(names, ", ")
}
