package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"radiobrainz/internal/command"
	"radiobrainz/internal/controller"
	"radiobrainz/internal/player"
	"radiobrainz/internal/playlist"
	"radiobrainz/internal/store"
)

// buildController wires the store, lock, playlist resolver, player channel,
// spawner and supervisor from cfg. reg may be nil (one-shot commands do not
// expose metrics).
func buildController(cfg Config, logger *slog.Logger, reg prometheus.Registerer) (*controller.Controller, error) {
	fs := afero.NewOsFs()
	stateDir := ExpandPath(cfg.State.Dir)

	st := store.NewFileStore(fs, stateDir)
	if err := st.Init(); err != nil {
		return nil, fmt.Errorf("init state dir: %w", err)
	}

	lock := store.NewFileLock(filepath.Join(stateDir, "lock"), cfg.LockTimeout())
	resolver := playlist.NewPLSResolver(fs, ExpandPath(cfg.Playlists.Dir))

	execCfg := player.ExecConfig{
		Executable:  cfg.Player.Executable,
		Args:        cfg.Player.Args,
		CaptureFile: cfg.CaptureFile(),
	}

	var channel player.Channel
	switch cfg.Player.Channel {
	case channelFIFO:
		pipe := player.NewPipeChannel(player.PipeConfig{
			Path:     ExpandPath(cfg.Player.FIFOPath),
			Attempts: cfg.Player.PipeAttempts,
		})
		execCfg.Stdin = pipe.PlayerInput
		channel = pipe
	default:
		channel = player.NewBusChannel(player.BusConfig{
			AddressFile: cfg.Player.BusAddressFile,
			Timeout:     cfg.BusTimeout(),
		})
	}

	sup := player.NewSupervisor(player.Config{
		ProcessName:   cfg.Player.ProcessName,
		StepSize:      cfg.Player.StepSize,
		DefaultVolume: cfg.Player.DefaultVolume,
		StopAttempts:  cfg.Player.StopAttempts,
		StopInterval:  cfg.StopInterval(),
		CaptureFile:   cfg.CaptureFile(),
	}, player.Deps{
		Channel: channel,
		Procs:   player.NewProcScanner(fs, "/proc"),
		Spawner: player.NewExecSpawner(execCfg, logger),
		Volumes: st,
		Fs:      fs,
		Logger:  logger,
	})

	var metrics *controller.Metrics
	if reg != nil {
		metrics = controller.NewMetrics(reg)
	}

	logger.Debug("controller configured",
		"state_dir", stateDir,
		"playlists_dir", cfg.Playlists.Dir,
		"channel", cfg.Player.Channel,
		"executable", cfg.Player.Executable,
		"capture_file", cfg.CaptureFile())

	return controller.New(controller.Deps{
		Dispatcher:    command.NewDispatcher(resolver),
		Player:        sup,
		Store:         st,
		Lock:          lock,
		Metrics:       metrics,
		Logger:        logger,
		DefaultVolume: cfg.Player.DefaultVolume,
	}), nil
}
