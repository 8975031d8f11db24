package player

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

// Spawner starts a detached player process.
type Spawner interface {
	Spawn(ctx context.Context, resource string, volume int) error
}

// ExecConfig describes how to launch the player.
type ExecConfig struct {
	Executable string
	// Args go before "--vol <volume> <resource>", e.g. ["-o", "local"].
	Args []string
	// CaptureFile receives the player's stdout and stderr.
	CaptureFile string
	// Stdin, when set, supplies the player's standard input (the FIFO in
	// pipe mode). The spawner closes its own copy after the start.
	Stdin func() (*os.File, error)
}

// ExecSpawner launches the player with os/exec in its own session so it
// outlives the invocation that started it.
type ExecSpawner struct {
	cfg    ExecConfig
	logger *slog.Logger
}

var _ Spawner = (*ExecSpawner)(nil)

func NewExecSpawner(cfg ExecConfig, logger *slog.Logger) *ExecSpawner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecSpawner{cfg: cfg, logger: logger}
}

// Command builds the command line for resource at volume.
func (s *ExecSpawner) Command(resource string, volume int) []string {
	args := make([]string, 0, len(s.cfg.Args)+3)
	args = append(args, s.cfg.Args...)
	args = append(args, "--vol", strconv.Itoa(volume), resource)
	return args
}

func (s *ExecSpawner) Spawn(ctx context.Context, resource string, volume int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	exe, err := exec.LookPath(s.cfg.Executable)
	if err != nil {
		return err
	}

	// Not CommandContext: the player must survive the request that started it.
	cmd := exec.Command(exe, s.Command(resource, volume)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	var toClose []*os.File
	defer func() {
		for _, f := range toClose {
			_ = f.Close()
		}
	}()

	if s.cfg.CaptureFile != "" {
		out, err := os.OpenFile(s.cfg.CaptureFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("open capture file: %w", err)
		}
		toClose = append(toClose, out)
		cmd.Stdout = out
		cmd.Stderr = out
	}

	if s.cfg.Stdin != nil {
		in, err := s.cfg.Stdin()
		if err != nil {
			return fmt.Errorf("player input: %w", err)
		}
		toClose = append(toClose, in)
		cmd.Stdin = in
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	pid := cmd.Process.Pid
	s.logger.Info("player started", "pid", pid, "executable", exe, "resource", resource, "volume", volume)

	// Reap the child if we live long enough to see it exit (daemon mode).
	go func() {
		err := cmd.Wait()
		s.logger.Debug("player exited", "pid", pid, "error", err)
	}()

	return nil
}
