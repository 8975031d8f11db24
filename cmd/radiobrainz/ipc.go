package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/google/uuid"

	"radiobrainz/internal/controller"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// Protocol: line-delimited JSON, one request per line, one response each.
//
//   {"command":"volu","arg":"3"}      whitelisted command
//   {"control":"2"}                   posted control (index or name[:arg])
//   {"query":"jazzfm"}                raw query naming a station
//   {"action":"pause"}                extended player action
//   {"status":true}                   status snapshot
//
// Responses: {"status":"ok","id":"...","result":{...}} or
//            {"status":"error","id":"...","error":"msg","result":{...}}
// ============================================================================

// submitter is the daemon's request API shared by the IPC and HTTP surfaces.
type submitter interface {
	Execute(ctx context.Context, name, arg string) (controller.Result, error)
	ExecuteControl(ctx context.Context, control, query string) (controller.Result, error)
	Action(ctx context.Context, name string) (controller.Result, error)
	Status(ctx context.Context) (controller.Status, error)
}

// IPCRequest is one client request.
type IPCRequest struct {
	ID      string `json:"id,omitempty"`
	Command string `json:"command,omitempty"`
	Arg     string `json:"arg,omitempty"`
	Control string `json:"control,omitempty"`
	Query   string `json:"query,omitempty"`
	Action  string `json:"action,omitempty"`
	Status  bool   `json:"status,omitempty"`
}

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status   string             `json:"status"` // "ok" or "error"
	ID       string             `json:"id,omitempty"`
	Error    string             `json:"error,omitempty"`
	Result   *controller.Result `json:"result,omitempty"`
	Snapshot *controller.Status `json:"snapshot,omitempty"`
}

func (r IPCRequest) validate() error {
	n := 0
	if r.Command != "" {
		n++
	}
	if r.Control != "" || r.Query != "" {
		n++
	}
	if r.Action != "" {
		n++
	}
	if r.Status {
		n++
	}
	switch {
	case n == 0:
		return errors.New("empty request: set one of command, control, query, action, status")
	case n > 1:
		return errors.New("ambiguous request: set only one of command, control/query, action, status")
	}
	if r.Arg != "" && r.Command == "" {
		return errors.New("arg is only valid with command")
	}
	return nil
}

// runIPCServer serves the unix socket until ctx is canceled, at which point
// it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, s submitter, logger *slog.Logger) error {
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	// Local users only; anyone who can reach the socket can drive the player.
	if err := os.Chmod(socketPath, 0o660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(ctx, conn, s, logger)
	}
}

// handleIPCConnection serves requests on one connection until the client
// hangs up.
func handleIPCConnection(ctx context.Context, conn net.Conn, s submitter, logger *slog.Logger) {
	defer conn.Close()

	// Unblock the scanner on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		logger.Debug("IPC received", "line", string(line))

		resp := serveIPCRequest(ctx, line, s)
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err)
			return
		}
	}

	logger.Debug("IPC connection closed")
}

func serveIPCRequest(ctx context.Context, line []byte, s submitter) IPCResponse {
	var req IPCRequest
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return IPCResponse{Status: "error", Error: fmt.Sprintf("parse request: %v", err)}
	}
	if err := req.validate(); err != nil {
		return IPCResponse{Status: "error", ID: req.ID, Error: err.Error()}
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	ctx = controller.WithRequestID(ctx, req.ID)

	if req.Status {
		st, err := s.Status(ctx)
		if err != nil {
			return IPCResponse{Status: "error", ID: req.ID, Error: err.Error()}
		}
		return IPCResponse{Status: "ok", ID: req.ID, Snapshot: &st}
	}

	var (
		res controller.Result
		err error
	)
	switch {
	case req.Command != "":
		res, err = s.Execute(ctx, req.Command, req.Arg)
	case req.Action != "":
		res, err = s.Action(ctx, req.Action)
	default:
		res, err = s.ExecuteControl(ctx, req.Control, req.Query)
	}
	if err != nil {
		return IPCResponse{Status: "error", ID: req.ID, Error: err.Error()}
	}

	resp := IPCResponse{Status: "ok", ID: req.ID, Result: &res}
	if !res.OK {
		resp.Status = "error"
		resp.Error = res.Message
	}
	return resp
}

// ============================================================================
// IPC Client
// ============================================================================

// SendIPCRequest sends one request to the daemon and returns its response.
// A response with status "error" is returned as-is, not as an error.
func SendIPCRequest(ctx context.Context, socketPath string, req IPCRequest) (IPCResponse, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(ipcClientTimeout)
	}
	_ = conn.SetDeadline(deadline)

	data, err := json.Marshal(req)
	if err != nil {
		return IPCResponse{}, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return IPCResponse{}, fmt.Errorf("send request: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return IPCResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}
