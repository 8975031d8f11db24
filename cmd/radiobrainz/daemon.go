package main

import (
	"context"
	"errors"
	"log/slog"

	"radiobrainz/internal/controller"
)

// ============================================================================
// Daemon loop - single owner of the controller
// ============================================================================
//
// Every inbound request (IPC, HTTP, websocket snapshot) is funneled through
// one channel into runDaemon, which is the only goroutine that touches the
// controller. Results are fanned out to the state websocket afterwards.
// ============================================================================

// backend is what the daemon loop drives; *controller.Controller in
// production.
type backend interface {
	Execute(ctx context.Context, name, arg string) controller.Result
	ExecuteControl(ctx context.Context, control, query string) controller.Result
	Action(ctx context.Context, name string) controller.Result
	Status(ctx context.Context) controller.Status
}

type requestOp int

const (
	opExecute requestOp = iota
	opControl
	opAction
	opStatus
)

type daemonRequest struct {
	ctx   context.Context
	op    requestOp
	name  string // command / action name, or posted control for opControl
	arg   string // argument, or raw query for opControl
	reply chan daemonReply
}

type daemonReply struct {
	result controller.Result
	status controller.Status
}

var errDaemonStopped = errors.New("daemon stopped")

// Daemon is the request-side handle of runDaemon.
type Daemon struct {
	requests chan daemonRequest
	done     <-chan struct{}
}

func newDaemon(done <-chan struct{}) *Daemon {
	return &Daemon{
		requests: make(chan daemonRequest, requestQueueSize),
		done:     done,
	}
}

func (d *Daemon) Execute(ctx context.Context, name, arg string) (controller.Result, error) {
	r, err := d.submit(ctx, opExecute, name, arg)
	return r.result, err
}

func (d *Daemon) ExecuteControl(ctx context.Context, control, query string) (controller.Result, error) {
	r, err := d.submit(ctx, opControl, control, query)
	return r.result, err
}

func (d *Daemon) Action(ctx context.Context, name string) (controller.Result, error) {
	r, err := d.submit(ctx, opAction, name, "")
	return r.result, err
}

func (d *Daemon) Status(ctx context.Context) (controller.Status, error) {
	r, err := d.submit(ctx, opStatus, "", "")
	return r.status, err
}

func (d *Daemon) submit(ctx context.Context, op requestOp, name, arg string) (daemonReply, error) {
	req := daemonRequest{
		ctx:   ctx,
		op:    op,
		name:  name,
		arg:   arg,
		reply: make(chan daemonReply, 1),
	}

	select {
	case d.requests <- req:
	case <-ctx.Done():
		return daemonReply{}, ctx.Err()
	case <-d.done:
		return daemonReply{}, errDaemonStopped
	}

	select {
	case r := <-req.reply:
		return r, nil
	case <-ctx.Done():
		return daemonReply{}, ctx.Err()
	case <-d.done:
		return daemonReply{}, errDaemonStopped
	}
}

// runDaemon serves requests one at a time until ctx is canceled. Each
// executed command's result is offered to results without blocking.
func runDaemon(ctx context.Context, requests <-chan daemonRequest, b backend, results chan<- controller.Result, logger *slog.Logger) {
	logger.Info("daemon started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case req := <-requests:
			// The caller may have given up while the request sat in the queue.
			if req.ctx.Err() != nil {
				logger.Debug("dropping abandoned request", "op", req.op, "name", req.name)
				continue
			}

			var reply daemonReply
			switch req.op {
			case opExecute:
				reply.result = b.Execute(req.ctx, req.name, req.arg)
			case opControl:
				reply.result = b.ExecuteControl(req.ctx, req.name, req.arg)
			case opAction:
				reply.result = b.Action(req.ctx, req.name)
			case opStatus:
				reply.status = b.Status(req.ctx)
			}
			req.reply <- reply

			if req.op != opStatus && results != nil {
				select {
				case results <- reply.result:
				default:
					logger.Warn("result broadcast queue full, dropping", "command", reply.result.Command)
				}
			}
		}
	}
}
