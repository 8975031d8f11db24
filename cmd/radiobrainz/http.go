package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"radiobrainz/internal/command"
	"radiobrainz/internal/controller"
)

// ============================================================================
// HTTP server
// ============================================================================
//
//   POST /control         form field control=<index-or-name[:arg]>
//   GET  /play?station=   play a station
//   GET|POST /?<id>       raw query naming a station; a posted control wins
//   GET  /status          status snapshot
//   GET  /controls        the control table
//   GET  /ws              state websocket
//   GET  /metrics         Prometheus metrics
// ============================================================================

type httpAPI struct {
	daemon submitter
	logger *slog.Logger
}

// newHTTPHandler builds the mux. state and metrics may be nil.
func newHTTPHandler(s submitter, state, metrics http.Handler, logger *slog.Logger) http.Handler {
	api := &httpAPI{daemon: s, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /control", api.handleControl)
	mux.HandleFunc("GET /play", api.handlePlay)
	mux.HandleFunc("GET /status", api.handleStatus)
	mux.HandleFunc("GET /controls", api.handleControls)
	mux.HandleFunc("/{$}", api.handleRoot)
	if state != nil {
		mux.Handle("GET /ws", state)
	}
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	return withRequestID(mux)
}

// withRequestID tags each request with an id from X-Request-ID or a fresh
// UUID, and echoes it back.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(controller.WithRequestID(r.Context(), id)))
	})
}

func (a *httpAPI) handleControl(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		a.writeError(w, http.StatusBadRequest, fmt.Errorf("parse form: %w", err))
		return
	}
	res, err := a.daemon.ExecuteControl(r.Context(), r.PostForm.Get("control"), rawQuery(r))
	a.writeResult(w, res, err)
}

func (a *httpAPI) handlePlay(w http.ResponseWriter, r *http.Request) {
	res, err := a.daemon.Execute(r.Context(), string(command.Play), r.URL.Query().Get("station"))
	a.writeResult(w, res, err)
}

func (a *httpAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.daemon.Status(r.Context())
	if err != nil {
		a.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	a.writeJSON(w, http.StatusOK, st)
}

func (a *httpAPI) handleControls(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, command.Controls())
}

// handleRoot serves the front end's single endpoint: one command per
// request, or just the status when the request names none.
func (a *httpAPI) handleRoot(w http.ResponseWriter, r *http.Request) {
	var control string
	switch r.Method {
	case http.MethodGet, http.MethodHead:
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			a.writeError(w, http.StatusBadRequest, fmt.Errorf("parse form: %w", err))
			return
		}
		control = r.PostForm.Get("control")
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		a.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	query := rawQuery(r)
	if control == "" && query == "" {
		a.handleStatus(w, r)
		return
	}

	res, err := a.daemon.ExecuteControl(r.Context(), control, query)
	a.writeResult(w, res, err)
}

// rawQuery returns the unescaped query string, which names a station.
func rawQuery(r *http.Request) string {
	q, err := url.QueryUnescape(r.URL.RawQuery)
	if err != nil {
		return r.URL.RawQuery
	}
	return q
}

func (a *httpAPI) writeResult(w http.ResponseWriter, res controller.Result, err error) {
	if err != nil {
		a.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	a.writeJSON(w, resultHTTPStatus(res), res)
}

func resultHTTPStatus(res controller.Result) int {
	if res.OK {
		return http.StatusOK
	}
	switch res.Error {
	case controller.KindUnknownCommand, controller.KindInvalidArgument,
		controller.KindNoCommand, controller.KindUnsupportedAction:
		return http.StatusBadRequest
	case controller.KindResolutionFailed:
		return http.StatusNotFound
	case controller.KindChannelUnavailable:
		return http.StatusConflict
	case controller.KindLockBusy:
		return http.StatusServiceUnavailable
	case controller.KindTimeoutWaitingForExit, controller.KindUnacknowledged:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (a *httpAPI) writeError(w http.ResponseWriter, code int, err error) {
	a.writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (a *httpAPI) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Debug("write response failed", "error", err)
	}
}

// runHTTPServer serves handler on addr and shuts it down gracefully when
// ctx is canceled.
func runHTTPServer(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	logger.Info("HTTP server listening", "addr", ln.Addr().String())

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: httpReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		// Serve returns http.ErrServerClosed on Shutdown; treat that as clean exit.
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
