package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// watch - print the daemon's state websocket frames
// ============================================================================

// wsURL derives the websocket URL from an HTTP listen address such as
// ":8080" or "0.0.0.0:8080".
func wsURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return (&url.URL{Scheme: "ws", Host: listen, Path: "/ws"}).String()
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, port), Path: "/ws"}
	return u.String()
}

// runWatch connects to rawURL and prints one line per frame until ctx is
// canceled or the daemon closes the connection.
func runWatch(ctx context.Context, rawURL string, out io.Writer, logger *slog.Logger) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}

	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	logger.Debug("connecting", "url", u.String())
	conn, _, err := d.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", u, err)
	}
	defer conn.Close()

	// Protects concurrent writes (pings and the final close frame).
	var writeMu sync.Mutex

	_ = conn.SetReadDeadline(time.Now().Add(2 * pongWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(2 * pongWait))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	done := make(chan error, 1)
	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					done <- nil
				} else {
					done <- err
				}
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(2 * pongWait))
			fmt.Fprintln(out, formatFrame(message))
		}
	}()

	select {
	case <-ctx.Done():
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			logger.Debug("error closing connection", "error", err)
		}
		return nil

	case err := <-done:
		return err
	}
}

// formatFrame renders an envelope as "[type] ts data"; anything else is
// printed as-is.
func formatFrame(message []byte) string {
	var env struct {
		Type string          `json:"type"`
		Ts   *time.Time      `json:"ts"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &env); err != nil || env.Type == "" {
		return string(message)
	}

	ts := ""
	if env.Ts != nil {
		ts = env.Ts.Local().Format(time.TimeOnly) + " "
	}
	return fmt.Sprintf("[%s] %s%s", env.Type, ts, string(env.Data))
}
