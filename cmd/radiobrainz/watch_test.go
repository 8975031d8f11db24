package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWSURL(t *testing.T) {
	tests := map[string]string{
		":8080":            "ws://127.0.0.1:8080/ws",
		"0.0.0.0:8080":     "ws://127.0.0.1:8080/ws",
		"[::]:9000":        "ws://127.0.0.1:9000/ws",
		"192.168.1.5:8080": "ws://192.168.1.5:8080/ws",
		"radio.local:80":   "ws://radio.local:80/ws",
	}
	for in, want := range tests {
		if got := wsURL(in); got != want {
			t.Errorf("wsURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatFrame(t *testing.T) {
	got := formatFrame([]byte(`{"type":"status_changed","data":{"ok":true}}`))
	if got != `[status_changed] {"ok":true}` {
		t.Fatalf("formatFrame = %q", got)
	}

	withTs := formatFrame([]byte(`{"type":"state_init","ts":"2024-05-01T10:00:00Z","data":{}}`))
	if !strings.HasPrefix(withTs, "[state_init] ") || !strings.HasSuffix(withTs, " {}") {
		t.Fatalf("formatFrame with ts = %q", withTs)
	}

	if got := formatFrame([]byte("not json")); got != "not json" {
		t.Fatalf("non-envelope frame = %q", got)
	}
}

func TestRunWatch_PrintsFramesUntilServerCloses(t *testing.T) {
	up := websocket.Upgrader{}
	srv := httptest.NewServer(websocketHandler(func(conn *websocket.Conn) {
		msg, _ := marshalEnvelope(wsTypeStateInit, map[string]int{"volume": -300})
		_ = conn.WriteMessage(websocket.TextMessage, msg)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}, &up))
	defer srv.Close()

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	if err := runWatch(ctx, url, &out, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("runWatch: %v", err)
	}
	if !strings.Contains(out.String(), `[state_init]`) || !strings.Contains(out.String(), `{"volume":-300}`) {
		t.Fatalf("output = %q", out.String())
	}
}

func TestRunWatch_BadURL(t *testing.T) {
	err := runWatch(context.Background(), "ws://127.0.0.1:1/ws", io.Discard, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Fatalf("expected connect error")
	}
}

// websocketHandler upgrades and hands the connection to serve.
func websocketHandler(serve func(*websocket.Conn), up *websocket.Upgrader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	})
}
