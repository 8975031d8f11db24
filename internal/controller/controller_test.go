package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radiobrainz/internal/command"
	"radiobrainz/internal/player"
	"radiobrainz/internal/playlist"
	"radiobrainz/internal/store"
)

type fakePlayer struct {
	mu sync.Mutex

	running  bool
	stopErr  error
	startErr error
	adjust   func(d player.Direction, repeat int) (int, error)
	sendErr  error

	calls []string
}

func (p *fakePlayer) record(format string, args ...any) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *fakePlayer) IsRunning(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *fakePlayer) SendAction(_ context.Context, a player.Action) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("send %s", a)
	return p.sendErr
}

func (p *fakePlayer) StopAndWait(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("stop")
	if p.stopErr != nil {
		return p.stopErr
	}
	p.running = false
	return nil
}

func (p *fakePlayer) Launch(_ context.Context, resource string, volume int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("launch %s %d", resource, volume)
	if p.startErr != nil {
		return p.startErr
	}
	p.running = true
	return nil
}

func (p *fakePlayer) Adjust(_ context.Context, d player.Direction, repeat int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("adjust %d %d", d, repeat)
	if p.adjust == nil {
		return 0, nil
	}
	return p.adjust(d, repeat)
}

func (p *fakePlayer) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type busyLock struct{}

func (busyLock) Acquire(context.Context) (func(), error) {
	return nil, fmt.Errorf("%w: held", store.ErrLockBusy)
}

type countingLock struct {
	acquired int
	released int
}

func (l *countingLock) Acquire(context.Context) (func(), error) {
	l.acquired++
	return func() { l.released++ }, nil
}

type env struct {
	ctrl    *Controller
	player  *fakePlayer
	store   *store.FileStore
	metrics *Metrics
	lock    *countingLock
}

func newEnv(t *testing.T, p *fakePlayer) *env {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/playlists/jazzfm.pls",
		[]byte("[playlist]\nNumberOfEntries=1\nFile1=http://stream/jazz\nTitle1=Jazz FM\n"), 0o644))

	st := store.NewFileStore(fs, "/state")
	require.NoError(t, st.Init())

	m := NewMetrics(prometheus.NewRegistry())
	lock := &countingLock{}

	ctrl := New(Deps{
		Dispatcher:    command.NewDispatcher(playlist.NewPLSResolver(fs, "/playlists")),
		Player:        p,
		Store:         st,
		Lock:          lock,
		Metrics:       m,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		DefaultVolume: -1200,
	})
	return &env{ctrl: ctrl, player: p, store: st, metrics: m, lock: lock}
}

func TestExecute_UnknownCommandTouchesNothing(t *testing.T) {
	e := newEnv(t, &fakePlayer{running: true})

	res := e.ctrl.Execute(context.Background(), "reboot", "")

	assert.False(t, res.OK)
	assert.Equal(t, KindUnknownCommand, res.Error)
	assert.Empty(t, e.player.Calls())
	assert.Zero(t, e.lock.acquired)
	_, ok := e.store.ReadVolume()
	assert.False(t, ok)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.commands.WithLabelValues("other", KindUnknownCommand)))
}

func TestExecute_InvalidArgument(t *testing.T) {
	e := newEnv(t, &fakePlayer{running: true})

	for _, tc := range [][2]string{{"volu", "11"}, {"vold", "-1"}, {"stop", "now"}, {"play", "../etc/passwd"}} {
		res := e.ctrl.Execute(context.Background(), tc[0], tc[1])
		assert.False(t, res.OK, tc)
		assert.Equal(t, KindInvalidArgument, res.Error, tc)
	}
	assert.Empty(t, e.player.Calls())
}

func TestExecute_VolumeUp(t *testing.T) {
	p := &fakePlayer{
		running: true,
		adjust: func(d player.Direction, repeat int) (int, error) {
			return 500 + int(d)*repeat*100, nil
		},
	}
	e := newEnv(t, p)

	res := e.ctrl.Execute(context.Background(), "volu", "3")

	require.True(t, res.OK, res.Message)
	assert.Equal(t, "volu 3", res.Command)
	assert.Equal(t, "volume 800", res.Message)
	assert.Equal(t, []string{"adjust 1 3"}, p.Calls())
	assert.Equal(t, 1, e.lock.acquired)
	assert.Equal(t, 1, e.lock.released)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.commands.WithLabelValues("volu", "ok")))
}

func TestExecute_VolumeDownWithoutPlayer(t *testing.T) {
	p := &fakePlayer{
		adjust: func(player.Direction, int) (int, error) {
			return 0, fmt.Errorf("%w: omxplayer is not running", player.ErrChannelUnavailable)
		},
	}
	e := newEnv(t, p)

	res := e.ctrl.Execute(context.Background(), "vold", "1")

	assert.False(t, res.OK)
	assert.Equal(t, KindChannelUnavailable, res.Error)
}

func TestExecute_PlayStartsWithStoredVolume(t *testing.T) {
	p := &fakePlayer{running: true}
	e := newEnv(t, p)
	require.NoError(t, e.store.WriteVolume(-600))

	res := e.ctrl.Execute(context.Background(), "play", "jazzfm")

	require.True(t, res.OK, res.Message)
	assert.Equal(t, []string{"stop", "launch http://stream/jazz -600"}, p.Calls())
	assert.Equal(t, "jazzfm", res.Status.LastStation)
	assert.True(t, res.Status.Running)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.spawns))

	last, ok := e.store.ReadLastStation()
	require.True(t, ok)
	assert.Equal(t, "jazzfm", last)
}

func TestExecute_PlayUsesDefaultVolume(t *testing.T) {
	p := &fakePlayer{}
	e := newEnv(t, p)

	res := e.ctrl.Execute(context.Background(), "play", "jazzfm")

	require.True(t, res.OK, res.Message)
	assert.Equal(t, []string{"stop", "launch http://stream/jazz -1200"}, p.Calls())
}

func TestExecute_PlayUnknownStation(t *testing.T) {
	p := &fakePlayer{running: true}
	e := newEnv(t, p)

	res := e.ctrl.Execute(context.Background(), "play", "rockfm")

	assert.False(t, res.OK)
	assert.Equal(t, KindResolutionFailed, res.Error)
	assert.Empty(t, p.Calls())
	assert.Zero(t, e.lock.acquired)
	_, ok := e.store.ReadLastStation()
	assert.False(t, ok)
}

func TestExecute_PlaySpawnFailureKeepsLastStation(t *testing.T) {
	p := &fakePlayer{startErr: &player.SpawnError{Executable: "omxplayer", Err: errors.New("not found")}}
	e := newEnv(t, p)
	require.NoError(t, e.store.WriteLastStation("bbc4"))

	res := e.ctrl.Execute(context.Background(), "play", "jazzfm")

	assert.False(t, res.OK)
	assert.Equal(t, KindSpawnError, res.Error)
	assert.Equal(t, "bbc4", res.Status.LastStation)
	assert.Zero(t, testutil.ToFloat64(e.metrics.spawns))
}

func TestExecute_PlayAbortsWhenStopTimesOut(t *testing.T) {
	p := &fakePlayer{running: true, stopErr: player.ErrTimeoutWaitingForExit}
	e := newEnv(t, p)

	res := e.ctrl.Execute(context.Background(), "play", "jazzfm")

	assert.False(t, res.OK)
	assert.Equal(t, KindTimeoutWaitingForExit, res.Error)
	assert.Equal(t, []string{"stop"}, p.Calls())
}

func TestExecute_StopTimeoutLeavesStateUnchanged(t *testing.T) {
	p := &fakePlayer{running: true, stopErr: fmt.Errorf("%w: still running", player.ErrTimeoutWaitingForExit)}
	e := newEnv(t, p)
	require.NoError(t, e.store.WriteVolume(-300))
	require.NoError(t, e.store.WriteLastStation("jazzfm"))

	res := e.ctrl.Execute(context.Background(), "stop", "")

	assert.False(t, res.OK)
	assert.Equal(t, KindTimeoutWaitingForExit, res.Error)
	assert.Equal(t, Status{Running: true, Volume: -300, VolumeKnown: true, LastStation: "jazzfm"}, res.Status)
}

func TestExecute_StopIsIdempotent(t *testing.T) {
	p := &fakePlayer{}
	e := newEnv(t, p)

	for i := 0; i < 2; i++ {
		res := e.ctrl.Execute(context.Background(), "stop", "")
		require.True(t, res.OK, res.Message)
		assert.False(t, res.Status.Running)
	}
}

func TestExecute_LockBusy(t *testing.T) {
	p := &fakePlayer{running: true}
	e := newEnv(t, p)
	e.ctrl.lock = busyLock{}

	res := e.ctrl.Execute(context.Background(), "stop", "")

	assert.False(t, res.OK)
	assert.Equal(t, KindLockBusy, res.Error)
	assert.Empty(t, p.Calls())
}

func TestExecuteControl(t *testing.T) {
	tests := []struct {
		name    string
		control string
		query   string
		wantOK  bool
		wantErr string
		calls   []string
	}{
		{name: "index", control: "2", wantOK: true, calls: []string{"adjust 1 3"}},
		{name: "named", control: "vold:1", wantOK: true, calls: []string{"adjust -1 1"}},
		{name: "control wins over query", control: "0", query: "jazzfm", wantOK: true, calls: []string{"stop"}},
		{name: "query plays", query: "jazzfm", wantOK: true, calls: []string{"stop", "launch http://stream/jazz -1200"}},
		{name: "out of range", control: "9", wantErr: KindUnknownCommand},
		{name: "nothing", wantErr: KindNoCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePlayer{running: true}
			e := newEnv(t, p)

			res := e.ctrl.ExecuteControl(context.Background(), tt.control, tt.query)

			assert.Equal(t, tt.wantOK, res.OK, res.Message)
			assert.Equal(t, tt.wantErr, res.Error)
			assert.Equal(t, tt.calls, p.Calls())
		})
	}
}

func TestAction(t *testing.T) {
	p := &fakePlayer{running: true}
	e := newEnv(t, p)

	res := e.ctrl.Action(context.Background(), "pause")
	require.True(t, res.OK, res.Message)
	assert.Equal(t, []string{"send pause"}, p.Calls())

	res = e.ctrl.Action(context.Background(), "eject")
	assert.False(t, res.OK)
	assert.Equal(t, KindUnsupportedAction, res.Error)
}

func TestAction_NoPlayer(t *testing.T) {
	p := &fakePlayer{}
	e := newEnv(t, p)

	res := e.ctrl.Action(context.Background(), "togglesubs")

	assert.False(t, res.OK)
	assert.Equal(t, KindChannelUnavailable, res.Error)
	assert.Empty(t, p.Calls())
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("wrap: %w", command.ErrUnknownCommand), KindUnknownCommand},
		{player.ErrUnacknowledged, KindUnacknowledged},
		{fmt.Errorf("start: %w", &player.SpawnError{Executable: "x", Err: io.EOF}), KindSpawnError},
		{context.Canceled, KindCanceled},
		{errors.New("disk on fire"), KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err), fmt.Sprint(tt.err))
	}
}

func TestRequestIDLogged(t *testing.T) {
	var buf strings.Builder
	p := &fakePlayer{}
	e := newEnv(t, p)
	e.ctrl.logger = slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithRequestID(context.Background(), "req-42")
	e.ctrl.Execute(ctx, "stop", "")

	assert.Contains(t, buf.String(), "request_id=req-42")
}
