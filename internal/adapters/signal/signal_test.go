package signal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/StudioRelay/internal/app"
	"github.com/dkeye/StudioRelay/internal/app/orch"
	"github.com/dkeye/StudioRelay/internal/core"
	"github.com/dkeye/StudioRelay/internal/domain"
)

const waitTime = 2 * time.Second

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type mockConn struct {
	mu   sync.Mutex
	sent [][]byte
}

func (m *mockConn) TrySend(f core.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, f)
	return nil
}

func (m *mockConn) Close() {}

func (m *mockConn) frames(t *testing.T) []frame {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []frame
	for _, raw := range m.sent {
		var f frame
		require.NoError(t, json.Unmarshal(raw, &f))
		if f.Event == "connect" {
			continue
		}
		out = append(out, f)
	}
	return out
}

type fixture struct {
	ctx  context.Context
	ctl  *SignalWSController
	loop *app.Loop
	orch *orch.Orchestrator
}

func newFixture(t *testing.T, limiter *app.JoinLimiter) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	loop := app.NewLoop(64)
	go loop.Run(ctx)

	o := orch.New(app.DropPolicy{}, limiter)
	ctl := NewSignalWSController(o, loop, Settings{
		AllowedOrigin: "http://localhost:3000",
		ReadLimit:     4096,
		PingPeriod:    time.Second,
		PongWait:      5 * time.Second,
		WriteWait:     time.Second,
		SendBuffer:    16,
	})
	return &fixture{ctx: ctx, ctl: ctl, loop: loop, orch: o}
}

func (f *fixture) connect(t *testing.T) (domain.ConnectionID, *mockConn) {
	t.Helper()
	c := &mockConn{}
	var cid domain.ConnectionID
	require.NoError(t, f.loop.Call(f.ctx, func() { cid = f.orch.OnConnect(c) }))
	return cid, c
}

// flush waits until every task queued so far has run.
func (f *fixture) flush(t *testing.T) {
	t.Helper()
	require.NoError(t, f.loop.Call(f.ctx, func() {}))
}

func (f *fixture) memberCount(t *testing.T, room domain.RoomKey) int {
	t.Helper()
	var n int
	require.NoError(t, f.loop.Call(f.ctx, func() { n = f.orch.Rooms.MemberCount(room) }))
	return n
}

func TestHandleSignal_Dispatch(t *testing.T) {
	f := newFixture(t, nil)
	a, ca := f.connect(t)
	b, cb := f.connect(t)

	f.ctl.handleSignal(a, ca, []byte(`{"event":"join","data":"room1"}`))
	f.ctl.handleSignal(b, cb, []byte(`{"event":"join","data":{"sessionId":"room1"}}`))
	f.ctl.handleSignal(a, ca, []byte(`{"event":"draw","data":{"sessionId":"room1","type":"circle","x":10,"y":20,"width":5}}`))
	f.flush(t)

	got := cb.frames(t)
	require.Len(t, got, 1)
	assert.Equal(t, "draw", got[0].Event)
	assert.JSONEq(t, `{"type":"circle","x":10,"y":20,"width":5}`, string(got[0].Data))
	assert.Empty(t, ca.frames(t))
}

func TestHandleSignal_Errors(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		reply string
	}{
		{name: "unknown kind is silent", raw: `{"event":"rename","data":{"name":"x"}}`},
		{name: "not json", raw: `{{`, reply: "bad_payload"},
		{name: "bad draw kind", raw: `{"event":"draw","data":{"type":"triangle","x":1,"y":1}}`, reply: "bad_payload"},
		{name: "empty session", raw: `{"event":"joinVideoConference","data":""}`, reply: "bad_payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			a, ca := f.connect(t)

			f.ctl.handleSignal(a, ca, []byte(tt.raw))
			f.flush(t)

			got := ca.frames(t)
			if tt.reply == "" {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, "error", got[0].Event)
			assert.JSONEq(t, `{"error":"`+tt.reply+`"}`, string(got[0].Data))
		})
	}
}

func TestHandleSignal_PingAndRateLimit(t *testing.T) {
	f := newFixture(t, app.NewJoinLimiter(1, time.Minute))
	a, ca := f.connect(t)

	f.ctl.handleSignal(a, ca, []byte(`{"event":"ping"}`))
	f.ctl.handleSignal(a, ca, []byte(`{"event":"join","data":"r1"}`))
	f.ctl.handleSignal(a, ca, []byte(`{"event":"join","data":"r2"}`))
	f.flush(t)

	got := ca.frames(t)
	require.Len(t, got, 2)
	assert.Equal(t, "pong", got[0].Event)
	assert.Equal(t, "error", got[1].Event)
	assert.JSONEq(t, `{"error":"rate_limited"}`, string(got[1].Data))
	assert.Equal(t, 1, f.memberCount(t, domain.Drawing("r1")))
}

func TestHandleSignal_Leave(t *testing.T) {
	f := newFixture(t, nil)
	a, ca := f.connect(t)

	f.ctl.handleSignal(a, ca, []byte(`{"event":"join","data":"r1"}`))
	f.ctl.handleSignal(a, ca, []byte(`{"event":"joinVideoConference","data":"r1"}`))
	f.flush(t)
	assert.Equal(t, 1, f.memberCount(t, domain.Drawing("r1")))
	assert.Equal(t, 1, f.memberCount(t, domain.Video("r1")))

	f.ctl.handleSignal(a, ca, []byte(`{"event":"leave"}`))
	f.ctl.handleSignal(a, ca, []byte(`{"event":"leaveVideoConference"}`))
	f.flush(t)
	assert.Equal(t, 0, f.memberCount(t, domain.Drawing("r1")))
	assert.Equal(t, 0, f.memberCount(t, domain.Video("r1")))
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed string
		origin  string
		want    bool
	}{
		{name: "match", allowed: "http://localhost:3000", origin: "http://localhost:3000", want: true},
		{name: "case", allowed: "http://localhost:3000", origin: "HTTP://LOCALHOST:3000", want: true},
		{name: "other", allowed: "http://localhost:3000", origin: "http://evil.test", want: false},
		{name: "no origin", allowed: "http://localhost:3000", origin: "", want: true},
		{name: "wildcard", allowed: "*", origin: "http://evil.test", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, OriginChecker(tt.allowed)(r))
		})
	}
}

// wsClient is a thin test peer over a real WebSocket.
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   domain.ConnectionID
}

func startServer(t *testing.T, f *fixture) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { f.ctl.HandleSignal(f.ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *wsClient {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &wsClient{t: t, conn: conn}
	f := c.read()
	require.Equal(t, "connect", f.Event)
	var hello struct {
		ID domain.ConnectionID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(f.Data, &hello))
	require.NotEmpty(t, hello.ID)
	c.id = hello.ID
	return c
}

func (c *wsClient) send(raw string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func (c *wsClient) read() frame {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(waitTime)))
	_, data, err := c.conn.ReadMessage()
	require.NoError(c.t, err)
	var f frame
	require.NoError(c.t, json.Unmarshal(data, &f))
	return f
}

// expectSilence asserts nothing arrives within a short window.
func (c *wsClient) expectSilence() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, data, err := c.conn.ReadMessage()
	require.Error(c.t, err, "unexpected frame %s", data)
}

func (f *fixture) waitMembers(t *testing.T, room domain.RoomKey, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.memberCount(t, room) == n }, waitTime, 10*time.Millisecond)
}

func TestWebSocket_DrawRelay(t *testing.T) {
	f := newFixture(t, nil)
	url := startServer(t, f)

	a := dial(t, url)
	b := dial(t, url)
	c := dial(t, url)

	a.send(`{"event":"join","data":"room1"}`)
	b.send(`{"event":"join","data":"room1"}`)
	c.send(`{"event":"join","data":"room2"}`)
	f.waitMembers(t, domain.Drawing("room1"), 2)
	f.waitMembers(t, domain.Drawing("room2"), 1)

	a.send(`{"event":"draw","data":{"sessionId":"room1","type":"draw","x":10,"y":20}}`)
	a.send(`{"event":"draw","data":{"sessionId":"room1","type":"erase","x":11,"y":21}}`)
	a.send(`{"event":"draw","data":{"type":"text","x":12,"y":22,"text":"hi"}}`)

	want := []string{
		`{"type":"draw","x":10,"y":20}`,
		`{"type":"erase","x":11,"y":21}`,
		`{"type":"text","x":12,"y":22,"text":"hi"}`,
	}
	for _, w := range want {
		got := b.read()
		assert.Equal(t, "draw", got.Event)
		assert.JSONEq(t, w, string(got.Data))
	}
	a.expectSilence()
	c.expectSilence()
}

func TestWebSocket_VideoPresence(t *testing.T) {
	f := newFixture(t, nil)
	url := startServer(t, f)

	a := dial(t, url)
	b := dial(t, url)

	b.send(`{"event":"joinVideoConference","data":"room1"}`)
	f.waitMembers(t, domain.Video("room1"), 1)
	a.send(`{"event":"joinVideoConference","data":"room1"}`)

	got := b.read()
	assert.Equal(t, "participantJoined", got.Event)
	assert.JSONEq(t, `{"participantId":"`+string(a.id)+`"}`, string(got.Data))

	require.NoError(t, b.conn.Close())

	got = a.read()
	assert.Equal(t, "participantLeft", got.Event)
	assert.JSONEq(t, `{"participantId":"`+string(b.id)+`"}`, string(got.Data))

	f.waitMembers(t, domain.Video("room1"), 1)
}

func TestWebSocket_DisconnectCleansUp(t *testing.T) {
	f := newFixture(t, nil)
	url := startServer(t, f)

	a := dial(t, url)
	a.send(`{"event":"join","data":"room1"}`)
	f.waitMembers(t, domain.Drawing("room1"), 1)

	require.NoError(t, a.conn.Close())
	require.Eventually(t, func() bool {
		var exists bool
		var conns int
		require.NoError(t, f.loop.Call(f.ctx, func() {
			exists = f.orch.Rooms.Exists(domain.Drawing("room1"))
			conns = f.orch.Registry.Len()
		}))
		return !exists && conns == 0
	}, waitTime, 10*time.Millisecond)
}

func TestWebSocket_PingAndBadPayload(t *testing.T) {
	f := newFixture(t, nil)
	url := startServer(t, f)

	a := dial(t, url)
	a.send(`{"event":"ping"}`)
	assert.Equal(t, "pong", a.read().Event)

	a.send(`{"event":"draw","data":{"type":"draw","x":1,"y":1,"extra":true}}`)
	got := a.read()
	assert.Equal(t, "error", got.Event)
	assert.JSONEq(t, `{"error":"bad_payload"}`, string(got.Data))
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	f := newFixture(t, nil)
	url := startServer(t, f)

	header := http.Header{}
	header.Set("Origin", "http://evil.test")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
