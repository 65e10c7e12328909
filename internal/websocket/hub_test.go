package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(Options{AllowEmptyOrigin: true}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws/plans/:id", hub.HandleWebSocket)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/plans/"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readAll(t *testing.T, conn *websocket.Conn) []Message {
	t.Helper()
	var out []Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read error: %v", err)
			return out
		}
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		out = append(out, msg)
	}
}

func TestHub_LiveClientReceivesProgressThenResult(t *testing.T) {
	hub, base := startHub(t)
	conn := dial(t, base+"exec-1")

	require.Eventually(t, func() bool { return hub.ClientCount("exec-1") == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish("exec-1", MessageTypeProgress, map[string]any{"percent": 5})
	hub.Publish("exec-2", MessageTypeProgress, map[string]any{"percent": 99})
	hub.Finish("exec-1", map[string]any{"type": "complete"})

	msgs := readAll(t, conn)
	require.Len(t, msgs, 2)
	assert.Equal(t, MessageTypeProgress, msgs[0].Type)
	assert.Equal(t, "exec-1", msgs[0].ExecutionID)
	assert.Equal(t, MessageTypeResult, msgs[1].Type)
	assert.Zero(t, hub.ClientCount("exec-1"))
}

func TestHub_LateJoinerGetsReplay(t *testing.T) {
	hub, base := startHub(t)

	hub.Publish("exec-9", MessageTypeProgress, map[string]any{"percent": 5})
	hub.Publish("exec-9", MessageTypeProgress, map[string]any{"percent": 10})
	hub.Finish("exec-9", map[string]any{"type": "escalation"})
	hub.Publish("exec-9", MessageTypeProgress, map[string]any{"percent": 50})

	msgs := readAll(t, dial(t, base+"exec-9"))

	require.Len(t, msgs, 3)
	assert.Equal(t, MessageTypeResult, msgs[2].Type)
}

func TestOriginChecker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		opts   Options
		origin string
		want   bool
	}{
		{"allowed origin", Options{AllowedOrigins: []string{"http://localhost:3000"}}, "http://localhost:3000", true},
		{"unknown origin", Options{AllowedOrigins: []string{"http://localhost:3000"}}, "https://evil.example", false},
		{"empty origin in production", Options{}, "", false},
		{"empty origin allowed", Options{AllowEmptyOrigin: true}, "", true},
		{"wildcard", Options{AllowedOrigins: []string{"*"}}, "https://anything.example", true},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/ws/plans/x", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			assert.Equal(t, tc.want, originChecker(tc.opts)(req))
		})
	}
}

func TestHub_SweepDropsFinishedRooms(t *testing.T) {
	hub := NewHub(Options{}, nil)
	now := time.Unix(1000, 0)
	hub.now = func() time.Time { return now }

	hub.Finish("old", nil)
	hub.Publish("running", MessageTypeProgress, nil)
	now = now.Add(finishedRetention + time.Second)
	hub.sweep()

	assert.NotContains(t, hub.rooms, "old")
	assert.Contains(t, hub.rooms, "running")
}

func TestHub_UnknownExecutionRoomsAreReleased(t *testing.T) {
	hub := NewHub(Options{}, nil)

	for i := 0; i < 100; i++ {
		c := newClient(hub, nil, fmt.Sprintf("unknown-%d", i))
		hub.registerClient(c)
		hub.unregisterClient(c)
	}
	hub.sweep()
	assert.Empty(t, hub.rooms)

	hub.Publish("live", MessageTypeProgress, "step")
	c := newClient(hub, nil, "live")
	hub.registerClient(c)
	hub.unregisterClient(c)
	assert.Contains(t, hub.rooms, "live", "rooms with history stay for late joiners")
}

func TestHub_SendsDoNotBlockAfterShutdown(t *testing.T) {
	hub := NewHub(Options{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	for _, ch := range []chan *Client{hub.register, hub.unregister} {
		c := newClient(hub, nil, "late")
		done := make(chan struct{})
		go func() {
			hub.submit(ch, c)
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("submit blocked after hub shutdown")
		}
		_, open := <-c.send
		assert.False(t, open, "client is closed instead of queued")
	}
}
