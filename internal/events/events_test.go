package events

import (
	"bufio"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow/internal/impute"
)

func TestHubLastEvent(t *testing.T) {
	h := NewHub()
	_, ok := h.Last()
	assert.False(t, ok)

	h.Publish(RunEvent{Type: TypeRunStarted, RunID: "r1"})
	ev, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, "r1", ev.RunID)
	assert.False(t, ev.At.IsZero())
}

func TestTCPSubscriberReceivesEvents(t *testing.T) {
	hub := NewHub()
	srv := NewServer("127.0.0.1:0", hub)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()
	t.Cleanup(func() {
		_ = srv.Close()
		assert.NoError(t, <-done)
	})

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"type":"welcome"`)

	hub.Publish(RunEvent{
		Type:    TypeStepFinished,
		RunID:   "r1",
		Step:    "tags",
		Reports: []impute.Report{{Step: "tags", Column: "sectors", Filled: 3}},
	})

	line, err = r.ReadString('\n')
	require.NoError(t, err)
	var ev RunEvent
	require.NoError(t, json.Unmarshal([]byte(line), &ev))
	assert.Equal(t, TypeStepFinished, ev.Type)
	assert.Equal(t, "tags", ev.Step)
	require.Len(t, ev.Reports, 1)
	assert.Equal(t, 3, ev.Reports[0].Filled)
}

func TestWebSocketSubscriber(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/ws", WSHandler(hub))
	ts := httptest.NewServer(r)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), "websocket")

	require.Eventually(t, func() bool { return hub.Stats().WSClients == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(RunEvent{Type: TypeRunFailed, RunID: "r2", Error: "boom"})
	_, msg, err = ws.ReadMessage()
	require.NoError(t, err)
	var ev RunEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, TypeRunFailed, ev.Type)
	assert.Equal(t, "boom", ev.Error)

	_ = ws.Close()
	require.Eventually(t, func() bool { return hub.Stats().WSClients == 0 }, 2*time.Second, 10*time.Millisecond)
}
