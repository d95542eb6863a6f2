package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionbridge/internal/dto"
	"visionbridge/internal/logger"
	"visionbridge/internal/model"
	"visionbridge/internal/service/metrics"
)

type hubFixture struct {
	hub     *HubService
	updates chan model.Snapshot
	url     string
	metrics *metrics.Metrics
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	m := metrics.New()
	f := &hubFixture{
		hub:     NewHubService(logger.NewDiscard(), m),
		updates: make(chan model.Snapshot),
		metrics: m,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.hub.Run(ctx, f.updates)
		close(done)
	}()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn)
		f.hub.Register(client)
		go client.WritePump()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				f.hub.Unregister(client)
				return
			}
		}
	}))

	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	f.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return f
}

func (f *hubFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) dto.SnapshotView {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type     string           `json:"type"`
		Snapshot dto.SnapshotView `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, MessageTypeSnapshot, msg.Type)
	return msg.Snapshot
}

func (f *hubFixture) waitClients(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.hub.GetClientCount() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastsSnapshots(t *testing.T) {
	f := newHubFixture(t)
	conn := f.dial(t)
	f.waitClients(t, 1)

	f.updates <- model.Snapshot{
		Version:      3,
		CameraActive: true,
		AutoInterval: 2500 * time.Millisecond,
		Latest:       &model.DetectionResult{Objects: []string{"cat", "dog"}, ObjectCount: 2},
	}

	view := readSnapshot(t, conn)
	assert.Equal(t, uint64(3), view.Version)
	assert.True(t, view.CameraActive)
	assert.Equal(t, int64(2500), view.AutoIntervalMS)
	assert.Equal(t, []string{"cat", "dog"}, view.Objects)
	assert.Equal(t, 2, view.ObjectCount)
}

func TestHub_LatestOnConnect(t *testing.T) {
	f := newHubFixture(t)
	f.updates <- model.Snapshot{Version: 7, LastMessage: "Visual sensors active"}

	conn := f.dial(t)
	view := readSnapshot(t, conn)
	assert.Equal(t, uint64(7), view.Version)
	assert.Equal(t, "Visual sensors active", view.LastMessage)
}

func TestHub_ViewerCount(t *testing.T) {
	f := newHubFixture(t)
	first := f.dial(t)
	f.dial(t)
	f.waitClients(t, 2)
	rec := httptest.NewRecorder()
	f.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "visionbridge_viewers 2")

	first.Close()
	f.waitClients(t, 1)
}

func TestHub_StopDisconnectsViewers(t *testing.T) {
	m := metrics.New()
	hub := NewHubService(logger.NewDiscard(), m)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx, nil)
		close(done)
	}()

	cancel()
	<-done

	assert.Equal(t, 0, hub.GetClientCount())
	assert.NotPanics(t, func() { hub.Unregister(&Client{done: make(chan struct{})}) })
}

func TestClient_OfferKeepsNewest(t *testing.T) {
	c := &Client{snapshots: make(chan []byte, 1), replies: make(chan []byte, 1), done: make(chan struct{})}

	c.offer([]byte("1"))
	c.offer([]byte("2"))
	assert.Equal(t, []byte("2"), <-c.snapshots)

	assert.True(t, c.Reply([]byte("a")))
	assert.False(t, c.Reply([]byte("b")), "full reply queue refuses")

	c.close()
	c.close()
	assert.False(t, c.Reply([]byte("c")))
}
