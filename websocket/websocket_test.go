package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"shift-staffing-client/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticToken string

func (s staticToken) Token() string { return string(s) }

type recordingSinks struct {
	mu            sync.Mutex
	notifications []models.Notification
	swaps         []models.SwapRequest
	invalidations int
}

func (r *recordingSinks) Receive(n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recordingSinks) InvalidateShifts() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidations++
}

func (r *recordingSinks) ApplyUpdate(req models.SwapRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swaps = append(r.swaps, req)
}

func (r *recordingSinks) snapshot() (int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notifications), len(r.swaps), r.invalidations
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startHub() (*Hub, func()) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	return hub, func() {
		cancel()
		<-hub.Done()
	}
}

func TestHubRoutesMessagesToListener(t *testing.T) {
	hub, stopHub := startHub()
	defer stopHub()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = ServeWebSocket(hub, w, r, 7)
	}))
	defer srv.Close()

	sinks := &recordingSinks{}
	listener := NewListener(ListenerOptions{
		URL:    wsURL(srv),
		Tokens: staticToken("tok"),
		Sinks:  Sinks{Notifications: sinks, Shifts: sinks, Swaps: sinks},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	require.Eventually(t, func() bool { return hub.ConnectedClients() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, listener.Connected())

	require.True(t, hub.Publish(7, TypeNotification, models.Notification{NotificationID: 1, Priority: models.PriorityUrgent}))
	require.True(t, hub.Publish(7, TypeShiftUpdate, map[string]uint{"shift_id": 3}))
	require.True(t, hub.Publish(7, TypeSwapUpdate, models.SwapRequest{SwapID: 4, Status: models.SwapStatusApproved}))
	// another user's message must not arrive
	hub.Publish(8, TypeNotification, models.Notification{NotificationID: 2})

	require.Eventually(t, func() bool { return listener.Received() == 3 }, 2*time.Second, 10*time.Millisecond)
	notifications, swaps, invalidations := sinks.snapshot()
	assert.Equal(t, 1, notifications)
	assert.Equal(t, 1, swaps)
	assert.Equal(t, 2, invalidations, "shift update and approved swap both invalidate shifts")

	cancel()
	require.NoError(t, <-done)
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestListenerStopsWhenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	listener := NewListener(ListenerOptions{URL: wsURL(srv), MinBackoff: time.Millisecond})
	err := listener.Run(context.Background())
	assert.ErrorIs(t, err, ErrRejected)
}

func TestListenerReconnectsAfterDrop(t *testing.T) {
	hub, stopHub := startHub()
	defer stopHub()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err == nil {
				conn.Close()
			}
			return
		}
		_ = ServeWebSocket(hub, w, r, 1)
	}))
	defer srv.Close()

	var connects atomic.Int32
	listener := NewListener(ListenerOptions{
		URL:        wsURL(srv),
		OnConnect:  func() { connects.Add(1) },
		MinBackoff: 5 * time.Millisecond,
		MaxBackoff: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx) }()

	require.Eventually(t, func() bool { return hub.ConnectedClients() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return connects.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServerAnswersPing(t *testing.T) {
	hub, stopHub := startHub()
	defer stopHub()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = ServeWebSocket(hub, w, r, 1)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Message{Type: TypePing}))
	var reply Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, TypePong, reply.Type)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubStopClosesClients(t *testing.T) {
	hub, stopHub := startHub()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = ServeWebSocket(hub, w, r, 1)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ConnectedClients() == 1 }, 2*time.Second, 10*time.Millisecond)

	stopHub()
	assert.Equal(t, 0, hub.ConnectedClients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
