package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"shift-staffing-client/models"
)

// ErrRejected means the server refused the push connection credentials.
var ErrRejected = errors.New("push connection rejected")

// TokenSource supplies the bearer token for each connection attempt.
type TokenSource interface {
	Token() string
}

type NotificationSink interface {
	Receive(n models.Notification)
}

type ShiftSink interface {
	InvalidateShifts()
}

type SwapSink interface {
	ApplyUpdate(req models.SwapRequest)
}

// Sinks receive decoded push messages. Nil sinks ignore their message type.
type Sinks struct {
	Notifications NotificationSink
	Shifts        ShiftSink
	Swaps         SwapSink
}

type ListenerOptions struct {
	URL    string
	Tokens TokenSource
	Sinks  Sinks
	// OnConnect runs after every successful dial, so callers can refetch
	// whatever was missed while disconnected.
	OnConnect  func()
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Dialer     *websocket.Dialer
	Logger     *zap.Logger
}

// Listener keeps a push connection open, reconnecting with exponential
// backoff, and routes each message to its sink.
type Listener struct {
	opts      ListenerOptions
	logger    *zap.Logger
	connected atomic.Bool
	received  atomic.Int64
}

func NewListener(opts ListenerOptions) *Listener {
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = time.Second
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{opts: opts, logger: logger.Named("push")}
}

// Run connects and serves until ctx is done. A rejected token stops the
// loop with ErrRejected since retrying cannot succeed.
func (l *Listener) Run(ctx context.Context) error {
	backoff := l.opts.MinBackoff
	for {
		connected, err := l.serve(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrRejected) {
			return err
		}
		if connected {
			backoff = l.opts.MinBackoff
		}
		l.logger.Warn("push channel disconnected", zap.Error(err), zap.Duration("retry_in", backoff))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		backoff *= 2
		if backoff > l.opts.MaxBackoff {
			backoff = l.opts.MaxBackoff
		}
	}
}

// Connected reports whether a connection is currently open.
func (l *Listener) Connected() bool {
	return l.connected.Load()
}

// Received counts the messages dispatched so far.
func (l *Listener) Received() int64 {
	return l.received.Load()
}

func (l *Listener) serve(ctx context.Context) (bool, error) {
	header := http.Header{}
	if l.opts.Tokens != nil {
		if token := l.opts.Tokens.Token(); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	conn, resp, err := l.opts.Dialer.DialContext(ctx, l.opts.URL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return false, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
		}
		return false, err
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
		case <-stop:
		}
	}()

	l.connected.Store(true)
	defer l.connected.Store(false)
	l.logger.Info("push channel connected", zap.String("url", l.opts.URL))
	if l.opts.OnConnect != nil {
		l.opts.OnConnect()
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return true, nil
			}
			return true, err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			l.logger.Debug("ignoring malformed push frame", zap.Error(err))
			continue
		}
		l.dispatch(msg)
	}
}

func (l *Listener) dispatch(msg Message) {
	sinks := l.opts.Sinks
	switch msg.Type {
	case TypeNotification:
		var n models.Notification
		if err := json.Unmarshal(msg.Data, &n); err != nil {
			l.logger.Warn("bad notification payload", zap.Error(err))
			return
		}
		if sinks.Notifications != nil {
			sinks.Notifications.Receive(n)
		}

	case TypeShiftUpdate:
		if sinks.Shifts != nil {
			sinks.Shifts.InvalidateShifts()
		}

	case TypeSwapUpdate:
		var req models.SwapRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			l.logger.Warn("bad swap payload", zap.Error(err))
			return
		}
		if sinks.Swaps != nil {
			sinks.Swaps.ApplyUpdate(req)
		}
		if req.Status == models.SwapStatusApproved && sinks.Shifts != nil {
			sinks.Shifts.InvalidateShifts()
		}

	case TypePong:
	default:
		l.logger.Debug("unknown push message", zap.String("type", msg.Type))
		return
	}
	l.received.Add(1)
}
