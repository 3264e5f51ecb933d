package websocket

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Push message types.
const (
	TypeNotification = "notification"
	TypeShiftUpdate  = "shift_update"
	TypeSwapUpdate   = "swap_update"
	TypePing         = "ping"
	TypePong         = "pong"
)

// Message is the envelope of every frame on the push channel.
type Message struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage encodes data as the payload of a message of the given type.
func NewMessage(msgType string, data interface{}) (*Message, error) {
	msg := &Message{Type: msgType, Timestamp: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return msg, nil
}

type delivery struct {
	userID uint
	data   []byte
}

// Hub tracks the connected clients of each user and fans messages out to
// them. All registry changes happen on the Run goroutine.
type Hub struct {
	clients    map[uint]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	deliver    chan delivery
	count      chan chan int
	done       chan struct{}
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan delivery, 64),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		logger:     logger.Named("hub"),
	}
}

// Run serves the hub until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for _, set := range h.clients {
			for c := range set {
				close(c.send)
			}
		}
		h.clients = make(map[uint]map[*Client]bool)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			set, ok := h.clients[c.userID]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[c.userID] = set
			}
			set[c] = true
			h.logger.Debug("client registered", zap.Uint("user_id", c.userID))

		case c := <-h.unregister:
			h.remove(c)

		case d := <-h.deliver:
			for c := range h.clients[d.userID] {
				select {
				case c.send <- d.data:
				default:
					h.logger.Warn("send buffer full, dropping client", zap.Uint("user_id", d.userID))
					h.remove(c)
				}
			}

		case reply := <-h.count:
			n := 0
			for _, set := range h.clients {
				n += len(set)
			}
			reply <- n
		}
	}
}

func (h *Hub) remove(c *Client) {
	set, ok := h.clients[c.userID]
	if !ok || !set[c] {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	close(c.send)
	h.logger.Debug("client unregistered", zap.Uint("user_id", c.userID))
}

// SendToUser queues msg for every connection of userID. It reports false
// when the hub has stopped or its queue is full.
func (h *Hub) SendToUser(userID uint, msg *Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal push message", zap.Error(err))
		return false
	}
	select {
	case h.deliver <- delivery{userID: userID, data: data}:
		return true
	case <-h.done:
		return false
	default:
		h.logger.Warn("hub queue full, dropping message", zap.String("type", msg.Type), zap.Uint("user_id", userID))
		return false
	}
}

// Publish wraps data in a message of msgType and sends it to userID.
func (h *Hub) Publish(userID uint, msgType string, data interface{}) bool {
	msg, err := NewMessage(msgType, data)
	if err != nil {
		h.logger.Error("encode push message", zap.Error(err))
		return false
	}
	return h.SendToUser(userID, msg)
}

// ConnectedClients returns the number of open connections, or 0 once the
// hub has stopped.
func (h *Hub) ConnectedClients() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Done is closed when Run returns.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}
