// README: Realtime hub; local connection registry per scope fed by the shared bus.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"petride/internal/logger"
	"petride/internal/metrics"
	"petride/internal/modules/chat"
)

var ErrBadFrame = errors.New("bad frame")

// ChatAppender persists inbound chat messages.
type ChatAppender interface {
	Append(ctx context.Context, cmd chat.AppendCommand) (*chat.Message, error)
}

type Hub struct {
	mu      sync.RWMutex
	clients map[Scope]map[int64]*Client
	closed  bool

	bus   Bus
	chats ChatAppender
	log   logger.ILogger

	retryMin, retryMax time.Duration
}

func NewHub(bus Bus, chats ChatAppender, log logger.ILogger) *Hub {
	return &Hub{
		clients:  make(map[Scope]map[int64]*Client),
		bus:      bus,
		chats:    chats,
		log:      log,
		retryMin: 100 * time.Millisecond,
		retryMax: 5 * time.Second,
	}
}

// Register adds a connection under scope. A participant holds at most one
// connection per scope; an older one is closed. After Shutdown the returned
// client is already closed.
func (h *Hub) Register(scope Scope, p Participant) *Client {
	c := newClient(scope, p)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		c.close()
		return c
	}
	byUser, ok := h.clients[scope]
	if !ok {
		byUser = make(map[int64]*Client)
		h.clients[scope] = byUser
	}
	if old, ok := byUser[p.UserID]; ok {
		old.close()
		metrics.HubConnections.Dec()
	}
	byUser[p.UserID] = c
	metrics.HubConnections.Inc()
	return c
}

// Unregister removes c if it is still the registered connection. Safe to call
// more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	byUser, ok := h.clients[c.scope]
	if !ok || byUser[c.participant.UserID] != c {
		return
	}
	delete(byUser, c.participant.UserID)
	if len(byUser) == 0 {
		delete(h.clients, c.scope)
	}
	c.close()
	metrics.HubConnections.Dec()
}

// Run listens on the bus and delivers chat topic events to local connections
// until ctx is done. A stream that ends or a failed subscribe is retried with
// backoff; only a closed bus stops Run early, with an error.
func (h *Hub) Run(ctx context.Context) error {
	wait := h.retryMin
	for {
		msgs, err := h.bus.Subscribe(ctx, chatPattern)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrBusClosed):
			return fmt.Errorf("subscribe %s: %w", chatPattern, err)
		case err != nil:
			h.log.Warning("realtime subscribe failed, retrying",
				logger.String("pattern", chatPattern),
				logger.Duration("backoff", wait),
				logger.Error(err),
			)
		default:
			h.log.Info("realtime hub listening", logger.String("pattern", chatPattern))
			wait = h.retryMin
			if h.consume(ctx, msgs) {
				return nil
			}
			h.log.Warning("realtime bus stream ended, resubscribing", logger.String("pattern", chatPattern))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		wait = min(wait*2, h.retryMax)
	}
}

// consume delivers msgs until the stream ends. It reports whether ctx ended it.
func (h *Hub) consume(ctx context.Context, msgs <-chan Message) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case m, ok := <-msgs:
			if !ok {
				return ctx.Err() != nil
			}
			orderID, ok := parseChatTopic(m.Topic)
			if !ok {
				h.log.Warning("ignoring message on unexpected topic", logger.String("topic", m.Topic))
				continue
			}
			h.deliver(Scope{Kind: ScopeOrder, ID: orderID}, m.Payload)
		}
	}
}

// Shutdown closes every connection and rejects later registrations.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	n := 0
	for scope, byUser := range h.clients {
		for _, c := range byUser {
			c.close()
			n++
		}
		delete(h.clients, scope)
	}
	metrics.HubConnections.Sub(float64(n))
	h.log.Info("realtime hub drained", logger.Int("connections", n))
}

// deliver enqueues frame on every connection in scope. A full queue drops
// that connection without delaying the rest.
func (h *Hub) deliver(scope Scope, frame []byte) int {
	var dropped []*Client
	sent := 0

	h.mu.RLock()
	for _, c := range h.clients[scope] {
		if c.enqueue(frame) {
			sent++
			continue
		}
		dropped = append(dropped, c)
	}
	h.mu.RUnlock()

	metrics.HubDeliveredTotal.Add(float64(sent))
	if len(dropped) == 0 {
		return sent
	}
	h.mu.Lock()
	for _, c := range dropped {
		h.removeLocked(c)
	}
	h.mu.Unlock()
	metrics.HubDroppedTotal.Add(float64(len(dropped)))
	for _, c := range dropped {
		h.log.Warning("dropping slow realtime connection",
			logger.String("scope", c.scope.Kind),
			logger.Int64("scope_id", c.scope.ID),
			logger.Int64("user_id", c.participant.UserID),
		)
	}
	return sent
}

type inboundChat struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	MediaURL string `json:"media_url"`
	IsTyping bool   `json:"is_typing"`
}

type typingEvent struct {
	Type     string `json:"type"`
	OrderID  int64  `json:"order_id"`
	UserID   int64  `json:"user_id"`
	Role     string `json:"role"`
	IsTyping bool   `json:"is_typing"`
}

type messageEvent struct {
	Type string `json:"type"`
	chat.Message
}

// HandleChatFrame processes one inbound frame from a chat connection. Typing
// frames are published only; messages are stored first and then published
// with their generated id and timestamp.
func (h *Hub) HandleChatFrame(ctx context.Context, c *Client, raw []byte) error {
	if c.scope.Kind != ScopeOrder {
		return fmt.Errorf("%w: not a chat connection", ErrBadFrame)
	}
	var in inboundChat
	if err := json.Unmarshal(raw, &in); err != nil {
		return fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	orderID := c.scope.ID

	switch in.Type {
	case "typing":
		return h.publish(ctx, orderID, typingEvent{
			Type:     "typing",
			OrderID:  orderID,
			UserID:   c.participant.UserID,
			Role:     c.participant.Role,
			IsTyping: in.IsTyping,
		})
	case "message", "":
		msg, err := h.chats.Append(ctx, chat.AppendCommand{
			OrderID:    orderID,
			SenderID:   c.participant.UserID,
			SenderRole: c.participant.Role,
			Message:    in.Message,
			MediaURL:   in.MediaURL,
		})
		if err != nil {
			return err
		}
		return h.publish(ctx, orderID, messageEvent{Type: "message", Message: *msg})
	default:
		return fmt.Errorf("%w: unknown type %q", ErrBadFrame, in.Type)
	}
}

// BroadcastLocation echoes a location frame verbatim to every local
// connection on the sender's driver scope, the sender included.
func (h *Hub) BroadcastLocation(c *Client, raw []byte) int {
	return h.deliver(c.scope, raw)
}

// PublishStatus sends an order change to the order's chat topic.
func (h *Hub) PublishStatus(ctx context.Context, orderID int64, payload any) error {
	return h.publish(ctx, orderID, payload)
}

func (h *Hub) publish(ctx context.Context, orderID int64, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.bus.Publish(ctx, ChatTopic(orderID), b)
}
