package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	defaultPongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	sendBuffer = 256
)

// Client message types.
const (
	MsgSubscribe   = "SUBSCRIBE_TO_TICKET"
	MsgUnsubscribe = "UNSUBSCRIBE_FROM_TICKET"
	MsgPing        = "PING"

	EventPong       domain.EventType = "PONG"
	EventSubscribed domain.EventType = "SUBSCRIBED"
	EventDenied     domain.EventType = "SUBSCRIPTION_DENIED"
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	UserID uuid.UUID

	hub  *Hub
	conn *websocket.Conn
	send chan domain.Event

	pongWait   time.Duration
	pingPeriod time.Duration

	subscriptions map[int64]bool
	closeOnce     sync.Once
	mu            sync.RWMutex

	logger *slog.Logger
}

// NewClient creates a client for an upgraded connection. A zero pongWait uses
// 60s; pings go out at nine tenths of it.
func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, pongWait time.Duration) *Client {
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	return &Client{
		UserID:        userID,
		hub:           hub,
		conn:          conn,
		send:          make(chan domain.Event, sendBuffer),
		pongWait:      pongWait,
		pingPeriod:    (pongWait * 9) / 10,
		subscriptions: make(map[int64]bool),
		logger:        hub.logger.With("user_id", userID.String()),
	}
}

// Serve registers the client and runs both pumps. It returns once the
// connection is gone.
func (c *Client) Serve(ctx context.Context) {
	c.hub.Register(c)
	go c.writePump()
	c.readPump(ctx)
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (c *Client) addSubscription(ticketID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions[ticketID] = true
}

func (c *Client) removeSubscription(ticketID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, ticketID)
}

// Subscriptions returns a copy of the followed ticket ids.
func (c *Client) Subscriptions() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	subs := make([]int64, 0, len(c.subscriptions))
	for ticketID := range c.subscriptions {
		subs = append(subs, ticketID)
	}
	return subs
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		c.handleIncomingMessage(ctx, message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Debug("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ClientMessage is the structure for messages sent from the client.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SubscribePayload is the payload for subscribe/unsubscribe messages
type SubscribePayload struct {
	TicketID int64 `json:"ticketId"`
}

func (c *Client) handleIncomingMessage(ctx context.Context, message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("failed to unmarshal client message", "error", err)
		return
	}

	switch msg.Type {
	case MsgSubscribe:
		var p SubscribePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.TicketID <= 0 {
			c.logger.Warn("invalid subscribe request", "payload", string(msg.Payload))
			return
		}
		if c.hub.subscribe(ctx, c, p.TicketID) {
			c.reply(domain.Event{Type: EventSubscribed, TicketID: p.TicketID})
		} else {
			c.reply(domain.Event{Type: EventDenied, TicketID: p.TicketID})
		}

	case MsgUnsubscribe:
		var p SubscribePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			c.logger.Warn("invalid unsubscribe request", "error", err)
			return
		}
		c.hub.unsubscribe(c, p.TicketID)

	case MsgPing:
		c.reply(domain.Event{Type: EventPong})

	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
	}
}

// reply queues a direct answer unless the hub already closed the client.
func (c *Client) reply(event domain.Event) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.UserID][c]; !ok {
		return
	}
	select {
	case c.send <- event:
	default:
	}
}
