package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/lorrc/service-desk-engine/internal/core/domain"
	"github.com/lorrc/service-desk-engine/internal/core/ports"
)

// SubscribeCheck decides whether a user may follow a ticket room.
type SubscribeCheck func(ctx context.Context, userID uuid.UUID, ticketID int64) bool

// Hub maintains the set of active Clients and broadcasts ticket events to the
// clients subscribed to that ticket's room.
type Hub struct {
	// clients maps user IDs to their active connections
	// A single user can have multiple connections (multiple tabs/devices)
	clients map[uuid.UUID]map[*Client]bool

	// rooms maps ticket IDs to subscribed clients
	rooms map[int64]map[*Client]bool

	broadcast  chan domain.Event
	unregister chan *Client
	done       chan struct{}

	canSubscribe SubscribeCheck

	// mu protects the clients and rooms maps
	mu sync.RWMutex

	logger *slog.Logger
}

var _ ports.EventBroadcaster = (*Hub)(nil)

// NewHub creates a new WebSocket hub. A nil check lets every authenticated
// client follow any ticket.
func NewHub(check SubscribeCheck, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if check == nil {
		check = func(context.Context, uuid.UUID, int64) bool { return true }
	}
	return &Hub{
		clients:      make(map[uuid.UUID]map[*Client]bool),
		rooms:        make(map[int64]map[*Client]bool),
		broadcast:    make(chan domain.Event, 256),
		unregister:   make(chan *Client, 16),
		done:         make(chan struct{}),
		canSubscribe: check,
		logger:       logger.With("component", "websocket_hub"),
	}
}

// Broadcast queues an event for delivery. When the queue is full the event is
// dropped; live updates are best effort.
func (h *Hub) Broadcast(event domain.Event) error {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast channel full, dropping event",
			"event_type", event.Type,
			"ticket_id", event.TicketID,
		)
	}
	return nil
}

// Register adds a connected client. After the hub stopped the client is
// closed straight away.
func (h *Hub) Register(client *Client) {
	select {
	case <-h.done:
		client.closeSend()
	default:
		h.registerClient(client)
	}
}

func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Run starts the hub's event loop until ctx is cancelled, then closes every
// client's send channel so the write pumps say goodbye.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.unregister:
			h.unregisterClient(client)

		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]bool)
	}
	h.clients[client.UserID][client] = true

	h.logger.Info("client registered",
		"user_id", client.UserID,
		"total_connections", len(h.clients[client.UserID]),
	)
}

// unregisterClient removes a client from the hub and all rooms
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userClients, ok := h.clients[client.UserID]
	if !ok || !userClients[client] {
		return
	}
	delete(userClients, client)
	if len(userClients) == 0 {
		delete(h.clients, client.UserID)
	}

	for _, ticketID := range client.Subscriptions() {
		if room, ok := h.rooms[ticketID]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, ticketID)
			}
		}
	}

	client.closeSend()

	h.logger.Info("client unregistered", "user_id", client.UserID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, userClients := range h.clients {
		for client := range userClients {
			client.closeSend()
		}
	}
	h.clients = make(map[uuid.UUID]map[*Client]bool)
	h.rooms = make(map[int64]map[*Client]bool)
}

// broadcastEvent sends an event to all clients subscribed to the ticket
func (h *Hub) broadcastEvent(event domain.Event) {
	h.mu.RLock()
	room, ok := h.rooms[event.TicketID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	h.logger.Debug("broadcasting event",
		"event_type", event.Type,
		"ticket_id", event.TicketID,
		"client_count", len(clients),
	)

	for _, client := range clients {
		select {
		case client.send <- event:
		default:
			h.logger.Warn("client send buffer full, unregistering", "user_id", client.UserID)
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) subscribe(ctx context.Context, client *Client, ticketID int64) bool {
	if !h.canSubscribe(ctx, client.UserID, ticketID) {
		h.logger.Warn("subscription denied", "user_id", client.UserID, "ticket_id", ticketID)
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.UserID][client]; !ok {
		return false
	}
	if h.rooms[ticketID] == nil {
		h.rooms[ticketID] = make(map[*Client]bool)
	}
	h.rooms[ticketID][client] = true
	client.addSubscription(ticketID)

	h.logger.Debug("client subscribed to ticket", "user_id", client.UserID, "ticket_id", ticketID)
	return true
}

func (h *Hub) unsubscribe(client *Client, ticketID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, ok := h.rooms[ticketID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, ticketID)
		}
	}
	client.removeSubscription(ticketID)
}

// ClientCount returns the total number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, userClients := range h.clients {
		count += len(userClients)
	}
	return count
}

// ClientsInRoom returns the number of clients subscribed to a ticket
func (h *Hub) ClientsInRoom(ticketID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[ticketID])
}
