package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"chat-server/internal/events"
	"chat-server/internal/observability"
)

// Hub routes events to live connections by chat topic and by user.
// Enqueueing never blocks: a connection whose send queue is full is dropped.
type Hub struct {
	topics map[uuid.UUID]map[*Client]struct{}
	users  map[uuid.UUID]map[*Client]struct{}
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		topics: make(map[uuid.UUID]map[*Client]struct{}),
		users:  make(map[uuid.UUID]map[*Client]struct{}),
		logger: logger,
	}
}

// Register attaches a connection to its user's personal queue.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	addClient(h.users, c.info.UserID, c)
	observability.IncWSActive()
}

// Unregister detaches a connection everywhere and closes its send queue. Safe to repeat.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unregisterLocked(c)
}

func (h *Hub) unregisterLocked(c *Client) {
	if _, ok := h.users[c.info.UserID][c]; !ok {
		return
	}
	removeClient(h.users, c.info.UserID, c)
	for chatID := range c.topics {
		removeClient(h.topics, chatID, c)
	}
	c.topics = nil
	close(c.send)
	observability.DecWSActive()
}

// Subscribe attaches a registered connection to a chat topic.
func (h *Hub) Subscribe(c *Client, chatID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.users[c.info.UserID][c]; !ok {
		return
	}
	addClient(h.topics, chatID, c)
	if c.topics == nil {
		c.topics = make(map[uuid.UUID]struct{})
	}
	c.topics[chatID] = struct{}{}
}

func (h *Hub) Unsubscribe(c *Client, chatID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	removeClient(h.topics, chatID, c)
	delete(c.topics, chatID)
}

func (h *Hub) IsSubscribed(c *Client, chatID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.topics[chatID][c]
	return ok
}

// PublishToTopic enqueues ev to every connection subscribed to the chat.
func (h *Hub) PublishToTopic(ctx context.Context, chatID uuid.UUID, ev events.Event) {
	payload, ok := h.encode(ev)
	if !ok {
		return
	}
	h.mu.RLock()
	slow := h.enqueueAll(h.topics[chatID], payload, ev.Type)
	h.mu.RUnlock()
	h.drop(slow)
}

// PublishToUser enqueues ev to every connection of the user. A CHAT_REMOVED notice
// also detaches those connections from the chat topic.
func (h *Hub) PublishToUser(ctx context.Context, userID uuid.UUID, ev events.Event) {
	payload, ok := h.encode(ev)
	if !ok {
		return
	}
	if ev.Type == events.TypeChatRemoved && ev.ChatID != nil {
		h.mu.Lock()
		for c := range h.users[userID] {
			removeClient(h.topics, *ev.ChatID, c)
			delete(c.topics, *ev.ChatID)
		}
		h.mu.Unlock()
	}
	h.mu.RLock()
	slow := h.enqueueAll(h.users[userID], payload, ev.Type)
	h.mu.RUnlock()
	h.drop(slow)
}

// SendTo enqueues ev to one connection only.
func (h *Hub) SendTo(c *Client, ev events.Event) {
	payload, ok := h.encode(ev)
	if !ok {
		return
	}
	h.mu.RLock()
	var slow []*Client
	if _, registered := h.users[c.info.UserID][c]; registered {
		slow = h.enqueueAll(map[*Client]struct{}{c: {}}, payload, ev.Type)
	}
	h.mu.RUnlock()
	h.drop(slow)
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.users {
		for c := range clients {
			h.unregisterLocked(c)
		}
	}
}

// ConnectionCount reports how many connections the user has open.
func (h *Hub) ConnectionCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

func (h *Hub) encode(ev events.Event) ([]byte, bool) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("websocket event encode failed", "type", ev.Type, "error", err)
		return nil, false
	}
	return payload, true
}

// enqueueAll must run under h.mu (read or write) so no send queue is closed concurrently.
func (h *Hub) enqueueAll(clients map[*Client]struct{}, payload []byte, t events.Type) []*Client {
	var slow []*Client
	for c := range clients {
		select {
		case c.send <- payload:
			observability.IncEventDelivered(string(t))
		default:
			observability.IncEventDropped(string(t))
			slow = append(slow, c)
		}
	}
	return slow
}

func (h *Hub) drop(slow []*Client) {
	for _, c := range slow {
		h.logger.Warn("websocket send queue full, dropping connection", "conn_id", c.info.ConnID, "user_id", c.info.UserID)
		observability.IncWSEvent("ws_slow_consumer")
		h.Unregister(c)
	}
}

func addClient(index map[uuid.UUID]map[*Client]struct{}, key uuid.UUID, c *Client) {
	clients, ok := index[key]
	if !ok {
		clients = make(map[*Client]struct{})
		index[key] = clients
	}
	clients[c] = struct{}{}
}

func removeClient(index map[uuid.UUID]map[*Client]struct{}, key uuid.UUID, c *Client) {
	clients, ok := index[key]
	if !ok {
		return
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(index, key)
	}
}

var _ events.Publisher = (*Hub)(nil)
