package realtime

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Subscription scopes what a connected client receives: admins see every
// event, technicians only events addressed to their team.
type Subscription struct {
	Admin  bool
	TeamID string
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  zerolog.Logger
}

type SubscribeMessage struct {
	Action string `json:"action"`
	Role   string `json:"role"`
	TeamID string `json:"team_id"`
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{clients: make(map[string]*Client), logger: logger}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast fans an event out to every matching client. Slow clients are
// skipped rather than blocking the hub.
func (h *Hub) Broadcast(e Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client.Subscription, e) {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			h.logger.Warn().Str("client", client.ID).Msg("drop event for slow client")
		}
	}
}

func match(sub Subscription, e Event) bool {
	if sub.Admin {
		return true
	}
	return e.TeamID != "" && e.TeamID == sub.TeamID
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" {
		return SubscribeMessage{}, false
	}
	if msg.Role != "admin" && msg.TeamID == "" {
		return SubscribeMessage{}, false
	}
	return msg, true
}
