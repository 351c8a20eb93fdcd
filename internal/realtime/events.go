package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const Channel = "dispatch-events"

const (
	EventTicketCreated    = "ticket-created"
	EventAssignmentMade   = "assignment-created"
	EventAssignmentStatus = "assignment-status-update"
	EventTicketStatus     = "ticket-status-update"
	EventTeamLocation     = "team-location-update"
	EventTeamStatus       = "team-status-update"
)

type Event struct {
	Type    string    `json:"type"`
	TeamID  string    `json:"team_id,omitempty"`
	Payload any       `json:"payload,omitempty"`
	Time    time.Time `json:"time"`
}

// Bus delivers events to local websocket clients and, when redis is
// configured, to every other instance through pub/sub.
type Bus struct {
	Hub    *Hub
	RDB    *redis.Client
	Logger zerolog.Logger
}

func NewBus(hub *Hub, rdb *redis.Client, logger zerolog.Logger) *Bus {
	return &Bus{Hub: hub, RDB: rdb, Logger: logger}
}

// Publish is best effort; a failed event never fails the request that caused it.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	if b.RDB == nil {
		b.Hub.Broadcast(e)
		return
	}

	data, err := json.Marshal(e)
	if err != nil {
		b.Logger.Error().Err(err).Msg("marshal event")
		return
	}
	if err := b.RDB.Publish(ctx, Channel, data).Err(); err != nil {
		b.Logger.Error().Err(err).Str("type", e.Type).Msg("publish event")
		// redis down: still serve the local clients
		b.Hub.Broadcast(e)
	}
}

// Run consumes the redis channel and feeds the local hub until ctx is done.
// Only used when redis is configured; the subscription carries events
// published by this and every other instance.
func (b *Bus) Run(ctx context.Context) {
	if b.RDB == nil {
		return
	}
	pubsub := b.RDB.Subscribe(ctx, Channel)
	defer pubsub.Close()

	b.Logger.Info().Str("channel", Channel).Msg("subscribed to event channel")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				b.Logger.Warn().Err(err).Msg("invalid event payload")
				continue
			}
			b.Hub.Broadcast(e)
		}
	}
}
