package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/flowbit/ticket-service/internal/events"
)

// wireMessage is the frame delivered to connected sessions.
type wireMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// relayEnvelope wraps a frame for the cross-instance redis channel.
type relayEnvelope struct {
	TenantID string          `json:"tenant_id"`
	Payload  json.RawMessage `json:"payload"`
}

// Bridge subscribes to domain events and fans them out to tenant groups.
// With a redis client configured, frames travel through a pub/sub channel
// so sessions connected to any instance receive them; otherwise they go
// straight to the local hub.
type Bridge struct {
	hub     *Hub
	redis   *redis.Client
	channel string
	logger  *zap.Logger
}

// NewBridge builds a bridge. redisClient may be nil for single-instance
// deployments.
func NewBridge(hub *Hub, redisClient *redis.Client, channel string, logger *zap.Logger) *Bridge {
	return &Bridge{hub: hub, redis: redisClient, channel: channel, logger: logger}
}

// RegisterHandlers subscribes the bridge to every ticket lifecycle event.
func (b *Bridge) RegisterHandlers(dispatcher events.Dispatcher) {
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketUpdated,
		events.EventTicketDeleted,
		events.EventTicketCommentAdded,
		events.EventTicketWebhookProcessed,
	} {
		dispatcher.Subscribe(eventType, b.handle)
	}
}

func (b *Bridge) handle(ctx context.Context, event events.Event) error {
	if event.TenantID == "" {
		b.logger.Warn("dropping event without tenant", zap.String("type", string(event.Type)))
		return nil
	}

	frame, err := json.Marshal(wireMessage{Event: string(event.Type), Data: event.Payload})
	if err != nil {
		return err
	}

	if b.relayEnabled() {
		envelope, err := json.Marshal(relayEnvelope{TenantID: event.TenantID, Payload: frame})
		if err != nil {
			return err
		}
		if err := b.redis.Publish(ctx, b.channel, envelope).Err(); err != nil {
			// fall back to local delivery so a redis blip does not mute
			// sessions on this instance
			b.logger.Warn("redis publish failed; broadcasting locally", zap.Error(err))
			b.hub.Broadcast(event.TenantID, frame)
		}
		return nil
	}

	b.hub.Broadcast(event.TenantID, frame)
	return nil
}

// Run consumes the relay channel and feeds the local hub. It blocks until
// ctx is cancelled and is a no-op without redis.
func (b *Bridge) Run(ctx context.Context) {
	if !b.relayEnabled() {
		return
	}

	pubsub := b.redis.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var envelope relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				b.logger.Warn("malformed relay envelope", zap.Error(err))
				continue
			}
			b.hub.Broadcast(envelope.TenantID, envelope.Payload)
		}
	}
}

func (b *Bridge) relayEnabled() bool {
	return b.redis != nil && b.channel != ""
}
