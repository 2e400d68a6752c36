package events

import (
	"context"
	"encoding/json"

	"Gin_postgres_redis_equipment_tool/workflow"

	"github.com/redis/go-redis/v9"
)

// Relay publishes events on a Redis channel and feeds what arrives on that
// channel into the local hub, so a transition committed on one instance
// reaches the clients of all of them.
type Relay struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
}

func NewRelay(rdb *redis.Client, channel string, hub *Hub) *Relay {
	if channel == "" {
		channel = "equipment:events"
	}
	return &Relay{rdb: rdb, channel: channel, hub: hub}
}

// Publish sends ev to every instance. When Redis refuses it the event still
// reaches local clients.
func (r *Relay) Publish(ctx context.Context, ev workflow.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		r.hub.log.Error().Err(err).Msg("encode event")
		return
	}
	if err := r.rdb.Publish(context.WithoutCancel(ctx), r.channel, b).Err(); err != nil {
		r.hub.log.Warn().Err(err).Str("channel", r.channel).Msg("redis publish failed, delivering locally")
		r.hub.Broadcast(b)
	}
}

// Run forwards channel messages to the hub until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.hub.Broadcast([]byte(msg.Payload))
		}
	}
}

var _ workflow.Publisher = (*Relay)(nil)
