package gateway

import (
	"context"
	"log/slog"

	goredis "github.com/go-redis/redis/v8"
)

// PubSubRouter relays Redis pub/sub messages to the hub, so several gateway
// processes can serve clients from one refresh pipeline.
type PubSubRouter struct {
	hub    *Hub
	rdb    *goredis.Client
	routes map[string]string // redis channel -> hub channel
}

// NewPubSubRouter creates a router for the given redis -> hub channel map.
func NewPubSubRouter(hub *Hub, rdb *goredis.Client, routes map[string]string) *PubSubRouter {
	return &PubSubRouter{hub: hub, rdb: rdb, routes: routes}
}

// Run subscribes to every routed channel. Blocks until ctx is cancelled.
func (r *PubSubRouter) Run(ctx context.Context) {
	channels := make([]string, 0, len(r.routes))
	for ch := range r.routes {
		channels = append(channels, ch)
	}
	if len(channels) == 0 {
		slog.Warn("pubsub router has no channels")
		return
	}

	pubsub := r.rdb.Subscribe(ctx, channels...)
	defer pubsub.Close()
	slog.Info("pubsub router subscribed", "channels", channels)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.route(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (r *PubSubRouter) route(redisChannel string, payload []byte) {
	target, ok := r.routes[redisChannel]
	if !ok {
		return
	}
	r.hub.Broadcast(target, payload)
}
