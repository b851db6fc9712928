package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"market-sentinel/internal/alarm"
	"market-sentinel/internal/model"
)

// PublishSignals publishes the batch as one JSON array on ChannelSignals,
// the same payload the hub sends to WebSocket clients.
func (s *Store) PublishSignals(ctx context.Context, signals []alarm.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	data, err := json.Marshal(signals)
	if err != nil {
		return fmt.Errorf("redis encode signals: %w", err)
	}
	return s.breaker.Execute(func() error {
		return s.client.Publish(ctx, ChannelSignals, data).Err()
	})
}

// PublishCycle stores the cycle under the "latest:cycle" key with a TTL and
// publishes it on ChannelCycle.
func (s *Store) PublishCycle(ctx context.Context, cycle model.Cycle) error {
	data, err := json.Marshal(cycle)
	if err != nil {
		return fmt.Errorf("redis encode cycle: %w", err)
	}
	return s.breaker.Execute(func() error {
		pipe := s.client.Pipeline()
		pipe.Set(ctx, s.Key("latest:cycle"), data, defaultLatestTTL)
		pipe.Publish(ctx, ChannelCycle, data)
		_, err := pipe.Exec(ctx)
		return err
	})
}
