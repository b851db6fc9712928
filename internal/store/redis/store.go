// Package redis persists rules, signals and portfolio items as JSON documents
// in Redis and publishes live signals and cycles on pub/sub channels.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"market-sentinel/internal/alarm"
	"market-sentinel/internal/portfolio"
	"market-sentinel/internal/rule"
)

const (
	defaultPrefix    = "sentinel:"
	defaultLatestTTL = 30 * time.Minute

	// Pub/sub channels
	ChannelSignals = "pub:signals"
	ChannelCycle   = "pub:cycle"
)

// Config configures the Redis store.
type Config struct {
	Addr      string // e.g. "localhost:6379"
	Password  string
	DB        int
	KeyPrefix string // defaults to "sentinel:"
}

// Store implements alarm.Repository and portfolio.Repository on Redis strings.
type Store struct {
	client  *goredis.Client
	breaker *CircuitBreaker
	prefix  string
}

// Client returns the underlying Redis client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// Breaker exposes the circuit breaker for metrics wiring.
func (s *Store) Breaker() *CircuitBreaker { return s.breaker }

// New creates a Store and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return NewWithClient(client, cfg.KeyPrefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	cb := NewCircuitBreaker(5, 10*time.Second)
	cb.OnStateChange = func(from, to State) {
		log.Printf("[redis] circuit breaker %s -> %s", from, to)
	}
	return &Store{client: client, breaker: cb, prefix: prefix}
}

// Key returns the prefixed Redis key for a document name.
func (s *Store) Key(name string) string {
	return s.prefix + name
}

func (s *Store) get(ctx context.Context, name string, v any) (bool, error) {
	var data []byte
	err := s.breaker.Execute(func() error {
		var err error
		data, err = s.client.Get(ctx, s.Key(name)).Bytes()
		return err
	})
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("redis decode %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) set(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", name, err)
	}
	err = s.breaker.Execute(func() error {
		return s.client.Set(ctx, s.Key(name), data, 0).Err()
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", name, err)
	}
	return nil
}

// LoadRules implements alarm.Repository.
func (s *Store) LoadRules(ctx context.Context) ([]rule.Rule, error) {
	var rules []rule.Rule
	found, err := s.get(ctx, "rules", &rules)
	if err != nil || !found {
		return nil, err
	}
	if rules == nil {
		rules = []rule.Rule{}
	}
	return rules, nil
}

// SaveRules implements alarm.Repository.
func (s *Store) SaveRules(ctx context.Context, rules []rule.Rule) error {
	if rules == nil {
		rules = []rule.Rule{}
	}
	return s.set(ctx, "rules", rules)
}

// LoadSignals implements alarm.Repository.
func (s *Store) LoadSignals(ctx context.Context) ([]alarm.Signal, error) {
	var signals []alarm.Signal
	found, err := s.get(ctx, "signals", &signals)
	if err != nil || !found {
		return nil, err
	}
	if signals == nil {
		signals = []alarm.Signal{}
	}
	return signals, nil
}

// SaveSignals implements alarm.Repository.
func (s *Store) SaveSignals(ctx context.Context, signals []alarm.Signal) error {
	if signals == nil {
		signals = []alarm.Signal{}
	}
	return s.set(ctx, "signals", signals)
}

// LoadItems implements portfolio.Repository.
func (s *Store) LoadItems(ctx context.Context) ([]portfolio.Item, error) {
	var items []portfolio.Item
	if _, err := s.get(ctx, "portfolio", &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SaveItems implements portfolio.Repository.
func (s *Store) SaveItems(ctx context.Context, items []portfolio.Item) error {
	if items == nil {
		items = []portfolio.Item{}
	}
	return s.set(ctx, "portfolio", items)
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
