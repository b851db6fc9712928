// Package monitor runs the refresh pipeline: collect snapshots for the
// universe, evaluate alarm rules, then notify and broadcast the results.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"market-sentinel/internal/alarm"
	"market-sentinel/internal/gateway"
	"market-sentinel/internal/logger"
	"market-sentinel/internal/marketdata"
	"market-sentinel/internal/metrics"
	"market-sentinel/internal/model"
	"market-sentinel/internal/notification"
)

// Collector produces one cycle of snapshots.
type Collector interface {
	Collect(ctx context.Context, universe []model.Asset, tfs []model.Timeframe) (model.Cycle, error)
}

// Broadcaster pushes JSON payloads to live clients.
type Broadcaster interface {
	Publish(channel string, v any) error
}

// Publisher forwards signals and cycles to out-of-process consumers.
type Publisher interface {
	PublishSignals(ctx context.Context, signals []alarm.Signal) error
	PublishCycle(ctx context.Context, cycle model.Cycle) error
}

// Config wires a Service. Collector and Book are required.
type Config struct {
	Universe        []model.Asset
	Timeframes      []model.Timeframe
	RefreshInterval time.Duration

	Collector   Collector
	Book        *alarm.Book
	Notifier    notification.Notifier // optional
	Broadcaster Broadcaster           // optional
	Publisher   Publisher             // optional
	Metrics     *metrics.Metrics      // optional
	Health      *metrics.HealthStatus // optional
}

// Service runs refresh cycles one at a time. The latest cycle serves the API
// and becomes the previous snapshot set for CROSS rules in the next cycle.
type Service struct {
	cfg     Config
	trigger chan struct{}
	now     func() time.Time

	runMu sync.Mutex // serialises RunCycle

	mu     sync.RWMutex
	latest *model.Cycle
}

// New validates cfg and creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Collector == nil || cfg.Book == nil {
		return nil, errors.New("monitor: collector and book are required")
	}
	if len(cfg.Timeframes) == 0 {
		cfg.Timeframes = model.AllTimeframes
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Minute
	}
	return &Service{
		cfg:     cfg,
		trigger: make(chan struct{}, 1),
		now:     time.Now,
	}, nil
}

// Universe returns the monitored assets.
func (s *Service) Universe() []model.Asset { return s.cfg.Universe }

// Timeframes returns the monitored timeframes.
func (s *Service) Timeframes() []model.Timeframe { return s.cfg.Timeframes }

// Latest returns the most recent cycle, or nil before the first one completes.
func (s *Service) Latest() *model.Cycle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Prices returns the latest price per asset symbol, taken from the
// shortest configured timeframe that has one.
func (s *Service) Prices() map[string]float64 {
	c := s.Latest()
	prices := make(map[string]float64)
	if c == nil {
		return prices
	}
	for _, tf := range model.AllTimeframes {
		for _, snap := range c.Snapshots[tf] {
			if _, ok := prices[snap.Symbol]; !ok && snap.Price > 0 {
				prices[snap.Symbol] = snap.Price
			}
		}
	}
	return prices
}

// Trigger requests a refresh outside the regular schedule. Requests made
// while one is already pending are coalesced; the return value reports
// whether this call queued a new one.
func (s *Service) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run executes a cycle immediately, then on every tick and trigger.
// Blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	slog.Info("monitor started",
		"assets", len(s.cfg.Universe),
		"timeframes", s.cfg.Timeframes,
		"interval", s.cfg.RefreshInterval.String(),
	)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("monitor stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.trigger:
			s.runOnce(ctx)
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
		slog.Error("refresh cycle failed", "error", err)
	}
}

// RunCycle performs one refresh: collect, evaluate, persist, notify,
// broadcast. A cycle that yields no snapshots leaves the previous state in
// place and raises a critical alert.
func (s *Service) RunCycle(ctx context.Context) (alarm.Outcome, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := s.now()
	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID("cycle", start))
	trace := logger.LogWithTrace(ctx)

	cycle, err := s.cfg.Collector.Collect(ctx, s.cfg.Universe, s.cfg.Timeframes)
	if err != nil {
		s.recordCycle(start, 0, err)
		if errors.Is(err, marketdata.ErrNoSnapshots) {
			s.notify(ctx, notification.Alert{
				Level:   notification.AlertCritical,
				Title:   "Market data unavailable",
				Message: "No asset could be fetched in this refresh cycle.",
			})
		}
		return alarm.Outcome{}, fmt.Errorf("collect: %w", err)
	}

	s.mu.RLock()
	previous := s.latest
	s.mu.RUnlock()

	out, applyErr := s.cfg.Book.Apply(ctx, s.cfg.Universe, &cycle, previous)
	if applyErr != nil {
		// Rule state already advanced in memory; only persistence failed.
		slog.Error("persisting cycle outcome failed", append(trace, "error", applyErr)...)
	}

	s.mu.Lock()
	s.latest = &cycle
	s.mu.Unlock()

	for _, n := range out.Notifications {
		s.notify(ctx, notification.FromNotification(n))
	}
	s.broadcast(ctx, cycle, out.Signals)
	s.recordCycle(start, cycle.Len(), nil)
	s.recordOutcome(out)

	slog.Info("refresh cycle complete", append(trace,
		"snapshots", cycle.Len(),
		"fired", len(out.Fired),
		"signals", len(out.Signals),
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)...)
	return out, applyErr
}

func (s *Service) notify(ctx context.Context, alert notification.Alert) {
	if s.cfg.Notifier == nil {
		return
	}
	if err := s.cfg.Notifier.Send(ctx, alert); err != nil {
		slog.Warn("notification failed", append(logger.LogWithTrace(ctx), "title", alert.Title, "error", err)...)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.NotificationFailures.Inc()
		}
	}
}

func (s *Service) broadcast(ctx context.Context, cycle model.Cycle, signals []alarm.Signal) {
	if b := s.cfg.Broadcaster; b != nil {
		if len(signals) > 0 {
			if err := b.Publish(gateway.ChannelSignals, signals); err != nil {
				slog.Warn("broadcast signals failed", "error", err)
			}
		}
		if err := b.Publish(gateway.ChannelCycle, cycle); err != nil {
			slog.Warn("broadcast cycle failed", "error", err)
		}
	}
	if p := s.cfg.Publisher; p != nil {
		if err := p.PublishSignals(ctx, signals); err != nil {
			slog.Warn("publish signals failed", "error", err)
		}
		if err := p.PublishCycle(ctx, cycle); err != nil {
			slog.Warn("publish cycle failed", "error", err)
		}
	}
}

func (s *Service) recordCycle(start time.Time, snapshots int, err error) {
	if h := s.cfg.Health; h != nil {
		h.RecordCycle(start, snapshots, err)
	}
	m := s.cfg.Metrics
	if m == nil {
		return
	}
	m.CycleDuration.Observe(s.now().Sub(start).Seconds())
	switch {
	case err == nil:
		m.CyclesTotal.WithLabelValues("ok").Inc()
		m.Snapshots.Set(float64(snapshots))
	case errors.Is(err, marketdata.ErrNoSnapshots):
		m.CyclesTotal.WithLabelValues("empty").Inc()
	default:
		m.CyclesTotal.WithLabelValues("error").Inc()
	}
}

func (s *Service) recordOutcome(out alarm.Outcome) {
	m := s.cfg.Metrics
	if m == nil {
		return
	}
	for _, sig := range out.Signals {
		m.SignalsTotal.WithLabelValues(string(sig.Classification)).Inc()
	}
	armed := 0
	for _, r := range s.cfg.Book.Rules() {
		if alarm.StateOf(r) == alarm.StateArmed {
			armed++
		}
	}
	m.RulesActive.Set(float64(armed))
}
