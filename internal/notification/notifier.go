// Package notification delivers alarm alerts to external channels.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"market-sentinel/internal/alarm"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// FromNotification converts an alarm notification into an Alert.
func FromNotification(n alarm.Notification) Alert {
	level := AlertInfo
	switch n.Severity {
	case alarm.SeverityWarning:
		level = AlertWarning
	case alarm.SeverityCritical:
		level = AlertCritical
	}
	return Alert{Level: level, Title: n.Title, Message: n.Body}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	slog.Info("alert",
		"level", alert.Level,
		"title", alert.Title,
		"message", alert.Message,
	)
	return nil
}

// Multi sends every alert to all of its notifiers. One failing backend does
// not stop the others; their errors are joined.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for i, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, fmt.Errorf("notifier %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Gate forwards alerts only while notifications are permitted. A closed
// gate drops alerts without error.
type Gate struct {
	next    Notifier
	allowed atomic.Bool
}

// NewGate wraps next. The gate starts open when allowed is true.
func NewGate(next Notifier, allowed bool) *Gate {
	g := &Gate{next: next}
	g.allowed.Store(allowed)
	return g
}

// SetAllowed opens or closes the gate.
func (g *Gate) SetAllowed(v bool) { g.allowed.Store(v) }

// Allowed reports whether alerts are currently forwarded.
func (g *Gate) Allowed() bool { return g.allowed.Load() }

func (g *Gate) Send(ctx context.Context, alert Alert) error {
	if !g.allowed.Load() || g.next == nil {
		return nil
	}
	return g.next.Send(ctx, alert)
}
