// Package alarm runs the rule lifecycle: it fires armed rules against each
// refresh cycle, emits signals and notifications, and owns the signal feed.
package alarm

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"market-sentinel/internal/model"
	"market-sentinel/internal/rule"
)

// ErrRuleNotFound is returned by lifecycle operations on an unknown rule id.
var ErrRuleNotFound = errors.New("rule not found")

// State is the lifecycle state of a rule.
type State string

const (
	StateInactive State = "INACTIVE"
	StateArmed    State = "ARMED"
	StateFired    State = "FIRED"
	StateDeleted  State = "DELETED"
)

// StateOf derives the lifecycle state from a stored rule.
// Deleted rules are no longer stored, so StateDeleted is never returned here.
func StateOf(r rule.Rule) State {
	switch {
	case !r.Active:
		return StateInactive
	case r.Triggered:
		return StateFired
	}
	return StateArmed
}

// Severity grades a notification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Notification is what the notification layer receives for one firing.
type Notification struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Severity Severity `json:"severity"`
}

// Outcome is the result of evaluating one cycle.
type Outcome struct {
	Rules         []rule.Rule
	Signals       []Signal
	Notifications []Notification
	Fired         []string // rule ids that moved to FIRED
}

// Machine evaluates rules against a cycle. It holds no rule state; Now and
// NewID are injectable for tests.
type Machine struct {
	Now   func() time.Time
	NewID func() string
}

// NewMachine returns a Machine using the wall clock and random UUIDs.
func NewMachine() *Machine {
	return &Machine{Now: time.Now, NewID: uuid.NewString}
}

// Evaluate fires every ARMED rule that matches at least one asset in current.
// previous may be nil on the first cycle, in which case CROSS conditions
// cannot match. Assets missing from current are skipped. Each matching asset
// yields one signal; the rule records the first matching asset's value and
// stays FIRED until reset. rules is not modified.
func (m *Machine) Evaluate(rules []rule.Rule, universe []model.Asset, current, previous *model.Cycle) Outcome {
	now := m.Now()
	out := Outcome{Rules: make([]rule.Rule, len(rules))}
	copy(out.Rules, rules)

	for i := range out.Rules {
		r := &out.Rules[i]
		if StateOf(*r) != StateArmed {
			continue
		}

		inputs := make([]rule.AssetInput, 0, len(universe))
		for _, a := range universe {
			if !r.Selects(a) {
				continue
			}
			cur, ok := current.Get(r.Timeframe, a.ID)
			if !ok {
				continue
			}
			in := rule.AssetInput{Asset: a, Current: cur}
			if prev, ok := previous.Get(r.Timeframe, a.ID); ok {
				in.Previous = &prev
			}
			inputs = append(inputs, in)
		}

		class := Classify(*r)
		for _, match := range rule.EvaluateRule(*r, inputs) {
			if !match.Matched {
				continue
			}
			if !r.Triggered {
				at := now
				r.Triggered = true
				r.TriggeredAt = &at
				r.TriggeredValue = match.ObservedValue
				out.Fired = append(out.Fired, r.ID)
			}

			msg := fmt.Sprintf("%s: signal on %s triggered (%s)", match.Asset.Symbol, r.Timeframe, r.Describe())
			out.Signals = append(out.Signals, Signal{
				ID:             m.NewID(),
				RuleID:         r.ID,
				AssetSymbol:    match.Asset.Symbol,
				AssetName:      match.Asset.Name,
				Timeframe:      r.Timeframe,
				Message:        msg,
				Timestamp:      now,
				Classification: class,
				ObservedValue:  match.ObservedValue,
			})
			out.Notifications = append(out.Notifications, Notification{
				Title:    "Alarm: " + match.Asset.Symbol,
				Body:     msg,
				Severity: SeverityWarning,
			})
		}
	}
	return out
}
