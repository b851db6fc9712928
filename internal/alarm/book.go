package alarm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"market-sentinel/internal/model"
	"market-sentinel/internal/rule"
)

// Book owns the live rule and signal lists. Every mutation is applied in
// memory first and then written through the repository; a failed write is
// returned but the in-memory change stands.
type Book struct {
	mu        sync.RWMutex
	repo      Repository
	machine   *Machine
	retention int
	rules     []rule.Rule
	signals   []Signal
}

// DefaultRule is seeded when the store has never held any rules.
func DefaultRule(now time.Time) rule.Rule {
	threshold := 30.0
	return rule.Rule{
		ID:        uuid.NewString(),
		AssetID:   rule.SelectAllCrypto,
		Timeframe: model.TF4h,
		Conditions: []rule.Condition{
			{ID: "legacy", Indicator: rule.IndicatorRSI, Operator: rule.LessThan, Threshold: &threshold},
		},
		Logic:     rule.LogicAND,
		Active:    true,
		CreatedAt: now,
	}
}

// NewBook loads rules and signals from repo. A repository that never stored
// rules is seeded with DefaultRule.
func NewBook(ctx context.Context, repo Repository, machine *Machine, retention int) (*Book, error) {
	if machine == nil {
		machine = NewMachine()
	}
	if retention <= 0 {
		retention = DefaultSignalRetention
	}
	b := &Book{repo: repo, machine: machine, retention: retention}

	rules, err := repo.LoadRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("alarm: load rules: %w", err)
	}
	signals, err := repo.LoadSignals(ctx)
	if err != nil {
		return nil, fmt.Errorf("alarm: load signals: %w", err)
	}

	if rules == nil {
		rules = []rule.Rule{DefaultRule(machine.Now())}
		if err := repo.SaveRules(ctx, rules); err != nil {
			return nil, fmt.Errorf("alarm: seed rules: %w", err)
		}
		slog.Info("seeded default rule", "rule_id", rules[0].ID)
	}
	if len(signals) > retention {
		signals = signals[:retention]
	}

	b.rules = rules
	b.signals = signals
	slog.Info("alarm book loaded", "rules", len(rules), "signals", len(signals))
	return b, nil
}

// Rules returns a copy of the rule list.
func (b *Book) Rules() []rule.Rule {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return cloneRules(b.rules)
}

// Rule returns the rule with id.
func (b *Book) Rule(id string) (rule.Rule, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i := indexOf(b.rules, id)
	if i < 0 {
		return rule.Rule{}, fmt.Errorf("get %s: %w", id, ErrRuleNotFound)
	}
	return b.rules[i], nil
}

// Signals returns a copy of the signal feed, newest first.
func (b *Book) Signals() []Signal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Signal{}, b.signals...)
}

// Add validates and stores a new rule.
func (b *Book) Add(ctx context.Context, r rule.Rule) (rule.Rule, error) {
	if err := r.Validate(); err != nil {
		return rule.Rule{}, err
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = b.machine.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if indexOf(b.rules, r.ID) >= 0 {
		return rule.Rule{}, fmt.Errorf("%w: duplicate id %s", rule.ErrInvalidRule, r.ID)
	}
	b.rules = Add(b.rules, r)
	return r, b.saveRules(ctx)
}

// Update validates and replaces an existing rule definition.
func (b *Book) Update(ctx context.Context, r rule.Rule) (rule.Rule, error) {
	if err := r.Validate(); err != nil {
		return rule.Rule{}, err
	}
	return b.mutate(ctx, r.ID, func(rules []rule.Rule) ([]rule.Rule, error) { return Update(rules, r) })
}

// Toggle flips a rule between INACTIVE and its active state.
func (b *Book) Toggle(ctx context.Context, id string) (rule.Rule, error) {
	return b.mutate(ctx, id, func(rules []rule.Rule) ([]rule.Rule, error) { return Toggle(rules, id) })
}

// Reset re-arms a fired rule.
func (b *Book) Reset(ctx context.Context, id string) (rule.Rule, error) {
	return b.mutate(ctx, id, func(rules []rule.Rule) ([]rule.Rule, error) { return Reset(rules, id) })
}

// Delete removes a rule.
func (b *Book) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	rules, err := Delete(b.rules, id)
	if err != nil {
		return err
	}
	b.rules = rules
	return b.saveRules(ctx)
}

// DeleteSignal removes one signal from the feed. Unknown ids are ignored.
func (b *Book) DeleteSignal(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Signal, 0, len(b.signals))
	for _, s := range b.signals {
		if s.ID != id {
			out = append(out, s)
		}
	}
	b.signals = out
	return b.saveSignals(ctx)
}

// ClearSignals empties the feed.
func (b *Book) ClearSignals(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals = []Signal{}
	return b.saveSignals(ctx)
}

// Apply evaluates one refresh cycle and stores the resulting rule and signal
// lists atomically with respect to other Book operations.
func (b *Book) Apply(ctx context.Context, universe []model.Asset, current, previous *model.Cycle) (Outcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.machine.Evaluate(b.rules, universe, current, previous)
	if len(out.Signals) == 0 {
		return out, nil
	}

	b.rules = out.Rules
	b.signals = AppendSignals(b.signals, out.Signals, b.retention)
	if err := b.saveRules(ctx); err != nil {
		return out, err
	}
	return out, b.saveSignals(ctx)
}

func (b *Book) mutate(ctx context.Context, id string, fn func([]rule.Rule) ([]rule.Rule, error)) (rule.Rule, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rules, err := fn(b.rules)
	if err != nil {
		return rule.Rule{}, err
	}
	b.rules = rules
	r := b.rules[indexOf(b.rules, id)]
	return r, b.saveRules(ctx)
}

func (b *Book) saveRules(ctx context.Context) error {
	if err := b.repo.SaveRules(ctx, b.rules); err != nil {
		return fmt.Errorf("alarm: save rules: %w", err)
	}
	return nil
}

func (b *Book) saveSignals(ctx context.Context) error {
	if err := b.repo.SaveSignals(ctx, b.signals); err != nil {
		return fmt.Errorf("alarm: save signals: %w", err)
	}
	return nil
}
