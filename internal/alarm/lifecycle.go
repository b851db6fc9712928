package alarm

import (
	"fmt"

	"market-sentinel/internal/rule"
)

func indexOf(rules []rule.Rule, id string) int {
	for i, r := range rules {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func cloneRules(rules []rule.Rule) []rule.Rule {
	out := make([]rule.Rule, len(rules))
	copy(out, rules)
	return out
}

// Add appends r as a new rule.
func Add(rules []rule.Rule, r rule.Rule) []rule.Rule {
	return append(cloneRules(rules), r)
}

// Update replaces the definition of the rule with r.ID. Active and CreatedAt
// are kept; the trigger state is cleared so the edited rule is re-armed.
func Update(rules []rule.Rule, r rule.Rule) ([]rule.Rule, error) {
	i := indexOf(rules, r.ID)
	if i < 0 {
		return nil, fmt.Errorf("update %s: %w", r.ID, ErrRuleNotFound)
	}
	out := cloneRules(rules)
	old := out[i]
	r.Active = old.Active
	r.CreatedAt = old.CreatedAt
	r.Triggered = false
	r.TriggeredAt = nil
	r.TriggeredValue = nil
	out[i] = r
	return out, nil
}

// Toggle flips Active. Suspending a rule does not clear Triggered.
func Toggle(rules []rule.Rule, id string) ([]rule.Rule, error) {
	i := indexOf(rules, id)
	if i < 0 {
		return nil, fmt.Errorf("toggle %s: %w", id, ErrRuleNotFound)
	}
	out := cloneRules(rules)
	out[i].Active = !out[i].Active
	return out, nil
}

// Reset returns a FIRED rule to ARMED by clearing its trigger state.
func Reset(rules []rule.Rule, id string) ([]rule.Rule, error) {
	i := indexOf(rules, id)
	if i < 0 {
		return nil, fmt.Errorf("reset %s: %w", id, ErrRuleNotFound)
	}
	out := cloneRules(rules)
	out[i].Triggered = false
	out[i].TriggeredAt = nil
	out[i].TriggeredValue = nil
	return out, nil
}

// Delete removes the rule permanently.
func Delete(rules []rule.Rule, id string) ([]rule.Rule, error) {
	i := indexOf(rules, id)
	if i < 0 {
		return nil, fmt.Errorf("delete %s: %w", id, ErrRuleNotFound)
	}
	out := make([]rule.Rule, 0, len(rules)-1)
	out = append(out, rules[:i]...)
	return append(out, rules[i+1:]...), nil
}
