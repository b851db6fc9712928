package rule

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"market-sentinel/internal/model"
)

// Shape is either a LegacyRule or a MultiConditionRule.
type Shape interface {
	normalized() ([]Condition, Logic)
}

// LegacyRule is the single-condition form older clients and stores still emit.
type LegacyRule struct {
	Indicator Indicator
	Operator  Operator
	Threshold *float64
}

func (l LegacyRule) normalized() ([]Condition, Logic) {
	if l.Indicator == "" && l.Operator == "" {
		return nil, LogicAND
	}
	return []Condition{{ID: "legacy", Indicator: l.Indicator, Operator: l.Operator, Threshold: l.Threshold}}, LogicAND
}

// MultiConditionRule is the current form.
type MultiConditionRule struct {
	Conditions []Condition
	Logic      Logic
}

func (m MultiConditionRule) normalized() ([]Condition, Logic) {
	logic := m.Logic
	if logic == "" {
		logic = LogicAND
	}
	out := make([]Condition, len(m.Conditions))
	copy(out, m.Conditions)
	return out, logic
}

// Document is the wire and storage shape of a rule. It may carry the legacy
// indicator/operator/threshold triple, a conditions list, or both; the list wins.
type Document struct {
	ID             string          `json:"id"`
	AssetID        string          `json:"assetId"`
	Timeframe      model.Timeframe `json:"timeframe"`
	Indicator      Indicator       `json:"indicator,omitempty"`
	Operator       Operator        `json:"operator,omitempty"`
	Threshold      *float64        `json:"threshold,omitempty"`
	Conditions     []Condition     `json:"conditions,omitempty"`
	Logic          Logic           `json:"logic,omitempty"`
	Active         *bool           `json:"active,omitempty"`
	Triggered      bool            `json:"triggered"`
	TriggeredAt    *time.Time      `json:"triggeredAt,omitempty"`
	TriggeredValue *float64        `json:"triggeredValue,omitempty"`
	CreatedAt      *time.Time      `json:"createdAt,omitempty"`
}

// Shape picks the union member the document represents.
func (d Document) Shape() Shape {
	if len(d.Conditions) > 0 {
		return MultiConditionRule{Conditions: d.Conditions, Logic: d.Logic}
	}
	return LegacyRule{Indicator: d.Indicator, Operator: d.Operator, Threshold: d.Threshold}
}

// Normalize converts a document into a Rule with at least one condition.
// Missing ids are generated, Active defaults to true and Logic to AND.
// It does not enforce the full Validate rules so that stored rules always load.
func Normalize(d Document) (Rule, error) {
	conds, logic := d.Shape().normalized()
	if len(conds) == 0 {
		return Rule{}, fmt.Errorf("%w: rule %q has no conditions", ErrInvalidRule, d.ID)
	}
	for i := range conds {
		if conds[i].ID == "" {
			conds[i].ID = uuid.NewString()
		}
	}

	r := Rule{
		ID:             d.ID,
		AssetID:        d.AssetID,
		Timeframe:      d.Timeframe,
		Conditions:     conds,
		Logic:          logic,
		Active:         true,
		Triggered:      d.Triggered,
		TriggeredAt:    d.TriggeredAt,
		TriggeredValue: d.TriggeredValue,
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if d.Active != nil {
		r.Active = *d.Active
	}
	if d.CreatedAt != nil {
		r.CreatedAt = *d.CreatedAt
	}
	return r, nil
}

// UnmarshalJSON accepts both the legacy and the multi-condition shape.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	n, err := Normalize(d)
	if err != nil {
		return err
	}
	*r = n
	return nil
}
