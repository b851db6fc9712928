package rule

import "market-sentinel/internal/model"

// ConditionResult is the outcome of one condition. ObservedValue is set
// whenever the reading could be taken, matched or not.
type ConditionResult struct {
	Matched       bool     `json:"matched"`
	ObservedValue *float64 `json:"observedValue,omitempty"`
}

// EvaluateCondition evaluates c against the current snapshot and, for
// CROSS_* operators, the previous one. CROSS_* never matches without a
// previous snapshot and never matches on RSI.
func EvaluateCondition(c Condition, current model.AssetSnapshot, previous *model.AssetSnapshot) ConditionResult {
	var value float64
	switch c.Indicator {
	case IndicatorRSI:
		value = current.RSI
	case IndicatorMACD:
		value = current.MACD.Histogram
	default:
		return ConditionResult{}
	}

	res := ConditionResult{ObservedValue: &value}
	threshold := c.EffectiveThreshold()

	switch c.Operator {
	case GreaterThan:
		res.Matched = value > threshold
	case LessThan:
		res.Matched = value < threshold
	case CrossAbove:
		if c.Indicator == IndicatorMACD && previous != nil {
			res.Matched = previous.MACD.Histogram < 0 && value >= 0
		}
	case CrossBelow:
		if c.Indicator == IndicatorMACD && previous != nil {
			res.Matched = previous.MACD.Histogram > 0 && value <= 0
		}
	}
	return res
}

// AssetInput is one asset's snapshot pair for the rule's timeframe.
type AssetInput struct {
	Asset    model.Asset
	Current  model.AssetSnapshot
	Previous *model.AssetSnapshot
}

// AssetMatch is the rule outcome for one asset.
// ObservedValue comes from the first matched condition; for a non-match it is
// the first reading that could be taken.
type AssetMatch struct {
	Asset         model.Asset       `json:"asset"`
	Matched       bool              `json:"matched"`
	ObservedValue *float64          `json:"observedValue,omitempty"`
	Conditions    []ConditionResult `json:"conditions"`
}

// EvaluateRule evaluates r for every input its selector resolves to, in input order.
func EvaluateRule(r Rule, inputs []AssetInput) []AssetMatch {
	logic := r.effectiveLogic()
	out := make([]AssetMatch, 0, len(inputs))

	for _, in := range inputs {
		if !r.Selects(in.Asset) {
			continue
		}
		m := AssetMatch{Asset: in.Asset, Conditions: make([]ConditionResult, len(r.Conditions))}

		matched := 0
		for i, c := range r.Conditions {
			res := EvaluateCondition(c, in.Current, in.Previous)
			m.Conditions[i] = res
			if res.Matched {
				matched++
			}
		}

		if logic == LogicOR {
			m.Matched = matched > 0
		} else {
			m.Matched = len(r.Conditions) > 0 && matched == len(r.Conditions)
		}
		m.ObservedValue = pickObserved(m.Conditions, m.Matched)
		out = append(out, m)
	}
	return out
}

func pickObserved(results []ConditionResult, matched bool) *float64 {
	for _, res := range results {
		if matched && res.Matched {
			return res.ObservedValue
		}
		if !matched && res.ObservedValue != nil {
			return res.ObservedValue
		}
	}
	return nil
}
