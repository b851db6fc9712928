package alarm

import (
	"time"

	"market-sentinel/internal/model"
	"market-sentinel/internal/rule"
)

// DefaultSignalRetention is how many signals the feed keeps.
const DefaultSignalRetention = 50

// Classification is the market direction a signal suggests.
type Classification string

const (
	Bullish Classification = "BULLISH"
	Bearish Classification = "BEARISH"
	Neutral Classification = "NEUTRAL"
)

// Signal is an immutable record of one rule firing for one asset.
type Signal struct {
	ID             string          `json:"id"`
	RuleID         string          `json:"ruleId"`
	AssetSymbol    string          `json:"assetSymbol"`
	AssetName      string          `json:"assetName"`
	Timeframe      model.Timeframe `json:"timeframe"`
	Message        string          `json:"message"`
	Timestamp      time.Time       `json:"timestamp"`
	Classification Classification  `json:"type"`
	ObservedValue  *float64        `json:"observedValue,omitempty"`
}

// Classify derives a rule's direction from its conditions. Oversold RSI,
// positive MACD histogram and upward crosses are bullish; their mirrors are
// bearish. Mixed rules are neutral.
func Classify(r rule.Rule) Classification {
	bull, bear := 0, 0
	for _, c := range r.Conditions {
		switch {
		case c.Indicator == rule.IndicatorRSI && c.Operator == rule.LessThan,
			c.Indicator == rule.IndicatorMACD && c.Operator == rule.GreaterThan,
			c.Indicator == rule.IndicatorMACD && c.Operator == rule.CrossAbove:
			bull++
		case c.Indicator == rule.IndicatorRSI && c.Operator == rule.GreaterThan,
			c.Indicator == rule.IndicatorMACD && c.Operator == rule.LessThan,
			c.Indicator == rule.IndicatorMACD && c.Operator == rule.CrossBelow:
			bear++
		}
	}
	switch {
	case bull > 0 && bear == 0 && bull == len(r.Conditions):
		return Bullish
	case bear > 0 && bull == 0 && bear == len(r.Conditions):
		return Bearish
	}
	return Neutral
}

// AppendSignals puts fresh signals in front of existing ones so the newest
// comes first, then drops the oldest beyond limit. A non-positive limit means
// DefaultSignalRetention. Inputs are not modified.
func AppendSignals(existing, fresh []Signal, limit int) []Signal {
	if limit <= 0 {
		limit = DefaultSignalRetention
	}
	out := make([]Signal, 0, len(existing)+len(fresh))
	for i := len(fresh) - 1; i >= 0; i-- {
		out = append(out, fresh[i])
	}
	out = append(out, existing...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
