// Package rule defines alert rules and evaluates them against indicator snapshots.
package rule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"market-sentinel/internal/model"
)

// Indicator is the indicator a condition reads.
type Indicator string

const (
	IndicatorRSI  Indicator = "RSI"
	IndicatorMACD Indicator = "MACD"
)

// Operator compares an indicator reading against a threshold or the previous snapshot.
type Operator string

const (
	GreaterThan Operator = "GREATER_THAN"
	LessThan    Operator = "LESS_THAN"
	CrossAbove  Operator = "CROSS_ABOVE"
	CrossBelow  Operator = "CROSS_BELOW"
)

// IsCross reports whether op compares against the previous snapshot.
func (op Operator) IsCross() bool {
	return op == CrossAbove || op == CrossBelow
}

// Logic combines condition results.
type Logic string

const (
	LogicAND Logic = "AND"
	LogicOR  Logic = "OR"
)

// Broad asset selectors. Any other selector value is a single asset id.
const (
	SelectAllCrypto = "ALL_CRYPTO"
	SelectAllStocks = "ALL_STOCKS"
)

// MaxConditions is the most conditions a rule may carry.
const MaxConditions = 3

// ErrInvalidRule is returned for rules that fail validation or normalisation.
var ErrInvalidRule = errors.New("invalid rule")

// Condition is a single indicator comparison.
// A nil Threshold selects the indicator/operator default.
type Condition struct {
	ID        string    `json:"id"`
	Indicator Indicator `json:"indicator" validate:"required,oneof=RSI MACD"`
	Operator  Operator  `json:"operator" validate:"required,oneof=GREATER_THAN LESS_THAN CROSS_ABOVE CROSS_BELOW"`
	Threshold *float64  `json:"threshold,omitempty"`
}

// EffectiveThreshold returns the configured threshold or the default:
// RSI > 70, RSI < 30, and 0 for every MACD comparison.
func (c Condition) EffectiveThreshold() float64 {
	if c.Threshold != nil {
		return *c.Threshold
	}
	if c.Indicator == IndicatorRSI {
		if c.Operator == LessThan {
			return 30
		}
		return 70
	}
	return 0
}

// String renders the condition for messages, e.g. "RSI < 30" or "MACD CROSS_ABOVE".
func (c Condition) String() string {
	switch c.Operator {
	case GreaterThan:
		return fmt.Sprintf("%s > %g", c.Indicator, c.EffectiveThreshold())
	case LessThan:
		return fmt.Sprintf("%s < %g", c.Indicator, c.EffectiveThreshold())
	}
	return fmt.Sprintf("%s %s", c.Indicator, c.Operator)
}

// Rule is an alert rule in normalised form: Conditions always holds 1..3 entries.
type Rule struct {
	ID             string          `json:"id"`
	AssetID        string          `json:"assetId"`
	Timeframe      model.Timeframe `json:"timeframe"`
	Conditions     []Condition     `json:"conditions"`
	Logic          Logic           `json:"logic"`
	Active         bool            `json:"active"`
	Triggered      bool            `json:"triggered"`
	TriggeredAt    *time.Time      `json:"triggeredAt,omitempty"`
	TriggeredValue *float64        `json:"triggeredValue,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// Selects reports whether asset falls under the rule's selector.
func (r Rule) Selects(asset model.Asset) bool {
	switch r.AssetID {
	case SelectAllCrypto:
		return asset.Class == model.ClassCrypto
	case SelectAllStocks:
		return asset.Class == model.ClassStock
	}
	return asset.ID == r.AssetID
}

// Describe joins the conditions with the rule's logic.
func (r Rule) Describe() string {
	parts := make([]string, len(r.Conditions))
	for i, c := range r.Conditions {
		parts[i] = c.String()
	}
	return strings.Join(parts, " "+string(r.effectiveLogic())+" ")
}

func (r Rule) effectiveLogic() Logic {
	if r.Logic == LogicOR {
		return LogicOR
	}
	return LogicAND
}

// Validate checks the invariants a rule must hold before it is stored.
func (r Rule) Validate() error {
	if r.AssetID == "" {
		return fmt.Errorf("%w: asset selector is required", ErrInvalidRule)
	}
	if !r.Timeframe.Valid() {
		return fmt.Errorf("%w: unsupported timeframe %q", ErrInvalidRule, r.Timeframe)
	}
	if n := len(r.Conditions); n == 0 || n > MaxConditions {
		return fmt.Errorf("%w: rule needs 1 to %d conditions, got %d", ErrInvalidRule, MaxConditions, n)
	}
	if r.Logic != LogicAND && r.Logic != LogicOR {
		return fmt.Errorf("%w: unknown logic %q", ErrInvalidRule, r.Logic)
	}
	for i, c := range r.Conditions {
		if c.Indicator != IndicatorRSI && c.Indicator != IndicatorMACD {
			return fmt.Errorf("%w: condition %d: unknown indicator %q", ErrInvalidRule, i, c.Indicator)
		}
		switch c.Operator {
		case GreaterThan, LessThan:
		case CrossAbove, CrossBelow:
			if c.Indicator != IndicatorMACD {
				return fmt.Errorf("%w: condition %d: %s is only supported for MACD", ErrInvalidRule, i, c.Operator)
			}
		default:
			return fmt.Errorf("%w: condition %d: unknown operator %q", ErrInvalidRule, i, c.Operator)
		}
		if c.Indicator == IndicatorRSI && c.Threshold != nil && (*c.Threshold < 0 || *c.Threshold > 100) {
			return fmt.Errorf("%w: condition %d: RSI threshold %g outside [0,100]", ErrInvalidRule, i, *c.Threshold)
		}
	}
	return nil
}
