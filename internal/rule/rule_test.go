package rule

import (
	"encoding/json"
	"errors"
	"testing"

	"market-sentinel/internal/model"
)

func TestNormalize_Legacy(t *testing.T) {
	raw := `{"id":"r1","assetId":"ALL_CRYPTO","timeframe":"4h","indicator":"RSI","operator":"LESS_THAN","threshold":30,"active":true,"triggered":false}`

	var r Rule
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(r.Conditions) != 1 {
		t.Fatalf("expected 1 condition, got %d", len(r.Conditions))
	}
	c := r.Conditions[0]
	if c.Indicator != IndicatorRSI || c.Operator != LessThan || c.Threshold == nil || *c.Threshold != 30 {
		t.Errorf("unexpected condition: %+v", c)
	}
	if r.Logic != LogicAND {
		t.Errorf("expected AND logic, got %s", r.Logic)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("normalised legacy rule should validate: %v", err)
	}
}

func TestNormalize_ConditionsWinOverLegacy(t *testing.T) {
	raw := `{"id":"r2","assetId":"bitcoin","timeframe":"1d","indicator":"RSI","operator":"GREATER_THAN",
		"conditions":[{"id":"c1","indicator":"MACD","operator":"CROSS_ABOVE"},{"id":"c2","indicator":"RSI","operator":"LESS_THAN"}],
		"logic":"OR","active":false,"triggered":true,"triggeredAt":"2024-03-01T10:00:00Z","triggeredValue":28.5}`

	var r Rule
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(r.Conditions) != 2 || r.Conditions[0].Indicator != IndicatorMACD {
		t.Fatalf("expected conditions list to be used, got %+v", r.Conditions)
	}
	if r.Logic != LogicOR || r.Active || !r.Triggered {
		t.Errorf("unexpected flags: logic=%s active=%v triggered=%v", r.Logic, r.Active, r.Triggered)
	}
	if r.TriggeredAt == nil || r.TriggeredAt.Year() != 2024 {
		t.Errorf("expected triggeredAt to parse, got %v", r.TriggeredAt)
	}
	if r.TriggeredValue == nil || *r.TriggeredValue != 28.5 {
		t.Errorf("expected triggeredValue 28.5, got %v", r.TriggeredValue)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	r, err := Normalize(Document{
		AssetID:    "bitcoin",
		Timeframe:  model.TF15m,
		Conditions: []Condition{{Indicator: IndicatorRSI, Operator: GreaterThan}},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if r.ID == "" || r.Conditions[0].ID == "" {
		t.Error("expected generated ids")
	}
	if !r.Active {
		t.Error("expected Active to default to true")
	}
	if r.Logic != LogicAND {
		t.Errorf("expected AND default, got %s", r.Logic)
	}
}

func TestNormalize_NoConditions(t *testing.T) {
	_, err := Normalize(Document{ID: "empty", AssetID: "bitcoin", Timeframe: model.TF4h})
	if !errors.Is(err, ErrInvalidRule) {
		t.Errorf("expected ErrInvalidRule, got %v", err)
	}
}

func TestMarshal_RoundTripKeepsShape(t *testing.T) {
	in := Rule{
		ID: "r3", AssetID: "aapl", Timeframe: model.TF1d, Logic: LogicAND, Active: true,
		Conditions: []Condition{{ID: "c", Indicator: IndicatorRSI, Operator: LessThan, Threshold: f(25)}},
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Rule
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != in.ID || len(out.Conditions) != 1 || *out.Conditions[0].Threshold != 25 || !out.Active {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestValidate(t *testing.T) {
	base := func() Rule {
		return Rule{
			AssetID: "bitcoin", Timeframe: model.TF4h, Logic: LogicAND,
			Conditions: []Condition{{Indicator: IndicatorRSI, Operator: LessThan}},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("base rule should validate: %v", err)
	}

	cases := map[string]func(r *Rule){
		"no selector":    func(r *Rule) { r.AssetID = "" },
		"bad timeframe":  func(r *Rule) { r.Timeframe = "3h" },
		"no conditions":  func(r *Rule) { r.Conditions = nil },
		"too many":       func(r *Rule) { r.Conditions = append(r.Conditions, r.Conditions[0], r.Conditions[0], r.Conditions[0]) },
		"bad logic":      func(r *Rule) { r.Logic = "XOR" },
		"rsi cross":      func(r *Rule) { r.Conditions[0].Operator = CrossAbove },
		"bad indicator":  func(r *Rule) { r.Conditions[0].Indicator = "ADX" },
		"bad operator":   func(r *Rule) { r.Conditions[0].Operator = "EQUALS" },
		"rsi out of box": func(r *Rule) { r.Conditions[0].Threshold = f(120) },
	}
	for name, mutate := range cases {
		r := base()
		mutate(&r)
		if err := r.Validate(); !errors.Is(err, ErrInvalidRule) {
			t.Errorf("%s: expected ErrInvalidRule, got %v", name, err)
		}
	}
}

func TestDescribe(t *testing.T) {
	r := Rule{
		Logic: LogicOR,
		Conditions: []Condition{
			{Indicator: IndicatorRSI, Operator: LessThan},
			{Indicator: IndicatorMACD, Operator: CrossAbove},
		},
	}
	if got, want := r.Describe(), "RSI < 30 OR MACD CROSS_ABOVE"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
