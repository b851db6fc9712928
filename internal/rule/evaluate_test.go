package rule

import (
	"testing"

	"market-sentinel/internal/model"
)

func f(v float64) *float64 { return &v }

func snap(rsi, hist float64) model.AssetSnapshot {
	return model.AssetSnapshot{RSI: rsi, MACD: model.MACDPoint{MACD: hist, Histogram: hist}}
}

func TestEvaluateCondition_RSIDefaults(t *testing.T) {
	gt := Condition{Indicator: IndicatorRSI, Operator: GreaterThan}
	lt := Condition{Indicator: IndicatorRSI, Operator: LessThan}

	if !EvaluateCondition(gt, snap(70.1, 0), nil).Matched {
		t.Error("RSI 70.1 > default 70 should match")
	}
	if EvaluateCondition(gt, snap(70, 0), nil).Matched {
		t.Error("RSI 70 > 70 must not match (strict)")
	}
	if !EvaluateCondition(lt, snap(29.9, 0), nil).Matched {
		t.Error("RSI 29.9 < default 30 should match")
	}
	if EvaluateCondition(lt, snap(30, 0), nil).Matched {
		t.Error("RSI 30 < 30 must not match (strict)")
	}

	res := EvaluateCondition(lt, snap(45, 0), nil)
	if res.ObservedValue == nil || *res.ObservedValue != 45 {
		t.Errorf("expected observed value 45 on non-match, got %v", res.ObservedValue)
	}
}

func TestEvaluateCondition_ExplicitThreshold(t *testing.T) {
	c := Condition{Indicator: IndicatorRSI, Operator: LessThan, Threshold: f(25)}
	if EvaluateCondition(c, snap(27, 0), nil).Matched {
		t.Error("RSI 27 < 25 must not match")
	}
	if !EvaluateCondition(c, snap(24, 0), nil).Matched {
		t.Error("RSI 24 < 25 should match")
	}
}

func TestEvaluateCondition_MACDHistogram(t *testing.T) {
	gt := Condition{Indicator: IndicatorMACD, Operator: GreaterThan}
	res := EvaluateCondition(gt, snap(50, 0.3), nil)
	if !res.Matched || *res.ObservedValue != 0.3 {
		t.Errorf("expected histogram 0.3 > 0 to match, got %+v", res)
	}
	if EvaluateCondition(gt, snap(50, 0), nil).Matched {
		t.Error("histogram 0 > 0 must not match")
	}
	lt := Condition{Indicator: IndicatorMACD, Operator: LessThan, Threshold: f(-1)}
	if !EvaluateCondition(lt, snap(50, -1.5), nil).Matched {
		t.Error("histogram -1.5 < -1 should match")
	}
}

func TestEvaluateCondition_Cross(t *testing.T) {
	above := Condition{Indicator: IndicatorMACD, Operator: CrossAbove}
	below := Condition{Indicator: IndicatorMACD, Operator: CrossBelow}

	prevNeg := snap(50, -0.2)
	prevPos := snap(50, 0.2)

	cases := []struct {
		name string
		c    Condition
		cur  model.AssetSnapshot
		prev *model.AssetSnapshot
		want bool
	}{
		{"above: neg to zero", above, snap(50, 0), &prevNeg, true},
		{"above: neg to pos", above, snap(50, 0.1), &prevNeg, true},
		{"above: neg to neg", above, snap(50, -0.1), &prevNeg, false},
		{"above: pos to pos", above, snap(50, 0.3), &prevPos, false},
		{"above: no previous", above, snap(50, 0.3), nil, false},
		{"below: pos to zero", below, snap(50, 0), &prevPos, true},
		{"below: pos to neg", below, snap(50, -0.1), &prevPos, true},
		{"below: neg to neg", below, snap(50, -0.3), &prevNeg, false},
		{"below: no previous", below, snap(50, -0.3), nil, false},
		{"rsi cross never matches", Condition{Indicator: IndicatorRSI, Operator: CrossAbove}, snap(80, 1), &prevNeg, false},
	}
	for _, c := range cases {
		if got := EvaluateCondition(c.c, c.cur, c.prev).Matched; got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestEvaluateCondition_UnknownIndicator(t *testing.T) {
	res := EvaluateCondition(Condition{Indicator: "VWAP", Operator: GreaterThan}, snap(99, 99), nil)
	if res.Matched || res.ObservedValue != nil {
		t.Errorf("expected empty result for unknown indicator, got %+v", res)
	}
}

var (
	btc  = model.Asset{ID: "bitcoin", Symbol: "BTC", Class: model.ClassCrypto}
	eth  = model.Asset{ID: "ethereum", Symbol: "ETH", Class: model.ClassCrypto}
	gold = model.Asset{ID: "gold", Symbol: "PAXG", Class: model.ClassCommodity}
	aapl = model.Asset{ID: "aapl", Symbol: "AAPL", Class: model.ClassStock}
)

func TestEvaluateRule_ANDRequiresBoth(t *testing.T) {
	r := Rule{
		AssetID: "bitcoin",
		Conditions: []Condition{
			{Indicator: IndicatorRSI, Operator: LessThan, Threshold: f(30)},
			{Indicator: IndicatorMACD, Operator: CrossAbove},
		},
		Logic: LogicAND,
	}
	prev := snap(25, -0.5)

	both := EvaluateRule(r, []AssetInput{{Asset: btc, Current: snap(25, 0.1), Previous: &prev}})
	if len(both) != 1 || !both[0].Matched {
		t.Fatalf("expected a match when both hold, got %+v", both)
	}
	if *both[0].ObservedValue != 25 {
		t.Errorf("expected observed value from first matched condition (25), got %f", *both[0].ObservedValue)
	}

	onlyRSI := EvaluateRule(r, []AssetInput{{Asset: btc, Current: snap(25, -0.1), Previous: &prev}})
	if onlyRSI[0].Matched {
		t.Error("AND must not match with only RSI true")
	}

	onlyCross := EvaluateRule(r, []AssetInput{{Asset: btc, Current: snap(40, 0.1), Previous: &prev}})
	if onlyCross[0].Matched {
		t.Error("AND must not match with only the cross true")
	}

	noPrev := EvaluateRule(r, []AssetInput{{Asset: btc, Current: snap(25, 0.1)}})
	if noPrev[0].Matched {
		t.Error("AND with a cross must not match without a previous snapshot")
	}
}

func TestEvaluateRule_ORFirstMatchedValue(t *testing.T) {
	r := Rule{
		AssetID: "bitcoin",
		Conditions: []Condition{
			{Indicator: IndicatorRSI, Operator: GreaterThan, Threshold: f(90)},
			{Indicator: IndicatorMACD, Operator: GreaterThan},
			{Indicator: IndicatorRSI, Operator: GreaterThan, Threshold: f(50)},
		},
		Logic: LogicOR,
	}
	got := EvaluateRule(r, []AssetInput{{Asset: btc, Current: snap(60, 0.7)}})
	if !got[0].Matched {
		t.Fatal("OR should match when any condition holds")
	}
	if *got[0].ObservedValue != 0.7 {
		t.Errorf("expected first matched value 0.7 (MACD), got %f", *got[0].ObservedValue)
	}

	none := EvaluateRule(r, []AssetInput{{Asset: btc, Current: snap(40, -0.1)}})
	if none[0].Matched {
		t.Error("OR must not match when nothing holds")
	}
	if none[0].ObservedValue == nil || *none[0].ObservedValue != 40 {
		t.Errorf("expected display value 40 on non-match, got %v", none[0].ObservedValue)
	}
}

func TestEvaluateRule_Selectors(t *testing.T) {
	inputs := []AssetInput{
		{Asset: btc, Current: snap(20, 0)},
		{Asset: aapl, Current: snap(20, 0)},
		{Asset: eth, Current: snap(40, 0)},
		{Asset: gold, Current: snap(20, 0)},
	}
	cond := []Condition{{Indicator: IndicatorRSI, Operator: LessThan}}

	crypto := EvaluateRule(Rule{AssetID: SelectAllCrypto, Conditions: cond, Logic: LogicAND}, inputs)
	if len(crypto) != 2 || crypto[0].Asset.ID != "bitcoin" || crypto[1].Asset.ID != "ethereum" {
		t.Fatalf("ALL_CRYPTO should resolve to BTC and ETH only, got %+v", crypto)
	}
	if !crypto[0].Matched || crypto[1].Matched {
		t.Errorf("expected BTC matched and ETH not, got %v/%v", crypto[0].Matched, crypto[1].Matched)
	}

	stocks := EvaluateRule(Rule{AssetID: SelectAllStocks, Conditions: cond, Logic: LogicAND}, inputs)
	if len(stocks) != 1 || stocks[0].Asset.ID != "aapl" {
		t.Errorf("ALL_STOCKS should resolve to AAPL only, got %+v", stocks)
	}

	single := EvaluateRule(Rule{AssetID: "gold", Conditions: cond, Logic: LogicAND}, inputs)
	if len(single) != 1 || !single[0].Matched {
		t.Errorf("single selector should resolve to gold and match, got %+v", single)
	}
}
