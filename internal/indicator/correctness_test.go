package indicator

import (
	"math"
	"testing"
	"time"

	"market-sentinel/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helper
// ────────────────────────────────────────────────────────────

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// RSI Correctness
// ────────────────────────────────────────────────────────────

func TestRSI_ShortSeriesIsNeutral(t *testing.T) {
	for n := 0; n < 15; n++ {
		prices := make([]float64, n)
		for i := range prices {
			prices[i] = float64(100 + i*3)
		}
		got := RSI(prices, 14)
		if len(got) != n {
			t.Fatalf("len %d: expected output length %d, got %d", n, n, len(got))
		}
		for i, v := range got {
			if v != NeutralRSI {
				t.Errorf("len %d index %d: expected 50, got %f", n, i, v)
			}
		}
	}
}

func TestRSI_NonPositivePeriodIsNeutral(t *testing.T) {
	got := RSI([]float64{1, 2, 3, 4}, 0)
	for i, v := range got {
		if v != NeutralRSI {
			t.Errorf("index %d: expected 50, got %f", i, v)
		}
	}
}

func TestRSI_Correctness_Period14(t *testing.T) {
	// Deltas 1..14: +2,-1,+4,+2,-4,-4, then eight -1s.
	// gains = 8, losses = 17 -> avgGain = 8/14, avgLoss = 17/14
	// RS = 8/17, RSI[14] = 100 - 100/(1+8/17) = 32.0
	// RSI[15]: delta -1 -> avgGain = (8/14*13)/14, avgLoss = (17/14*13+1)/14
	//          RS = 104/235 -> RSI = 30.678466
	prices := []float64{100, 102, 101, 105, 107, 103, 99, 98, 97, 96, 95, 94, 93, 92, 91, 90, 95, 100, 105, 110}
	got := RSI(prices, 14)

	if len(got) != len(prices) {
		t.Fatalf("expected %d values, got %d", len(prices), len(got))
	}
	for i := 0; i < 14; i++ {
		if got[i] != NeutralRSI {
			t.Errorf("index %d: expected warm-up value 50, got %f", i, got[i])
		}
	}

	expected := []float64{32.0, 30.678466, 43.289400, 52.579671, 59.691000, 65.295721}
	for i, want := range expected {
		assertClose(t, "RSI(14)", got[14+i], want, 0.0001)
	}
}

func TestRSI_ZeroLossSubstitutesOne(t *testing.T) {
	// Strictly rising by 2: avgGain = 2, avgLoss = 0 -> treated as 1.
	// RS = 2 -> RSI = 100 - 100/3 = 66.666667 rather than 100.
	prices := make([]float64, 16)
	for i := range prices {
		prices[i] = 100 + float64(i*2)
	}
	got := RSI(prices, 14)
	assertClose(t, "RSI zero loss idx14", got[14], 66.666667, 0.0001)
	assertClose(t, "RSI zero loss idx15", got[15], 66.666667, 0.0001)
}

func TestRSI_Bounded(t *testing.T) {
	prices := []float64{50, 80, 20, 95, 10, 60, 61, 59, 300, 1, 2, 3, 250, 4, 5, 6, 400, 3, 7, 1000, 1}
	for i, v := range RSI(prices, 14) {
		if v < 0 || v > 100 {
			t.Errorf("index %d: RSI %f out of [0,100]", i, v)
		}
	}
}

func TestRSI_NaNPropagates(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, math.NaN()}
	got := RSI(prices, 14)
	if !math.IsNaN(got[15]) {
		t.Errorf("expected NaN to propagate, got %f", got[15])
	}
}

func TestLastRSI_Empty(t *testing.T) {
	if v := LastRSI(nil, 14); v != NeutralRSI {
		t.Errorf("expected 50 for empty series, got %f", v)
	}
}

// ────────────────────────────────────────────────────────────
// EMA / MACD Correctness
// ────────────────────────────────────────────────────────────

func TestEMA_SeededWithFirstValue(t *testing.T) {
	// span 3 -> k = 0.5
	// [1, 2, 3] -> 1, 1.5, 2.25
	got := EMA([]float64{1, 2, 3}, 3)
	expected := []float64{1, 1.5, 2.25}
	for i, want := range expected {
		assertClose(t, "EMA(3)", got[i], want, 1e-12)
	}
}

func TestEMA_Empty(t *testing.T) {
	if got := EMA(nil, 9); len(got) != 0 {
		t.Errorf("expected empty output, got %v", got)
	}
}

func TestMACD_LengthAndHistogram(t *testing.T) {
	prices := []float64{10, 11, 12, 11, 10, 9, 12, 15, 14, 13, 16, 18, 17, 19, 22, 21, 20, 23, 25, 24, 26, 28, 27, 30, 29, 31, 33, 32, 35, 34}
	for n := 0; n <= len(prices); n++ {
		got := DefaultMACD(prices[:n])
		if len(got) != n {
			t.Fatalf("len %d: expected %d points, got %d", n, n, len(got))
		}
		for i, p := range got {
			if p.Histogram != p.MACD-p.Signal {
				t.Errorf("len %d index %d: histogram %f != macd-signal %f", n, i, p.Histogram, p.MACD-p.Signal)
			}
		}
	}
}

func TestMACD_FirstPointIsZero(t *testing.T) {
	// Every EMA is seeded with the first price, so the first MACD point is flat.
	got := DefaultMACD([]float64{42, 43, 44})
	if got[0].MACD != 0 || got[0].Signal != 0 || got[0].Histogram != 0 {
		t.Errorf("expected zero first point, got %+v", got[0])
	}
}

func TestMACD_Correctness_SmallSpans(t *testing.T) {
	// fast=2 (k=2/3), slow=3 (k=1/2), signal=2 (k=2/3)
	// prices 10, 13
	// emaFast[1] = 13*2/3 + 10/3 = 12
	// emaSlow[1] = 13/2 + 10/2 = 11.5
	// macd[1] = 0.5; signal[1] = 0.5*2/3 + 0 = 0.333333; hist = 0.166667
	got := MACD([]float64{10, 13}, 2, 3, 2)
	assertClose(t, "MACD line", got[1].MACD, 0.5, 1e-9)
	assertClose(t, "MACD signal", got[1].Signal, 1.0/3.0, 1e-9)
	assertClose(t, "MACD hist", got[1].Histogram, 0.5-1.0/3.0, 1e-9)
}

// ────────────────────────────────────────────────────────────
// Snapshot
// ────────────────────────────────────────────────────────────

func TestBuildSnapshot(t *testing.T) {
	asset := model.Asset{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", Class: model.ClassCrypto}
	prices := []float64{100, 102, 101, 105, 107, 103, 99, 98, 97, 96, 95, 94, 93, 92, 91}
	in := model.SeriesInput{ClosePrices: prices, LatestOpen: 90, LatestClose: 91}

	snap := BuildSnapshot(asset, model.TF4h, in, time.Time{})
	assertClose(t, "snapshot RSI", snap.RSI, 32.0, 0.0001)
	assertClose(t, "snapshot price", snap.Price, 91, 0)
	assertClose(t, "snapshot change", snap.ChangePercent, 1.0/90.0*100, 1e-9)
	if snap.AssetID != "bitcoin" || snap.Timeframe != model.TF4h {
		t.Errorf("unexpected identity fields: %+v", snap)
	}
	want := DefaultMACD(prices)[len(prices)-1]
	if snap.MACD != want {
		t.Errorf("expected last MACD point %+v, got %+v", want, snap.MACD)
	}
}

func TestBuildSnapshot_EmptyAndZeroOpen(t *testing.T) {
	snap := BuildSnapshot(model.Asset{ID: "x"}, model.TF1d, model.SeriesInput{}, time.Time{})
	if snap.RSI != NeutralRSI {
		t.Errorf("expected neutral RSI, got %f", snap.RSI)
	}
	if snap.ChangePercent != 0 {
		t.Errorf("expected zero change with zero open, got %f", snap.ChangePercent)
	}
	if snap.MACD != (model.MACDPoint{}) {
		t.Errorf("expected zero MACD, got %+v", snap.MACD)
	}
}

// ────────────────────────────────────────────────────────────
// Heatmap zones
// ────────────────────────────────────────────────────────────

func TestZoneFor_Edges(t *testing.T) {
	cases := []struct {
		rsi  float64
		want string
	}{
		{100, "Overbought"},
		{70, "Overbought"},
		{69.99, "Strong"},
		{60, "Strong"},
		{59.99, "Neutral"},
		{40, "Neutral"},
		{39.99, "Weak"},
		{30, "Weak"},
		{29.99, "Oversold"},
		{0, "Oversold"},
		{-1, "Neutral"},
		{math.NaN(), "Neutral"},
	}
	for _, c := range cases {
		if got := ZoneFor(c.rsi).Name; got != c.want {
			t.Errorf("ZoneFor(%v): expected %s, got %s", c.rsi, c.want, got)
		}
	}
}

func TestHeatmap_Buckets(t *testing.T) {
	snaps := []model.AssetSnapshot{
		{AssetID: "a", RSI: 75},
		{AssetID: "b", RSI: 25},
		{AssetID: "c", RSI: 80},
		{AssetID: "d", RSI: 50},
	}
	got := Heatmap(snaps)
	if len(got) != len(Zones) {
		t.Fatalf("expected %d buckets, got %d", len(Zones), len(got))
	}
	if n := len(got[0].Assets); n != 2 || got[0].Assets[0].AssetID != "a" || got[0].Assets[1].AssetID != "c" {
		t.Errorf("overbought bucket: unexpected %+v", got[0].Assets)
	}
	if len(got[1].Assets) != 0 {
		t.Errorf("strong bucket should be empty, got %d", len(got[1].Assets))
	}
	if len(got[2].Assets) != 1 || len(got[4].Assets) != 1 {
		t.Errorf("neutral/oversold buckets: got %d/%d", len(got[2].Assets), len(got[4].Assets))
	}
}
