package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pquerna/otp/totp"

	"market-sentinel/internal/alarm"
	"market-sentinel/internal/backtest"
	"market-sentinel/internal/model"
	"market-sentinel/internal/notification"
	"market-sentinel/internal/portfolio"
	"market-sentinel/internal/rule"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var testUniverse = []model.Asset{
	{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin", Class: model.ClassCrypto, Ticker: "BTCUSDT"},
	{ID: "aapl", Symbol: "AAPL", Name: "Apple", Class: model.ClassStock, Ticker: "AAPL"},
}

type fakeMonitor struct {
	cycle    *model.Cycle
	triggers int
}

func (m *fakeMonitor) Latest() *model.Cycle { return m.cycle }

func (m *fakeMonitor) Universe() []model.Asset { return testUniverse }

func (m *fakeMonitor) Timeframes() []model.Timeframe {
	return []model.Timeframe{model.TF1d, model.TF4h}
}

func (m *fakeMonitor) Prices() map[string]float64 { return map[string]float64{"BTC": 60000} }

func (m *fakeMonitor) Trigger() bool {
	m.triggers++
	return m.triggers == 1
}

type candleSource struct{ closes []float64 }

func (s candleSource) FetchCandles(context.Context, model.Asset, model.Timeframe, int) ([]model.Candle, error) {
	out := make([]model.Candle, len(s.closes))
	for i, c := range s.closes {
		out[i] = model.Candle{TS: t0.Add(time.Duration(i) * 4 * time.Hour), Open: c, High: c, Low: c, Close: c}
	}
	return out, nil
}

type testEnv struct {
	e       *echo.Echo
	monitor *fakeMonitor
	book    *alarm.Book
	gate    *notification.Gate
}

func newTestEnv(t *testing.T, totpSecret string) testEnv {
	t.Helper()
	ctx := context.Background()
	machine := &alarm.Machine{Now: func() time.Time { return t0 }, NewID: func() string { return "sig" }}
	book, err := alarm.NewBook(ctx, alarm.NewMemoryRepository(), machine, 50)
	if err != nil {
		t.Fatal(err)
	}
	tracker, err := portfolio.NewTracker(ctx, &portfolio.MemoryRepository{})
	if err != nil {
		t.Fatal(err)
	}

	// 15 warm-up closes alternating 100/101, an entry at 90, exit at 100.8.
	closes := make([]float64, 0, 17)
	for i := 0; i < 15; i++ {
		closes = append(closes, 100+float64(i%2))
	}
	closes = append(closes, 90, 100.8)

	cycle := model.NewCycle(t0)
	cycle.Put(model.AssetSnapshot{AssetID: "bitcoin", Symbol: "BTC", Class: model.ClassCrypto, Timeframe: model.TF4h, RSI: 75})
	cycle.Put(model.AssetSnapshot{AssetID: "aapl", Symbol: "AAPL", Class: model.ClassStock, Timeframe: model.TF4h, RSI: 25})

	env := testEnv{
		monitor: &fakeMonitor{cycle: &cycle},
		book:    book,
		gate:    notification.NewGate(nil, false),
	}
	env.e = NewEcho(Deps{
		Monitor:    env.monitor,
		Book:       book,
		Backtests:  backtest.NewRunner(candleSource{closes: closes}),
		Portfolio:  tracker,
		Gate:       env.gate,
		TOTPSecret: totpSecret,
	})
	return env
}

func (env testEnv) do(method, path, body string, header ...string) (*httptest.ResponseRecorder, Response) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	var resp Response
	if rec.Body.Len() > 0 {
		json.Unmarshal(rec.Body.Bytes(), &resp)
	}
	return rec, resp
}

func decodeData(t *testing.T, resp Response, v any) {
	t.Helper()
	b, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
}

// ── Market views ─────────────────────────────────────────────────────────────

func TestHealth_WithoutStatus(t *testing.T) {
	env := newTestEnv(t, "")
	rec, _ := env.do(http.MethodGet, "/api/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status %d", rec.Code)
	}
}

func TestAssets_DefaultsTo4hAndFiltersClass(t *testing.T) {
	env := newTestEnv(t, "")

	rec, resp := env.do(http.MethodGet, "/api/v1/assets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var got assetsResponse
	decodeData(t, resp, &got)
	if got.Timeframe != model.TF4h || len(got.Assets) != 2 || got.Assets[0].AssetID != "bitcoin" {
		t.Errorf("unexpected %+v", got)
	}

	_, resp = env.do(http.MethodGet, "/api/v1/assets?class=stock", "")
	decodeData(t, resp, &got)
	if len(got.Assets) != 1 || got.Assets[0].AssetID != "aapl" {
		t.Errorf("class filter: %+v", got.Assets)
	}

	rec, _ = env.do(http.MethodGet, "/api/v1/assets?timeframe=3m", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad timeframe, got %d", rec.Code)
	}
}

func TestAssets_BeforeFirstCycle(t *testing.T) {
	env := newTestEnv(t, "")
	env.monitor.cycle = nil
	_, resp := env.do(http.MethodGet, "/api/v1/assets", "")
	var got assetsResponse
	decodeData(t, resp, &got)
	if got.At != nil || got.Assets == nil || len(got.Assets) != 0 {
		t.Errorf("expected empty list, got %+v", got)
	}
}

func TestHeatmap(t *testing.T) {
	env := newTestEnv(t, "")
	_, resp := env.do(http.MethodGet, "/api/v1/heatmap?timeframe=4h", "")
	var got struct {
		Zones []struct {
			Zone struct {
				Name string `json:"name"`
			} `json:"zone"`
			Assets []model.AssetSnapshot `json:"assets"`
		} `json:"zones"`
	}
	decodeData(t, resp, &got)
	if len(got.Zones) != 5 {
		t.Fatalf("expected 5 zones, got %d", len(got.Zones))
	}
	if len(got.Zones[0].Assets) != 1 || got.Zones[0].Assets[0].AssetID != "bitcoin" {
		t.Errorf("overbought bucket: %+v", got.Zones[0])
	}
	if len(got.Zones[4].Assets) != 1 || got.Zones[4].Assets[0].AssetID != "aapl" {
		t.Errorf("oversold bucket: %+v", got.Zones[4])
	}
}

func TestRefresh_Coalesced(t *testing.T) {
	env := newTestEnv(t, "")
	rec, resp := env.do(http.MethodPost, "/api/v1/refresh", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d", rec.Code)
	}
	var got map[string]bool
	decodeData(t, resp, &got)
	if !got["queued"] {
		t.Error("first refresh should queue")
	}
	_, resp = env.do(http.MethodPost, "/api/v1/refresh", "")
	decodeData(t, resp, &got)
	if got["queued"] {
		t.Error("second refresh should coalesce")
	}
}

// ── Rules and signals ────────────────────────────────────────────────────────

func TestRules_Lifecycle(t *testing.T) {
	env := newTestEnv(t, "")

	rec, resp := env.do(http.MethodPost, "/api/v1/rules",
		`{"assetId":"bitcoin","timeframe":"1d","conditions":[{"indicator":"RSI","operator":"GREATER_THAN","threshold":80},{"indicator":"MACD","operator":"CROSS_BELOW"}],"logic":"OR","triggered":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	var created rule.Rule
	decodeData(t, resp, &created)
	if created.ID == "" || created.Triggered || !created.Active || len(created.Conditions) != 2 {
		t.Fatalf("unexpected rule %+v", created)
	}

	// Default rule plus the new one.
	_, resp = env.do(http.MethodGet, "/api/v1/rules", "")
	var rules []rule.Rule
	decodeData(t, resp, &rules)
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}

	rec, resp = env.do(http.MethodPost, "/api/v1/rules/"+created.ID+"/toggle", "")
	var toggled rule.Rule
	decodeData(t, resp, &toggled)
	if rec.Code != http.StatusOK || toggled.Active {
		t.Errorf("toggle: %d %+v", rec.Code, toggled)
	}

	rec, _ = env.do(http.MethodPut, "/api/v1/rules/"+created.ID,
		`{"assetId":"ALL_STOCKS","timeframe":"4h","indicator":"RSI","operator":"LESS_THAN","threshold":25}`)
	if rec.Code != http.StatusOK {
		t.Errorf("update legacy shape: %d %s", rec.Code, rec.Body)
	}

	rec, _ = env.do(http.MethodDelete, "/api/v1/rules/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: %d", rec.Code)
	}
	rec, _ = env.do(http.MethodPost, "/api/v1/rules/"+created.ID+"/reset", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("reset deleted rule: expected 404, got %d", rec.Code)
	}
}

func TestRules_InvalidRejected(t *testing.T) {
	env := newTestEnv(t, "")
	cases := map[string]string{
		"no conditions":   `{"assetId":"bitcoin","timeframe":"4h"}`,
		"cross on rsi":    `{"assetId":"bitcoin","timeframe":"4h","conditions":[{"indicator":"RSI","operator":"CROSS_ABOVE"}]}`,
		"bad timeframe":   `{"assetId":"bitcoin","timeframe":"3m","indicator":"RSI","operator":"LESS_THAN","threshold":30}`,
		"too many":        `{"assetId":"bitcoin","timeframe":"4h","conditions":[{"indicator":"RSI","operator":"LESS_THAN"},{"indicator":"RSI","operator":"LESS_THAN"},{"indicator":"RSI","operator":"LESS_THAN"},{"indicator":"RSI","operator":"LESS_THAN"}]}`,
		"malformed json":  `{"assetId":`,
		"threshold > 100": `{"assetId":"bitcoin","timeframe":"4h","indicator":"RSI","operator":"GREATER_THAN","threshold":120}`,
	}
	for name, body := range cases {
		rec, _ := env.do(http.MethodPost, "/api/v1/rules", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d %s", name, rec.Code, rec.Body)
		}
	}
}

func TestSignals_DeleteAndClear(t *testing.T) {
	env := newTestEnv(t, "")

	// Fire the default rule (ALL_CRYPTO 4h RSI < 30).
	cycle := model.NewCycle(t0)
	cycle.Put(model.AssetSnapshot{AssetID: "bitcoin", Symbol: "BTC", Timeframe: model.TF4h, RSI: 20})
	if _, err := env.book.Apply(context.Background(), testUniverse, &cycle, nil); err != nil {
		t.Fatal(err)
	}

	_, resp := env.do(http.MethodGet, "/api/v1/signals", "")
	var signals []alarm.Signal
	decodeData(t, resp, &signals)
	if len(signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(signals))
	}

	rec, _ := env.do(http.MethodDelete, "/api/v1/signals/"+signals[0].ID, "")
	if rec.Code != http.StatusNoContent || len(env.book.Signals()) != 0 {
		t.Errorf("delete signal: %d, remaining %d", rec.Code, len(env.book.Signals()))
	}
	rec, _ = env.do(http.MethodDelete, "/api/v1/signals", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("clear: %d", rec.Code)
	}
}

func TestNotificationPermission(t *testing.T) {
	env := newTestEnv(t, "")
	rec, _ := env.do(http.MethodPut, "/api/v1/notifications/permission", `{"granted":true}`)
	if rec.Code != http.StatusOK || !env.gate.Allowed() {
		t.Errorf("grant: %d allowed=%v", rec.Code, env.gate.Allowed())
	}
	rec, _ = env.do(http.MethodPut, "/api/v1/notifications/permission", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing granted: expected 400, got %d", rec.Code)
	}
}

// ── Backtest ─────────────────────────────────────────────────────────────────

func TestBacktest_RunsWithDefaults(t *testing.T) {
	env := newTestEnv(t, "")
	rec, resp := env.do(http.MethodPost, "/api/v1/backtest",
		`{"assetId":"bitcoin","params":{"takeProfitPct":10,"stopLossPct":10}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var got backtestResponse
	decodeData(t, resp, &got)
	if got.Timeframe != model.TF4h || got.Days != 90 {
		t.Errorf("defaults not applied: tf=%s days=%d", got.Timeframe, got.Days)
	}
	if got.Params.Entry.Direction != backtest.Below || got.Params.Entry.Threshold != 30 {
		t.Errorf("entry defaults not applied: %+v", got.Params.Entry)
	}
	if got.TotalTrades != 1 || got.Wins != 1 {
		t.Errorf("expected one winning trade, got %+v", got.Result)
	}
}

func TestBacktest_ExplicitZeroThresholdKept(t *testing.T) {
	env := newTestEnv(t, "")
	// RSI never drops below 0, so no trade opens. A default of 30 would
	// open one at 90 and close it in profit.
	rec, resp := env.do(http.MethodPost, "/api/v1/backtest",
		`{"assetId":"bitcoin","params":{"entry":{"direction":"below","threshold":0},"takeProfitPct":10,"stopLossPct":10}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body)
	}
	var got backtestResponse
	decodeData(t, resp, &got)
	if got.Params.Entry.Threshold != 0 {
		t.Errorf("expected threshold 0 to be kept, got %v", got.Params.Entry.Threshold)
	}
	if got.TotalTrades != 0 {
		t.Errorf("expected no trades at threshold 0, got %d", got.TotalTrades)
	}
}

func TestBacktest_Validation(t *testing.T) {
	env := newTestEnv(t, "")
	cases := map[string]struct {
		body string
		code int
	}{
		"missing asset":  {`{}`, http.StatusBadRequest},
		"bad direction":  {`{"assetId":"bitcoin","params":{"entry":{"direction":"sideways"}}}`, http.StatusBadRequest},
		"too many days":  {`{"assetId":"bitcoin","days":400}`, http.StatusBadRequest},
		"unknown asset":  {`{"assetId":"dogecoin"}`, http.StatusNotFound},
		"negative tp":    {`{"assetId":"bitcoin","params":{"takeProfitPct":-1}}`, http.StatusBadRequest},
		"bad timeframe":  {`{"assetId":"bitcoin","timeframe":"3m"}`, http.StatusBadRequest},
		"threshold >100": {`{"assetId":"bitcoin","params":{"entry":{"threshold":101}}}`, http.StatusBadRequest},
	}
	for name, tc := range cases {
		rec, _ := env.do(http.MethodPost, "/api/v1/backtest", tc.body)
		if rec.Code != tc.code {
			t.Errorf("%s: expected %d, got %d %s", name, tc.code, rec.Code, rec.Body)
		}
	}
}

// ── Portfolio ────────────────────────────────────────────────────────────────

func TestPortfolio_AddSellSummary(t *testing.T) {
	env := newTestEnv(t, "")

	rec, resp := env.do(http.MethodPost, "/api/v1/portfolio",
		`{"assetSymbol":"btc","amount":"0.5","buyPrice":"40000","buyDate":"2024-01-10"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: %d %s", rec.Code, rec.Body)
	}
	var item portfolio.Item
	decodeData(t, resp, &item)
	if item.AssetSymbol != "BTC" {
		t.Errorf("symbol not upper-cased: %q", item.AssetSymbol)
	}

	_, resp = env.do(http.MethodGet, "/api/v1/portfolio/summary", "")
	var sum portfolio.Summary
	decodeData(t, resp, &sum)
	// 0.5 * 40000 invested, valued at 0.5 * 60000.
	if sum.Invested.String() != "20000" || sum.CurrentValue.String() != "30000" {
		t.Errorf("summary %+v", sum)
	}

	rec, _ = env.do(http.MethodPost, "/api/v1/portfolio/"+item.ID+"/sell", `{"sellPrice":"50000","sellDate":"2024-02-01"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("sell: %d %s", rec.Code, rec.Body)
	}
	_, resp = env.do(http.MethodGet, "/api/v1/portfolio/summary", "")
	decodeData(t, resp, &sum)
	if sum.RealizedPnL.String() != "5000" || sum.Sold != 1 {
		t.Errorf("after sell %+v", sum)
	}
}

func TestPortfolio_Validation(t *testing.T) {
	env := newTestEnv(t, "")
	cases := map[string]string{
		"zero amount":  `{"assetSymbol":"BTC","amount":"0","buyPrice":"1","buyDate":"2024-01-01"}`,
		"bad date":     `{"assetSymbol":"BTC","amount":"1","buyPrice":"1","buyDate":"01/02/2024"}`,
		"no symbol":    `{"amount":"1","buyPrice":"1","buyDate":"2024-01-01"}`,
		"negative buy": `{"assetSymbol":"BTC","amount":"1","buyPrice":"-3","buyDate":"2024-01-01"}`,
	}
	for name, body := range cases {
		rec, _ := env.do(http.MethodPost, "/api/v1/portfolio", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", name, rec.Code)
		}
	}
	rec, _ := env.do(http.MethodDelete, "/api/v1/portfolio/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete missing: expected 404, got %d", rec.Code)
	}
}

// ── Admin second factor ──────────────────────────────────────────────────────

func TestTOTP_RequiredOnMutations(t *testing.T) {
	const secret = "JBSWY3DPEHPK3PXP"
	env := newTestEnv(t, secret)

	rec, _ := env.do(http.MethodGet, "/api/v1/rules", "")
	if rec.Code != http.StatusOK {
		t.Errorf("reads must stay open, got %d", rec.Code)
	}

	body := `{"assetId":"bitcoin","timeframe":"4h","indicator":"RSI","operator":"LESS_THAN","threshold":30}`
	rec, _ = env.do(http.MethodPost, "/api/v1/rules", body)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing code: expected 401, got %d", rec.Code)
	}
	rec, _ = env.do(http.MethodPost, "/api/v1/rules", body, HeaderTOTP, "000000")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong code: expected 401, got %d", rec.Code)
	}

	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	rec, _ = env.do(http.MethodPost, "/api/v1/rules", body, HeaderTOTP, code)
	if rec.Code != http.StatusCreated {
		t.Errorf("valid code: expected 201, got %d %s", rec.Code, rec.Body)
	}
}
