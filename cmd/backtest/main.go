// cmd/backtest runs an RSI take-profit/stop-loss backtest for one asset from
// the command line. History comes from Binance or Alpaca, optionally through
// the SQLite candle cache so repeated runs work offline.
//
// Usage:
//
//	go run ./cmd/backtest --asset=bitcoin --tf=4h --days=90 --threshold=30 --tp=10 --sl=5
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"market-sentinel/config"
	"market-sentinel/internal/backtest"
	"market-sentinel/internal/marketdata"
	"market-sentinel/internal/model"
	sqlitestore "market-sentinel/internal/store/sqlite"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	assetID := flag.String("asset", "bitcoin", "Asset id from the universe")
	tfStr := flag.String("tf", "4h", "Timeframe: 15m, 2h, 4h, 1d or 1w")
	days := flag.Int("days", 90, "Days of history to test")
	direction := flag.String("direction", "below", "Enter when RSI is below or above the threshold")
	threshold := flag.Float64("threshold", 30, "RSI entry threshold")
	tp := flag.Float64("tp", 10, "Take-profit percent")
	sl := flag.Float64("sl", 5, "Stop-loss percent")
	cachePath := flag.String("cache", "", "SQLite candle cache path (empty = no cache)")
	flag.Parse()

	cfg := config.Load()
	universe, err := config.LoadUniverse(cfg.UniverseFile)
	if err != nil {
		log.Fatalf("[backtest] universe: %v", err)
	}
	asset, ok := model.FindAsset(universe, *assetID)
	if !ok {
		log.Fatalf("[backtest] unknown asset %q", *assetID)
	}

	router := &marketdata.Router{Crypto: marketdata.NewBinance(cfg.BinanceAPIKey, cfg.BinanceSecretKey)}
	if cfg.StocksEnabled() {
		router.Stocks = marketdata.NewAlpaca(cfg.AlpacaAPIKey, cfg.AlpacaSecretKey)
	}
	var source backtest.HistorySource = router
	if *cachePath != "" {
		st, err := sqlitestore.New(sqlitestore.Config{DBPath: *cachePath})
		if err != nil {
			log.Fatalf("[backtest] sqlite open failed: %v", err)
		}
		defer st.Close()
		source = &marketdata.Cached{Cache: st, Source: router}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := backtest.Request{
		Asset:     asset,
		Timeframe: model.Timeframe(strings.ToLower(*tfStr)),
		Days:      *days,
		Params: backtest.Params{
			Entry:         backtest.Entry{Direction: backtest.Direction(strings.ToLower(*direction)), Threshold: *threshold},
			TakeProfitPct: *tp,
			StopLossPct:   *sl,
		},
	}
	log.Printf("[backtest] %s %s, %d days (%d candles), RSI %s %.1f, TP %.1f%% SL %.1f%%",
		asset.Symbol, req.Timeframe, req.Days, backtest.HistoryLimit(req.Timeframe, req.Days),
		req.Params.Entry.Direction, *threshold, *tp, *sl)

	res, err := backtest.NewRunner(source).Run(ctx, req)
	if err != nil {
		log.Fatalf("[backtest] %v", err)
	}

	for _, t := range res.Trades {
		fmt.Printf("  %s -> %s  %10.4f -> %10.4f  RSI %5.1f  %+7.2f%%  %s\n",
			t.EntryTime.Format("2006-01-02 15:04"), t.ExitTime.Format("2006-01-02 15:04"),
			t.EntryPrice, t.ExitPrice, t.RSIAtEntry, t.ProfitPercent, t.ExitReason)
	}

	// Print summary
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Candles tested:    %-16d ║\n", res.CandlesTested)
	fmt.Printf("║  Trades:            %-16d ║\n", res.TotalTrades)
	fmt.Printf("║  Wins / losses:     %-16s ║\n", fmt.Sprintf("%d / %d", res.Wins, res.Losses))
	fmt.Printf("║  Win rate:          %-16s ║\n", fmt.Sprintf("%.1f%%", res.WinRate))
	fmt.Printf("║  Total profit:      %-16s ║\n", fmt.Sprintf("%+.2f%%", res.TotalProfit))
	fmt.Printf("║  Avg win / loss:    %-16s ║\n", fmt.Sprintf("%+.2f / %+.2f", res.AvgWin, res.AvgLoss))
	fmt.Printf("║  Best / worst:      %-16s ║\n", fmt.Sprintf("%+.2f / %+.2f", res.MaxProfit, res.MaxLoss))
	fmt.Println("╚══════════════════════════════════════╝")
}
