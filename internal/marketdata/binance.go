package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"market-sentinel/internal/model"
)

// Binance serves spot klines for crypto and commodity-token pairs.
type Binance struct {
	client *binance.Client
}

// NewBinance creates a Binance source. Public klines need no credentials,
// so both keys may be empty.
func NewBinance(apiKey, secretKey string) *Binance {
	return &Binance{client: binance.NewClient(apiKey, secretKey)}
}

// FetchCandles implements HistorySource. Binance interval names match
// model.Timeframe labels one to one.
func (b *Binance) FetchCandles(ctx context.Context, asset model.Asset, tf model.Timeframe, limit int) ([]model.Candle, error) {
	klines, err := b.client.NewKlinesService().
		Symbol(asset.Ticker).
		Interval(string(tf)).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", asset.Ticker, tf, err)
	}
	return candlesFromKlines(asset.Ticker, klines)
}

func candlesFromKlines(symbol string, klines []*binance.Kline) ([]model.Candle, error) {
	out := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		c := model.Candle{Symbol: symbol, TS: time.UnixMilli(k.OpenTime).UTC()}
		fields := []struct {
			raw string
			dst *float64
		}{
			{k.Open, &c.Open}, {k.High, &c.High}, {k.Low, &c.Low}, {k.Close, &c.Close}, {k.Volume, &c.Volume},
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f.raw, 64)
			if err != nil {
				return nil, fmt.Errorf("binance kline %s at %d: %w", symbol, k.OpenTime, err)
			}
			*f.dst = v
		}
		out = append(out, c)
	}
	return out, nil
}
