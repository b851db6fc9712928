package marketdata

import (
	"context"
	"fmt"
	"time"

	alpacamd "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"market-sentinel/internal/model"
)

// Alpaca serves US equity bars.
type Alpaca struct {
	client *alpacamd.Client
	now    func() time.Time
}

// NewAlpaca creates an Alpaca market-data source.
func NewAlpaca(apiKey, secretKey string) *Alpaca {
	return &Alpaca{
		client: alpacamd.NewClient(alpacamd.ClientOpts{
			APIKey:    apiKey,
			APISecret: secretKey,
		}),
		now: time.Now,
	}
}

// alpacaTimeFrame maps a timeframe to Alpaca's bar aggregation.
func alpacaTimeFrame(tf model.Timeframe) (alpacamd.TimeFrame, error) {
	switch tf {
	case model.TF15m:
		return alpacamd.NewTimeFrame(15, alpacamd.Min), nil
	case model.TF2h:
		return alpacamd.NewTimeFrame(2, alpacamd.Hour), nil
	case model.TF4h:
		return alpacamd.NewTimeFrame(4, alpacamd.Hour), nil
	case model.TF1d:
		return alpacamd.OneDay, nil
	case model.TF1w:
		return alpacamd.NewTimeFrame(1, alpacamd.Week), nil
	}
	return alpacamd.TimeFrame{}, fmt.Errorf("alpaca: unsupported timeframe %q", tf)
}

// lookback returns how far back limit bars reach. Equities trade roughly
// 6.5h on 5 of 7 days, so intraday windows are stretched accordingly.
func lookback(tf model.Timeframe, limit int) time.Duration {
	span := time.Duration(limit) * tf.Duration()
	if tf.Duration() < 24*time.Hour {
		span = span * 24 / 6
	}
	return span*7/5 + 72*time.Hour
}

// FetchCandles implements HistorySource.
func (a *Alpaca) FetchCandles(ctx context.Context, asset model.Asset, tf model.Timeframe, limit int) ([]model.Candle, error) {
	timeframe, err := alpacaTimeFrame(tf)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	end := a.now()
	bars, err := a.client.GetBars(asset.Ticker, alpacamd.GetBarsRequest{
		TimeFrame: timeframe,
		Start:     end.Add(-lookback(tf, limit)),
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars %s %s: %w", asset.Ticker, tf, err)
	}

	out := make([]model.Candle, len(bars))
	for i, bar := range bars {
		out[i] = model.Candle{
			Symbol: asset.Ticker,
			TS:     bar.Timestamp.UTC(),
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: float64(bar.Volume),
		}
	}
	return lastN(out, limit), nil
}
