package indicator

import (
	"time"

	"market-sentinel/internal/model"
)

// BuildSnapshot reduces one fetch result to the latest indicator readings.
// An empty close series yields NeutralRSI and a zero MACD point.
func BuildSnapshot(asset model.Asset, tf model.Timeframe, in model.SeriesInput, ts time.Time) model.AssetSnapshot {
	snap := model.AssetSnapshot{
		AssetID:   asset.ID,
		Symbol:    asset.Symbol,
		Name:      asset.Name,
		Class:     asset.Class,
		Timeframe: tf,
		RSI:       LastRSI(in.ClosePrices, DefaultRSIPeriod),
		Price:     in.LatestClose,
		TS:        ts,
	}
	if n := len(in.ClosePrices); n > 0 {
		snap.MACD = DefaultMACD(in.ClosePrices)[n-1]
	}
	if in.LatestOpen != 0 {
		snap.ChangePercent = (in.LatestClose - in.LatestOpen) / in.LatestOpen * 100
	}
	return snap
}
