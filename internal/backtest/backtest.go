// Package backtest replays a candle series through an RSI entry with
// take-profit / stop-loss exits and reports the resulting trades.
package backtest

import (
	"errors"
	"fmt"
	"time"

	"market-sentinel/internal/indicator"
	"market-sentinel/internal/model"
)

// MaxDisplayedTrades is how many trades a Result keeps for display.
const MaxDisplayedTrades = 20

// ErrInvalidParams is returned by Params.Validate.
var ErrInvalidParams = errors.New("invalid backtest params")

// Direction selects whether the entry fires below or above the threshold.
type Direction string

const (
	Below Direction = "below"
	Above Direction = "above"
)

// Outcome of a closed trade.
type Outcome string

const (
	Win  Outcome = "win"
	Loss Outcome = "loss"
)

// ExitReason names the exit that closed a trade.
type ExitReason string

const (
	TakeProfit ExitReason = "take-profit"
	StopLoss   ExitReason = "stop-loss"
)

// Entry is the single RSI condition that opens a position.
type Entry struct {
	Direction Direction `json:"direction"`
	Threshold float64   `json:"threshold"`
}

// Params configures one run. RSIPeriod 0 means indicator.DefaultRSIPeriod.
type Params struct {
	Entry         Entry   `json:"entry"`
	TakeProfitPct float64 `json:"takeProfitPct"`
	StopLossPct   float64 `json:"stopLossPct"`
	RSIPeriod     int     `json:"rsiPeriod,omitempty"`
}

// Validate checks the parameters a run needs.
func (p Params) Validate() error {
	if p.Entry.Direction != Below && p.Entry.Direction != Above {
		return fmt.Errorf("%w: direction must be below or above, got %q", ErrInvalidParams, p.Entry.Direction)
	}
	if p.Entry.Threshold < 0 || p.Entry.Threshold > 100 {
		return fmt.Errorf("%w: threshold %g outside [0,100]", ErrInvalidParams, p.Entry.Threshold)
	}
	if p.TakeProfitPct <= 0 || p.StopLossPct <= 0 {
		return fmt.Errorf("%w: take-profit and stop-loss must be positive", ErrInvalidParams)
	}
	if p.RSIPeriod < 0 {
		return fmt.Errorf("%w: negative RSI period", ErrInvalidParams)
	}
	return nil
}

func (p Params) period() int {
	if p.RSIPeriod > 0 {
		return p.RSIPeriod
	}
	return indicator.DefaultRSIPeriod
}

func (p Params) enters(rsi float64) bool {
	if p.Entry.Direction == Above {
		return rsi > p.Entry.Threshold
	}
	return rsi < p.Entry.Threshold
}

// Trade is one closed position.
type Trade struct {
	EntryTime     time.Time  `json:"entryTime"`
	ExitTime      time.Time  `json:"exitTime"`
	EntryPrice    float64    `json:"entryPrice"`
	ExitPrice     float64    `json:"exitPrice"`
	RSIAtEntry    float64    `json:"rsiAtEntry"`
	ProfitPercent float64    `json:"profitPercent"`
	Outcome       Outcome    `json:"outcome"`
	ExitReason    ExitReason `json:"exitReason"`
}

// Result holds statistics over every closed trade and the newest
// MaxDisplayedTrades trades, most recent first.
type Result struct {
	Trades        []Trade `json:"trades"`
	TotalTrades   int     `json:"totalTrades"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	WinRate       float64 `json:"winRate"`
	TotalProfit   float64 `json:"totalProfit"`
	AvgWin        float64 `json:"avgWin"`
	AvgLoss       float64 `json:"avgLoss"`
	MaxProfit     float64 `json:"maxProfit"`
	MaxLoss       float64 `json:"maxLoss"`
	CandlesTested int     `json:"candlesTested"`
}

// Run walks candles oldest first. The first RSI period candles are skipped as
// warm-up. While flat it enters on the RSI condition; while in a trade it
// exits on take-profit, then stop-loss, checked in that order on each close.
// The exit candle never opens a new trade, and a position still open at the
// end is dropped.
func Run(candles []model.Candle, p Params) Result {
	period := p.period()
	rsi := indicator.RSI(model.Closes(candles), period)

	var (
		trades  []Trade
		inTrade bool
		open    Trade
	)
	for i := period; i < len(candles); i++ {
		c := candles[i]
		if !inTrade {
			if p.enters(rsi[i]) {
				inTrade = true
				open = Trade{EntryTime: c.TS, EntryPrice: c.Close, RSIAtEntry: rsi[i]}
			}
			continue
		}

		change := (c.Close - open.EntryPrice) / open.EntryPrice * 100
		switch {
		case change >= p.TakeProfitPct:
			open.Outcome, open.ExitReason = Win, TakeProfit
		case change <= -p.StopLossPct:
			open.Outcome, open.ExitReason = Loss, StopLoss
		default:
			continue
		}
		open.ExitTime = c.TS
		open.ExitPrice = c.Close
		open.ProfitPercent = change
		trades = append(trades, open)
		inTrade = false
	}

	res := Summarize(trades)
	if n := len(candles) - period; n > 0 {
		res.CandlesTested = n
	}
	return res
}

// Summarize computes statistics over trades, which are ordered oldest first.
// Every figure is zero for an empty set.
func Summarize(trades []Trade) Result {
	res := Result{TotalTrades: len(trades), Trades: []Trade{}}
	if len(trades) == 0 {
		return res
	}

	var winSum, lossSum float64
	res.MaxProfit = trades[0].ProfitPercent
	res.MaxLoss = trades[0].ProfitPercent
	for _, t := range trades {
		res.TotalProfit += t.ProfitPercent
		if t.Outcome == Win {
			res.Wins++
			winSum += t.ProfitPercent
		} else {
			res.Losses++
			lossSum += t.ProfitPercent
		}
		if t.ProfitPercent > res.MaxProfit {
			res.MaxProfit = t.ProfitPercent
		}
		if t.ProfitPercent < res.MaxLoss {
			res.MaxLoss = t.ProfitPercent
		}
	}
	res.WinRate = float64(res.Wins) / float64(len(trades)) * 100
	if res.Wins > 0 {
		res.AvgWin = winSum / float64(res.Wins)
	}
	if res.Losses > 0 {
		res.AvgLoss = lossSum / float64(res.Losses)
	}

	// newest first, capped
	for i := len(trades) - 1; i >= 0 && len(res.Trades) < MaxDisplayedTrades; i-- {
		res.Trades = append(res.Trades, trades[i])
	}
	return res
}
