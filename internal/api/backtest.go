package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"market-sentinel/internal/backtest"
	"market-sentinel/internal/model"
)

// backtestEntry takes Threshold by pointer so an explicit 0 is kept and
// only an absent value falls back to the default.
type backtestEntry struct {
	Direction backtest.Direction `json:"direction" default:"below" validate:"oneof=below above"`
	Threshold *float64           `json:"threshold" default:"30" validate:"required,gte=0,lte=100"`
}

type backtestParams struct {
	Entry         backtestEntry `json:"entry"`
	TakeProfitPct float64       `json:"takeProfitPct" default:"10" validate:"gt=0"`
	StopLossPct   float64       `json:"stopLossPct" default:"5" validate:"gt=0"`
	RSIPeriod     int           `json:"rsiPeriod" validate:"gte=0"`
}

func (p backtestParams) params() backtest.Params {
	return backtest.Params{
		Entry:         backtest.Entry{Direction: p.Entry.Direction, Threshold: *p.Entry.Threshold},
		TakeProfitPct: p.TakeProfitPct,
		StopLossPct:   p.StopLossPct,
		RSIPeriod:     p.RSIPeriod,
	}
}

type backtestRequest struct {
	AssetID   string          `json:"assetId" validate:"required"`
	Timeframe model.Timeframe `json:"timeframe" default:"4h" validate:"oneof=15m 2h 4h 1d 1w"`
	Days      int             `json:"days" default:"90" validate:"gte=1,lte=365"`
	Params    backtestParams  `json:"params"`
}

type backtestResponse struct {
	Asset     model.Asset     `json:"asset"`
	Timeframe model.Timeframe `json:"timeframe"`
	Days      int             `json:"days"`
	Params    backtest.Params `json:"params"`
	backtest.Result
}

func (h *Handler) RunBacktest(c echo.Context) error {
	req := &backtestRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}
	asset, ok := model.FindAsset(h.deps.Monitor.Universe(), req.AssetID)
	if !ok {
		return NotFoundResponse(c, []ErrorDetail{{Code: "ERR_NOT_FOUND", Field: "assetId", Message: "unknown asset " + req.AssetID}})
	}

	params := req.Params.params()
	start := h.now()
	res, err := h.deps.Backtests.Run(c.Request().Context(), backtest.Request{
		Asset:     asset,
		Timeframe: req.Timeframe,
		Days:      req.Days,
		Params:    params,
	})
	h.recordBacktest(start, err)
	if err != nil {
		return ErrorResponse(c, err)
	}
	return SuccessResponse(c, backtestResponse{
		Asset:     asset,
		Timeframe: req.Timeframe,
		Days:      req.Days,
		Params:    params,
		Result:    res,
	})
}

func (h *Handler) recordBacktest(start time.Time, err error) {
	m := h.deps.Metrics
	if m == nil {
		return
	}
	m.BacktestDuration.Observe(h.now().Sub(start).Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.BacktestsTotal.WithLabelValues(result).Inc()
}
