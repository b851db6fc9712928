package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"market-sentinel/internal/indicator"
	"market-sentinel/internal/model"
)

func (h *Handler) Health(c echo.Context) error {
	if h.deps.Health == nil {
		return SuccessResponse(c, map[string]string{"status": "healthy"})
	}
	r := h.deps.Health.Report(h.deps.StaleAfter)
	if !r.Healthy() {
		return DataResponse(c, http.StatusServiceUnavailable, r)
	}
	return SuccessResponse(c, r)
}

type assetsResponse struct {
	At        *time.Time            `json:"at"`
	Timeframe model.Timeframe       `json:"timeframe"`
	Assets    []model.AssetSnapshot `json:"assets"`
}

// timeframeParam reads ?timeframe=, defaulting to 4h when the monitor
// covers it and to the first monitored timeframe otherwise.
func (h *Handler) timeframeParam(c echo.Context) (model.Timeframe, bool) {
	if v := c.QueryParam("timeframe"); v != "" {
		tf := model.Timeframe(v)
		return tf, tf.Valid()
	}
	tfs := h.deps.Monitor.Timeframes()
	for _, tf := range tfs {
		if tf == model.TF4h {
			return tf, true
		}
	}
	if len(tfs) > 0 {
		return tfs[0], true
	}
	return model.TF4h, true
}

func (h *Handler) snapshots(c echo.Context) (assetsResponse, []ErrorDetail) {
	tf, ok := h.timeframeParam(c)
	if !ok {
		return assetsResponse{}, []ErrorDetail{{Code: "ERR_ONEOF", Field: "timeframe", Message: "unsupported timeframe"}}
	}
	resp := assetsResponse{Timeframe: tf, Assets: []model.AssetSnapshot{}}
	cycle := h.deps.Monitor.Latest()
	if cycle == nil {
		return resp, nil
	}
	at := cycle.At
	resp.At = &at
	if list := cycle.List(tf, h.deps.Monitor.Universe()); list != nil {
		resp.Assets = list
	}
	if class := strings.ToUpper(c.QueryParam("class")); class != "" {
		filtered := resp.Assets[:0:0]
		for _, s := range resp.Assets {
			if string(s.Class) == class {
				filtered = append(filtered, s)
			}
		}
		resp.Assets = filtered
	}
	return resp, nil
}

func (h *Handler) Assets(c echo.Context) error {
	resp, verr := h.snapshots(c)
	if verr != nil {
		return BadRequestResponse(c, verr)
	}
	return SuccessResponse(c, resp)
}

func (h *Handler) Heatmap(c echo.Context) error {
	resp, verr := h.snapshots(c)
	if verr != nil {
		return BadRequestResponse(c, verr)
	}
	return SuccessResponse(c, map[string]any{
		"at":        resp.At,
		"timeframe": resp.Timeframe,
		"zones":     indicator.Heatmap(resp.Assets),
	})
}

func (h *Handler) Refresh(c echo.Context) error {
	queued := h.deps.Monitor.Trigger()
	return DataResponse(c, http.StatusAccepted, map[string]bool{"queued": queued})
}
