package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"market-sentinel/internal/alarm"
	"market-sentinel/internal/rule"
)

func (h *Handler) ListRules(c echo.Context) error {
	return SuccessResponse(c, h.deps.Book.Rules())
}

// bindRule reads a rule document in either the legacy single-condition or
// the conditions-list shape.
func bindRule(c echo.Context) (rule.Rule, []ErrorDetail) {
	var doc rule.Document
	if err := c.Bind(&doc); err != nil {
		return rule.Rule{}, validationDetails(err)
	}
	r, err := rule.Normalize(doc)
	if err != nil {
		return rule.Rule{}, []ErrorDetail{{Code: "ERR_INVALID", Message: err.Error()}}
	}
	// Trigger state is owned by the evaluator, never by the client.
	r.Triggered = false
	r.TriggeredAt = nil
	r.TriggeredValue = nil
	return r, nil
}

func (h *Handler) CreateRule(c echo.Context) error {
	r, verr := bindRule(c)
	if verr != nil {
		return BadRequestResponse(c, verr)
	}
	saved, err := h.deps.Book.Add(c.Request().Context(), r)
	if err != nil {
		return ErrorResponse(c, err)
	}
	h.recordRules()
	return CreatedResponse(c, saved)
}

func (h *Handler) UpdateRule(c echo.Context) error {
	r, verr := bindRule(c)
	if verr != nil {
		return BadRequestResponse(c, verr)
	}
	r.ID = c.Param("id")
	saved, err := h.deps.Book.Update(c.Request().Context(), r)
	if err != nil {
		return ErrorResponse(c, err)
	}
	h.recordRules()
	return SuccessResponse(c, saved)
}

func (h *Handler) DeleteRule(c echo.Context) error {
	if err := h.deps.Book.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return ErrorResponse(c, err)
	}
	h.recordRules()
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ToggleRule(c echo.Context) error {
	r, err := h.deps.Book.Toggle(c.Request().Context(), c.Param("id"))
	if err != nil {
		return ErrorResponse(c, err)
	}
	h.recordRules()
	return SuccessResponse(c, r)
}

func (h *Handler) ResetRule(c echo.Context) error {
	r, err := h.deps.Book.Reset(c.Request().Context(), c.Param("id"))
	if err != nil {
		return ErrorResponse(c, err)
	}
	h.recordRules()
	return SuccessResponse(c, r)
}

func (h *Handler) ListSignals(c echo.Context) error {
	return SuccessResponse(c, h.deps.Book.Signals())
}

func (h *Handler) ClearSignals(c echo.Context) error {
	if err := h.deps.Book.ClearSignals(c.Request().Context()); err != nil {
		return ErrorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteSignal(c echo.Context) error {
	if err := h.deps.Book.DeleteSignal(c.Request().Context(), c.Param("id")); err != nil {
		return ErrorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type permissionRequest struct {
	Granted *bool `json:"granted" validate:"required"`
}

func (h *Handler) SetNotificationPermission(c echo.Context) error {
	if h.deps.Gate == nil {
		return DataResponse(c, http.StatusNotImplemented, "notifications are not configured")
	}
	req := &permissionRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}
	h.deps.Gate.SetAllowed(*req.Granted)
	return SuccessResponse(c, map[string]bool{"granted": h.deps.Gate.Allowed()})
}

func (h *Handler) recordRules() {
	if h.deps.Metrics == nil {
		return
	}
	armed := 0
	for _, r := range h.deps.Book.Rules() {
		if alarm.StateOf(r) == alarm.StateArmed {
			armed++
		}
	}
	h.deps.Metrics.RulesActive.Set(float64(armed))
}
