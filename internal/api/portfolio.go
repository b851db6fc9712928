package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"market-sentinel/internal/portfolio"
)

type portfolioItemRequest struct {
	AssetSymbol string           `json:"assetSymbol" validate:"required,max=16"`
	Amount      decimal.Decimal  `json:"amount"`
	BuyPrice    decimal.Decimal  `json:"buyPrice"`
	BuyDate     string           `json:"buyDate" validate:"required,datetime=2006-01-02"`
	IsSold      bool             `json:"isSold"`
	SellPrice   *decimal.Decimal `json:"sellPrice"`
	SellDate    string           `json:"sellDate" validate:"omitempty,datetime=2006-01-02"`
}

func (r *portfolioItemRequest) check() []ErrorDetail {
	var out []ErrorDetail
	if !r.Amount.IsPositive() {
		out = append(out, ErrorDetail{Code: "ERR_GT", Field: "amount", Message: "amount must be greater than 0"})
	}
	if !r.BuyPrice.IsPositive() {
		out = append(out, ErrorDetail{Code: "ERR_GT", Field: "buyPrice", Message: "buyPrice must be greater than 0"})
	}
	return out
}

func (r *portfolioItemRequest) item() portfolio.Item {
	return portfolio.Item{
		AssetSymbol: r.AssetSymbol,
		Amount:      r.Amount,
		BuyPrice:    r.BuyPrice,
		BuyDate:     r.BuyDate,
		IsSold:      r.IsSold,
		SellPrice:   r.SellPrice,
		SellDate:    r.SellDate,
	}
}

type sellRequest struct {
	SellPrice decimal.Decimal `json:"sellPrice"`
	SellDate  string          `json:"sellDate" validate:"required,datetime=2006-01-02"`
}

func (h *Handler) readItem(c echo.Context) (*portfolioItemRequest, []ErrorDetail) {
	req := &portfolioItemRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return nil, verr
	}
	if verr := req.check(); verr != nil {
		return nil, verr
	}
	return req, nil
}

func (h *Handler) ListPortfolio(c echo.Context) error {
	return SuccessResponse(c, h.deps.Portfolio.Items())
}

func (h *Handler) PortfolioSummary(c echo.Context) error {
	return SuccessResponse(c, h.deps.Portfolio.Summary(h.deps.Monitor.Prices()))
}

func (h *Handler) AddPortfolioItem(c echo.Context) error {
	req, verr := h.readItem(c)
	if verr != nil {
		return BadRequestResponse(c, verr)
	}
	item, err := h.deps.Portfolio.Add(c.Request().Context(), req.item())
	if err != nil {
		return ErrorResponse(c, err)
	}
	return CreatedResponse(c, item)
}

func (h *Handler) UpdatePortfolioItem(c echo.Context) error {
	req, verr := h.readItem(c)
	if verr != nil {
		return BadRequestResponse(c, verr)
	}
	item, err := h.deps.Portfolio.Update(c.Request().Context(), c.Param("id"), req.item())
	if err != nil {
		return ErrorResponse(c, err)
	}
	return SuccessResponse(c, item)
}

func (h *Handler) SellPortfolioItem(c echo.Context) error {
	req := &sellRequest{}
	if verr := ReadAndValidateRequest(c, req); verr != nil {
		return BadRequestResponse(c, verr)
	}
	if !req.SellPrice.IsPositive() {
		return BadRequestResponse(c, []ErrorDetail{{Code: "ERR_GT", Field: "sellPrice", Message: "sellPrice must be greater than 0"}})
	}
	item, err := h.deps.Portfolio.Sell(c.Request().Context(), c.Param("id"), req.SellPrice, req.SellDate)
	if err != nil {
		return ErrorResponse(c, err)
	}
	return SuccessResponse(c, item)
}

func (h *Handler) DeletePortfolioItem(c echo.Context) error {
	if err := h.deps.Portfolio.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return ErrorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
