package portfolio

import "github.com/shopspring/decimal"

// Allocation is one symbol's share of the current open value.
type Allocation struct {
	Symbol     string          `json:"symbol"`
	Value      decimal.Decimal `json:"value"`
	Percentage float64         `json:"percentage"`
}

// Summary aggregates open and closed lots.
type Summary struct {
	Invested      decimal.Decimal `json:"invested"`
	CurrentValue  decimal.Decimal `json:"currentValue"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnl"`
	RealizedPnL   decimal.Decimal `json:"realizedPnl"`
	TotalPnL      decimal.Decimal `json:"totalPnl"`
	Holdings      int             `json:"holdings"`
	Sold          int             `json:"sold"`
	Allocation    []Allocation    `json:"allocation"`
}

// Summarize values open lots at prices[symbol], falling back to the buy price
// when no quote is known. Realised P&L counts sold lots that carry both a sell
// price and a sell date. Allocation is ordered by first appearance.
func Summarize(items []Item, prices map[string]float64) Summary {
	s := Summary{Allocation: []Allocation{}}
	bySymbol := make(map[string]int)

	for _, it := range items {
		if it.IsSold {
			s.Sold++
			if it.SellPrice != nil && it.SellDate != "" {
				s.RealizedPnL = s.RealizedPnL.Add(it.SellPrice.Sub(it.BuyPrice).Mul(it.Amount))
			}
			continue
		}

		s.Holdings++
		price := it.BuyPrice
		if p, ok := prices[it.AssetSymbol]; ok {
			price = decimal.NewFromFloat(p)
		}
		value := price.Mul(it.Amount)
		s.Invested = s.Invested.Add(it.CostBasis())
		s.CurrentValue = s.CurrentValue.Add(value)

		idx, ok := bySymbol[it.AssetSymbol]
		if !ok {
			idx = len(s.Allocation)
			bySymbol[it.AssetSymbol] = idx
			s.Allocation = append(s.Allocation, Allocation{Symbol: it.AssetSymbol})
		}
		s.Allocation[idx].Value = s.Allocation[idx].Value.Add(value)
	}

	s.UnrealizedPnL = s.CurrentValue.Sub(s.Invested)
	s.TotalPnL = s.UnrealizedPnL.Add(s.RealizedPnL)

	if s.CurrentValue.IsPositive() {
		for i := range s.Allocation {
			s.Allocation[i].Percentage = s.Allocation[i].Value.Div(s.CurrentValue).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
	}
	return s
}
