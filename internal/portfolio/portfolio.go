// Package portfolio tracks manually entered holdings and their P&L against
// the latest market prices.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrItemNotFound is returned for unknown item ids.
var ErrItemNotFound = errors.New("portfolio item not found")

// Item is one purchase lot. Dates are YYYY-MM-DD strings as entered.
type Item struct {
	ID          string           `json:"id"`
	AssetSymbol string           `json:"assetSymbol"`
	Amount      decimal.Decimal  `json:"amount"`
	BuyPrice    decimal.Decimal  `json:"buyPrice"`
	BuyDate     string           `json:"buyDate"`
	IsSold      bool             `json:"isSold"`
	SellPrice   *decimal.Decimal `json:"sellPrice,omitempty"`
	SellDate    string           `json:"sellDate,omitempty"`
}

// CostBasis is Amount * BuyPrice.
func (i Item) CostBasis() decimal.Decimal {
	return i.Amount.Mul(i.BuyPrice)
}

// Repository persists the item list as one document.
type Repository interface {
	LoadItems(ctx context.Context) ([]Item, error)
	SaveItems(ctx context.Context, items []Item) error
}

// Tracker owns the item list and writes it through on every change.
type Tracker struct {
	mu    sync.RWMutex
	repo  Repository
	items []Item
}

// NewTracker loads items from repo.
func NewTracker(ctx context.Context, repo Repository) (*Tracker, error) {
	items, err := repo.LoadItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("portfolio: load: %w", err)
	}
	slog.Info("portfolio loaded", "items", len(items))
	return &Tracker{repo: repo, items: items}, nil
}

// Items returns a copy of all items, newest first.
func (t *Tracker) Items() []Item {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Item{}, t.items...)
}

// Add stores a new open lot in front of the list.
func (t *Tracker) Add(ctx context.Context, item Item) (Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.AssetSymbol = strings.ToUpper(item.AssetSymbol)
	item.IsSold = false
	item.SellPrice = nil
	item.SellDate = ""

	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append([]Item{item}, t.items...)
	return item, t.save(ctx)
}

// Update replaces the editable fields of an item, keeping its id.
func (t *Tracker) Update(ctx context.Context, id string, item Item) (Item, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexOf(id)
	if i < 0 {
		return Item{}, fmt.Errorf("update %s: %w", id, ErrItemNotFound)
	}
	item.ID = id
	item.AssetSymbol = strings.ToUpper(item.AssetSymbol)
	t.items[i] = item
	return item, t.save(ctx)
}

// Sell marks an item as sold at price on date.
func (t *Tracker) Sell(ctx context.Context, id string, price decimal.Decimal, date string) (Item, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexOf(id)
	if i < 0 {
		return Item{}, fmt.Errorf("sell %s: %w", id, ErrItemNotFound)
	}
	t.items[i].IsSold = true
	t.items[i].SellPrice = &price
	t.items[i].SellDate = date
	return t.items[i], t.save(ctx)
}

// Delete removes an item.
func (t *Tracker) Delete(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexOf(id)
	if i < 0 {
		return fmt.Errorf("delete %s: %w", id, ErrItemNotFound)
	}
	t.items = append(t.items[:i:i], t.items[i+1:]...)
	return t.save(ctx)
}

// Summary computes P&L for the current items against prices keyed by symbol.
func (t *Tracker) Summary(prices map[string]float64) Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Summarize(t.items, prices)
}

func (t *Tracker) indexOf(id string) int {
	for i, it := range t.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (t *Tracker) save(ctx context.Context) error {
	if err := t.repo.SaveItems(ctx, t.items); err != nil {
		return fmt.Errorf("portfolio: save: %w", err)
	}
	return nil
}

// MemoryRepository keeps items in process memory.
type MemoryRepository struct {
	mu    sync.Mutex
	items []Item
}

func (m *MemoryRepository) LoadItems(_ context.Context) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Item{}, m.items...), nil
}

func (m *MemoryRepository) SaveItems(_ context.Context, items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append([]Item{}, items...)
	return nil
}
