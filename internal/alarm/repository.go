package alarm

import (
	"context"
	"sync"

	"market-sentinel/internal/rule"
)

// Repository persists the rule and signal lists as whole documents.
// Load returns a nil slice when nothing was ever saved and a non-nil
// (possibly empty) slice otherwise.
type Repository interface {
	LoadRules(ctx context.Context) ([]rule.Rule, error)
	SaveRules(ctx context.Context, rules []rule.Rule) error
	LoadSignals(ctx context.Context) ([]Signal, error)
	SaveSignals(ctx context.Context, signals []Signal) error
}

// MemoryRepository keeps documents in process memory.
type MemoryRepository struct {
	mu      sync.Mutex
	rules   []rule.Rule
	signals []Signal
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (m *MemoryRepository) LoadRules(_ context.Context) ([]rule.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rules == nil {
		return nil, nil
	}
	return append([]rule.Rule{}, m.rules...), nil
}

func (m *MemoryRepository) SaveRules(_ context.Context, rules []rule.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append([]rule.Rule{}, rules...)
	return nil
}

func (m *MemoryRepository) LoadSignals(_ context.Context) ([]Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.signals == nil {
		return nil, nil
	}
	return append([]Signal{}, m.signals...), nil
}

func (m *MemoryRepository) SaveSignals(_ context.Context, signals []Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals = append([]Signal{}, signals...)
	return nil
}
