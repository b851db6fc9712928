package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"market-sentinel/internal/alarm"
	"market-sentinel/internal/portfolio"
	"market-sentinel/internal/rule"
)

// Document keys.
const (
	KeyRules     = "rules"
	KeySignals   = "signals"
	KeyPortfolio = "portfolio"
)

// getDoc decodes the document at key into v. It reports false when the key
// has never been written.
func (s *Store) getDoc(ctx context.Context, key string, v any) (bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return false, fmt.Errorf("sqlite decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) putDoc(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sqlite encode %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (key, data, updated_at) VALUES (?, ?, ?)`,
		key, string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite write %s: %w", key, err)
	}
	return nil
}

// LoadRules implements alarm.Repository. Legacy single-condition rules are
// normalised while decoding.
func (s *Store) LoadRules(ctx context.Context) ([]rule.Rule, error) {
	var rules []rule.Rule
	found, err := s.getDoc(ctx, KeyRules, &rules)
	if err != nil || !found {
		return nil, err
	}
	if rules == nil {
		rules = []rule.Rule{}
	}
	return rules, nil
}

// SaveRules implements alarm.Repository.
func (s *Store) SaveRules(ctx context.Context, rules []rule.Rule) error {
	if rules == nil {
		rules = []rule.Rule{}
	}
	return s.putDoc(ctx, KeyRules, rules)
}

// LoadSignals implements alarm.Repository.
func (s *Store) LoadSignals(ctx context.Context) ([]alarm.Signal, error) {
	var signals []alarm.Signal
	found, err := s.getDoc(ctx, KeySignals, &signals)
	if err != nil || !found {
		return nil, err
	}
	if signals == nil {
		signals = []alarm.Signal{}
	}
	return signals, nil
}

// SaveSignals implements alarm.Repository.
func (s *Store) SaveSignals(ctx context.Context, signals []alarm.Signal) error {
	if signals == nil {
		signals = []alarm.Signal{}
	}
	return s.putDoc(ctx, KeySignals, signals)
}

// LoadItems implements portfolio.Repository.
func (s *Store) LoadItems(ctx context.Context) ([]portfolio.Item, error) {
	var items []portfolio.Item
	if _, err := s.getDoc(ctx, KeyPortfolio, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SaveItems implements portfolio.Repository.
func (s *Store) SaveItems(ctx context.Context, items []portfolio.Item) error {
	if items == nil {
		items = []portfolio.Item{}
	}
	return s.putDoc(ctx, KeyPortfolio, items)
}
