package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"market-sentinel/internal/model"
)

type universeFile struct {
	Assets []model.Asset `yaml:"assets"`
}

// LoadUniverse reads the asset list from a YAML file. An empty path returns
// the built-in universe.
//
//	assets:
//	  - {id: bitcoin, symbol: BTC, name: Bitcoin, class: CRYPTO, ticker: BTCUSDT}
func LoadUniverse(path string) ([]model.Asset, error) {
	if path == "" {
		return model.DefaultUniverse(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe %s: %w", path, err)
	}
	var f universeFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse universe %s: %w", path, err)
	}
	if len(f.Assets) == 0 {
		return nil, fmt.Errorf("universe %s: no assets", path)
	}

	seen := make(map[string]bool, len(f.Assets))
	for i, a := range f.Assets {
		if a.ID == "" || a.Ticker == "" {
			return nil, fmt.Errorf("universe %s: asset %d needs id and ticker", path, i)
		}
		switch a.Class {
		case model.ClassCrypto, model.ClassStock, model.ClassCommodity:
		default:
			return nil, fmt.Errorf("universe %s: asset %q: %w", path, a.ID, errBadClass)
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("universe %s: duplicate asset id %q", path, a.ID)
		}
		seen[a.ID] = true
		if a.Symbol == "" {
			f.Assets[i].Symbol = a.Ticker
		}
		if a.Name == "" {
			f.Assets[i].Name = f.Assets[i].Symbol
		}
	}
	return f.Assets, nil
}

var errBadClass = errors.New("class must be CRYPTO, STOCK or COMMODITY")
