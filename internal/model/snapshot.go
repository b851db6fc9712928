package model

import "time"

// MACDPoint is one MACD sample. Histogram is always MACD - Signal.
type MACDPoint struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// AssetSnapshot is the latest indicator state of an asset at one timeframe.
type AssetSnapshot struct {
	AssetID       string     `json:"assetId"`
	Symbol        string     `json:"symbol"`
	Name          string     `json:"name"`
	Class         AssetClass `json:"type"`
	Timeframe     Timeframe  `json:"timeframe"`
	RSI           float64    `json:"rsi"`
	MACD          MACDPoint  `json:"macd"`
	Price         float64    `json:"price"`
	ChangePercent float64    `json:"changePercent"`
	TS            time.Time  `json:"ts"`
}

// Cycle holds every snapshot computed in one refresh, keyed by timeframe then asset id.
type Cycle struct {
	At        time.Time                              `json:"at"`
	Snapshots map[Timeframe]map[string]AssetSnapshot `json:"snapshots"`
}

// NewCycle creates an empty cycle stamped at.
func NewCycle(at time.Time) Cycle {
	return Cycle{At: at, Snapshots: make(map[Timeframe]map[string]AssetSnapshot)}
}

// Put stores s under its timeframe and asset id.
func (c *Cycle) Put(s AssetSnapshot) {
	if c.Snapshots == nil {
		c.Snapshots = make(map[Timeframe]map[string]AssetSnapshot)
	}
	m, ok := c.Snapshots[s.Timeframe]
	if !ok {
		m = make(map[string]AssetSnapshot)
		c.Snapshots[s.Timeframe] = m
	}
	m[s.AssetID] = s
}

// Get returns the snapshot for (tf, assetID). A nil receiver holds nothing.
func (c *Cycle) Get(tf Timeframe, assetID string) (AssetSnapshot, bool) {
	if c == nil {
		return AssetSnapshot{}, false
	}
	s, ok := c.Snapshots[tf][assetID]
	return s, ok
}

// Len returns the total number of snapshots.
func (c *Cycle) Len() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, m := range c.Snapshots {
		n += len(m)
	}
	return n
}

// List returns the snapshots of tf ordered as in universe.
func (c *Cycle) List(tf Timeframe, universe []Asset) []AssetSnapshot {
	out := make([]AssetSnapshot, 0, len(universe))
	if c == nil {
		return out
	}
	for _, a := range universe {
		if s, ok := c.Snapshots[tf][a.ID]; ok {
			out = append(out, s)
		}
	}
	return out
}
