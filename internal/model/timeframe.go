package model

import (
	"log"
	"strings"
	"time"
)

// Timeframe is a candle interval label understood by every market-data vendor.
type Timeframe string

const (
	TF15m Timeframe = "15m"
	TF2h  Timeframe = "2h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
	TF1w  Timeframe = "1w"
)

// AllTimeframes lists the supported timeframes, shortest first.
var AllTimeframes = []Timeframe{TF15m, TF2h, TF4h, TF1d, TF1w}

// Valid reports whether tf is a supported timeframe.
func (tf Timeframe) Valid() bool {
	for _, t := range AllTimeframes {
		if t == tf {
			return true
		}
	}
	return false
}

// Duration returns the length of one bar.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF15m:
		return 15 * time.Minute
	case TF2h:
		return 2 * time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	case TF1w:
		return 7 * 24 * time.Hour
	}
	return 0
}

// CandlesPerDay is the number of bars one calendar day spans (fractional for 1w).
func (tf Timeframe) CandlesPerDay() float64 {
	d := tf.Duration()
	if d == 0 {
		return 0
	}
	return float64(24*time.Hour) / float64(d)
}

// ParseTimeframes parses a comma-separated list like "15m,4h,1d".
// Unknown entries are logged and skipped.
func ParseTimeframes(s string) []Timeframe {
	parts := strings.Split(s, ",")
	out := make([]Timeframe, 0, len(parts))
	for _, p := range parts {
		tf := Timeframe(strings.TrimSpace(p))
		if tf == "" {
			continue
		}
		if !tf.Valid() {
			log.Printf("[config] skipping invalid timeframe: %q", p)
			continue
		}
		out = append(out, tf)
	}
	return out
}
