package indicator

import "market-sentinel/internal/model"

// Zone is a labelled RSI band used by the heatmap.
type Zone struct {
	Name string  `json:"name"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Zones are ordered hot to cold. Min is inclusive, Max exclusive, except
// Overbought which also includes 100.
var Zones = []Zone{
	{Name: "Overbought", Min: 70, Max: 100},
	{Name: "Strong", Min: 60, Max: 70},
	{Name: "Neutral", Min: 40, Max: 60},
	{Name: "Weak", Min: 30, Max: 40},
	{Name: "Oversold", Min: 0, Max: 30},
}

// ZoneFor returns the zone containing rsi. Values outside [0,100] and NaN fall back to Neutral.
func ZoneFor(rsi float64) Zone {
	for i, z := range Zones {
		if rsi >= z.Min && (rsi < z.Max || (i == 0 && rsi == z.Max)) {
			return z
		}
	}
	return Zones[2]
}

// ZoneBucket groups the snapshots that fall into one zone.
type ZoneBucket struct {
	Zone   Zone                  `json:"zone"`
	Assets []model.AssetSnapshot `json:"assets"`
}

// Heatmap buckets snapshots by RSI zone, hot to cold. Every zone is present,
// possibly empty, and snapshots keep their input order within a bucket.
func Heatmap(snapshots []model.AssetSnapshot) []ZoneBucket {
	out := make([]ZoneBucket, len(Zones))
	for i, z := range Zones {
		out[i] = ZoneBucket{Zone: z, Assets: []model.AssetSnapshot{}}
	}
	for _, s := range snapshots {
		z := ZoneFor(s.RSI)
		for i := range out {
			if out[i].Zone.Name == z.Name {
				out[i].Assets = append(out[i].Assets, s)
				break
			}
		}
	}
	return out
}
