package market

import "time"

// Timeframe is a fixed candle aggregation period.
type Timeframe time.Duration

const (
	TF1m  = Timeframe(1 * time.Minute)
	TF5m  = Timeframe(5 * time.Minute)
	TF15m = Timeframe(15 * time.Minute)
	TF30m = Timeframe(30 * time.Minute)
	TF1h  = Timeframe(1 * time.Hour)
	TF4h  = Timeframe(4 * time.Hour)
	TF1w  = Timeframe(168 * time.Hour)
	TF1mo = Timeframe(720 * time.Hour)
)

var allTimeframes = []Timeframe{TF1m, TF5m, TF15m, TF30m, TF1h, TF4h, TF1w, TF1mo}

// Timeframes returns every supported aggregation period, shortest first.
// The result is a fresh slice; callers may reorder it.
func Timeframes() []Timeframe {
	out := make([]Timeframe, len(allTimeframes))
	copy(out, allTimeframes)
	return out
}

func (tf Timeframe) Duration() time.Duration { return time.Duration(tf) }

// Minutes returns the period length in whole minutes, the unit the wire
// protocol uses for timeframes.
func (tf Timeframe) Minutes() int {
	return int(time.Duration(tf) / time.Minute)
}

// Seconds returns the period length in whole seconds (the candle bucket
// divider).
func (tf Timeframe) Seconds() int64 {
	return int64(time.Duration(tf) / time.Second)
}

// TimeframeFromMinutes maps a wire timeframe back to a known period.
func TimeframeFromMinutes(m int) (Timeframe, bool) {
	tf := Timeframe(time.Duration(m) * time.Minute)
	for _, known := range allTimeframes {
		if tf == known {
			return tf, true
		}
	}
	return 0, false
}
