package market

import "time"

// Tick is a single bid/ask quote observation. Immutable once constructed;
// the feeder produces ticks and everything downstream only reads them.
type Tick struct {
	Bid  float64
	Ask  float64
	Time time.Time
}

func NewTick(bid, ask float64, t time.Time) Tick {
	return Tick{Bid: bid, Ask: ask, Time: t}
}

// Valid reports whether the quote is internally consistent: either both
// sides are zero (an empty tick) or ask is at least bid.
func (t Tick) Valid() bool {
	if t.Bid == 0 && t.Ask == 0 {
		return true
	}
	return t.Ask >= t.Bid
}

func (t Tick) IsZero() bool {
	return t.Bid == 0 && t.Ask == 0 && t.Time.IsZero()
}

// Mid returns the mid-market price.
func (t Tick) Mid() float64 {
	return t.Bid + (t.Ask-t.Bid)/2
}

// Spread returns the ask/bid distance.
func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

// Before orders ticks by observation time.
func (t Tick) Before(other Tick) bool {
	return t.Time.Before(other.Time)
}
