package engine

import (
	"time"

	"github.com/kalaytan/fxsim/pkg/market"
)

// OpenTradesStats is a snapshot over the currently open trades.
type OpenTradesStats struct {
	Count          int
	Volume         float64
	FloatingProfit float64
	FirstOpenTime  time.Time
}

// ClosedTradesStats is a snapshot over the closed trades, in close order.
// MaxCumProfit/MinCumProfit track the running equity curve extremes and
// the streak fields the longest win/loss runs.
type ClosedTradesStats struct {
	Count         int
	Wins          int
	Losses        int
	Profit        float64
	MaxCumProfit  float64
	MinCumProfit  float64
	MaxWinStreak  int
	MaxLossStreak int
	FirstOpenTime time.Time
	LastCloseTime time.Time
}

// CalcOpenTradesStats scans the open list at the tick. Safe from any
// goroutine.
func (e *Engine) CalcOpenTradesStats(tick market.Tick) OpenTradesStats {
	e.tradeMu.Lock()
	defer e.tradeMu.Unlock()

	var s OpenTradesStats
	for _, o := range e.opened {
		s.Count++
		s.Volume += o.Volume
		s.FloatingProfit += o.ProfitAt(tick)
		if s.FirstOpenTime.IsZero() || o.OpenTime.Before(s.FirstOpenTime) {
			s.FirstOpenTime = o.OpenTime
		}
	}
	return s
}

// CalcClosedTradesStats scans the closed list. Safe from any goroutine.
func (e *Engine) CalcClosedTradesStats() ClosedTradesStats {
	e.tradeMu.Lock()
	defer e.tradeMu.Unlock()

	var s ClosedTradesStats
	var winStreak, lossStreak int

	for _, o := range e.closed {
		p, ok := o.Profit()
		if !ok {
			continue
		}
		s.Count++
		s.Profit += p

		if p >= 0 {
			s.Wins++
			winStreak++
			lossStreak = 0
		} else {
			s.Losses++
			lossStreak++
			winStreak = 0
		}
		if winStreak > s.MaxWinStreak {
			s.MaxWinStreak = winStreak
		}
		if lossStreak > s.MaxLossStreak {
			s.MaxLossStreak = lossStreak
		}
		if s.Profit > s.MaxCumProfit {
			s.MaxCumProfit = s.Profit
		}
		if s.Profit < s.MinCumProfit {
			s.MinCumProfit = s.Profit
		}

		if s.FirstOpenTime.IsZero() || o.OpenTime.Before(s.FirstOpenTime) {
			s.FirstOpenTime = o.OpenTime
		}
		if o.CloseTime.After(s.LastCloseTime) {
			s.LastCloseTime = o.CloseTime
		}
	}
	return s
}
