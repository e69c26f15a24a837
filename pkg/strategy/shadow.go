package strategy

import (
	"sync"

	"github.com/kalaytan/fxsim/pkg/market"
)

// ShadowStats is a diagnostic data callback keeping a distribution of
// candle shapes for one timeframe. Each finalized bar is classified into
// the 3-bit body/upper-shadow/lower-shadow code.
type ShadowStats struct {
	tf market.Timeframe

	mu     sync.Mutex
	counts map[int]int
	total  int
}

func NewShadowStats(tf market.Timeframe) *ShadowStats {
	return &ShadowStats{tf: tf, counts: make(map[int]int)}
}

func (s *ShadowStats) OnTick(market.Symbol, market.Tick) {}

func (s *ShadowStats) OnBar(_ market.Symbol, tf market.Timeframe, bar market.Bar) {
	if tf != s.tf {
		return
	}
	s.mu.Lock()
	s.counts[market.CandleCode(bar)]++
	s.total++
	s.mu.Unlock()
}

// Counts returns a copy of the per-code distribution.
func (s *ShadowStats) Counts() map[int]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

func (s *ShadowStats) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}
