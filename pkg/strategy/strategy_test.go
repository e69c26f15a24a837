package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kalaytan/fxsim/pkg/engine"
	"github.com/kalaytan/fxsim/pkg/market"
	"github.com/kalaytan/fxsim/pkg/order"
)

func TestDefaultMovesOrdersThroughLifecycle(t *testing.T) {
	s := NewDefault()
	e := engine.New("eurusd", s, zap.NewNop().Sugar())

	o, err := order.New(order.BuyLimit, "eurusd", 0.1, 1.1000, 1.0950, 1.1050, 0)
	require.NoError(t, err)
	e.SubmitOrder(o)

	base := time.Date(2023, 4, 7, 9, 0, 0, 0, time.UTC)
	// ask above the limit: pending stays pending
	e.OnTick("eurusd", market.NewTick(1.1008, 1.1010, base))
	// ask touches the limit: opens
	e.OnTick("eurusd", market.NewTick(1.0998, 1.1000, base.Add(time.Second)))
	// bid hits the take profit: closes
	e.OnTick("eurusd", market.NewTick(1.1052, 1.1054, base.Add(2*time.Second)))
	e.Shutdown()

	stats := e.CalcClosedTradesStats()
	require.Equal(t, 1, stats.Count)
	require.Equal(t, 1, stats.Wins)
}

func TestShadowStats(t *testing.T) {
	s := NewShadowStats(market.TF1h)

	s.OnBar("eurusd", market.TF1h, market.Bar{O: 1.0, H: 1.2, L: 0.9, C: 1.1, T: 1})
	s.OnBar("eurusd", market.TF1h, market.Bar{O: 1.0, H: 1.1, L: 0.9, C: 1.0, T: 2})
	// other timeframes are ignored
	s.OnBar("eurusd", market.TF1m, market.Bar{O: 1.0, H: 1.2, L: 0.9, C: 1.1, T: 3})

	require.Equal(t, 2, s.Total())
	counts := s.Counts()
	// bullish candle with both wicks: body + upper + lower
	require.Equal(t, 1, counts[market.CandleBody|market.CandleUpperShadow|market.CandleLowerShadow])
	// doji with both wicks: shadows only
	require.Equal(t, 1, counts[market.CandleUpperShadow|market.CandleLowerShadow])
}
