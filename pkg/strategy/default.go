// Package strategy contains the trading strategies run inside an engine.
package strategy

import (
	"strconv"

	"github.com/kalaytan/fxsim/pkg/engine"
	"github.com/kalaytan/fxsim/pkg/market"
)

// Default is the baseline strategy: on every tick it opens whatever
// pending orders the quote allows, closes trades whose stop loss or take
// profit is hit, and reports the account equity.
type Default struct {
	e *engine.Engine
}

func NewDefault() *Default { return &Default{} }

func (s *Default) SetEngine(e *engine.Engine) { s.e = e }

func (s *Default) OnTick(_ market.Symbol, tick market.Tick) {
	s.e.OpenPendingOrders(tick)
	s.e.CloseTriggeredOrders(tick)
	s.e.AddInfo("equity", strconv.FormatFloat(s.e.Equity(tick), 'f', 2, 64))
}

func (s *Default) OnBar(market.Symbol, market.Timeframe, market.Bar) {}
