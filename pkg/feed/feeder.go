package feed

import (
	"math"
	"sync"

	"github.com/kalaytan/fxsim/pkg/market"
)

// Callback receives the feed's output. Bars always fire before the tick
// that completed them.
type Callback interface {
	OnTick(sym market.Symbol, tick market.Tick)
	OnBar(sym market.Symbol, tf market.Timeframe, bar market.Bar)
}

// Feeder produces market data for one symbol.
type Feeder interface {
	Start() error
	Stop()
	Symbol() market.Symbol
	AddCallback(cb Callback)
	RemoveCallback(cb Callback)
	Normalize(v float64) float64
}

// BaseFeeder owns one candle factory per timeframe and the callback set.
// Concrete feeders push quotes through EmitTick.
type BaseFeeder struct {
	sym market.Symbol

	mu        sync.Mutex
	callbacks []Callback

	factories []*market.CandleFactory
	warming   bool
}

func NewBaseFeeder(sym market.Symbol, tfs []market.Timeframe) *BaseFeeder {
	f := &BaseFeeder{sym: sym}
	for _, tf := range tfs {
		tf := tf
		f.factories = append(f.factories, market.NewCandleFactory(tf, func(bar market.Bar) {
			f.emitBar(tf, bar)
		}))
	}
	return f
}

func (f *BaseFeeder) Symbol() market.Symbol { return f.sym }

func (f *BaseFeeder) AddCallback(cb Callback) {
	f.mu.Lock()
	f.callbacks = append(f.callbacks, cb)
	f.mu.Unlock()
}

func (f *BaseFeeder) RemoveCallback(cb Callback) {
	f.mu.Lock()
	for n, c := range f.callbacks {
		if c == cb {
			f.callbacks = append(f.callbacks[:n], f.callbacks[n+1:]...)
			break
		}
	}
	f.mu.Unlock()
}

func (f *BaseFeeder) snapshot() []Callback {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Callback, len(f.callbacks))
	copy(out, f.callbacks)
	return out
}

// Normalize rounds a price to the symbol's quote precision.
func (f *BaseFeeder) Normalize(v float64) float64 {
	scale := math.Pow10(f.sym.Precision())
	return math.Round(v*scale) / scale
}

// SetWarmup toggles warm-up mode: ticks still build candles but tick
// callbacks are suppressed.
func (f *BaseFeeder) SetWarmup(on bool) { f.warming = on }

// EmitTick normalizes the quote, drives the candle factories (completed
// bars reach the callbacks first) and then delivers the tick itself.
func (f *BaseFeeder) EmitTick(tick market.Tick) {
	tick.Bid = f.Normalize(tick.Bid)
	tick.Ask = f.Normalize(tick.Ask)

	for _, cf := range f.factories {
		cf.PutTick(tick)
	}
	if f.warming {
		return
	}
	for _, cb := range f.snapshot() {
		cb.OnTick(f.sym, tick)
	}
}

func (f *BaseFeeder) emitBar(tf market.Timeframe, bar market.Bar) {
	for _, cb := range f.snapshot() {
		cb.OnBar(f.sym, tf, bar)
	}
}
