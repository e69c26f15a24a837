package engine

import (
	"sync"

	"go.uber.org/zap"

	"github.com/kalaytan/fxsim/pkg/market"
	"github.com/kalaytan/fxsim/pkg/order"
)

// Strategy reacts to market data. Its callbacks run on the engine's data
// worker, so within one engine they never run concurrently and may use the
// strategy-facing Engine helpers freely.
type Strategy interface {
	SetEngine(e *Engine)
	OnTick(sym market.Symbol, tick market.Tick)
	OnBar(sym market.Symbol, tf market.Timeframe, bar market.Bar)
}

// TickFunc, BarFunc and OrderFunc are optional external hooks invoked at
// the end of the respective cycles.
type TickFunc func(sym market.Symbol, tick market.Tick)
type BarFunc func(sym market.Symbol, tf market.Timeframe, bar market.Bar)
type OrderFunc func(o *order.Order, action order.Action)

// nopPublisher lets an engine run headless.
type nopPublisher struct{}

func (nopPublisher) OnTick(market.Symbol, market.Tick)                 {}
func (nopPublisher) OnBar(market.Symbol, market.Timeframe, market.Bar) {}
func (nopPublisher) OnOrder(*order.Order, order.Action)                {}
func (nopPublisher) OnInfo(market.Symbol, string)                      {}

// Engine drives one symbol's simulation: market events arrive through the
// data queue, the strategy reacts, order lifecycle transitions flow out
// through the order queue to the publisher and the optional callback.
//
// Order lists keep submission order. The new list is the only one touched
// from outside the data worker (SubmitOrder), so it has its own lock; the
// pending/opened/closed lists are worker-private.
type Engine struct {
	sym       market.Symbol
	strategy  Strategy
	publisher Publisher
	log       *zap.SugaredLogger

	bars *market.BarStore
	info *Info

	newMu     sync.Mutex
	newOrders []*order.Order

	// tradeMu guards the latest tick and the pending/opened/closed lists:
	// the data worker mutates them, stats snapshots read them from
	// anywhere.
	tradeMu sync.Mutex
	latest  market.Tick
	pending []*order.Order
	opened  []*order.Order
	closed  []*order.Order

	balance float64

	data   *DataQueue
	orders *OrderQueue

	onTick TickFunc
	onBar  BarFunc
	onOrd  OrderFunc
}

// Option configures an Engine at construction.
type Option func(*Engine)

func WithPublisher(p Publisher) Option { return func(e *Engine) { e.publisher = p } }

func WithBalance(v float64) Option { return func(e *Engine) { e.balance = v } }

// WithTickCallback installs an external hook run after each tick cycle.
func WithTickCallback(fn TickFunc) Option { return func(e *Engine) { e.onTick = fn } }

// WithBarCallback installs an external hook run after each bar cycle.
func WithBarCallback(fn BarFunc) Option { return func(e *Engine) { e.onBar = fn } }

// WithOrderCallback installs an external hook run after the publisher for
// every order lifecycle event.
func WithOrderCallback(fn OrderFunc) Option { return func(e *Engine) { e.onOrd = fn } }

func New(sym market.Symbol, s Strategy, log *zap.SugaredLogger, opts ...Option) *Engine {
	e := &Engine{
		sym:       sym,
		strategy:  s,
		publisher: nopPublisher{},
		log:       log,
		bars:      market.NewBarStore(),
		info:      newInfo(sym),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.data = NewDataQueue(dataHandler{e}, 1)
	e.orders = NewOrderQueue(orderHandler{e}, 1)
	if s != nil {
		s.SetEngine(e)
	}
	return e
}

func (e *Engine) Symbol() market.Symbol { return e.sym }

// Bars exposes the engine's bar history.
func (e *Engine) Bars() *market.BarStore { return e.bars }

// LatestTick returns the last tick the cycle recorded.
func (e *Engine) LatestTick() market.Tick {
	e.tradeMu.Lock()
	defer e.tradeMu.Unlock()
	return e.latest
}

// OnTick enqueues a tick for the data worker. It satisfies the feed
// callback shape, so an engine registers directly with a feeder.
func (e *Engine) OnTick(sym market.Symbol, tick market.Tick) {
	e.data.PushTick(sym, tick)
}

// OnBar enqueues a finalized bar for the data worker.
func (e *Engine) OnBar(sym market.Symbol, tf market.Timeframe, bar market.Bar) {
	e.data.PushBar(sym, tf, bar)
}

// Shutdown drains and stops both queues.
func (e *Engine) Shutdown() {
	e.data.Shutdown()
	e.orders.Shutdown()
}

// dataHandler runs the cycles on the data worker.
type dataHandler struct{ e *Engine }

func (h dataHandler) OnTick(sym market.Symbol, tick market.Tick) { h.e.tickCycle(sym, tick) }

func (h dataHandler) OnBar(sym market.Symbol, tf market.Timeframe, bar market.Bar) {
	h.e.barCycle(sym, tf, bar)
}

// orderHandler fans a lifecycle event out to the publisher first, then the
// external callback.
type orderHandler struct{ e *Engine }

func (h orderHandler) OnOrder(o *order.Order, action order.Action) {
	h.e.publisher.OnOrder(o, action)
	if h.e.onOrd != nil {
		h.e.onOrd(o, action)
	}
}

func (e *Engine) tickCycle(sym market.Symbol, tick market.Tick) {
	e.newMu.Lock()
	fresh := e.newOrders
	e.newOrders = nil
	e.newMu.Unlock()

	e.tradeMu.Lock()
	e.latest = tick
	e.pending = append(e.pending, fresh...)
	e.tradeMu.Unlock()
	for _, o := range fresh {
		e.orders.Push(o, order.ActionSubmitted)
	}

	e.info.Reset()
	if e.strategy != nil {
		e.strategy.OnTick(sym, tick)
	}
	e.publisher.OnTick(sym, tick)
	if !e.info.Empty() {
		e.publisher.OnInfo(sym, e.info.XML())
	}
	if e.onTick != nil {
		e.onTick(sym, tick)
	}
}

func (e *Engine) barCycle(sym market.Symbol, tf market.Timeframe, bar market.Bar) {
	e.bars.PutBar(tf, bar)
	if e.strategy != nil {
		e.strategy.OnBar(sym, tf, bar)
	}
	e.publisher.OnBar(sym, tf, bar)
	if e.onBar != nil {
		e.onBar(sym, tf, bar)
	}
}

// SubmitOrder clones o onto the new list and returns the ticket id. It is
// safe from any goroutine and never blocks on strategy execution; the next
// tick cycle moves the order to pending and emits the submitted event.
func (e *Engine) SubmitOrder(o *order.Order) uint64 {
	c := o.Clone()
	e.newMu.Lock()
	e.newOrders = append(e.newOrders, c)
	e.newMu.Unlock()
	e.log.Debugw("order_submitted", "symbol", e.sym, "id", c.ID, "kind", c.Kind.String())
	return c.ID
}

// ModifyOrder is not implemented and always reports false.
func (e *Engine) ModifyOrder(id uint64, stopLoss, takeProfit float64) bool { return false }

// DeleteOrder is not implemented and always reports false.
func (e *Engine) DeleteOrder(id uint64) bool { return false }

// OpenPendingOrders opens every pending order whose open condition the tick
// satisfies, moving it to the opened list and emitting the opened event.
// Data-worker only.
func (e *Engine) OpenPendingOrders(tick market.Tick) int {
	e.tradeMu.Lock()
	defer e.tradeMu.Unlock()

	n := 0
	rest := e.pending[:0]
	for _, o := range e.pending {
		if o.CheckOpen(tick) && o.Open(tick) {
			e.opened = append(e.opened, o)
			e.orders.Push(o, order.ActionOpened)
			n++
			continue
		}
		rest = append(rest, o)
	}
	e.pending = rest
	return n
}

// CloseTriggeredOrders closes every open trade whose stop loss or take
// profit the tick hits. Data-worker only.
func (e *Engine) CloseTriggeredOrders(tick market.Tick) int {
	e.tradeMu.Lock()
	defer e.tradeMu.Unlock()

	n := 0
	rest := e.opened[:0]
	for _, o := range e.opened {
		if o.CheckClose(tick) && o.Close(tick) {
			e.closed = append(e.closed, o)
			e.orders.Push(o, order.ActionClosed)
			n++
			continue
		}
		rest = append(rest, o)
	}
	e.opened = rest
	return n
}

// CloseTrade closes the open trade with the given ticket at the tick.
// Data-worker only.
func (e *Engine) CloseTrade(id uint64, tick market.Tick) bool {
	e.tradeMu.Lock()
	defer e.tradeMu.Unlock()

	for n, o := range e.opened {
		if o.ID != id {
			continue
		}
		if !o.Close(tick) {
			return false
		}
		e.opened = append(e.opened[:n], e.opened[n+1:]...)
		e.closed = append(e.closed, o)
		e.orders.Push(o, order.ActionClosed)
		return true
	}
	return false
}

// CloseAllTrades closes every open trade at the tick. Data-worker only.
func (e *Engine) CloseAllTrades(tick market.Tick) int {
	e.tradeMu.Lock()
	defer e.tradeMu.Unlock()

	n := 0
	for _, o := range e.opened {
		if o.Close(tick) {
			e.closed = append(e.closed, o)
			e.orders.Push(o, order.ActionClosed)
			n++
		}
	}
	e.opened = e.opened[:0]
	return n
}

// Equity returns the account balance plus realized and floating profit at
// the tick.
func (e *Engine) Equity(tick market.Tick) float64 {
	e.tradeMu.Lock()
	defer e.tradeMu.Unlock()

	eq := e.balance
	for _, o := range e.closed {
		if p, ok := o.Profit(); ok {
			eq += p
		}
	}
	for _, o := range e.opened {
		eq += o.ProfitAt(tick)
	}
	return eq
}

// AddInfo appends a key/value pair to the tick's info record.
func (e *Engine) AddInfo(key, value string) {
	e.info.Add(key, value)
}
