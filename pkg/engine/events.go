package engine

import (
	"github.com/kalaytan/fxsim/pkg/market"
	"github.com/kalaytan/fxsim/pkg/order"
)

// DataCallback receives market data events in feed order.
type DataCallback interface {
	OnTick(sym market.Symbol, tick market.Tick)
	OnBar(sym market.Symbol, tf market.Timeframe, bar market.Bar)
}

// OrderCallback receives order lifecycle events.
type OrderCallback interface {
	OnOrder(o *order.Order, action order.Action)
}

// Publisher fans simulation output out to viewers. The engine hands it
// clones, so implementations may retain what they receive.
type Publisher interface {
	OnTick(sym market.Symbol, tick market.Tick)
	OnBar(sym market.Symbol, tf market.Timeframe, bar market.Bar)
	OnOrder(o *order.Order, action order.Action)
	OnInfo(sym market.Symbol, xml string)
}

// MultiPublisher fans publishes out to several publishers in order.
type MultiPublisher []Publisher

func (m MultiPublisher) OnTick(sym market.Symbol, tick market.Tick) {
	for _, p := range m {
		p.OnTick(sym, tick)
	}
}

func (m MultiPublisher) OnBar(sym market.Symbol, tf market.Timeframe, bar market.Bar) {
	for _, p := range m {
		p.OnBar(sym, tf, bar)
	}
}

func (m MultiPublisher) OnOrder(o *order.Order, action order.Action) {
	for _, p := range m {
		p.OnOrder(o, action)
	}
}

func (m MultiPublisher) OnInfo(sym market.Symbol, xml string) {
	for _, p := range m {
		p.OnInfo(sym, xml)
	}
}

// DataQueue serializes market data delivery to a DataCallback.
type DataQueue struct {
	q  *queue
	cb DataCallback
}

func NewDataQueue(cb DataCallback, workers int) *DataQueue {
	return &DataQueue{q: newQueue(workers), cb: cb}
}

func (d *DataQueue) PushTick(sym market.Symbol, tick market.Tick) bool {
	return d.q.push(func() { d.cb.OnTick(sym, tick) })
}

func (d *DataQueue) PushBar(sym market.Symbol, tf market.Timeframe, bar market.Bar) bool {
	return d.q.push(func() { d.cb.OnBar(sym, tf, bar) })
}

func (d *DataQueue) Shutdown() { d.q.shutdown() }

func (d *DataQueue) Pending() int { return d.q.pending() }

// OrderQueue serializes order event delivery to an OrderCallback. Orders
// are cloned at the push boundary so the handler owns its copy.
type OrderQueue struct {
	q  *queue
	cb OrderCallback
}

func NewOrderQueue(cb OrderCallback, workers int) *OrderQueue {
	return &OrderQueue{q: newQueue(workers), cb: cb}
}

func (o *OrderQueue) Push(ord *order.Order, action order.Action) bool {
	c := ord.Clone()
	return o.q.push(func() { o.cb.OnOrder(c, action) })
}

func (o *OrderQueue) Shutdown() { o.q.shutdown() }

func (o *OrderQueue) Pending() int { return o.q.pending() }
