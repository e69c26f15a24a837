package viewer

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kalaytan/fxsim/pkg/market"
	"github.com/kalaytan/fxsim/pkg/order"
	"github.com/kalaytan/fxsim/pkg/wire"
)

const (
	writeTimeout  = 5 * time.Second
	readInterval  = time.Second
	senderWait    = time.Second
	barArrayChunk = 10
)

type barKey struct {
	sym market.Symbol
	tf  market.Timeframe
}

// Conn is one viewer connection. The sender goroutine owns all writes and
// drains the queued state by priority: bars first (batched into bar_array
// plus raw records when more than one is pending), then orders, a one-shot
// initialized status after the first drain, info blobs and finally the
// coalesced latest tick per symbol. The receiver goroutine handles ping
// and options messages.
type Conn struct {
	c      net.Conn
	srv    *Server
	remote string

	mu       sync.Mutex
	pongs    int
	barQ     map[barKey][]market.Bar
	barKeys  []barKey
	lastBarT map[barKey]int64
	orderQ   []orderEvent
	infoQ    map[market.Symbol]string
	infoSyms []market.Symbol
	tickQ    map[market.Symbol]market.Tick
	tickSyms []market.Symbol
	accepted map[market.Symbol]market.Tick

	dead   atomic.Bool
	signal chan struct{}
	wg     sync.WaitGroup
}

func newConn(nc net.Conn, srv *Server) *Conn {
	return &Conn{
		c:        nc,
		srv:      srv,
		remote:   nc.RemoteAddr().String(),
		barQ:     make(map[barKey][]market.Bar),
		lastBarT: make(map[barKey]int64),
		infoQ:    make(map[market.Symbol]string),
		tickQ:    make(map[market.Symbol]market.Tick),
		accepted: make(map[market.Symbol]market.Tick),
		signal:   make(chan struct{}, 1),
	}
}

func (c *Conn) start() {
	c.wg.Add(2)
	go c.senderLoop()
	go c.receiverLoop()
}

func (c *Conn) aborted() bool { return c.dead.Load() }

func (c *Conn) abort() {
	if c.dead.CompareAndSwap(false, true) {
		c.c.Close()
		c.wake()
		c.srv.signalAbort()
	}
}

func (c *Conn) join() { c.wg.Wait() }

func (c *Conn) wake() {
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// queueBar appends a bar unless an equal or newer bucket is already queued
// for the symbol and timeframe.
func (c *Conn) queueBar(sym market.Symbol, tf market.Timeframe, bar market.Bar) {
	key := barKey{sym, tf}
	c.mu.Lock()
	if bar.T <= c.lastBarT[key] {
		c.mu.Unlock()
		return
	}
	if _, ok := c.barQ[key]; !ok {
		c.barKeys = append(c.barKeys, key)
	}
	c.barQ[key] = append(c.barQ[key], bar)
	c.lastBarT[key] = bar.T
	c.mu.Unlock()
	c.wake()
}

// tickScale is the resolution of the duplicate check: quotes equal down to
// 3 decimals are not worth a wire message.
const tickScale = 1000

func scaled(v float64) int64 { return int64(v * tickScale) }

// queueTick coalesces: only the latest tick per symbol is kept, and a tick
// that is not newer than the last accepted one, or equal to it at the
// 3-decimal scale, is dropped.
func (c *Conn) queueTick(sym market.Symbol, tick market.Tick) {
	c.mu.Lock()
	if last, ok := c.accepted[sym]; ok {
		if !tick.Time.After(last.Time) ||
			(scaled(tick.Bid) == scaled(last.Bid) && scaled(tick.Ask) == scaled(last.Ask)) {
			c.mu.Unlock()
			return
		}
	}
	c.accepted[sym] = tick
	if _, ok := c.tickQ[sym]; !ok {
		c.tickSyms = append(c.tickSyms, sym)
	}
	c.tickQ[sym] = tick
	c.mu.Unlock()
	c.wake()
}

func (c *Conn) queueOrder(o *order.Order, action order.Action) {
	c.mu.Lock()
	c.orderQ = append(c.orderQ, orderEvent{ord: o, action: action})
	c.mu.Unlock()
	c.wake()
}

// queueInfo keeps the latest blob per symbol.
func (c *Conn) queueInfo(sym market.Symbol, xml string) {
	c.mu.Lock()
	if _, ok := c.infoQ[sym]; !ok {
		c.infoSyms = append(c.infoSyms, sym)
	}
	c.infoQ[sym] = xml
	c.mu.Unlock()
	c.wake()
}

func (c *Conn) queuePong() {
	c.mu.Lock()
	c.pongs++
	c.mu.Unlock()
	c.wake()
}

type barBatch struct {
	key  barKey
	bars []market.Bar
}

type symXML struct {
	sym market.Symbol
	xml string
}

type symTick struct {
	sym  market.Symbol
	tick market.Tick
}

type batch struct {
	pongs  int
	bars   []barBatch
	orders []orderEvent
	infos  []symXML
	ticks  []symTick
}

func (b batch) empty() bool {
	return b.pongs == 0 && len(b.bars) == 0 && len(b.orders) == 0 &&
		len(b.infos) == 0 && len(b.ticks) == 0
}

func (c *Conn) drain() batch {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b batch
	b.pongs = c.pongs
	c.pongs = 0

	for _, key := range c.barKeys {
		if bars := c.barQ[key]; len(bars) > 0 {
			b.bars = append(b.bars, barBatch{key: key, bars: bars})
			delete(c.barQ, key)
		}
	}
	c.barKeys = c.barKeys[:0]

	b.orders = c.orderQ
	c.orderQ = nil

	for _, sym := range c.infoSyms {
		b.infos = append(b.infos, symXML{sym: sym, xml: c.infoQ[sym]})
		delete(c.infoQ, sym)
	}
	c.infoSyms = c.infoSyms[:0]

	for _, sym := range c.tickSyms {
		b.ticks = append(b.ticks, symTick{sym: sym, tick: c.tickQ[sym]})
		delete(c.tickQ, sym)
	}
	c.tickSyms = c.tickSyms[:0]

	return b
}

func (c *Conn) senderLoop() {
	defer c.wg.Done()

	first := true
	for {
		if c.aborted() {
			return
		}

		b := c.drain()
		if b.empty() && !first {
			select {
			case <-c.signal:
			case <-time.After(senderWait):
			}
			continue
		}

		for i := 0; i < b.pongs; i++ {
			if !c.send(wire.PongXML()) {
				return
			}
		}
		for _, bb := range b.bars {
			if !c.sendBars(bb) {
				return
			}
		}
		for _, ev := range b.orders {
			if !c.send(ev.ord.ToXML(ev.action)) {
				return
			}
		}
		if first {
			first = false
			if !c.send(wire.StatusMessage{Status: wire.StatusInitialized}.ToXML()) {
				return
			}
		}
		for _, in := range b.infos {
			if !c.send(in.xml) {
				return
			}
		}
		for _, st := range b.ticks {
			if !c.send(wire.TickMessage{Symbol: st.sym, Tick: st.tick}.ToXML()) {
				return
			}
		}
	}
}

// sendBars writes a single pending bar as a bar message; two or more go as
// a bar_array header followed by raw records, in bounded chunks so one
// slow client cannot hold the write deadline open indefinitely.
func (c *Conn) sendBars(bb barBatch) bool {
	if len(bb.bars) == 1 {
		return c.send(wire.BarMessage{Symbol: bb.key.sym, Timeframe: bb.key.tf, Bar: bb.bars[0]}.ToXML())
	}

	header := wire.BarArrayMessage{Symbol: bb.key.sym, Timeframe: bb.key.tf, Count: len(bb.bars)}
	if !c.send(header.ToXML()) {
		return false
	}

	for n := 0; n < len(bb.bars); n += barArrayChunk {
		end := n + barArrayChunk
		if end > len(bb.bars) {
			end = len(bb.bars)
		}
		buf := make([]byte, 0, (end-n)*wire.BarRecordSize)
		for _, bar := range bb.bars[n:end] {
			buf = wire.AppendBarRecord(buf, bar)
		}
		if !c.write(buf) {
			return false
		}
	}
	return true
}

func (c *Conn) send(msg string) bool { return c.write([]byte(msg)) }

func (c *Conn) write(data []byte) bool {
	c.c.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := c.c.Write(data); err != nil {
		c.srv.log.Debugw("viewer_write_failed", "remote", c.remote, "err", err)
		c.abort()
		return false
	}
	return true
}

func (c *Conn) receiverLoop() {
	defer c.wg.Done()

	framer := wire.NewFramer(c.c)
	for {
		if c.aborted() {
			return
		}

		c.c.SetReadDeadline(time.Now().Add(readInterval))
		msg, err := framer.ReadMessage()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			c.abort()
			return
		}
		c.handle(msg)
	}
}

func (c *Conn) handle(msg []byte) {
	id, err := wire.PeekID(msg)
	if err != nil {
		c.srv.log.Warnw("viewer_bad_message", "remote", c.remote, "err", err)
		return
	}

	switch id {
	case wire.MsgPing:
		c.queuePong()
	case wire.MsgOptions:
		opts, err := wire.ParseOptions(msg)
		if err != nil {
			c.srv.log.Warnw("viewer_bad_options", "remote", c.remote, "err", err)
			return
		}
		if opts.Symbol != market.SymbolUndefined && opts.SpeedFactor > 0 {
			c.srv.SetOptions(opts.Symbol, opts.SpeedFactor)
		}
	default:
		c.srv.log.Debugw("viewer_unhandled_message", "remote", c.remote, "id", id)
	}
}
