// Package viewer streams the simulation to TCP clients speaking the XML
// message protocol: bar history and live bars, order lifecycle events,
// info blobs and coalesced ticks. Clients send ping and options messages
// back.
package viewer

import (
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kalaytan/fxsim/pkg/engine"
	"github.com/kalaytan/fxsim/pkg/market"
	"github.com/kalaytan/fxsim/pkg/order"
)

const acceptInterval = 100 * time.Millisecond

// orderEvent is one retained lifecycle notification.
type orderEvent struct {
	ord    *order.Order
	action order.Action
}

// Server owns the listener and the connection set. It implements
// engine.Publisher, so engines publish straight into it, and
// feed.OptionsSource, so feeders pick up viewer-supplied speed factors.
//
// Publishes are fanned out best effort: a slow or dead client is marked
// aborted and reaped by the cleanup loop, never blocking the engines.
type Server struct {
	addr string
	reg  *engine.Registry
	log  *zap.SugaredLogger

	ln net.Listener

	mu      sync.Mutex
	conns   []*Conn
	orders  map[market.Symbol][]orderEvent
	infos   map[market.Symbol]string
	options map[market.Symbol]int

	abortCh chan struct{}
	quit    chan struct{}
	wg      sync.WaitGroup
}

func NewServer(addr string, reg *engine.Registry, log *zap.SugaredLogger) *Server {
	return &Server{
		addr:    addr,
		reg:     reg,
		log:     log,
		orders:  make(map[market.Symbol][]orderEvent),
		infos:   make(map[market.Symbol]string),
		options: make(map[market.Symbol]int),
		abortCh: make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
}

// Start begins listening and spawns the accept and cleanup loops.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("viewer: listen %s: %w", s.addr, err)
	}
	s.ln = ln
	s.log.Infow("viewer_listening", "addr", ln.Addr().String())

	s.wg.Add(2)
	go s.acceptLoop()
	go s.cleanupLoop()
	return nil
}

// Stop closes the listener, aborts every connection and joins the loops.
func (s *Server) Stop() {
	close(s.quit)
	if s.ln != nil {
		s.ln.Close()
	}

	s.mu.Lock()
	conns := append([]*Conn(nil), s.conns...)
	s.mu.Unlock()
	for _, c := range conns {
		c.abort()
	}
	s.wg.Wait()

	for _, c := range conns {
		c.join()
	}
}

// Addr returns the bound listener address, for tests that listen on :0.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		default:
		}

		if tl, ok := s.ln.(*net.TCPListener); ok {
			tl.SetDeadline(time.Now().Add(acceptInterval))
		}
		nc, err := s.ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-s.quit:
				return
			default:
				s.log.Warnw("viewer_accept_failed", "err", err)
				continue
			}
		}

		c := newConn(nc, s)
		s.seed(c)

		s.mu.Lock()
		s.conns = append(s.conns, c)
		n := len(s.conns)
		s.mu.Unlock()

		c.start()
		s.log.Infow("viewer_connected", "remote", nc.RemoteAddr().String(), "conns", n)
	}
}

// seed queues the full current state for a late joiner: every engine's bar
// history per timeframe, the retained order events and the latest info.
func (s *Server) seed(c *Conn) {
	for _, e := range s.reg.All() {
		sym := e.Symbol()
		for _, tf := range market.Timeframes() {
			if bars, ok := e.Bars().Bars(tf); ok {
				for _, b := range bars {
					c.queueBar(sym, tf, b)
				}
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evs := range s.orders {
		for _, ev := range evs {
			c.queueOrder(ev.ord, ev.action)
		}
	}
	for sym, xml := range s.infos {
		c.queueInfo(sym, xml)
	}
}

// cleanupLoop reaps aborted connections when the abort signal fires.
func (s *Server) cleanupLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case <-s.abortCh:
		}

		var dead []*Conn
		s.mu.Lock()
		kept := s.conns[:0]
		for _, c := range s.conns {
			if c.aborted() {
				dead = append(dead, c)
				continue
			}
			kept = append(kept, c)
		}
		s.conns = kept
		s.mu.Unlock()

		for _, c := range dead {
			c.join()
			s.log.Infow("viewer_disconnected", "remote", c.remote)
		}
	}
}

func (s *Server) signalAbort() {
	select {
	case s.abortCh <- struct{}{}:
	default:
	}
}

func (s *Server) snapshotConns() []*Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Conn(nil), s.conns...)
}

// ConnCount reports live connections.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// OnTick implements engine.Publisher.
func (s *Server) OnTick(sym market.Symbol, tick market.Tick) {
	for _, c := range s.snapshotConns() {
		c.queueTick(sym, tick)
	}
}

// OnBar implements engine.Publisher.
func (s *Server) OnBar(sym market.Symbol, tf market.Timeframe, bar market.Bar) {
	for _, c := range s.snapshotConns() {
		c.queueBar(sym, tf, bar)
	}
}

// OnOrder implements engine.Publisher. Events are retained so late joiners
// see the whole order history.
func (s *Server) OnOrder(o *order.Order, action order.Action) {
	ev := orderEvent{ord: o.Clone(), action: action}
	s.mu.Lock()
	s.orders[o.Symbol] = append(s.orders[o.Symbol], ev)
	s.mu.Unlock()

	for _, c := range s.snapshotConns() {
		c.queueOrder(ev.ord, ev.action)
	}
}

// OnInfo implements engine.Publisher. Only the latest blob per symbol is
// retained.
func (s *Server) OnInfo(sym market.Symbol, xml string) {
	s.mu.Lock()
	s.infos[sym] = xml
	s.mu.Unlock()

	for _, c := range s.snapshotConns() {
		c.queueInfo(sym, xml)
	}
}

// SetOptions records a viewer-supplied speed factor for a symbol.
func (s *Server) SetOptions(sym market.Symbol, speedFactor int) {
	s.mu.Lock()
	s.options[sym] = speedFactor
	s.mu.Unlock()
	s.log.Infow("viewer_options", "symbol", sym.String(), "speed_factor", speedFactor)
}

// SpeedFactor implements feed.OptionsSource; 0 means no override set.
func (s *Server) SpeedFactor(sym market.Symbol) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.options[sym]
}
