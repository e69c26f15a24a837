// Package ops is the operational HTTP surface: a REST read API over the
// engine registry, prometheus metrics and a websocket feed of simulation
// events.
package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/kalaytan/fxsim/pkg/engine"
	"github.com/kalaytan/fxsim/pkg/market"
	"github.com/kalaytan/fxsim/pkg/order"
)

// Server is the ops HTTP server. It also implements engine.Publisher so it
// can count events and feed the websocket hub; wire it next to the viewer
// server through engine.MultiPublisher.
type Server struct {
	reg *engine.Registry
	log *zap.SugaredLogger

	router  *mux.Router
	hub     *Hub
	metrics *Metrics
	promReg *prometheus.Registry
	http    *http.Server
	addr    net.Addr
}

func NewServer(reg *engine.Registry, log *zap.SugaredLogger) *Server {
	m, promReg := NewMetrics()
	s := &Server{
		reg:     reg,
		log:     log,
		router:  mux.NewRouter(),
		hub:     NewHub(log),
		metrics: m,
		promReg: promReg,
	}
	s.setupRoutes()
	return s
}

// Metrics exposes the counter set for out-of-band updates, such as the
// viewer connection gauge.
func (s *Server) Metrics() *Metrics { return s.metrics }

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/engines", s.handleListEngines).Methods("GET")
	api.HandleFunc("/engines/{symbol}/stats", s.handleEngineStats).Methods("GET")
	api.HandleFunc("/engines/{symbol}/bars", s.handleEngineBars).Methods("GET")

	s.router.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start begins serving on addr.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("ops: listen %s: %w", addr, err)
	}
	s.addr = ln.Addr()

	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	s.http = &http.Server{Handler: c.Handler(s.router)}

	s.log.Infow("ops_listening", "addr", ln.Addr().String())
	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Errorw("ops_serve_failed", "err", err)
		}
	}()
	return nil
}

// Addr returns the bound listener address, for tests that listen on :0.
func (s *Server) Addr() net.Addr { return s.addr }

// Stop shuts the HTTP server and the hub down.
func (s *Server) Stop(ctx context.Context) {
	if s.http != nil {
		s.http.Shutdown(ctx)
	}
	s.hub.Stop()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{
		"status":  "ok",
		"engines": len(s.reg.All()),
		"time":    time.Now().UnixMilli(),
	})
}

func (s *Server) handleListEngines(w http.ResponseWriter, r *http.Request) {
	engines := s.reg.All()
	sort.Slice(engines, func(i, j int) bool { return engines[i].Symbol() < engines[j].Symbol() })

	out := make([]EngineInfo, 0, len(engines))
	for _, e := range engines {
		tick := e.LatestTick()
		open := e.CalcOpenTradesStats(tick)
		closed := e.CalcClosedTradesStats()

		info := EngineInfo{
			Symbol:       e.Symbol().String(),
			Bid:          tick.Bid,
			Ask:          tick.Ask,
			OpenTrades:   open.Count,
			ClosedTrades: closed.Count,
		}
		if !tick.Time.IsZero() {
			info.TickTime = tick.Time.UnixMilli()
		}
		out = append(out, info)
	}
	respondJSON(w, out)
}

func (s *Server) handleEngineStats(w http.ResponseWriter, r *http.Request) {
	e, ok := s.reg.Get(market.ParseSymbol(mux.Vars(r)["symbol"]))
	if !ok {
		respondError(w, http.StatusNotFound, "engine not found", "")
		return
	}

	tick := e.LatestTick()
	open := e.CalcOpenTradesStats(tick)
	closed := e.CalcClosedTradesStats()

	resp := StatsResponse{
		Symbol: e.Symbol().String(),
		Open: OpenStats{
			Count:          open.Count,
			Volume:         open.Volume,
			FloatingProfit: open.FloatingProfit,
		},
		Closed: ClosedStats{
			Count:         closed.Count,
			Wins:          closed.Wins,
			Losses:        closed.Losses,
			Profit:        closed.Profit,
			MaxCumProfit:  closed.MaxCumProfit,
			MinCumProfit:  closed.MinCumProfit,
			MaxWinStreak:  closed.MaxWinStreak,
			MaxLossStreak: closed.MaxLossStreak,
		},
	}
	if !open.FirstOpenTime.IsZero() {
		resp.Open.FirstOpenTime = open.FirstOpenTime.UnixMilli()
	}
	if !closed.FirstOpenTime.IsZero() {
		resp.Closed.FirstOpenTime = closed.FirstOpenTime.UnixMilli()
	}
	if !closed.LastCloseTime.IsZero() {
		resp.Closed.LastCloseTime = closed.LastCloseTime.UnixMilli()
	}
	respondJSON(w, resp)
}

func (s *Server) handleEngineBars(w http.ResponseWriter, r *http.Request) {
	e, ok := s.reg.Get(market.ParseSymbol(mux.Vars(r)["symbol"]))
	if !ok {
		respondError(w, http.StatusNotFound, "engine not found", "")
		return
	}

	minutes, err := strconv.Atoi(r.URL.Query().Get("tf"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad timeframe", err.Error())
		return
	}
	tf, ok := market.TimeframeFromMinutes(minutes)
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown timeframe", fmt.Sprintf("%d minutes", minutes))
		return
	}

	n := 100
	if q := r.URL.Query().Get("n"); q != "" {
		if n, err = strconv.Atoi(q); err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "bad count", q)
			return
		}
	}

	bars, _ := e.Bars().LastBars(tf, n)
	out := make([]BarInfo, 0, len(bars))
	for _, b := range bars {
		out = append(out, BarInfo{O: b.O, H: b.H, L: b.L, C: b.C, T: b.T})
	}
	respondJSON(w, out)
}

// OnTick implements engine.Publisher.
func (s *Server) OnTick(sym market.Symbol, tick market.Tick) {
	s.metrics.TicksProcessed.WithLabelValues(sym.String()).Inc()
	sent := s.hub.Broadcast("ticks", WSTickEvent{
		Type:   "tick",
		Symbol: sym.String(),
		Bid:    tick.Bid,
		Ask:    tick.Ask,
		Time:   tick.Time.UnixMilli(),
	})
	s.metrics.WSMessagesSent.Add(float64(sent))
}

// OnBar implements engine.Publisher.
func (s *Server) OnBar(sym market.Symbol, tf market.Timeframe, bar market.Bar) {
	s.metrics.BarsProcessed.WithLabelValues(sym.String(), strconv.Itoa(tf.Minutes())).Inc()
}

// OnOrder implements engine.Publisher.
func (s *Server) OnOrder(o *order.Order, action order.Action) {
	s.metrics.OrderEvents.WithLabelValues(o.Symbol.String(), action.String()).Inc()
	sent := s.hub.Broadcast("orders", WSOrderEvent{
		Type:       "order",
		Action:     action.String(),
		ID:         o.ID,
		Kind:       o.Kind.String(),
		Symbol:     o.Symbol.String(),
		Volume:     o.Volume,
		Price:      o.Price,
		OpenPrice:  o.OpenPrice,
		ClosePrice: o.ClosePrice,
		Comment:    o.Comment,
	})
	s.metrics.WSMessagesSent.Add(float64(sent))
}

// OnInfo implements engine.Publisher; info blobs stay on the viewer wire.
func (s *Server) OnInfo(market.Symbol, string) {}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg, Details: details})
}
