package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kalaytan/fxsim/pkg/engine"
	"github.com/kalaytan/fxsim/pkg/market"
	"github.com/kalaytan/fxsim/pkg/order"
)

type idleStrategy struct{}

func (idleStrategy) SetEngine(*engine.Engine)                          {}
func (idleStrategy) OnTick(market.Symbol, market.Tick)                 {}
func (idleStrategy) OnBar(market.Symbol, market.Timeframe, market.Bar) {}

func startOps(t *testing.T, reg *engine.Registry) *Server {
	t.Helper()
	s := NewServer(reg, zap.NewNop().Sugar())
	require.NoError(t, s.Start("127.0.0.1:0"))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestHealthAndEngineList(t *testing.T) {
	reg := engine.NewRegistry()
	e := engine.New("eurusd", idleStrategy{}, zap.NewNop().Sugar())
	defer e.Shutdown()
	reg.Add(e)

	s := startOps(t, reg)
	base := fmt.Sprintf("http://%s", s.Addr())

	var health map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, base+"/health", &health))
	require.Equal(t, "ok", health["status"])

	var engines []EngineInfo
	require.Equal(t, http.StatusOK, getJSON(t, base+"/api/v1/engines", &engines))
	require.Len(t, engines, 1)
	require.Equal(t, "eurusd", engines[0].Symbol)
}

func TestEngineBarsEndpoint(t *testing.T) {
	reg := engine.NewRegistry()
	e := engine.New("eurusd", idleStrategy{}, zap.NewNop().Sugar())
	defer e.Shutdown()
	for i := 0; i < 5; i++ {
		e.Bars().PutBar(market.TF1h, market.Bar{O: 1, H: 2, L: 0.5, C: 1.5, T: int64(3600 * (i + 1))})
	}
	reg.Add(e)

	s := startOps(t, reg)
	base := fmt.Sprintf("http://%s", s.Addr())

	var bars []BarInfo
	require.Equal(t, http.StatusOK, getJSON(t, base+"/api/v1/engines/eurusd/bars?tf=60&n=3", &bars))
	require.Len(t, bars, 3)
	require.Equal(t, int64(3*3600), bars[0].T)

	var errResp ErrorResponse
	require.Equal(t, http.StatusBadRequest, getJSON(t, base+"/api/v1/engines/eurusd/bars?tf=7", &errResp))
	require.Equal(t, http.StatusNotFound, getJSON(t, base+"/api/v1/engines/gbpusd/bars?tf=60", &errResp))
}

func TestEngineStatsEndpoint(t *testing.T) {
	reg := engine.NewRegistry()
	e := engine.New("eurusd", idleStrategy{}, zap.NewNop().Sugar())
	defer e.Shutdown()
	reg.Add(e)

	s := startOps(t, reg)
	base := fmt.Sprintf("http://%s", s.Addr())

	var stats StatsResponse
	require.Equal(t, http.StatusOK, getJSON(t, base+"/api/v1/engines/eurusd/stats", &stats))
	require.Equal(t, "eurusd", stats.Symbol)
	require.Zero(t, stats.Closed.Count)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := engine.NewRegistry()
	s := startOps(t, reg)

	s.OnTick("eurusd", market.NewTick(1.1, 1.1002, time.Now()))
	o, err := order.New(order.Buy, "eurusd", 0.1, 1.1, 0, 0, 0)
	require.NoError(t, err)
	s.OnOrder(o, order.ActionSubmitted)

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", s.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := string(raw)
	require.Contains(t, body, "fxsim_ticks_processed_total")
	require.Contains(t, body, "fxsim_order_events_total")
}

func TestWebSocketTickBroadcast(t *testing.T) {
	reg := engine.NewRegistry()
	s := startOps(t, reg)

	url := fmt.Sprintf("ws://%s/ws", s.Addr())
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteJSON(WSSubscribeRequest{Op: "subscribe", Channels: []string{"ticks"}}))

	// the subscription is applied by the read pump; publish until it lands
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				s.OnTick("eurusd", market.NewTick(1.1, 1.1002, time.Now()))
				time.Sleep(10 * time.Millisecond)
			}
		}
	}()

	var ev WSTickEvent
	require.NoError(t, ws.ReadJSON(&ev))
	require.Equal(t, "tick", ev.Type)
	require.Equal(t, "eurusd", ev.Symbol)
	require.Equal(t, 1.1, ev.Bid)
}
