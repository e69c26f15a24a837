package viewer

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kalaytan/fxsim/pkg/engine"
	"github.com/kalaytan/fxsim/pkg/market"
	"github.com/kalaytan/fxsim/pkg/order"
	"github.com/kalaytan/fxsim/pkg/wire"
)

type noStrategy struct{}

func (noStrategy) SetEngine(*engine.Engine)                          {}
func (noStrategy) OnTick(market.Symbol, market.Tick)                 {}
func (noStrategy) OnBar(market.Symbol, market.Timeframe, market.Bar) {}

func startTestServer(t *testing.T, reg *engine.Registry) *Server {
	t.Helper()
	srv := NewServer("127.0.0.1:0", reg, zap.NewNop().Sugar())
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	return srv
}

// client wraps a framed test connection.
type client struct {
	c *net.TCPConn
	f *wire.Framer
}

func dialTest(t *testing.T, srv *Server) *client {
	t.Helper()
	nc, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { nc.Close() })
	return &client{c: nc.(*net.TCPConn), f: wire.NewFramer(nc)}
}

func (cl *client) read(t *testing.T) ([]byte, string) {
	t.Helper()
	cl.c.SetReadDeadline(time.Now().Add(5 * time.Second))
	msg, err := cl.f.ReadMessage()
	require.NoError(t, err)
	id, err := wire.PeekID(msg)
	require.NoError(t, err)
	return msg, id
}

func (cl *client) readRaw(t *testing.T, n int) []byte {
	t.Helper()
	cl.c.SetReadDeadline(time.Now().Add(5 * time.Second))
	data, err := cl.f.ReadRaw(n)
	require.NoError(t, err)
	return data
}

func TestLateJoinerGetsSnapshot(t *testing.T) {
	reg := engine.NewRegistry()
	srv := startTestServer(t, reg)

	e := engine.New("eurusd", noStrategy{}, zap.NewNop().Sugar(), engine.WithPublisher(srv))
	reg.Add(e)
	defer e.Shutdown()

	// history: 25 finalized hourly bars and an order that opened and closed
	base := time.Date(2023, 4, 7, 0, 0, 0, 0, time.UTC).Unix()
	for i := 0; i < 25; i++ {
		e.Bars().PutBar(market.TF1h, market.Bar{
			O: 1.1, H: 1.2, L: 1.0, C: 1.15, T: base + int64(i)*3600,
		})
	}
	o, err := order.New(order.Buy, "eurusd", 0.1, 1.1, 0, 0, 0)
	require.NoError(t, err)
	srv.OnOrder(o, order.ActionSubmitted)
	require.True(t, o.Open(market.NewTick(1.1000, 1.1002, time.Unix(base, 0).UTC())))
	srv.OnOrder(o, order.ActionOpened)
	srv.OnInfo("eurusd", "<message id=\"info\">\n  <symbol>eurusd</symbol>\n  <info_id>1</info_id>\n</message>")

	cl := dialTest(t, srv)

	// bars come first, batched: header then 25 raw records
	msg, id := cl.read(t)
	require.Equal(t, wire.MsgBarArray, id)
	hdr, err := wire.ParseBarArray(msg)
	require.NoError(t, err)
	require.Equal(t, 25, hdr.Count)
	require.Equal(t, market.TF1h, hdr.Timeframe)

	raw := cl.readRaw(t, hdr.Count*wire.BarRecordSize)
	first, err := wire.DecodeBarRecord(raw)
	require.NoError(t, err)
	require.Equal(t, base, first.T)

	// then the retained order history
	_, id = cl.read(t)
	require.Equal(t, wire.MsgOrder, id)
	msg, id = cl.read(t)
	require.Equal(t, wire.MsgOrder, id)
	got, action, err := order.FromXML(msg)
	require.NoError(t, err)
	require.Equal(t, order.ActionOpened, action)
	require.Equal(t, 1.1002, got.OpenPrice)

	// one-shot status after the first drain
	msg, id = cl.read(t)
	require.Equal(t, wire.MsgStatus, id)
	st, err := wire.ParseStatus(msg)
	require.NoError(t, err)
	require.Equal(t, wire.StatusInitialized, st.Status)

	// retained info closes the snapshot
	_, id = cl.read(t)
	require.Equal(t, wire.MsgInfo, id)
}

func TestSingleBarGoesAsBarMessage(t *testing.T) {
	reg := engine.NewRegistry()
	srv := startTestServer(t, reg)
	cl := dialTest(t, srv)

	_, id := cl.read(t)
	require.Equal(t, wire.MsgStatus, id)

	srv.OnBar("eurusd", market.TF1m, market.Bar{O: 1, H: 2, L: 0.5, C: 1.5, T: 1680854400})
	msg, id := cl.read(t)
	require.Equal(t, wire.MsgBar, id)
	bm, err := wire.ParseBar(msg)
	require.NoError(t, err)
	require.Equal(t, int64(1680854400), bm.Bar.T)
}

func TestTickCoalescing(t *testing.T) {
	reg := engine.NewRegistry()
	srv := startTestServer(t, reg)
	cl := dialTest(t, srv)

	_, id := cl.read(t)
	require.Equal(t, wire.MsgStatus, id)

	base := time.Date(2023, 4, 7, 9, 0, 0, 0, time.UTC)
	srv.OnTick("eurusd", market.NewTick(1.1012, 1.1014, base))
	msg, id := cl.read(t)
	require.Equal(t, wire.MsgTick, id)
	tm, err := wire.ParseTick(msg)
	require.NoError(t, err)
	require.Equal(t, 1.1012, tm.Tick.Bid)

	// same quote at the 3-decimal scale and an older tick are both dropped
	srv.OnTick("eurusd", market.NewTick(1.1016, 1.1018, base.Add(time.Second)))
	srv.OnTick("eurusd", market.NewTick(1.2200, 1.2202, base))
	// a genuinely new quote goes through
	srv.OnTick("eurusd", market.NewTick(1.1030, 1.1032, base.Add(2*time.Second)))

	msg, id = cl.read(t)
	require.Equal(t, wire.MsgTick, id)
	tm, err = wire.ParseTick(msg)
	require.NoError(t, err)
	require.Equal(t, 1.1030, tm.Tick.Bid)
}

func TestPingPong(t *testing.T) {
	reg := engine.NewRegistry()
	srv := startTestServer(t, reg)
	cl := dialTest(t, srv)

	_, id := cl.read(t)
	require.Equal(t, wire.MsgStatus, id)

	_, err := cl.c.Write([]byte(wire.PingXML()))
	require.NoError(t, err)

	_, id = cl.read(t)
	require.Equal(t, wire.MsgPong, id)
}

func TestOptionsReachFeederSource(t *testing.T) {
	reg := engine.NewRegistry()
	srv := startTestServer(t, reg)
	cl := dialTest(t, srv)

	_, id := cl.read(t)
	require.Equal(t, wire.MsgStatus, id)

	_, err := cl.c.Write([]byte(wire.OptionsXML("eurusd", 70)))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return srv.SpeedFactor("eurusd") == 675
	}, 5*time.Second, 10*time.Millisecond)
	require.Zero(t, srv.SpeedFactor("usdjpy"))
}

func TestDeadClientReaped(t *testing.T) {
	reg := engine.NewRegistry()
	srv := startTestServer(t, reg)
	cl := dialTest(t, srv)

	_, id := cl.read(t)
	require.Equal(t, wire.MsgStatus, id)
	require.Equal(t, 1, srv.ConnCount())

	cl.c.Close()
	require.Eventually(t, func() bool {
		return srv.ConnCount() == 0
	}, 5*time.Second, 10*time.Millisecond)
}
