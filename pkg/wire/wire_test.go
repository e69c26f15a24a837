package wire

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kalaytan/fxsim/pkg/market"
)

// chunkReader hands out at most n bytes per Read to force reassembly.
type chunkReader struct {
	data []byte
	n    int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.n
	if n > len(c.data) {
		n = len(c.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func TestFramerSplitMessage(t *testing.T) {
	msg := "<message id=\"ping\">\n</message>"
	f := NewFramer(&chunkReader{data: []byte(msg), n: 3})

	got, err := f.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, msg, string(got))
	require.Zero(t, f.Buffered())
}

func TestFramerMultipleMessagesOneRead(t *testing.T) {
	first := "<message id=\"ping\">\n</message>"
	second := "<message id=\"status\">\n  <status>1</status>\n</message>"
	f := NewFramer(strings.NewReader(first + second))

	got, err := f.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, first, string(got))
	require.Equal(t, len(second), f.Buffered())

	got, err = f.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, second, string(got))

	_, err = f.ReadMessage()
	require.ErrorIs(t, err, io.EOF)
}

func TestFramerReadRaw(t *testing.T) {
	msg := "<message id=\"ping\">\n</message>"
	raw := "0123456789"
	f := NewFramer(&chunkReader{data: []byte(msg + raw + msg), n: 7})

	got, err := f.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, msg, string(got))

	bytes, err := f.ReadRaw(len(raw))
	require.NoError(t, err)
	require.Equal(t, raw, string(bytes))

	got, err = f.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, msg, string(got))
}

func TestSpeedFactorFromPercent(t *testing.T) {
	cases := []struct {
		percent, want int
	}{
		{0, 1},
		{10, 60},
		{25, 180},
		{40, 300},
		{50, 450},
		{60, 600},
		{70, 675},
		{100, 900},
		{-1, 0},
		{101, 0},
	}
	for _, tc := range cases {
		if got := SpeedFactorFromPercent(tc.percent); got != tc.want {
			t.Errorf("SpeedFactorFromPercent(%d) = %d, want %d", tc.percent, got, tc.want)
		}
	}
}

func TestPeekID(t *testing.T) {
	id, err := PeekID([]byte(PingXML()))
	require.NoError(t, err)
	require.Equal(t, MsgPing, id)

	_, err = PeekID([]byte("<message>\n</message>"))
	require.Error(t, err)
}

func TestTickRoundtrip(t *testing.T) {
	ts := time.Date(2023, 4, 7, 9, 30, 0, 0, time.UTC)
	in := TickMessage{
		Symbol: "eurusd",
		Tick:   market.NewTick(1.09123, 1.09131, ts),
	}

	out, err := ParseTick([]byte(in.ToXML()))
	require.NoError(t, err)
	require.Equal(t, in.Symbol, out.Symbol)
	require.Equal(t, in.Tick.Bid, out.Tick.Bid)
	require.Equal(t, in.Tick.Ask, out.Tick.Ask)
	require.True(t, in.Tick.Time.Equal(out.Tick.Time))
}

func TestParseTickMissingField(t *testing.T) {
	_, err := ParseTick([]byte("<message id=\"tick\">\n  <symbol>eurusd</symbol>\n</message>"))
	require.Error(t, err)
}

func TestBarRoundtrip(t *testing.T) {
	in := BarMessage{
		Symbol:    "usdjpy",
		Timeframe: market.TF5m,
		Bar:       market.Bar{O: 131.505, H: 131.52, L: 131.49, C: 131.51, T: 1680860700},
	}
	out, err := ParseBar([]byte(in.ToXML()))
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestBarArrayRoundtrip(t *testing.T) {
	in := BarArrayMessage{Symbol: "eurusd", Timeframe: market.TF1h, Count: 10}
	out, err := ParseBarArray([]byte(in.ToXML()))
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestStatusRoundtrip(t *testing.T) {
	out, err := ParseStatus([]byte(StatusMessage{Status: StatusInitialized}.ToXML()))
	require.NoError(t, err)
	require.Equal(t, StatusInitialized, out.Status)
}

func TestParseOptionsMapsSpeed(t *testing.T) {
	opts, err := ParseOptions([]byte(OptionsXML("eurusd", 70)))
	require.NoError(t, err)
	require.Equal(t, market.Symbol("eurusd"), opts.Symbol)
	require.Equal(t, 675, opts.SpeedFactor)
}

func TestBarRecordRoundtrip(t *testing.T) {
	in := market.Bar{O: 1.1, H: 1.2, L: 1.05, C: 1.15, T: 1680860700}
	buf := EncodeBarRecord(in)
	require.Len(t, buf, BarRecordSize)

	out, err := DecodeBarRecord(buf)
	require.NoError(t, err)
	require.Equal(t, in, out)

	_, err = DecodeBarRecord(buf[:BarRecordSize-1])
	require.Error(t, err)
}
