package wire

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kalaytan/fxsim/pkg/market"
)

// Message ids used on the stream. Order messages carry their own id and are
// produced and parsed by the order package.
const (
	MsgPing     = "ping"
	MsgPong     = "pong"
	MsgTick     = "tick"
	MsgBar      = "bar"
	MsgBarArray = "bar_array"
	MsgStatus   = "status"
	MsgOptions  = "options"
	MsgInfo     = "info"
	MsgOrder    = "order"
)

// Status codes carried by status messages.
const (
	StatusUndefined   = 0
	StatusInitialized = 1
)

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 7, 64)
}

// PeekID extracts the message id attribute without decoding the body.
func PeekID(data []byte) (string, error) {
	var msg struct {
		XMLName xml.Name `xml:"message"`
		ID      string   `xml:"id,attr"`
	}
	if err := xml.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("wire: parse message: %w", err)
	}
	if msg.ID == "" {
		return "", fmt.Errorf("wire: message without id")
	}
	return msg.ID, nil
}

// PingXML and PongXML are the fixed liveness messages.
func PingXML() string { return "<message id=\"ping\">\n</message>" }
func PongXML() string { return "<message id=\"pong\">\n</message>" }

// TickMessage publishes the latest quote for a symbol. Time is epoch
// milliseconds on the wire.
type TickMessage struct {
	Symbol market.Symbol
	Tick   market.Tick
}

func (m TickMessage) ToXML() string {
	var b strings.Builder
	b.WriteString("<message id=\"tick\">\n")
	fmt.Fprintf(&b, "  <symbol>%s</symbol>\n", m.Symbol)
	b.WriteString("  <tick_data>\n")
	fmt.Fprintf(&b, "    <bid>%s</bid>\n", fmtFloat(m.Tick.Bid))
	fmt.Fprintf(&b, "    <ask>%s</ask>\n", fmtFloat(m.Tick.Ask))
	fmt.Fprintf(&b, "    <time>%d</time>\n", m.Tick.Time.UnixMilli())
	b.WriteString("  </tick_data>\n")
	b.WriteString("</message>")
	return b.String()
}

// ParseTick decodes a tick message. All three fields are mandatory.
func ParseTick(data []byte) (TickMessage, error) {
	var raw struct {
		XMLName xml.Name `xml:"message"`
		Symbol  string   `xml:"symbol"`
		Data    *struct {
			Bid  *float64 `xml:"bid"`
			Ask  *float64 `xml:"ask"`
			Time *int64   `xml:"time"`
		} `xml:"tick_data"`
	}
	if err := xml.Unmarshal(data, &raw); err != nil {
		return TickMessage{}, fmt.Errorf("wire: tick: %w", err)
	}
	if raw.Symbol == "" || raw.Data == nil ||
		raw.Data.Bid == nil || raw.Data.Ask == nil || raw.Data.Time == nil {
		return TickMessage{}, fmt.Errorf("wire: tick: missing field")
	}
	return TickMessage{
		Symbol: market.ParseSymbol(raw.Symbol),
		Tick:   market.NewTick(*raw.Data.Bid, *raw.Data.Ask, time.UnixMilli(*raw.Data.Time).UTC()),
	}, nil
}

// BarMessage publishes one finalized bar. The timeframe travels as whole
// minutes and the bar time as epoch seconds.
type BarMessage struct {
	Symbol    market.Symbol
	Timeframe market.Timeframe
	Bar       market.Bar
}

func (m BarMessage) ToXML() string {
	var b strings.Builder
	b.WriteString("<message id=\"bar\">\n")
	fmt.Fprintf(&b, "  <symbol>%s</symbol>\n", m.Symbol)
	fmt.Fprintf(&b, "  <time_frame>%d</time_frame>\n", m.Timeframe.Minutes())
	b.WriteString("  <bar_data>\n")
	fmt.Fprintf(&b, "    <o>%s</o>\n", fmtFloat(m.Bar.O))
	fmt.Fprintf(&b, "    <h>%s</h>\n", fmtFloat(m.Bar.H))
	fmt.Fprintf(&b, "    <l>%s</l>\n", fmtFloat(m.Bar.L))
	fmt.Fprintf(&b, "    <c>%s</c>\n", fmtFloat(m.Bar.C))
	fmt.Fprintf(&b, "    <t>%d</t>\n", m.Bar.T)
	b.WriteString("  </bar_data>\n")
	b.WriteString("</message>")
	return b.String()
}

func ParseBar(data []byte) (BarMessage, error) {
	var raw struct {
		XMLName   xml.Name `xml:"message"`
		Symbol    string   `xml:"symbol"`
		Timeframe *int     `xml:"time_frame"`
		Data      *struct {
			O *float64 `xml:"o"`
			H *float64 `xml:"h"`
			L *float64 `xml:"l"`
			C *float64 `xml:"c"`
			T *int64   `xml:"t"`
		} `xml:"bar_data"`
	}
	if err := xml.Unmarshal(data, &raw); err != nil {
		return BarMessage{}, fmt.Errorf("wire: bar: %w", err)
	}
	if raw.Symbol == "" || raw.Timeframe == nil || raw.Data == nil ||
		raw.Data.O == nil || raw.Data.H == nil || raw.Data.L == nil ||
		raw.Data.C == nil || raw.Data.T == nil {
		return BarMessage{}, fmt.Errorf("wire: bar: missing field")
	}
	tf, ok := market.TimeframeFromMinutes(*raw.Timeframe)
	if !ok {
		return BarMessage{}, fmt.Errorf("wire: bar: unknown timeframe %d", *raw.Timeframe)
	}
	return BarMessage{
		Symbol:    market.ParseSymbol(raw.Symbol),
		Timeframe: tf,
		Bar: market.Bar{
			O: *raw.Data.O, H: *raw.Data.H, L: *raw.Data.L, C: *raw.Data.C,
			T: *raw.Data.T,
		},
	}, nil
}

// BarArrayMessage is the header preceding Count raw binary bar records sent
// back-to-back on the same stream.
type BarArrayMessage struct {
	Symbol    market.Symbol
	Timeframe market.Timeframe
	Count     int
}

func (m BarArrayMessage) ToXML() string {
	var b strings.Builder
	b.WriteString("<message id=\"bar_array\">\n")
	fmt.Fprintf(&b, "  <symbol>%s</symbol>\n", m.Symbol)
	fmt.Fprintf(&b, "  <time_frame>%d</time_frame>\n", m.Timeframe.Minutes())
	fmt.Fprintf(&b, "  <count>%d</count>\n", m.Count)
	b.WriteString("</message>")
	return b.String()
}

func ParseBarArray(data []byte) (BarArrayMessage, error) {
	var raw struct {
		XMLName   xml.Name `xml:"message"`
		Symbol    string   `xml:"symbol"`
		Timeframe *int     `xml:"time_frame"`
		Count     *int     `xml:"count"`
	}
	if err := xml.Unmarshal(data, &raw); err != nil {
		return BarArrayMessage{}, fmt.Errorf("wire: bar_array: %w", err)
	}
	if raw.Symbol == "" || raw.Timeframe == nil || raw.Count == nil || *raw.Count == 0 {
		return BarArrayMessage{}, fmt.Errorf("wire: bar_array: missing field")
	}
	tf, ok := market.TimeframeFromMinutes(*raw.Timeframe)
	if !ok {
		return BarArrayMessage{}, fmt.Errorf("wire: bar_array: unknown timeframe %d", *raw.Timeframe)
	}
	return BarArrayMessage{
		Symbol:    market.ParseSymbol(raw.Symbol),
		Timeframe: tf,
		Count:     *raw.Count,
	}, nil
}

// StatusMessage reports a server state transition to the viewer.
type StatusMessage struct {
	Status int
}

func (m StatusMessage) ToXML() string {
	var b strings.Builder
	b.WriteString("<message id=\"status\">\n")
	fmt.Fprintf(&b, "  <status>%d</status>\n", m.Status)
	b.WriteString("</message>")
	return b.String()
}

func ParseStatus(data []byte) (StatusMessage, error) {
	var raw struct {
		XMLName xml.Name `xml:"message"`
		Status  *int     `xml:"status"`
	}
	if err := xml.Unmarshal(data, &raw); err != nil {
		return StatusMessage{}, fmt.Errorf("wire: status: %w", err)
	}
	if raw.Status == nil {
		return StatusMessage{}, fmt.Errorf("wire: status: missing field")
	}
	return StatusMessage{Status: *raw.Status}, nil
}

// OptionsMessage carries per-symbol replay settings from the viewer. On the
// wire the speed travels as a slider percentage; ParseOptions already maps
// it through the speed-factor table, so SpeedFactor is the multiplier the
// feeder consumes. An absent symbol leaves Symbol undefined.
type OptionsMessage struct {
	Symbol      market.Symbol
	SpeedFactor int
}

// OptionsXML renders an options message from the viewer's point of view,
// with the raw slider percentage.
func OptionsXML(sym market.Symbol, percent int) string {
	var b strings.Builder
	b.WriteString("<message id=\"options\">\n")
	if sym != market.SymbolUndefined {
		fmt.Fprintf(&b, "  <symbol>%s</symbol>\n", sym)
	}
	fmt.Fprintf(&b, "  <speed>%d</speed>\n", percent)
	b.WriteString("</message>")
	return b.String()
}

func ParseOptions(data []byte) (OptionsMessage, error) {
	var raw struct {
		XMLName xml.Name `xml:"message"`
		Symbol  string   `xml:"symbol"`
		Speed   *int     `xml:"speed"`
	}
	if err := xml.Unmarshal(data, &raw); err != nil {
		return OptionsMessage{}, fmt.Errorf("wire: options: %w", err)
	}

	var out OptionsMessage
	if raw.Symbol != "" {
		out.Symbol = market.ParseSymbol(raw.Symbol)
	}
	if raw.Speed != nil {
		out.SpeedFactor = SpeedFactorFromPercent(*raw.Speed)
	}
	return out, nil
}
