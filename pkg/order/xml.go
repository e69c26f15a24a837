package order

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kalaytan/fxsim/pkg/market"
)

// The order wire form is a <message id="order"> fragment shared with the
// viewer protocol. Serialization is hand-built (ordering and optional-field
// suppression are part of the format); parsing goes through encoding/xml
// and is permissive about optional fields but strict about the type tag and
// the mandatory symbol/volume/order_price children.

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 7, 64)
}

// ToXML renders the order as one wire message. With ActionUndefined no
// action child is emitted. For ActionOpened the close-side fields are
// suppressed even when set.
func (o *Order) ToXML(action Action) string {
	var b strings.Builder

	b.WriteString("<message id=\"order\">\n")
	fmt.Fprintf(&b, "  <order id=\"%d\" type=\"%s\">\n", o.ID, o.Kind)

	if action != ActionUndefined {
		fmt.Fprintf(&b, "    <action>%s</action>\n", action)
	}

	fmt.Fprintf(&b, "    <symbol>%s</symbol>\n", o.Symbol)

	if o.Volume > 0 {
		fmt.Fprintf(&b, "    <volume>%s</volume>\n", fmtFloat(o.Volume))
	}

	fmt.Fprintf(&b, "    <order_price>%s</order_price>\n", fmtFloat(o.Price))

	if o.OpenPrice > 0 {
		fmt.Fprintf(&b, "    <open_price>%s</open_price>\n", fmtFloat(o.OpenPrice))
	}
	if action != ActionOpened && o.ClosePrice > 0 {
		fmt.Fprintf(&b, "    <close_price>%s</close_price>\n", fmtFloat(o.ClosePrice))
	}
	if o.HasStopLoss() {
		fmt.Fprintf(&b, "    <stop_loss>%s</stop_loss>\n", fmtFloat(o.StopLoss))
	}
	if o.HasTakeProfit() {
		fmt.Fprintf(&b, "    <take_profit>%s</take_profit>\n", fmtFloat(o.TakeProfit))
	}
	if !o.OpenTime.IsZero() {
		fmt.Fprintf(&b, "    <open_time>%d</open_time>\n", o.OpenTime.UnixMilli())
	}
	if action != ActionOpened && !o.CloseTime.IsZero() {
		fmt.Fprintf(&b, "    <close_time>%d</close_time>\n", o.CloseTime.UnixMilli())
	}
	if o.Comment != "" {
		fmt.Fprintf(&b, "    <comment>%s</comment>\n", xmlEscape(o.Comment))
	}

	b.WriteString("  </order>\n")
	b.WriteString("</message>")
	return b.String()
}

func xmlEscape(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}

type xmlOrderMessage struct {
	XMLName xml.Name     `xml:"message"`
	ID      string       `xml:"id,attr"`
	Order   *xmlOrderRec `xml:"order"`
}

type xmlOrderRec struct {
	ID         uint64   `xml:"id,attr"`
	Type       string   `xml:"type,attr"`
	Action     string   `xml:"action"`
	Symbol     string   `xml:"symbol"`
	Volume     *float64 `xml:"volume"`
	OrderPrice *float64 `xml:"order_price"`
	StopLoss   *float64 `xml:"stop_loss"`
	TakeProfit *float64 `xml:"take_profit"`
	OpenPrice  *float64 `xml:"open_price"`
	ClosePrice *float64 `xml:"close_price"`
	OpenTime   *int64   `xml:"open_time"`
	CloseTime  *int64   `xml:"close_time"`
	Comment    *string  `xml:"comment"`
}

// FromXML parses one order wire message back into an order, reapplying the
// construction-time validation. Missing optional children stay unset; an
// unknown type tag, a wrong message id or a missing mandatory child is an
// error.
func FromXML(data []byte) (*Order, Action, error) {
	var msg xmlOrderMessage
	if err := xml.Unmarshal(data, &msg); err != nil {
		return nil, ActionUndefined, fmt.Errorf("order: parse: %w", err)
	}
	if msg.ID != "order" {
		return nil, ActionUndefined, fmt.Errorf("order: unexpected message id %q", msg.ID)
	}
	if msg.Order == nil {
		return nil, ActionUndefined, fmt.Errorf("order: missing order element")
	}

	rec := msg.Order

	kind, ok := KindFromString(rec.Type)
	if !ok {
		return nil, ActionUndefined, fmt.Errorf("order: unknown type %q", rec.Type)
	}
	if rec.Symbol == "" {
		return nil, ActionUndefined, fmt.Errorf("order: missing symbol")
	}
	if rec.Volume == nil {
		return nil, ActionUndefined, fmt.Errorf("order: missing volume")
	}
	if rec.OrderPrice == nil {
		return nil, ActionUndefined, fmt.Errorf("order: missing order_price")
	}

	var sl, tp float64
	if rec.StopLoss != nil {
		sl = *rec.StopLoss
	}
	if rec.TakeProfit != nil {
		tp = *rec.TakeProfit
	}

	o, err := New(kind, market.ParseSymbol(rec.Symbol), *rec.Volume, *rec.OrderPrice, sl, tp, rec.ID)
	if err != nil {
		return nil, ActionUndefined, err
	}

	if rec.OpenPrice != nil {
		o.OpenPrice = *rec.OpenPrice
	}
	if rec.ClosePrice != nil {
		o.ClosePrice = *rec.ClosePrice
	}
	if rec.OpenTime != nil && *rec.OpenTime > 0 {
		o.OpenTime = time.UnixMilli(*rec.OpenTime).UTC()
	}
	if rec.CloseTime != nil && *rec.CloseTime > 0 {
		o.CloseTime = time.UnixMilli(*rec.CloseTime).UTC()
	}
	if rec.Comment != nil {
		o.Comment = *rec.Comment
	}

	return o, ActionFromString(rec.Action), nil
}
