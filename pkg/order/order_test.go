package order

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kalaytan/fxsim/pkg/market"
)

func at(sec int) time.Time {
	return time.Date(2023, 4, 7, 9, 0, sec, 0, time.UTC)
}

func TestNewValidation(t *testing.T) {
	cases := []struct {
		name    string
		kind    Kind
		volume  float64
		price   float64
		sl, tp  float64
		wantErr bool
	}{
		{"buy ok", Buy, 0.1, 1.1, 1.09, 1.11, false},
		{"buy no sl/tp", Buy, 0.1, 1.1, 0, 0, false},
		{"volume too small", Buy, 0.009, 1.1, 0, 0, true},
		{"zero price", Buy, 0.1, 0, 0, 0, true},
		{"buy sl above price", Buy, 0.1, 1.1, 1.12, 0, true},
		{"buy sl at price", Buy, 0.1, 1.1, 1.1, 0, true},
		{"buy tp below price", Buy, 0.1, 1.1, 0, 1.09, true},
		{"sell ok", Sell, 0.1, 1.1, 1.11, 1.09, false},
		{"sell sl below price", Sell, 0.1, 1.1, 1.09, 0, true},
		{"sell tp above price", Sell, 0.1, 1.1, 0, 1.12, true},
		{"limit ok", BuyLimit, 0.5, 1.1, 1.09, 1.11, false},
		{"stop ok", SellStop, 0.5, 1.1, 1.11, 1.09, false},
	}
	for _, tc := range cases {
		_, err := New(tc.kind, "eurusd", tc.volume, tc.price, tc.sl, tc.tp, 0)
		if tc.wantErr && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if tc.wantErr && err != nil && !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: error %v does not wrap ErrInvalid", tc.name, err)
		}
	}
}

func TestNewAssignsIDs(t *testing.T) {
	a, err := New(Buy, "eurusd", 0.1, 1.1, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(Buy, "eurusd", 0.1, 1.1, 0, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if a.ID == 0 || b.ID == 0 || a.ID == b.ID {
		t.Errorf("ids not unique: %d, %d", a.ID, b.ID)
	}

	c, err := New(Buy, "eurusd", 0.1, 1.1, 0, 0, 42)
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != 42 {
		t.Errorf("explicit id ignored: %d", c.ID)
	}
}

func TestNewWithPips(t *testing.T) {
	buy, err := NewWithPips(Buy, "eurusd", 0.1, 1.1000, 50, 100, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := buy.StopLoss; got < 1.0949 || got > 1.0951 {
		t.Errorf("buy sl = %v", got)
	}
	if got := buy.TakeProfit; got < 1.1099 || got > 1.1101 {
		t.Errorf("buy tp = %v", got)
	}

	sell, err := NewWithPips(Sell, "usdjpy", 0.1, 131.50, 30, 60, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := sell.StopLoss; got < 131.79 || got > 131.81 {
		t.Errorf("sell sl = %v", got)
	}
	if got := sell.TakeProfit; got < 130.89 || got > 130.91 {
		t.Errorf("sell tp = %v", got)
	}
}

func TestCheckOpenPerKind(t *testing.T) {
	quote := market.NewTick(1.1000, 1.1002, at(0))
	cases := []struct {
		name  string
		kind  Kind
		price float64
		want  bool
	}{
		{"market buy", Buy, 1.2, true},
		{"market sell", Sell, 1.2, true},
		{"buy limit below ask", BuyLimit, 1.0999, false},
		{"buy limit at ask", BuyLimit, 1.1002, true},
		{"buy stop above ask", BuyStop, 1.1005, false},
		{"buy stop reached", BuyStop, 1.1001, true},
		{"sell limit above bid", SellLimit, 1.1005, false},
		{"sell limit reached", SellLimit, 1.0999, true},
		{"sell stop below bid", SellStop, 1.0995, false},
		{"sell stop reached", SellStop, 1.1001, true},
	}
	for _, tc := range cases {
		o, err := New(tc.kind, "eurusd", 0.1, tc.price, 0, 0, 0)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got := o.CheckOpen(quote); got != tc.want {
			t.Errorf("%s: CheckOpen = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestOpenCloseSides(t *testing.T) {
	buy, _ := New(Buy, "eurusd", 0.1, 1.1, 0, 0, 0)
	if !buy.Open(market.NewTick(1.1000, 1.1002, at(0))) {
		t.Fatal("buy open failed")
	}
	if buy.OpenPrice != 1.1002 {
		t.Errorf("buy opens at ask, got %v", buy.OpenPrice)
	}
	if !buy.Close(market.NewTick(1.1010, 1.1012, at(1))) {
		t.Fatal("buy close failed")
	}
	if buy.ClosePrice != 1.1010 {
		t.Errorf("buy closes at bid, got %v", buy.ClosePrice)
	}

	sell, _ := New(Sell, "eurusd", 0.1, 1.1, 0, 0, 0)
	sell.Open(market.NewTick(1.1000, 1.1002, at(0)))
	if sell.OpenPrice != 1.1000 {
		t.Errorf("sell opens at bid, got %v", sell.OpenPrice)
	}
	sell.Close(market.NewTick(1.0990, 1.0992, at(1)))
	if sell.ClosePrice != 1.0992 {
		t.Errorf("sell closes at ask, got %v", sell.ClosePrice)
	}
}

func TestOpenCloseIdempotent(t *testing.T) {
	o, _ := New(Buy, "eurusd", 0.1, 1.1, 0, 0, 0)
	first := market.NewTick(1.1000, 1.1002, at(0))
	second := market.NewTick(1.2000, 1.2002, at(1))

	if !o.Open(first) {
		t.Fatal("open failed")
	}
	if o.Open(second) {
		t.Error("second open should fail")
	}
	if o.OpenPrice != 1.1002 {
		t.Errorf("open price changed: %v", o.OpenPrice)
	}

	if !o.Close(second) {
		t.Fatal("close failed")
	}
	if o.Close(market.NewTick(1.3, 1.3002, at(2))) {
		t.Error("second close should fail")
	}
	if o.ClosePrice != 1.2000 {
		t.Errorf("close price changed: %v", o.ClosePrice)
	}
}

func TestCheckCloseTriggers(t *testing.T) {
	buy, _ := New(Buy, "eurusd", 0.1, 1.1000, 1.0950, 1.1050, 0)
	buy.Open(market.NewTick(1.1000, 1.1002, at(0)))

	if buy.CheckClose(market.NewTick(1.1010, 1.1012, at(1))) {
		t.Error("quote inside the band should not close")
	}
	if !buy.CheckClose(market.NewTick(1.0950, 1.0952, at(1))) {
		t.Error("bid at stop loss should close")
	}
	if !buy.CheckClose(market.NewTick(1.1050, 1.1052, at(1))) {
		t.Error("bid at take profit should close")
	}

	sell, _ := New(Sell, "eurusd", 0.1, 1.1000, 1.1050, 1.0950, 0)
	sell.Open(market.NewTick(1.1000, 1.1002, at(0)))
	if !sell.CheckClose(market.NewTick(1.1048, 1.1050, at(1))) {
		t.Error("ask at stop loss should close")
	}
	if !sell.CheckClose(market.NewTick(1.0948, 1.0950, at(1))) {
		t.Error("ask at take profit should close")
	}
}

func TestSetStopLossTakeProfit(t *testing.T) {
	buy, _ := New(Buy, "eurusd", 0.1, 1.1, 0, 0, 0)
	if !buy.SetStopLoss(1.09) {
		t.Error("valid buy sl rejected")
	}
	if buy.SetStopLoss(1.11) {
		t.Error("buy sl above price accepted")
	}
	if !buy.SetTakeProfit(1.12) {
		t.Error("valid buy tp rejected")
	}
	if buy.SetTakeProfit(1.05) {
		t.Error("buy tp below price accepted")
	}
}

func TestProfit(t *testing.T) {
	o, _ := New(Buy, "eurusd", 0.5, 1.1, 0, 0, 0)
	if _, ok := o.Profit(); ok {
		t.Error("profit on unopened order")
	}
	o.Open(market.NewTick(1.1000, 1.1002, at(0)))
	if _, ok := o.Profit(); ok {
		t.Error("profit on open order")
	}
	o.Close(market.NewTick(1.1052, 1.1054, at(1)))

	p, ok := o.Profit()
	if !ok {
		t.Fatal("profit on closed order failed")
	}
	want := (1.1052 - 1.1002) / 0.0001 * 0.5
	if diff := p - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("profit = %v, want %v", p, want)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	o, _ := New(Buy, "eurusd", 0.1, 1.1, 0, 0, 0)
	c := o.Clone()
	c.Comment = "changed"
	c.Open(market.NewTick(1.1, 1.1002, at(0)))

	if o.Comment != "" || o.IsOpened() {
		t.Error("clone mutation leaked into the original")
	}
}

func TestXMLRoundtripAllKinds(t *testing.T) {
	kinds := []Kind{Buy, BuyLimit, BuyStop, Sell, SellLimit, SellStop}
	for _, kind := range kinds {
		var sl, tp float64
		if kind.IsBuy() {
			sl, tp = 1.09, 1.12
		} else {
			sl, tp = 1.12, 1.09
		}
		o, err := New(kind, "eurusd", 0.1, 1.1, sl, tp, 0)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		o.Comment = "test <order>"

		got, action, err := FromXML([]byte(o.ToXML(ActionSubmitted)))
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if action != ActionSubmitted {
			t.Errorf("%s: action = %v", kind, action)
		}
		if got.Kind != kind || got.ID != o.ID || got.Volume != o.Volume ||
			got.Price != o.Price || got.StopLoss != o.StopLoss ||
			got.TakeProfit != o.TakeProfit || got.Comment != o.Comment {
			t.Errorf("%s: roundtrip mismatch: %+v vs %+v", kind, got, o)
		}
	}
}

func TestXMLOpenedSuppressesCloseFields(t *testing.T) {
	o, _ := New(Buy, "eurusd", 0.1, 1.1, 0, 0, 0)
	o.Open(market.NewTick(1.1000, 1.1002, at(0)))
	o.Close(market.NewTick(1.1010, 1.1012, at(1)))

	opened := o.ToXML(ActionOpened)
	if strings.Contains(opened, "close_price") || strings.Contains(opened, "close_time") {
		t.Error("opened action should not carry close fields")
	}

	closed := o.ToXML(ActionClosed)
	if !strings.Contains(closed, "close_price") || !strings.Contains(closed, "close_time") {
		t.Error("closed action should carry close fields")
	}

	got, _, err := FromXML([]byte(closed))
	if err != nil {
		t.Fatal(err)
	}
	if got.ClosePrice != 1.1010 || !got.CloseTime.Equal(at(1)) {
		t.Errorf("close fields lost: %+v", got)
	}
}

func TestFromXMLRejectsBadMessages(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"wrong id", "<message id=\"tick\">\n</message>"},
		{"no order", "<message id=\"order\">\n  <action>submitted</action>\n</message>"},
		{"unknown type", "<message id=\"order\">\n  <order id=\"1\" type=\"martian_order\">\n    <symbol>eurusd</symbol>\n    <volume>0.1</volume>\n    <order_price>1.1</order_price>\n  </order>\n</message>"},
		{"missing volume", "<message id=\"order\">\n  <order id=\"1\" type=\"buy_order\">\n    <symbol>eurusd</symbol>\n    <order_price>1.1</order_price>\n  </order>\n</message>"},
		{"not xml", "garbage"},
	}
	for _, tc := range cases {
		if _, _, err := FromXML([]byte(tc.data)); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
