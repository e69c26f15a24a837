// Package order implements the synthetic order model: six order kinds over
// one base record, kind-specific open/close trigger logic, and the XML wire
// form shared with the viewer protocol.
package order

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kalaytan/fxsim/pkg/market"
)

// Kind tags the order variant. The buy/sell and limit/stop asymmetry in the
// predicates below is the whole of the trigger business logic.
type Kind int

const (
	KindUndefined Kind = iota
	Buy
	BuyLimit
	BuyStop
	Sell
	SellLimit
	SellStop
)

var kindNames = map[Kind]string{
	Buy:       "buy_order",
	BuyLimit:  "buy_limit_order",
	BuyStop:   "buy_stop_order",
	Sell:      "sell_order",
	SellLimit: "sell_limit_order",
	SellStop:  "sell_stop_order",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "undefined"
}

// IsBuy reports whether the kind opens at ask and closes at bid.
func (k Kind) IsBuy() bool {
	return k == Buy || k == BuyLimit || k == BuyStop
}

// KindFromString maps a wire type tag back to a kind.
func KindFromString(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return KindUndefined, false
}

// Action is an order lifecycle transition carried by order events and the
// wire protocol.
type Action int

const (
	ActionUndefined Action = iota
	ActionSubmitted
	ActionOpened
	ActionClosed
	ActionModified
	ActionDeleted
)

var actionNames = map[Action]string{
	ActionSubmitted: "submitted",
	ActionOpened:    "opened",
	ActionClosed:    "closed",
	ActionModified:  "modified",
	ActionDeleted:   "deleted",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return "undefined"
}

func ActionFromString(s string) Action {
	for a, name := range actionNames {
		if name == s {
			return a
		}
	}
	return ActionUndefined
}

// ErrInvalid is returned when construction violates the order invariants.
var ErrInvalid = errors.New("order: invalid arguments")

// MinVolume is the smallest tradable size, in lots.
const MinVolume = 0.01

// autoID is the process-wide ticket counter used when an order is created
// with id 0.
var autoID atomic.Uint64

// Order is the base record shared by all six kinds. Price fields use 0 as
// "unset". The engine's order lists own the canonical copy for the whole
// lifetime; everything that crosses a goroutine boundary gets a Clone.
type Order struct {
	ID         uint64
	Kind       Kind
	Symbol     market.Symbol
	Volume     float64 // lots; 0.01 lot = 1000 currency units
	Price      float64 // order price
	StopLoss   float64
	TakeProfit float64

	OpenPrice  float64
	ClosePrice float64
	OpenTime   time.Time
	CloseTime  time.Time
	OpenTick   market.Tick
	CloseTick  market.Tick

	Comment string
	Payload any // opaque strategy-attached data, carried through clones
}

// New builds and validates an order. Id 0 draws the next ticket from the
// process-wide counter. StopLoss/TakeProfit 0 mean "not set".
func New(kind Kind, sym market.Symbol, volume, price, stopLoss, takeProfit float64, id uint64) (*Order, error) {
	if _, ok := kindNames[kind]; !ok {
		return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalid, kind)
	}
	if id == 0 {
		id = autoID.Add(1)
	}

	o := &Order{
		ID:         id,
		Kind:       kind,
		Symbol:     sym,
		Volume:     volume,
		Price:      price,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// NewWithPips builds an order with stop loss and take profit given as whole
// pip distances from the order price (0 = not set).
func NewWithPips(kind Kind, sym market.Symbol, volume, price float64, slPips, tpPips int, id uint64) (*Order, error) {
	pip := sym.Pip()
	var sl, tp float64

	if kind.IsBuy() {
		if slPips > 0 {
			sl = price - float64(slPips)*pip
		}
		if tpPips > 0 {
			tp = price + float64(tpPips)*pip
		}
	} else {
		if slPips > 0 {
			sl = price + float64(slPips)*pip
		}
		if tpPips > 0 {
			tp = price - float64(tpPips)*pip
		}
	}

	return New(kind, sym, volume, price, sl, tp, id)
}

func (o *Order) validate() error {
	if o.Price <= 0 {
		return fmt.Errorf("%w: order price %v", ErrInvalid, o.Price)
	}
	if o.Volume < MinVolume {
		return fmt.Errorf("%w: volume %v below minimum %v", ErrInvalid, o.Volume, MinVolume)
	}

	if o.Kind.IsBuy() {
		if o.HasStopLoss() && o.StopLoss >= o.Price {
			return fmt.Errorf("%w: buy stop loss %v >= price %v", ErrInvalid, o.StopLoss, o.Price)
		}
		if o.HasTakeProfit() && o.TakeProfit <= o.Price {
			return fmt.Errorf("%w: buy take profit %v <= price %v", ErrInvalid, o.TakeProfit, o.Price)
		}
		return nil
	}

	if o.HasStopLoss() && o.StopLoss <= o.Price {
		return fmt.Errorf("%w: sell stop loss %v <= price %v", ErrInvalid, o.StopLoss, o.Price)
	}
	if o.HasTakeProfit() && o.TakeProfit >= o.Price {
		return fmt.Errorf("%w: sell take profit %v >= price %v", ErrInvalid, o.TakeProfit, o.Price)
	}
	return nil
}

func (o *Order) HasStopLoss() bool   { return o.StopLoss != 0 }
func (o *Order) HasTakeProfit() bool { return o.TakeProfit != 0 }

// IsOpened reports whether the order has been filled.
func (o *Order) IsOpened() bool { return o.OpenPrice != 0 }

// IsClosed reports whether the order has been closed out.
func (o *Order) IsClosed() bool { return o.ClosePrice != 0 }

// SetStopLoss moves the stop level, keeping it on the correct side of the
// order price. Passing 0 clears it.
func (o *Order) SetStopLoss(v float64) bool {
	if v == 0 {
		o.StopLoss = 0
		return true
	}
	if v < 0 {
		return false
	}
	if o.Kind.IsBuy() && v >= o.Price {
		return false
	}
	if !o.Kind.IsBuy() && v <= o.Price {
		return false
	}
	o.StopLoss = v
	return true
}

// SetTakeProfit moves the profit target, keeping it on the correct side of
// the order price. Passing 0 clears it.
func (o *Order) SetTakeProfit(v float64) bool {
	if v == 0 {
		o.TakeProfit = 0
		return true
	}
	if v < 0 {
		return false
	}
	if o.Kind.IsBuy() && v <= o.Price {
		return false
	}
	if !o.Kind.IsBuy() && v >= o.Price {
		return false
	}
	o.TakeProfit = v
	return true
}

// CheckOpen reports whether the order is ready to open against the tick.
// Market orders open on the next tick; limit and stop orders wait for their
// trigger price on the side they would fill at.
func (o *Order) CheckOpen(t market.Tick) bool {
	if o.IsOpened() {
		return false
	}

	switch o.Kind {
	case Buy, Sell:
		return true
	case BuyLimit:
		return t.Ask <= o.Price
	case BuyStop:
		return t.Ask >= o.Price
	case SellLimit:
		return t.Bid >= o.Price
	case SellStop:
		return t.Bid <= o.Price
	}
	return false
}

// CheckClose reports whether the stop loss or take profit is touched.
// Buy orders close at bid, sell orders at ask.
func (o *Order) CheckClose(t market.Tick) bool {
	if !o.IsOpened() || o.IsClosed() {
		return false
	}

	if o.Kind.IsBuy() {
		return (o.HasStopLoss() && t.Bid <= o.StopLoss) ||
			(o.HasTakeProfit() && t.Bid >= o.TakeProfit)
	}
	return (o.HasStopLoss() && t.Ask >= o.StopLoss) ||
		(o.HasTakeProfit() && t.Ask <= o.TakeProfit)
}

// Open fills the order from the tick: buy side at ask, sell side at bid.
// Returns false without touching state when the open predicate does not
// hold (including when already opened).
func (o *Order) Open(t market.Tick) bool {
	if !o.CheckOpen(t) {
		return false
	}

	if o.Kind.IsBuy() {
		o.OpenPrice = t.Ask
	} else {
		o.OpenPrice = t.Bid
	}
	o.OpenTime = t.Time
	o.OpenTick = t
	return true
}

// Close closes an opened order at the tick: buy side at bid, sell side at
// ask. A no-op returning false when not yet opened or already closed.
func (o *Order) Close(t market.Tick) bool {
	if !o.IsOpened() || o.IsClosed() {
		return false
	}

	if o.Kind.IsBuy() {
		o.ClosePrice = t.Bid
	} else {
		o.ClosePrice = t.Ask
	}
	o.CloseTime = t.Time
	o.CloseTick = t
	return true
}

// Profit returns the realized profit in pips-times-volume for a closed
// order; ok is false when the order is still open.
func (o *Order) Profit() (profit float64, ok bool) {
	if !o.IsClosed() {
		return 0, false
	}

	pip := o.Symbol.Pip()
	if o.Kind.IsBuy() {
		return (o.ClosePrice - o.OpenPrice) / pip * o.Volume, true
	}
	return (o.OpenPrice - o.ClosePrice) / pip * o.Volume, true
}

// ProfitAt marks an opened order to market against the tick, on the side it
// would close at.
func (o *Order) ProfitAt(t market.Tick) float64 {
	pip := o.Symbol.Pip()
	if o.Kind.IsBuy() {
		return (t.Bid - o.OpenPrice) / pip * o.Volume
	}
	return (o.OpenPrice - t.Ask) / pip * o.Volume
}

// Clone returns an independent copy. Clones travel through event queues and
// viewer connections so no consumer ever races with the engine mutating the
// canonical order.
func (o *Order) Clone() *Order {
	cp := *o
	return &cp
}
