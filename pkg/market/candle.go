package market

// BarFunc receives each finalized bar from a CandleFactory.
type BarFunc func(Bar)

// CandleFactory buckets a time-ordered tick stream into OHLC bars for one
// timeframe. Bars are built from bid prices. The factory holds exactly one
// open (accumulating) bar; when a tick falls into the next bucket the open
// bar is emitted through the callback and a new one starts from that tick.
//
// Not safe for concurrent use: a factory belongs to one feeder and is driven
// only from the ingestion goroutine.
type CandleFactory struct {
	tf      Timeframe
	divider int64
	onBar   BarFunc
	bar     Bar
}

func NewCandleFactory(tf Timeframe, onBar BarFunc) *CandleFactory {
	return &CandleFactory{
		tf:      tf,
		divider: tf.Seconds(),
		onBar:   onBar,
	}
}

func (f *CandleFactory) Timeframe() Timeframe { return f.tf }

// PutTick folds one tick into the open bar, finalizing the previous bucket
// first when the tick starts a new one. The very first tick never emits:
// there is no previous bar yet (bar.T == 0 marks the unseeded state).
func (f *CandleFactory) PutTick(tick Tick) {
	bucket := (tick.Time.Unix() / f.divider) * f.divider
	bid := tick.Bid

	if bucket != f.bar.T {
		if f.bar.T > 0 && f.onBar != nil {
			f.onBar(f.bar)
		}

		f.bar = Bar{O: bid, H: bid, L: bid, C: bid, T: bucket}
		return
	}

	f.bar.C = bid
	if bid > f.bar.H {
		f.bar.H = bid
	} else if bid < f.bar.L {
		f.bar.L = bid
	}
}
