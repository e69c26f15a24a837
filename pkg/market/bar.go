package market

// Bar is an OHLC aggregate of ticks over one timeframe bucket.
// T is the bucket start in unix seconds, truncated to the timeframe period.
type Bar struct {
	O float64
	H float64
	L float64
	C float64
	T int64
}

// BarField selects one component of a bar for series projection.
type BarField int

const (
	FieldOpen BarField = iota
	FieldHigh
	FieldLow
	FieldClose
	FieldTime
)

// Candle shape flags returned by CandleCode.
const (
	CandleBody        = 1 << iota // open != close
	CandleUpperShadow             // high above the body
	CandleLowerShadow             // low below the body
)

// CandleCode classifies the candle shape into a 3-bit code: body=1,
// upper shadow=2, lower shadow=4. A doji with wicks on both sides is 6.
func CandleCode(b Bar) int {
	code := 0

	switch {
	case b.O > b.C:
		code |= CandleBody
		if b.H > b.O {
			code |= CandleUpperShadow
		}
		if b.L < b.C {
			code |= CandleLowerShadow
		}
	case b.O < b.C:
		code |= CandleBody
		if b.H > b.C {
			code |= CandleUpperShadow
		}
		if b.L < b.O {
			code |= CandleLowerShadow
		}
	default: // open == close
		if b.H > b.O {
			code |= CandleUpperShadow
		}
		if b.L < b.C {
			code |= CandleLowerShadow
		}
	}

	return code
}
