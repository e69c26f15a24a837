package ops

// REST response types and websocket event payloads.

// EngineInfo summarizes one registered engine.
type EngineInfo struct {
	Symbol       string  `json:"symbol"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	TickTime     int64   `json:"tickTime"` // unix milliseconds, 0 before the first tick
	OpenTrades   int     `json:"openTrades"`
	ClosedTrades int     `json:"closedTrades"`
}

// StatsResponse is the per-engine trade statistics snapshot.
type StatsResponse struct {
	Symbol string      `json:"symbol"`
	Open   OpenStats   `json:"open"`
	Closed ClosedStats `json:"closed"`
}

type OpenStats struct {
	Count          int     `json:"count"`
	Volume         float64 `json:"volume"`
	FloatingProfit float64 `json:"floatingProfit"`
	FirstOpenTime  int64   `json:"firstOpenTime"` // unix milliseconds, 0 when empty
}

type ClosedStats struct {
	Count         int     `json:"count"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Profit        float64 `json:"profit"`
	MaxCumProfit  float64 `json:"maxCumProfit"`
	MinCumProfit  float64 `json:"minCumProfit"`
	MaxWinStreak  int     `json:"maxWinStreak"`
	MaxLossStreak int     `json:"maxLossStreak"`
	FirstOpenTime int64   `json:"firstOpenTime"`
	LastCloseTime int64   `json:"lastCloseTime"`
}

// BarInfo is one OHLC bar in bar queries.
type BarInfo struct {
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	T int64   `json:"t"` // bucket start, unix seconds
}

// WSTickEvent is broadcast on the "ticks" channel.
type WSTickEvent struct {
	Type   string  `json:"type"` // "tick"
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Time   int64   `json:"time"` // unix milliseconds
}

// WSOrderEvent is broadcast on the "orders" channel.
type WSOrderEvent struct {
	Type       string  `json:"type"` // "order"
	Action     string  `json:"action"`
	ID         uint64  `json:"id"`
	Kind       string  `json:"kind"`
	Symbol     string  `json:"symbol"`
	Volume     float64 `json:"volume"`
	Price      float64 `json:"price"`
	OpenPrice  float64 `json:"openPrice,omitempty"`
	ClosePrice float64 `json:"closePrice,omitempty"`
	Comment    string  `json:"comment,omitempty"`
}

// ErrorResponse is the REST error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
