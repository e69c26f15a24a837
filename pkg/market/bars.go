package market

import "sync"

// BarStore is a thread-safe append-only history of bars keyed by timeframe.
// All reads return copies so callers never hold references into the guarded
// slices. Range queries report failure instead of panicking on bad indices.
type BarStore struct {
	mu   sync.Mutex
	bars map[Timeframe][]Bar
}

func NewBarStore() *BarStore {
	return &BarStore{bars: make(map[Timeframe][]Bar)}
}

// PutBar appends one finalized bar to the timeframe's history.
func (s *BarStore) PutBar(tf Timeframe, bar Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[tf] = append(s.bars[tf], bar)
}

// Bars returns a copy of the full history for the timeframe, oldest first.
func (s *BarStore) Bars(tf Timeframe) ([]Bar, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.bars[tf]
	if !ok {
		return nil, false
	}
	out := make([]Bar, len(v))
	copy(out, v)
	return out, true
}

// BarsRange returns count bars starting at start. The whole range must be
// in bounds or the call fails.
func (s *BarStore) BarsRange(tf Timeframe, start, count int) ([]Bar, bool) {
	if start < 0 || count < 0 {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.bars[tf]
	if !ok || start+count > len(v) {
		return nil, false
	}
	out := make([]Bar, count)
	copy(out, v[start:start+count])
	return out, true
}

// LastBars returns the newest count bars, oldest first.
func (s *BarStore) LastBars(tf Timeframe, count int) ([]Bar, bool) {
	if count < 0 {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.bars[tf]
	if !ok || count > len(v) {
		return nil, false
	}
	out := make([]Bar, count)
	copy(out, v[len(v)-count:])
	return out, true
}

// FieldSeries projects one OHLC field over a range of bars. The time field
// is not a price series and is rejected.
func (s *BarStore) FieldSeries(tf Timeframe, field BarField, start, count int) ([]float64, bool) {
	if field == FieldTime || start < 0 || count < 0 {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.bars[tf]
	if !ok || start+count > len(v) {
		return nil, false
	}

	out := make([]float64, count)
	for i, bar := range v[start : start+count] {
		switch field {
		case FieldOpen:
			out[i] = bar.O
		case FieldHigh:
			out[i] = bar.H
		case FieldLow:
			out[i] = bar.L
		case FieldClose:
			out[i] = bar.C
		}
	}
	return out, true
}

// Count returns the number of stored bars for the timeframe.
func (s *BarStore) Count(tf Timeframe) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bars[tf])
}

func (s *BarStore) Empty(tf Timeframe) bool {
	return s.Count(tf) == 0
}

// Clear drops the history for every timeframe.
func (s *BarStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars = make(map[Timeframe][]Bar)
}

// ClearTimeframe drops one timeframe's history; false if it had none.
func (s *BarStore) ClearTimeframe(tf Timeframe) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bars[tf]; !ok {
		return false
	}
	delete(s.bars, tf)
	return true
}
