// Package feed reads historical quotes from the tick store and replays
// them through candle factories into engine callbacks.
package feed

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/kalaytan/fxsim/pkg/market"
)

// TickStore persists ticks in pebble under time-ordered keys, so a day
// range comes back with a single prefix scan.
//
// key:   t:<symbol>:<8-byte big-endian unix-millis>
// value: 16 bytes, little-endian bid and ask float64
type TickStore struct {
	db *pebble.DB
}

func OpenTickStore(path string) (*TickStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("feed: open tick store: %w", err)
	}
	return &TickStore{db: db}, nil
}

func (s *TickStore) Close() error { return s.db.Close() }

func tickKey(sym market.Symbol, t time.Time) []byte {
	key := make([]byte, 0, 2+len(sym)+1+8)
	key = append(key, 't', ':')
	key = append(key, sym...)
	key = append(key, ':')
	return binary.BigEndian.AppendUint64(key, uint64(t.UnixMilli()))
}

func tickPrefix(sym market.Symbol) []byte {
	key := make([]byte, 0, 2+len(sym)+1)
	key = append(key, 't', ':')
	key = append(key, sym...)
	return append(key, ':')
}

func encodeTickValue(tick market.Tick) []byte {
	val := make([]byte, 16)
	binary.LittleEndian.PutUint64(val[0:8], math.Float64bits(tick.Bid))
	binary.LittleEndian.PutUint64(val[8:16], math.Float64bits(tick.Ask))
	return val
}

func decodeTick(key, val []byte) (market.Tick, error) {
	if len(val) != 16 {
		return market.Tick{}, fmt.Errorf("feed: tick value length %d", len(val))
	}
	if len(key) < 8 {
		return market.Tick{}, fmt.Errorf("feed: tick key length %d", len(key))
	}
	ms := int64(binary.BigEndian.Uint64(key[len(key)-8:]))
	return market.Tick{
		Bid:  math.Float64frombits(binary.LittleEndian.Uint64(val[0:8])),
		Ask:  math.Float64frombits(binary.LittleEndian.Uint64(val[8:16])),
		Time: time.UnixMilli(ms).UTC(),
	}, nil
}

func (s *TickStore) Put(sym market.Symbol, tick market.Tick) error {
	if err := s.db.Set(tickKey(sym, tick.Time), encodeTickValue(tick), pebble.NoSync); err != nil {
		return fmt.Errorf("feed: put tick: %w", err)
	}
	return nil
}

// PutBatch writes a run of ticks in one pebble batch.
func (s *TickStore) PutBatch(sym market.Symbol, ticks []market.Tick) error {
	b := s.db.NewBatch()
	defer b.Close()
	for _, tick := range ticks {
		if err := b.Set(tickKey(sym, tick.Time), encodeTickValue(tick), nil); err != nil {
			return fmt.Errorf("feed: batch tick: %w", err)
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("feed: commit batch: %w", err)
	}
	return nil
}

// Scan returns the ticks for sym with from <= t < to, in time order.
func (s *TickStore) Scan(sym market.Symbol, from, to time.Time) ([]market.Tick, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: tickKey(sym, from),
		UpperBound: tickKey(sym, to),
	})
	if err != nil {
		return nil, fmt.Errorf("feed: scan: %w", err)
	}
	defer iter.Close()

	var out []market.Tick
	for iter.First(); iter.Valid(); iter.Next() {
		tick, err := decodeTick(iter.Key(), iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, tick)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("feed: scan: %w", err)
	}
	return out, nil
}

// ScanDays returns the ticks for N whole UTC days starting at the UTC
// midnight of day.
func (s *TickStore) ScanDays(sym market.Symbol, day time.Time, days int) ([]market.Tick, error) {
	from := dayStart(day)
	return s.Scan(sym, from, from.AddDate(0, 0, days))
}

// Count counts the stored ticks for a symbol.
func (s *TickStore) Count(sym market.Symbol) (int, error) {
	prefix := tickPrefix(sym)
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	upper[len(upper)-1]++

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return 0, fmt.Errorf("feed: count: %w", err)
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	if err := iter.Error(); err != nil {
		return 0, fmt.Errorf("feed: count: %w", err)
	}
	return n, nil
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
