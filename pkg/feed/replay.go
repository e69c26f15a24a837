package feed

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kalaytan/fxsim/pkg/market"
	"github.com/kalaytan/fxsim/pkg/util"
)

// OptionsSource supplies a live speed-factor override per symbol, 0 meaning
// no override. The viewer server implements it.
type OptionsSource interface {
	SpeedFactor(sym market.Symbol) int
}

// ReplayConfig selects the slice of history to replay.
type ReplayConfig struct {
	Day             time.Time // any instant inside the first UTC day
	Days            int
	LookbackMinutes int // warm-up window before the first day, candles only
	SpeedFactor     int // default replay speed multiplier
	Cache           bool
}

// Inter-tick pacing: gaps are capped so an overnight hole replays in a
// minute, and sleeps shorter than minReplayDelay are accumulated instead
// of issued.
const (
	maxTickGap     = time.Minute
	minReplayDelay = 20 * time.Millisecond
)

// ReplayFeeder replays stored ticks for a day range at a controlled speed.
// The speed factor divides the original inter-tick spacing and can be
// changed mid-replay through the OptionsSource.
type ReplayFeeder struct {
	*BaseFeeder

	store *TickStore
	cfg   ReplayConfig
	opts  OptionsSource
	log   *zap.SugaredLogger
	clock util.Clock

	cache    []market.Tick
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewReplayFeeder(store *TickStore, sym market.Symbol, tfs []market.Timeframe, cfg ReplayConfig, opts OptionsSource, log *zap.SugaredLogger) *ReplayFeeder {
	if cfg.Days < 1 {
		cfg.Days = 1
	}
	if cfg.SpeedFactor < 1 {
		cfg.SpeedFactor = 1
	}
	return &ReplayFeeder{
		BaseFeeder: NewBaseFeeder(sym, tfs),
		store:      store,
		cfg:        cfg,
		opts:       opts,
		log:        log,
		clock:      util.RealClock{},
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start loads the window and begins replaying on its own goroutine.
func (f *ReplayFeeder) Start() error {
	ticks := f.cache
	if ticks == nil {
		start := dayStart(f.cfg.Day).Add(-time.Duration(f.cfg.LookbackMinutes) * time.Minute)
		end := dayStart(f.cfg.Day).AddDate(0, 0, f.cfg.Days)
		var err error
		ticks, err = f.store.Scan(f.Symbol(), start, end)
		if err != nil {
			return fmt.Errorf("feed: replay %s: %w", f.Symbol(), err)
		}
		if len(ticks) == 0 {
			return fmt.Errorf("feed: replay %s: no ticks in [%s, %s)", f.Symbol(),
				start.Format(time.RFC3339), end.Format(time.RFC3339))
		}
		if f.cfg.Cache {
			f.cache = ticks
		}
	}

	f.log.Infow("replay_start",
		"symbol", f.Symbol().String(),
		"ticks", len(ticks),
		"days", f.cfg.Days,
		"lookback_min", f.cfg.LookbackMinutes,
		"speed_factor", f.cfg.SpeedFactor,
	)

	go f.run(ticks)
	return nil
}

// Stop aborts the replay and waits for the run goroutine to exit.
func (f *ReplayFeeder) Stop() {
	f.stopOnce.Do(func() { close(f.stop) })
	<-f.done
}

// Done is closed when the replay finishes or is stopped.
func (f *ReplayFeeder) Done() <-chan struct{} { return f.done }

func (f *ReplayFeeder) factor() int {
	if f.opts != nil {
		if v := f.opts.SpeedFactor(f.Symbol()); v > 0 {
			return v
		}
	}
	return f.cfg.SpeedFactor
}

func (f *ReplayFeeder) run(ticks []market.Tick) {
	defer close(f.done)

	replayFrom := dayStart(f.cfg.Day)

	// warm-up: feed the lookback ticks into the candle factories only
	n := 0
	f.SetWarmup(true)
	for ; n < len(ticks) && ticks[n].Time.Before(replayFrom); n++ {
		f.EmitTick(ticks[n])
	}
	f.SetWarmup(false)

	var acc time.Duration
	prev := time.Time{}
	for _, tick := range ticks[n:] {
		if !prev.IsZero() {
			gap := tick.Time.Sub(prev)
			if gap > maxTickGap {
				gap = maxTickGap
			}
			if gap > 0 {
				acc += gap
			}
		}
		prev = tick.Time

		if delay := acc / time.Duration(f.factor()); delay >= minReplayDelay {
			acc = 0
			select {
			case <-f.clock.After(delay):
			case <-f.stop:
				return
			}
		} else {
			select {
			case <-f.stop:
				return
			default:
			}
		}

		f.EmitTick(tick)
	}

	f.log.Infow("replay_done", "symbol", f.Symbol().String())
}
