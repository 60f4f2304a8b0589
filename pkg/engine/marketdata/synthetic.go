package marketdata

import (
	"math/rand"
	"sync"
	"time"

	"github.com/uhyunpark/tradesim/pkg/engine/core"
	"github.com/uhyunpark/tradesim/pkg/util"
)

// SyntheticConfig controls the random-walk generator.
type SyntheticConfig struct {
	Symbol     string
	BasePrice  float64       // starting mid price
	TickSize   float64       // price increment of each walk step
	Spread     float64       // quoted half-spread around the mid
	MaxQty     uint64        // max size per quote side / trade
	Interval   time.Duration // time between generated events
	TradeEvery int           // one trade per this many quotes
	Seed       int64         // rng seed, 0 means time-based
}

// DefaultSyntheticConfig returns a modest event rate for development.
func DefaultSyntheticConfig(symbol string) SyntheticConfig {
	return SyntheticConfig{
		Symbol:     symbol,
		BasePrice:  100.0,
		TickSize:   0.05,
		Spread:     0.10,
		MaxQty:     50,
		Interval:   10 * time.Millisecond, // ~100 events/sec
		TradeEvery: 5,
	}
}

// HighLoadSyntheticConfig returns a stress-test event rate.
func HighLoadSyntheticConfig(symbol string) SyntheticConfig {
	cfg := DefaultSyntheticConfig(symbol)
	cfg.Interval = time.Millisecond // ~1000 events/sec
	return cfg
}

// SyntheticSource generates a random-walk stream of quotes with periodic
// trades at the walked mid price.
type SyntheticSource struct {
	mu sync.Mutex

	cfg   SyntheticConfig
	clock util.Clock
	rng   *rand.Rand

	streaming bool
	current   time.Time

	stop chan struct{}
	done chan struct{}
}

func NewSyntheticSource(cfg SyntheticConfig) *SyntheticSource {
	return &SyntheticSource{cfg: cfg, clock: util.RealClock{}}
}

// SetClock swaps the pacing clock, for tests.
func (s *SyntheticSource) SetClock(c util.Clock) { s.clock = c }

func (s *SyntheticSource) Initialize() error {
	seed := s.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s.rng = rand.New(rand.NewSource(seed))
	if s.cfg.TickSize <= 0 {
		s.cfg.TickSize = 0.01
	}
	if s.cfg.MaxQty == 0 {
		s.cfg.MaxQty = 1
	}
	if s.cfg.TradeEvery <= 0 {
		s.cfg.TradeEvery = 5
	}
	return nil
}

func (s *SyntheticSource) StartStreaming(cb Callback) {
	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return
	}
	s.streaming = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.streaming = false
			s.mu.Unlock()
		}()

		mid := s.cfg.BasePrice
		n := 0
		for {
			select {
			case <-stop:
				return
			case <-s.clock.After(s.cfg.Interval):
			}

			// one tick of the walk; the mid never goes below one tick
			step := float64(s.rng.Intn(3)-1) * s.cfg.TickSize
			if mid+step > s.cfg.TickSize {
				mid += step
			}

			now := s.clock.Now()
			s.mu.Lock()
			s.current = now
			s.mu.Unlock()

			n++
			qty := uint64(s.rng.Int63n(int64(s.cfg.MaxQty))) + 1
			if n%s.cfg.TradeEvery == 0 {
				side := core.Buy
				if s.rng.Intn(2) == 1 {
					side = core.Sell
				}
				cb(core.NewTrade(s.cfg.Symbol, mid, qty, side, now))
			} else {
				half := s.cfg.Spread / 2
				cb(core.NewQuote(s.cfg.Symbol, mid-half, mid+half, qty, qty, now))
			}
		}
	}()
}

func (s *SyntheticSource) StopStreaming() {
	s.mu.Lock()
	if !s.streaming {
		s.mu.Unlock()
		return
	}
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
}

func (s *SyntheticSource) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

func (s *SyntheticSource) Symbols() []string { return []string{s.cfg.Symbol} }

func (s *SyntheticSource) CurrentTimestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

var _ Source = (*SyntheticSource)(nil)
