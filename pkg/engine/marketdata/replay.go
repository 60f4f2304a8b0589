package marketdata

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/uhyunpark/tradesim/pkg/engine/core"
	"github.com/uhyunpark/tradesim/pkg/util"
)

// ReplaySource replays historical market events from a CSV file in
// timestamp order.
//
// Row formats (one event per row):
//
//	trade,<symbol>,<rfc3339-ts>,<price>,<qty>,<BUY|SELL>
//	quote,<symbol>,<rfc3339-ts>,<bid>,<ask>,<bidSize>,<askSize>
//
// Speed controls pacing: 0 replays as fast as possible, 1 replays at
// recorded wall-clock gaps, 2 at twice recorded speed, and so on.
type ReplaySource struct {
	mu sync.Mutex

	path  string
	speed float64
	clock util.Clock

	events    []core.MarketEvent
	symbols   []string
	streaming bool
	current   time.Time

	stop chan struct{}
	done chan struct{}
}

func NewReplaySource(path string, speed float64) *ReplaySource {
	return &ReplaySource{
		path:  path,
		speed: speed,
		clock: util.RealClock{},
	}
}

// SetClock swaps the pacing clock, for tests.
func (r *ReplaySource) SetClock(c util.Clock) { r.clock = c }

func (r *ReplaySource) Initialize() error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("replay: open %s: %w", r.path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("replay: read %s: %w", r.path, err)
	}

	seen := make(map[string]struct{})
	events := make([]core.MarketEvent, 0, len(rows))
	for i, row := range rows {
		ev, err := parseRow(row)
		if err != nil {
			return fmt.Errorf("replay: row %d: %w", i+1, err)
		}
		events = append(events, ev)
		if _, ok := seen[ev.Symbol()]; !ok {
			seen[ev.Symbol()] = struct{}{}
			r.symbols = append(r.symbols, ev.Symbol())
		}
	}

	// Rows may be interleaved across symbols; delivery order must follow
	// timestamps. Stable to keep file order among equal timestamps.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp().Before(events[j].Timestamp())
	})
	r.events = events
	return nil
}

func parseRow(row []string) (core.MarketEvent, error) {
	if len(row) == 0 {
		return nil, fmt.Errorf("empty row")
	}
	kind := strings.ToLower(strings.TrimSpace(row[0]))
	switch kind {
	case "trade":
		if len(row) != 6 {
			return nil, fmt.Errorf("trade row wants 6 fields, got %d", len(row))
		}
		ts, err := time.Parse(time.RFC3339Nano, row[2])
		if err != nil {
			return nil, fmt.Errorf("timestamp: %w", err)
		}
		price, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("price: %w", err)
		}
		qty, err := strconv.ParseUint(row[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("qty: %w", err)
		}
		side, err := parseSide(row[5])
		if err != nil {
			return nil, err
		}
		return core.NewTrade(row[1], price, qty, side, ts), nil

	case "quote":
		if len(row) != 7 {
			return nil, fmt.Errorf("quote row wants 7 fields, got %d", len(row))
		}
		ts, err := time.Parse(time.RFC3339Nano, row[2])
		if err != nil {
			return nil, fmt.Errorf("timestamp: %w", err)
		}
		bid, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return nil, fmt.Errorf("bid: %w", err)
		}
		ask, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, fmt.Errorf("ask: %w", err)
		}
		bidSize, err := strconv.ParseUint(row[5], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bidSize: %w", err)
		}
		askSize, err := strconv.ParseUint(row[6], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("askSize: %w", err)
		}
		return core.NewQuote(row[1], bid, ask, bidSize, askSize, ts), nil

	default:
		return nil, fmt.Errorf("unknown event kind %q", row[0])
	}
}

func parseSide(s string) (core.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return core.Buy, nil
	case "SELL":
		return core.Sell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

func (r *ReplaySource) StartStreaming(cb Callback) {
	r.mu.Lock()
	if r.streaming {
		r.mu.Unlock()
		return
	}
	r.streaming = true
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	stop, done := r.stop, r.done
	r.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			r.mu.Lock()
			r.streaming = false
			r.mu.Unlock()
		}()

		var prev time.Time
		for _, ev := range r.events {
			if r.speed > 0 && !prev.IsZero() {
				gap := ev.Timestamp().Sub(prev)
				if gap > 0 {
					select {
					case <-r.clock.After(time.Duration(float64(gap) / r.speed)):
					case <-stop:
						return
					}
				}
			}
			select {
			case <-stop:
				return
			default:
			}

			r.mu.Lock()
			r.current = ev.Timestamp()
			r.mu.Unlock()
			cb(ev)
			prev = ev.Timestamp()
		}
	}()
}

func (r *ReplaySource) StopStreaming() {
	r.mu.Lock()
	if !r.streaming {
		r.mu.Unlock()
		return
	}
	stop, done := r.stop, r.done
	r.mu.Unlock()

	close(stop)
	<-done
}

func (r *ReplaySource) IsStreaming() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streaming
}

func (r *ReplaySource) Symbols() []string {
	return append([]string(nil), r.symbols...)
}

func (r *ReplaySource) CurrentTimestamp() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

var _ Source = (*ReplaySource)(nil)
