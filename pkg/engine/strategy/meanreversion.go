package strategy

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/uhyunpark/tradesim/pkg/engine/core"
)

// MeanReversionConfig tunes the mean reversion strategy.
type MeanReversionConfig struct {
	Alpha       float64 // EMA smoothing factor in (0,1]
	Threshold   float64 // fractional mid deviation from EMA that triggers a trade
	OrderQty    uint64  // size of each submitted order
	MaxPosition int64   // absolute inventory cap in units
}

func DefaultMeanReversionConfig() MeanReversionConfig {
	return MeanReversionConfig{
		Alpha:       0.1,
		Threshold:   0.002, // 20 bps
		OrderQty:    10,
		MaxPosition: 100,
	}
}

// MeanReversion trades against short-term mid-price deviation from its EMA:
// buy when the mid dips below the average, sell when it stretches above.
// Orders are marketable limits at the opposite best price.
type MeanReversion struct {
	mu sync.Mutex

	cfg    MeanReversionConfig
	log    *zap.SugaredLogger
	nextID func() uint64

	symbol  string
	book    BookHandle
	running bool

	ema     float64
	lastMid float64

	position int64
	cash     float64

	// orders we submitted that may still receive fills
	live map[uint64]core.Side
}

func NewMeanReversion(cfg MeanReversionConfig, nextID func() uint64, log *zap.SugaredLogger) *MeanReversion {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &MeanReversion{
		cfg:    cfg,
		log:    log,
		nextID: nextID,
		live:   make(map[uint64]core.Side),
	}
}

func (s *MeanReversion) Name() string   { return "mean-reversion" }
func (s *MeanReversion) Symbol() string { return s.symbol }

func (s *MeanReversion) Initialize(symbol string, book BookHandle) error {
	if symbol == "" {
		return fmt.Errorf("mean-reversion: empty symbol")
	}
	if book == nil {
		return fmt.Errorf("mean-reversion: nil book handle")
	}
	if s.cfg.Alpha <= 0 || s.cfg.Alpha > 1 {
		return fmt.Errorf("mean-reversion: alpha %v outside (0,1]", s.cfg.Alpha)
	}
	if s.cfg.OrderQty == 0 {
		return fmt.Errorf("mean-reversion: zero order qty")
	}
	s.mu.Lock()
	s.symbol = symbol
	s.book = book
	s.ema = 0
	s.lastMid = 0
	s.mu.Unlock()
	return nil
}

func (s *MeanReversion) Start() {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
}

func (s *MeanReversion) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *MeanReversion) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *MeanReversion) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// PnL marks the position to the last observed mid price.
func (s *MeanReversion) PnL() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cash + float64(s.position)*s.lastMid
}

// OnMarketEvent updates the EMA on quotes and submits a marketable limit
// when the mid deviates past the threshold.
func (s *MeanReversion) OnMarketEvent(ev core.MarketEvent) {
	q, ok := ev.(*core.Quote)
	if !ok {
		return
	}

	s.mu.Lock()
	if !s.running || s.book == nil || q.Symbol() != s.symbol {
		s.mu.Unlock()
		return
	}

	mid := q.MidPrice()
	s.lastMid = mid
	if s.ema == 0 {
		s.ema = mid
		s.mu.Unlock()
		return
	}
	s.ema = s.cfg.Alpha*mid + (1-s.cfg.Alpha)*s.ema

	dev := (mid - s.ema) / s.ema
	var order *core.Order
	switch {
	case dev <= -s.cfg.Threshold && s.position < s.cfg.MaxPosition:
		order = s.buildOrder(core.Buy, q)
	case dev >= s.cfg.Threshold && s.position > -s.cfg.MaxPosition:
		order = s.buildOrder(core.Sell, q)
	}
	if order != nil {
		s.live[order.ID] = order.Side
	}
	s.mu.Unlock()

	if order == nil {
		return
	}
	// submit outside the lock: the book calls back into OnTrade synchronously
	if !s.book.AddOrder(order) {
		s.mu.Lock()
		delete(s.live, order.ID)
		s.mu.Unlock()
		return
	}
	s.log.Debugw("order_submitted",
		"strategy", s.Name(), "id", order.ID, "side", order.Side.String(),
		"price", order.Price, "qty", order.Qty)
}

// buildOrder prices a marketable limit at the quoted opposite side.
// Caller holds the lock.
func (s *MeanReversion) buildOrder(side core.Side, q *core.Quote) *core.Order {
	px := q.Ask()
	if side == core.Sell {
		px = q.Bid()
	}
	if px <= 0 {
		return nil
	}
	return &core.Order{
		ID:     s.nextID(),
		Symbol: s.symbol,
		Side:   side,
		Price:  px,
		Qty:    s.cfg.OrderQty,
		Time:   q.Timestamp(),
	}
}

// OnTrade applies fills on orders this strategy owns, on either side of
// the execution.
func (s *MeanReversion) OnTrade(e *core.Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if side, ok := s.live[e.MakerID]; ok {
		s.applyFill(side, e.Price, e.Qty)
	}
	if side, ok := s.live[e.TakerID]; ok {
		s.applyFill(side, e.Price, e.Qty)
	}
}

// applyFill books cash flow for a fill. Caller holds the lock.
func (s *MeanReversion) applyFill(side core.Side, price float64, qty uint64) {
	notional := price * float64(qty)
	if side == core.Buy {
		s.position += int64(qty)
		s.cash -= notional
	} else {
		s.position -= int64(qty)
		s.cash += notional
	}
}

// OnOrderEvent retires fully filled or cancelled orders from the live set.
func (s *MeanReversion) OnOrderEvent(o *core.Order, et core.EventType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live[o.ID]; !ok {
		return
	}
	switch {
	case et == core.EventOrderCancelled:
		delete(s.live, o.ID)
	case et == core.EventOrderFilled && o.Filled():
		delete(s.live, o.ID)
	}
}

var _ Strategy = (*MeanReversion)(nil)
