package sim

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/tradesim/pkg/engine/book"
	"github.com/uhyunpark/tradesim/pkg/engine/core"
	"github.com/uhyunpark/tradesim/pkg/engine/marketdata"
	"github.com/uhyunpark/tradesim/pkg/engine/strategy"
	"github.com/uhyunpark/tradesim/pkg/storage"
)

const eventBuffer = 1024

// Engine wires a market data source, an order book, and strategies.
//
// The data source produces events on its own goroutine; the engine funnels
// them through an ordered channel into a single delivery goroutine, so the
// book and every strategy observe events serialized in source order.
type Engine struct {
	log    *zap.SugaredLogger
	book   *book.Book
	source marketdata.Source
	store  *storage.TradeStore // optional
	wal    storage.WAL

	mu         sync.Mutex
	strategies []strategy.Strategy
	execCbs    []func(*core.Execution)
	running    bool

	events   chan core.MarketEvent
	wg       sync.WaitGroup
	orderSeq atomic.Uint64
}

// New builds an engine. store may be nil to skip trade persistence; wal may
// be nil for no journaling.
func New(b *book.Book, source marketdata.Source, store *storage.TradeStore, wal storage.WAL, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if wal == nil {
		wal = storage.NewNopWAL()
	}
	e := &Engine{
		log:    log,
		book:   b,
		source: source,
		store:  store,
		wal:    wal,
	}
	b.RegisterListener(e)
	return e
}

func (e *Engine) Book() *book.Book { return e.book }

// NextOrderID allocates a process-unique order ID.
func (e *Engine) NextOrderID() uint64 { return e.orderSeq.Add(1) }

// AddStrategy initializes a strategy against the engine's book and
// subscribes it to order events. Call before Start.
func (e *Engine) AddStrategy(st strategy.Strategy) error {
	if err := st.Initialize(e.book.Symbol(), e.book); err != nil {
		return fmt.Errorf("engine: init strategy %s: %w", st.Name(), err)
	}
	e.book.RegisterListener(st)
	e.mu.Lock()
	e.strategies = append(e.strategies, st)
	e.mu.Unlock()
	e.log.Infow("strategy_registered", "name", st.Name(), "symbol", e.book.Symbol())
	return nil
}

// Strategies returns the registered strategies.
func (e *Engine) Strategies() []strategy.Strategy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]strategy.Strategy(nil), e.strategies...)
}

// RecentTrades returns up to n most recent persisted executions, newest
// first. Returns an empty slice when persistence is disabled.
func (e *Engine) RecentTrades(n int) ([]core.Execution, error) {
	if e.store == nil {
		return []core.Execution{}, nil
	}
	return e.store.Recent(e.book.Symbol(), n)
}

// OnExecution subscribes a callback to executed trades. Call before Start.
func (e *Engine) OnExecution(cb func(*core.Execution)) {
	e.mu.Lock()
	e.execCbs = append(e.execCbs, cb)
	e.mu.Unlock()
}

// SubmitOrder places a limit order with an engine-allocated ID. Returns the
// ID and whether the book accepted the order.
func (e *Engine) SubmitOrder(side core.Side, price float64, qty uint64) (uint64, bool) {
	o := &core.Order{
		ID:     e.NextOrderID(),
		Symbol: e.book.Symbol(),
		Side:   side,
		Price:  price,
		Qty:    qty,
		Time:   time.Now(),
	}
	return o.ID, e.book.AddOrder(o)
}

// CancelOrder cancels a resting order by ID.
func (e *Engine) CancelOrder(id uint64) bool { return e.book.CancelOrder(id) }

// Start initializes the source and begins event delivery.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine: already running")
	}
	e.running = true
	e.events = make(chan core.MarketEvent, eventBuffer)
	strategies := e.strategies
	e.mu.Unlock()

	if err := e.source.Initialize(); err != nil {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		return fmt.Errorf("engine: source init: %w", err)
	}

	for _, st := range strategies {
		st.Start()
	}

	e.wg.Add(1)
	go e.deliver()

	events := e.events
	e.source.StartStreaming(func(ev core.MarketEvent) {
		events <- ev
	})

	e.log.Infow("engine_started", "symbol", e.book.Symbol(), "source_symbols", e.source.Symbols())
	return nil
}

// Stop halts streaming, drains pending events, and stops strategies.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	strategies := e.strategies
	e.mu.Unlock()

	e.source.StopStreaming()
	close(e.events)
	e.wg.Wait()

	for _, st := range strategies {
		st.Stop()
	}
	e.log.Infow("engine_stopped",
		"symbol", e.book.Symbol(), "last_price", e.book.LastPrice())
}

// deliver owns event delivery: book first, then strategies, in order.
func (e *Engine) deliver() {
	defer e.wg.Done()
	for ev := range e.events {
		e.book.ProcessMarketEvent(ev)

		if q, ok := ev.(*core.Quote); ok {
			e.checkQuoteDivergence(q)
		}

		e.mu.Lock()
		strategies := e.strategies
		e.mu.Unlock()
		for _, st := range strategies {
			st.OnMarketEvent(ev)
		}
	}
}

// checkQuoteDivergence compares an external reference quote against our
// internal top of book and logs when they disagree by more than the
// reference spread.
func (e *Engine) checkQuoteDivergence(q *core.Quote) {
	bid, ask := e.book.BestBid(), e.book.BestAsk()
	if bid == 0 || ask == 0 {
		return
	}
	ref := q.Spread()
	if diff := bid - q.Bid(); diff > ref || diff < -ref {
		e.log.Debugw("bid_divergence", "internal", bid, "reference", q.Bid())
	}
	if diff := ask - q.Ask(); diff > ref || diff < -ref {
		e.log.Debugw("ask_divergence", "internal", ask, "reference", q.Ask())
	}
}

// OnOrderEvent journals order lifecycle transitions.
func (e *Engine) OnOrderEvent(o *core.Order, et core.EventType) {
	e.wal.Append(fmt.Sprintf("%s id=%d side=%s price=%v qty=%d", et, o.ID, o.Side, o.Price, o.Qty))
}

// OnTrade persists and fans out executions.
func (e *Engine) OnTrade(x *core.Execution) {
	if line, err := json.Marshal(x); err == nil {
		e.wal.Append(string(line))
	}
	if e.store != nil {
		if err := e.store.Append(x); err != nil {
			e.log.Errorw("trade_persist_failed", "id", x.ID, "err", err)
		}
	}
	e.mu.Lock()
	cbs := e.execCbs
	e.mu.Unlock()
	for _, cb := range cbs {
		cb(x)
	}
}

var _ core.BookListener = (*Engine)(nil)
