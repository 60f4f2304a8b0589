package book

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/uhyunpark/tradesim/pkg/engine/core"
)

// Level is one aggregated price level of a depth snapshot.
type Level struct {
	Price float64 `json:"price"`
	Qty   uint64  `json:"qty"`
}

// restingRef locates a resting order for O(1) average cancellation.
type restingRef struct {
	price float64
	side  core.Side
}

// Book is a single-symbol price-time-priority limit order book.
//
// Bids and asks are FIFO queues per price level; best prices are tracked
// with heaps for O(1) peek. All mutation is serialized by the mutex;
// read queries take the read lock and never observe a half-applied match.
type Book struct {
	mu sync.RWMutex

	symbol string

	bidHeap *maxPriceHeap
	askHeap *minPriceHeap

	// price -> FIFO slice
	bids map[float64][]*core.Order
	asks map[float64][]*core.Order

	// order ID -> resting location
	index map[uint64]restingRef

	lastPrice float64 // most recent execution or exogenous trade price
	execSeq   uint64

	listeners []core.BookListener
}

func New(symbol string) *Book {
	bidHeap := &maxPriceHeap{}
	askHeap := &minPriceHeap{}
	heap.Init(bidHeap)
	heap.Init(askHeap)

	return &Book{
		symbol:  symbol,
		bidHeap: bidHeap,
		askHeap: askHeap,
		bids:    make(map[float64][]*core.Order),
		asks:    make(map[float64][]*core.Order),
		index:   make(map[uint64]restingRef),
	}
}

func (b *Book) Symbol() string { return b.symbol }

// RegisterListener adds an observer for order and execution events.
// Not safe to call concurrently with book mutation; register at wiring time.
func (b *Book) RegisterListener(l core.BookListener) {
	b.listeners = append(b.listeners, l)
}

// AddOrder validates the order, matches it against the opposite side while
// it is marketable, and rests any remainder. Returns false and leaves the
// book untouched on wrong symbol, zero quantity, non-positive price, or an
// ID that is already resting.
//
// The incoming order's Qty is decremented by any immediate fills, so the
// caller can observe its remaining quantity. The rested remainder is a
// private copy owned by the book.
func (b *Book) AddOrder(o *core.Order) bool {
	if o == nil || o.Symbol != b.symbol || o.Qty == 0 || o.Price <= 0 {
		return false
	}

	b.mu.Lock()
	if _, dup := b.index[o.ID]; dup {
		b.mu.Unlock()
		return false
	}

	execs, makers := b.match(o)
	if o.Qty > 0 {
		cp := *o
		b.rest(&cp)
	}
	b.mu.Unlock()

	b.notifyOrder(o, core.EventOrderAdded)
	for i, e := range execs {
		b.notifyTrade(e)
		b.notifyOrder(makers[i], core.EventOrderFilled)
	}
	if len(execs) > 0 {
		b.notifyOrder(o, core.EventOrderFilled)
	}
	return true
}

// match runs the price-time-priority loop. Caller holds the write lock.
// Returns one execution per match plus the maker order touched by each.
func (b *Book) match(o *core.Order) ([]*core.Execution, []*core.Order) {
	var (
		execs  []*core.Execution
		makers []*core.Order
	)

	if o.Side == core.Buy {
		for o.Qty > 0 {
			if b.askHeap.Len() == 0 {
				break
			}
			askP := b.askHeap.Peek()
			if askP > o.Price {
				break
			}
			level := b.asks[askP]
			if len(level) == 0 {
				delete(b.asks, askP)
				b.removeFromAskHeap(askP)
				continue
			}
			maker := level[0]
			qty := min(o.Qty, maker.Qty)
			o.Qty -= qty
			maker.Qty -= qty
			b.execSeq++
			execs = append(execs, core.NewExecution(b.symbol, askP, qty, core.Buy, maker.ID, o.ID, b.execSeq, o.Time))
			makers = append(makers, maker)
			b.lastPrice = askP
			if maker.Qty == 0 {
				b.asks[askP] = level[1:]
				delete(b.index, maker.ID)
				if len(b.asks[askP]) == 0 {
					delete(b.asks, askP)
					b.removeFromAskHeap(askP)
				}
			}
		}
	} else {
		for o.Qty > 0 {
			if b.bidHeap.Len() == 0 {
				break
			}
			bidP := b.bidHeap.Peek()
			if bidP < o.Price {
				break
			}
			level := b.bids[bidP]
			if len(level) == 0 {
				delete(b.bids, bidP)
				b.removeFromBidHeap(bidP)
				continue
			}
			maker := level[0]
			qty := min(o.Qty, maker.Qty)
			o.Qty -= qty
			maker.Qty -= qty
			b.execSeq++
			execs = append(execs, core.NewExecution(b.symbol, bidP, qty, core.Sell, maker.ID, o.ID, b.execSeq, o.Time))
			makers = append(makers, maker)
			b.lastPrice = bidP
			if maker.Qty == 0 {
				b.bids[bidP] = level[1:]
				delete(b.index, maker.ID)
				if len(b.bids[bidP]) == 0 {
					delete(b.bids, bidP)
					b.removeFromBidHeap(bidP)
				}
			}
		}
	}
	return execs, makers
}

// rest enqueues an order on its own side. Caller holds the write lock.
func (b *Book) rest(o *core.Order) {
	if o.Side == core.Buy {
		if len(b.bids[o.Price]) == 0 {
			heap.Push(b.bidHeap, o.Price)
		}
		b.bids[o.Price] = append(b.bids[o.Price], o)
	} else {
		if len(b.asks[o.Price]) == 0 {
			heap.Push(b.askHeap, o.Price)
		}
		b.asks[o.Price] = append(b.asks[o.Price], o)
	}
	b.index[o.ID] = restingRef{price: o.Price, side: o.Side}
}

// CancelOrder removes a resting order. Returns false if the ID is unknown
// or already fully filled; cancelling twice is a no-op the second time.
func (b *Book) CancelOrder(id uint64) bool {
	b.mu.Lock()
	ref, ok := b.index[id]
	if !ok {
		b.mu.Unlock()
		return false
	}

	ledger := b.bids
	if ref.side == core.Sell {
		ledger = b.asks
	}

	var cancelled *core.Order
	arr := ledger[ref.price]
	for i, o := range arr {
		if o.ID == id {
			cancelled = o
			ledger[ref.price] = append(arr[:i], arr[i+1:]...)
			break
		}
	}
	if cancelled == nil {
		// index said the order rests here; the ledger disagrees
		b.mu.Unlock()
		panic("book: order index desynchronized from ledger")
	}

	if len(ledger[ref.price]) == 0 {
		delete(ledger, ref.price)
		if ref.side == core.Buy {
			b.removeFromBidHeap(ref.price)
		} else {
			b.removeFromAskHeap(ref.price)
		}
	}
	delete(b.index, id)
	b.mu.Unlock()

	b.notifyOrder(cancelled, core.EventOrderCancelled)
	return true
}

func (b *Book) removeFromBidHeap(price float64) {
	for i := 0; i < b.bidHeap.Len(); i++ {
		if (*b.bidHeap)[i] == price {
			heap.Remove(b.bidHeap, i)
			return
		}
	}
}

func (b *Book) removeFromAskHeap(price float64) {
	for i := 0; i < b.askHeap.Len(); i++ {
		if (*b.askHeap)[i] == price {
			heap.Remove(b.askHeap, i)
			return
		}
	}
}

// BestBid returns the highest resting bid price, 0 if no bids.
func (b *Book) BestBid() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bidHeap.Peek()
}

// BestAsk returns the lowest resting ask price, 0 if no asks.
func (b *Book) BestAsk() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.askHeap.Peek()
}

// Spread returns ask minus bid, 0 if either side is empty.
func (b *Book) Spread() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bid, ask := b.bidHeap.Peek(), b.askHeap.Peek()
	if bid == 0 || ask == 0 {
		return 0
	}
	return ask - bid
}

// MidPrice returns (bid+ask)/2, 0 if either side is empty.
func (b *Book) MidPrice() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bid, ask := b.bidHeap.Peek(), b.askHeap.Peek()
	if bid == 0 || ask == 0 {
		return 0
	}
	return (bid + ask) / 2
}

// LastPrice returns the most recent execution price, or the price of the
// last exogenous trade fed through ProcessMarketEvent. 0 before any trade.
func (b *Book) LastPrice() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastPrice
}

// QuantityAtPrice sums resting quantity at exactly the given price.
func (b *Book) QuantityAtPrice(price float64, side core.Side) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ledger := b.bids
	if side == core.Sell {
		ledger = b.asks
	}
	var total uint64
	for _, o := range ledger[price] {
		total += o.Qty
	}
	return total
}

// Depth returns up to levels aggregated price levels per side, best price
// first. levels <= 0 yields two empty slices; a shallow book yields fewer
// levels without padding.
func (b *Book) Depth(levels int) (bids, asks []Level) {
	bids, asks = []Level{}, []Level{}
	if levels <= 0 {
		return bids, asks
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for price, orders := range b.bids {
		if len(orders) == 0 {
			continue
		}
		var total uint64
		for _, o := range orders {
			total += o.Qty
		}
		bids = append(bids, Level{Price: price, Qty: total})
	}
	for price, orders := range b.asks {
		if len(orders) == 0 {
			continue
		}
		var total uint64
		for _, o := range orders {
			total += o.Qty
		}
		asks = append(asks, Level{Price: price, Qty: total})
	}

	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	if len(bids) > levels {
		bids = bids[:levels]
	}
	if len(asks) > levels {
		asks = asks[:levels]
	}
	return bids, asks
}

// RestingOrder returns a copy of a resting order for inspection.
func (b *Book) RestingOrder(id uint64) (core.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ref, ok := b.index[id]
	if !ok {
		return core.Order{}, false
	}
	ledger := b.bids
	if ref.side == core.Sell {
		ledger = b.asks
	}
	for _, o := range ledger[ref.price] {
		if o.ID == id {
			return *o, true
		}
	}
	return core.Order{}, false
}

// RestingCount returns the number of orders currently resting.
func (b *Book) RestingCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.index)
}

// ProcessMarketEvent folds an exogenous market event into the book.
//
// Policy: external events are observational only. A Trade updates the
// last-reference price but never consumes resting orders; a Quote does not
// mutate the book at all (callers compare it against BestBid/BestAsk for
// divergence checks). Events for other symbols are ignored.
func (b *Book) ProcessMarketEvent(ev core.MarketEvent) {
	if ev == nil || ev.Symbol() != b.symbol {
		return
	}
	if t, ok := ev.(*core.Trade); ok {
		b.mu.Lock()
		b.lastPrice = t.Price()
		b.mu.Unlock()
	}
}

func (b *Book) notifyOrder(o *core.Order, et core.EventType) {
	for _, l := range b.listeners {
		l.OnOrderEvent(o, et)
	}
}

func (b *Book) notifyTrade(e *core.Execution) {
	for _, l := range b.listeners {
		l.OnTrade(e)
	}
}
