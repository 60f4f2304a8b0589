package core

import "time"

// MarketEvent is the tagged union over trades and quotes. Events are
// immutable once constructed and are shared by pointer between the book
// and every registered strategy.
type MarketEvent interface {
	Type() EventType
	Symbol() string
	Timestamp() time.Time
}

// Trade is a trade execution observed on (or produced by) a market.
type Trade struct {
	symbol    string
	price     float64
	qty       uint64
	aggressor Side
	ts        time.Time
}

func NewTrade(symbol string, price float64, qty uint64, aggressor Side, ts time.Time) *Trade {
	return &Trade{symbol: symbol, price: price, qty: qty, aggressor: aggressor, ts: ts}
}

func (t *Trade) Type() EventType      { return EventTrade }
func (t *Trade) Symbol() string       { return t.symbol }
func (t *Trade) Timestamp() time.Time { return t.ts }
func (t *Trade) Price() float64       { return t.price }
func (t *Trade) Quantity() uint64     { return t.qty }
func (t *Trade) Aggressor() Side      { return t.aggressor }

// Quote is a top-of-book bid/ask snapshot.
type Quote struct {
	symbol  string
	bid     float64
	ask     float64
	bidSize uint64
	askSize uint64
	ts      time.Time
}

func NewQuote(symbol string, bid, ask float64, bidSize, askSize uint64, ts time.Time) *Quote {
	return &Quote{symbol: symbol, bid: bid, ask: ask, bidSize: bidSize, askSize: askSize, ts: ts}
}

func (q *Quote) Type() EventType      { return EventQuote }
func (q *Quote) Symbol() string       { return q.symbol }
func (q *Quote) Timestamp() time.Time { return q.ts }
func (q *Quote) Bid() float64         { return q.bid }
func (q *Quote) Ask() float64         { return q.ask }
func (q *Quote) BidSize() uint64      { return q.bidSize }
func (q *Quote) AskSize() uint64      { return q.askSize }
func (q *Quote) Spread() float64      { return q.ask - q.bid }
func (q *Quote) MidPrice() float64    { return (q.bid + q.ask) / 2 }
