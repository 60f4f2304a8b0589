package strategy

import (
	"github.com/uhyunpark/tradesim/pkg/engine/core"
)

// BookHandle is the slice of the order book a strategy may touch.
type BookHandle interface {
	AddOrder(o *core.Order) bool
	CancelOrder(id uint64) bool
	BestBid() float64
	BestAsk() float64
	MidPrice() float64
}

// Strategy consumes market events and order-lifecycle notifications and
// trades through its book handle. The order book is the sole source of
// order-event notifications, so every Strategy is also a core.BookListener.
type Strategy interface {
	core.BookListener

	// Initialize binds the strategy to a symbol and its book handle.
	Initialize(symbol string, book BookHandle) error

	// OnMarketEvent delivers a market event. Called from the engine's
	// delivery goroutine, never concurrently with itself.
	OnMarketEvent(ev core.MarketEvent)

	Name() string
	Symbol() string

	// Position is the signed inventory: positive long, negative short.
	Position() int64

	// PnL is the mark-to-market profit and loss in quote currency.
	PnL() float64

	Start()
	Stop()
	IsRunning() bool
}
