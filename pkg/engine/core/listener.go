package core

// BookListener receives order-lifecycle and execution callbacks from an
// order book. Implementations must be fast and non-blocking; callbacks are
// delivered on the goroutine that mutated the book.
type BookListener interface {
	// OnOrderEvent fires when an order is added, cancelled, or has its
	// quantity reduced by a fill. The order reflects its state after the
	// event (Qty == 0 means fully filled).
	OnOrderEvent(o *Order, et EventType)

	// OnTrade fires once per match with the executed price and quantity.
	OnTrade(e *Execution)
}

// NopListener is the no-op default.
type NopListener struct{}

func (NopListener) OnOrderEvent(*Order, EventType) {}
func (NopListener) OnTrade(*Execution)             {}
