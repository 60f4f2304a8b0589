package core

import "time"

// Side of an order or the aggressor side of a trade
type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the counterparty side
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// EventType classifies market and order-lifecycle events
type EventType int8

const (
	EventTrade EventType = iota
	EventQuote
	EventOrderAdded
	EventOrderCancelled
	EventOrderFilled
	EventStrategySignal
)

func (et EventType) String() string {
	switch et {
	case EventTrade:
		return "TRADE"
	case EventQuote:
		return "QUOTE"
	case EventOrderAdded:
		return "ORDER_ADDED"
	case EventOrderCancelled:
		return "ORDER_CANCELLED"
	case EventOrderFilled:
		return "ORDER_FILLED"
	case EventStrategySignal:
		return "STRATEGY_SIGNAL"
	default:
		return "UNKNOWN"
	}
}

// Order is a limit order. Identity fields (ID, Symbol, Side, Price, Time)
// are fixed at creation; Qty is decremented as fills occur and never goes
// negative. Once submitted to a book the book owns the order.
type Order struct {
	ID     uint64
	Symbol string
	Side   Side
	Price  float64
	Qty    uint64
	Time   time.Time
}

// Filled reports whether the order has no remaining quantity.
func (o *Order) Filled() bool { return o.Qty == 0 }
