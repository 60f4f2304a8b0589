package api

// API response types for REST endpoints and WebSocket messages

// PriceLevel is one aggregated depth level.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  uint64  `json:"size"`
}

// OrderbookSnapshot is the current book depth.
type OrderbookSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`      // sorted high to low
	Asks      []PriceLevel `json:"asks"`      // sorted low to high
	Timestamp int64        `json:"timestamp"` // Unix milliseconds
}

// BBO is the best bid/offer with derived spread and mid.
type BBO struct {
	Symbol   string  `json:"symbol"`
	Bid      float64 `json:"bid"`
	Ask      float64 `json:"ask"`
	Spread   float64 `json:"spread"`
	MidPrice float64 `json:"midPrice"`
	Last     float64 `json:"last"`
}

// TradeInfo is one executed trade.
type TradeInfo struct {
	ID        string  `json:"id"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Size      uint64  `json:"size"`
	Side      string  `json:"side"`      // aggressor side
	Timestamp int64   `json:"timestamp"` // Unix milliseconds
}

// SubmitOrderRequest places a limit order.
type SubmitOrderRequest struct {
	Side  string  `json:"side"` // "BUY" or "SELL"
	Price float64 `json:"price"`
	Qty   uint64  `json:"qty"`
}

// SubmitOrderResponse reports the allocated order ID.
type SubmitOrderResponse struct {
	OrderID  uint64 `json:"orderId"`
	Accepted bool   `json:"accepted"`
}

// CancelOrderRequest cancels a resting order.
type CancelOrderRequest struct {
	OrderID uint64 `json:"orderId"`
}

// CancelOrderResponse reports whether the order was resting.
type CancelOrderResponse struct {
	OrderID   uint64 `json:"orderId"`
	Cancelled bool   `json:"cancelled"`
}

// StrategyInfo reports a running strategy's state.
type StrategyInfo struct {
	Name     string  `json:"name"`
	Symbol   string  `json:"symbol"`
	Running  bool    `json:"running"`
	Position int64   `json:"position"`
	PnL      float64 `json:"pnl"`
}

// WSSubscribeRequest is the client -> server subscription message.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}
