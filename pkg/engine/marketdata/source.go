package marketdata

import (
	"time"

	"github.com/uhyunpark/tradesim/pkg/engine/core"
)

// Callback receives market events as they are produced. For a single
// source, invocation order follows event timestamp order.
type Callback func(core.MarketEvent)

// Source produces a stream of market events. Lifecycle:
// Initialize -> StartStreaming -> StopStreaming.
type Source interface {
	// Initialize prepares the source (opens files, validates config).
	Initialize() error

	// StartStreaming begins asynchronous delivery to cb. Delivery happens
	// on a goroutine owned by the source and continues until StopStreaming.
	StartStreaming(cb Callback)

	// StopStreaming halts delivery and waits for the producer to exit.
	StopStreaming()

	IsStreaming() bool

	// Symbols lists the symbols this source provides.
	Symbols() []string

	// CurrentTimestamp is the timestamp of the most recently delivered
	// event, or the zero time before streaming starts.
	CurrentTimestamp() time.Time
}
