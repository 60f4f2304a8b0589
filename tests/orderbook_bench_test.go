package tests

import (
	"math/rand"
	"testing"
	"time"

	"github.com/uhyunpark/tradesim/pkg/engine/book"
	"github.com/uhyunpark/tradesim/pkg/engine/core"
)

func prefilledBook(levels int) (*book.Book, uint64) {
	b := book.New(symbol)
	var id uint64
	ts := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < levels; i++ {
		id++
		b.AddOrder(&core.Order{
			ID: id, Symbol: symbol, Side: core.Buy,
			Price: float64(1000 - i), Qty: 100, Time: ts,
		})
		id++
		b.AddOrder(&core.Order{
			ID: id, Symbol: symbol, Side: core.Sell,
			Price: float64(1100 + i), Qty: 100, Time: ts,
		})
	}
	return b, id
}

// BenchmarkBookAddCrossing measures matching throughput against realistic
// depth: every order crosses the mid and fills.
func BenchmarkBookAddCrossing(b *testing.B) {
	ob, id := prefilledBook(100)
	ts := time.Now()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id++
		side := core.Sell
		price := 1000.0 // hits best bid
		if i%2 == 0 {
			side = core.Buy
			price = 1100.0 // hits best ask
		}
		ob.AddOrder(&core.Order{
			ID: id, Symbol: symbol, Side: side, Price: price, Qty: 10, Time: ts,
		})
	}
}

// BenchmarkBookAddResting measures placement of passive orders spread over
// many price levels.
func BenchmarkBookAddResting(b *testing.B) {
	ob, id := prefilledBook(100)
	rng := rand.New(rand.NewSource(1))
	ts := time.Now()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id++
		ob.AddOrder(&core.Order{
			ID: id, Symbol: symbol, Side: core.Buy,
			Price: float64(500 + rng.Intn(400)), Qty: 10, Time: ts,
		})
	}
}

// BenchmarkBookDepth measures the depth snapshot query.
func BenchmarkBookDepth(b *testing.B) {
	ob, _ := prefilledBook(100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ob.Depth(20)
	}
}
