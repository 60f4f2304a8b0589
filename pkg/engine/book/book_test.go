package book

import (
	"math/rand"
	"testing"
	"time"

	"github.com/uhyunpark/tradesim/pkg/engine/core"
)

const sym = "SIM-USD"

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func order(id uint64, side core.Side, price float64, qty uint64, seq int) *core.Order {
	return &core.Order{
		ID:     id,
		Symbol: sym,
		Side:   side,
		Price:  price,
		Qty:    qty,
		Time:   baseTime.Add(time.Duration(seq) * time.Millisecond),
	}
}

type orderEvent struct {
	id  uint64
	et  core.EventType
	qty uint64
}

// recordingListener captures every callback for assertions.
type recordingListener struct {
	orders []orderEvent
	execs  []*core.Execution
}

func (r *recordingListener) OnOrderEvent(o *core.Order, et core.EventType) {
	r.orders = append(r.orders, orderEvent{id: o.ID, et: et, qty: o.Qty})
}

func (r *recordingListener) OnTrade(e *core.Execution) {
	r.execs = append(r.execs, e)
}

func TestAddOrderRejections(t *testing.T) {
	tests := []struct {
		name  string
		order *core.Order
	}{
		{"nil order", nil},
		{"wrong symbol", order(1, core.Buy, 100, 10, 0)},
		{"zero quantity", order(2, core.Buy, 100, 0, 0)},
		{"zero price", order(3, core.Buy, 0, 10, 0)},
		{"negative price", order(4, core.Sell, -5, 10, 0)},
	}
	tests[1].order.Symbol = "OTHER-USD"

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(sym)
			if b.AddOrder(tt.order) {
				t.Fatalf("AddOrder accepted %s", tt.name)
			}
			if n := b.RestingCount(); n != 0 {
				t.Fatalf("book not empty after rejection: %d resting", n)
			}
		})
	}
}

func TestAddOrderDuplicateID(t *testing.T) {
	b := New(sym)
	if !b.AddOrder(order(1, core.Buy, 100, 10, 0)) {
		t.Fatal("first add rejected")
	}
	if b.AddOrder(order(1, core.Buy, 101, 5, 1)) {
		t.Fatal("duplicate resting ID accepted")
	}
	if got := b.QuantityAtPrice(100, core.Buy); got != 10 {
		t.Fatalf("duplicate add mutated book: qty = %d", got)
	}
}

// Resting bid partially consumed by a smaller marketable sell.
func TestPartialFillAgainstRestingBid(t *testing.T) {
	b := New(sym)
	rec := &recordingListener{}
	b.RegisterListener(rec)

	if !b.AddOrder(order(1, core.Buy, 100, 10, 0)) {
		t.Fatal("bid rejected")
	}
	if got := b.BestBid(); got != 100 {
		t.Fatalf("BestBid = %v, want 100", got)
	}
	if got := b.BestAsk(); got != 0 {
		t.Fatalf("BestAsk = %v, want 0 sentinel", got)
	}

	incoming := order(2, core.Sell, 99, 4, 1)
	if !b.AddOrder(incoming) {
		t.Fatal("sell rejected")
	}

	if !incoming.Filled() {
		t.Fatalf("incoming sell not fully filled, qty = %d", incoming.Qty)
	}
	if got := b.QuantityAtPrice(100, core.Buy); got != 6 {
		t.Fatalf("QuantityAtPrice(100, Buy) = %d, want 6", got)
	}
	resting, ok := b.RestingOrder(1)
	if !ok || resting.Qty != 6 {
		t.Fatalf("order 1 resting = %v qty %d, want qty 6", ok, resting.Qty)
	}

	if len(rec.execs) != 1 {
		t.Fatalf("executions = %d, want 1", len(rec.execs))
	}
	e := rec.execs[0]
	if e.Price != 100 || e.Qty != 4 || e.MakerID != 1 || e.TakerID != 2 || e.Aggressor != core.Sell {
		t.Fatalf("unexpected execution %+v", e)
	}
	if e.ID == "" {
		t.Fatal("execution has no digest ID")
	}
	if got := b.LastPrice(); got != 100 {
		t.Fatalf("LastPrice = %v, want 100", got)
	}
}

func TestCancelIdempotence(t *testing.T) {
	b := New(sym)

	if !b.AddOrder(order(3, core.Sell, 101, 5, 0)) {
		t.Fatal("ask rejected")
	}
	if got := b.BestAsk(); got != 101 {
		t.Fatalf("BestAsk = %v, want 101", got)
	}

	if !b.CancelOrder(3) {
		t.Fatal("cancel of resting order failed")
	}
	if got := b.BestAsk(); got != 0 {
		t.Fatalf("BestAsk after cancel = %v, want 0", got)
	}
	if b.CancelOrder(3) {
		t.Fatal("second cancel succeeded")
	}
	if b.CancelOrder(999) {
		t.Fatal("cancel of unknown ID succeeded")
	}
}

func TestFIFOAtSamePrice(t *testing.T) {
	b := New(sym)
	rec := &recordingListener{}
	b.RegisterListener(rec)

	b.AddOrder(order(1, core.Sell, 100, 5, 0)) // earlier
	b.AddOrder(order(2, core.Sell, 100, 5, 1)) // later

	b.AddOrder(order(3, core.Buy, 100, 7, 2))

	if len(rec.execs) != 2 {
		t.Fatalf("executions = %d, want 2", len(rec.execs))
	}
	if rec.execs[0].MakerID != 1 || rec.execs[0].Qty != 5 {
		t.Fatalf("first execution hit maker %d qty %d, want maker 1 qty 5",
			rec.execs[0].MakerID, rec.execs[0].Qty)
	}
	if rec.execs[1].MakerID != 2 || rec.execs[1].Qty != 2 {
		t.Fatalf("second execution hit maker %d qty %d, want maker 2 qty 2",
			rec.execs[1].MakerID, rec.execs[1].Qty)
	}
	if got := b.QuantityAtPrice(100, core.Sell); got != 3 {
		t.Fatalf("remaining at 100 = %d, want 3", got)
	}
}

func TestPricePriorityAcrossLevels(t *testing.T) {
	b := New(sym)
	rec := &recordingListener{}
	b.RegisterListener(rec)

	b.AddOrder(order(1, core.Sell, 101, 5, 0))
	b.AddOrder(order(2, core.Sell, 100, 5, 1)) // better price, later arrival

	b.AddOrder(order(3, core.Buy, 102, 8, 2))

	if rec.execs[0].MakerID != 2 || rec.execs[0].Price != 100 {
		t.Fatalf("first fill at %v against %d, want 100 against maker 2",
			rec.execs[0].Price, rec.execs[0].MakerID)
	}
	if rec.execs[1].MakerID != 1 || rec.execs[1].Price != 101 {
		t.Fatalf("second fill at %v against %d, want 101 against maker 1",
			rec.execs[1].Price, rec.execs[1].MakerID)
	}
}

func TestMarketableRemainderRests(t *testing.T) {
	b := New(sym)

	b.AddOrder(order(1, core.Sell, 100, 4, 0))
	incoming := order(2, core.Buy, 100, 10, 1)
	b.AddOrder(incoming)

	if incoming.Qty != 6 {
		t.Fatalf("incoming remainder = %d, want 6", incoming.Qty)
	}
	if got := b.BestBid(); got != 100 {
		t.Fatalf("BestBid = %v, want 100 (remainder rests)", got)
	}
	if got := b.BestAsk(); got != 0 {
		t.Fatalf("BestAsk = %v, want 0 (fully consumed)", got)
	}
	if got := b.QuantityAtPrice(100, core.Buy); got != 6 {
		t.Fatalf("resting remainder = %d, want 6", got)
	}
}

func TestSpreadAndMid(t *testing.T) {
	b := New(sym)

	if b.Spread() != 0 || b.MidPrice() != 0 {
		t.Fatal("empty book should report 0 spread and mid")
	}

	b.AddOrder(order(1, core.Buy, 99, 10, 0))
	if b.Spread() != 0 || b.MidPrice() != 0 {
		t.Fatal("one-sided book should report 0 spread and mid")
	}

	b.AddOrder(order(2, core.Sell, 101, 10, 1))
	if got := b.Spread(); got != 2 {
		t.Fatalf("Spread = %v, want 2", got)
	}
	if got := b.MidPrice(); got != 100 {
		t.Fatalf("MidPrice = %v, want 100", got)
	}
}

func TestDepth(t *testing.T) {
	b := New(sym)

	b.AddOrder(order(1, core.Buy, 99, 10, 0))
	b.AddOrder(order(2, core.Buy, 99, 5, 1)) // same level, aggregated
	b.AddOrder(order(3, core.Buy, 98, 7, 2))
	b.AddOrder(order(4, core.Sell, 101, 3, 3))
	b.AddOrder(order(5, core.Sell, 102, 4, 4))
	b.AddOrder(order(6, core.Sell, 103, 6, 5))

	bids, asks := b.Depth(0)
	if len(bids) != 0 || len(asks) != 0 {
		t.Fatalf("Depth(0) = %d/%d levels, want 0/0", len(bids), len(asks))
	}

	bids, asks = b.Depth(2)
	if len(bids) != 2 || len(asks) != 2 {
		t.Fatalf("Depth(2) = %d/%d levels, want 2/2", len(bids), len(asks))
	}
	if bids[0] != (Level{Price: 99, Qty: 15}) {
		t.Fatalf("best bid level = %+v, want 99/15", bids[0])
	}
	if bids[1] != (Level{Price: 98, Qty: 7}) {
		t.Fatalf("second bid level = %+v, want 98/7", bids[1])
	}
	if asks[0] != (Level{Price: 101, Qty: 3}) {
		t.Fatalf("best ask level = %+v, want 101/3", asks[0])
	}

	// more levels than exist: no padding
	bids, asks = b.Depth(10)
	if len(bids) != 2 || len(asks) != 3 {
		t.Fatalf("Depth(10) = %d/%d levels, want 2/3", len(bids), len(asks))
	}
}

func TestQuantityAtPriceMissingLevel(t *testing.T) {
	b := New(sym)
	b.AddOrder(order(1, core.Buy, 99, 10, 0))

	if got := b.QuantityAtPrice(98, core.Buy); got != 0 {
		t.Fatalf("QuantityAtPrice(98, Buy) = %d, want 0", got)
	}
	if got := b.QuantityAtPrice(99, core.Sell); got != 0 {
		t.Fatalf("QuantityAtPrice(99, Sell) = %d, want 0", got)
	}
}

func TestListenerLifecycleEvents(t *testing.T) {
	b := New(sym)
	rec := &recordingListener{}
	b.RegisterListener(rec)

	b.AddOrder(order(1, core.Buy, 100, 10, 0))
	b.AddOrder(order(2, core.Sell, 100, 10, 1))
	b.AddOrder(order(3, core.Sell, 105, 5, 2))
	b.CancelOrder(3)

	want := []orderEvent{
		{1, core.EventOrderAdded, 10},
		{2, core.EventOrderAdded, 0},  // fully matched on arrival
		{1, core.EventOrderFilled, 0}, // maker consumed
		{2, core.EventOrderFilled, 0}, // taker consumed
		{3, core.EventOrderAdded, 5},
		{3, core.EventOrderCancelled, 5},
	}
	if len(rec.orders) != len(want) {
		t.Fatalf("order events = %d, want %d: %+v", len(rec.orders), len(want), rec.orders)
	}
	for i, ev := range want {
		if rec.orders[i] != ev {
			t.Fatalf("event %d = %+v, want %+v", i, rec.orders[i], ev)
		}
	}
}

func TestProcessMarketEventPolicy(t *testing.T) {
	b := New(sym)
	b.AddOrder(order(1, core.Buy, 100, 10, 0))

	// exogenous trade: observational, updates last price only
	b.ProcessMarketEvent(core.NewTrade(sym, 105, 3, core.Buy, baseTime))
	if got := b.LastPrice(); got != 105 {
		t.Fatalf("LastPrice = %v, want 105", got)
	}
	if got := b.QuantityAtPrice(100, core.Buy); got != 10 {
		t.Fatalf("exogenous trade consumed resting qty: %d", got)
	}

	// other symbol: ignored
	b.ProcessMarketEvent(core.NewTrade("OTHER-USD", 50, 1, core.Sell, baseTime))
	if got := b.LastPrice(); got != 105 {
		t.Fatalf("foreign trade updated last price: %v", got)
	}

	// quote: never mutates
	b.ProcessMarketEvent(core.NewQuote(sym, 99, 101, 5, 5, baseTime))
	if got := b.BestBid(); got != 100 {
		t.Fatalf("quote mutated book: BestBid = %v", got)
	}
}

// The book must never persist a crossed state, and quantity must be
// conserved across adds, matches, and cancels.
func TestInvariantsUnderRandomFlow(t *testing.T) {
	b := New(sym)
	rec := &recordingListener{}
	b.RegisterListener(rec)

	rng := rand.New(rand.NewSource(42))
	var (
		added     uint64
		cancelled uint64
		live      []uint64
		nextID    uint64
	)

	for i := 0; i < 2000; i++ {
		if len(live) > 0 && rng.Intn(5) == 0 {
			idx := rng.Intn(len(live))
			id := live[idx]
			if q, ok := b.RestingOrder(id); ok {
				if !b.CancelOrder(id) {
					t.Fatalf("cancel of resting order %d failed", id)
				}
				cancelled += q.Qty
			}
			live = append(live[:idx], live[idx+1:]...)
			continue
		}

		nextID++
		side := core.Buy
		if rng.Intn(2) == 1 {
			side = core.Sell
		}
		price := 95 + float64(rng.Intn(11)) // 95..105
		qty := uint64(rng.Intn(20)) + 1
		o := order(nextID, side, price, qty, i)
		if !b.AddOrder(o) {
			t.Fatalf("valid order %d rejected", nextID)
		}
		added += qty
		if o.Qty > 0 {
			live = append(live, o.ID)
		}

		bid, ask := b.BestBid(), b.BestAsk()
		if bid != 0 && ask != 0 && bid >= ask {
			t.Fatalf("crossed book after op %d: bid %v >= ask %v", i, bid, ask)
		}
	}

	var executed uint64
	for _, e := range rec.execs {
		executed += e.Qty
	}
	var resting uint64
	bids, asks := b.Depth(1 << 20)
	for _, l := range bids {
		resting += l.Qty
	}
	for _, l := range asks {
		resting += l.Qty
	}

	// each execution consumes quantity from both sides
	if added-2*executed-cancelled != resting {
		t.Fatalf("conservation violated: added %d, executed 2x%d, cancelled %d, resting %d",
			added, executed, cancelled, resting)
	}
}
