package core

import (
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"
)

// Execution records a single match between a resting (maker) order and an
// incoming (taker) order. Executed at the maker's price.
type Execution struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Qty       uint64    `json:"qty"`
	Aggressor Side      `json:"aggressor"`
	MakerID   uint64    `json:"maker_id"`
	TakerID   uint64    `json:"taker_id"`
	Seq       uint64    `json:"seq"`
	Time      time.Time `json:"time"`
}

// NewExecution builds an execution and assigns its digest ID.
func NewExecution(symbol string, price float64, qty uint64, aggressor Side, makerID, takerID, seq uint64, ts time.Time) *Execution {
	e := &Execution{
		Symbol:    symbol,
		Price:     price,
		Qty:       qty,
		Aggressor: aggressor,
		MakerID:   makerID,
		TakerID:   takerID,
		Seq:       seq,
		Time:      ts,
	}
	e.ID = e.digest()
	return e
}

// digest derives the execution ID from its immutable fields.
func (e *Execution) digest() string {
	payload := fmt.Sprintf("%s|%.8f|%d|%d|%d|%d|%d",
		e.Symbol, e.Price, e.Qty, e.Aggressor, e.MakerID, e.TakerID, e.Seq)
	hash := make([]byte, 32)
	sha3.ShakeSum256(hash, []byte(payload))
	return hex.EncodeToString(hash)
}

func (e *Execution) String() string {
	return fmt.Sprintf("[exec/%s] %s %d@%v taker=%d maker=%d",
		e.ID[:6], e.Aggressor, e.Qty, e.Price, e.TakerID, e.MakerID)
}
