package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/tradesim/pkg/engine/core"
)

// TradeStore persists executed trades in pebble, keyed by symbol and a
// monotonically increasing sequence so a prefix scan returns them in
// execution order.
type TradeStore struct {
	mu  sync.Mutex
	db  *pebble.DB
	seq uint64
}

func NewTradeStore(path string) (*TradeStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("trade store: open %s: %w", path, err)
	}
	s := &TradeStore{db: db}
	if err := s.recoverSeq(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *TradeStore) Close() error { return s.db.Close() }

// keys: t:<symbol>:<8-byte-big-endian-seq>
func kTrade(symbol string, seq uint64) []byte {
	key := make([]byte, 0, 2+len(symbol)+1+8)
	key = append(key, 't', ':')
	key = append(key, symbol...)
	key = append(key, ':')
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return append(key, buf[:]...)
}

func kSeq() []byte { return []byte("seq") }

func (s *TradeStore) recoverSeq() error {
	val, closer, err := s.db.Get(kSeq())
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil
		}
		return fmt.Errorf("trade store: recover seq: %w", err)
	}
	defer closer.Close()
	if len(val) == 8 {
		s.seq = binary.BigEndian.Uint64(val)
	}
	return nil
}

// Append persists one execution.
func (s *TradeStore) Append(e *core.Execution) error {
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("trade store: encode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	batch := s.db.NewBatch()
	if err := batch.Set(kTrade(e.Symbol, s.seq), val, nil); err != nil {
		return fmt.Errorf("trade store: set: %w", err)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], s.seq)
	if err := batch.Set(kSeq(), buf[:], nil); err != nil {
		return fmt.Errorf("trade store: set seq: %w", err)
	}
	if err := s.db.Apply(batch, pebble.Sync); err != nil {
		return fmt.Errorf("trade store: apply: %w", err)
	}
	return nil
}

// Recent returns up to n most recent executions for a symbol, newest first.
func (s *TradeStore) Recent(symbol string, n int) ([]core.Execution, error) {
	if n <= 0 {
		return []core.Execution{}, nil
	}

	lower := kTrade(symbol, 0)
	upper := kTrade(symbol, ^uint64(0))
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("trade store: iter: %w", err)
	}
	defer iter.Close()

	out := make([]core.Execution, 0, n)
	for ok := iter.Last(); ok && len(out) < n; ok = iter.Prev() {
		var e core.Execution
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, fmt.Errorf("trade store: decode: %w", err)
		}
		out = append(out, e)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("trade store: scan: %w", err)
	}
	return out, nil
}
