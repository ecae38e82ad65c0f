package ingest

import (
	"context"
	"encoding/binary"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
)

var errTimeout = errors.New("request timed out")

func hashOf(index uint32) ledger.Hash256 {
	var h ledger.Hash256
	binary.BigEndian.PutUint32(h[:4], index)
	h[31] = 0xAB
	return h
}

func bogusHash(index uint32) ledger.Hash256 {
	h := hashOf(index)
	h[31] = 0xEE
	return h
}

// fakeChain serves decoded ledgers linked by parent hash.
type fakeChain struct {
	mu        sync.Mutex
	ledgers   map[uint32]*ledger.Ledger
	failures  map[uint32]int
	calls     map[uint32]int
	validated uint32
	stale     int
	delay     time.Duration

	inflight    int
	maxInflight int
}

func newChain(from, to uint32) *fakeChain {
	c := &fakeChain{
		ledgers:   map[uint32]*ledger.Ledger{},
		failures:  map[uint32]int{},
		calls:     map[uint32]int{},
		validated: to,
	}
	for i := from; i <= to; i++ {
		c.ledgers[i] = &ledger.Ledger{
			Index:      i,
			Hash:       hashOf(i),
			ParentHash: hashOf(i - 1),
			CloseTime:  time.Unix(int64(946684800+i*4), 0).UTC(),
			Closed:     true,
		}
	}
	return c
}

func (c *fakeChain) GetLedger(ctx context.Context, spec ledger.Specifier) (*ledger.Ledger, error) {
	c.mu.Lock()
	index := spec.Index
	if spec.Validated {
		index = c.validated
		if c.stale > 0 {
			c.stale--
			index--
		}
	}
	c.calls[index]++
	c.inflight++
	if c.inflight > c.maxInflight {
		c.maxInflight = c.inflight
	}
	fail := c.failures[index] > 0
	if fail {
		c.failures[index]--
	}
	l, ok := c.ledgers[index]
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inflight--
		c.mu.Unlock()
	}()

	if c.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.delay):
		}
	}
	switch {
	case fail:
		return nil, errTimeout
	case !ok:
		return nil, ErrNotFound
	}
	return l, nil
}

func (c *fakeChain) setValidated(index uint32) {
	c.mu.Lock()
	c.validated = index
	c.mu.Unlock()
}

func (c *fakeChain) callsFor(index uint32) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[index]
}

// collector records emitted ledgers.
type collector struct {
	mu      sync.Mutex
	indexes []uint32
	fail    map[uint32]int
}

func (c *collector) emit(_ context.Context, l *ledger.Ledger) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail[l.Index] > 0 {
		c.fail[l.Index]--
		return errors.New("sink unavailable")
	}
	c.indexes = append(c.indexes, l.Index)
	return nil
}

func (c *collector) emitted() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint32(nil), c.indexes...)
}

func (c *collector) sorted() []uint32 {
	out := c.emitted()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// fakeSource serves raw ledgers without transactions.
type fakeSource struct {
	mu        sync.Mutex
	raw       map[uint32]*ledger.RawLedger
	failures  map[uint32]int
	calls     map[uint32]int
	validated uint32
	closes    chan LedgerClosed
}

func newSource(from, to uint32) *fakeSource {
	s := &fakeSource{
		raw:       map[uint32]*ledger.RawLedger{},
		failures:  map[uint32]int{},
		calls:     map[uint32]int{},
		validated: to,
		closes:    make(chan LedgerClosed),
	}
	for i := from; i <= to; i++ {
		s.raw[i] = &ledger.RawLedger{
			Index:      i,
			Hash:       hashOf(i),
			ParentHash: hashOf(i - 1),
			CloseTime:  i * 4,
			Closed:     true,
		}
	}
	return s
}

func (s *fakeSource) Ledger(ctx context.Context, spec ledger.Specifier) (*ledger.RawLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index := spec.Index
	if spec.Validated {
		index = s.validated
	}
	s.calls[index]++
	if n := s.failures[index]; n != 0 {
		if n > 0 {
			s.failures[index]--
		}
		return nil, errTimeout
	}
	raw, ok := s.raw[index]
	if !ok {
		return nil, ErrNotFound
	}
	return raw, nil
}

func (s *fakeSource) Subscribe(ctx context.Context) (<-chan LedgerClosed, error) {
	return s.closes, nil
}

func (s *fakeSource) setValidated(index uint32) {
	s.mu.Lock()
	s.validated = index
	s.mu.Unlock()
}

func (s *fakeSource) callsFor(index uint32) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[index]
}

// memStorage is a Storage over a map of records.
type memStorage struct {
	mu      sync.Mutex
	records map[uint32]LedgerRecord
}

func newMemStorage(c *fakeChain, indexes ...uint32) *memStorage {
	s := &memStorage{records: map[uint32]LedgerRecord{}}
	for _, i := range indexes {
		s.add(c.ledgers[i])
	}
	return s
}

func (s *memStorage) add(l *ledger.Ledger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[l.Index] = LedgerRecord{Index: l.Index, Hash: l.Hash, ParentHash: l.ParentHash, CloseTime: l.CloseTime}
}

func (s *memStorage) emit(_ context.Context, l *ledger.Ledger) error {
	s.add(l)
	return nil
}

func (s *memStorage) GetRange(_ context.Context, start, stop uint32) ([]LedgerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []LedgerRecord
	for i := start; i <= stop; i++ {
		if r, ok := s.records[i]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStorage) GetLatest(_ context.Context) (*LedgerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *LedgerRecord
	for _, r := range s.records {
		if latest == nil || r.Index > latest.Index {
			r := r
			latest = &r
		}
	}
	if latest == nil {
		return nil, ErrNoLedgers
	}
	return latest, nil
}

func (s *memStorage) has(from, to uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := from; i <= to; i++ {
		if _, ok := s.records[i]; !ok {
			return false
		}
	}
	return true
}
