package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
)

// ErrChainBroken reports a ledger whose hash does not match the parent hash
// of its successor, or a source that answered with the wrong ledger.
var ErrChainBroken = errors.New("ledger chain broken")

// DefaultQueueLength bounds the ledgers a Backfiller has in flight.
const DefaultQueueLength = 20

// Section describes one backfilled range. StartIndex is the highest ledger,
// StopIndex the lowest. StopHash is the hash of the ledger emitted at
// StopIndex once the section completed.
type Section struct {
	StartIndex uint32
	StopIndex  uint32
	StopHash   ledger.Hash256
	Err        error
}

// Len is the number of ledgers in the section.
func (s Section) Len() uint32 {
	return s.StartIndex - s.StopIndex + 1
}

// BackfillConfig configures one Backfiller run.
type BackfillConfig struct {
	StartIndex uint32
	StopIndex  uint32

	// Anchor is the expected hash of the ledger at StartIndex. When zero the
	// Backfiller fetches StartIndex+1 and uses its parent hash.
	Anchor ledger.Hash256

	QueueLength int
	Emit        EmitFunc
	OnComplete  func(Section)

	Logger  *zap.Logger
	Metrics *Metrics
}

type slotState int

const (
	slotPending slotState = iota
	slotFailed
	slotReady
)

type slot struct {
	state  slotState
	ledger *ledger.Ledger
}

type fetchResult struct {
	index  uint32
	ledger *ledger.Ledger
	err    error
}

// Backfiller fetches a descending range of ledgers concurrently and emits
// them strictly in order, each one checked against the parent hash of the
// ledger emitted before it.
type Backfiller struct {
	fetcher LedgerGetter
	cfg     BackfillConfig
	logger  *zap.Logger
}

// NewBackfiller returns a Backfiller for the range in cfg.
func NewBackfiller(fetcher LedgerGetter, cfg BackfillConfig) *Backfiller {
	if cfg.QueueLength <= 0 {
		cfg.QueueLength = DefaultQueueLength
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backfiller{
		fetcher: fetcher,
		cfg:     cfg,
		logger: logger.With(
			zap.Uint32("start", cfg.StartIndex),
			zap.Uint32("stop", cfg.StopIndex)),
	}
}

// Run emits every ledger from StartIndex down to StopIndex. Failed fetches
// are re-issued until they succeed or ctx is done. A broken chain stops the
// run with ErrChainBroken.
func (b *Backfiller) Run(ctx context.Context) (Section, error) {
	sec := Section{StartIndex: b.cfg.StartIndex, StopIndex: b.cfg.StopIndex}
	if sec.StartIndex < sec.StopIndex {
		sec.Err = fmt.Errorf("invalid backfill range %d-%d", sec.StartIndex, sec.StopIndex)
		return sec, sec.Err
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	parentHash := b.cfg.Anchor
	if parentHash.IsZero() {
		seed, err := b.seed(ctx)
		if err != nil {
			sec.Err = err
			return sec, err
		}
		parentHash = seed.ParentHash
	}

	b.logger.Info("backfill started", zap.Stringer("anchor", parentHash))

	var (
		earliest = sec.StartIndex + 1
		queue    = make(map[uint32]*slot, b.cfg.QueueLength)
		results  = make(chan fetchResult)
	)

	issue := func(index uint32) {
		queue[index] = &slot{state: slotPending}
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := b.fetcher.GetLedger(ctx, ledger.ByIndex(index))
			select {
			case results <- fetchResult{index: index, ledger: l, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	// fill keeps the window of QueueLength ledgers below earliest requested.
	fill := func() {
		for i := 1; i <= b.cfg.QueueLength; i++ {
			index := int64(earliest) - int64(i)
			if index < int64(sec.StopIndex) {
				return
			}
			if _, ok := queue[uint32(index)]; !ok {
				issue(uint32(index))
			}
		}
	}

	// advance emits every ready ledger directly below earliest.
	advance := func() error {
		for earliest > sec.StopIndex {
			index := earliest - 1
			s, ok := queue[index]
			if !ok || s.state == slotPending {
				return nil
			}
			if s.state == slotFailed {
				b.logger.Warn("re-requesting ledger", zap.Uint32("ledger_index", index))
				issue(index)
				return nil
			}

			l := s.ledger
			if l.Index != index {
				return fmt.Errorf("%w: requested ledger %d, got %d", ErrChainBroken, index, l.Index)
			}
			if l.Hash != parentHash {
				return fmt.Errorf("%w: ledger %d hash %s, expected %s", ErrChainBroken, index, l.Hash, parentHash)
			}
			if err := b.cfg.Emit(ctx, l); err != nil {
				return fmt.Errorf("emit ledger %d: %w", index, err)
			}
			b.cfg.Metrics.emitted("backfill")

			delete(queue, index)
			earliest = index
			parentHash = l.ParentHash
			if index == sec.StopIndex {
				sec.StopHash = l.Hash
			}
		}
		return nil
	}

	fill()
	for earliest > sec.StopIndex {
		select {
		case <-ctx.Done():
			sec.Err = ctx.Err()
			return sec, sec.Err
		case r := <-results:
			s := queue[r.index]
			if r.err != nil {
				b.logger.Warn("ledger fetch failed", zap.Uint32("ledger_index", r.index), zap.Error(r.err))
				s.state = slotFailed
			} else {
				s.state = slotReady
				s.ledger = r.ledger
			}

			if err := advance(); err != nil {
				b.logger.Error("backfill aborted", zap.Error(err))
				sec.Err = err
				return sec, err
			}
			fill()
		}
	}

	b.logger.Info("backfill complete", zap.Stringer("stop_hash", sec.StopHash))
	if b.cfg.OnComplete != nil {
		b.cfg.OnComplete(sec)
	}
	return sec, nil
}

// seed fetches the ledger above the range to anchor the chain check. The
// fetcher has already retried, so an exhausted fetch ends the run.
func (b *Backfiller) seed(ctx context.Context) (*ledger.Ledger, error) {
	index := b.cfg.StartIndex + 1
	l, err := b.fetcher.GetLedger(ctx, ledger.ByIndex(index))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		b.logger.Error("anchor ledger fetch failed", zap.Uint32("ledger_index", index), zap.Error(err))
		return nil, fmt.Errorf("anchor ledger %d: %w", index, err)
	}
	return l, nil
}
