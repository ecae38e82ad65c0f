package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
)

// ErrSubscriptionClosed is returned by LiveTracker.Run when the source ends
// the ledger stream.
var ErrSubscriptionClosed = errors.New("ledger subscription closed")

// LiveState is the phase the live tracker is in.
type LiveState int32

const (
	StateIdle LiveState = iota
	StateWaitingForClose
	StateFetchingValidated
	StateEmitting
)

func (s LiveState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaitingForClose:
		return "waiting_for_close"
	case StateFetchingValidated:
		return "fetching_validated"
	case StateEmitting:
		return "emitting"
	default:
		return fmt.Sprintf("LiveState(%d)", int32(s))
	}
}

// LiveConfig configures a LiveTracker.
type LiveConfig struct {
	// StartIndex, when set, backfills from this index up to the first
	// ledger seen on the stream.
	StartIndex uint32

	QueueLength int
	// StaleDelay is the pause before fetching validated again when the
	// source is behind the announced close.
	StaleDelay time.Duration

	Emit EmitFunc
	// OnBackfill is called when a gap backfill finishes, with its error.
	OnBackfill func(Section, error)

	Logger  *zap.Logger
	Metrics *Metrics
}

// LiveTracker follows the ledger stream and emits each newly validated
// ledger. Ledgers skipped between two closes are backfilled in the
// background.
type LiveTracker struct {
	source  LedgerSource
	fetcher LedgerGetter
	cfg     LiveConfig
	logger  *zap.Logger

	state  atomic.Int32
	latest atomic.Uint32

	backfills sync.WaitGroup
	fatal     chan error
}

// NewLiveTracker returns a tracker reading close events from source and
// ledgers through fetcher.
func NewLiveTracker(source LedgerSource, fetcher LedgerGetter, cfg LiveConfig) *LiveTracker {
	if cfg.StaleDelay <= 0 {
		cfg.StaleDelay = DefaultRetryDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveTracker{
		source:  source,
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
		fatal:   make(chan error, 1),
	}
}

// State returns the current phase.
func (t *LiveTracker) State() LiveState {
	return LiveState(t.state.Load())
}

// Latest returns the index of the last emitted live ledger, or 0.
func (t *LiveTracker) Latest() uint32 {
	return t.latest.Load()
}

func (t *LiveTracker) setState(s LiveState) {
	t.state.Store(int32(s))
}

// Run subscribes to the ledger stream and handles closes until ctx is done,
// the stream ends, or a gap backfill finds a broken chain. Background
// backfills are waited for before returning.
func (t *LiveTracker) Run(ctx context.Context) error {
	defer t.setState(StateIdle)

	closes, err := t.source.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		t.backfills.Wait()
	}()

	for {
		t.setState(StateWaitingForClose)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-t.fatal:
			return err
		case ev, ok := <-closes:
			if !ok {
				return ErrSubscriptionClosed
			}
			if err := t.HandleClose(ctx, ev); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				t.logger.Error("unable to handle ledger close",
					zap.Uint32("ledger_index", ev.Index), zap.Error(err))
			}
		}
	}
}

// HandleClose fetches the validated ledger for a close event and emits it.
// It must not be called concurrently.
func (t *LiveTracker) HandleClose(ctx context.Context, ev LedgerClosed) error {
	t.setState(StateFetchingValidated)

	spec := ledger.Specifier{Validated: true, Server: ev.Server}
	var l *ledger.Ledger
	for {
		var err error
		l, err = t.fetcher.GetLedger(ctx, spec)
		if err != nil {
			return err
		}
		if l.Index >= ev.Index {
			break
		}
		t.logger.Debug("validated ledger behind close, refetching",
			zap.Uint32("ledger_index", l.Index), zap.Uint32("closed", ev.Index))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.cfg.StaleDelay):
		}
	}

	t.setState(StateEmitting)
	return t.accept(ctx, l)
}

func (t *LiveTracker) accept(ctx context.Context, l *ledger.Ledger) error {
	latest := t.latest.Load()

	switch {
	case latest == 0:
		if start := t.cfg.StartIndex; start != 0 && start < l.Index {
			t.backfill(ctx, l.Index-1, start, l.ParentHash)
		}
	case l.Index <= latest:
		t.logger.Warn("duplicate ledger", zap.Uint32("ledger_index", l.Index), zap.Uint32("latest", latest))
		return nil
	case l.Index > latest+1:
		t.logger.Info("gap in live stream",
			zap.Uint32("from", latest+1), zap.Uint32("to", l.Index-1))
		t.backfill(ctx, l.Index-1, latest+1, l.ParentHash)
	}

	t.latest.Store(l.Index)
	t.cfg.Metrics.setLatest(l.Index)

	if err := t.cfg.Emit(ctx, l); err != nil {
		return fmt.Errorf("emit ledger %d: %w", l.Index, err)
	}
	t.cfg.Metrics.emitted("live")
	return nil
}

func (t *LiveTracker) backfill(ctx context.Context, start, stop uint32, anchor ledger.Hash256) {
	bf := NewBackfiller(t.fetcher, BackfillConfig{
		StartIndex:  start,
		StopIndex:   stop,
		Anchor:      anchor,
		QueueLength: t.cfg.QueueLength,
		Emit:        t.cfg.Emit,
		Logger:      t.logger,
		Metrics:     t.cfg.Metrics,
	})

	t.backfills.Add(1)
	go func() {
		defer t.backfills.Done()
		sec, err := bf.Run(ctx)
		if t.cfg.OnBackfill != nil {
			t.cfg.OnBackfill(sec, err)
		}
		if err != nil && errors.Is(err, ErrChainBroken) {
			select {
			case t.fatal <- err:
			default:
			}
		}
	}()
}

// Wait blocks until background backfills started by HandleClose finish.
func (t *LiveTracker) Wait() {
	t.backfills.Wait()
}
