package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
	"github.com/LeJamon/xrpl-ingest/internal/protocol"
)

// ErrNoLedgers is returned by Storage.GetLatest on an empty store.
var ErrNoLedgers = errors.New("no ledgers stored")

const (
	DefaultGapChunkSize = 200
	DefaultMaxGapSize   = 200
	DefaultMaxRestarts  = 3
)

// LedgerRecord is the part of a stored ledger the gap finder needs.
type LedgerRecord struct {
	Index      uint32
	Hash       ledger.Hash256
	ParentHash ledger.Hash256
	CloseTime  time.Time
}

// Storage is the read side of the ledger store.
type Storage interface {
	// GetRange returns the stored ledgers in [start, stop], ascending.
	GetRange(ctx context.Context, start, stop uint32) ([]LedgerRecord, error)
	// GetLatest returns the highest stored ledger, or ErrNoLedgers.
	GetLatest(ctx context.Context) (*LedgerRecord, error)
}

// GapFinderConfig configures a GapFinder. Zero values take the defaults.
type GapFinderConfig struct {
	Genesis     uint32
	ChunkSize   int
	MaxGapSize  int
	MaxRestarts int
	QueueLength int

	Emit EmitFunc

	Logger  *zap.Logger
	Metrics *Metrics
}

// GapFinder scans stored history for missing or mislinked ledgers and
// backfills them.
type GapFinder struct {
	storage Storage
	fetcher LedgerGetter
	cfg     GapFinderConfig
	logger  *zap.Logger
}

// NewGapFinder returns a GapFinder reading storage and fetching through
// fetcher.
func NewGapFinder(storage Storage, fetcher LedgerGetter, cfg GapFinderConfig) *GapFinder {
	if cfg.Genesis == 0 {
		cfg.Genesis = protocol.GenesisLedger
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultGapChunkSize
	}
	if cfg.MaxGapSize <= 0 {
		cfg.MaxGapSize = DefaultMaxGapSize
	}
	if cfg.MaxRestarts <= 0 {
		cfg.MaxRestarts = DefaultMaxRestarts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GapFinder{storage: storage, fetcher: fetcher, cfg: cfg, logger: logger}
}

// FindGap returns the first gap in [start, stop] as a section to backfill,
// or nil when the range is complete. A missing run of ledgers yields the
// run up to the next stored ledger; a parent hash mismatch at i yields
// {i, i-1}.
func (g *GapFinder) FindGap(ctx context.Context, start, stop uint32) (*Section, error) {
	var prevHash ledger.Hash256
	index := start

	for index <= stop {
		end := index + uint32(g.cfg.ChunkSize)
		if end > stop || end < index {
			end = stop
		}
		g.logger.Debug("validating ledgers", zap.Uint32("from", index), zap.Uint32("to", end))

		rows, err := g.storage.GetRange(ctx, index, end)
		if err != nil {
			return nil, fmt.Errorf("read ledgers %d-%d: %w", index, end, err)
		}
		if len(rows) == 0 {
			g.logger.Info("missing ledgers", zap.Uint32("from", index), zap.Uint32("to", end))
			return g.gap(index, end), nil
		}

		for _, row := range rows {
			switch {
			case row.Index < index:
				// Duplicate index, already checked.
				continue
			case row.Index != index:
				g.logger.Info("missing ledgers", zap.Uint32("from", index), zap.Uint32("to", row.Index))
				return g.gap(index, row.Index), nil
			case !prevHash.IsZero() && row.ParentHash != prevHash:
				g.logger.Info("incorrect parent hash", zap.Uint32("ledger_index", index))
				return g.gap(index-1, index), nil
			}
			prevHash = row.Hash
			index++
		}
	}
	return nil, nil
}

// gap caps a [low, high] range at MaxGapSize ledgers, keeping the low end.
func (g *GapFinder) gap(low, high uint32) *Section {
	if size := uint32(g.cfg.MaxGapSize); high-low+1 > size {
		high = low + size - 1
	}
	g.cfg.Metrics.gapFound()
	return &Section{StartIndex: high, StopIndex: low}
}

// Run backfills every gap between start and stop. start is clamped to the
// genesis ledger; a zero stop means the latest stored ledger. A failed
// section is retried from its low end and a broken chain restarts the scan,
// up to MaxRestarts times.
func (g *GapFinder) Run(ctx context.Context, start, stop uint32) error {
	if start < g.cfg.Genesis {
		start = g.cfg.Genesis
	}
	if stop == 0 {
		latest, err := g.storage.GetLatest(ctx)
		if err != nil {
			return fmt.Errorf("latest stored ledger: %w", err)
		}
		stop = latest.Index
	}
	if stop < start {
		g.logger.Info("nothing to scan", zap.Uint32("start", start), zap.Uint32("stop", stop))
		return nil
	}

	g.logger.Info("finding gaps", zap.Uint32("start", start), zap.Uint32("stop", stop))

	restarts := 0
	from := start
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		gap, err := g.FindGap(ctx, from, stop)
		if err != nil {
			return err
		}
		if gap == nil {
			g.logger.Info("stop index reached", zap.Uint32("stop", stop))
			return nil
		}

		sec, err := NewBackfiller(g.fetcher, BackfillConfig{
			StartIndex:  gap.StartIndex,
			StopIndex:   gap.StopIndex,
			QueueLength: g.cfg.QueueLength,
			Emit:        g.cfg.Emit,
			Logger:      g.logger,
			Metrics:     g.cfg.Metrics,
		}).Run(ctx)

		switch {
		case err == nil:
			g.logger.Info("gap filled", zap.Uint32("from", sec.StopIndex), zap.Uint32("to", sec.StartIndex))
			if sec.StartIndex >= stop {
				g.logger.Info("stop index reached", zap.Uint32("stop", stop))
				return nil
			}
			from = sec.StartIndex + 1
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrChainBroken):
			restarts++
			if restarts > g.cfg.MaxRestarts {
				return fmt.Errorf("gap scan gave up after %d restarts: %w", g.cfg.MaxRestarts, err)
			}
			g.logger.Warn("chain broken, restarting scan", zap.Int("restart", restarts), zap.Error(err))
			from = start
		default:
			g.logger.Warn("error in section, retrying",
				zap.Uint32("from", sec.StopIndex), zap.Uint32("to", sec.StartIndex), zap.Error(err))
			from = sec.StopIndex
		}
	}
}
