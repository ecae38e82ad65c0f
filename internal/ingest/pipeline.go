package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
	"github.com/LeJamon/xrpl-ingest/internal/parser"
	"github.com/LeJamon/xrpl-ingest/internal/protocol"
	"github.com/LeJamon/xrpl-ingest/internal/storage/rows"
)

const DefaultRecentCacheSize = 256

var errPipelineClosed = errors.New("pipeline closed")

// PipelineConfig configures a Pipeline. Zero values take the defaults.
type PipelineConfig struct {
	Fetcher FetcherConfig

	Genesis      uint32
	QueueLength  int
	GapChunkSize int
	MaxGapSize   int
	MaxRestarts  int

	// LiveStartIndex backfills from this index when live import starts.
	LiveStartIndex  uint32
	RecentCacheSize int

	Logger  *zap.Logger
	Metrics *Metrics
}

// Pipeline wires a ledger source to a row store: ledgers are fetched,
// validated, parsed and saved, whether they come from the live stream, a
// forced backfill or a gap scan.
type Pipeline struct {
	source  LedgerSource
	store   rows.Store
	storage *RowStorage
	fetcher *Fetcher
	recent  *lru.Cache[ledger.Hash256, struct{}]

	cfg     PipelineConfig
	logger  *zap.Logger
	metrics *Metrics

	mu            sync.Mutex
	lastValidated *LedgerRecord

	done      chan struct{}
	closeOnce sync.Once
}

// New returns a Pipeline reading from source and writing to store.
func New(source LedgerSource, store rows.Store, cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Genesis == 0 {
		cfg.Genesis = protocol.GenesisLedger
	}
	if cfg.GapChunkSize <= 0 {
		cfg.GapChunkSize = DefaultGapChunkSize
	}
	if cfg.RecentCacheSize <= 0 {
		cfg.RecentCacheSize = DefaultRecentCacheSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Fetcher.Logger == nil {
		cfg.Fetcher.Logger = cfg.Logger
	}
	if cfg.Fetcher.Metrics == nil {
		cfg.Fetcher.Metrics = cfg.Metrics
	}

	recent, err := lru.New[ledger.Hash256, struct{}](cfg.RecentCacheSize)
	if err != nil {
		return nil, fmt.Errorf("recent ledger cache: %w", err)
	}

	return &Pipeline{
		source:  source,
		store:   store,
		storage: NewRowStorage(store),
		fetcher: NewFetcher(source, cfg.Fetcher),
		recent:  recent,
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		done:    make(chan struct{}),
	}, nil
}

// Fetcher returns the pipeline's fetcher.
func (p *Pipeline) Fetcher() *Fetcher {
	return p.fetcher
}

// Run imports live ledgers until ctx is done or Close is called.
func (p *Pipeline) Run(ctx context.Context) error {
	tracker := NewLiveTracker(p.source, p.fetcher, LiveConfig{
		StartIndex:  p.cfg.LiveStartIndex,
		QueueLength: p.cfg.QueueLength,
		StaleDelay:  p.cfg.Fetcher.RetryDelay,
		Emit:        p.saveLive,
		OnBackfill: func(sec Section, err error) {
			if err != nil {
				p.logger.Error("live backfill failed",
					zap.Uint32("from", sec.StopIndex), zap.Uint32("to", sec.StartIndex), zap.Error(err))
			}
		},
		Logger:  p.logger,
		Metrics: p.metrics,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case <-p.done:
			return errPipelineClosed
		case <-ctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		return tracker.Run(ctx)
	})

	err := g.Wait()
	if errors.Is(err, errPipelineClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Backfill imports every ledger from start to stop without looking at what
// is stored. A zero stop means the ledger before the latest validated one.
// Ranges below the genesis ledger are clamped.
func (p *Pipeline) Backfill(ctx context.Context, start, stop uint32) error {
	stop, err := p.resolveStop(ctx, stop)
	if err != nil {
		return err
	}
	if stop < p.cfg.Genesis {
		p.logger.Info("backfill ends before genesis, nothing to do", zap.Uint32("stop", stop))
		return nil
	}
	if start < p.cfg.Genesis {
		start = p.cfg.Genesis
	}
	if stop < start {
		return fmt.Errorf("invalid range %d-%d", start, stop)
	}

	_, err = NewBackfiller(p.fetcher, BackfillConfig{
		StartIndex:  stop,
		StopIndex:   start,
		QueueLength: p.cfg.QueueLength,
		Emit:        p.save,
		Logger:      p.logger,
		Metrics:     p.metrics,
	}).Run(ctx)
	return err
}

// History scans stored ledgers from start to stop and backfills the gaps. A
// zero stop means the ledger before the latest validated one.
func (p *Pipeline) History(ctx context.Context, start, stop uint32) error {
	stop, err := p.resolveStop(ctx, stop)
	if err != nil {
		return err
	}
	return NewGapFinder(p.storage, p.fetcher, GapFinderConfig{
		Genesis:     p.cfg.Genesis,
		ChunkSize:   p.cfg.GapChunkSize,
		MaxGapSize:  p.cfg.MaxGapSize,
		MaxRestarts: p.cfg.MaxRestarts,
		QueueLength: p.cfg.QueueLength,
		Emit:        p.save,
		Logger:      p.logger,
		Metrics:     p.metrics,
	}).Run(ctx, start, stop)
}

func (p *Pipeline) resolveStop(ctx context.Context, stop uint32) (uint32, error) {
	if stop != 0 {
		return stop, nil
	}
	l, err := p.fetcher.GetLedger(ctx, ledger.LatestValidated())
	if err != nil {
		return 0, fmt.Errorf("latest validated ledger: %w", err)
	}
	return l.Index - 1, nil
}

// save parses a ledger and writes its rows. Ledgers saved recently are
// skipped.
func (p *Pipeline) save(ctx context.Context, l *ledger.Ledger) error {
	if p.recent.Contains(l.Hash) {
		p.logger.Debug("ledger already saved", zap.Uint32("ledger_index", l.Index))
		return nil
	}

	parsed := parser.ParseLedger(l)
	for _, err := range parsed.Errors {
		p.logger.Warn("transaction skipped", zap.Uint32("ledger_index", l.Index), zap.Error(err))
	}
	p.metrics.parseErrors(len(parsed.Errors))

	tables := rows.Prepare(l, parsed)
	if err := rows.Save(ctx, p.store, tables); err != nil {
		return fmt.Errorf("save ledger %d: %w", l.Index, err)
	}
	p.recent.Add(l.Hash, struct{}{})

	p.logger.Info("ledger saved",
		zap.Uint32("ledger_index", l.Index),
		zap.Stringer("hash", l.Hash),
		zap.Int("transactions", len(l.Transactions)),
		zap.Int("rows", tables.Count()))
	return nil
}

func (p *Pipeline) saveLive(ctx context.Context, l *ledger.Ledger) error {
	if err := p.save(ctx, l); err != nil {
		return err
	}
	if err := p.advanceLastValidated(ctx, l); err != nil {
		p.logger.Warn("unable to update last validated ledger", zap.Error(err))
	}
	return nil
}

// advanceLastValidated moves the last_validated control row forward along
// the stored chain, as far as it is unbroken, up to l.
func (p *Pipeline) advanceLastValidated(ctx context.Context, l *ledger.Ledger) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastValidated == nil {
		rec, err := p.storage.LastValidated(ctx)
		if errors.Is(err, ErrNoLedgers) {
			return p.putLastValidated(ctx, LedgerRecord{
				Index:      l.Index,
				Hash:       l.Hash,
				ParentHash: l.ParentHash,
				CloseTime:  l.CloseTime,
			})
		}
		if err != nil {
			return err
		}
		p.lastValidated = rec
	}

	last := *p.lastValidated
	for last.Index < l.Index {
		stop := l.Index
		if end := last.Index + uint32(p.cfg.GapChunkSize); end < stop {
			stop = end
		}
		records, err := p.storage.GetRange(ctx, last.Index+1, stop)
		if err != nil {
			return err
		}

		next := last
		for _, r := range records {
			if r.Index == next.Index+1 && r.ParentHash == next.Hash {
				next = r
			}
		}
		if next.Index == last.Index {
			break
		}
		last = next
		if last.Index < stop {
			break
		}
	}

	if last.Index == p.lastValidated.Index {
		return nil
	}
	return p.putLastValidated(ctx, last)
}

func (p *Pipeline) putLastValidated(ctx context.Context, rec LedgerRecord) error {
	row := rows.ControlRow(rec.Index, rec.Hash, rec.ParentHash, rec.CloseTime)
	if err := p.store.PutRow(ctx, rows.TableControl, rows.KeyLastValidated, row); err != nil {
		return err
	}
	p.lastValidated = &rec
	p.logger.Debug("last validated ledger", zap.Uint32("ledger_index", rec.Index))
	return nil
}

// Close stops Run and closes the store.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return p.store.Close()
}
