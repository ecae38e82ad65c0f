package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
	"github.com/LeJamon/xrpl-ingest/internal/storage/rows"
	"github.com/LeJamon/xrpl-ingest/internal/storage/rowstore"
)

func newTestPipeline(t *testing.T, source *fakeSource) (*Pipeline, *RowStorage) {
	t.Helper()
	store, err := rowstore.Open("pebble", t.TempDir(), "lz4")
	require.NoError(t, err)

	p, err := New(source, store, PipelineConfig{
		Fetcher: FetcherConfig{RetryDelay: time.Millisecond},
		Genesis: 100,
	})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, NewRowStorage(store)
}

func storedIndexes(t *testing.T, s *RowStorage, start, stop uint32) []uint32 {
	t.Helper()
	records, err := s.GetRange(context.Background(), start, stop)
	require.NoError(t, err)
	var out []uint32
	for _, r := range records {
		out = append(out, r.Index)
	}
	return out
}

func TestPipelineBackfill(t *testing.T) {
	p, storage := newTestPipeline(t, newSource(99, 110))

	require.NoError(t, p.Backfill(context.Background(), 95, 103))
	require.Equal(t, span(100, 103), storedIndexes(t, storage, 90, 110))

	latest, err := storage.GetLatest(context.Background())
	require.NoError(t, err)
	require.Equal(t, hashOf(103), latest.Hash)
	require.Equal(t, hashOf(102), latest.ParentHash)
}

func TestPipelineBackfillToValidated(t *testing.T) {
	p, storage := newTestPipeline(t, newSource(99, 106))

	require.NoError(t, p.Backfill(context.Background(), 102, 0))
	require.Equal(t, span(102, 105), storedIndexes(t, storage, 90, 110))
}

func TestPipelineBackfillBeforeGenesis(t *testing.T) {
	source := newSource(80, 110)
	p, storage := newTestPipeline(t, source)

	require.NoError(t, p.Backfill(context.Background(), 80, 90))
	require.Empty(t, storedIndexes(t, storage, 0, 110))
	require.Zero(t, source.callsFor(91))
}

func TestPipelineHistory(t *testing.T) {
	ctx := context.Background()
	p, storage := newTestPipeline(t, newSource(99, 120))

	require.NoError(t, p.Backfill(ctx, 100, 103))
	require.NoError(t, p.Backfill(ctx, 107, 112))
	require.NoError(t, p.History(ctx, 0, 112))

	require.Equal(t, span(100, 112), storedIndexes(t, storage, 90, 120))
}

func TestPipelineSaveSkipsRecent(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, newSource(99, 110))

	l, err := p.Fetcher().GetLedger(ctx, ledger.ByIndex(105))
	require.NoError(t, err)
	require.NoError(t, p.save(ctx, l))
	require.True(t, p.recent.Contains(l.Hash))
	require.NoError(t, p.save(ctx, l))
}

func TestPipelineLiveAdvancesLastValidated(t *testing.T) {
	source := newSource(99, 120)
	source.setValidated(105)
	p, storage := newTestPipeline(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	lastValidated := func() uint32 {
		rec, err := storage.LastValidated(context.Background())
		if err != nil {
			return 0
		}
		return rec.Index
	}

	source.closes <- LedgerClosed{Index: 105}
	require.Eventually(t, func() bool { return lastValidated() == 105 }, 5*time.Second, time.Millisecond)

	// 107 skips 106, which is backfilled; the control row follows the
	// stored chain once it is whole again.
	source.setValidated(107)
	source.closes <- LedgerClosed{Index: 107}
	require.Eventually(t, func() bool {
		return len(storedIndexes(t, storage, 105, 107)) == 3
	}, 5*time.Second, time.Millisecond)

	source.setValidated(108)
	source.closes <- LedgerClosed{Index: 108}
	require.Eventually(t, func() bool { return lastValidated() == 108 }, 5*time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	row, err := storage.reader.GetRow(context.Background(), rows.TableControl, rows.KeyLastValidated)
	require.NoError(t, err)
	require.Equal(t, hashOf(108).String(), row.String("ledger_hash"))
}

func TestPipelineCloseStopsRun(t *testing.T) {
	p, _ := newTestPipeline(t, newSource(99, 110))

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop")
	}
}

func TestPipelineSavesLedgerWithUndecodableTransaction(t *testing.T) {
	ctx := context.Background()
	source := newSource(99, 101)
	bad := accountSet(t, 7, 0, true)
	source.raw[100] = rawWithTransactions(bad, accountSet(t, 8, 1, false))

	store, err := rowstore.Open("pebble", t.TempDir(), "none")
	require.NoError(t, err)
	m := NewMetrics("test", nil)
	p, err := New(source, store, PipelineConfig{
		Fetcher: FetcherConfig{RetryDelay: time.Millisecond},
		Genesis: 100,
		Metrics: m,
	})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Backfill(ctx, 100, 100))
	require.Equal(t, []uint32{100}, storedIndexes(t, NewRowStorage(store), 90, 110))
	require.Equal(t, 1, source.callsFor(100))
	require.Equal(t, 1.0, testutil.ToFloat64(m.parseErrorsMetric))

	row, err := store.GetRow(ctx, rows.TableTransactions, ledger.TransactionID(bad.Blob).String())
	require.NoError(t, err)
	require.Contains(t, row.String("decode_error"), "AffectedNodes[0]")
	require.Equal(t, "AccountSet", row.String("type"))
}
