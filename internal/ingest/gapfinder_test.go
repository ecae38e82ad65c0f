package ingest

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
)

func span(from, to uint32, skip ...uint32) []uint32 {
	skipped := map[uint32]bool{}
	for _, s := range skip {
		skipped[s] = true
	}
	var out []uint32
	for i := from; i <= to; i++ {
		if !skipped[i] {
			out = append(out, i)
		}
	}
	return out
}

func testGapFinder(storage Storage, chain *fakeChain, cfg GapFinderConfig) *GapFinder {
	cfg.Genesis = 100
	return NewGapFinder(storage, chain, cfg)
}

func TestFindGap(t *testing.T) {
	chain := newChain(99, 130)

	tests := []struct {
		name   string
		stored []uint32
		cfg    GapFinderConfig
		want   *Section
	}{
		{
			name:   "complete",
			stored: span(100, 120),
		},
		{
			name:   "missing run",
			stored: span(100, 120, 106, 107),
			want:   &Section{StartIndex: 108, StopIndex: 106},
		},
		{
			name:   "missing tail",
			stored: span(100, 105),
			want:   &Section{StartIndex: 120, StopIndex: 106},
		},
		{
			name:   "missing tail across chunks",
			stored: span(100, 105),
			cfg:    GapFinderConfig{ChunkSize: 4},
			want:   &Section{StartIndex: 110, StopIndex: 106},
		},
		{
			name:   "capped",
			stored: span(100, 120, span(106, 119)...),
			cfg:    GapFinderConfig{MaxGapSize: 3},
			want:   &Section{StartIndex: 108, StopIndex: 106},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := testGapFinder(newMemStorage(chain, tc.stored...), chain, tc.cfg)
			gap, err := g.FindGap(context.Background(), 100, 120)
			require.NoError(t, err)
			require.Equal(t, tc.want, gap)
		})
	}
}

func TestFindGapParentMismatch(t *testing.T) {
	chain := newChain(99, 130)
	storage := newMemStorage(chain, span(100, 120)...)
	r := storage.records[110]
	r.ParentHash = bogusHash(109)
	storage.records[110] = r

	gap, err := testGapFinder(storage, chain, GapFinderConfig{ChunkSize: 3}).FindGap(context.Background(), 100, 120)
	require.NoError(t, err)
	require.Equal(t, &Section{StartIndex: 110, StopIndex: 109}, gap)
}

func TestGapFinderRunFillsGaps(t *testing.T) {
	chain := newChain(99, 130)
	storage := newMemStorage(chain, span(100, 120, 106, 107, 115, 116, 117)...)
	m := NewMetrics("test", nil)

	err := testGapFinder(storage, chain, GapFinderConfig{Emit: storage.emit, Metrics: m}).
		Run(context.Background(), 0, 120)

	require.NoError(t, err)
	require.True(t, storage.has(100, 120))
	require.Equal(t, 2.0, testutil.ToFloat64(m.gapsMetric))
}

func TestGapFinderRunToLatest(t *testing.T) {
	chain := newChain(99, 130)
	storage := newMemStorage(chain, span(100, 125, 110)...)

	err := testGapFinder(storage, chain, GapFinderConfig{Emit: storage.emit}).Run(context.Background(), 100, 0)
	require.NoError(t, err)
	require.True(t, storage.has(100, 125))
}

func TestGapFinderRunEmptyStore(t *testing.T) {
	chain := newChain(99, 130)
	err := testGapFinder(newMemStorage(chain), chain, GapFinderConfig{}).Run(context.Background(), 100, 0)
	require.ErrorIs(t, err, ErrNoLedgers)
}

func TestGapFinderRetriesFailedSection(t *testing.T) {
	chain := newChain(99, 130)
	storage := newMemStorage(chain, span(100, 120, 110, 111)...)
	out := &collector{fail: map[uint32]int{110: 2}}
	emit := func(ctx context.Context, l *ledger.Ledger) error {
		if err := out.emit(ctx, l); err != nil {
			return err
		}
		return storage.emit(ctx, l)
	}

	err := testGapFinder(storage, chain, GapFinderConfig{Emit: emit}).Run(context.Background(), 100, 120)
	require.NoError(t, err)
	require.True(t, storage.has(100, 120))
}

func TestGapFinderGivesUpOnBrokenChain(t *testing.T) {
	chain := newChain(99, 130)
	chain.ledgers[107].ParentHash = bogusHash(106)
	storage := newMemStorage(chain, span(100, 120, 106)...)

	err := testGapFinder(storage, chain, GapFinderConfig{Emit: storage.emit, MaxRestarts: 2}).
		Run(context.Background(), 100, 120)
	require.ErrorIs(t, err, ErrChainBroken)
}
