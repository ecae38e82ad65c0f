package ingest

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	binarycodec "github.com/Peersyst/xrpl-go/binary-codec"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
)

func testFetcher(source LedgerSource, m *Metrics) *Fetcher {
	return NewFetcher(source, FetcherConfig{
		Timeout:    time.Second,
		RetryDelay: time.Millisecond,
		Metrics:    m,
	})
}

func TestFetcherRetriesUntilSuccess(t *testing.T) {
	source := newSource(100, 100)
	source.failures[100] = 3

	l, err := testFetcher(source, nil).GetLedger(context.Background(), ledger.ByIndex(100))
	require.NoError(t, err)
	require.Equal(t, uint32(100), l.Index)
	require.Equal(t, hashOf(100), l.Hash)
	require.Equal(t, 4, source.callsFor(100))
}

func TestFetcherGivesUpAfterMaxAttempts(t *testing.T) {
	source := newSource(100, 100)
	source.failures[100] = -1
	m := NewMetrics("test", prometheus.NewRegistry())

	_, err := testFetcher(source, m).GetLedger(context.Background(), ledger.ByIndex(100))
	require.ErrorIs(t, err, ErrFetchExhausted)
	require.ErrorIs(t, err, errTimeout)
	require.Equal(t, DefaultMaxAttempts, source.callsFor(100))
	require.Equal(t, 1.0, testutil.ToFloat64(m.fetchFailuresMetric))
	require.Equal(t, float64(DefaultMaxAttempts-1), testutil.ToFloat64(m.fetchRetriesMetric))
}

func TestFetcherRetriesRejectedLedgers(t *testing.T) {
	source := newSource(100, 100)
	source.raw[100].Closed = false
	m := NewMetrics("test", nil)

	f := NewFetcher(source, FetcherConfig{RetryDelay: time.Millisecond, MaxAttempts: 3, Metrics: m})
	_, err := f.GetLedger(context.Background(), ledger.ByIndex(100))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, ReasonNotClosed, verr.Reason)
	require.Equal(t, 3, source.callsFor(100))
	require.Equal(t, 3.0, testutil.ToFloat64(m.validationFailuresMetric.WithLabelValues(ReasonNotClosed)))
}

func TestFetcherValidated(t *testing.T) {
	source := newSource(100, 105)

	l, err := testFetcher(source, nil).GetLedger(context.Background(), ledger.LatestValidated())
	require.NoError(t, err)
	require.Equal(t, uint32(105), l.Index)
}

func TestFetcherCancelled(t *testing.T) {
	source := newSource(100, 100)
	source.failures[100] = -1

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testFetcher(source, nil).GetLedger(ctx, ledger.ByIndex(100))
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrFetchExhausted)
}

const testAccount = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"

func encodeHex(t *testing.T, fields map[string]any) []byte {
	t.Helper()
	s, err := binarycodec.Encode(fields)
	require.NoError(t, err)
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// accountSet returns a serialized AccountSet executed at txIndex. With a
// malformed meta its single affected node is not a Created, Modified or
// Deleted node.
func accountSet(t *testing.T, seq, txIndex uint32, malformed bool) ledger.RawTransaction {
	t.Helper()
	meta := map[string]any{
		"TransactionIndex":  txIndex,
		"TransactionResult": "tesSUCCESS",
	}
	if malformed {
		meta["AffectedNodes"] = []any{
			map[string]any{"Memo": map[string]any{"MemoData": "6869"}},
		}
	}
	return ledger.RawTransaction{
		Blob: encodeHex(t, map[string]any{
			"TransactionType": "AccountSet",
			"Account":         testAccount,
			"Fee":             "12",
			"Sequence":        seq,
		}),
		Meta: encodeHex(t, meta),
	}
}

func TestFetcherKeepsUndecodableTransaction(t *testing.T) {
	source := newSource(100, 100)
	source.raw[100] = rawWithTransactions(accountSet(t, 8, 1, false), accountSet(t, 7, 0, true))

	l, err := testFetcher(source, nil).GetLedger(context.Background(), ledger.ByIndex(100))
	require.NoError(t, err)
	require.Equal(t, 1, source.callsFor(100))
	require.Len(t, l.Transactions, 2)

	bad, good := l.Transactions[0], l.Transactions[1]
	require.Equal(t, uint32(0), bad.Index)
	require.ErrorContains(t, bad.DecodeErr, "AffectedNodes[0]")
	require.Equal(t, "AccountSet", bad.Type)
	require.Equal(t, testAccount, bad.Account)
	require.Empty(t, bad.AffectedNodes)
	require.NotEmpty(t, bad.Blob)
	require.NotEmpty(t, bad.MetaBlob)

	require.NoError(t, good.DecodeErr)
	require.Equal(t, uint32(1), good.Index)
	require.Equal(t, "tesSUCCESS", good.Result)
}
