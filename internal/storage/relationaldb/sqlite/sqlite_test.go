package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
	"github.com/LeJamon/xrpl-ingest/internal/ingest"
	"github.com/LeJamon/xrpl-ingest/internal/storage/relationaldb"
	"github.com/LeJamon/xrpl-ingest/internal/storage/rows"
)

func openMemory(t *testing.T) *relationaldb.Store {
	t.Helper()
	s, err := Open(context.Background(), relationaldb.SQLiteConfig(":memory:"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	require.NoError(t, s.PutRow(ctx, rows.TablePayments, "k", rows.Row{"amount": "1"}))
	require.NoError(t, s.PutRows(ctx, rows.TablePayments, map[string]rows.Row{
		"k":  {"amount": "2"},
		"k2": {"amount": "3", "destination_tag": int64(9)},
	}))

	row, err := s.GetRow(ctx, rows.TablePayments, "k")
	require.NoError(t, err)
	require.Equal(t, "2", row.String("amount"))

	row, err = s.GetRow(ctx, rows.TablePayments, "k2")
	require.NoError(t, err)
	tag, ok := row.Uint32("destination_tag")
	require.True(t, ok)
	require.Equal(t, uint32(9), tag)

	_, err = s.GetRow(ctx, rows.TableMemos, "k")
	require.ErrorIs(t, err, rows.ErrRowNotFound)
}

func TestLedgerRecords(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	storage := ingest.NewRowStorage(s)

	_, err := storage.GetLatest(ctx)
	require.ErrorIs(t, err, ingest.ErrNoLedgers)

	for i := uint32(40); i < 45; i++ {
		l := &ledger.Ledger{
			Index:      i,
			Hash:       ledger.Hash256{byte(i)},
			ParentHash: ledger.Hash256{byte(i - 1)},
			CloseTime:  time.Unix(int64(i), 0).UTC(),
		}
		require.NoError(t, rows.Save(ctx, s, rows.PrepareLedger(l)))
	}

	got, err := storage.GetRange(ctx, 41, 43)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, uint32(41), got[0].Index)
	require.Equal(t, ledger.Hash256{43}, got[2].Hash)

	latest, err := storage.GetLatest(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(44), latest.Index)
}

func TestClosedStore(t *testing.T) {
	s := openMemory(t)
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.PutRow(context.Background(), rows.TableControl, "k", rows.Row{}), relationaldb.ErrDatabaseClosed)
}
