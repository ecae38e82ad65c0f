package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
	"github.com/LeJamon/xrpl-ingest/internal/storage/rows"
)

// RowStorage reads ledger records from the lu_ledgers_by_index table of a
// row store.
type RowStorage struct {
	reader rows.Reader
}

// NewRowStorage returns a Storage over reader.
func NewRowStorage(reader rows.Reader) *RowStorage {
	return &RowStorage{reader: reader}
}

func (s *RowStorage) GetRange(ctx context.Context, start, stop uint32) ([]LedgerRecord, error) {
	from, to := rows.LedgerIndexRange(start, stop)
	var out []LedgerRecord
	err := s.reader.Scan(ctx, rows.TableLedgersByIndex, from, to, func(key string, row rows.Row) error {
		rec, err := recordFromRow(row)
		if err != nil {
			return fmt.Errorf("row %s: %w", key, err)
		}
		out = append(out, rec)
		return nil
	})
	return out, err
}

func (s *RowStorage) GetLatest(ctx context.Context) (*LedgerRecord, error) {
	_, row, err := s.reader.Last(ctx, rows.TableLedgersByIndex, "", "~")
	if errors.Is(err, rows.ErrRowNotFound) {
		return nil, ErrNoLedgers
	}
	if err != nil {
		return nil, err
	}
	rec, err := recordFromRow(row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LastValidated returns the control row marking the end of the verified
// chain, or ErrNoLedgers.
func (s *RowStorage) LastValidated(ctx context.Context) (*LedgerRecord, error) {
	row, err := s.reader.GetRow(ctx, rows.TableControl, rows.KeyLastValidated)
	if errors.Is(err, rows.ErrRowNotFound) {
		return nil, ErrNoLedgers
	}
	if err != nil {
		return nil, err
	}
	rec, err := recordFromRow(row)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func recordFromRow(row rows.Row) (LedgerRecord, error) {
	index, ok := row.Uint32("ledger_index")
	if !ok {
		return LedgerRecord{}, errors.New("missing ledger_index")
	}
	hash, err := ledger.ParseHash256(row.String("ledger_hash"))
	if err != nil {
		return LedgerRecord{}, fmt.Errorf("ledger_hash: %w", err)
	}
	parent, err := ledger.ParseHash256(row.String("parent_hash"))
	if err != nil {
		return LedgerRecord{}, fmt.Errorf("parent_hash: %w", err)
	}
	closeTime, _ := row.Int64("close_time")
	return LedgerRecord{
		Index:      index,
		Hash:       hash,
		ParentHash: parent,
		CloseTime:  time.Unix(closeTime, 0).UTC(),
	}, nil
}
