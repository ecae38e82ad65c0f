// Package rows lays ledgers and parsed events out as keyed rows, one table
// per access path, and writes them to a Sink.
package rows

import (
	"context"
	"errors"
	"math"
	"strconv"
)

// ErrRowNotFound is returned by a Reader for a missing row.
var ErrRowNotFound = errors.New("row not found")

// Table names.
const (
	TableLedgers         = "ledgers"
	TableLedgersByIndex  = "lu_ledgers_by_index"
	TableLedgersByTime   = "lu_ledgers_by_time"
	TableTransactions    = "transactions"
	TableTxByTime        = "lu_transactions_by_time"
	TableAccountTx       = "lu_account_transactions"
	TableAffectedAccTx   = "lu_affected_account_transactions"
	TableExchanges       = "exchanges"
	TableAccountExchange = "account_exchanges"
	TableAccountOffers   = "account_offers"
	TableOffersBySeq     = "lu_account_offers_by_sequence"
	TableBalanceChanges  = "account_balance_changes"
	TablePayments        = "payments"
	TableAccountPayments = "account_payments"
	TableAccountsCreated = "accounts_created"
	TableMemos           = "memos"
	TableAccountMemos    = "lu_account_memos"
	TableEscrows         = "escrows"
	TablePaychans        = "payment_channels"
	TableFeeSummary      = "fee_summary"
	TableControl         = "control"
)

// KeyLastValidated is the control row tracking the end of the verified chain.
const KeyLastValidated = "last_validated"

// Row is one stored record. Values are strings, integers, booleans or
// nested rows and lists of them.
type Row map[string]any

// String returns the string value of col, or "".
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// Int64 returns the integer value of col. Backends hand numbers back as
// different Go types, all of which are accepted here.
func (r Row) Int64(col string) (int64, bool) {
	switch v := r[col].(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case float64:
		return int64(v), v == math.Trunc(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// Uint32 returns the value of col as a ledger index or sequence.
func (r Row) Uint32(col string) (uint32, bool) {
	n, ok := r.Int64(col)
	if !ok || n < 0 || n > math.MaxUint32 {
		return 0, false
	}
	return uint32(n), true
}

// Sink receives rows. Writes are upserts: writing a key twice keeps the
// last row.
type Sink interface {
	PutRows(ctx context.Context, table string, rows map[string]Row) error
	PutRow(ctx context.Context, table, key string, row Row) error
}

// Reader reads rows back by key.
type Reader interface {
	GetRow(ctx context.Context, table, key string) (Row, error)
	// Scan calls fn for each row with from <= key < to, in key order.
	Scan(ctx context.Context, table, from, to string, fn func(key string, row Row) error) error
	// Last returns the row with the highest key in [from, to).
	Last(ctx context.Context, table, from, to string) (string, Row, error)
}

// Store is a row backend.
type Store interface {
	Sink
	Reader
	Close() error
}

// Tables groups rows by table and key.
type Tables map[string]map[string]Row

// Put adds a row, replacing any row with the same key.
func (t Tables) Put(table, key string, row Row) {
	rows, ok := t[table]
	if !ok {
		rows = make(map[string]Row)
		t[table] = rows
	}
	rows[key] = row
}

// Merge copies every row of other into t.
func (t Tables) Merge(other Tables) {
	for table, rows := range other {
		for key, row := range rows {
			t.Put(table, key, row)
		}
	}
}

// Count returns the number of rows across tables.
func (t Tables) Count() int {
	n := 0
	for _, rows := range t {
		n += len(rows)
	}
	return n
}
