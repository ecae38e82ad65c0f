// Package ingest keeps a store in sync with the validated ledger history of
// a remote rippled node. It fetches and validates ledgers, follows the live
// stream, backfills missing ranges and finds gaps in what is already stored.
package ingest

import (
	"context"
	"errors"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
)

// ErrNotFound is returned by a LedgerSource that does not have the ledger.
var ErrNotFound = errors.New("ledger not found")

// LedgerClosed is one event of the remote ledger stream.
type LedgerClosed struct {
	Index uint32
	Hash  ledger.Hash256

	// Server is the node that announced the close. It can be passed back as
	// a routing hint when fetching.
	Server string
}

// LedgerSource is the remote node, or pool of nodes, ledgers are read from.
type LedgerSource interface {
	// Ledger returns the ledger with its serialized transactions and metadata.
	Ledger(ctx context.Context, spec ledger.Specifier) (*ledger.RawLedger, error)
	// Subscribe streams ledger close events until ctx is done. The channel is
	// closed when the subscription ends.
	Subscribe(ctx context.Context) (<-chan LedgerClosed, error)
}

// LedgerGetter returns validated, decoded ledgers. The Fetcher is the
// production implementation.
type LedgerGetter interface {
	GetLedger(ctx context.Context, spec ledger.Specifier) (*ledger.Ledger, error)
}

// EmitFunc receives ledgers in the order a component produces them. It is
// called from several goroutines when live backfills are running.
type EmitFunc func(ctx context.Context, l *ledger.Ledger) error
