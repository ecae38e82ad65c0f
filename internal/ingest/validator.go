package ingest

import (
	"fmt"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
	"github.com/LeJamon/xrpl-ingest/internal/core/shamap"
)

// Rejection reasons reported in ValidationError.
const (
	ReasonNotClosed      = "not closed"
	ReasonMissingMeta    = "missing metadata"
	ReasonTxHashMismatch = "transaction hash mismatch"
	ReasonHashMismatch   = "ledger hash mismatch"
)

// ValidationError is returned for a ledger that fails an integrity check.
// The fetcher treats it like a transport failure and retries.
type ValidationError struct {
	Index  uint32
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("ledger %d rejected: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("ledger %d rejected: %s: %s", e.Index, e.Reason, e.Detail)
}

// Validator checks a raw ledger before it is decoded.
type Validator struct {
	// VerifyLedgerHash recomputes the ledger hash from the header when the
	// source delivered one.
	VerifyLedgerHash bool
}

// Validate rejects ledgers that are not closed, carry a transaction without
// metadata, or whose transaction tree does not hash to the declared root.
func (v *Validator) Validate(raw *ledger.RawLedger) error {
	if !raw.Closed {
		return &ValidationError{Index: raw.Index, Reason: ReasonNotClosed}
	}

	tree := shamap.NewTxTree()
	for i, tx := range raw.Transactions {
		if len(tx.Meta) == 0 {
			return &ValidationError{
				Index:  raw.Index,
				Reason: ReasonMissingMeta,
				Detail: fmt.Sprintf("transaction %d", i),
			}
		}
		tree.Add(shamap.TxItem{
			ID:   ledger.TransactionID(tx.Blob),
			Blob: tx.Blob,
			Meta: tx.Meta,
		})
	}

	if got := ledger.Hash256(tree.Hash()); got != raw.TxHash {
		return &ValidationError{
			Index:  raw.Index,
			Reason: ReasonTxHashMismatch,
			Detail: fmt.Sprintf("computed %s, header says %s", got, raw.TxHash),
		}
	}

	if v.VerifyLedgerHash && raw.Header != nil {
		if got := ledger.Hash256(raw.Header.ComputeHash()); got != raw.Hash {
			return &ValidationError{
				Index:  raw.Index,
				Reason: ReasonHashMismatch,
				Detail: fmt.Sprintf("computed %s, source says %s", got, raw.Hash),
			}
		}
	}
	return nil
}
