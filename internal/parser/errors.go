package parser

import (
	"fmt"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
)

// ExtractError reports a structural problem in one transaction or one of its
// affected nodes. The offending event is skipped; the rest of the ledger is not.
type ExtractError struct {
	Extractor string
	TxHash    string
	// NodeIndex is the affected node at fault, or -1 for the transaction itself.
	NodeIndex int
	Err       error
}

func (e *ExtractError) Error() string {
	if e.NodeIndex >= 0 {
		return fmt.Sprintf("%s: tx %s node %d: %v", e.Extractor, e.TxHash, e.NodeIndex, e.Err)
	}
	return fmt.Sprintf("%s: tx %s: %v", e.Extractor, e.TxHash, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

func extractError(extractor string, tx *ledger.Transaction, node int, err error) *ExtractError {
	return &ExtractError{Extractor: extractor, TxHash: tx.Hash.String(), NodeIndex: node, Err: err}
}
