package parser

import (
	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
)

// Escrows extracts a successful EscrowCreate, EscrowFinish or EscrowCancel.
// Finish and cancel read the escrow's terms from its deleted ledger entry.
func Escrows(tx *ledger.Transaction) ([]EscrowEvent, error) {
	if !tx.Successful() {
		return nil, nil
	}
	switch tx.Type {
	case "EscrowCreate", "EscrowCancel", "EscrowFinish":
	default:
		return nil, nil
	}

	var entry ledger.Fields
	for i := range tx.AffectedNodes {
		n := &tx.AffectedNodes[i]
		if n.Kind == ledger.Deleted && n.EntryType == ledger.EntryEscrow {
			entry = n.FinalFields
			break
		}
	}
	// pick returns the transaction's field, falling back to the escrow entry.
	pick := func(name string) any {
		if v, ok := tx.Fields[name]; ok {
			return v
		}
		return entry[name]
	}

	flags, _ := tx.Fields.Uint32("Flags")
	e := EscrowEvent{
		TxRef:       txRef(tx),
		TxType:      tx.Type,
		Flags:       flags,
		Fee:         fee(tx),
		Account:     tx.Account,
		Owner:       tx.Account,
		Destination: tx.Fields.String("Destination"),
		Condition:   tx.Fields.String("Condition"),
		Fulfillment: tx.Fields.String("Fulfillment"),
		CreateTx:    tx.Hash.String(),
		CancelAfter: rippleTime(tx.Fields, "CancelAfter"),
		FinishAfter: rippleTime(tx.Fields, "FinishAfter"),
	}
	if owner := tx.Fields.String("Owner"); owner != "" {
		e.Owner = owner
	}
	if e.Destination == "" {
		e.Destination = entry.String("Destination")
	}
	if tx.Type == "EscrowCreate" {
		e.CreateTxSeq, _ = tx.Fields.Uint32("Sequence")
	} else {
		e.CreateTxSeq, _ = tx.Fields.Uint32("OfferSequence")
	}
	if id := entry.String("PreviousTxnID"); id != "" {
		e.CreateTx = id
	}
	if d, ok := dropsToXRP(pick("Amount")); ok {
		e.Amount = d
	}
	if v, ok := ledger.ToUint64(pick("DestinationTag")); ok {
		tag := uint32(v)
		e.DestinationTag = &tag
	}
	if v, ok := ledger.ToUint64(pick("SourceTag")); ok {
		tag := uint32(v)
		e.SourceTag = &tag
	}
	return []EscrowEvent{e}, nil
}
