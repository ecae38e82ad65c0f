package parser

import (
	"errors"
	"fmt"

	"github.com/LeJamon/xrpl-ingest/internal/core/amount"
	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
)

// Offers extracts the lifecycle change of every Offer node touched by a
// successful Payment, OfferCreate or OfferCancel.
func Offers(tx *ledger.Transaction) ([]OfferChange, error) {
	if !tx.Successful() {
		return nil, nil
	}
	switch tx.Type {
	case "Payment", "OfferCreate", "OfferCancel":
	default:
		return nil, nil
	}

	offerSeq, hasOfferSeq := tx.Fields.Uint32("OfferSequence")
	txSeq, _ := tx.Fields.Uint32("Sequence")

	var list []OfferChange
	var errs []error
	for i := range tx.AffectedNodes {
		node := &tx.AffectedNodes[i]
		if node.EntryType != ledger.EntryOffer {
			continue
		}
		fields := node.Fields()
		if fields == nil {
			continue
		}

		pays, err := toLeg(fields["TakerPays"])
		if err != nil {
			errs = append(errs, extractError("offers", tx, node.Index, fmt.Errorf("TakerPays: %w", err)))
			continue
		}
		gets, err := toLeg(fields["TakerGets"])
		if err != nil {
			errs = append(errs, extractError("offers", tx, node.Index, fmt.Errorf("TakerGets: %w", err)))
			continue
		}

		seq, _ := fields.Uint32("Sequence")
		change := OfferChange{
			TxRef:      txRef(tx),
			NodeIndex:  node.Index,
			ChangeType: classifyOffer(tx, node),
			Account:    fields.String("Account"),
			Sequence:   seq,
			Expiration: rippleTime(fields, "Expiration"),
			TakerPays:  pays,
			TakerGets:  gets,
		}

		if hasOfferSeq {
			switch {
			case node.Kind == ledger.Created && change.Account == tx.Account:
				change.OldOffer = offerSeq
			case node.Kind == ledger.Deleted && change.Account != "":
				change.NewOffer = txSeq
			}
		}

		list = append(list, change)
	}
	return list, errors.Join(errs...)
}

func classifyOffer(tx *ledger.Transaction, node *ledger.AffectedNode) string {
	switch node.Kind {
	case ledger.Created:
		return OfferCreate
	case ledger.Modified:
		return OfferPartialFill
	}

	final := node.FinalFields
	if tx.Type == "OfferCancel" {
		return OfferCancel
	}
	if tx.Type == "OfferCreate" && final.String("Account") == tx.Account {
		seq, _ := final.Uint32("Sequence")
		if offerSeq, ok := tx.Fields.Uint32("OfferSequence"); ok && seq == offerSeq {
			return OfferReplace
		}
	}
	if pays, err := amount.Parse(final["TakerPays"]); err == nil && pays.Decimal().IsZero() {
		return OfferFill
	}
	if node.PreviousFields == nil {
		return OfferUnfundedCancel
	}
	if node.PreviousFields.Has("TakerPays") || node.PreviousFields.Has("TakerGets") {
		return OfferUnfundedPartialFill
	}
	return OfferUnfundedCancel
}
