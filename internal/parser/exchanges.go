package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/LeJamon/xrpl-ingest/internal/core/amount"
	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
)

// Exchanges extracts every offer exercised by a successful Payment or
// OfferCreate. Nodes that cannot be read are reported and skipped.
func Exchanges(tx *ledger.Transaction) ([]Exchange, error) {
	if !tx.Successful() || (tx.Type != "Payment" && tx.Type != "OfferCreate") {
		return nil, nil
	}

	var list []Exchange
	var errs []error
	for i := range tx.AffectedNodes {
		node := &tx.AffectedNodes[i]
		if node.Kind == ledger.Created || node.EntryType != ledger.EntryOffer {
			continue
		}
		if !node.PreviousFields.Has("TakerPays") || !node.PreviousFields.Has("TakerGets") {
			continue
		}

		ex, err := exercised(tx, node)
		if err != nil {
			errs = append(errs, extractError("exchanges", tx, node.Index, err))
			continue
		}
		list = append(list, ex)
	}
	return list, errors.Join(errs...)
}

func exercised(tx *ledger.Transaction, node *ledger.AffectedNode) (Exchange, error) {
	final := node.FinalFields
	if final == nil {
		return Exchange{}, errors.New("offer has no final fields")
	}

	base, err := legDelta(node.PreviousFields["TakerPays"], final["TakerPays"])
	if err != nil {
		return Exchange{}, fmt.Errorf("TakerPays: %w", err)
	}
	counter, err := legDelta(node.PreviousFields["TakerGets"], final["TakerGets"])
	if err != nil {
		return Exchange{}, fmt.Errorf("TakerGets: %w", err)
	}

	rate, err := ParseQuality(final.String("BookDirectory"), base.Currency, counter.Currency)
	if err != nil {
		if counter.Amount.IsZero() {
			return Exchange{}, fmt.Errorf("no quality and zero counter amount: %w", err)
		}
		rate = base.Amount.DivRound(counter.Amount, invertPrecision)
	}

	sequence, _ := final.Uint32("Sequence")
	ex := Exchange{
		TxRef:     txRef(tx),
		NodeIndex: node.Index,
		TxType:    tx.Type,
		Base:      base,
		Counter:   counter,
		Rate:      rate,
		Buyer:     final.String("Account"),
		Seller:    tx.Account,
		Taker:     tx.Account,
		Provider:  final.String("Account"),
		Sequence:  sequence,
	}
	ex.Autobridged = autobridge(tx, base, counter)

	orderPair(&ex)
	return ex, nil
}

// autobridge reports the far leg of an OfferCreate that crossed through XRP.
func autobridge(tx *ledger.Transaction, base, counter Leg) *Issue {
	if tx.Type != "OfferCreate" {
		return nil
	}
	paysCur, paysIss := currencyOf(tx.Fields["TakerPays"])
	getsCur, getsIss := currencyOf(tx.Fields["TakerGets"])
	if paysCur == "" || getsCur == "" {
		return nil
	}

	pays := &Issue{Currency: paysCur, Issuer: paysIss}
	gets := &Issue{Currency: getsCur, Issuer: getsIss}
	switch {
	case counter.Currency == amount.XRP && base.Currency == paysCur:
		return gets
	case counter.Currency == amount.XRP && base.Currency == getsCur:
		return pays
	case base.Currency == amount.XRP && counter.Currency == paysCur:
		return gets
	case base.Currency == amount.XRP && counter.Currency == getsCur:
		return pays
	}
	return nil
}

// pairKey is the ordering key of one leg: currency followed by issuer, lowercased.
func pairKey(l Leg) string {
	return strings.ToLower(l.Currency + l.Issuer)
}

// orderPair puts the lexicographically smaller leg first. The raw rate is
// base per counter; after ordering it is counter per base.
func orderPair(ex *Exchange) {
	if pairKey(ex.Counter) < pairKey(ex.Base) {
		ex.Base, ex.Counter = ex.Counter, ex.Base
		ex.Buyer, ex.Seller = ex.Seller, ex.Buyer
		return
	}
	ex.Rate = invert(ex.Rate)
}
