package parser

import (
	"errors"
	"fmt"

	"github.com/LeJamon/xrpl-ingest/internal/core/amount"
	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
	"github.com/shopspring/decimal"
)

// BalanceChanges extracts XRP and issued-currency balance changes from any
// transaction whose result was applied, tec codes included. The paying
// account's fee is reported as its own entry.
func BalanceChanges(tx *ledger.Transaction) ([]BalanceChange, error) {
	if !tx.Claimed() {
		return nil, nil
	}

	ref := txRef(tx)
	var list []BalanceChange
	var errs []error
	escrows := map[string]ledger.Fields{}
	paychans := map[string]ledger.Fields{}

	for i := range tx.AffectedNodes {
		node := &tx.AffectedNodes[i]
		var err error
		switch node.EntryType {
		case ledger.EntryAccountRoot:
			list, err = accountRootChanges(tx, ref, node, list)
		case ledger.EntryRippleState:
			list, err = rippleStateChange(tx, ref, node, list)
		case ledger.EntryEscrow:
			if f := node.Fields(); f != nil {
				escrows[f.String("Account")] = f
				escrows[f.String("Destination")] = f
			}
		case ledger.EntryPayChannel:
			if f := node.Fields(); f != nil {
				paychans[f.String("Account")] = f
				paychans[f.String("Destination")] = f
			}
		}
		if err != nil {
			errs = append(errs, extractError("balance_changes", tx, node.Index, err))
		}
	}

	for i := range list {
		d := &list[i]
		if d.Type != "" {
			continue
		}
		if e, ok := escrows[d.Account]; ok {
			escrowChange(tx, d, e)
		}
		if d.Type != "" {
			continue
		}
		if p, ok := paychans[d.Account]; ok {
			paychanChange(d, p)
		}
	}

	return list, errors.Join(errs...)
}

func accountRootChanges(tx *ledger.Transaction, ref TxRef, node *ledger.AffectedNode, list []BalanceChange) ([]BalanceChange, error) {
	var account string
	var balance, previous amount.XRPAmount
	var err error

	switch {
	case node.FinalFields.Has("Balance") && node.PreviousFields.Has("Balance"):
		account = node.FinalFields.String("Account")
		if balance, err = amount.ParseDrops(node.FinalFields.String("Balance")); err != nil {
			return list, err
		}
		if previous, err = amount.ParseDrops(node.PreviousFields.String("Balance")); err != nil {
			return list, err
		}
	case node.Kind == ledger.Created:
		account = node.NewFields.String("Account")
		if balance, err = amount.ParseDrops(node.NewFields.String("Balance")); err != nil {
			return list, err
		}
	default:
		return list, nil
	}

	change := balance.Sub(previous)
	if account == tx.Account {
		feeDrops, err := amount.ParseDrops(tx.Fields.String("Fee"))
		if err != nil {
			return list, fmt.Errorf("fee: %w", err)
		}
		feeChange := feeDrops.Neg()
		rest := change.Sub(feeChange)
		list = append(list, BalanceChange{
			TxRef:        ref,
			NodeIndex:    FeeNodeIndex,
			Type:         ChangeFee,
			Account:      account,
			Currency:     amount.XRP,
			Change:       feeChange.DecimalXRP(),
			FinalBalance: balance.Sub(rest).DecimalXRP(),
		})
		change = rest
	}
	if change.IsZero() {
		return list, nil
	}

	d := BalanceChange{
		TxRef:        ref,
		NodeIndex:    node.Index,
		Account:      account,
		Currency:     amount.XRP,
		Change:       change.DecimalXRP(),
		FinalBalance: balance.DecimalXRP(),
	}
	d.Type = changeType(tx, &d)
	return append(list, d), nil
}

// rippleStateChange reports a trust line change from the holder's side. A
// line whose balance is or was negative is held by the high party.
func rippleStateChange(tx *ledger.Transaction, ref TxRef, node *ledger.AffectedNode, list []BalanceChange) ([]BalanceChange, error) {
	var fields ledger.Fields
	var balance, previous amount.Amount
	var err error

	switch {
	case node.Kind == ledger.Created:
		fields = node.NewFields
		if balance, err = amount.Parse(fields["Balance"]); err != nil {
			return list, err
		}
		if balance.Value.IsZero() {
			return list, nil
		}
		previous = amount.Amount{Currency: balance.Currency, Issuer: balance.Issuer}
	case node.PreviousFields.Has("Balance"):
		fields = node.FinalFields
		if balance, err = amount.Parse(fields["Balance"]); err != nil {
			return list, err
		}
		if previous, err = amount.Parse(node.PreviousFields["Balance"]); err != nil {
			return list, err
		}
	default:
		return list, nil
	}

	high := fields.Object("HighLimit").String("issuer")
	low := fields.Object("LowLimit").String("issuer")
	if high == "" || low == "" {
		return list, errors.New("trust line without limits")
	}

	final := balance.Value
	change := balance.Value.Sub(previous.Value)
	d := BalanceChange{
		TxRef:     ref,
		NodeIndex: node.Index,
		Currency:  balance.Currency,
	}
	if final.IsNegative() || previous.Value.IsNegative() {
		d.Account, d.Issuer = high, low
		final, change = final.Neg(), change.Neg()
	} else {
		d.Account, d.Issuer = low, high
	}
	d.Change = change
	d.FinalBalance = final
	d.Type = changeType(tx, &d)
	return append(list, d), nil
}

// changeType classifies a balance change by the transaction that caused it.
// Other transaction types are left blank for the escrow and channel passes.
func changeType(tx *ledger.Transaction, d *BalanceChange) string {
	negative := d.FinalBalance.IsNegative()

	switch tx.Type {
	case "OfferCreate":
		if negative {
			return ChangeIntermediary
		}
		return ChangeExchange

	case "Payment":
		destination := tx.Fields.String("Destination")
		amountCur, _ := currencyOf(tx.Fields["Amount"])
		sendMax, hasSendMax := tx.Fields["SendMax"]
		sendMaxCur, _ := currencyOf(sendMax)
		isXRP := d.Currency == amount.XRP

		switch {
		case tx.Account == destination && negative:
			return ChangeIntermediary
		case tx.Account == destination:
			return ChangeExchange
		case d.Account == destination && amountCur != "" && amountCur == d.Currency:
			return ChangePaymentDestination
		case d.Account == destination && amountCur == "" && isXRP:
			return ChangePaymentDestination
		case d.Account == tx.Account && sendMaxCur != "" && sendMaxCur == d.Currency:
			return ChangePaymentSource
		case d.Account == tx.Account && hasSendMax && isXRP:
			return ChangePaymentSource
		case d.Account == tx.Account && amountCur != "" && amountCur == d.Currency:
			return ChangePaymentSource
		case d.Account == tx.Account && amountCur == "" && isXRP:
			return ChangePaymentSource
		case negative:
			return ChangeIntermediary
		}
		return ChangeExchange
	}
	return ""
}

func escrowChange(tx *ledger.Transaction, d *BalanceChange, escrow ledger.Fields) {
	held, ok := dropsToXRP(escrow["Amount"])
	if !ok {
		return
	}
	d.EscrowCounterparty = escrow.String("Destination")

	var delta decimal.Decimal
	switch tx.Type {
	case "EscrowCreate":
		d.Type = ChangeEscrowCreate
		delta = held
	case "EscrowCancel":
		d.Type = ChangeEscrowCancel
		delta = held.Neg()
	case "EscrowFinish":
		d.Type = ChangeEscrowFinish
		delta = held.Neg()
	default:
		return
	}
	d.EscrowBalanceChange = &delta
}

func paychanChange(d *BalanceChange, ch ledger.Fields) {
	funded, ok := dropsToXRP(ch["Amount"])
	if !ok {
		funded = decimal.Zero
	}
	paid, ok := dropsToXRP(ch["Balance"])
	if !ok {
		paid = decimal.Zero
	}
	moved := d.Change.Neg()
	d.PaychanFundFinalBalance = &funded
	d.PaychanFinalBalance = &paid

	if d.Account == ch.String("Account") {
		d.Type = ChangePaychanFund
		d.PaychanCounterparty = ch.String("Destination")
		d.PaychanFundChange = &moved
		return
	}
	d.Type = ChangePaychanPayout
	d.PaychanCounterparty = ch.String("Account")
	d.PaychanBalanceChange = &moved
}
