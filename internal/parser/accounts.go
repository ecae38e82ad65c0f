package parser

import (
	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
	addresscodec "github.com/Peersyst/xrpl-go/address-codec"
)

var (
	accountFieldNames = []string{"Account", "Owner", "Destination", "Issuer", "RegularKey"}
	amountFieldNames  = []string{"HighLimit", "LowLimit", "TakerPays", "TakerGets", "Amount", "SendMax", "Balance"}
)

// AffectedAccounts lists every classic address referenced by the transaction
// or the entries it touched, in order of first appearance.
func AffectedAccounts(tx *ledger.Transaction) ([]AffectedAccount, error) {
	seen := map[string]bool{}
	var order []string
	add := func(a string) {
		if a == "" || seen[a] || !addresscodec.IsValidClassicAddress(a) {
			return
		}
		seen[a] = true
		order = append(order, a)
	}
	scan := func(f ledger.Fields) {
		for _, name := range accountFieldNames {
			add(f.String(name))
		}
		for _, name := range amountFieldNames {
			add(f.Object(name).String("issuer"))
		}
	}

	add(tx.Account)
	add(tx.Fields.String("Destination"))
	for i := range tx.AffectedNodes {
		n := &tx.AffectedNodes[i]
		scan(n.NewFields)
		scan(n.FinalFields)
		scan(n.PreviousFields)
	}

	ref := txRef(tx)
	list := make([]AffectedAccount, 0, len(order))
	for _, a := range order {
		list = append(list, AffectedAccount{TxRef: ref, Account: a, TxType: tx.Type, TxResult: tx.Result})
	}
	return list, nil
}

// AccountsCreated lists the accounts funded into existence by a successful transaction.
func AccountsCreated(tx *ledger.Transaction) ([]AccountCreated, error) {
	if !tx.Successful() {
		return nil, nil
	}
	var list []AccountCreated
	ref := txRef(tx)
	for i := range tx.AffectedNodes {
		n := &tx.AffectedNodes[i]
		if n.Kind != ledger.Created || n.EntryType != ledger.EntryAccountRoot {
			continue
		}
		list = append(list, AccountCreated{TxRef: ref, Account: n.NewFields.String("Account"), Parent: tx.Account})
	}
	return list, nil
}
