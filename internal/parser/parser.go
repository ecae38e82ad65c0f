// Package parser turns validated ledgers into normalized domain events.
// Every function here is pure: the same ledger always yields the same events.
package parser

import (
	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
)

// Parsed holds the events extracted from one transaction or ledger.
type Parsed struct {
	Exchanges        []Exchange
	Offers           []OfferChange
	BalanceChanges   []BalanceChange
	Payments         []Payment
	Escrows          []EscrowEvent
	Paychans         []PaychanEvent
	Memos            []Memo
	AffectedAccounts []AffectedAccount
	AccountsCreated  []AccountCreated

	// FeeSummary is only set by ParseLedger.
	FeeSummary *FeeSummary

	// Errors are the extraction failures that caused events to be skipped.
	Errors []error
}

// Merge appends the events of other to p.
func (p *Parsed) Merge(other *Parsed) {
	p.Exchanges = append(p.Exchanges, other.Exchanges...)
	p.Offers = append(p.Offers, other.Offers...)
	p.BalanceChanges = append(p.BalanceChanges, other.BalanceChanges...)
	p.Payments = append(p.Payments, other.Payments...)
	p.Escrows = append(p.Escrows, other.Escrows...)
	p.Paychans = append(p.Paychans, other.Paychans...)
	p.Memos = append(p.Memos, other.Memos...)
	p.AffectedAccounts = append(p.AffectedAccounts, other.AffectedAccounts...)
	p.AccountsCreated = append(p.AccountsCreated, other.AccountsCreated...)
	p.Errors = append(p.Errors, other.Errors...)
}

// ParseLedger runs every extractor over the ledger's transactions in
// execution order and summarizes its fees.
func ParseLedger(l *ledger.Ledger) *Parsed {
	p := &Parsed{}
	for _, tx := range l.Transactions {
		p.Merge(ParseTransaction(tx))
	}
	fees := Fees(l)
	p.FeeSummary = &fees
	return p
}

// ParseTransaction runs every per-transaction extractor. A transaction that
// failed to decode yields only its decode error.
func ParseTransaction(tx *ledger.Transaction) *Parsed {
	p := &Parsed{}
	if tx.DecodeErr != nil {
		p.Errors = append(p.Errors, extractError("decode", tx, -1, tx.DecodeErr))
		return p
	}
	collect := func(err error) {
		if err != nil {
			p.Errors = append(p.Errors, err)
		}
	}

	var err error
	p.Exchanges, err = Exchanges(tx)
	collect(err)
	p.Offers, err = Offers(tx)
	collect(err)
	p.BalanceChanges, err = BalanceChanges(tx)
	collect(err)
	p.Payments, err = Payments(tx)
	collect(err)
	p.Escrows, err = Escrows(tx)
	collect(err)
	p.Paychans, err = Paychans(tx)
	collect(err)
	p.Memos, err = Memos(tx)
	collect(err)
	p.AffectedAccounts, err = AffectedAccounts(tx)
	collect(err)
	p.AccountsCreated, err = AccountsCreated(tx)
	collect(err)
	return p
}
