package rows

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
	"github.com/LeJamon/xrpl-ingest/internal/parser"
)

// Prepare lays out a ledger, its transactions and its parsed events.
func Prepare(l *ledger.Ledger, p *parser.Parsed) Tables {
	t := PrepareTransactions(l)
	t.Merge(PrepareParsed(p))
	t.Merge(PrepareLedger(l))
	return t
}

// PrepareLedger returns the ledger row and its index and time lookups.
func PrepareLedger(l *ledger.Ledger) Tables {
	hash := l.Hash.String()
	lookup := Row{
		"ledger_hash":  hash,
		"parent_hash":  l.ParentHash.String(),
		"ledger_index": int64(l.Index),
		"close_time":   l.CloseTime.Unix(),
	}

	t := Tables{}
	t.Put(TableLedgers, hash, Row{
		"ledger_hash":           hash,
		"parent_hash":           l.ParentHash.String(),
		"ledger_index":          int64(l.Index),
		"transactions_hash":     l.TxHash.String(),
		"account_hash":          l.AccountHash.String(),
		"total_coins":           int64(l.TotalDrops),
		"close_time":            l.CloseTime.Unix(),
		"parent_close_time":     l.ParentCloseTime.Unix(),
		"close_time_resolution": int64(l.CloseTimeResolution),
		"close_flags":           int64(l.CloseFlags),
		"tx_count":              int64(len(l.Transactions)),
	})
	t.Put(TableLedgersByIndex, LedgerIndexKey(l.Index, hash), lookup)
	t.Put(TableLedgersByTime, formatTime(l.CloseTime)+"|"+padIndex(l.Index), lookup)
	return t
}

// PrepareTransactions returns the transaction rows of a ledger and their
// time and account lookups.
func PrepareTransactions(l *ledger.Ledger) Tables {
	t := Tables{}
	for _, tx := range l.Transactions {
		hash := tx.Hash.String()
		client := parser.Client(tx)
		seq, _ := tx.Fields.Uint32("Sequence")

		row := Row{
			"tx_hash":       hash,
			"ledger_index":  int64(tx.LedgerIndex),
			"ledger_hash":   tx.LedgerHash.String(),
			"tx_index":      int64(tx.Index),
			"executed_time": tx.ExecutedTime.Unix(),
			"type":          tx.Type,
			"result":        tx.Result,
			"account":       tx.Account,
			"sequence":      int64(seq),
			"client":        client,
			"tx":            strings.ToUpper(hex.EncodeToString(tx.Blob)),
			"meta":          strings.ToUpper(hex.EncodeToString(tx.MetaBlob)),
		}
		if tx.DecodeErr != nil {
			row["decode_error"] = tx.DecodeErr.Error()
		}
		t.Put(TableTransactions, hash, row)

		// Without metadata the position in the ledger is unknown.
		if tx.Meta == nil {
			continue
		}

		lookup := Row{
			"tx_hash":       hash,
			"tx_index":      int64(tx.Index),
			"sequence":      int64(seq),
			"executed_time": tx.ExecutedTime.Unix(),
			"ledger_index":  int64(tx.LedgerIndex),
			"type":          tx.Type,
			"result":        tx.Result,
		}
		t.Put(TableTxByTime, txSuffix(tx.ExecutedTime, tx.LedgerIndex, tx.Index), lookup)
		if tx.Account != "" {
			t.Put(TableAccountTx, tx.Account+"|"+padIndex(seq), lookup)
		}
	}
	return t
}

func refColumns(r parser.TxRef) Row {
	row := Row{
		"tx_hash":       r.TxHash,
		"ledger_index":  int64(r.LedgerIndex),
		"tx_index":      int64(r.TxIndex),
		"executed_time": r.ExecutedTime.Unix(),
	}
	if r.Client != "" {
		row["client"] = r.Client
	}
	return row
}

func setOptional(row Row, col string, v any) {
	switch v := v.(type) {
	case *uint32:
		if v != nil {
			row[col] = int64(*v)
		}
	case *decimal.Decimal:
		if v != nil {
			row[col] = v.String()
		}
	case *time.Time:
		if v != nil {
			row[col] = v.Unix()
		}
	case string:
		if v != "" {
			row[col] = v
		}
	}
}

func amounts(list []parser.CurrencyAmount) []Row {
	out := make([]Row, 0, len(list))
	for _, a := range list {
		row := Row{"currency": a.Currency, "value": a.Value.String()}
		setOptional(row, "issuer", a.Issuer)
		out = append(out, row)
	}
	return out
}

// PrepareParsed lays out the events of one ledger.
func PrepareParsed(p *parser.Parsed) Tables {
	t := Tables{}
	if p == nil {
		return t
	}

	for _, ex := range p.Exchanges {
		suffix := nodeSuffix(ex.ExecutedTime, ex.LedgerIndex, ex.TxIndex, ex.NodeIndex)
		row := refColumns(ex.TxRef)
		row["base_currency"] = ex.Base.Currency
		setOptional(row, "base_issuer", ex.Base.Issuer)
		row["base_amount"] = ex.Base.Amount.String()
		row["counter_currency"] = ex.Counter.Currency
		setOptional(row, "counter_issuer", ex.Counter.Issuer)
		row["counter_amount"] = ex.Counter.Amount.String()
		row["rate"] = ex.Rate.String()
		row["buyer"] = ex.Buyer
		row["seller"] = ex.Seller
		row["taker"] = ex.Taker
		row["provider"] = ex.Provider
		row["offer_sequence"] = int64(ex.Sequence)
		row["tx_type"] = ex.TxType
		row["node_index"] = int64(ex.NodeIndex)
		if ex.Autobridged != nil {
			row["autobridged_currency"] = ex.Autobridged.Currency
			setOptional(row, "autobridged_issuer", ex.Autobridged.Issuer)
		}

		key := strings.Join([]string{ex.Base.Currency, ex.Base.Issuer, ex.Counter.Currency, ex.Counter.Issuer, suffix}, "|")
		t.Put(TableExchanges, key, row)
		t.Put(TableAccountExchange, ex.Buyer+"|"+suffix, row)
		t.Put(TableAccountExchange, ex.Seller+"|"+suffix, row)
	}

	for _, o := range p.Offers {
		row := refColumns(o.TxRef)
		row["account"] = o.Account
		row["sequence"] = int64(o.Sequence)
		row["type"] = o.ChangeType
		row["pays_currency"] = o.TakerPays.Currency
		setOptional(row, "pays_issuer", o.TakerPays.Issuer)
		row["pays_amount"] = o.TakerPays.Amount.String()
		row["gets_currency"] = o.TakerGets.Currency
		setOptional(row, "gets_issuer", o.TakerGets.Issuer)
		row["gets_amount"] = o.TakerGets.Amount.String()
		setOptional(row, "expiration", o.Expiration)
		if o.NewOffer != 0 {
			row["new_offer"] = int64(o.NewOffer)
		}
		if o.OldOffer != 0 {
			row["old_offer"] = int64(o.OldOffer)
		}
		row["node_index"] = int64(o.NodeIndex)

		t.Put(TableAccountOffers, o.Account+"|"+nodeSuffix(o.ExecutedTime, o.LedgerIndex, o.TxIndex, o.NodeIndex), row)

		lookup := refColumns(o.TxRef)
		lookup["account"] = o.Account
		lookup["sequence"] = int64(o.Sequence)
		lookup["type"] = o.ChangeType
		lookup["node_index"] = int64(o.NodeIndex)
		t.Put(TableOffersBySeq, o.Account+"|"+padIndex(o.Sequence), lookup)
	}

	for _, c := range p.BalanceChanges {
		node := padSmall(c.NodeIndex)
		if c.NodeIndex == parser.FeeNodeIndex {
			node = "$"
		}
		suffix := "|" + txSuffix(c.ExecutedTime, c.LedgerIndex, c.TxIndex) + "|" + node

		row := refColumns(c.TxRef)
		row["account"] = c.Account
		row["currency"] = c.Currency
		setOptional(row, "issuer", c.Issuer)
		row["change"] = c.Change.String()
		row["final_balance"] = c.FinalBalance.String()
		row["change_type"] = c.Type
		row["node_index"] = int64(c.NodeIndex)
		setOptional(row, "escrow_counterparty", c.EscrowCounterparty)
		setOptional(row, "escrow_balance_change", c.EscrowBalanceChange)
		setOptional(row, "paychannel_counterparty", c.PaychanCounterparty)
		setOptional(row, "paychannel_fund_change", c.PaychanFundChange)
		setOptional(row, "paychannel_balance_change", c.PaychanBalanceChange)
		setOptional(row, "paychannel_fund_final_balance", c.PaychanFundFinalBalance)
		setOptional(row, "paychannel_final_balance", c.PaychanFinalBalance)

		t.Put(TableBalanceChanges, c.Account+suffix, row)
		if c.Issuer != "" {
			t.Put(TableBalanceChanges, c.Issuer+suffix, row)
		}
	}

	for _, pm := range p.Payments {
		key := txSuffix(pm.ExecutedTime, pm.LedgerIndex, pm.TxIndex)
		row := refColumns(pm.TxRef)
		row["source"] = pm.Source
		row["destination"] = pm.Destination
		row["amount"] = pm.Amount.String()
		row["delivered_amount"] = pm.DeliveredAmount.String()
		row["currency"] = pm.Currency
		setOptional(row, "issuer", pm.Issuer)
		row["source_currency"] = pm.SourceCurrency
		row["fee"] = pm.Fee.String()
		setOptional(row, "max_amount", pm.MaxAmount)
		setOptional(row, "destination_tag", pm.DestinationTag)
		setOptional(row, "source_tag", pm.SourceTag)
		setOptional(row, "invoice_id", pm.InvoiceID)
		row["source_balance_changes"] = amounts(pm.SourceBalanceChanges)
		row["destination_balance_changes"] = amounts(pm.DestinationBalanceChanges)

		t.Put(TablePayments, key, row)
		t.Put(TableAccountPayments, pm.Source+"|"+key, row)
		t.Put(TableAccountPayments, pm.Destination+"|"+key, row)
	}

	for _, a := range p.AccountsCreated {
		row := refColumns(a.TxRef)
		row["account"] = a.Account
		row["parent"] = a.Parent
		t.Put(TableAccountsCreated, txSuffix(a.ExecutedTime, a.LedgerIndex, a.TxIndex), row)
	}

	for _, m := range p.Memos {
		key := nodeSuffix(m.ExecutedTime, m.LedgerIndex, m.TxIndex, m.MemoIndex)
		row := refColumns(m.TxRef)
		row["account"] = m.Account
		setOptional(row, "destination", m.Destination)
		setOptional(row, "source_tag", m.SourceTag)
		setOptional(row, "destination_tag", m.DestinationTag)
		setOptional(row, "memo_type", m.Type)
		setOptional(row, "memo_data", m.Data)
		setOptional(row, "memo_format", m.Format)
		setOptional(row, "type_encoding", m.TypeEncoding)
		setOptional(row, "data_encoding", m.Encoding)
		row["memo_index"] = int64(m.MemoIndex)
		t.Put(TableMemos, key, row)

		sender := refColumns(m.TxRef)
		sender["rowkey"] = key
		sender["is_sender"] = true
		sender["memo_index"] = int64(m.MemoIndex)
		setOptional(sender, "tag", m.SourceTag)
		t.Put(TableAccountMemos, m.Account+"|"+key, sender)

		if m.Destination != "" {
			receiver := refColumns(m.TxRef)
			receiver["rowkey"] = key
			receiver["is_sender"] = false
			receiver["memo_index"] = int64(m.MemoIndex)
			setOptional(receiver, "tag", m.DestinationTag)
			t.Put(TableAccountMemos, m.Destination+"|"+key, receiver)
		}
	}

	for _, a := range p.AffectedAccounts {
		row := refColumns(a.TxRef)
		row["type"] = a.TxType
		row["result"] = a.TxResult
		t.Put(TableAffectedAccTx, a.Account+"|"+txSuffix(a.ExecutedTime, a.LedgerIndex, a.TxIndex), row)
	}

	for _, e := range p.Escrows {
		row := refColumns(e.TxRef)
		row["tx_type"] = e.TxType
		row["flags"] = int64(e.Flags)
		row["fee"] = e.Fee.String()
		row["amount"] = e.Amount.String()
		row["account"] = e.Account
		setOptional(row, "owner", e.Owner)
		setOptional(row, "destination", e.Destination)
		setOptional(row, "destination_tag", e.DestinationTag)
		setOptional(row, "source_tag", e.SourceTag)
		if e.CreateTxSeq != 0 {
			row["create_tx_seq"] = int64(e.CreateTxSeq)
		}
		setOptional(row, "create_tx", e.CreateTx)
		setOptional(row, "condition", e.Condition)
		setOptional(row, "fulfillment", e.Fulfillment)
		setOptional(row, "cancel_after", e.CancelAfter)
		setOptional(row, "finish_after", e.FinishAfter)

		owner := e.Owner
		if owner == "" {
			owner = e.Account
		}
		t.Put(TableEscrows, owner+"|"+txSuffix(e.ExecutedTime, e.LedgerIndex, e.TxIndex), row)
	}

	for _, pc := range p.Paychans {
		row := refColumns(pc.TxRef)
		row["tx_type"] = pc.TxType
		row["flags"] = int64(pc.Flags)
		row["fee"] = pc.Fee.String()
		row["channel"] = pc.Channel
		row["account"] = pc.Account
		setOptional(row, "source", pc.Source)
		setOptional(row, "destination", pc.Destination)
		setOptional(row, "signature", pc.Signature)
		setOptional(row, "public_key", pc.PublicKey)
		setOptional(row, "settle_delay", pc.Settle)
		setOptional(row, "destination_tag", pc.DestinationTag)
		setOptional(row, "source_tag", pc.SourceTag)
		setOptional(row, "amount", pc.Amount)
		setOptional(row, "balance", pc.Balance)
		setOptional(row, "cancel_after", pc.CancelAfter)
		setOptional(row, "expiration", pc.Expiration)
		t.Put(TablePaychans, pc.Channel+"|"+txSuffix(pc.ExecutedTime, pc.LedgerIndex, pc.TxIndex), row)
	}

	if f := p.FeeSummary; f != nil {
		t.Put(TableFeeSummary, padIndex(f.LedgerIndex), Row{
			"ledger_index": int64(f.LedgerIndex),
			"close_time":   f.CloseTime.Unix(),
			"tx_count":     int64(f.TxCount),
			"total":        f.Total.String(),
			"avg":          f.Avg.String(),
			"max":          f.Max.String(),
			"min":          f.Min.String(),
		})
	}
	return t
}

// ControlRow is the last_validated control row for a ledger.
func ControlRow(index uint32, hash, parentHash ledger.Hash256, closeTime time.Time) Row {
	return Row{
		"ledger_index": int64(index),
		"ledger_hash":  hash.String(),
		"parent_hash":  parentHash.String(),
		"close_time":   closeTime.Unix(),
	}
}
