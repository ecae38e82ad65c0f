package parser

import (
	"fmt"

	"github.com/LeJamon/xrpl-ingest/internal/core/amount"
	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
	"github.com/shopspring/decimal"
)

// Payments extracts a successful Payment between two distinct accounts.
// Payments to self are conversions and are left to the exchange extractor.
func Payments(tx *ledger.Transaction) ([]Payment, error) {
	if !tx.Successful() || tx.Type != "Payment" {
		return nil, nil
	}
	destination := tx.Fields.String("Destination")
	if tx.Account == destination {
		return nil, nil
	}

	nominal, err := amount.Parse(tx.Fields["Amount"])
	if err != nil {
		return nil, extractError("payments", tx, -1, fmt.Errorf("Amount: %w", err))
	}
	delivered := nominal
	if v, ok := tx.Meta["DeliveredAmount"]; ok {
		if delivered, err = amount.Parse(v); err != nil {
			return nil, extractError("payments", tx, -1, fmt.Errorf("DeliveredAmount: %w", err))
		}
	}

	p := Payment{
		TxRef:           txRef(tx),
		Source:          tx.Account,
		Destination:     destination,
		Currency:        nominal.Currency,
		Amount:          nominal.Decimal(),
		DeliveredAmount: delivered.Decimal(),
		Fee:             fee(tx),
		DestinationTag:  optUint32(tx.Fields, "DestinationTag"),
		SourceTag:       optUint32(tx.Fields, "SourceTag"),
		InvoiceID:       tx.Fields.String("InvoiceID"),
	}

	if v, ok := tx.Fields["SendMax"]; ok {
		sendMax, err := amount.Parse(v)
		if err != nil {
			return nil, extractError("payments", tx, -1, fmt.Errorf("SendMax: %w", err))
		}
		d := sendMax.Decimal()
		p.MaxAmount = &d
		p.SourceCurrency = sendMax.Currency
	}

	changes, err := accountChanges(tx)
	if err != nil {
		return nil, extractError("payments", tx, -1, err)
	}
	p.DestinationBalanceChanges = changes[destination]
	for _, c := range changes[tx.Account] {
		if c.Currency == amount.XRP {
			c.Value = c.Value.Add(p.Fee)
		}
		if !c.Value.IsZero() {
			p.SourceBalanceChanges = append(p.SourceBalanceChanges, c)
		}
	}
	if p.SourceCurrency == "" && len(p.SourceBalanceChanges) > 0 {
		p.SourceCurrency = p.SourceBalanceChanges[0].Currency
	}

	if !nominal.IsNative() {
		p.Issuer = paymentIssuer(tx, nominal)
	}
	return []Payment{p}, nil
}

// paymentIssuer resolves the gateway behind an issued-currency payment. When
// the Amount names one of the two parties, the trust line touching the
// destination decides: the low party issues when the balance is or was negative.
func paymentIssuer(tx *ledger.Transaction, nominal amount.Amount) string {
	destination := tx.Fields.String("Destination")
	if nominal.Issuer != tx.Account && nominal.Issuer != destination {
		return nominal.Issuer
	}

	for i := range tx.AffectedNodes {
		node := &tx.AffectedNodes[i]
		if node.EntryType != ledger.EntryRippleState || node.FinalFields == nil {
			continue
		}
		if node.FinalFields.Object("HighLimit").String("currency") != nominal.Currency {
			continue
		}
		high := node.FinalFields.Object("HighLimit").String("issuer")
		low := node.FinalFields.Object("LowLimit").String("issuer")
		if high != destination && low != destination {
			continue
		}

		balance, err := amount.Parse(node.FinalFields["Balance"])
		if err != nil {
			return ""
		}
		previous := decimal.Zero
		if prev, err := amount.Parse(node.PreviousFields["Balance"]); err == nil {
			previous = prev.Value
		}
		if balance.Value.IsNegative() || previous.IsNegative() {
			return low
		}
		return high
	}
	return ""
}

// accountChanges lists every balance change seen by each account, with trust
// lines reported from both sides and the fee left in the XRP change.
func accountChanges(tx *ledger.Transaction) (map[string][]CurrencyAmount, error) {
	out := map[string][]CurrencyAmount{}
	for i := range tx.AffectedNodes {
		node := &tx.AffectedNodes[i]
		fields := node.Fields()
		if fields == nil {
			continue
		}

		switch node.EntryType {
		case ledger.EntryAccountRoot:
			final, ok := dropsToXRP(fields["Balance"])
			if !ok {
				continue
			}
			previous := decimal.Zero
			if node.Kind != ledger.Created {
				if !node.PreviousFields.Has("Balance") {
					continue
				}
				if previous, ok = dropsToXRP(node.PreviousFields["Balance"]); !ok {
					return nil, fmt.Errorf("node %d: bad previous balance", node.Index)
				}
			}
			account := fields.String("Account")
			out[account] = append(out[account], CurrencyAmount{Currency: amount.XRP, Value: final.Sub(previous)})

		case ledger.EntryRippleState:
			final, err := amount.Parse(fields["Balance"])
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", node.Index, err)
			}
			previous := decimal.Zero
			if node.Kind != ledger.Created {
				if !node.PreviousFields.Has("Balance") {
					continue
				}
				prev, err := amount.Parse(node.PreviousFields["Balance"])
				if err != nil {
					return nil, fmt.Errorf("node %d: %w", node.Index, err)
				}
				previous = prev.Value
			}
			change := final.Value.Sub(previous)
			if change.IsZero() {
				continue
			}
			high := fields.Object("HighLimit").String("issuer")
			low := fields.Object("LowLimit").String("issuer")
			out[low] = append(out[low], CurrencyAmount{Currency: final.Currency, Issuer: high, Value: change})
			out[high] = append(out[high], CurrencyAmount{Currency: final.Currency, Issuer: low, Value: change.Neg()})
		}
	}
	return out, nil
}
