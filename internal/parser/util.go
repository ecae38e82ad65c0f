package parser

import (
	"fmt"
	"time"

	"github.com/LeJamon/xrpl-ingest/internal/core/amount"
	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
	"github.com/LeJamon/xrpl-ingest/internal/core/ledger/header"
	"github.com/shopspring/decimal"
)

// invertPrecision is the number of decimal places kept when inverting a rate.
const invertPrecision = 40

func txRef(tx *ledger.Transaction) TxRef {
	return TxRef{
		LedgerIndex:  tx.LedgerIndex,
		TxIndex:      tx.Index,
		TxHash:       tx.Hash.String(),
		ExecutedTime: tx.ExecutedTime,
		Client:       Client(tx),
	}
}

func toLeg(v any) (Leg, error) {
	a, err := amount.Parse(v)
	if err != nil {
		return Leg{}, err
	}
	return Leg{Currency: a.Currency, Issuer: a.Issuer, Amount: a.Decimal()}, nil
}

// legDelta returns previous minus final for one offer leg.
func legDelta(prev, final any) (Leg, error) {
	p, err := amount.Parse(prev)
	if err != nil {
		return Leg{}, fmt.Errorf("previous: %w", err)
	}
	f, err := amount.Parse(final)
	if err != nil {
		return Leg{}, fmt.Errorf("final: %w", err)
	}
	d, err := p.Sub(f)
	if err != nil {
		return Leg{}, err
	}
	return Leg{Currency: p.Currency, Issuer: p.Issuer, Amount: d}, nil
}

// currencyOf returns the currency of an amount field, "" when absent or native.
func currencyOf(v any) (currency, issuer string) {
	obj := ledger.AsFields(v)
	if obj == nil {
		return "", ""
	}
	return obj.String("currency"), obj.String("issuer")
}

func dropsToXRP(v any) (decimal.Decimal, bool) {
	s, ok := v.(string)
	if !ok {
		return decimal.Zero, false
	}
	d, err := amount.ParseDrops(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d.DecimalXRP(), true
}

func fee(tx *ledger.Transaction) decimal.Decimal {
	d, _ := dropsToXRP(tx.Fields["Fee"])
	return d
}

func optUint32(f ledger.Fields, name string) *uint32 {
	v, ok := f.Uint32(name)
	if !ok {
		return nil
	}
	return &v
}

// rippleTime converts a ripple-epoch field to UTC.
func rippleTime(f ledger.Fields, name string) *time.Time {
	v, ok := f.Uint32(name)
	if !ok {
		return nil
	}
	t := header.ToTime(v)
	return &t
}

func invert(d decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).DivRound(d, invertPrecision)
}

// roundSignificant rounds d to n significant digits.
func roundSignificant(d decimal.Decimal, n int) decimal.Decimal {
	if d.IsZero() {
		return d
	}
	c := d.Coefficient()
	magnitude := len(c.Abs(c).String()) + int(d.Exponent())
	return d.Round(int32(n - magnitude))
}
