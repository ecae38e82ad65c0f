package parser

import (
	"github.com/LeJamon/xrpl-ingest/internal/core/amount"
	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
	"github.com/shopspring/decimal"
)

// avgSignificantDigits is the precision of FeeSummary.Avg.
const avgSignificantDigits = 6

// Fees summarizes the fees of every transaction in a ledger. An empty ledger
// reports zero for every aggregate.
func Fees(l *ledger.Ledger) FeeSummary {
	s := FeeSummary{
		LedgerIndex: l.Index,
		CloseTime:   l.CloseTime,
		TxCount:     len(l.Transactions),
	}
	if s.TxCount == 0 {
		return s
	}

	var total, hi, lo amount.XRPAmount
	for i, tx := range l.Transactions {
		f, err := amount.ParseDrops(tx.Fields.String("Fee"))
		if err != nil {
			f = 0
		}
		total = total.Add(f)
		if i == 0 || f > hi {
			hi = f
		}
		if i == 0 || f < lo {
			lo = f
		}
	}

	s.Total = total.DecimalXRP()
	s.Max = hi.DecimalXRP()
	s.Min = lo.DecimalXRP()
	avg := s.Total.DivRound(decimal.NewFromInt(int64(s.TxCount)), invertPrecision)
	s.Avg = roundSignificant(avg, avgSignificantDigits)
	return s
}
