package rows

import (
	"fmt"
	"time"
)

const timeKeyLayout = "20060102150405"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeKeyLayout)
}

func padIndex(n uint32) string {
	return fmt.Sprintf("%012d", n)
}

func padSmall(n int) string {
	return fmt.Sprintf("%05d", n)
}

// LedgerIndexKey is the lu_ledgers_by_index key of a ledger.
func LedgerIndexKey(index uint32, hash string) string {
	return padIndex(index) + "|" + hash
}

// LedgerIndexRange returns the [from, to) scan bounds covering every
// lu_ledgers_by_index row for ledgers start through stop.
func LedgerIndexRange(start, stop uint32) (string, string) {
	return padIndex(start), padIndex(stop) + "|~"
}

func txSuffix(t time.Time, ledgerIndex, txIndex uint32) string {
	return formatTime(t) + "|" + padIndex(ledgerIndex) + "|" + padSmall(int(txIndex))
}

func nodeSuffix(t time.Time, ledgerIndex, txIndex uint32, node int) string {
	return txSuffix(t, ledgerIndex, txIndex) + "|" + padSmall(node)
}
