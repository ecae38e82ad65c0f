package parser

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/LeJamon/xrpl-ingest/internal/core/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testTxHash = "0A7B3C7D1E6F5A4B3C2D1E0F9A8B7C6D5E4F3A2B1C0D9E8F7A6B5C4D3E2F1A0B"

var testCloseTime = time.Date(2017, 3, 14, 1, 59, 26, 0, time.UTC)

func jsonMap(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

// newTx decodes JSON fixtures into a transaction attached to ledger 100.
func newTx(t *testing.T, txJSON, metaJSON string) *ledger.Transaction {
	t.Helper()
	tx, err := ledger.NewTransaction(jsonMap(t, txJSON), jsonMap(t, metaJSON))
	require.NoError(t, err)
	l := &ledger.Ledger{Index: 100, CloseTime: testCloseTime}
	l.Attach(tx)
	return tx
}

func bookDirectory(quality string) string {
	return strings.Repeat("A", 48) + quality
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func decimalOf(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
